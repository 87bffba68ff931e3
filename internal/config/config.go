package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/playback"
)

type Config struct {
	Audio    AudioConfig    `mapstructure:"audio"`
	Export   ExportConfig   `mapstructure:"export"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
}

// AudioConfig describes the PCM handed over by the speech engine.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
}

type ExportConfig struct {
	Format string `mapstructure:"format"`
	MP3    bool   `mapstructure:"mp3"`
	OutDir string `mapstructure:"out_dir"`
}

type PlaybackConfig struct {
	Device    string  `mapstructure:"device"`
	QuantumMS int     `mapstructure:"quantum_ms"`
	Speed     float64 `mapstructure:"speed"`
	Pitch     float64 `mapstructure:"pitch"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxPayloadBytes int64  `mapstructure:"max_payload_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
}

// Quantum returns the playback scheduling step.
func (p PlaybackConfig) Quantum() time.Duration {
	return time.Duration(p.QuantumMS) * time.Millisecond
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: 24000,
			Channels:   1,
		},
		Export: ExportConfig{
			Format: string(export.FormatWAV),
			MP3:    true,
			OutDir: ".",
		},
		Playback: PlaybackConfig{
			Device:    DeviceOto,
			QuantumMS: 20,
			Speed:     1.0,
			Pitch:     0,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxPayloadBytes: 16 << 20,
			RequestTimeout:  60,
		},
		LogLevel: "info",
	}
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"audio.sample_rate", "audio-sample-rate"},
	{"audio.channels", "audio-channels"},
	{"export.format", "export-format"},
	{"export.mp3", "export-mp3"},
	{"export.out_dir", "export-out-dir"},
	{"playback.device", "playback-device"},
	{"playback.quantum_ms", "playback-quantum-ms"},
	{"playback.speed", "playback-speed"},
	{"playback.pitch", "playback-pitch"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "workers"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"server.max_payload_bytes", "server-max-payload-bytes"},
	{"server.request_timeout", "server-request-timeout"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Int("audio-sample-rate", defaults.Audio.SampleRate, "Sample rate of incoming PCM in Hz")
	fs.Int("audio-channels", defaults.Audio.Channels, "Channel count of incoming PCM")
	fs.String("export-format", defaults.Export.Format, "Default export format (wav|mp3)")
	fs.Bool("export-mp3", defaults.Export.MP3, "Enable the MP3 encoder backend")
	fs.String("export-out-dir", defaults.Export.OutDir, "Directory for exported files")
	fs.String("playback-device", defaults.Playback.Device, "Playback device (oto|discard)")
	fs.Int("playback-quantum-ms", defaults.Playback.QuantumMS, "Playback scheduling quantum in milliseconds")
	fs.Float64("playback-speed", defaults.Playback.Speed, "Default playback speed")
	fs.Float64("playback-pitch", defaults.Playback.Pitch, "Default playback pitch in cents")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent render requests")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int64("server-max-payload-bytes", defaults.Server.MaxPayloadBytes, "Max request body size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("VOICEBAKE")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("voicebake")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges and normalizes enumerations in place.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be positive, got %d", c.Audio.Channels)
	}

	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	c.Export.Format = string(format)

	device, err := NormalizeDevice(c.Playback.Device)
	if err != nil {
		return err
	}
	c.Playback.Device = device

	if c.Playback.QuantumMS <= 0 {
		return fmt.Errorf("playback.quantum_ms must be positive, got %d", c.Playback.QuantumMS)
	}
	c.Playback.Speed = playback.ClampSpeed(c.Playback.Speed)
	c.Playback.Pitch = playback.ClampPitch(c.Playback.Pitch)

	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1, got %d", c.Server.Workers)
	}
	if c.Server.MaxPayloadBytes <= 0 {
		return fmt.Errorf("server.max_payload_bytes must be positive, got %d", c.Server.MaxPayloadBytes)
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("audio.sample_rate", c.Audio.SampleRate)
	v.SetDefault("audio.channels", c.Audio.Channels)
	v.SetDefault("export.format", c.Export.Format)
	v.SetDefault("export.mp3", c.Export.MP3)
	v.SetDefault("export.out_dir", c.Export.OutDir)
	v.SetDefault("playback.device", c.Playback.Device)
	v.SetDefault("playback.quantum_ms", c.Playback.QuantumMS)
	v.SetDefault("playback.speed", c.Playback.Speed)
	v.SetDefault("playback.pitch", c.Playback.Pitch)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_payload_bytes", c.Server.MaxPayloadBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}

	return nil
}
