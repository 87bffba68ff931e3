package main

import (
	"log/slog"

	"github.com/example/go-voicebake/internal/config"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/export/shine"
	"github.com/example/go-voicebake/internal/playback"
)

func newExporter(cfg config.Config) *export.Exporter {
	opts := []export.Option{export.WithLogger(slog.Default())}
	if cfg.Export.MP3 {
		opts = append(opts, export.WithMP3(shine.New()))
	}

	return export.New(opts...)
}

func newDevice(cfg config.Config) playback.Device {
	if cfg.Playback.Device == config.DeviceDiscard {
		return playback.NewDiscardDevice()
	}

	return playback.NewOtoDevice(slog.Default())
}

func newController(cfg config.Config, opts ...playback.Option) *playback.Controller {
	opts = append([]playback.Option{
		playback.WithQuantum(cfg.Playback.Quantum()),
		playback.WithLogger(slog.Default()),
	}, opts...)

	return playback.NewController(newDevice(cfg), opts...)
}
