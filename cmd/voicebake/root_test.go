package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/go-voicebake/internal/config"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/server"
)

// execute runs the root command with args in a clean working directory.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"render", "play", "serve", "health", "doctor", "info", "bench"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}

	if root.PersistentFlags().Lookup("playback-device") == nil {
		t.Error("expected config flags to be registered as persistent flags")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	if _, err := requireConfig(); err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Audio.SampleRate != 24000 {
		t.Errorf("unexpected SampleRate: %d", got.Audio.SampleRate)
	}
}

func TestRoot_InvalidConfigRejected(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := execute(t, nil, "info", "--playback-device=jack"); err == nil {
		t.Fatal("expected error for unknown playback device")
	}
}

func TestInfo_PrintsSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, nil, "info", "--audio-sample-rate=16000", "--export-mp3=false")
	if err != nil {
		t.Fatalf("info: %v", err)
	}

	for _, want := range []string{`"sample_rate": 16000`, `"mp3": false`, `"wav"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("info output missing %s:\n%s", want, out)
		}
	}
}

func TestDoctor_DiscardDevice(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, nil, "doctor", "--playback-device=discard")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}

	if !bytes.Contains([]byte(out), []byte("doctor checks passed")) {
		t.Errorf("unexpected doctor output:\n%s", out)
	}
}

func TestDoctor_MissingOutDirFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, nil, "doctor", "--playback-device=discard", "--export-out-dir=does/not/exist")
	if err == nil {
		t.Fatal("expected doctor failure for missing export directory")
	}
}

func TestHealth_ProbesServer(t *testing.T) {
	t.Chdir(t.TempDir())

	ts := httptest.NewServer(server.NewHandler(export.New(), nil))
	defer ts.Close()

	addr := ts.Listener.Addr().String()
	out, err := execute(t, nil, "health", "--addr", addr)
	if err != nil {
		t.Fatalf("health: %v", err)
	}

	if !strings.HasPrefix(out, "ok "+addr) {
		t.Errorf("health output = %q", out)
	}
}

func TestHealth_UnreachableFails(t *testing.T) {
	t.Chdir(t.TempDir())

	ts := httptest.NewServer(nil)
	addr := ts.Listener.Addr().String()
	ts.Close()

	if _, err := execute(t, nil, "health", "--addr", addr, "--timeout", "2s"); err == nil {
		t.Fatal("expected error for a closed server")
	}
}
