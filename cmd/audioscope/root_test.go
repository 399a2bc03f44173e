package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petems/audioscope/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Setenv("LOCALAPPDATA", dir)
	return dir
}

func TestDeviceLabel(t *testing.T) {
	tests := []struct {
		cfg  config.AudioConfig
		want string
	}{
		{config.AudioConfig{DeviceID: "USB Mic"}, "USB Mic"},
		{config.AudioConfig{Loopback: true}, "default output (loopback)"},
		{config.AudioConfig{}, "default input"},
	}

	for _, tt := range tests {
		if got := deviceLabel(tt.cfg); got != tt.want {
			t.Errorf("deviceLabel(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestOrLabelPrefersBackendName(t *testing.T) {
	cfg := config.AudioConfig{Loopback: true}

	if got := orLabel("Speakers (Realtek Audio)", cfg); got != "Speakers (Realtek Audio)" {
		t.Errorf("expected backend name, got %q", got)
	}
	if got := orLabel("", cfg); got != "default output (loopback)" {
		t.Errorf("expected configured label, got %q", got)
	}
}

func TestConfigCommandFlagsOverrideFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "audioscope.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  backend: portaudio\n  loopback: false\n  channels: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", path, "--channels", "2"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"audio.backend = portaudio", "audio.channels = 2", "spectrum.window_size = 2048"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestConfigCommandWrite(t *testing.T) {
	isolate(t)
	path := config.ConfigPath()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--write", "--backend", "portaudio", "--loopback=false"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "portaudio") {
		t.Errorf("expected backend in written config:\n%s", data)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	isolate(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--backend", "oss"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}
