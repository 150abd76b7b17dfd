package config

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/aymanbagabas/clipio/clipboard"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("clipio", pflag.ContinueOnError)
	fs.BoolP("write", "w", false, "")
	fs.BoolP("verbose", "v", false, "")
	fs.BoolP("image", "i", false, "")
	fs.StringP("backend", "b", "auto", "")
	fs.Bool("wait", false, "")
	fs.Bool("strict", false, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Write || cfg.Verbose || cfg.Image || cfg.Wait || cfg.Strict {
		t.Errorf("expected all switches off, got %+v", cfg)
	}
	if cfg.ClipboardBackend() != clipboard.BackendAuto {
		t.Errorf("backend = %q, want auto", cfg.Backend)
	}
	if cfg.LogLevel != "off" {
		t.Errorf("log level = %q, want off", cfg.LogLevel)
	}
	if cfg.Format() != clipboard.Text {
		t.Errorf("format = %s, want text", cfg.Format())
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load(newFlags(t, "-w", "-v", "--image", "--backend=osc52", "--strict"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Write || !cfg.Verbose || !cfg.Strict {
		t.Errorf("expected write, verbose and strict, got %+v", cfg)
	}
	if cfg.Format() != clipboard.Image {
		t.Errorf("format = %s, want image", cfg.Format())
	}
	if cfg.ClipboardBackend() != clipboard.BackendOSC52 {
		t.Errorf("backend = %q, want osc52", cfg.Backend)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CLIPIO_VERBOSE", "true")
	t.Setenv("CLIPIO_BACKEND", "command")
	t.Setenv("CLIPIO_LOG_LEVEL", "DEBUG")
	t.Setenv("CLIPIO_LOG_FORMAT", "json")

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Verbose {
		t.Error("expected verbose from environment")
	}
	if cfg.ClipboardBackend() != clipboard.BackendCommand {
		t.Errorf("backend = %q, want command", cfg.Backend)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log = %q/%q, want debug/json", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CLIPIO_BACKEND", "command")

	cfg, err := Load(newFlags(t, "--backend", "native"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClipboardBackend() != clipboard.BackendNative {
		t.Errorf("backend = %q, want native", cfg.Backend)
	}
}

func TestWriteIgnoresEnvironment(t *testing.T) {
	t.Setenv("CLIPIO_WRITE", "true")

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Write {
		t.Error("write mode must come from the command line only")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"backend", "CLIPIO_BACKEND", "pigeon"},
		{"log level", "CLIPIO_LOG_LEVEL", "loud"},
		{"log format", "CLIPIO_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := Load(newFlags(t)); err == nil {
				t.Errorf("expected error for %s=%s", tt.env, tt.val)
			}
		})
	}
}

func TestLoadWithoutFlags(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Write {
		t.Error("expected read mode")
	}
}
