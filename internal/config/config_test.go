package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config     string
	OutputPath string `toml:"output.path" env:"OUTPUT_PATH"`
	Width      int    `toml:"output.width" env:"WIDTH"`
	Verbose    bool   `toml:"verbose" env:"VERBOSE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recordnode.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
verbose = true

[output]
path = "/tmp/out.mp4"
width = 1920
`)
	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.OutputPath != "/tmp/out.mp4" || opts.Width != 1920 || !opts.Verbose {
		t.Fatalf("TOML values not applied: %+v", opts)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[output]\nwidth = 1920\n")
	t.Setenv(EnvPrefix+"WIDTH", "640")

	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Width != 640 {
		t.Fatalf("env should override file, got %d", opts.Width)
	}
}

func TestLoadConfigCLIWinsOverEverything(t *testing.T) {
	path := writeConfig(t, "[output]\nwidth = 1920\n")
	t.Setenv(EnvPrefix+"WIDTH", "640")

	opts := testOptions{Config: path}
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&opts.Width, "width", 0, "")
	if err := cmd.Flags().Set("width", "320"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	if err := LoadConfig(&opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Width != 320 {
		t.Fatalf("explicit CLI flag must win, got %d", opts.Width)
	}
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	opts := testOptions{Config: "/nonexistent/recordnode.toml", Width: 1280}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Width != 1280 {
		t.Fatal("missing file must leave defaults untouched")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
encode = "warn"
`)
	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg)
	}
	if cfg.Modules["encode"] != "warn" {
		t.Fatalf("module override missing: %+v", cfg.Modules)
	}
}
