package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medley.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.HTTP.Addr != want.HTTP.Addr || cfg.Logging.Level != want.Logging.Level {
		t.Errorf("want defaults %+v, got %+v", want, cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[http]
addr = ":9000"

[library]
dbPath = "/var/lib/medley/media.db"
roots = ["/music", "/podcasts"]
watch = false

[radio]
directoryUrl = "https://radio.example/api"

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("want addr :9000, got %q", cfg.HTTP.Addr)
	}
	if len(cfg.Library.Roots) != 2 || cfg.Library.Roots[0] != "/music" {
		t.Errorf("roots not loaded: %v", cfg.Library.Roots)
	}
	if cfg.Library.Watch {
		t.Errorf("watch should be disabled by the file")
	}
	if cfg.Radio.DirectoryURL != "https://radio.example/api" {
		t.Errorf("radio url not loaded: %q", cfg.Radio.DirectoryURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level not loaded: %q", cfg.Logging.Level)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != Default().HTTP.Addr {
		t.Errorf("unset sections should keep defaults, got %q", cfg.HTTP.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("want warn, got %q", cfg.Logging.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[http]
addr = ":9000"
`)
	t.Setenv("MEDLEY_HTTP_ADDR", ":7000")
	t.Setenv("MEDLEY_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7000" {
		t.Errorf("env should override the file, got %q", cfg.HTTP.Addr)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("env should override the default, got %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Errorf("want error for an explicitly named missing file")
	}
}

func TestLoadBadTOML(t *testing.T) {
	path := writeConfig(t, `[http`)
	if _, err := Load(path); err == nil {
		t.Errorf("want parse error")
	}
}
