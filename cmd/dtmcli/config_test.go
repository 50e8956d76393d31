package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	if cfg.Baud != 115200 {
		t.Fatalf("unexpected baud: %d", cfg.Baud)
	}
	if cfg.Tag != "DUT1" {
		t.Fatalf("unexpected tag: %q", cfg.Tag)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if cfg.Retries != 2 {
		t.Fatalf("unexpected retries: %d", cfg.Retries)
	}
	if cfg.LogLevel != "debug" || cfg.LogFile != "dtmcli.log" {
		t.Fatalf("unexpected logging config: %q %q", cfg.LogLevel, cfg.LogFile)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.toml")
	if err := os.WriteFile(path, []byte("port = \"/dev/ttyACM1\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := defaultConfig()
	if cfg.Port != "/dev/ttyACM1" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	if cfg.Baud != want.Baud || cfg.Tag != want.Tag || cfg.Timeout != want.Timeout {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadConfigBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("timeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for unparsable timeout")
	}
}
