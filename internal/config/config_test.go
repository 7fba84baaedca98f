package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileOverlaysValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	data := []byte("server_url: ws://control.example.com:9000\nlog_level: debug\nreconnect: false\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Config{
		ServerURL:   "ws://localhost:8081",
		BrowserAddr: "127.0.0.1:8082",
		LogLevel:    "info",
		Reconnect:   true,
	}
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "ws://control.example.com:9000" {
		t.Fatalf("server_url not overlaid: %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level not overlaid: %s", cfg.LogLevel)
	}
	if cfg.Reconnect {
		t.Fatalf("reconnect not overlaid")
	}
	// Keys absent from the file keep their prior values.
	if cfg.BrowserAddr != "127.0.0.1:8082" {
		t.Fatalf("browser_addr should be untouched: %s", cfg.BrowserAddr)
	}
}

func TestLoadFileMissing(t *testing.T) {
	var cfg Config
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var cfg Config
	if err := cfg.LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
