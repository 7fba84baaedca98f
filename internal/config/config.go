// Package config holds the bridge configuration, populated from environment
// variables, command line flags, and an optional YAML file.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the bridge process.
type Config struct {
	ServerURL   string `yaml:"server_url"`
	BrowserAddr string `yaml:"browser_addr"`
	StatusAddr  string `yaml:"status_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	Reconnect   bool   `yaml:"reconnect"`
	ConfigFile  string `yaml:"-"`
}

// BindFlags populates the struct with defaults from environment variables
// and binds command line flags so main can call flag.Parse().
func (c *Config) BindFlags() {
	c.ServerURL = getEnv("SERVER_URL", "ws://localhost:8081")
	c.BrowserAddr = getEnv("BROWSER_ADDR", "127.0.0.1:8082")
	c.StatusAddr = getEnv("STATUS_ADDR", "")
	mp := getEnv("METRICS_PORT", "")
	if mp != "" && !strings.Contains(mp, ":") {
		mp = ":" + mp
	}
	c.MetricsAddr = mp
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	if b, err := strconv.ParseBool(getEnv("RECONNECT", "true")); err == nil {
		c.Reconnect = b
	} else {
		c.Reconnect = true
	}
	c.ConfigFile = getEnv("CONFIG_FILE", "")

	flag.StringVar(&c.ServerURL, "server-url", c.ServerURL, "control channel WebSocket URL (e.g. ws://localhost:8081)")
	flag.StringVar(&c.BrowserAddr, "browser-addr", c.BrowserAddr, "listen address for the page shim WebSocket endpoint")
	flag.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "local status HTTP listen address (enables /status; disabled when empty)")
	flag.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port (disabled when empty)")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.BoolVar(&c.Reconnect, "reconnect", c.Reconnect, "reconnect to the control endpoint on failure")
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "bridge config file path")
}

// LoadFile overlays the config with values from a YAML file.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
