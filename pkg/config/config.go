// Package config loads scbackend settings from a file, the environment and
// built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
type Config struct {
	APIAddr    string `json:"api_addr" yaml:"api_addr" toml:"api_addr"`
	StreamAddr string `json:"stream_addr" yaml:"stream_addr" toml:"stream_addr"`
	DataDir    string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	// Store is "bolt" or "memory".
	Store string `json:"store" yaml:"store" toml:"store"`
	// RepublishKinds are the event kinds relayed to subscribers.
	RepublishKinds []string `json:"republish_kinds" yaml:"republish_kinds" toml:"republish_kinds"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogJSON  bool   `json:"log_json" yaml:"log_json" toml:"log_json"`

	SubscriberBuffer int     `json:"subscriber_buffer" yaml:"subscriber_buffer" toml:"subscriber_buffer"`
	InboundRate      float64 `json:"inbound_rate" yaml:"inbound_rate" toml:"inbound_rate"`
	InboundBurst     int     `json:"inbound_burst" yaml:"inbound_burst" toml:"inbound_burst"`
	// MaxMessageBytes is the largest WebSocket message read from a subscriber.
	MaxMessageBytes int64  `json:"max_message_bytes" yaml:"max_message_bytes" toml:"max_message_bytes"`
	ServerVersion   string `json:"server_version" yaml:"server_version" toml:"server_version"`
	// StepInterval is a Go duration ("500ms"); empty disables engine ticks.
	StepInterval string `json:"step_interval" yaml:"step_interval" toml:"step_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIAddr:          ":3030",
		StreamAddr:       ":3031",
		DataDir:          "./data",
		Store:            "bolt",
		RepublishKinds:   []string{"message"},
		LogLevel:         "info",
		SubscriberBuffer: 64,
		InboundRate:      20,
		InboundBurst:     40,
		MaxMessageBytes:  16 << 20,
		ServerVersion:    "1.0.2",
	}
}

// Load reads a configuration file based on its extension on top of Default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. DASHPORT and SERVPORT
// replace only the port of the API and stream addresses.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if port := getenv("DASHPORT"); port != "" {
		c.APIAddr = withPort(c.APIAddr, port)
	}
	if port := getenv("SERVPORT"); port != "" {
		c.StreamAddr = withPort(c.StreamAddr, port)
	}
	if dir := getenv("SCBACKEND_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if level := getenv("SCBACKEND_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func withPort(addr, port string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

// Step parses StepInterval.
func (c Config) Step() (time.Duration, error) {
	if c.StepInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.StepInterval)
	if err != nil {
		return 0, fmt.Errorf("step_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("step_interval must not be negative")
	}
	return d, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("api_addr is required")
	}
	if c.StreamAddr == "" {
		return fmt.Errorf("stream_addr is required")
	}
	switch c.Store {
	case "bolt":
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the bolt store")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported store type: %q", c.Store)
	}
	if len(nonBlank(c.RepublishKinds)) == 0 {
		return fmt.Errorf("republish_kinds must name at least one kind")
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive")
	}
	if c.InboundRate < 0 {
		return fmt.Errorf("inbound_rate must not be negative")
	}
	if c.InboundRate > 0 && c.InboundBurst <= 0 {
		return fmt.Errorf("inbound_burst must be positive when inbound_rate is set")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	if _, err := c.Step(); err != nil {
		return err
	}
	return nil
}

func nonBlank(ss []string) []string {
	var out []string
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
