// Package config holds the logmark gateway configuration. Values start from
// DefaultConfig, are overlaid by an optional YAML file and finally by
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"logmark/pkg/logging"
	"logmark/pkg/message"
)

// Config holds the specific configuration for a logmark instance.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	TCPPort  int `yaml:"tcp_port"`
	UDPPort  int `yaml:"udp_port"`
	HTTPPort int `yaml:"http_port"` // metrics endpoint
}

type RedisConfig struct {
	// Address is empty when the control plane is disabled.
	Address       string `yaml:"address"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ConfigKey     string `yaml:"config_key"`
	UpdateChannel string `yaml:"update_channel"` // PubSub channel name
}

// AnnotationConfig configures the marker applied to every entry.
type AnnotationConfig struct {
	// Marker is prefixed onto every message. Empty disables annotation.
	Marker string `yaml:"marker"`

	// MessageField is the JSON field holding the message of structured entries.
	MessageField string `yaml:"message_field"`

	// MessageIDs replaces the static marker by one carrying a per-entry id.
	MessageIDs bool `yaml:"message_ids"`
}

type PipelineConfig struct {
	BufferSize    uint64        `yaml:"buffer_size"` // power of 2
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			TCPPort:  8081,
			UDPPort:  8082,
			HTTPPort: 8080,
		},
		Redis: RedisConfig{
			Address:       "localhost:6379",
			ConfigKey:     "logmark_config",
			UpdateChannel: "logmark_updates",
		},
		Annotation: AnnotationConfig{
			Marker:       message.DefaultMarker,
			MessageField: "message",
		},
		Pipeline: PipelineConfig{
			BufferSize:    65536,
			BatchSize:     100,
			FlushInterval: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid value.
func (c *Config) Validate() error {
	var errs []error

	for _, p := range []struct {
		name string
		port int
	}{
		{"server.tcp_port", c.Server.TCPPort},
		{"server.udp_port", c.Server.UDPPort},
		{"server.http_port", c.Server.HTTPPort},
	} {
		// 0 disables the listener.
		if p.port < 0 || p.port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %d out of range", p.name, p.port))
		}
	}

	if size := c.Pipeline.BufferSize; size == 0 || size&(size-1) != 0 {
		errs = append(errs, fmt.Errorf("pipeline.buffer_size: %d is not a power of 2", size))
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size: must be positive"))
	}
	if c.Pipeline.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.flush_interval: must be positive"))
	}
	if c.Annotation.MessageField == "" {
		errs = append(errs, fmt.Errorf("annotation.message_field: must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Redis.Address != "" && (c.Redis.ConfigKey == "" || c.Redis.UpdateChannel == "") {
		errs = append(errs, fmt.Errorf("redis: config_key and update_channel are required"))
	}

	return errors.Join(errs...)
}

// Annotator builds the message annotator described by the annotation section.
func (a AnnotationConfig) Annotator() message.Annotator {
	if a.MessageIDs {
		return message.NewContextAnnotator(message.MessageIDMarker("@#[", "]@#"))
	}
	return message.NewAnnotator(a.Marker)
}
