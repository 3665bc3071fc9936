package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	LogSentry LogSentryConfig `yaml:"logsentry"`
}

// LogSentryConfig is the project configuration.
type LogSentryConfig struct {
	Input    InputConfig    `yaml:"input"`
	Rules    RulesConfig    `yaml:"rules"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig controls where events are read from.
type InputConfig struct {
	Mode  string      `yaml:"mode"` // file|redis
	Files []string    `yaml:"files"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis connections.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Key            string        `yaml:"key"`
	BlockTimeout   time.Duration `yaml:"block_timeout"`
	MaxRecordBytes int           `yaml:"max_record_bytes"`
}

// RulesConfig controls detection rule loading.
type RulesConfig struct {
	Paths     []string `yaml:"paths"`
	SigmaPath string   `yaml:"sigma_path"`
}

// PipelineConfig controls alert batching.
type PipelineConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// OutputConfig controls alert sinks. Several modes may be active at once.
type OutputConfig struct {
	Modes      []string               `yaml:"modes"` // console|jsonl|dir|http|clickhouse|redis|nats
	DedupeIDs  int                    `yaml:"dedupe_ids"`
	Console    ConsoleOutputConfig    `yaml:"console"`
	File       FileOutputConfig       `yaml:"file"`
	Dir        DirOutputConfig        `yaml:"dir"`
	HTTP       HTTPOutputConfig       `yaml:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
	Redis      RedisOutputConfig      `yaml:"redis"`
	NATS       NATSOutputConfig       `yaml:"nats"`
}

// ConsoleOutputConfig controls human-readable alert rendering.
type ConsoleOutputConfig struct {
	MaxEvents int `yaml:"max_events"`
}

// FileOutputConfig config for local JSON lines output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// DirOutputConfig config for one JSON file per alert.
type DirOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Breaker BreakerConfig     `yaml:"breaker"`
}

// BreakerConfig tunes the HTTP circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// RedisOutputConfig config for alert persistence in Redis.
type RedisOutputConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// NATSOutputConfig config for alert publishing on NATS.
type NATSOutputConfig struct {
	URL     string        `yaml:"url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

// HasOutput reports whether mode is among the configured output modes.
func (o OutputConfig) HasOutput(mode string) bool {
	for _, m := range o.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
