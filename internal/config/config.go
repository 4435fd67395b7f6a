package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the process logger and the HTTP access log.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // "console" or "json"
	File      string `yaml:"file"`
	AccessLog string `yaml:"access_log"`
}

// IngestConfig holds the settings for receiving log entries.
type IngestConfig struct {
	NATSURL            string   `yaml:"nats_url"`
	Subject            string   `yaml:"subject"`
	Encoding           string   `yaml:"encoding"` // "json" or "proto"
	NumWorkers         int      `yaml:"num_workers"`
	SizeOfEntryChannel int      `yaml:"size_of_entry_channel"`
	RequiredFields     []string `yaml:"required_fields"`
	DedupeKeyPath      string   `yaml:"dedupe_key_path"`
	DedupeCacheBytes   uint64   `yaml:"dedupe_cache_bytes"`
}

// APIConfig holds the listen addresses of the query servers.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`
	DefaultK       int    `yaml:"default_k"`
}

// FilterDef restricts a counter to entries whose numeric field matches.
type FilterDef struct {
	Path     string  `yaml:"path"`
	Operator string  `yaml:"operator"`
	Value    float64 `yaml:"value"`
}

// CounterDef defines a single Space-Saving counter from the config file.
type CounterDef struct {
	Name     string      `yaml:"name"`
	Capacity int         `yaml:"capacity"`
	KeyPath  string      `yaml:"key_path"`
	Filters  []FilterDef `yaml:"filters"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TextConfig holds the settings for the text writer.
type TextConfig struct {
	RootPath string `yaml:"root_path"`
}

// SQLiteConfig holds the settings for the sqlite writer.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds the settings for the redis writer.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"`
}

// WriterDef defines a snapshot writer.
type WriterDef struct {
	Type             string           `yaml:"type"`
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	TopK             int              `yaml:"top_k"`
	Text             TextConfig       `yaml:"text"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
	SQLite           SQLiteConfig     `yaml:"sqlite"`
	Redis            RedisConfig      `yaml:"redis"`
}

// AggregatorConfig holds the configuration for the counter engine.
type AggregatorConfig struct {
	Types    []string     `yaml:"types"`
	Counters []CounterDef `yaml:"counters"`
	Writers  []WriterDef  `yaml:"writers"`
}

// AlerterRule defines a single alerting rule.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	TaskName  string  `yaml:"task_name"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the configuration for the alerter.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Notifier      string        `yaml:"notifier"` // "email" or "log"
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Ingest     IngestConfig     `yaml:"ingest"`
	API        APIConfig        `yaml:"api"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Alerter    AlerterConfig    `yaml:"alerter"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

// LoadConfig reads the configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration of the original service: an endpoint
// counter and an HTTP error code counter.
func Default() *Config {
	cfg := &Config{
		Aggregator: AggregatorConfig{
			Counters: []CounterDef{
				{Name: "endpoints", Capacity: 50, KeyPath: "endpoint"},
				{
					Name:     "errors",
					Capacity: 20,
					KeyPath:  "status_code",
					Filters:  []FilterDef{{Path: "status_code", Operator: ">=", Value: 400}},
				},
			},
		},
		Ingest: IngestConfig{
			RequiredFields: []string{"message", "endpoint", "status_code"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// writerDefaults holds the settings a writer of each type falls back to.
var writerDefaults = map[string]WriterDef{
	"text": {
		SnapshotInterval: "1m",
		Text:             TextConfig{RootPath: "snapshots"},
	},
	"clickhouse": {
		SnapshotInterval: "1m",
		ClickHouse:       ClickHouseConfig{Host: "127.0.0.1", Port: 9000, Database: "default", Username: "default"},
	},
	"sqlite": {
		SnapshotInterval: "5m",
		SQLite:           SQLiteConfig{Path: "snapshots.db"},
	},
	"redis": {
		SnapshotInterval: "30s",
		Redis:            RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "logflow"},
	},
}

// ApplyDefaults fills in every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Ingest.Subject == "" {
		cfg.Ingest.Subject = "logflow.entries"
	}
	if cfg.Ingest.Encoding == "" {
		cfg.Ingest.Encoding = "json"
	}
	if cfg.Ingest.NumWorkers <= 0 {
		cfg.Ingest.NumWorkers = 4
	}
	if cfg.Ingest.SizeOfEntryChannel <= 0 {
		cfg.Ingest.SizeOfEntryChannel = 10000
	}
	if cfg.API.HttpListenAddr == "" {
		cfg.API.HttpListenAddr = ":8080"
	}
	if cfg.API.DefaultK <= 0 {
		cfg.API.DefaultK = 10
	}
	if len(cfg.Aggregator.Types) == 0 {
		cfg.Aggregator.Types = []string{"spacesaving"}
	}
	for i := range cfg.Aggregator.Writers {
		w := &cfg.Aggregator.Writers[i]
		if def, ok := writerDefaults[w.Type]; ok {
			// Only zero fields are filled; both sides have the same type.
			mergo.Merge(w, def)
		}
		if w.SnapshotInterval == "" {
			w.SnapshotInterval = "1m"
		}
		if w.TopK <= 0 {
			w.TopK = 100
		}
	}
	if cfg.Alerter.CheckInterval == "" {
		cfg.Alerter.CheckInterval = "1m"
	}
	if cfg.Alerter.Notifier == "" {
		cfg.Alerter.Notifier = "log"
	}
	for i := range cfg.Alerter.Rules {
		if cfg.Alerter.Rules[i].Metric == "" {
			cfg.Alerter.Rules[i].Metric = "item_count"
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LFS_NATS_URL"); val != "" {
		cfg.Ingest.NATSURL = val
	}
	if val := os.Getenv("LFS_HTTP_LISTEN_ADDR"); val != "" {
		cfg.API.HttpListenAddr = val
	}
	if val := os.Getenv("LFS_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

var validMetrics = map[string]bool{"item_count": true, "minimum": true, "size": true, "evictions": true}

var validOperators = map[string]bool{">": true, "<": true, "=": true, ">=": true, "<=": true, "!=": true}

// Validate checks the configuration for values the engine cannot run with.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Ingest.Encoding != "json" && cfg.Ingest.Encoding != "proto" {
		errs = append(errs, fmt.Errorf("ingest.encoding must be 'json' or 'proto', got '%s'", cfg.Ingest.Encoding))
	}

	if len(cfg.Aggregator.Counters) == 0 {
		errs = append(errs, errors.New("aggregator.counters must define at least one counter"))
	}
	seen := make(map[string]bool)
	for i, c := range cfg.Aggregator.Counters {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("aggregator.counters[%d]: name is required", i))
		} else if seen[c.Name] {
			errs = append(errs, fmt.Errorf("aggregator.counters[%d]: duplicate name '%s'", i, c.Name))
		}
		seen[c.Name] = true
		if c.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("counter '%s': capacity must be positive, got %d", c.Name, c.Capacity))
		}
		if c.KeyPath == "" {
			errs = append(errs, fmt.Errorf("counter '%s': key_path is required", c.Name))
		}
		for _, f := range c.Filters {
			if f.Path == "" {
				errs = append(errs, fmt.Errorf("counter '%s': filter path is required", c.Name))
			}
			if !validOperators[f.Operator] {
				errs = append(errs, fmt.Errorf("counter '%s': unknown filter operator '%s'", c.Name, f.Operator))
			}
		}
	}

	for i, w := range cfg.Aggregator.Writers {
		if !w.Enabled {
			continue
		}
		if _, ok := writerDefaults[w.Type]; !ok {
			errs = append(errs, fmt.Errorf("aggregator.writers[%d]: unknown writer type '%s'", i, w.Type))
		}
		if d, err := time.ParseDuration(w.SnapshotInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("aggregator.writers[%d] (%s): invalid snapshot_interval '%s'", i, w.Type, w.SnapshotInterval))
		}
	}

	if cfg.Alerter.Enabled {
		if d, err := time.ParseDuration(cfg.Alerter.CheckInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("alerter: invalid check_interval '%s'", cfg.Alerter.CheckInterval))
		}
		if cfg.Alerter.Notifier != "log" && cfg.Alerter.Notifier != "email" {
			errs = append(errs, fmt.Errorf("alerter: notifier must be 'log' or 'email', got '%s'", cfg.Alerter.Notifier))
		}
		for _, r := range cfg.Alerter.Rules {
			if !seen[r.TaskName] {
				errs = append(errs, fmt.Errorf("alerter rule '%s': unknown task '%s'", r.Name, r.TaskName))
			}
			if !validOperators[r.Operator] {
				errs = append(errs, fmt.Errorf("alerter rule '%s': unknown operator '%s'", r.Name, r.Operator))
			}
			if !validMetrics[r.Metric] {
				errs = append(errs, fmt.Errorf("alerter rule '%s': unknown metric '%s'", r.Name, r.Metric))
			}
		}
	}

	return errors.Join(errs...)
}
