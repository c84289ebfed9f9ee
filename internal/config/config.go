// Package config loads ingestion settings from flags, JET_ environment
// variables, an optional config file and defaults, in that priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/RajaShyam/JET-movie-ratings/internal/storage"
	"github.com/RajaShyam/JET-movie-ratings/internal/writer"
)

// EnvPrefix prefixes every environment override, e.g. JET_OUTPUT_LOCATION.
const EnvPrefix = "JET"

type Config struct {
	BatchID   string           `mapstructure:"batch_id"`
	Table     string           `mapstructure:"table"`
	Mode      string           `mapstructure:"mode"`
	Input     InputConfig      `mapstructure:"input"`
	Output    OutputConfig     `mapstructure:"output"`
	S3        storage.S3Config `mapstructure:"s3"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Kafka     KafkaConfig      `mapstructure:"kafka"`
	Changelog ChangelogConfig  `mapstructure:"changelog"`
	Manifest  ManifestConfig   `mapstructure:"manifest"`
	Snapshot  SnapshotConfig   `mapstructure:"snapshot"`
	Repair    RepairConfig     `mapstructure:"repair"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
}

type InputConfig struct {
	Location string `mapstructure:"location"`
	Ratings  string `mapstructure:"ratings"`
	Metadata string `mapstructure:"metadata"`
}

type OutputConfig struct {
	Location  string `mapstructure:"location"`
	Overwrite string `mapstructure:"overwrite"`
}

type CatalogConfig struct {
	Backend          string        `mapstructure:"backend"`
	Path             string        `mapstructure:"path"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type KafkaConfig struct {
	Bootstrap string `mapstructure:"bootstrap"`
}

type ChangelogConfig struct {
	Dir        string `mapstructure:"dir"`
	File       string `mapstructure:"file"`
	KafkaTopic string `mapstructure:"kafka_topic"`
}

type ManifestConfig struct {
	Dir        string `mapstructure:"dir"`
	KafkaTopic string `mapstructure:"kafka_topic"`
}

type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

type RepairConfig struct {
	Workers int `mapstructure:"workers"`
}

type MetricsConfig struct {
	Addr     string `mapstructure:"addr"`
	PushURL  string `mapstructure:"push_url"`
	Job      string `mapstructure:"job"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns settings for a local run against ./data.
func Default() *Config {
	return &Config{
		Table: "shyam.movie_ratings",
		Mode:  "batch",
		Input: InputConfig{
			Location: "data/input",
			Ratings:  "ratings",
			Metadata: "metadata",
		},
		Output: OutputConfig{
			Location:  "data/output",
			Overwrite: string(writer.ModePartition),
		},
		Catalog: CatalogConfig{
			Backend:          "pebble",
			Path:             "data/catalog",
			StatementTimeout: 30 * time.Second,
		},
		Changelog: ChangelogConfig{
			Dir:  "data/changelog",
			File: "catalog.jsonl",
		},
		Manifest: ManifestConfig{Dir: "data/manifest"},
		Snapshot: SnapshotConfig{Dir: "data/snapshots"},
		Metrics:  MetricsConfig{Job: "movie_ratings_ingest"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load resolves the configuration from v. Flags bound to v take priority over
// JET_ environment variables, then the file named by the "config" key, then
// Default.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	for key, val := range map[string]any{
		"batch_id":                  d.BatchID,
		"table":                     d.Table,
		"mode":                      d.Mode,
		"input.location":            d.Input.Location,
		"input.ratings":             d.Input.Ratings,
		"input.metadata":            d.Input.Metadata,
		"output.location":           d.Output.Location,
		"output.overwrite":          d.Output.Overwrite,
		"s3.endpoint":               d.S3.Endpoint,
		"s3.access_key":             d.S3.AccessKey,
		"s3.secret_key":             d.S3.SecretKey,
		"s3.region":                 d.S3.Region,
		"s3.secure":                 d.S3.Secure,
		"catalog.backend":           d.Catalog.Backend,
		"catalog.path":              d.Catalog.Path,
		"catalog.statement_timeout": d.Catalog.StatementTimeout,
		"kafka.bootstrap":           d.Kafka.Bootstrap,
		"changelog.dir":             d.Changelog.Dir,
		"changelog.file":            d.Changelog.File,
		"changelog.kafka_topic":     d.Changelog.KafkaTopic,
		"manifest.dir":              d.Manifest.Dir,
		"manifest.kafka_topic":      d.Manifest.KafkaTopic,
		"snapshot.dir":              d.Snapshot.Dir,
		"repair.workers":            d.Repair.Workers,
		"metrics.addr":              d.Metrics.Addr,
		"metrics.push_url":          d.Metrics.PushURL,
		"metrics.job":               d.Metrics.Job,
		"metrics.textfile":          d.Metrics.Textfile,
		"log.level":                 d.Log.Level,
		"log.format":                d.Log.Format,
	} {
		v.SetDefault(key, val)
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("table cannot be empty")
	}
	if c.Mode != "batch" && c.Mode != "streaming" {
		return fmt.Errorf("mode must be batch or streaming")
	}
	if c.Input.Location == "" {
		return fmt.Errorf("input location cannot be empty")
	}
	if c.Input.Ratings == "" || c.Input.Metadata == "" {
		return fmt.Errorf("input ratings and metadata keys cannot be empty")
	}
	if c.Output.Location == "" {
		return fmt.Errorf("output location cannot be empty")
	}
	if _, err := writer.ParseMode(c.Output.Overwrite); err != nil {
		return fmt.Errorf("output overwrite: %w", err)
	}
	if strings.ContainsAny(c.BatchID, "/\\") {
		return fmt.Errorf("batch id cannot contain path separators")
	}
	switch c.Catalog.Backend {
	case "memory":
	case "pebble", "badger", "sqlite":
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog path is required for the %s backend", c.Catalog.Backend)
		}
	default:
		return fmt.Errorf("catalog backend must be memory, pebble, badger, or sqlite")
	}
	if c.Catalog.StatementTimeout < 0 {
		return fmt.Errorf("catalog statement timeout cannot be negative")
	}
	if (c.Changelog.KafkaTopic != "" || c.Manifest.KafkaTopic != "") && c.Kafka.Bootstrap == "" {
		return fmt.Errorf("kafka bootstrap is required when a kafka topic is set")
	}
	if c.Changelog.Dir != "" && c.Changelog.File == "" {
		return fmt.Errorf("changelog file cannot be empty")
	}
	if c.Repair.Workers < 0 {
		return fmt.Errorf("repair workers cannot be negative")
	}
	if c.Metrics.PushURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics job is required for push")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	return nil
}
