package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = []struct {
	flag, key, usage string
}{
	{"config", "config", "path to a yaml/json/toml config file"},
	{"batch-id", "batch_id", "batch id; defaults to the current epoch second"},
	{"table", "table", "catalog table"},
	{"mode", "mode", "ingestion mode: batch|streaming"},
	{"input", "input.location", "input location (directory or s3://bucket/prefix)"},
	{"ratings", "input.ratings", "ratings key under the input location"},
	{"metadata", "input.metadata", "metadata key under the input location"},
	{"output", "output.location", "output location (directory or s3://bucket/prefix)"},
	{"overwrite", "output.overwrite", "overwrite mode: partition|root"},
	{"s3-endpoint", "s3.endpoint", "S3 endpoint host:port"},
	{"s3-region", "s3.region", "S3 region"},
	{"catalog-backend", "catalog.backend", "catalog backend: memory|pebble|badger|sqlite"},
	{"catalog-path", "catalog.path", "catalog data path"},
	{"kafka-bootstrap", "kafka.bootstrap", "kafka bootstrap servers, e.g. localhost:9092"},
	{"changelog-dir", "changelog.dir", "catalog changelog directory; empty disables the file log"},
	{"changelog-topic", "changelog.kafka_topic", "kafka topic for the catalog changelog"},
	{"manifest-dir", "manifest.dir", "manifest directory; empty disables the file manifest"},
	{"manifest-topic", "manifest.kafka_topic", "kafka topic for the manifest (compacted)"},
	{"snapshot-dir", "snapshot.dir", "catalog snapshot directory; empty disables snapshots"},
	{"metrics-addr", "metrics.addr", "listen address for /metrics and /healthz"},
	{"metrics-push", "metrics.push_url", "pushgateway url"},
	{"metrics-textfile", "metrics.textfile", "textfile collector output path"},
	{"log-level", "log.level", "log level"},
	{"log-format", "log.format", "log format: json|console"},
}

// BindFlags registers the string settings as flags and binds them to v.
// Unset flags fall through to the environment, the config file and defaults.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	d := Default()
	defaults := map[string]string{
		"table":            d.Table,
		"mode":             d.Mode,
		"input.location":   d.Input.Location,
		"input.ratings":    d.Input.Ratings,
		"input.metadata":   d.Input.Metadata,
		"output.location":  d.Output.Location,
		"output.overwrite": d.Output.Overwrite,
		"catalog.backend":  d.Catalog.Backend,
		"catalog.path":     d.Catalog.Path,
		"changelog.dir":    d.Changelog.Dir,
		"manifest.dir":     d.Manifest.Dir,
		"snapshot.dir":     d.Snapshot.Dir,
		"log.level":        d.Log.Level,
		"log.format":       d.Log.Format,
	}
	for _, f := range flagKeys {
		flags.String(f.flag, defaults[f.key], f.usage)
		if err := v.BindPFlag(f.key, flags.Lookup(f.flag)); err != nil {
			return err
		}
	}
	flags.Int("repair-workers", d.Repair.Workers, "metadata repair workers; 0 uses every CPU")
	flags.Duration("statement-timeout", d.Catalog.StatementTimeout, "timeout per catalog statement")
	if err := v.BindPFlag("repair.workers", flags.Lookup("repair-workers")); err != nil {
		return err
	}
	return v.BindPFlag("catalog.statement_timeout", flags.Lookup("statement-timeout"))
}
