// Package storage abstracts the object locations the pipeline reads from and
// writes to: a local directory tree or an S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the error class for storage operations.
var Error = errs.Class("storage")

// Object is a listed entry. Key is relative to the store root and always uses
// forward slashes.
type Object struct {
	Key  string
	Size int64
}

// Store is rooted at a location. Keys are slash-separated and relative to it.
type Store interface {
	// List returns every object at or below prefix, sorted by key. Names
	// starting with "_" or "." are skipped. A missing prefix is an error on
	// stores that have directories and an empty list on buckets.
	List(ctx context.Context, prefix string) ([]Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// RemovePrefix deletes every object at or below prefix. Missing is not an error.
	RemovePrefix(ctx context.Context, prefix string) error
	// URL renders key as an absolute location understood by the catalog.
	URL(key string) string
}

// S3Config holds the connection settings for s3:// locations.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

// Open returns the store for location: s3://bucket/prefix selects the S3
// backend, anything else is a local directory.
func Open(location string, cfg S3Config) (Store, error) {
	if bucket, prefix, ok := ParseS3(location); ok {
		if bucket == "" {
			return nil, Error.New("missing bucket in %q", location)
		}
		return NewMinioStore(cfg, bucket, prefix)
	}
	return NewLocalStore(location)
}

// ParseS3 splits an s3:// (or s3a://) location into bucket and prefix.
func ParseS3(location string) (bucket, prefix string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(location, "s3://"):
		rest = strings.TrimPrefix(location, "s3://")
	case strings.HasPrefix(location, "s3a://"):
		rest = strings.TrimPrefix(location, "s3a://")
	default:
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/"), true
}

// Join builds a key from slash-separated parts.
func Join(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

func hidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// hiddenBelow reports whether any segment of key after prefix is hidden.
func hiddenBelow(prefix, key string) bool {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	for _, seg := range strings.Split(rel, "/") {
		if hidden(seg) {
			return true
		}
	}
	return false
}
