// Package catalog maintains the partition catalog of the output table.
package catalog

import (
	"context"
	"fmt"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/state"
)

// Error is the error class for catalog backends.
var Error = errs.Class("catalog")

// Catalog is the metastore collaborator. Drop and add are idempotent.
type Catalog interface {
	DropPartitionIfExists(ctx context.Context, table string, key model.PartitionKey) error
	AddPartition(ctx context.Context, table string, key model.PartitionKey, location string) error
	// Partitions lists the present partitions of table in key order.
	Partitions(ctx context.Context, table string) ([]model.CatalogPartition, error)
	Close() error
}

// DropStatement renders the Hive DDL equivalent of DropPartitionIfExists.
func DropStatement(table string, key model.PartitionKey) string {
	return fmt.Sprintf("ALTER TABLE %s DROP IF EXISTS PARTITION (year=%d,month=%d)", table, key.Year, key.Month)
}

// AddStatement renders the Hive DDL equivalent of AddPartition.
func AddStatement(table string, key model.PartitionKey, location string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD IF NOT EXISTS PARTITION (year=%d,month=%d) LOCATION '%s'",
		table, key.Year, key.Month, location)
}

// Open returns the catalog for backend: memory, pebble, badger or sqlite.
func Open(backend, path string, log *zap.Logger) (Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("opening catalog", zap.String("backend", backend), zap.String("path", path))
	if backend == "sqlite" {
		return OpenSQL(path)
	}
	st, err := state.Open(backend, path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return NewStoreCatalog(st), nil
}
