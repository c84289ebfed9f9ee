package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

const fileName = "catalog.json"

// Source lists the present partitions of a table.
type Source interface {
	Partitions(ctx context.Context, table string) ([]model.CatalogPartition, error)
}

// Snapshot is the catalog state of one table at a point in time.
type Snapshot struct {
	ID         string                   `json:"id"`
	Table      string                   `json:"table"`
	CreatedAt  int64                    `json:"createdAt"`
	Partitions []model.CatalogPartition `json:"partitions"`
}

type Snapshotter interface {
	WriteSnapshot(ctx context.Context, snapshotID string, src Source) error
}

type FilesystemSnapshotter struct {
	baseDir string
	table   string
}

func NewFilesystemSnapshotter(baseDir, table string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir, table: table}
}

func (f *FilesystemSnapshotter) WriteSnapshot(ctx context.Context, snapshotID string, src Source) error {
	parts, err := src.Partitions(ctx, f.table)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	if parts == nil {
		parts = []model.CatalogPartition{}
	}
	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(Snapshot{
		ID:         snapshotID,
		Table:      f.table,
		CreatedAt:  time.Now().UTC().Unix(),
		Partitions: parts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp := filepath.Join(dir, "."+fileName+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, fileName)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func (f *FilesystemSnapshotter) ReadSnapshot(snapshotID string) (Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(f.baseDir, snapshotID, fileName))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}
