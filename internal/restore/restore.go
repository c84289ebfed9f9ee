// Package restore repairs the partition catalog from durable run artifacts:
// the latest manifest, a catalog snapshot or the catalog changelog.
package restore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/catalog"
	"github.com/RajaShyam/JET-movie-ratings/internal/changelog"
	"github.com/RajaShyam/JET-movie-ratings/internal/manifest"
	"github.com/RajaShyam/JET-movie-ratings/internal/snapshot"
)

type Restorer struct {
	cat       catalog.Catalog
	syncer    *catalog.Syncer
	manifests manifest.Reader
	snapshots *snapshot.FilesystemSnapshotter
	log       *zap.Logger
}

func NewRestorer(cat catalog.Catalog, syncer *catalog.Syncer, mr manifest.Reader, snaps *snapshot.FilesystemSnapshotter, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{
		cat:       cat,
		syncer:    syncer,
		manifests: mr,
		snapshots: snaps,
		log:       log.Named("restore"),
	}
}

type RestoreResult struct {
	Applied int
	Skipped int
	Error   error
}

// ResyncFromManifest re-registers the partitions of the latest manifest
// without rewriting any data.
func (r *Restorer) ResyncFromManifest(ctx context.Context) (catalog.Report, error) {
	m, err := r.manifests.ReadLatest(ctx)
	if err != nil {
		return catalog.Report{}, fmt.Errorf("read manifest: %w", err)
	}
	if m.Table != "" && m.Table != r.syncer.Table() {
		return catalog.Report{}, fmt.Errorf("manifest is for table %q, not %q", m.Table, r.syncer.Table())
	}
	targets := make([]catalog.Target, 0, len(m.Partitions))
	for _, e := range m.Partitions {
		targets = append(targets, catalog.Target{Key: e.Key(), Location: e.Location})
	}
	r.log.Info("resync from manifest",
		zap.String("batchId", m.BatchID),
		zap.String("runId", m.RunID),
		zap.Int("partitions", len(targets)))
	return r.syncer.Sync(ctx, targets), nil
}

// RestoreFromSnapshot re-registers every partition recorded in a snapshot.
// An empty id selects the snapshot named by the latest manifest.
func (r *Restorer) RestoreFromSnapshot(ctx context.Context, snapshotID string) (catalog.Report, error) {
	if r.snapshots == nil {
		return catalog.Report{}, errors.New("no snapshot directory configured")
	}
	if snapshotID == "" {
		m, err := r.manifests.ReadLatest(ctx)
		if err != nil {
			return catalog.Report{}, fmt.Errorf("read manifest: %w", err)
		}
		if m.SnapshotID == "" {
			return catalog.Report{}, errors.New("latest manifest has no snapshot")
		}
		snapshotID = m.SnapshotID
	}
	snap, err := r.snapshots.ReadSnapshot(snapshotID)
	if err != nil {
		return catalog.Report{}, err
	}
	targets := make([]catalog.Target, 0, len(snap.Partitions))
	for _, p := range snap.Partitions {
		targets = append(targets, catalog.Target{Key: p.Key(), Location: p.Location})
	}
	r.log.Info("restore from snapshot", zap.String("snapshot", snapshotID), zap.Int("partitions", len(targets)))
	return r.syncer.Sync(ctx, targets), nil
}

// ReplayChangelog re-applies logged catalog operations in file order, after
// skipping the first fromOffset events. An offset landing on the add of a
// drop/add pair starts at its drop. Events of other tables are skipped.
//
// Replay writes to the catalog directly rather than through the Syncer: the
// events already are the Syncer's output and must not be logged again.
func (r *Restorer) ReplayChangelog(ctx context.Context, changelogPath string, fromOffset int64) RestoreResult {
	events, err := changelog.ReadFile(changelogPath)
	if err != nil {
		return RestoreResult{Error: err}
	}
	fromOffset = pairStart(events, fromOffset)

	applied, skipped := 0, 0
	for i, e := range events {
		if int64(i) < fromOffset {
			continue
		}
		if err := ctx.Err(); err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: err}
		}
		if e.Table != r.syncer.Table() {
			skipped++
			continue
		}
		switch e.Op {
		case changelog.OpDrop:
			err = r.cat.DropPartitionIfExists(ctx, e.Table, e.Partition())
		case changelog.OpAdd:
			err = r.cat.AddPartition(ctx, e.Table, e.Partition(), e.Location)
		default:
			err = fmt.Errorf("unknown op %q", e.Op)
		}
		if err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("apply event %d: %w", i+1, err)}
		}
		applied++
	}
	r.log.Info("changelog replayed", zap.String("path", changelogPath), zap.Int("applied", applied), zap.Int("skipped", skipped))
	return RestoreResult{Applied: applied, Skipped: skipped}
}

func pairStart(events []changelog.Event, offset int64) int64 {
	if offset <= 0 {
		return 0
	}
	if offset >= int64(len(events)) {
		return offset
	}
	prev, cur := events[offset-1], events[offset]
	if cur.Op == changelog.OpAdd && prev.Op == changelog.OpDrop && prev.Key() == cur.Key() {
		return offset - 1
	}
	return offset
}
