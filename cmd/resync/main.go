package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/app"
	"github.com/RajaShyam/JET-movie-ratings/internal/catalog"
	"github.com/RajaShyam/JET-movie-ratings/internal/config"
	"github.com/RajaShyam/JET-movie-ratings/internal/logging"
)

type options struct {
	from       string
	snapshotID string
	changelog  string
	offset     int64
}

func main() {
	v := viper.New()
	var opts options
	root := &cobra.Command{
		Use:   "resync",
		Short: "Re-register catalog partitions from the manifest, a snapshot or the changelog",
		Long: "resync repairs the partition catalog without rewriting data. " +
			"--from manifest re-runs the sync for the latest written batch, " +
			"--from snapshot re-registers a saved catalog snapshot and " +
			"--from changelog replays logged catalog operations.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, opts)
		},
	}
	flags := root.Flags()
	flags.StringVar(&opts.from, "from", "manifest", "recovery source: manifest|snapshot|changelog")
	flags.StringVar(&opts.snapshotID, "snapshot-id", "", "snapshot to restore; empty uses the latest manifest's")
	flags.StringVar(&opts.changelog, "changelog-file", "", "changelog to replay; empty uses the configured one")
	flags.Int64Var(&opts.offset, "offset", 0, "changelog events to skip before replaying")
	if err := config.BindFlags(flags, v); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper, opts options) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	defer a.FlushMetrics(context.Background())

	runID := uuid.NewString()
	r, err := a.Restorer(runID)
	if err != nil {
		return err
	}
	log = log.With(zap.String("runId", runID), zap.String("from", opts.from))

	var report catalog.Report
	switch opts.from {
	case "manifest":
		report, err = r.ResyncFromManifest(ctx)
	case "snapshot":
		report, err = r.RestoreFromSnapshot(ctx, opts.snapshotID)
	case "changelog":
		path := opts.changelog
		if path == "" {
			path = a.ChangelogPath
		}
		if path == "" {
			return fmt.Errorf("no changelog file configured")
		}
		res := r.ReplayChangelog(ctx, path, opts.offset)
		if res.Error != nil {
			log.Error("replay failed", zap.Int("applied", res.Applied), zap.Error(res.Error))
			return res.Error
		}
		fmt.Printf("replayed %d events (%d for other tables)\n", res.Applied, res.Skipped)
		return nil
	default:
		return fmt.Errorf("unknown source %q", opts.from)
	}
	if err != nil {
		log.Error("resync failed", zap.Error(err))
		return err
	}
	fmt.Printf("synced %d partitions, %d failed\n", len(report.Synced), len(report.Failures))
	return report.Err()
}
