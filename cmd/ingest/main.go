package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/app"
	"github.com/RajaShyam/JET-movie-ratings/internal/config"
	"github.com/RajaShyam/JET-movie-ratings/internal/logging"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Ingest movie ratings and metadata into the partitioned ratings table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}
	if err := config.BindFlags(root.Flags(), v); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper) error {
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
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("shutdown", zap.Error(cerr))
		}
	}()
	a.ServeMetrics()
	defer a.FlushMetrics(context.Background())

	ing, err := a.Ingestion()
	if err != nil {
		log.Error("setup failed", zap.Error(err))
		return err
	}
	sum, err := ing.Process(ctx)
	if err != nil {
		log.Error("ingestion failed", zap.String("mode", cfg.Mode), zap.Error(err))
		return err
	}
	sum.Print(os.Stdout)
	return nil
}
