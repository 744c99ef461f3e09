package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlowicki/chartwell/internal/config"
	"github.com/mlowicki/chartwell/internal/health"
	"github.com/mlowicki/chartwell/internal/store"
	"github.com/mlowicki/chartwell/internal/sync"
)

const watchDebounce = 2 * time.Second

func newSyncCommand(cfg config.Config) *cobra.Command {
	var (
		daysBack int
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import health export files into the local store and rebuild aggregates.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := runSync(cmd.Context(), cfg, st, daysBack); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchExports(cmd.Context(), cfg, st, daysBack)
		},
	}

	cmd.Flags().IntVar(&daysBack, "days", 30, "how many days of samples to import")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-sync when new export files land")
	return cmd
}

func runSync(ctx context.Context, cfg config.Config, st *store.Store, daysBack int) error {
	now := time.Now()
	from := now.AddDate(0, 0, -daysBack)

	source := health.NewExportDir(cfg.ExportDir)
	syncer := sync.NewSyncer(source, st, cfg.PatientID)

	for _, metric := range cfg.Metrics {
		res, err := syncer.SyncQuantity(ctx, metric.SampleType, metric.FieldID, from, now)
		if err != nil {
			return fmt.Errorf("syncing %s: %w", metric.SampleType, err)
		}
		fmt.Printf("%-12s fetched %d, new %d, duplicates %d\n",
			metric.SampleType, res.Fetched, res.Inserted, res.Duplicates)

		if err := st.RebuildAggregates(ctx, metric.FieldID, metric.MetricID); err != nil {
			return fmt.Errorf("rebuilding %s aggregates: %w", metric.MetricID, err)
		}
	}

	res, err := syncer.SyncSleep(ctx, from, now)
	if err != nil {
		return fmt.Errorf("syncing sleep: %w", err)
	}
	fmt.Printf("%-12s fetched %d, new %d, duplicates %d\n", "sleep", res.Fetched, res.Inserted, res.Duplicates)
	return nil
}

func watchExports(ctx context.Context, cfg config.Config, st *store.Store, daysBack int) error {
	drops := make(chan struct{}, 1)
	watcher, err := sync.NewWatcher(cfg.ExportDir, watchDebounce, func() {
		select {
		case drops <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("watching %s for new exports\n", cfg.ExportDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			return nil
		case <-drops:
			if err := runSync(ctx, cfg, st, daysBack); err != nil {
				fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
			}
		}
	}
}
