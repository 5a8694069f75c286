// The ingest binary terminates recorder uploads, exposes the device admin
// and internal chunk-fetch endpoints, and runs the orphan-file sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salescontrol/audiocore/internal/conf"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/httpapi"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "audiocore-ingest",
		Short: "Audio chunk ingest service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := conf.LoadIngestSettings()
	if err != nil {
		return err
	}
	logging.Init(os.Getenv("LOG_LEVEL"))
	log := logging.For("ingest")

	store, err := datastore.Open(settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := httpapi.New(store, settings)
	sweeper := httpapi.NewOrphanSweeper(store, settings.AudioStorageDir)
	go sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown did not complete cleanly", "error", err)
		return err
	}
	log.Info("ingest service stopped")
	return nil
}
