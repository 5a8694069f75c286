// The worker binary claims queued audio chunks, runs voice-activity
// detection and dialogue stitching over them, and recovers chunks stuck
// mid-processing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/salescontrol/audiocore/internal/conf"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/salescontrol/audiocore/internal/worker"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "audiocore-worker",
		Short: "Voice-activity and dialogue worker",
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
	settings, err := conf.LoadWorkerSettings()
	if err != nil {
		return err
	}
	logging.Init(settings.LogLevel)
	log := logging.For("worker.main")

	store, err := datastore.Open(settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(store, settings)

	var metricsSrv *http.Server
	if settings.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(w.Metrics().Registry(), promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:              ":" + settings.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	err = w.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return err
}
