package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/salescontrol/audiocore/internal/conf"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/salescontrol/audiocore/internal/metrics"
)

// GraceWindow bounds how long Run waits for in-flight chunk processing to
// finish its commit transaction after ctx is cancelled. A chunk whose
// grace window expires is picked up again by
// the recovery loop once STUCK_TIMEOUT_SEC elapses.
const GraceWindow = 30 * time.Second

// Worker owns the three cooperating tasks of the chunk pipeline:
// the processing loop, the recovery loop, and the metrics logging task.
type Worker struct {
	store    datastore.Store
	cfg      *conf.WorkerSettings
	pipeline *Pipeline
	metrics  *metrics.Worker
	log      *slog.Logger
}

// New builds a Worker ready to Run.
func New(store datastore.Store, cfg *conf.WorkerSettings) *Worker {
	m := metrics.NewWorker()
	return &Worker{
		store:    store,
		cfg:      cfg,
		pipeline: NewPipeline(store, cfg, m),
		metrics:  m,
		log:      logging.For("worker"),
	}
}

// Metrics exposes the worker's counter set, for the /metrics endpoint.
func (w *Worker) Metrics() *metrics.Worker { return w.metrics }

// Run starts the processing, recovery and metrics loops and blocks until
// ctx is cancelled, then waits up to GraceWindow for in-flight chunk
// processing before returning.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		w.processingLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		w.recoveryLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		w.metricsLoop(ctx)
	}()

	<-ctx.Done()
	w.log.Info("shutdown signal received, waiting for in-flight work", "grace_window", GraceWindow)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker stopped cleanly")
	case <-time.After(GraceWindow):
		w.log.Warn("grace window expired with work still in flight; any stuck chunks will be recovered later")
	}
	return nil
}

// processingLoop claims up to BATCH_SIZE chunks every POLL_INTERVAL_SEC and
// runs them through the pipeline.
func (w *Worker) processingLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.claimAndProcess(ctx)
		}
	}
}

func (w *Worker) claimAndProcess(ctx context.Context) {
	chunks, err := w.store.ClaimChunks(ctx, w.cfg.BatchSize)
	if err != nil {
		w.log.Error("claim failed", "error", err)
		return
	}
	if len(chunks) == 0 {
		return
	}
	w.metrics.AddChunksClaimed(int64(len(chunks)))
	w.log.Debug("claimed chunks", "count", len(chunks))
	w.pipeline.ProcessBatch(ctx, chunks)
}

// recoveryLoop requeues chunks stuck in PROCESSING past STUCK_TIMEOUT_SEC
// every RECOVERY_INTERVAL_SEC.
func (w *Worker) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.RecoveryIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(w.cfg.StuckTimeoutSec) * time.Second)
			n, err := w.store.RequeueStuckChunks(ctx, cutoff)
			if err != nil {
				w.log.Error("recovery sweep failed", "error", err)
				continue
			}
			if n > 0 {
				w.metrics.AddChunksRequeued(n)
				w.log.Info("requeued stuck chunks", "count", n)
			}
			// Also close DeviceDialogueState rows no commit has touched
			// for the stuck window. The cutoff is wall-clock commit age,
			// not the silence gap: a backlogged queue can legitimately go
			// longer than SILENCE_GAP_SEC between commits of adjacent
			// chunks, but after STUCK_TIMEOUT_SEC any chunk that could
			// still extend the state has been requeued or failed.
			staleCutoff := time.Now().Add(-time.Duration(w.cfg.StuckTimeoutSec) * time.Second)
			if m, err := w.store.SweepStaleDialogueStates(ctx, staleCutoff); err != nil {
				w.log.Error("stale dialogue state sweep failed", "error", err)
			} else if m > 0 {
				w.log.Debug("swept stale dialogue states", "count", m)
			}
		}
	}
}

// metricsLoop logs a counter snapshot every METRICS_LOG_INTERVAL_SEC;
// the underlying Prometheus counters are cumulative for /metrics.
func (w *Worker) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.MetricsLogIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := w.metrics.Snapshot()
			w.log.Info("worker metrics",
				"chunks_claimed", snap.ChunksClaimed,
				"chunks_done", snap.ChunksDone,
				"chunks_error", snap.ChunksError,
				"chunks_requeued", snap.ChunksRequeued,
				"segments_written", snap.SegmentsWritten,
				"dialogues_opened", snap.DialoguesOpened,
				"dialogues_closed", snap.DialoguesClosed,
				"dialogues_extended", snap.DialoguesExtended,
			)
		}
	}
}
