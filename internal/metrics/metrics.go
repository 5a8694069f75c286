// Package metrics exposes the worker's counters as a tagged record with
// atomic increment semantics and as Prometheus series for scraping.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker holds the VAD/dialogue worker's counters. All fields are updated
// via atomic.AddInt64; Snapshot reads them without locking. Its lifecycle
// is the process.
type Worker struct {
	chunksClaimed   int64
	chunksDone      int64
	chunksError     int64
	chunksRequeued  int64
	segmentsWritten int64
	dialoguesOpened int64
	dialoguesClosed int64
	dialoguesExtend int64

	registry *prometheus.Registry

	promChunksClaimed   prometheus.Counter
	promChunksDone      prometheus.Counter
	promChunksError     prometheus.Counter
	promChunksRequeued  prometheus.Counter
	promSegmentsWritten prometheus.Counter
	promDialoguesOpened prometheus.Counter
	promDialoguesClosed prometheus.Counter
	promDialoguesExtend prometheus.Counter
}

// NewWorker builds the counter set against its own Prometheus registry so
// multiple Worker instances (one per test, usually) never collide on the
// default registry.
func NewWorker() *Worker {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	ns := "audiocore_worker"
	return &Worker{
		registry: reg,
		promChunksClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "chunks_claimed_total", Help: "Chunks claimed from the QUEUED state.",
		}),
		promChunksDone: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "chunks_done_total", Help: "Chunks successfully committed to DONE.",
		}),
		promChunksError: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "chunks_error_total", Help: "Chunks that reached the ERROR state.",
		}),
		promChunksRequeued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "chunks_requeued_total", Help: "Chunks reset from PROCESSING to QUEUED by the recovery loop.",
		}),
		promSegmentsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "segments_written_total", Help: "Speech segments persisted.",
		}),
		promDialoguesOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "dialogues_opened_total", Help: "New dialogues opened.",
		}),
		promDialoguesClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "dialogues_closed_total", Help: "Dialogues closed by a silence gap or max-duration split.",
		}),
		promDialoguesExtend: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "dialogues_extended_total", Help: "Existing dialogues extended by a new segment.",
		}),
	}
}

// Registry exposes the backing registry for the /metrics endpoint.
func (m *Worker) Registry() *prometheus.Registry { return m.registry }

func (m *Worker) AddChunksClaimed(n int64) {
	atomic.AddInt64(&m.chunksClaimed, n)
	m.promChunksClaimed.Add(float64(n))
}

func (m *Worker) IncChunksDone() {
	atomic.AddInt64(&m.chunksDone, 1)
	m.promChunksDone.Inc()
}

func (m *Worker) IncChunksError() {
	atomic.AddInt64(&m.chunksError, 1)
	m.promChunksError.Inc()
}

func (m *Worker) AddChunksRequeued(n int64) {
	atomic.AddInt64(&m.chunksRequeued, n)
	m.promChunksRequeued.Add(float64(n))
}

func (m *Worker) AddSegmentsWritten(n int64) {
	atomic.AddInt64(&m.segmentsWritten, n)
	m.promSegmentsWritten.Add(float64(n))
}

// AddDialogueStats records one chunk commit's dialogue mutations.
func (m *Worker) AddDialogueStats(opened, closed, extended int64) {
	if opened > 0 {
		atomic.AddInt64(&m.dialoguesOpened, opened)
		m.promDialoguesOpened.Add(float64(opened))
	}
	if closed > 0 {
		atomic.AddInt64(&m.dialoguesClosed, closed)
		m.promDialoguesClosed.Add(float64(closed))
	}
	if extended > 0 {
		atomic.AddInt64(&m.dialoguesExtend, extended)
		m.promDialoguesExtend.Add(float64(extended))
	}
}

// Snapshot is a point-in-time, log-friendly view of the counters.
type Snapshot struct {
	ChunksClaimed     int64
	ChunksDone        int64
	ChunksError       int64
	ChunksRequeued    int64
	SegmentsWritten   int64
	DialoguesOpened   int64
	DialoguesClosed   int64
	DialoguesExtended int64
}

// Snapshot reads the current counter values.
func (m *Worker) Snapshot() Snapshot {
	return Snapshot{
		ChunksClaimed:     atomic.LoadInt64(&m.chunksClaimed),
		ChunksDone:        atomic.LoadInt64(&m.chunksDone),
		ChunksError:       atomic.LoadInt64(&m.chunksError),
		ChunksRequeued:    atomic.LoadInt64(&m.chunksRequeued),
		SegmentsWritten:   atomic.LoadInt64(&m.segmentsWritten),
		DialoguesOpened:   atomic.LoadInt64(&m.dialoguesOpened),
		DialoguesClosed:   atomic.LoadInt64(&m.dialoguesClosed),
		DialoguesExtended: atomic.LoadInt64(&m.dialoguesExtend),
	}
}
