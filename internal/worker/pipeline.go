// Package worker implements the VAD/dialogue worker: a processing loop
// that claims QUEUED chunks and runs them through decode/VAD/stitch, a
// recovery loop that requeues stuck chunks, and a metrics logging task.
package worker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"github.com/salescontrol/audiocore/internal/conf"
	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/dialogue"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/salescontrol/audiocore/internal/metrics"
	"github.com/salescontrol/audiocore/internal/storage"
	"github.com/salescontrol/audiocore/internal/vad"
	"gorm.io/gorm"
)

// Pipeline processes one claimed chunk end to end: decode, classify,
// segment, then the atomic commit of segments + dialogue mutation + status.
type Pipeline struct {
	store   datastore.Store
	decoder vad.Decoder
	cfg     *conf.WorkerSettings
	dCfg    dialogue.Config
	segCfg  vad.SegmenterConfig
	metrics *metrics.Worker
	log     *slog.Logger

	// poolSize bounds concurrent per-device chunk processing; VAD and
	// decode are CPU-bound, so it defaults to the core count.
	poolSize int
}

// NewPipeline builds a Pipeline from worker settings.
func NewPipeline(store datastore.Store, cfg *conf.WorkerSettings, m *metrics.Worker) *Pipeline {
	return &Pipeline{
		store:   store,
		decoder: vad.OpusDecoder{},
		cfg:     cfg,
		dCfg: dialogue.Config{
			SilenceGap:  cfg.SilenceGap(),
			MaxDialogue: cfg.MaxDialogue(),
		},
		segCfg:   vad.DefaultSegmenterConfig(cfg.VADFrameMS),
		metrics:  m,
		log:      logging.For("worker.pipeline"),
		poolSize: runtime.NumCPU(),
	}
}

// ProcessBatch fans the claimed batch out to a bounded pool, one task per
// device. Within a device, chunks are processed sequentially in start_ts
// order — dialogue stitching depends on that order — while distinct
// devices proceed in parallel.
func (p *Pipeline) ProcessBatch(ctx context.Context, chunks []datastore.AudioChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DeviceID != chunks[j].DeviceID {
			return chunks[i].DeviceID < chunks[j].DeviceID
		}
		return chunks[i].StartTS.Before(chunks[j].StartTS)
	})

	byDevice := make(map[string][]datastore.AudioChunk)
	var order []string
	for _, c := range chunks {
		if _, seen := byDevice[c.DeviceID]; !seen {
			order = append(order, c.DeviceID)
		}
		byDevice[c.DeviceID] = append(byDevice[c.DeviceID], c)
	}

	sem := make(chan struct{}, p.poolSize)
	var wg sync.WaitGroup
	for _, deviceID := range order {
		deviceChunks := byDevice[deviceID]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			for _, chunk := range deviceChunks {
				if ctx.Err() != nil {
					return
				}
				if err := p.processOne(ctx, chunk); err != nil {
					p.log.Error("chunk processing failed", "chunk_id", chunk.ChunkID, "error", err)
				}
			}
		}()
	}
	wg.Wait()
}

// processOne runs the per-chunk pipeline: read (with retry/backoff),
// decode, classify, segment, then commit atomically under the device's
// advisory lock.
func (p *Pipeline) processOne(ctx context.Context, chunk datastore.AudioChunk) error {
	payload, err := p.readWithRetry(ctx, chunk.FilePath)
	if err != nil {
		return p.fail(ctx, chunk, "read_failed", err)
	}

	pcm, err := p.decoder.Decode(bytes.NewReader(payload), chunk.SampleRate, chunk.Channels)
	if err != nil {
		return p.fail(ctx, chunk, "decode_failed", err)
	}

	frameSamples := chunk.SampleRate * p.cfg.VADFrameMS / 1000
	classifier := vad.Classifier{Aggressiveness: p.cfg.VADAggressiveness}
	frames := classifier.Classify(pcm.Samples, frameSamples)
	segments := vad.Smooth(frames, p.segCfg)

	// The commit runs on a context detached from cancellation, so a
	// shutdown lets an in-flight commit finish within the grace window.
	commitCtx := context.WithoutCancel(ctx)
	return p.store.WithDeviceLock(commitCtx, chunk.DeviceID, func() error {
		return p.commit(commitCtx, chunk, segments)
	})
}

// readWithRetry reads the chunk's payload off shared storage, retrying
// transient I/O failures with doubling backoff.
func (p *Pipeline) readWithRetry(ctx context.Context, path string) ([]byte, error) {
	delay := time.Duration(p.cfg.RetryDelaySec) * time.Second
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		f, err := storage.ReadPayload(path)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, lastErr
}

// fail marks a chunk ERROR with a short reason; the chunk is not retried
// automatically once this happens.
func (p *Pipeline) fail(ctx context.Context, chunk datastore.AudioChunk, reason string, cause error) error {
	p.metrics.IncChunksError()
	if err := p.store.MarkChunkError(ctx, chunk.ChunkID, reason+": "+cause.Error()); err != nil {
		return apperr.New(err).Component("worker").Category(apperr.CategoryWorker).
			Context("chunk_id", chunk.ChunkID).Build()
	}
	return nil
}

// commit persists segments, dialogue mutations and the DONE flip inside
// one transaction. On failure the chunk remains in PROCESSING and is
// picked up by the recovery loop.
func (p *Pipeline) commit(ctx context.Context, chunk datastore.AudioChunk, segs []vad.Segment) error {
	return p.store.CommitChunk(ctx, func(tx *gorm.DB) error {
		rows := dialogue.SegmentsFromVAD(chunk.ChunkID, segs)
		if err := p.store.CreateSegments(ctx, tx, rows); err != nil {
			return err
		}
		abs := dialogue.ToAbsolute(chunk.StartTS, rows)
		stats, err := dialogue.Stitch(ctx, tx, p.store, chunk, abs, p.dCfg)
		if err != nil {
			return err
		}
		if err := p.store.MarkChunkDone(ctx, tx, chunk.ChunkID); err != nil {
			return err
		}
		p.metrics.AddSegmentsWritten(int64(len(rows)))
		p.metrics.AddDialogueStats(int64(stats.Opened), int64(stats.Closed), int64(stats.Extended))
		p.metrics.IncChunksDone()
		return nil
	})
}
