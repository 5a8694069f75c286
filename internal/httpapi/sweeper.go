package httpapi

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/datastore"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/salescontrol/audiocore/internal/storage"
)

// orphanMaxAge is how old a file must be before the sweep may remove it;
// younger files may belong to an upload whose DB commit hasn't landed yet.
const orphanMaxAge = time.Hour

// sweepInterval paces the orphan sweep.
const sweepInterval = 15 * time.Minute

// OrphanSweeper periodically deletes audio files left behind when a DB
// commit failed after the payload was written.
type OrphanSweeper struct {
	store   datastore.Store
	baseDir string
}

// NewOrphanSweeper builds a sweeper over the ingest storage directory.
func NewOrphanSweeper(store datastore.Store, baseDir string) *OrphanSweeper {
	return &OrphanSweeper{store: store, baseDir: baseDir}
}

// Run blocks until ctx is cancelled, sweeping on a fixed interval.
func (s *OrphanSweeper) Run(ctx context.Context) {
	log := logging.For("ingest.sweeper")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := storage.SweepOrphans(ctx, s.baseDir, orphanMaxAge, func(path string) bool {
				exists, err := s.store.ChunkExistsByFilePath(ctx, path)
				if err != nil {
					// Keep the file when in doubt.
					return true
				}
				return exists
			})
			if err != nil {
				log.Error("orphan sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("removed orphan files", "count", removed)
			}
		}
	}
}
