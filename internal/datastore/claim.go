package datastore

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimChunks is the worker's claim statement: select up to
// batchSize QUEUED rows, skipping rows locked by a concurrent worker,
// ordered by created_at, and flip them to PROCESSING with
// processing_started_at = NOW() in the same transaction. This gives
// at-most-one-worker-at-a-time per chunk without an external lock service.
func (s *gormStore) ClaimChunks(ctx context.Context, batchSize int) ([]AudioChunk, error) {
	var claimed []AudioChunk
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []AudioChunk
		q := tx.Where("status = ?", ChunkQueued).Order("created_at").Limit(batchSize)
		if s.dialect == DialectMySQL {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ChunkID
		}
		now := time.Now().UTC()
		err := tx.Model(&AudioChunk{}).Where("chunk_id IN ?", ids).Updates(map[string]any{
			"status":                ChunkProcessing,
			"processing_started_at": now,
		}).Error
		if err != nil {
			return err
		}
		for i := range candidates {
			candidates[i].Status = ChunkProcessing
			candidates[i].ProcessingStartedAt = &now
		}
		claimed = candidates
		return nil
	})
	if err != nil {
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "claim_chunks").Build()
	}
	return claimed, nil
}

// RequeueStuckChunks is the recovery loop's core statement:
// reset chunks stuck in PROCESSING past the stuck timeout back to QUEUED,
// clearing processing_started_at. Safe to run concurrently because the
// atomic per-chunk commit in CommitChunk guarantees a recovered chunk
// produced zero segments/dialogue updates.
func (s *gormStore) RequeueStuckChunks(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&AudioChunk{}).
		Where("status = ? AND processing_started_at < ?", ChunkProcessing, olderThan).
		Updates(map[string]any{
			"status":                ChunkQueued,
			"processing_started_at": nil,
		})
	if res.Error != nil {
		return 0, apperr.New(res.Error).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "requeue_stuck_chunks").Build()
	}
	return res.RowsAffected, nil
}
