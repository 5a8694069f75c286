package datastore

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"gorm.io/gorm"
)

func (s *gormStore) CreateChunk(ctx context.Context, c *AudioChunk) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "create_chunk").Build()
	}
	return nil
}

// FindIdempotentChunk looks for a chunk row that already exists for the
// same (device_id, start_ts) within `window`, for upload retry collapse.
// The caller is additionally responsible for comparing the file hash
// before treating this as a duplicate (internal/httpapi/upload.go).
func (s *gormStore) FindIdempotentChunk(ctx context.Context, deviceID string, startTS time.Time, window time.Duration) (*AudioChunk, error) {
	var c AudioChunk
	lo := startTS.Add(-window)
	hi := startTS.Add(window)
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND start_ts BETWEEN ? AND ?", deviceID, lo, hi).
		Order("created_at DESC").
		First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "find_idempotent_chunk").Build()
	}
	return &c, nil
}

func (s *gormStore) GetChunk(ctx context.Context, chunkID string) (*AudioChunk, error) {
	var c AudioChunk
	err := s.db.WithContext(ctx).Where("chunk_id = ?", chunkID).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "get_chunk").Build()
	}
	return &c, nil
}

// ChunkExistsByFilePath reports whether any chunk row references filePath,
// for the orphan-file sweep: a file with no row is fair game for cleanup.
func (s *gormStore) ChunkExistsByFilePath(ctx context.Context, filePath string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AudioChunk{}).Where("file_path = ?", filePath).Count(&count).Error
	if err != nil {
		return false, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "chunk_exists_by_file_path").Build()
	}
	return count > 0, nil
}

// MarkChunkError sets a chunk to ERROR with a short reason;
// the chunk is not retried automatically after this.
func (s *gormStore) MarkChunkError(ctx context.Context, chunkID, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	err := s.db.WithContext(ctx).Model(&AudioChunk{}).Where("chunk_id = ?", chunkID).
		Updates(map[string]any{"status": ChunkError, "error_reason": reason}).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "mark_chunk_error").Build()
	}
	return nil
}

// CommitChunk runs fn inside a single DB transaction, for the atomic
// per-chunk commit: segments, dialogue
// mutations, device dialogue state, and the status flip to DONE all
// succeed or all roll back together.
func (s *gormStore) CommitChunk(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "commit_chunk").Build()
	}
	return nil
}
