package datastore

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"gorm.io/gorm"
)

func dbOrTx(s *gormStore, ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// CreateSegments bulk-inserts the speech segments produced for one chunk.
func (s *gormStore) CreateSegments(ctx context.Context, tx *gorm.DB, segs []SpeechSegment) error {
	if len(segs) == 0 {
		return nil
	}
	if err := dbOrTx(s, ctx, tx).Create(&segs).Error; err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "create_segments").Build()
	}
	return nil
}

// CreateDialogue inserts a new dialogue row.
func (s *gormStore) CreateDialogue(ctx context.Context, tx *gorm.DB, d *Dialogue) error {
	if err := dbOrTx(s, ctx, tx).Create(d).Error; err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "create_dialogue").Build()
	}
	return nil
}

// UpdateDialogueEndTS extends an open dialogue's end_ts.
func (s *gormStore) UpdateDialogueEndTS(ctx context.Context, tx *gorm.DB, dialogueID string, endTS time.Time) error {
	err := dbOrTx(s, ctx, tx).Model(&Dialogue{}).Where("dialogue_id = ?", dialogueID).
		Update("end_ts", endTS).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "update_dialogue_end_ts").Build()
	}
	return nil
}

// CreateDialogueSegment inserts one segment→dialogue link row.
func (s *gormStore) CreateDialogueSegment(ctx context.Context, tx *gorm.DB, link *DialogueSegment) error {
	if err := dbOrTx(s, ctx, tx).Create(link).Error; err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "create_dialogue_segment").Build()
	}
	return nil
}

// MarkChunkDone flips a chunk's status to DONE as the final step of the
// atomic per-chunk commit.
func (s *gormStore) MarkChunkDone(ctx context.Context, tx *gorm.DB, chunkID string) error {
	err := dbOrTx(s, ctx, tx).Model(&AudioChunk{}).Where("chunk_id = ?", chunkID).
		Update("status", ChunkDone).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "mark_chunk_done").Build()
	}
	return nil
}
