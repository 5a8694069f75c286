package datastore

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"gorm.io/gorm"
)

// GetDeviceDialogueState reads the open-dialogue marker for a device within
// tx, so callers observe a consistent view inside the commit transaction.
// Returns (nil, nil) if no dialogue is currently open for the device.
func (s *gormStore) GetDeviceDialogueState(ctx context.Context, tx *gorm.DB, deviceID string) (*DeviceDialogueState, error) {
	if tx == nil {
		tx = s.db.WithContext(ctx)
	}
	var st DeviceDialogueState
	err := tx.Where("device_id = ?", deviceID).First(&st).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "get_device_dialogue_state").Build()
	}
	return &st, nil
}

// UpsertDeviceDialogueState creates or replaces the open-dialogue marker.
func (s *gormStore) UpsertDeviceDialogueState(ctx context.Context, tx *gorm.DB, st *DeviceDialogueState) error {
	if tx == nil {
		tx = s.db.WithContext(ctx)
	}
	err := tx.Save(st).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "upsert_device_dialogue_state").Build()
	}
	return nil
}

// DeleteDeviceDialogueState forgets the open-dialogue marker. Closing a
// dialogue is nothing more than this delete; the dialogue row itself is
// final as written.
func (s *gormStore) DeleteDeviceDialogueState(ctx context.Context, tx *gorm.DB, deviceID string) error {
	if tx == nil {
		tx = s.db.WithContext(ctx)
	}
	err := tx.Where("device_id = ?", deviceID).Delete(&DeviceDialogueState{}).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "delete_device_dialogue_state").Build()
	}
	return nil
}

// SweepStaleDialogueStates closes DeviceDialogueState rows that no chunk
// commit has touched since olderThan, so a device that goes silent for
// hours does not hold a dialogue open. olderThan is compared against the
// wall-clock updated_at stamp, never against last_speech_end_ts: that
// field carries recording time, which lags wall clock by at least one
// chunk duration in this batch pipeline and arbitrarily more for
// historical replays — a recording-time comparison would sweep states
// that are still actively being extended.
func (s *gormStore) SweepStaleDialogueStates(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", olderThan).Delete(&DeviceDialogueState{})
	if res.Error != nil {
		return 0, apperr.New(res.Error).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "sweep_stale_dialogue_states").Build()
	}
	return res.RowsAffected, nil
}
