package datastore

import (
	"context"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"gorm.io/gorm"
)

func (s *gormStore) CreateDevice(ctx context.Context, d *Device) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "create_device").Build()
	}
	return nil
}

func (s *gormStore) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var d Device
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&d).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "get_device").Build()
	}
	return &d, nil
}

func (s *gormStore) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := s.db.WithContext(ctx).Order("created_at").Find(&devices).Error; err != nil {
		return nil, apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "list_devices").Build()
	}
	return devices, nil
}

func (s *gormStore) SetDeviceEnabled(ctx context.Context, deviceID string, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&Device{}).Where("device_id = ?", deviceID).Update("enabled", enabled)
	if res.Error != nil {
		return apperr.New(res.Error).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "set_device_enabled").Build()
	}
	if res.RowsAffected == 0 {
		return apperr.Newf("device not found").Component("datastore").
			Category(apperr.CategoryValidation).Context("device_id", deviceID).Build()
	}
	return nil
}

func (s *gormStore) TouchDeviceLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Device{}).Where("device_id = ?", deviceID).
		Update("last_seen_at", at).Error
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "touch_device_last_seen").Build()
	}
	return nil
}
