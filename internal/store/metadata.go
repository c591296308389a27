package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satchel-app/satchel/internal/models"
)

// GetMeta retrieves a sync metadata value. Missing keys return "".
func (s *Store) GetMeta(key string) (string, error) {
	var meta models.SyncMeta
	err := s.First(&meta, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetMeta sets a sync metadata value.
func (s *Store) SetMeta(key, value string) error {
	meta := models.SyncMeta{Key: key, Value: value}
	return s.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// LastSyncTime returns the time of the last successful sync pass. When none
// has been recorded the window defaults to 24 hours before now, so a fresh
// install still pulls a day of history.
func (s *Store) LastSyncTime() (time.Time, error) {
	value, err := s.GetMeta(models.SyncMetaLastSyncTime)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Now().Add(-24 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync time: %w", err)
	}
	return t, nil
}

// SetLastSyncTime records the completion time of a sync pass.
func (s *Store) SetLastSyncTime(t time.Time) error {
	return s.SetMeta(models.SyncMetaLastSyncTime, t.Format(time.RFC3339Nano))
}

// LastFullSync returns the time of the last full sync, or the epoch if one
// has never run.
func (s *Store) LastFullSync() (time.Time, error) {
	value, err := s.GetMeta(models.SyncMetaLastFullSync)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last full sync: %w", err)
	}
	return t, nil
}

// SetLastFullSync records the completion time of a full sync.
func (s *Store) SetLastFullSync(t time.Time) error {
	return s.SetMeta(models.SyncMetaLastFullSync, t.Format(time.RFC3339Nano))
}

// UserContext returns the stored auth/user context, or nil when logged out.
func (s *Store) UserContext() (*models.UserContext, error) {
	value, err := s.GetMeta(models.SyncMetaUserContext)
	if err != nil {
		return nil, err
	}
	return models.DecodeUserContext(value)
}

// SetUserContext persists the auth/user context.
func (s *Store) SetUserContext(ctx *models.UserContext) error {
	value, err := ctx.Encode()
	if err != nil {
		return fmt.Errorf("encode user context: %w", err)
	}
	return s.SetMeta(models.SyncMetaUserContext, value)
}

// ClearUserContext drops the stored credentials.
func (s *Store) ClearUserContext() error {
	return s.SetMeta(models.SyncMetaUserContext, "")
}

// SyncState returns the opaque server sync-state blob echoed on delta calls.
func (s *Store) SyncState() (string, error) {
	return s.GetMeta(models.SyncMetaSyncState)
}

// SetSyncState stores the opaque server sync-state blob.
func (s *Store) SetSyncState(state string) error {
	return s.SetMeta(models.SyncMetaSyncState, state)
}
