package store

import (
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// AddOfflineChange records the locally tracked half of an offline mutation.
func (s *Store) AddOfflineChange(change *models.OfflineChange) error {
	return s.Create(change).Error
}

// OfflineChanges returns tracked changes in creation order. Pass an empty
// kind to list changes across all kinds.
func (s *Store) OfflineChanges(kind models.EntityKind) ([]models.OfflineChange, error) {
	q := s.Model(&models.OfflineChange{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var changes []models.OfflineChange
	if err := q.Order("created_at ASC, id ASC").Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// HasOfflineChanges reports whether a record has local changes the server
// has not acknowledged. Drives pull-side conflict detection: a fresher
// server record only becomes a conflict when this is true.
func (s *Store) HasOfflineChanges(kind models.EntityKind, objectID string) (bool, error) {
	var n int64
	err := s.Model(&models.OfflineChange{}).
		Where("kind = ? AND object_id = ?", kind, objectID).
		Count(&n).Error
	return n > 0, err
}

// RemoveOfflineChangesForObject drops tracked changes once the server has
// acknowledged the record.
func (s *Store) RemoveOfflineChangesForObject(kind models.EntityKind, objectID string) error {
	return s.Where("kind = ? AND object_id = ?", kind, objectID).
		Delete(&models.OfflineChange{}).Error
}

// RemoveOfflineChangesBefore drops tracked changes no newer than cutoff.
// An acknowledged queue operation only vouches for changes that existed
// when it was captured; later changes keep the record marked dirty.
func (s *Store) RemoveOfflineChangesBefore(kind models.EntityKind, objectID string, cutoff time.Time) error {
	return s.Where("kind = ? AND object_id = ? AND created_at <= ?", kind, objectID, cutoff).
		Delete(&models.OfflineChange{}).Error
}

// ReassignOfflineObject moves tracked changes from a temporary local id to
// the server-assigned id.
func (s *Store) ReassignOfflineObject(kind models.EntityKind, localID, serverID string) error {
	return s.Model(&models.OfflineChange{}).
		Where("kind = ? AND object_id = ?", kind, localID).
		Update("object_id", serverID).Error
}
