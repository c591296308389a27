package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/satchel-app/satchel/internal/models"
)

// AddConflict records a detected divergence for later resolution.
func (s *Store) AddConflict(c *models.Conflict) error {
	return s.Create(c).Error
}

// Conflicts returns all outstanding conflicts in detection order.
func (s *Store) Conflicts() ([]models.Conflict, error) {
	var conflicts []models.Conflict
	if err := s.Order("detected_at ASC, id ASC").Find(&conflicts).Error; err != nil {
		return nil, err
	}
	return conflicts, nil
}

// ConflictsForObject returns outstanding conflicts for one record.
func (s *Store) ConflictsForObject(kind models.EntityKind, objectID string) ([]models.Conflict, error) {
	var conflicts []models.Conflict
	err := s.Where("kind = ? AND object_id = ?", kind, objectID).
		Order("detected_at ASC, id ASC").Find(&conflicts).Error
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

// GetConflict retrieves one conflict by id.
func (s *Store) GetConflict(id uint) (*models.Conflict, error) {
	var c models.Conflict
	if err := s.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// RemoveConflict deletes a resolved conflict.
func (s *Store) RemoveConflict(id uint) error {
	return s.Delete(&models.Conflict{}, id).Error
}

// CountConflicts returns the number of outstanding conflicts.
func (s *Store) CountConflicts() (int64, error) {
	var n int64
	err := s.Model(&models.Conflict{}).Count(&n).Error
	return n, err
}
