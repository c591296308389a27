package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/satchel-app/satchel/internal/models"
)

// AddPendingOperation appends a mutation to the queue with initial status
// pending and a zero retry count.
func (s *Store) AddPendingOperation(op *models.PendingOperation) error {
	op.Status = models.OperationPending
	op.RetryCount = 0
	return s.Create(op).Error
}

// PendingOperations returns queue entries in creation order, oldest first.
// Pass an empty status to list the whole queue.
func (s *Store) PendingOperations(status models.OperationStatus) ([]models.PendingOperation, error) {
	q := s.Model(&models.PendingOperation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var ops []models.PendingOperation
	if err := q.Order("created_at ASC, id ASC").Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

// GetOperation retrieves one queue entry by id.
func (s *Store) GetOperation(id uint) (*models.PendingOperation, error) {
	var op models.PendingOperation
	if err := s.First(&op, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

// SaveOperation persists status, retry count and last error updates.
func (s *Store) SaveOperation(op *models.PendingOperation) error {
	return s.Save(op).Error
}

// RemoveOperation deletes an acknowledged or resolved operation from the
// queue. This is the only way an operation leaves the store.
func (s *Store) RemoveOperation(id uint) error {
	return s.Delete(&models.PendingOperation{}, id).Error
}

// CountOperations returns the number of queue entries with the given
// status, or all entries when status is empty.
func (s *Store) CountOperations(status models.OperationStatus) (int64, error) {
	q := s.Model(&models.PendingOperation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// RequeueStalled returns operations demoted by the retry bound to pending
// status with a fresh retry counter. Reports how many were requeued.
func (s *Store) RequeueStalled() (int64, error) {
	result := s.Model(&models.PendingOperation{}).
		Where("status = ?", models.OperationStalled).
		Updates(map[string]any{
			"status":      models.OperationPending,
			"retry_count": 0,
			"last_error":  "",
		})
	return result.RowsAffected, result.Error
}
