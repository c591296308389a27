package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satchel-app/satchel/internal/models"
)

// Filter narrows GetAll to an equality match on a secondary index.
type Filter struct {
	SchoolID     *int64
	UpdatedSince *time.Time
}

// Put upserts a single record, keyed by primary key. Succeeds whether or
// not the record already exists.
func (s *Store) Put(kind models.EntityKind, rec *models.EntityRecord) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return s.Table(entityTable(kind)).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"school_id", "updated_at", "payload"}),
	}).Create(rec).Error
}

// PutBatch upserts a batch of records of one kind in a single statement.
func (s *Store) PutBatch(kind models.EntityKind, recs []*models.EntityRecord) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if len(recs) == 0 {
		return nil
	}
	return s.Table(entityTable(kind)).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"school_id", "updated_at", "payload"}),
	}).Create(&recs).Error
}

// Get retrieves one record by primary key. A missing record returns
// (nil, nil); only storage failures produce an error.
func (s *Store) Get(kind models.EntityKind, id string) (*models.EntityRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	var rec models.EntityRecord
	err := s.Table(entityTable(kind)).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetAll returns every record of a kind, optionally filtered by a secondary
// index. No ordering is guaranteed beyond what the index provides.
func (s *Store) GetAll(kind models.EntityKind, filter *Filter) ([]*models.EntityRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	q := s.Table(entityTable(kind))
	if filter != nil {
		if filter.SchoolID != nil {
			q = q.Where("school_id = ?", *filter.SchoolID)
		}
		if filter.UpdatedSince != nil {
			q = q.Where("updated_at > ?", *filter.UpdatedSince)
		}
	}
	var recs []*models.EntityRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteRecord removes one record of a kind by primary key.
func (s *Store) DeleteRecord(kind models.EntityKind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return s.Table(entityTable(kind)).Where("id = ?", id).Delete(&models.EntityRecord{}).Error
}

// ClearKind removes every record of a kind.
func (s *Store) ClearKind(kind models.EntityKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return s.Table(entityTable(kind)).Where("1 = 1").Delete(&models.EntityRecord{}).Error
}

// RenameRecord rewrites a cached record under a new primary key. Used when
// the server acknowledges an offline create and assigns the real id.
func (s *Store) RenameRecord(kind models.EntityKind, oldID string, rec *models.EntityRecord) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.DeleteRecord(kind, oldID); err != nil {
			return err
		}
		return tx.Put(kind, rec)
	})
}
