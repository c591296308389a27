package store

import (
	"errors"
	"fmt"

	"github.com/satchel-app/satchel/internal/log"
	"github.com/satchel-app/satchel/internal/models"
)

// ClearAllData wipes every store: entity tables, the pending queue,
// conflicts, offline changes, and sync metadata. Used on logout. The wipe
// is best-effort: a failing table is logged and skipped so the remaining
// stores are still cleared. The joined error reports what failed.
func (s *Store) ClearAllData() error {
	var errs []error

	for _, kind := range models.AllKinds() {
		if err := s.ClearKind(kind); err != nil {
			log.Errorf("wipe: clear %s: %v", kind, err)
			errs = append(errs, fmt.Errorf("clear %s: %w", kind, err))
		}
	}

	aux := []struct {
		name  string
		model any
	}{
		{"pending_operations", &models.PendingOperation{}},
		{"conflicts", &models.Conflict{}},
		{"offline_changes", &models.OfflineChange{}},
		{"sync_meta", &models.SyncMeta{}},
	}
	for _, table := range aux {
		if err := s.Where("1 = 1").Delete(table.model).Error; err != nil {
			log.Errorf("wipe: clear %s: %v", table.name, err)
			errs = append(errs, fmt.Errorf("clear %s: %w", table.name, err))
		}
	}

	return errors.Join(errs...)
}
