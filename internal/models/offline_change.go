package models

import (
	"encoding/json"
	"time"
)

// ChangeAction is the kind of mutation an offline change represents.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// OfflineChange is the locally tracked half of an offline mutation, written
// alongside its PendingOperation in the same transaction. It backs
// optimistic display while the operation waits for the server.
type OfflineChange struct {
	ID       uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind     EntityKind   `gorm:"size:40;index" json:"kind"`
	ObjectID string       `gorm:"size:64;index" json:"object_id"`
	Action   ChangeAction `gorm:"size:10" json:"action"`

	Payload json.RawMessage `gorm:"type:text" json:"payload"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (OfflineChange) TableName() string {
	return "offline_changes"
}
