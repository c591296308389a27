package models

import (
	"encoding/json"
	"time"
)

// Conflict records a detected divergence between the locally cached version
// of a record and the server's current version. It is removed only after a
// resolution's side effects have completed.
type Conflict struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind       EntityKind      `gorm:"size:40;index" json:"kind"`
	ObjectID   string          `gorm:"size:64;index" json:"object_id"`
	ServerData json.RawMessage `gorm:"type:text" json:"server_data"`
	LocalData  json.RawMessage `gorm:"type:text" json:"local_data"`

	// OperationID links back to the queued operation whose replay was
	// rejected, when the conflict came from a 409. Pull-side conflicts
	// leave it nil.
	OperationID *uint `gorm:"index" json:"operation_id"`

	DetectedAt time.Time `gorm:"index" json:"detected_at"`
}

// TableName specifies the table name for GORM.
func (Conflict) TableName() string {
	return "conflicts"
}

// ServerFields returns the server snapshot as a field map.
func (c *Conflict) ServerFields() (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(c.ServerData, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// LocalFields returns the local snapshot as a field map.
func (c *Conflict) LocalFields() (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(c.LocalData, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
