package models

import (
	"encoding/json"
	"time"
)

// OperationStatus is the queue state of a pending operation.
type OperationStatus string

const (
	// OperationPending marks operations awaiting replay.
	OperationPending OperationStatus = "pending"
	// OperationConflicted marks operations the server rejected with 409.
	// They stay queued until their conflict is resolved.
	OperationConflicted OperationStatus = "conflicted"
	// OperationStalled marks operations that exceeded the retry bound.
	// They are skipped by the pass but never deleted; an explicit requeue
	// returns them to pending.
	OperationStalled OperationStatus = "stalled"
)

// PendingOperation is a queued mutation not yet acknowledged by the server.
// Operations are replayed in CreatedAt order and removed only after the
// server confirms success or their conflict is explicitly resolved.
type PendingOperation struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind       EntityKind      `gorm:"size:40;index" json:"kind"`
	Method     string          `gorm:"size:10" json:"method"`
	Endpoint   string          `gorm:"size:500" json:"endpoint"`
	Payload    json.RawMessage `gorm:"type:text" json:"payload"`
	Status     OperationStatus `gorm:"size:20;index;default:pending" json:"status"`
	RetryCount int             `gorm:"default:0" json:"retry_count"`
	LastError  string          `gorm:"size:1000" json:"last_error"`

	// LocalID links an offline create to its temporary client id so the
	// cache row can be rewritten under the server-assigned id on ack.
	LocalID string `gorm:"size:64;index" json:"local_id"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// IsCreate reports whether the operation creates a new record.
func (op *PendingOperation) IsCreate() bool {
	return op.Method == "POST"
}
