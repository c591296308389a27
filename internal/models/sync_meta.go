package models

import (
	"encoding/json"
	"time"
)

// SyncMeta stores sync metadata as key-value pairs.
type SyncMeta struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (SyncMeta) TableName() string {
	return "sync_meta"
}

// Sync metadata keys.
const (
	SyncMetaLastSyncTime = "last_sync_time"
	SyncMetaLastFullSync = "last_full_sync"
	SyncMetaUserContext  = "user_context"
	SyncMetaSyncState    = "sync_state"
)

// UserContext is the auth/user context a sync pass runs under. It is
// serialized into sync metadata and wiped on logout.
type UserContext struct {
	UserID   int64  `json:"user_id"`
	SchoolID int64  `json:"school_id"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// HasTenant reports whether the context is scoped to one school. The
// super-admin context is not; its delta pulls omit the school filter.
func (c *UserContext) HasTenant() bool {
	return c.SchoolID != 0
}

// Encode serializes the context for metadata storage.
func (c *UserContext) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUserContext parses a stored user context. An empty value returns
// nil without error: absent credentials are a valid state.
func DecodeUserContext(value string) (*UserContext, error) {
	if value == "" {
		return nil, nil
	}
	var ctx UserContext
	if err := json.Unmarshal([]byte(value), &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}
