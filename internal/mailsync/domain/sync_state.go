package domain

import "time"

// SyncState is the per-user sync watermark. DeltaCursor is a provider-opaque
// string: it is stored and replayed verbatim, never parsed. Empty means the
// user has no usable cursor and the next fetch starts from scratch.
type SyncState struct {
	ID                 string     `json:"-" gorm:"primaryKey"`
	UserID             string     `json:"user_id" gorm:"uniqueIndex;not null"`
	DeltaCursor        string     `json:"-" gorm:"type:text"`
	SubscriptionID     string     `json:"subscription_id"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SyncStatePatch is a partial update: nil fields are left untouched,
// set fields win wholesale (last writer wins per field).
type SyncStatePatch struct {
	DeltaCursor        *string
	SubscriptionID     *string
	SubscriptionExpiry *time.Time
	LastSyncedAt       *time.Time
	LastError          *string
}
