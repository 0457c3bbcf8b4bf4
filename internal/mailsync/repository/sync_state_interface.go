package repository

import "leadwire-backend/internal/mailsync/domain"

// SyncStateRepository is the per-user sync watermark store.
type SyncStateRepository interface {
	// Get returns nil, nil for a user that has never synced. That is a
	// valid state, not an error.
	Get(external string) (*domain.SyncState, error)

	// Upsert merges the set fields of the patch into the user's state,
	// creating the row if needed, and always stamps updated_at.
	Upsert(external string, patch domain.SyncStatePatch) error

	Clear(external string) error
}
