package repository

import "leadwire-backend/internal/mailsync/domain"

// MessageRepository is the mirrored-message store. All writes are keyed on
// the provider message id and are insert-or-update, never insert-or-fail.
type MessageRepository interface {
	// ExistingIDs reports which of the given provider message ids already
	// have a row. Used before an upsert to learn which messages are new,
	// since the upsert itself does not report that.
	ExistingIDs(messageIDs []string) (map[string]struct{}, error)

	// BulkUpsert inserts or updates all messages in one statement keyed on
	// message_id.
	BulkUpsert(messages []*domain.Message) error

	// UpdateBody sets body_full and marks the message hydrated.
	UpdateBody(messageID, body string) error

	ListByUser(userID string, limit, offset int) ([]*domain.Message, error)
	DeleteByUser(userID string) error
}
