package domain

import "time"

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Message is one mirrored mailbox message. MessageID is the provider's
// stable identifier and the idempotency key for every write: re-delivery of
// the same message updates the row in place, never duplicates it.
type Message struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	MessageID          string    `json:"message_id" gorm:"uniqueIndex;not null"`
	UserID             string    `json:"user_id" gorm:"index;not null"`
	Direction          Direction `json:"direction" gorm:"not null"`
	SenderAddress      string    `json:"sender_address"`
	RecipientAddresses string    `json:"recipient_addresses"` // JSON-encoded list
	Subject            string    `json:"subject"`
	BodyPreview        string    `json:"body_preview"`
	BodyFull           string    `json:"body_full,omitempty"`
	BodyHydrated       bool      `json:"body_hydrated"`
	SentAt             time.Time `json:"sent_at"`
	LinkedEntityID     *string   `json:"linked_entity_id,omitempty" gorm:"index"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
