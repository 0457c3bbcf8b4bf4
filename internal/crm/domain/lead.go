package domain

import (
	"strings"
	"time"
)

// Lead is a CRM contact. The sync engine only reads leads, to associate
// mirrored messages with the entity behind an email address.
type Lead struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"index;not null"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	OwnerID   string    `json:"owner_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the lead's full name, falling back to the email
// address when no name is on record.
func (l *Lead) DisplayName() string {
	name := strings.TrimSpace(l.FirstName + " " + l.LastName)
	if name == "" {
		return l.Email
	}
	return name
}
