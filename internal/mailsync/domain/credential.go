package domain

import "time"

// Credential is the long-lived mailbox authorization for one user. At most
// one row per user; re-authorization replaces the record wholesale.
//
// RefreshToken only ever lives in memory. The repository seals it into
// RefreshTokenEnc before the row is written and opens it again on read;
// neither field is serialized to JSON.
type Credential struct {
	ID                string     `json:"-" gorm:"primaryKey"`
	UserID            string     `json:"user_id" gorm:"uniqueIndex;not null"`
	MailboxAddress    string     `json:"mailbox_address" gorm:"not null"`
	ProviderAccountID string     `json:"provider_account_id"`
	TenantID          string     `json:"tenant_id"`
	EnvironmentTag    string     `json:"environment_tag"`
	RefreshToken      string     `json:"-" gorm:"-"`
	RefreshTokenEnc   string     `json:"-" gorm:"column:refresh_token_enc;not null"`
	LastKnownExpiry   *time.Time `json:"last_known_expiry,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AccountHint is what the token exchange needs to pick the right authority.
func (c *Credential) AccountHint() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	return c.EnvironmentTag
}
