package repository

import "leadwire-backend/internal/mailsync/domain"

// CredentialRepository is the credential store contract. Every call takes
// the caller's external identity representation and resolves it through the
// shared identity resolver; resolution failure surfaces as
// domain.ErrUnresolvableUser.
type CredentialRepository interface {
	// Put replaces any existing credential for the user wholesale.
	Put(external string, cred *domain.Credential) error

	// Get returns the credential with the refresh token decrypted.
	// Returns domain.ErrCredentialNotFound when the user has no mailbox
	// connected and domain.ErrCorruptCredential when decryption fails.
	Get(external string) (*domain.Credential, error)

	Remove(external string) error

	// ListUserIDs returns the internal ids of every user holding a
	// credential, for batch sync runs.
	ListUserIDs() ([]string, error)
}
