package domain

import "errors"

// Error taxonomy for the sync engine. Callers classify with errors.Is; the
// orchestrator decides per class whether a retry can ever help.
var (
	// ErrUnresolvableUser means the external identity could not be mapped
	// to an internal user.
	ErrUnresolvableUser = errors.New("user identity could not be resolved")

	// ErrCredentialNotFound means the user has no mailbox connected.
	ErrCredentialNotFound = errors.New("mailbox credential not found")

	// ErrCorruptCredential means a stored credential failed decryption.
	// Deliberately distinct from not-found: the record exists but is unusable.
	ErrCorruptCredential = errors.New("mailbox credential corrupt")

	// ErrExpiredCredential means the provider rejected the refresh token as
	// expired or revoked. Terminal: retrying is useless, the user must
	// re-authorize.
	ErrExpiredCredential = errors.New("mailbox credential expired or revoked")

	// ErrTransientExchange covers every other token exchange failure
	// (network, rate limit, malformed response). Retryable.
	ErrTransientExchange = errors.New("token exchange failed")

	// ErrFetchFailed means a delta or snapshot page fetch failed. The whole
	// fetch is abandoned and the stored cursor is left untouched.
	ErrFetchFailed = errors.New("message fetch failed")

	// ErrPersistenceFailure means the bulk upsert failed. Retryable at the
	// batch level.
	ErrPersistenceFailure = errors.New("message persistence failed")
)
