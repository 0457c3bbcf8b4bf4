package domain

import (
	"context"
	"time"
)

// Token is a short-lived access token from a refresh exchange. RefreshToken
// is set only when the provider rotated it; the caller must persist the new
// value before using the access token any further.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresOn    time.Time
}

// RawMessage is the minimal projection the delta listing returns. Bodies are
// hydrated separately.
type RawMessage struct {
	ID          string
	Subject     string
	From        string
	To          []string
	BodyPreview string
	ReceivedAt  time.Time
}

// DeltaPage is one page of an incremental listing. Exactly one of NextLink
// and DeltaLink is set on a well-formed response: NextLink means more pages
// follow, DeltaLink is the resume cursor for the next sync. Both are opaque
// and replayed verbatim.
type DeltaPage struct {
	Messages  []RawMessage
	NextLink  string
	DeltaLink string
}

// Subscription is a provider push-notification registration.
type Subscription struct {
	ID        string
	ExpiresAt time.Time
}

// MailProvider is the provider-agnostic surface the sync engine drives.
type MailProvider interface {
	// Exchange trades a refresh token for an access token. Expired or
	// revoked grants surface as ErrExpiredCredential, everything else as
	// ErrTransientExchange.
	Exchange(ctx context.Context, refreshToken, accountHint string) (*Token, error)

	// DeltaPage fetches one page of the incremental listing. An empty link
	// starts a fresh delta round; otherwise link is a previously returned
	// next-page or resume link.
	DeltaPage(ctx context.Context, accessToken, mailbox, link string) (*DeltaPage, error)

	// Recent fetches the newest limit messages, newest first. Used as the
	// snapshot fallback when the incremental path yields nothing.
	Recent(ctx context.Context, accessToken, mailbox string, limit int) ([]RawMessage, error)

	// MessageBody fetches the full body of one message.
	MessageBody(ctx context.Context, accessToken, mailbox, messageID string) (string, error)

	CreateSubscription(ctx context.Context, accessToken, mailbox, notificationURL, clientState string, expires time.Time) (*Subscription, error)
	DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error
}
