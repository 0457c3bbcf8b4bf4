package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/internal/mailsync/repository"
)

// SubscriptionManager keeps one push subscription alive per connected
// mailbox. It runs at the tail of every sync, so a subscription nearing
// expiry gets renewed as a side effect of normal traffic.
type SubscriptionManager struct {
	provider         domain.MailProvider
	states           repository.SyncStateRepository
	notificationURL  string
	ttl              time.Duration
	renewalThreshold time.Duration
}

func NewSubscriptionManager(provider domain.MailProvider, states repository.SyncStateRepository, notificationURL string, ttl, renewalThreshold time.Duration) *SubscriptionManager {
	return &SubscriptionManager{
		provider:         provider,
		states:           states,
		notificationURL:  notificationURL,
		ttl:              ttl,
		renewalThreshold: renewalThreshold,
	}
}

// Ensure brings the user's subscription to a healthy state: absent means
// create, expired or near expiry means replace, anything else is left alone.
// The user id doubles as the clientState echoed back in notifications.
func (m *SubscriptionManager) Ensure(ctx context.Context, userID, mailbox, accessToken string, state *domain.SyncState) error {
	if m.notificationURL == "" {
		return nil
	}

	now := time.Now()
	switch {
	case state == nil || state.SubscriptionID == "":
		// Absent, fall through to create.
	case state.SubscriptionExpiry != nil && state.SubscriptionExpiry.After(now.Add(m.renewalThreshold)):
		return nil
	default:
		// Expired or inside the renewal window. Best effort delete of the
		// old registration; the provider reaps expired ones on its own.
		if err := m.provider.DeleteSubscription(ctx, accessToken, state.SubscriptionID); err != nil {
			log.Printf("[Subscription] Delete of stale subscription %s failed: %v", state.SubscriptionID, err)
		}
	}

	expires := now.Add(m.ttl)
	sub, err := m.provider.CreateSubscription(ctx, accessToken, mailbox, m.notificationURL, userID, expires)
	if err != nil {
		return fmt.Errorf("create subscription for user %s: %w", userID, err)
	}

	if err := m.states.Upsert(userID, domain.SyncStatePatch{
		SubscriptionID:     &sub.ID,
		SubscriptionExpiry: &sub.ExpiresAt,
	}); err != nil {
		return err
	}

	log.Printf("[Subscription] Registered %s for user %s, expires %s", sub.ID, userID, sub.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Teardown deletes the remote subscription if one is registered. Used on
// mailbox disconnect.
func (m *SubscriptionManager) Teardown(ctx context.Context, accessToken string, state *domain.SyncState) {
	if state == nil || state.SubscriptionID == "" {
		return
	}
	if err := m.provider.DeleteSubscription(ctx, accessToken, state.SubscriptionID); err != nil {
		log.Printf("[Subscription] Teardown of %s failed: %v", state.SubscriptionID, err)
	}
}
