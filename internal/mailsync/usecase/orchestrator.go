package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/internal/mailsync/repository"
)

// MailboxStatus is the connection summary surfaced to the API.
type MailboxStatus struct {
	Connected      bool              `json:"connected"`
	MailboxAddress string            `json:"mailbox_address,omitempty"`
	State          *domain.SyncState `json:"state,omitempty"`
}

// Orchestrator runs the full sync pass for a user: credential lookup, token
// exchange, incremental fetch, persistence, and subscription upkeep.
type Orchestrator struct {
	creds     repository.CredentialRepository
	states    repository.SyncStateRepository
	messages  repository.MessageRepository
	provider  domain.MailProvider
	delta     *DeltaEngine
	persister *Persister
	subs      *SubscriptionManager
	timeout   time.Duration
}

func NewOrchestrator(
	creds repository.CredentialRepository,
	states repository.SyncStateRepository,
	messages repository.MessageRepository,
	provider domain.MailProvider,
	delta *DeltaEngine,
	persister *Persister,
	subs *SubscriptionManager,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		creds:     creds,
		states:    states,
		messages:  messages,
		provider:  provider,
		delta:     delta,
		persister: persister,
		subs:      subs,
		timeout:   timeout,
	}
}

// SyncUser performs one sync pass. The stored cursor only advances after the
// fetched batch has been persisted, so a failure anywhere simply replays the
// same changes next time.
func (o *Orchestrator) SyncUser(ctx context.Context, external string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cred, err := o.creds.Get(external)
	if err != nil {
		return err
	}
	userID := cred.UserID

	token, err := o.provider.Exchange(ctx, cred.RefreshToken, cred.AccountHint())
	if err != nil {
		if errors.Is(err, domain.ErrExpiredCredential) {
			o.recordError(userID, "authorization expired, reconnect required")
			return err
		}
		o.recordError(userID, fmt.Sprintf("token exchange: %v", err))
		return err
	}

	// A rotated refresh token must land before the old one is consumed
	// any further; losing it would strand the user on a dead grant.
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
		if err := o.creds.Put(userID, cred); err != nil {
			o.recordError(userID, fmt.Sprintf("persisting rotated token: %v", err))
			return err
		}
		log.Printf("[Sync] Refresh token rotated for user %s", userID)
	}

	state, err := o.states.Get(userID)
	if err != nil {
		return err
	}
	cursor := ""
	if state != nil {
		cursor = state.DeltaCursor
	}

	result, err := o.delta.FetchChanges(ctx, token.AccessToken, cred.MailboxAddress, cursor)
	if err != nil {
		o.recordError(userID, fmt.Sprintf("fetch: %v", err))
		return err
	}

	if _, err := o.persister.Persist(ctx, userID, cred.MailboxAddress, token.AccessToken, result.Messages); err != nil {
		// Cursor stays where it was; the same batch is refetched and
		// re-persisted next round, which the upsert keying makes safe.
		o.recordError(userID, fmt.Sprintf("persist: %v", err))
		return err
	}

	now := time.Now()
	noError := ""
	patch := domain.SyncStatePatch{
		LastSyncedAt: &now,
		LastError:    &noError,
	}
	if result.Cursor != "" {
		patch.DeltaCursor = &result.Cursor
	}
	if err := o.states.Upsert(userID, patch); err != nil {
		return err
	}

	// Subscription upkeep is best effort; a failed renewal never fails the
	// sync that carried it.
	if err := o.subs.Ensure(ctx, userID, cred.MailboxAddress, token.AccessToken, state); err != nil {
		log.Printf("[Sync] Subscription upkeep for user %s failed: %v", userID, err)
	}

	return nil
}

// SyncScheduler hands a user off to the coalescing queue. Satisfied by
// SyncQueue.
type SyncScheduler interface {
	Enqueue(userID string, meta EventMeta)
}

// SyncAll queues a pass for every user with a connected mailbox. Used by
// the periodic sweep that catches anything webhooks missed. Runs go through
// the scheduler rather than SyncUser directly so a sweep obeys the same
// single-flight-per-user guarantee as webhook-triggered syncs and can never
// overlap one.
func (o *Orchestrator) SyncAll(sched SyncScheduler) (queued int) {
	userIDs, err := o.creds.ListUserIDs()
	if err != nil {
		log.Printf("[Sync] Sweep aborted, cannot list users: %v", err)
		return 0
	}

	for _, userID := range userIDs {
		sched.Enqueue(userID, EventMeta{
			ChangeType: "sweep",
			ReceivedAt: time.Now(),
		})
		queued++
	}

	log.Printf("[Sync] Sweep queued %d users", queued)
	return queued
}

// Status reports whether the user has a mailbox connected and the current
// sync watermark.
func (o *Orchestrator) Status(external string) (*MailboxStatus, error) {
	cred, err := o.creds.Get(external)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return &MailboxStatus{Connected: false}, nil
		}
		return nil, err
	}

	state, err := o.states.Get(cred.UserID)
	if err != nil {
		return nil, err
	}

	return &MailboxStatus{
		Connected:      true,
		MailboxAddress: cred.MailboxAddress,
		State:          state,
	}, nil
}

// Disconnect tears down the user's mailbox connection: remote subscription,
// credential, and sync state. With purge set the mirrored messages go too.
func (o *Orchestrator) Disconnect(ctx context.Context, external string, purge bool) error {
	cred, err := o.creds.Get(external)
	if err != nil {
		return err
	}
	userID := cred.UserID

	state, err := o.states.Get(userID)
	if err != nil {
		return err
	}

	// Best effort remote cleanup; expired registrations get reaped by the
	// provider anyway.
	if token, err := o.provider.Exchange(ctx, cred.RefreshToken, cred.AccountHint()); err == nil {
		o.subs.Teardown(ctx, token.AccessToken, state)
	} else {
		log.Printf("[Sync] Skipping subscription teardown for user %s: %v", userID, err)
	}

	if err := o.creds.Remove(userID); err != nil {
		return err
	}
	if err := o.states.Clear(userID); err != nil {
		return err
	}
	if purge {
		if err := o.messages.DeleteByUser(userID); err != nil {
			return err
		}
	}

	log.Printf("[Sync] Mailbox disconnected for user %s (purge=%t)", userID, purge)
	return nil
}

func (o *Orchestrator) recordError(userID, message string) {
	if err := o.states.Upsert(userID, domain.SyncStatePatch{LastError: &message}); err != nil {
		log.Printf("[Sync] Failed to record sync error for user %s: %v", userID, err)
	}
}
