package usecase

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventMeta is what survives of one webhook notification. The payload itself
// carries no message data; it only tells us whose mailbox changed.
type EventMeta struct {
	SubscriptionID string
	ChangeType     string
	Resource       string
	ReceivedAt     time.Time
}

// SyncRunner performs one sync pass for a user. The queue guarantees it is
// never invoked concurrently for the same user.
type SyncRunner func(ctx context.Context, userID string, events []EventMeta)

// Timer is the armed-callback handle behind the debounce window.
type Timer interface {
	Stop() bool
}

// Clock abstracts timer creation so tests can drive the debounce window
// by hand.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SyncQueue coalesces webhook notifications into sync runs. A burst of
// notifications collapses into a single run per user after a quiet debounce
// window, and at most one run per user is ever in flight. One timer is
// shared across all users; a flush sweeps every pending user at once.
// Events that land while a user's run is in flight stay pending and are
// picked up by the next flush.
type SyncQueue struct {
	mu       sync.Mutex
	clock    Clock
	debounce time.Duration
	run      SyncRunner

	pending map[string][]EventMeta
	active  map[string]bool
	timer   Timer // nil when not armed; guarded by mu against double-arming
}

func NewSyncQueue(debounce time.Duration, run SyncRunner) *SyncQueue {
	return newSyncQueue(realClock{}, debounce, run)
}

func newSyncQueue(clock Clock, debounce time.Duration, run SyncRunner) *SyncQueue {
	return &SyncQueue{
		clock:    clock,
		debounce: debounce,
		run:      run,
		pending:  make(map[string][]EventMeta),
		active:   make(map[string]bool),
	}
}

// Enqueue records a notification for the user and arms the shared debounce
// timer if it is not armed already.
func (q *SyncQueue) Enqueue(userID string, meta EventMeta) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[userID] = append(q.pending[userID], meta)
	if q.timer == nil {
		q.timer = q.clock.AfterFunc(q.debounce, q.flush)
	}
}

// TriggerNow bypasses the debounce window, used for manual sync requests.
// Single-flight still holds: if a run is already in flight the trigger just
// joins the pending set for the next flush.
func (q *SyncQueue) TriggerNow(userID string) {
	q.mu.Lock()
	q.pending[userID] = append(q.pending[userID], EventMeta{
		ChangeType: "manual",
		ReceivedAt: time.Now(),
	})
	q.mu.Unlock()

	q.launch(userID)
}

// flush sweeps every pending user. Users with a run in flight keep their
// events pending; completion re-arms the timer for them.
func (q *SyncQueue) flush() {
	q.mu.Lock()
	q.timer = nil
	users := make([]string, 0, len(q.pending))
	for userID := range q.pending {
		users = append(users, userID)
	}
	q.mu.Unlock()

	for _, userID := range users {
		q.launch(userID)
	}
}

func (q *SyncQueue) launch(userID string) {
	q.mu.Lock()
	if q.active[userID] {
		q.mu.Unlock()
		return
	}
	events := q.pending[userID]
	delete(q.pending, userID)
	if len(events) == 0 {
		q.mu.Unlock()
		return
	}
	q.active[userID] = true
	q.mu.Unlock()

	go func() {
		defer q.complete(userID)
		q.run(context.Background(), userID, events)
	}()
}

func (q *SyncQueue) complete(userID string) {
	if r := recover(); r != nil {
		log.Printf("[Queue] Sync run for user %s panicked: %v", userID, r)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, userID)
	if len(q.pending[userID]) > 0 && q.timer == nil {
		q.timer = q.clock.AfterFunc(q.debounce, q.flush)
	}
}
