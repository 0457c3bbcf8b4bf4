package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	crmdomain "leadwire-backend/internal/crm/domain"
	"leadwire-backend/internal/mailsync/domain"
)

type orchestratorFixture struct {
	provider *fakeProvider
	creds    *fakeCreds
	states   *fakeStates
	messages *fakeMessages
	notifier *fakeNotifier
	orch     *Orchestrator
}

func newOrchestratorFixture(log *callLog) *orchestratorFixture {
	provider := &fakeProvider{log: log}
	creds := newFakeCreds()
	creds.log = log
	states := newFakeStates()
	messages := newFakeMessages()
	notifier := &fakeNotifier{}
	leads := &fakeLeads{byEmail: map[string]*crmdomain.Lead{
		"alice@lead.com": {ID: "lead-1", Email: "alice@lead.com", FirstName: "Alice"},
	}}

	hydrator := NewHydrator(provider, messages, 1, 10, 0)
	persister := NewPersister(messages, leads, notifier, hydrator)
	delta := NewDeltaEngine(provider, true, 25)
	subs := NewSubscriptionManager(provider, states, "https://hooks.example/graph", 70*time.Hour, 24*time.Hour)
	orch := NewOrchestrator(creds, states, messages, provider, delta, persister, subs, time.Minute)

	return &orchestratorFixture{
		provider: provider,
		creds:    creds,
		states:   states,
		messages: messages,
		notifier: notifier,
		orch:     orch,
	}
}

func (f *orchestratorFixture) connect(userID string) {
	f.creds.Put(userID, &domain.Credential{
		UserID:         userID,
		MailboxAddress: "me@corp.com",
		RefreshToken:   "rt-original",
	})
}

func TestSyncUserHappyPath(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	f.provider.pages = map[string]*domain.DeltaPage{
		"": {
			Messages: []domain.RawMessage{
				{ID: "m1", Subject: "Hi", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()},
			},
			DeltaLink: "cursor-1",
		},
	}

	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	state, _ := f.states.Get("user-1")
	if state.DeltaCursor != "cursor-1" {
		t.Errorf("cursor = %q, want cursor-1", state.DeltaCursor)
	}
	if state.LastSyncedAt == nil {
		t.Error("last synced not stamped")
	}
	if state.LastError != "" {
		t.Errorf("last error = %q", state.LastError)
	}
	if state.SubscriptionID == "" {
		t.Error("subscription not registered on first sync")
	}
	if f.messages.rows["m1"] == nil {
		t.Error("message not persisted")
	}
	if len(f.notifier.alerts) != 1 {
		t.Errorf("expected 1 lead alert, got %d", len(f.notifier.alerts))
	}
}

func TestSyncUserSecondRoundResumesFromCursor(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	f.provider.pages = map[string]*domain.DeltaPage{
		"": {
			Messages:  []domain.RawMessage{{ID: "m1", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()}},
			DeltaLink: "cursor-1",
		},
		"cursor-1": {
			Messages:  []domain.RawMessage{{ID: "m2", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()}},
			DeltaLink: "cursor-2",
		},
	}

	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	state, _ := f.states.Get("user-1")
	if state.DeltaCursor != "cursor-2" {
		t.Errorf("cursor = %q, want cursor-2", state.DeltaCursor)
	}
	if len(f.messages.rows) != 2 {
		t.Errorf("expected both rounds persisted, got %d rows", len(f.messages.rows))
	}
}

func TestSyncUserFirstSyncSnapshotThenIncremental(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	// First sync: empty delta round hands out C1, snapshot seeds the mirror.
	f.provider.pages = map[string]*domain.DeltaPage{
		"": {DeltaLink: "C1"},
	}
	f.provider.recent = []domain.RawMessage{
		{ID: "s1", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()},
		{ID: "s2", From: "other@x.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()},
	}

	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	state, _ := f.states.Get("user-1")
	if state.DeltaCursor != "C1" {
		t.Fatalf("cursor = %q, want C1", state.DeltaCursor)
	}
	if len(f.messages.rows) != 2 {
		t.Fatalf("snapshot not persisted, got %d rows", len(f.messages.rows))
	}

	// Second sync resumes from C1 incrementally.
	f.provider.pages["C1"] = &domain.DeltaPage{
		Messages: []domain.RawMessage{
			{ID: "m1", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()},
			{ID: "m2", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()},
		},
		DeltaLink: "C2",
	}

	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	state, _ = f.states.Get("user-1")
	if state.DeltaCursor != "C2" {
		t.Errorf("cursor = %q, want C2", state.DeltaCursor)
	}
	if len(f.messages.rows) != 4 {
		t.Errorf("expected exactly 2 new rows on top of the snapshot, got %d total", len(f.messages.rows))
	}
}

func TestSyncUserFetchFailureLeavesCursorUntouched(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	cursor := "cursor-1"
	f.states.Upsert("user-1", domain.SyncStatePatch{DeltaCursor: &cursor})
	f.provider.pageErrAt = "cursor-1"
	f.provider.pageErr = errors.New("503 service unavailable")

	err := f.orch.SyncUser(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	state, _ := f.states.Get("user-1")
	if state.DeltaCursor != "cursor-1" {
		t.Errorf("cursor moved on failure: %q", state.DeltaCursor)
	}
	if state.LastError == "" {
		t.Error("failure not recorded in state")
	}
	if state.LastSyncedAt != nil {
		t.Error("failed run must not stamp last synced")
	}
}

func TestSyncUserRotatedTokenPersistsBeforeFetch(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	// Attach the log after connect so the setup Put is not recorded.
	log := &callLog{}
	f.creds.log = log
	f.provider.log = log
	f.provider.exchangeToken = &domain.Token{AccessToken: "at", RefreshToken: "rt-rotated"}

	if err := f.orch.SyncUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	putIdx := log.index("putCred")
	fetchIdx := log.index("delta:")
	if putIdx == -1 || fetchIdx == -1 {
		t.Fatalf("missing calls: %v", log.calls)
	}
	if putIdx > fetchIdx {
		t.Error("rotated token must be stored before any fetch")
	}

	cred, err := f.creds.Get("user-1")
	if err != nil {
		t.Fatalf("credential lookup failed: %v", err)
	}
	if cred.RefreshToken != "rt-rotated" {
		t.Errorf("stored refresh token = %q, want rt-rotated", cred.RefreshToken)
	}
}

func TestSyncUserExpiredCredentialIsTerminal(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	f.provider.exchangeErr = domain.ErrExpiredCredential

	err := f.orch.SyncUser(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrExpiredCredential) {
		t.Fatalf("expected ErrExpiredCredential, got %v", err)
	}

	state, _ := f.states.Get("user-1")
	if state == nil || state.LastError == "" {
		t.Error("expired credential not surfaced in sync state")
	}
}

func TestSyncUserWithoutCredential(t *testing.T) {
	f := newOrchestratorFixture(nil)

	err := f.orch.SyncUser(context.Background(), "user-unknown")
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestStatusReflectsConnection(t *testing.T) {
	f := newOrchestratorFixture(nil)

	status, err := f.orch.Status("user-1")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Connected {
		t.Error("unconnected user reported connected")
	}

	f.connect("user-1")
	status, err = f.orch.Status("user-1")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.Connected || status.MailboxAddress != "me@corp.com" {
		t.Errorf("status = %+v", status)
	}
}

func TestDisconnectTearsEverythingDown(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	subID := "sub-user-1"
	f.states.Upsert("user-1", domain.SyncStatePatch{SubscriptionID: &subID})
	f.messages.BulkUpsert([]*domain.Message{{ID: "row-1", MessageID: "m1", UserID: "user-1"}})

	if err := f.orch.Disconnect(context.Background(), "user-1", true); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	if _, err := f.creds.Get("user-1"); !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Error("credential survived disconnect")
	}
	state, _ := f.states.Get("user-1")
	if state != nil {
		t.Error("sync state survived disconnect")
	}
	if len(f.provider.deletedSubs) != 1 || f.provider.deletedSubs[0] != "sub-user-1" {
		t.Errorf("remote subscription not torn down: %v", f.provider.deletedSubs)
	}
	if len(f.messages.rows) != 0 {
		t.Error("purge left messages behind")
	}
}

type fakeScheduler struct {
	mu     sync.Mutex
	queued map[string][]EventMeta
}

func (s *fakeScheduler) Enqueue(userID string, meta EventMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued == nil {
		s.queued = make(map[string][]EventMeta)
	}
	s.queued[userID] = append(s.queued[userID], meta)
}

func TestSyncAllQueuesEveryConnectedUser(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	f.connect("user-2")
	sched := &fakeScheduler{}

	if queued := f.orch.SyncAll(sched); queued != 2 {
		t.Fatalf("queued = %d, want 2", queued)
	}
	for _, userID := range []string{"user-1", "user-2"} {
		events := sched.queued[userID]
		if len(events) != 1 || events[0].ChangeType != "sweep" {
			t.Errorf("events for %s = %+v, want one sweep event", userID, events)
		}
	}
	// The sweep only schedules; the runs themselves belong to the queue.
	if len(f.messages.rows) != 0 {
		t.Error("sweep ran a sync directly instead of queueing it")
	}
}

func TestSweepSharesQueueSingleFlight(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.connect("user-1")
	f.provider.pages = map[string]*domain.DeltaPage{
		"": {
			Messages:  []domain.RawMessage{{ID: "m1", From: "alice@lead.com", To: []string{"me@corp.com"}, ReceivedAt: time.Now()}},
			DeltaLink: "cursor-1",
		},
	}

	clock := &fakeClock{}
	runDone := make(chan int, 4)
	queue := newSyncQueue(clock, 5*time.Second, func(ctx context.Context, userID string, events []EventMeta) {
		_ = f.orch.SyncUser(ctx, userID)
		runDone <- len(events)
	})

	// A webhook event and a sweep land inside the same debounce window.
	queue.Enqueue("user-1", EventMeta{ChangeType: "created"})
	if queued := f.orch.SyncAll(queue); queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}
	if got := clock.armedCount(); got != 1 {
		t.Fatalf("expected the shared timer only, got %d", got)
	}

	clock.fire()
	var carried int
	select {
	case carried = <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("coalesced run never started")
	}
	waitIdle(t, queue, "user-1")

	if carried != 2 {
		t.Errorf("run carried %d events, want webhook and sweep events together", carried)
	}
	select {
	case <-runDone:
		t.Fatal("sweep started a second run for the same user")
	default:
	}
	if f.messages.rows["m1"] == nil {
		t.Error("message not persisted")
	}
	if len(f.notifier.alerts) != 1 {
		t.Errorf("expected exactly 1 lead alert, got %d", len(f.notifier.alerts))
	}
}
