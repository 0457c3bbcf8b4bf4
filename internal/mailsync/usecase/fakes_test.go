package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	crmdomain "leadwire-backend/internal/crm/domain"
	"leadwire-backend/internal/mailsync/domain"
)

// callLog records cross-fake call ordering for assertions.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) index(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, c := range l.calls {
		if c == name {
			return i
		}
	}
	return -1
}

type fakeProvider struct {
	log *callLog

	exchangeToken *domain.Token
	exchangeErr   error

	pages     map[string]*domain.DeltaPage
	pageErrAt string
	pageErr   error

	recent    []domain.RawMessage
	recentErr error

	bodies map[string]string

	createdSubs []string
	createErr   error
	deletedSubs []string
	deleteErr   error
}

func (p *fakeProvider) note(name string) {
	if p.log != nil {
		p.log.add(name)
	}
}

func (p *fakeProvider) Exchange(ctx context.Context, refreshToken, accountHint string) (*domain.Token, error) {
	p.note("exchange")
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	if p.exchangeToken != nil {
		return p.exchangeToken, nil
	}
	return &domain.Token{AccessToken: "at-test"}, nil
}

func (p *fakeProvider) DeltaPage(ctx context.Context, accessToken, mailbox, link string) (*domain.DeltaPage, error) {
	p.note("delta:" + link)
	if p.pageErr != nil && link == p.pageErrAt {
		return nil, p.pageErr
	}
	page, ok := p.pages[link]
	if !ok {
		return &domain.DeltaPage{DeltaLink: "delta-final"}, nil
	}
	return page, nil
}

func (p *fakeProvider) Recent(ctx context.Context, accessToken, mailbox string, limit int) ([]domain.RawMessage, error) {
	p.note("recent")
	if p.recentErr != nil {
		return nil, p.recentErr
	}
	if limit < len(p.recent) {
		return p.recent[:limit], nil
	}
	return p.recent, nil
}

func (p *fakeProvider) MessageBody(ctx context.Context, accessToken, mailbox, messageID string) (string, error) {
	p.note("body:" + messageID)
	return p.bodies[messageID], nil
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, accessToken, mailbox, notificationURL, clientState string, expires time.Time) (*domain.Subscription, error) {
	p.note("createSub")
	if p.createErr != nil {
		return nil, p.createErr
	}
	id := "sub-" + clientState
	p.createdSubs = append(p.createdSubs, id)
	return &domain.Subscription{ID: id, ExpiresAt: expires}, nil
}

func (p *fakeProvider) DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error {
	p.note("deleteSub:" + subscriptionID)
	p.deletedSubs = append(p.deletedSubs, subscriptionID)
	return p.deleteErr
}

type fakeMessages struct {
	mu        sync.Mutex
	rows      map[string]*domain.Message
	upsertErr error
	bodies    map[string]string
	deleted   []string
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		rows:   make(map[string]*domain.Message),
		bodies: make(map[string]string),
	}
}

func (m *fakeMessages) ExistingIDs(messageIDs []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]struct{})
	for _, id := range messageIDs {
		if _, ok := m.rows[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (m *fakeMessages) BulkUpsert(messages []*domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, msg := range messages {
		if prev, ok := m.rows[msg.MessageID]; ok {
			msg.ID = prev.ID
			msg.BodyFull = prev.BodyFull
			msg.BodyHydrated = prev.BodyHydrated
		}
		m.rows[msg.MessageID] = msg
	}
	return nil
}

func (m *fakeMessages) UpdateBody(messageID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[messageID] = body
	if row, ok := m.rows[messageID]; ok {
		row.BodyFull = body
		row.BodyHydrated = true
	}
	return nil
}

func (m *fakeMessages) ListByUser(userID string, limit, offset int) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *fakeMessages) DeleteByUser(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, userID)
	for id, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, id)
		}
	}
	return nil
}

type fakeLeads struct {
	byEmail map[string]*crmdomain.Lead
}

func (f *fakeLeads) FindByEmail(email string) (*crmdomain.Lead, error) {
	return f.byEmail[strings.ToLower(email)], nil
}

type notifiedAlert struct {
	UserID    string
	LeadID    string
	MessageID string
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notifiedAlert
}

func (n *fakeNotifier) NotifyLeadActivity(ctx context.Context, userID string, lead *crmdomain.Lead, msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, notifiedAlert{UserID: userID, LeadID: lead.ID, MessageID: msg.MessageID})
}

type fakeStates struct {
	mu     sync.Mutex
	states map[string]*domain.SyncState
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]*domain.SyncState)}
}

func (s *fakeStates) Get(external string) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[external]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *fakeStates) Upsert(external string, patch domain.SyncStatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[external]
	if !ok {
		state = &domain.SyncState{UserID: external}
		s.states[external] = state
	}
	if patch.DeltaCursor != nil {
		state.DeltaCursor = *patch.DeltaCursor
	}
	if patch.SubscriptionID != nil {
		state.SubscriptionID = *patch.SubscriptionID
	}
	if patch.SubscriptionExpiry != nil {
		state.SubscriptionExpiry = patch.SubscriptionExpiry
	}
	if patch.LastSyncedAt != nil {
		state.LastSyncedAt = patch.LastSyncedAt
	}
	if patch.LastError != nil {
		state.LastError = *patch.LastError
	}
	state.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStates) Clear(external string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, external)
	return nil
}

type fakeCreds struct {
	mu    sync.Mutex
	log   *callLog
	creds map[string]*domain.Credential
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{creds: make(map[string]*domain.Credential)}
}

func (c *fakeCreds) Put(external string, cred *domain.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log != nil {
		c.log.add("putCred")
	}
	copied := *cred
	copied.UserID = external
	c.creds[external] = &copied
	return nil
}

func (c *fakeCreds) Get(external string) (*domain.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.creds[external]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

func (c *fakeCreds) Remove(external string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.creds, external)
	return nil
}

func (c *fakeCreds) ListUserIDs() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id := range c.creds {
		ids = append(ids, id)
	}
	return ids, nil
}

// fakeClock hands out timers that fire only when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	fn      func()
	d       time.Duration
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{fn: fn, d: d}
	c.timers = append(c.timers, timer)
	return timer
}

// fire runs every armed timer that has not been stopped.
func (c *fakeClock) fire() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) armedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
