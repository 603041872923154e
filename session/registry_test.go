package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-wabridge/core"
)

type fakeAdapter struct {
	name     string
	listener Listener
	initErr  error

	mu           sync.Mutex
	sendCalls    int
	contactCalls int
	destroyed    bool
	sent         []string
	identity     *Identity
	messages     []RawMessage
}

func (a *fakeAdapter) Initialize(context.Context) error {
	return a.initErr
}

func (a *fakeAdapter) SendMessage(_ context.Context, chatID string, body string) (SendReceipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendCalls++
	a.sent = append(a.sent, chatID+"|"+body)
	return SendReceipt{MessageID: "msg_1", Timestamp: time.Unix(1700000000, 0).UTC()}, nil
}

func (a *fakeAdapter) GetContacts(context.Context) ([]Contact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.contactCalls++
	return []Contact{{ID: "1@c.us", Number: "1", IsUser: true}}, nil
}

func (a *fakeAdapter) GetChats(context.Context) ([]Chat, error) {
	return []Chat{{ID: "1@c.us", Name: "one"}}, nil
}

func (a *fakeAdapter) FetchMessages(_ context.Context, _ string, limit int) ([]RawMessage, error) {
	if limit < len(a.messages) {
		return a.messages[:limit], nil
	}
	return a.messages, nil
}

func (a *fakeAdapter) Identity() (Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity == nil {
		return Identity{}, false
	}
	return *a.identity, true
}

func (a *fakeAdapter) Destroy(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyed = true
	return nil
}

func (a *fakeAdapter) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sendCalls
}

type fakeFactory struct {
	built   atomic.Int32
	initErr error
	delay   time.Duration

	mu       sync.Mutex
	adapters map[string]*fakeAdapter
}

func (f *fakeFactory) NewAdapter(name string, listener Listener) (Adapter, error) {
	f.built.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	adapter := &fakeAdapter{name: name, listener: listener, initErr: f.initErr}
	f.mu.Lock()
	if f.adapters == nil {
		f.adapters = map[string]*fakeAdapter{}
	}
	f.adapters[name] = adapter
	f.mu.Unlock()
	return adapter, nil
}

func (f *fakeFactory) adapter(name string) *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adapters[name]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []core.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventKind, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Kind)
	}
	return out
}

func newTestRegistry(t *testing.T, factory *fakeFactory, cfg core.SessionConfig, opts ...Option) *Registry {
	t.Helper()
	registry, err := NewRegistry(factory, "default", cfg, opts...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func TestRegistry_CreateSessionIsIdempotent(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{})

	first, err := registry.CreateSession(context.Background(), "default")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	second, err := registry.CreateSession(context.Background(), "default")
	if err != nil {
		t.Fatalf("create session again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same session instance")
	}
	if got := factory.built.Load(); got != 1 {
		t.Fatalf("expected one adapter, got %d", got)
	}
	if first.State() != StateInitializing {
		t.Fatalf("expected initializing state, got %q", first.State())
	}
}

func TestRegistry_ConcurrentCreateBuildsOneAdapter(t *testing.T) {
	factory := &fakeFactory{delay: 20 * time.Millisecond}
	registry := newTestRegistry(t, factory, core.SessionConfig{})

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := registry.CreateSession(context.Background(), "default")
			if err != nil {
				t.Errorf("create session: %v", err)
				return
			}
			sessions[i] = session
		}()
	}
	wg.Wait()

	if got := factory.built.Load(); got != 1 {
		t.Fatalf("expected one adapter, got %d", got)
	}
	for _, session := range sessions {
		if session != sessions[0] {
			t.Fatalf("expected all callers to share one session")
		}
	}
	if got := len(registry.GetAllSessions()); got != 1 {
		t.Fatalf("expected one session entry, got %d", got)
	}
}

func TestRegistry_InitFailureRemovesSession(t *testing.T) {
	factory := &fakeFactory{initErr: errors.New("browser crashed")}
	registry := newTestRegistry(t, factory, core.SessionConfig{})

	_, err := registry.CreateSession(context.Background(), "default")
	if err == nil {
		t.Fatalf("expected init failure")
	}
	if !errors.Is(err, core.ErrAdapterInit) {
		t.Fatalf("expected adapter init sentinel, got %v", err)
	}
	if !core.IsErrorCode(err, core.ErrorAdapterInitFailed) {
		t.Fatalf("expected adapter init text code, got %v", err)
	}
	if _, ok := registry.GetSession("default"); ok {
		t.Fatalf("expected failed session to be removed")
	}
	if adapter := factory.adapter("default"); adapter == nil || !adapter.destroyed {
		t.Fatalf("expected adapter to be destroyed after failed init")
	}
}

func TestRegistry_QRThenReadyClearsQRCode(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{}, WithPublisher(publisher))

	qr, err := registry.GetQRCode(context.Background(), "default")
	if err != nil {
		t.Fatalf("get qr code: %v", err)
	}
	if qr.Kind != QRInitializing {
		t.Fatalf("expected initializing result, got %q", qr.Kind)
	}

	listener := factory.adapter("default").listener
	listener.OnQR("2@abc")

	qr, err = registry.GetQRCode(context.Background(), "default")
	if err != nil {
		t.Fatalf("get qr code: %v", err)
	}
	if qr.Kind != QRAvailable || qr.QRCode != "2@abc" {
		t.Fatalf("expected qr challenge, got %+v", qr)
	}
	status, err := registry.GetStatus(context.Background(), "default")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.State != StateQRPending || !status.HasQRCode {
		t.Fatalf("expected qr pending with code, got %+v", status)
	}

	listener.OnAuthenticated()
	if got := registry.mustStatus(t).State; got != StateQRPending {
		t.Fatalf("expected authenticated to leave state, got %q", got)
	}
	listener.OnReady()

	status = registry.mustStatus(t)
	if status.State != StateReady || status.HasQRCode || !status.IsReady {
		t.Fatalf("expected ready without qr, got %+v", status)
	}
	qr, err = registry.GetQRCode(context.Background(), "default")
	if err != nil {
		t.Fatalf("get qr code: %v", err)
	}
	if qr.Kind != QRAlreadyReady {
		t.Fatalf("expected ready result, got %q", qr.Kind)
	}

	kinds := publisher.kinds()
	want := []core.EventKind{core.EventQR, core.EventAuthenticated, core.EventReady}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}
}

func (r *Registry) mustStatus(t *testing.T) Snapshot {
	t.Helper()
	status, err := r.GetStatus(context.Background(), "default")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	return status
}

func TestRegistry_DisconnectedClearsQRCode(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{}, WithPublisher(publisher))
	if _, err := registry.CreateSession(context.Background(), ""); err != nil {
		t.Fatalf("create session: %v", err)
	}
	listener := factory.adapter("default").listener
	listener.OnQR("qr")
	listener.OnDisconnected("NAVIGATION")

	status := registry.mustStatus(t)
	if status.State != StateDisconnected || status.HasQRCode {
		t.Fatalf("expected disconnected without qr, got %+v", status)
	}
	publisher.mu.Lock()
	last := publisher.events[len(publisher.events)-1]
	publisher.mu.Unlock()
	if last.Kind != core.EventDisconnected || last.Reason != "NAVIGATION" || last.Session != "default" {
		t.Fatalf("unexpected disconnected event: %+v", last)
	}
}

func TestRegistry_SendMessageRequiresReady(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{})

	_, err := registry.SendMessage(context.Background(), "123", "hi", "missing")
	if !errors.Is(err, core.ErrSessionNotReady) {
		t.Fatalf("expected not ready for missing session, got %v", err)
	}

	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	adapter := factory.adapter("default")
	adapter.listener.OnQR("qr")

	_, err = registry.SendMessage(context.Background(), "123", "hi", "default")
	if !core.IsErrorCode(err, core.ErrorSessionNotReady) {
		t.Fatalf("expected not ready code, got %v", err)
	}
	if adapter.sendCount() != 0 {
		t.Fatalf("expected adapter send path untouched, got %d calls", adapter.sendCount())
	}

	adapter.listener.OnReady()
	result, err := registry.SendMessage(context.Background(), "+1 555 0100", "hi", "default")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if result.MessageID != "msg_1" || result.ChatID != "15550100@c.us" {
		t.Fatalf("unexpected send result: %+v", result)
	}
	if adapter.sendCount() != 1 {
		t.Fatalf("expected one adapter send, got %d", adapter.sendCount())
	}
}

func TestRegistry_SendMessageRejectsEmptyInput(t *testing.T) {
	registry := newTestRegistry(t, &fakeFactory{}, core.SessionConfig{})
	if _, err := registry.SendMessage(context.Background(), "", "hi", ""); !core.IsErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for empty recipient, got %v", err)
	}
	if _, err := registry.SendMessage(context.Background(), "123", " ", ""); !core.IsErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for empty body, got %v", err)
	}
}

func TestRegistry_SendMessageThrottled(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{SendRatePerMinute: 1})
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	factory.adapter("default").listener.OnReady()

	if _, err := registry.SendMessage(context.Background(), "1", "a", ""); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := registry.SendMessage(context.Background(), "1", "b", ""); !core.IsErrorCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestRegistry_DisconnectRemovesSession(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{})

	if _, err := registry.Disconnect(context.Background(), "default"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := registry.Disconnect(context.Background(), "default"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !factory.adapter("default").destroyed {
		t.Fatalf("expected adapter destroyed")
	}
	if _, err := registry.GetStatus(context.Background(), "default"); !core.IsErrorCode(err, core.ErrorSessionNotFound) {
		t.Fatalf("expected not found after disconnect, got %v", err)
	}
}

func TestRegistry_StaleListenerEventsAreDropped(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{}, WithPublisher(publisher))
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	listener := factory.adapter("default").listener
	if _, err := registry.Disconnect(context.Background(), "default"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	listener.OnMessage(RawMessage{ID: "late"})
	if got := len(publisher.kinds()); got != 0 {
		t.Fatalf("expected no events from a removed session, got %d", got)
	}
}

func TestRegistry_AuthFailureLeavesStateByDefault(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{}, WithPublisher(publisher))
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	listener := factory.adapter("default").listener
	listener.OnQR("qr")
	listener.OnAuthFailure("bad credentials")
	listener.OnAuthFailure("bad credentials")

	if got := registry.mustStatus(t).State; got != StateQRPending {
		t.Fatalf("expected state unchanged, got %q", got)
	}
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 3 || publisher.events[1].Reason != "bad credentials" {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestRegistry_AuthFailureLimitForcesDisconnect(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{MaxAuthFailures: 2}, WithPublisher(publisher))
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	listener := factory.adapter("default").listener
	listener.OnQR("qr")
	listener.OnAuthFailure("first")
	if got := registry.mustStatus(t).State; got != StateQRPending {
		t.Fatalf("expected qr pending after one failure, got %q", got)
	}
	listener.OnAuthFailure("second")

	status := registry.mustStatus(t)
	if status.State != StateDisconnected || status.HasQRCode {
		t.Fatalf("expected forced disconnect, got %+v", status)
	}
	kinds := publisher.kinds()
	if kinds[len(kinds)-1] != core.EventDisconnected {
		t.Fatalf("expected trailing disconnected event, got %v", kinds)
	}
}

func TestRegistry_MessageEventsAreNormalized(t *testing.T) {
	factory := &fakeFactory{}
	publisher := &recordingPublisher{}
	registry := newTestRegistry(t, factory, core.SessionConfig{}, WithPublisher(publisher))
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	factory.adapter("default").listener.OnMessage(RawMessage{
		ID:        "ABC",
		Body:      "hi",
		Timestamp: time.Unix(1700000000, 0),
		From:      "1@c.us",
		To:        "2@c.us",
	})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Kind != core.EventMessage || event.Message == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Message.Body != "hi" || event.Message.Kind != "chat" || event.Message.Timestamp != 1700000000 {
		t.Fatalf("unexpected message record: %+v", event.Message)
	}
}

func TestRegistry_ContactsServedFromCacheUntilReady(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{DirectoryTTL: time.Minute})
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	adapter := factory.adapter("default")
	adapter.listener.OnReady()

	for i := 0; i < 2; i++ {
		contacts, err := registry.GetContacts(context.Background(), "default")
		if err != nil {
			t.Fatalf("get contacts: %v", err)
		}
		if len(contacts) != 1 || contacts[0].Name != unknownContact {
			t.Fatalf("unexpected contacts: %+v", contacts)
		}
	}
	if adapter.contactCalls != 1 {
		t.Fatalf("expected cached second read, adapter calls=%d", adapter.contactCalls)
	}

	adapter.listener.OnReady()
	if _, err := registry.GetContacts(context.Background(), "default"); err != nil {
		t.Fatalf("get contacts: %v", err)
	}
	if adapter.contactCalls != 2 {
		t.Fatalf("expected refetch after ready, adapter calls=%d", adapter.contactCalls)
	}
}

func TestRegistry_FetchMessagesDefaultsLimit(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{})
	if _, err := registry.FetchMessages(context.Background(), "1@c.us", 0, "default"); !errors.Is(err, core.ErrSessionNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := registry.CreateSession(context.Background(), "default"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	adapter := factory.adapter("default")
	for i := 0; i < 60; i++ {
		adapter.messages = append(adapter.messages, RawMessage{ID: "m", Body: "x"})
	}
	adapter.listener.OnReady()

	messages, err := registry.FetchMessages(context.Background(), "1@c.us", 0, "default")
	if err != nil {
		t.Fatalf("fetch messages: %v", err)
	}
	if len(messages) != defaultFetchLimit {
		t.Fatalf("expected %d messages, got %d", defaultFetchLimit, len(messages))
	}
	if _, err := registry.FetchMessages(context.Background(), " ", 5, "default"); !core.IsErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for empty chat id, got %v", err)
	}
}

func TestRegistry_CloseDisconnectsAll(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory, core.SessionConfig{})
	for _, name := range []string{"a", "b"} {
		if _, err := registry.CreateSession(context.Background(), name); err != nil {
			t.Fatalf("create session %s: %v", name, err)
		}
	}
	if err := registry.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(registry.GetAllSessions()); got != 0 {
		t.Fatalf("expected no sessions after close, got %d", got)
	}
	if !factory.adapter("a").destroyed || !factory.adapter("b").destroyed {
		t.Fatalf("expected every adapter destroyed")
	}
}
