package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/core"
	"golang.org/x/sync/singleflight"
)

const forcedDisconnectReason = "max auth failures reached"

// Publisher receives session events. Implementations must not block the
// caller on network I/O and never report errors back to the adapter.
type Publisher interface {
	Publish(ctx context.Context, event core.Event)
}

type PublisherFunc func(ctx context.Context, event core.Event)

func (f PublisherFunc) Publish(ctx context.Context, event core.Event) {
	if f != nil {
		f(ctx, event)
	}
}

type QRResult struct {
	Session string       `json:"sessionName"`
	Kind    QRResultKind `json:"status"`
	QRCode  string       `json:"qr,omitempty"`
	Message string       `json:"message"`
}

type SendResult struct {
	Session   string    `json:"sessionName"`
	To        string    `json:"to"`
	ChatID    string    `json:"chatId"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type DisconnectResult struct {
	Session string `json:"sessionName"`
	Message string `json:"message"`
}

// Registry owns every session by name and applies adapter callbacks to
// each session's state.
type Registry struct {
	factory        AdapterFactory
	config         core.SessionConfig
	defaultSession string
	publisher      Publisher
	directory      Directory
	observer       *core.Observer
	clock          core.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
	creating singleflight.Group
}

func NewRegistry(factory AdapterFactory, defaultSession string, cfg core.SessionConfig, opts ...Option) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("session: adapter factory is required")
	}
	builder := registryBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.directory == nil {
		directory, err := NewDirectory(cfg.DirectoryTTL)
		if err != nil {
			return nil, err
		}
		builder.directory = directory
	}
	defaultSession = strings.TrimSpace(defaultSession)
	if defaultSession == "" {
		defaultSession = core.DefaultSessionName
	}
	_, logger := core.ResolveLogger(loggerName, builder.loggerProvider, builder.logger)
	return &Registry{
		factory:        factory,
		config:         cfg,
		defaultSession: defaultSession,
		publisher:      builder.publisher,
		directory:      builder.directory,
		observer:       core.NewObserver(loggerName, logger, builder.metrics, builder.clock),
		clock:          builder.clock,
		sessions:       map[string]*Session{},
	}, nil
}

// SetPublisher replaces the event sink. It is meant for wiring before any
// session is created.
func (r *Registry) SetPublisher(publisher Publisher) {
	r.mu.Lock()
	r.publisher = publisher
	r.mu.Unlock()
}

// DefaultSession is the name used when a caller passes an empty name.
func (r *Registry) DefaultSession() string {
	return r.defaultSession
}

// CreateSession returns the session for name, building and initializing a
// new adapter only if none exists. Concurrent calls for the same name share
// one construction. An initialization failure removes the session again.
func (r *Registry) CreateSession(ctx context.Context, name string) (session *Session, err error) {
	name = r.resolveName(name)
	if existing, ok := r.lookup(name); ok {
		return existing, nil
	}

	value, err, _ := r.creating.Do(name, func() (any, error) {
		if existing, ok := r.lookup(name); ok {
			return existing, nil
		}
		return r.construct(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Session), nil
}

func (r *Registry) construct(ctx context.Context, name string) (session *Session, err error) {
	startedAt := r.clock.Now()
	defer func() {
		r.observer.ObserveOperation(ctx, startedAt, "create_session", err, map[string]any{
			"session": name,
		})
	}()

	session = newSession(name, startedAt, r.config.SendRatePerMinute)
	adapter, err := r.factory.NewAdapter(name, &sessionListener{registry: r, session: session})
	if err != nil {
		return nil, core.NewAdapterInitError(name, err)
	}
	if adapter == nil {
		return nil, core.NewAdapterInitError(name, fmt.Errorf("adapter factory returned nil"))
	}
	session.setAdapter(adapter)

	r.mu.Lock()
	r.sessions[name] = session
	r.mu.Unlock()

	if initErr := adapter.Initialize(ctx); initErr != nil {
		r.mu.Lock()
		if r.sessions[name] == session {
			delete(r.sessions, name)
		}
		r.mu.Unlock()
		if destroyErr := session.destroy(ctx); destroyErr != nil {
			r.observer.Warn(ctx, "adapter teardown after failed init", map[string]any{
				"session": name,
				"error":   destroyErr.Error(),
			})
		}
		return nil, core.NewAdapterInitError(name, initErr)
	}
	return session, nil
}

// GetQRCode ensures the session exists and reports its QR challenge, a
// ready notice or an initializing notice.
func (r *Registry) GetQRCode(ctx context.Context, name string) (QRResult, error) {
	session, err := r.CreateSession(ctx, name)
	if err != nil {
		return QRResult{}, err
	}
	snapshot := session.Snapshot()
	result := QRResult{Session: snapshot.Name}
	switch {
	case snapshot.HasQRCode:
		result.Kind = QRAvailable
		result.QRCode = snapshot.QRCode
		result.Message = fmt.Sprintf("QR Code for session %q", snapshot.Name)
	case snapshot.State == StateReady:
		result.Kind = QRAlreadyReady
		result.Message = fmt.Sprintf("Session %q is already authenticated and ready. No QR code needed.", snapshot.Name)
	default:
		result.Kind = QRInitializing
		result.Message = fmt.Sprintf("Session %q is initializing. Please wait for QR code to be generated.", snapshot.Name)
	}
	return result, nil
}

func (r *Registry) GetStatus(_ context.Context, name string) (Snapshot, error) {
	name = r.resolveName(name)
	session, ok := r.lookup(name)
	if !ok {
		return Snapshot{}, core.NewSessionNotFoundError(name)
	}
	return session.Snapshot(), nil
}

// GetSession returns the live session without creating one.
func (r *Registry) GetSession(name string) (*Session, bool) {
	return r.lookup(r.resolveName(name))
}

// GetAllSessions returns a snapshot of every session sorted by name.
func (r *Registry) GetAllSessions() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// SendMessage delivers body to a chat. The adapter is only called when the
// session is Ready.
func (r *Registry) SendMessage(ctx context.Context, to string, body string, name string) (result SendResult, err error) {
	startedAt := r.clock.Now()
	name = r.resolveName(name)
	defer func() {
		r.observer.ObserveOperation(ctx, startedAt, "send_message", err, map[string]any{
			"session":    name,
			"chat_id":    result.ChatID,
			"message_id": result.MessageID,
		})
	}()

	if strings.TrimSpace(to) == "" {
		return SendResult{}, core.NewBadInputError("to", "recipient is required")
	}
	if strings.TrimSpace(body) == "" {
		return SendResult{}, core.NewBadInputError("message", "message body is required")
	}
	session, adapter, err := r.readySession(name)
	if err != nil {
		return SendResult{}, err
	}
	if !session.allowSend() {
		return SendResult{}, core.NewRateLimitedError(name)
	}

	chatID := NormalizeChatID(to)
	receipt, err := adapter.SendMessage(ctx, chatID, body)
	if err != nil {
		return SendResult{ChatID: chatID}, core.WrapAdapterError(err, name, "send_message")
	}
	session.touch(r.clock.Now())
	return SendResult{
		Session:   name,
		To:        to,
		ChatID:    chatID,
		MessageID: receipt.MessageID,
		Timestamp: receipt.Timestamp,
		Message:   fmt.Sprintf("Message sent successfully to %s. Message ID: %s", to, receipt.MessageID),
	}, nil
}

func (r *Registry) GetContacts(ctx context.Context, name string) ([]Contact, error) {
	name = r.resolveName(name)
	_, adapter, err := r.readySession(name)
	if err != nil {
		return nil, err
	}
	contacts, err := r.directory.Contacts(ctx, name, adapter.GetContacts)
	if err != nil {
		return nil, core.WrapAdapterError(err, name, "get_contacts")
	}
	out := make([]Contact, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, contactName(contact))
	}
	return out, nil
}

func (r *Registry) GetChats(ctx context.Context, name string) ([]Chat, error) {
	name = r.resolveName(name)
	_, adapter, err := r.readySession(name)
	if err != nil {
		return nil, err
	}
	chats, err := r.directory.Chats(ctx, name, adapter.GetChats)
	if err != nil {
		return nil, core.WrapAdapterError(err, name, "get_chats")
	}
	return chats, nil
}

// FetchMessages returns up to limit normalized messages from chatID; a
// non-positive limit means 50.
func (r *Registry) FetchMessages(ctx context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error) {
	name = r.resolveName(name)
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, core.NewBadInputError("chatId", "chat id is required")
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	_, adapter, err := r.readySession(name)
	if err != nil {
		return nil, err
	}
	messages, err := adapter.FetchMessages(ctx, NormalizeChatID(chatID), limit)
	if err != nil {
		return nil, core.WrapAdapterError(err, name, "fetch_messages")
	}
	return normalizeMessages(messages), nil
}

// Disconnect removes the session and tears its adapter down. A teardown
// error is logged; the session is gone either way.
func (r *Registry) Disconnect(ctx context.Context, name string) (result DisconnectResult, err error) {
	startedAt := r.clock.Now()
	name = r.resolveName(name)
	defer func() {
		r.observer.ObserveOperation(ctx, startedAt, "disconnect", err, map[string]any{
			"session": name,
		})
	}()

	r.mu.Lock()
	session, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()
	if !ok {
		return DisconnectResult{}, core.NewSessionNotFoundError(name)
	}

	if destroyErr := session.destroy(ctx); destroyErr != nil {
		r.observer.Warn(ctx, "adapter teardown failed", map[string]any{
			"session": name,
			"error":   destroyErr.Error(),
		})
	}
	r.invalidateDirectory(ctx, name)
	return DisconnectResult{
		Session: name,
		Message: fmt.Sprintf("Session %q disconnected successfully.", name),
	}, nil
}

// Close disconnects every session.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.RUnlock()

	var errs []error
	for _, name := range names {
		if _, err := r.Disconnect(ctx, name); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) resolveName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.defaultSession
	}
	return name
}

func (r *Registry) lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[name]
	return session, ok
}

func (r *Registry) current(session *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[session.name] == session
}

func (r *Registry) readySession(name string) (*Session, Adapter, error) {
	session, ok := r.lookup(name)
	if !ok {
		return nil, nil, core.NewSessionNotReadyError(name, "")
	}
	adapter, state := session.readyAdapter()
	if adapter == nil {
		return nil, nil, core.NewSessionNotReadyError(name, state.String())
	}
	return session, adapter, nil
}

func (r *Registry) invalidateDirectory(ctx context.Context, name string) {
	if err := r.directory.Invalidate(ctx, name); err != nil {
		r.observer.Warn(ctx, "directory invalidation failed", map[string]any{
			"session": name,
			"error":   err.Error(),
		})
	}
}

func (r *Registry) publish(session *Session, event core.Event) {
	if !r.current(session) {
		return
	}
	r.mu.RLock()
	publisher := r.publisher
	r.mu.RUnlock()
	if publisher == nil {
		return
	}
	event.Session = session.name
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.clock.Now()
	}
	publisher.Publish(context.Background(), event)
}

// sessionListener applies adapter callbacks to one session.
type sessionListener struct {
	registry *Registry
	session  *Session
}

func (l *sessionListener) OnQR(code string) {
	now := l.registry.clock.Now()
	l.session.onQR(code, now)
	l.registry.observer.Info(context.Background(), "qr code received", map[string]any{
		"session": l.session.name,
	})
	l.registry.publish(l.session, core.Event{Kind: core.EventQR, QR: code, OccurredAt: now})
}

func (l *sessionListener) OnAuthenticated() {
	now := l.registry.clock.Now()
	l.session.touch(now)
	l.registry.publish(l.session, core.Event{Kind: core.EventAuthenticated, OccurredAt: now})
}

func (l *sessionListener) OnReady() {
	now := l.registry.clock.Now()
	l.session.onReady(now)
	l.registry.invalidateDirectory(context.Background(), l.session.name)
	l.registry.observer.Info(context.Background(), "session ready", map[string]any{
		"session": l.session.name,
	})
	l.registry.publish(l.session, core.Event{Kind: core.EventReady, OccurredAt: now})
}

func (l *sessionListener) OnAuthFailure(reason string) {
	now := l.registry.clock.Now()
	forced := l.session.onAuthFailure(l.registry.config.MaxAuthFailures)
	l.registry.observer.Warn(context.Background(), "authentication failed", map[string]any{
		"session": l.session.name,
		"reason":  reason,
		"forced":  forced,
	})
	l.registry.publish(l.session, core.Event{Kind: core.EventAuthFailure, Reason: reason, OccurredAt: now})
	if forced {
		l.registry.invalidateDirectory(context.Background(), l.session.name)
		l.registry.publish(l.session, core.Event{Kind: core.EventDisconnected, Reason: forcedDisconnectReason, OccurredAt: now})
	}
}

func (l *sessionListener) OnDisconnected(reason string) {
	now := l.registry.clock.Now()
	l.session.onDisconnected(now)
	l.registry.invalidateDirectory(context.Background(), l.session.name)
	l.registry.observer.Info(context.Background(), "session disconnected", map[string]any{
		"session": l.session.name,
		"reason":  reason,
	})
	l.registry.publish(l.session, core.Event{Kind: core.EventDisconnected, Reason: reason, OccurredAt: now})
}

func (l *sessionListener) OnMessage(msg RawMessage) {
	l.onMessage(core.EventMessage, msg)
}

func (l *sessionListener) OnMessageCreate(msg RawMessage) {
	l.onMessage(core.EventMessageCreate, msg)
}

func (l *sessionListener) onMessage(kind core.EventKind, msg RawMessage) {
	now := l.registry.clock.Now()
	l.session.touch(now)
	record := NormalizeMessage(msg)
	l.registry.publish(l.session, core.Event{Kind: kind, Message: &record, OccurredAt: now})
}
