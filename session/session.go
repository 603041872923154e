package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Session is one named connection and the sole owner of its adapter.
type Session struct {
	name string

	mu             sync.RWMutex
	state          State
	qrCode         string
	lastActivityAt time.Time
	authFailures   int
	adapter        Adapter

	limiter *rate.Limiter
}

// Snapshot is a point-in-time copy of a session's observable fields.
type Snapshot struct {
	Name           string    `json:"sessionName"`
	State          State     `json:"state"`
	IsReady        bool      `json:"isReady"`
	QRCode         string    `json:"-"`
	HasQRCode      bool      `json:"hasQRCode"`
	LastActivityAt time.Time `json:"lastActivity"`
	Identity       *Identity `json:"clientInfo"`
}

func newSession(name string, now time.Time, sendRatePerMinute int) *Session {
	s := &Session{
		name:           name,
		state:          StateInitializing,
		lastActivityAt: now,
	}
	if sendRatePerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(sendRatePerMinute)/60), sendRatePerMinute)
	}
	return s
}

func (s *Session) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Session) State() State {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	adapter := s.adapter
	snapshot := Snapshot{
		Name:           s.name,
		State:          s.state,
		IsReady:        s.state == StateReady,
		QRCode:         s.qrCode,
		HasQRCode:      s.qrCode != "",
		LastActivityAt: s.lastActivityAt,
	}
	s.mu.RUnlock()
	if adapter != nil {
		if identity, ok := adapter.Identity(); ok {
			snapshot.Identity = &identity
		}
	}
	return snapshot
}

func (s *Session) readyAdapter() (Adapter, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady || s.adapter == nil {
		return nil, s.state
	}
	return s.adapter, s.state
}

func (s *Session) allowSend() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (s *Session) setAdapter(adapter Adapter) {
	s.mu.Lock()
	s.adapter = adapter
	s.mu.Unlock()
}

func (s *Session) detachAdapter() Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	adapter := s.adapter
	s.adapter = nil
	s.state = StateDisconnected
	s.qrCode = ""
	return adapter
}

func (s *Session) destroy(ctx context.Context) error {
	adapter := s.detachAdapter()
	if adapter == nil {
		return nil
	}
	return adapter.Destroy(ctx)
}

func (s *Session) onQR(code string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateQRPending
	s.qrCode = code
	s.lastActivityAt = now
}

func (s *Session) onReady(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.qrCode = ""
	s.authFailures = 0
	s.lastActivityAt = now
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = now
}

// onAuthFailure records a failure and reports whether the limit forced a
// disconnect.
func (s *Session) onAuthFailure(limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFailures++
	if limit <= 0 || s.authFailures < limit {
		return false
	}
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	s.qrCode = ""
	return true
}

func (s *Session) onDisconnected(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.qrCode = ""
	s.lastActivityAt = now
}
