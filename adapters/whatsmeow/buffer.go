package whatsmeow

import (
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/session"
)

// messageBuffer keeps the most recent messages of a session. The device
// store does not persist history, so fetches are served from here.
type messageBuffer struct {
	mu    sync.Mutex
	items []session.RawMessage
	next  int
	full  bool
}

func newMessageBuffer(size int) *messageBuffer {
	if size <= 0 {
		size = 1
	}
	return &messageBuffer{items: make([]session.RawMessage, size)}
}

func (b *messageBuffer) Add(msg session.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.next] = msg
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

func (b *messageBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Snapshot returns the buffered messages oldest first.
func (b *messageBuffer) Snapshot() []session.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]session.RawMessage(nil), b.items[:b.next]...)
	}
	out := make([]session.RawMessage, 0, len(b.items))
	out = append(out, b.items[b.next:]...)
	return append(out, b.items[:b.next]...)
}

// ForChat returns up to limit of the latest messages exchanged with chatID,
// oldest first.
func (b *messageBuffer) ForChat(chatID string, limit int) []session.RawMessage {
	all := b.Snapshot()
	out := make([]session.RawMessage, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		msg := all[i]
		if msg.From == chatID || msg.To == chatID {
			out = append(out, msg)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// LastActivity maps each chat seen in the buffer to its newest message time.
func (b *messageBuffer) LastActivity() map[string]time.Time {
	out := map[string]time.Time{}
	for _, msg := range b.Snapshot() {
		chat := msg.From
		if msg.FromMe {
			chat = msg.To
		}
		if chat == "" {
			continue
		}
		if msg.Timestamp.After(out[chat]) {
			out[chat] = msg.Timestamp
		}
	}
	return out
}
