package session

import (
	"strings"

	"github.com/goliatone/go-wabridge/core"
)

const (
	userChatSuffix    = "@c.us"
	unknownContact    = "Unknown"
	defaultFetchLimit = 50
)

// NormalizeMessage maps an adapter message onto the canonical record.
func NormalizeMessage(raw RawMessage) core.MessageRecord {
	record := core.MessageRecord{
		ID:          raw.ID,
		Body:        raw.Body,
		Kind:        raw.Type,
		From:        raw.From,
		To:          raw.To,
		IsOutgoing:  raw.FromMe,
		HasMedia:    raw.HasMedia,
		IsForwarded: raw.IsForwarded,
	}
	if record.Kind == "" {
		record.Kind = "chat"
	}
	if !raw.Timestamp.IsZero() {
		record.Timestamp = raw.Timestamp.Unix()
	}
	return record
}

func normalizeMessages(raw []RawMessage) []core.MessageRecord {
	out := make([]core.MessageRecord, 0, len(raw))
	for _, msg := range raw {
		out = append(out, NormalizeMessage(msg))
	}
	return out
}

// NormalizeChatID turns a bare phone number into a user chat id. Ids that
// already carry a server part are returned unchanged.
func NormalizeChatID(to string) string {
	to = strings.TrimSpace(to)
	if to == "" || strings.Contains(to, "@") {
		return to
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, to)
	if digits == "" {
		return to + userChatSuffix
	}
	return digits + userChatSuffix
}

func contactName(contact Contact) Contact {
	if strings.TrimSpace(contact.Name) == "" {
		contact.Name = unknownContact
	}
	return contact
}
