package whatsmeow

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// UserServerAlias is the server part used for user chats in public chat ids.
const UserServerAlias = "c.us"

// ToJID parses a public chat id. `<number>@c.us` maps onto the user server
// and a bare number is treated as a user id.
func ToJID(chatID string) (types.JID, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return types.EmptyJID, fmt.Errorf("whatsmeow: chat id is required")
	}
	if user, ok := strings.CutSuffix(chatID, "@"+UserServerAlias); ok {
		chatID = user + "@" + types.DefaultUserServer
	}
	if !strings.Contains(chatID, "@") {
		return types.NewJID(strings.TrimPrefix(chatID, "+"), types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return types.EmptyJID, fmt.Errorf("whatsmeow: parse chat id %q: %w", chatID, err)
	}
	if jid.User == "" {
		return types.EmptyJID, fmt.Errorf("whatsmeow: chat id %q has no user part", chatID)
	}
	return jid, nil
}

// ChatIDFromJID renders a JID as a public chat id, dropping the device part.
func ChatIDFromJID(jid types.JID) string {
	if jid.IsEmpty() {
		return ""
	}
	jid = jid.ToNonAD()
	if jid.Server == types.DefaultUserServer {
		return jid.User + "@" + UserServerAlias
	}
	return jid.String()
}

func canonicalChatID(chatID string) string {
	jid, err := ToJID(chatID)
	if err != nil {
		return strings.TrimSpace(chatID)
	}
	return ChatIDFromJID(jid)
}
