package whatsmeow

import (
	"fmt"

	wa "go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/goliatone/go-wabridge/session"
)

const (
	reasonLoggedOut      = "LOGOUT"
	reasonStreamReplaced = "CONFLICT"
	reasonConnectionLost = "CONNECTION_LOST"
	reasonQRTimeout      = "QR_TIMEOUT"
)

// handleEvent translates whatsmeow events into listener callbacks. It runs
// on the client's event goroutine, so it must not block on adapter locks.
func (a *Adapter) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		a.logger.Info("device paired", "session", a.name, "platform", e.Platform)
		a.listener.OnAuthenticated()
	case *events.Connected:
		a.listener.OnReady()
	case *events.PairError:
		a.listener.OnAuthFailure(errorText(e.Error, "pairing failed"))
	case *events.ConnectFailure:
		a.listener.OnAuthFailure(fmt.Sprintf("%s: %s", e.Reason.String(), e.Message))
	case *events.TemporaryBan:
		a.listener.OnAuthFailure(e.String())
	case *events.LoggedOut:
		a.listener.OnAuthFailure("logged out: " + e.Reason.String())
		a.listener.OnDisconnected(reasonLoggedOut)
	case *events.StreamReplaced:
		a.listener.OnDisconnected(reasonStreamReplaced)
	case *events.Disconnected:
		a.listener.OnDisconnected(reasonConnectionLost)
	case *events.Message:
		msg, ok := a.convertMessage(e)
		if !ok {
			return
		}
		a.buffer.Add(msg)
		if !msg.FromMe {
			a.listener.OnMessage(msg)
		}
		a.listener.OnMessageCreate(msg)
	}
}

func (a *Adapter) consumeQR(items <-chan wa.QRChannelItem) {
	for item := range items {
		switch item.Event {
		case "code":
			a.listener.OnQR(item.Code)
		case "success":
		case "timeout":
			a.listener.OnDisconnected(reasonQRTimeout)
		default:
			a.listener.OnAuthFailure(errorText(item.Error, item.Event))
		}
	}
}

func (a *Adapter) convertMessage(e *events.Message) (session.RawMessage, bool) {
	if e == nil || e.Message == nil {
		return session.RawMessage{}, false
	}
	body, kind, hasMedia, forwarded := describeMessage(e.Message)
	if kind == "" {
		return session.RawMessage{}, false
	}
	chat := ChatIDFromJID(e.Info.Chat)
	self := a.selfChatID()
	msg := session.RawMessage{
		ID:          e.Info.ID,
		Body:        body,
		Type:        kind,
		Timestamp:   e.Info.Timestamp,
		FromMe:      e.Info.IsFromMe,
		HasMedia:    hasMedia,
		IsForwarded: forwarded,
	}
	if msg.FromMe {
		msg.From, msg.To = self, chat
	} else {
		msg.From, msg.To = chat, self
	}
	return msg, true
}

// describeMessage extracts the text, kind and flags of the message types
// the bridge relays. Protocol messages, reactions and receipts yield an
// empty kind.
func describeMessage(m *waE2E.Message) (body string, kind string, hasMedia bool, forwarded bool) {
	switch {
	case m.GetConversation() != "":
		return m.GetConversation(), "chat", false, false
	case m.GetExtendedTextMessage() != nil:
		ext := m.GetExtendedTextMessage()
		return ext.GetText(), "chat", false, ext.GetContextInfo().GetIsForwarded()
	case m.GetImageMessage() != nil:
		img := m.GetImageMessage()
		return img.GetCaption(), "image", true, img.GetContextInfo().GetIsForwarded()
	case m.GetVideoMessage() != nil:
		video := m.GetVideoMessage()
		return video.GetCaption(), "video", true, video.GetContextInfo().GetIsForwarded()
	case m.GetAudioMessage() != nil:
		audio := m.GetAudioMessage()
		kind = "audio"
		if audio.GetPTT() {
			kind = "ptt"
		}
		return "", kind, true, audio.GetContextInfo().GetIsForwarded()
	case m.GetDocumentMessage() != nil:
		doc := m.GetDocumentMessage()
		return doc.GetCaption(), "document", true, doc.GetContextInfo().GetIsForwarded()
	case m.GetStickerMessage() != nil:
		return "", "sticker", true, m.GetStickerMessage().GetContextInfo().GetIsForwarded()
	}
	return "", "", false, false
}

func errorText(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
