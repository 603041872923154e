package whatsmeow

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	wa "go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
)

const storeDialect = "sqlite3"

// Adapter drives one whatsmeow client on behalf of a session.
type Adapter struct {
	name     string
	config   Config
	listener session.Listener
	logger   core.Logger
	buffer   *messageBuffer

	client atomic.Pointer[wa.Client]

	mu        sync.Mutex
	container *sqlstore.Container
	handlerID uint32
	cancelQR  context.CancelFunc
}

func newAdapter(name string, cfg Config, listener session.Listener, logger core.Logger) *Adapter {
	return &Adapter{
		name:     name,
		config:   cfg,
		listener: listener,
		logger:   logger,
		buffer:   newMessageBuffer(cfg.MessageBuffer),
	}
}

// Initialize opens the device store and connects. An unpaired device
// starts streaming QR codes to the listener before the socket opens.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client.Load() != nil {
		return nil
	}
	if err := os.MkdirAll(a.config.DataDir, 0o700); err != nil {
		return fmt.Errorf("whatsmeow: create data dir: %w", err)
	}

	waLogger := newWALogger(a.logger, a.name)
	container, err := sqlstore.New(ctx, storeDialect, a.config.storeDSN(a.name), waLogger.Sub("Database"))
	if err != nil {
		return fmt.Errorf("whatsmeow: open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return fmt.Errorf("whatsmeow: load device: %w", err)
	}
	if device == nil {
		device = container.NewDevice()
	}
	store.DeviceProps.Os = proto.String(a.config.DeviceName)

	client := wa.NewClient(device, waLogger.Sub("Client"))
	client.EnableAutoReconnect = true
	handlerID := client.AddEventHandler(a.handleEvent)
	a.client.Store(client)

	var cancel context.CancelFunc
	if client.Store.ID == nil {
		var qrCtx context.Context
		qrCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			a.release(client, handlerID, container)
			return fmt.Errorf("whatsmeow: open qr channel: %w", err)
		}
		go a.consumeQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		if cancel != nil {
			cancel()
		}
		a.release(client, handlerID, container)
		return fmt.Errorf("whatsmeow: connect: %w", err)
	}

	a.container = container
	a.handlerID = handlerID
	a.cancelQR = cancel
	a.logger.Info("whatsmeow client connecting", "session", a.name, "paired", client.Store.ID != nil)
	return nil
}

func (a *Adapter) release(client *wa.Client, handlerID uint32, container *sqlstore.Container) {
	a.client.CompareAndSwap(client, nil)
	client.RemoveEventHandler(handlerID)
	client.Disconnect()
	if container != nil {
		_ = container.Close()
	}
}

func (a *Adapter) SendMessage(ctx context.Context, chatID string, body string) (session.SendReceipt, error) {
	client, err := a.connectedClient()
	if err != nil {
		return session.SendReceipt{}, err
	}
	jid, err := ToJID(chatID)
	if err != nil {
		return session.SendReceipt{}, err
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return session.SendReceipt{}, fmt.Errorf("whatsmeow: send message: %w", err)
	}

	sent := session.RawMessage{
		ID:        resp.ID,
		Body:      body,
		Type:      "chat",
		Timestamp: resp.Timestamp,
		From:      a.selfChatID(),
		To:        ChatIDFromJID(jid),
		FromMe:    true,
	}
	a.buffer.Add(sent)
	a.listener.OnMessageCreate(sent)
	return session.SendReceipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (a *Adapter) GetContacts(ctx context.Context) ([]session.Contact, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	stored, err := client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: load contacts: %w", err)
	}
	contacts := make([]session.Contact, 0, len(stored))
	for jid, info := range stored {
		contacts = append(contacts, contactFromStore(jid, info))
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].ID < contacts[j].ID
	})
	return contacts, nil
}

// GetChats lists joined groups and known contacts, most recently active
// first according to the message buffer.
func (a *Adapter) GetChats(ctx context.Context) ([]session.Chat, error) {
	client, err := a.connectedClient()
	if err != nil {
		return nil, err
	}
	groups, err := client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: load groups: %w", err)
	}
	stored, err := client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: load contacts: %w", err)
	}
	return buildChats(groups, stored, a.buffer.LastActivity()), nil
}

func (a *Adapter) FetchMessages(_ context.Context, chatID string, limit int) ([]session.RawMessage, error) {
	if _, err := ToJID(chatID); err != nil {
		return nil, err
	}
	return a.buffer.ForChat(canonicalChatID(chatID), limit), nil
}

func (a *Adapter) Identity() (session.Identity, bool) {
	client := a.client.Load()
	if client == nil || client.Store == nil || client.Store.ID == nil {
		return session.Identity{}, false
	}
	return session.Identity{
		ID:       ChatIDFromJID(*client.Store.ID),
		PushName: client.Store.PushName,
		Platform: client.Store.Platform,
	}, true
}

// Destroy disconnects and closes the device store. The device stays paired
// so the next Initialize reconnects without a QR code.
func (a *Adapter) Destroy(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelQR != nil {
		a.cancelQR()
		a.cancelQR = nil
	}
	if client := a.client.Swap(nil); client != nil {
		client.RemoveEventHandler(a.handlerID)
		client.Disconnect()
	}
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	if err != nil {
		return fmt.Errorf("whatsmeow: close device store: %w", err)
	}
	return nil
}

func (a *Adapter) connectedClient() (*wa.Client, error) {
	client := a.client.Load()
	if client == nil || !client.IsConnected() {
		return nil, fmt.Errorf("whatsmeow: session %q is not connected", a.name)
	}
	return client, nil
}

func (a *Adapter) selfChatID() string {
	client := a.client.Load()
	if client == nil || client.Store == nil || client.Store.ID == nil {
		return ""
	}
	return ChatIDFromJID(*client.Store.ID)
}

func contactFromStore(jid types.JID, info types.ContactInfo) session.Contact {
	name := info.FullName
	for _, candidate := range []string{info.PushName, info.FirstName, info.BusinessName} {
		if name != "" {
			break
		}
		name = candidate
	}
	return session.Contact{
		ID:          ChatIDFromJID(jid),
		Name:        name,
		Number:      jid.User,
		IsUser:      jid.Server == types.DefaultUserServer,
		IsGroup:     jid.Server == types.GroupServer,
		IsWAContact: info.Found,
	}
}

func buildChats(groups []*types.GroupInfo, contacts map[types.JID]types.ContactInfo, activity map[string]time.Time) []session.Chat {
	chats := make([]session.Chat, 0, len(groups)+len(contacts))
	for _, group := range groups {
		if group == nil {
			continue
		}
		id := ChatIDFromJID(group.JID)
		chats = append(chats, session.Chat{
			ID:         id,
			Name:       group.Name,
			IsGroup:    true,
			IsReadOnly: group.IsAnnounce,
			Timestamp:  unixOrZero(activity[id]),
		})
	}
	for jid, info := range contacts {
		contact := contactFromStore(jid, info)
		chats = append(chats, session.Chat{
			ID:        contact.ID,
			Name:      contact.Name,
			Timestamp: unixOrZero(activity[contact.ID]),
		})
	}
	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].Timestamp != chats[j].Timestamp {
			return chats[i].Timestamp > chats[j].Timestamp
		}
		return chats[i].ID < chats[j].ID
	})
	return chats
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
