package session

type State string

const (
	StateInitializing State = "initializing"
	StateQRPending    State = "qr_pending"
	StateReady        State = "ready"
	StateDisconnected State = "disconnected"
)

func (s State) String() string {
	return string(s)
}

type QRResultKind string

const (
	QRAvailable    QRResultKind = "qr"
	QRAlreadyReady QRResultKind = "ready"
	QRInitializing QRResultKind = "initializing"
)
