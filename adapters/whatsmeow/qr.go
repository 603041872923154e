package whatsmeow

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mdp/qrterminal/v3"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/router"
)

// TerminalQRHandler renders qr events as half-block QR codes on w.
func TerminalQRHandler(w io.Writer) router.Handler {
	var mu sync.Mutex
	return router.HandlerFunc(func(_ context.Context, event core.Event) {
		if event.Kind != core.EventQR || event.QR == "" || w == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "scan the QR code below to link session %q\n", event.Session)
		qrterminal.GenerateHalfBlock(event.QR, qrterminal.L, w)
	})
}
