package harness

import (
	"sync"

	"github.com/Mmx233/fakechat/chat"
)

// attachment is the exactly-once link from a bridge to the connection it
// reports events for.
type attachment struct {
	mu   sync.Mutex
	conn *chat.Connection
}

// set panics if the attachment is already settled.
func (a *attachment) set(conn *chat.Connection) {
	if a.conn != nil {
		panic("harness: listener attached twice")
	}
	a.conn = conn
}

func (a *attachment) get() *chat.Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

// authBridge adapts an authenticated connection's event sink to a
// chat.Listener. Alerts reported before attach are held, in arrival order,
// and flushed once on attach; everything after attach passes straight
// through.
type authBridge struct {
	attachment
	listener chat.Listener
	pending  []string
}

var _ chat.AuthEventSink = (*authBridge)(nil)

func newAuthBridge(listener chat.Listener) *authBridge {
	return &authBridge{listener: listener}
}

func (b *authBridge) attach(conn *chat.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.set(conn)
	if len(b.pending) > 0 {
		alerts := b.pending
		b.pending = nil
		b.listener.OnAlerts(conn, alerts)
	}
}

// Alerts holds b.mu while forwarding so buffered alerts always reach the
// listener before any alert reported after attach.
func (b *authBridge) Alerts(alerts []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		b.pending = append(b.pending, alerts...)
		return
	}
	b.listener.OnAlerts(b.conn, alerts)
}

func (b *authBridge) IncomingMessage(envelope []byte, serverTimestamp uint64, ack chat.Ack) {
	b.listener.OnIncomingMessage(b.get(), envelope, serverTimestamp, ack)
}

func (b *authBridge) QueueEmpty() {
	b.listener.OnQueueEmpty(b.get())
}

func (b *authBridge) ConnectionInterrupted(err error) {
	b.listener.OnConnectionInterrupted(b.get(), err)
}

// unauthBridge is the bridge for unauthenticated connections, which never
// report alerts.
type unauthBridge struct {
	attachment
	listener chat.EventsListener
}

var _ chat.EventSink = (*unauthBridge)(nil)

func newUnauthBridge(listener chat.EventsListener) *unauthBridge {
	return &unauthBridge{listener: listener}
}

func (b *unauthBridge) attach(conn *chat.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(conn)
}

func (b *unauthBridge) ConnectionInterrupted(err error) {
	b.listener.OnConnectionInterrupted(b.get(), err)
}
