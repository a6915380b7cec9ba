package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/fakechat/chat"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// inboundEvent is one entry of the client-bound queue: a server frame or the
// interruption signal.
type inboundEvent struct {
	frame       chat.Inbound
	interrupted bool
}

// pair is the state shared by a connection's transport and its Remote.
//
// Teardown is eager: releasing either handle closes the pair for both.
// Captured records stay retrievable after teardown; client-bound events that
// were not yet consumed are discarded.
type pair struct {
	id       uuid.UUID
	ledger   *ledger
	incoming *queue[inboundEvent]

	refs         atomic.Int32
	closed       atomic.Bool
	teardownOnce sync.Once

	logger zerolog.Logger
}

func newPair(logger zerolog.Logger) *pair {
	id := uuid.New()
	p := &pair{
		id:       id,
		ledger:   newLedger(),
		incoming: newQueue[inboundEvent](),
		logger: logger.With().
			Str("com", "harness").
			Str("pair", id.String()).
			Logger(),
	}
	// One reference for the connection's transport, one for the Remote.
	p.refs.Store(2)
	return p
}

// deliver enqueues a client-bound event.
func (p *pair) deliver(ev inboundEvent) error {
	if p.closed.Load() {
		return ErrInjection
	}
	if err := p.incoming.push(ev); err != nil {
		return ErrInjection
	}
	return nil
}

// release drops one handle's reference and tears the pair down.
func (p *pair) release(side string) {
	left := p.refs.Add(-1)
	p.logger.Debug().Str("side", side).Int32("refs", left).Msg("handle released")
	p.teardown(side + " released")
}

func (p *pair) teardown(reason string) {
	p.teardownOnce.Do(func() {
		p.closed.Store(true)
		dropped := p.incoming.abandon()
		p.ledger.close()

		p.logger.Debug().
			Str("reason", reason).
			Int("dropped_events", dropped).
			Int("unretrieved_requests", p.ledger.requests.len()).
			Msg("pair torn down")
	})
}

// pairTransport is the connection-side handle of a pair.
type pairTransport struct {
	p         *pair
	closeOnce sync.Once
}

var _ chat.Transport = (*pairTransport)(nil)

func (t *pairTransport) SendRequest(ctx context.Context, id uint64, payload []byte) error {
	if err := t.p.ledger.recordRequest(id, payload); err != nil {
		return fmt.Errorf("record request %d: %w", id, err)
	}
	t.p.logger.Trace().Uint64("id", id).Int("size", len(payload)).Msg("captured outgoing request")
	return nil
}

func (t *pairTransport) SendResponse(ctx context.Context, id uint64, payload []byte) error {
	if err := t.p.ledger.recordResponse(id, payload); err != nil {
		return fmt.Errorf("record response %d: %w", id, err)
	}
	t.p.logger.Trace().Uint64("id", id).Int("size", len(payload)).Msg("captured outgoing response")
	return nil
}

func (t *pairTransport) Receive(ctx context.Context) (chat.Inbound, error) {
	ev, err := t.p.incoming.next(ctx)
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			return chat.Inbound{}, chat.ErrTransportClosed
		}
		return chat.Inbound{}, err
	}
	if ev.interrupted {
		return chat.Inbound{}, chat.ErrInterrupted
	}
	return ev.frame, nil
}

// Close releases the connection side. Calling it again is a no-op.
func (t *pairTransport) Close() error {
	t.closeOnce.Do(func() { t.p.release("connection") })
	return nil
}
