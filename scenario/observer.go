package scenario

import (
	"context"
	"slices"
	"sync"

	"github.com/Mmx233/fakechat/chat"
	"github.com/rs/zerolog"
)

// observer is the listener used for scenario runs. It acknowledges every
// incoming message and records what it saw.
type observer struct {
	ctx    context.Context
	logger zerolog.Logger

	mu          sync.Mutex
	alerts      []string
	messages    []Message
	queueEmpty  int
	interrupted error

	queueEmptyCh  chan struct{}
	interruptedCh chan struct{}
	interruptOnce sync.Once
}

var _ chat.Listener = (*observer)(nil)

func newObserver(ctx context.Context, logger zerolog.Logger) *observer {
	return &observer{
		ctx:           ctx,
		logger:        logger,
		queueEmptyCh:  make(chan struct{}, 64),
		interruptedCh: make(chan struct{}),
	}
}

func (o *observer) OnAlerts(_ *chat.Connection, alerts []string) {
	o.mu.Lock()
	o.alerts = append(o.alerts, alerts...)
	o.mu.Unlock()
	o.logger.Info().Strs("alerts", alerts).Msg("alerts received")
}

func (o *observer) OnIncomingMessage(_ *chat.Connection, envelope []byte, serverTimestamp uint64, ack chat.Ack) {
	o.mu.Lock()
	o.messages = append(o.messages, Message{Envelope: slices.Clone(envelope), ServerTimestamp: serverTimestamp})
	o.mu.Unlock()

	o.logger.Debug().Int("size", len(envelope)).Uint64("ts", serverTimestamp).Msg("incoming message")
	if err := ack(o.ctx); err != nil {
		o.logger.Warn().Err(err).Msg("ack incoming message")
	}
}

func (o *observer) OnQueueEmpty(_ *chat.Connection) {
	o.mu.Lock()
	o.queueEmpty++
	o.mu.Unlock()

	select {
	case o.queueEmptyCh <- struct{}{}:
	default:
		o.logger.Warn().Msg("queue empty signal dropped")
	}
}

func (o *observer) OnConnectionInterrupted(_ *chat.Connection, err error) {
	o.interruptOnce.Do(func() {
		o.mu.Lock()
		o.interrupted = err
		o.mu.Unlock()
		close(o.interruptedCh)
	})
}

func (o *observer) fill(r *Report) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r.Alerts = slices.Clone(o.alerts)
	r.Messages = slices.Clone(o.messages)
	r.QueueEmpty = o.queueEmpty
	if o.interrupted != nil {
		r.Interrupted = true
		r.InterruptError = o.interrupted.Error()
	}
}
