// Package harness provides an in-memory stand-in for a chat server. A pair
// created by ConnectAuthenticated or ConnectUnauthenticated couples a real
// chat.Connection to a Remote through which tests play the server: injecting
// server requests and responses, retrieving what the connection sent, and
// simulating interruption.
package harness

import (
	"errors"
	"fmt"

	"github.com/Mmx233/fakechat/async"
	"github.com/Mmx233/fakechat/chat"
	"github.com/rs/zerolog"
)

type options struct {
	logger zerolog.Logger
}

// Option configures a pair.
type Option func(*options)

// WithLogger sets the logger used by the pair and its connection.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConnectAuthenticated creates an authenticated connection wired to a Remote.
// alerts reach listener exactly once, in order, after the connection exists.
func ConnectAuthenticated(exec *async.Executor, listener chat.Listener, alerts []string, opts ...Option) (*chat.Connection, *Remote, error) {
	if exec == nil || listener == nil {
		return nil, nil, fmt.Errorf("%w: executor and listener are required", ErrHarnessCreation)
	}
	o := buildOptions(opts)

	p := newPair(o.logger)
	bridge := newAuthBridge(listener)
	// The connection reports alerts before it is returned, so the bridge
	// buffers them until attach. Attach only once the read loop is running,
	// so a failed start never reaches the listener.
	conn := chat.NewAuthenticated(exec, &pairTransport{p: p}, bridge, alerts, connLogger(o, p))

	return start(p, conn, exec, bridge.attach)
}

// ConnectUnauthenticated creates an unauthenticated connection wired to a Remote.
func ConnectUnauthenticated(exec *async.Executor, listener chat.EventsListener, opts ...Option) (*chat.Connection, *Remote, error) {
	if exec == nil || listener == nil {
		return nil, nil, fmt.Errorf("%w: executor and listener are required", ErrHarnessCreation)
	}
	o := buildOptions(opts)

	p := newPair(o.logger)
	bridge := newUnauthBridge(listener)
	conn := chat.NewUnauthenticated(exec, &pairTransport{p: p}, bridge, connLogger(o, p))

	return start(p, conn, exec, bridge.attach)
}

func connLogger(o options, p *pair) zerolog.Logger {
	return o.logger.With().Str("pair", p.id.String()).Logger()
}

// start runs the read loop and then attaches the listener. Nothing can reach
// the read loop before the Remote is returned, so no event precedes attach.
func start(p *pair, conn *chat.Connection, exec *async.Executor, attach func(*chat.Connection)) (*chat.Connection, *Remote, error) {
	if err := conn.Start(); err != nil {
		p.teardown("start failed")
		return nil, nil, fmt.Errorf("%w: %w", ErrHarnessCreation, err)
	}
	attach(conn)

	p.logger.Debug().Stringer("kind", conn.Kind()).Msg("pair connected")
	return conn, newRemote(p, exec), nil
}

// IsClosed reports whether err means the pair is gone, whichever side
// observed it.
func IsClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrInjection) ||
		errors.Is(err, chat.ErrTransportClosed) || errors.Is(err, chat.ErrDisconnected)
}
