// Package chat implements the client side of a chat connection: request ID
// assignment, response correlation, dispatch of server-pushed requests to a
// listener and handling of transport interruption.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/fakechat/async"
	"github.com/Mmx233/fakechat/protocol"
	"github.com/rs/zerolog"
)

var (
	// ErrDisconnected fails sends that were pending when the connection stopped.
	ErrDisconnected = errors.New("connection disconnected")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("connection already started")
)

// Kind is the connection variant. Only authenticated connections receive
// server requests and alerts.
type Kind int

const (
	KindUnauthenticated Kind = iota
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ConnectionState represents the state of a chat connection
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnected
)

// String returns a string representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is a chat connection over a Transport. Create one with
// NewAuthenticated or NewUnauthenticated, then call Start to begin reading
// server frames.
type Connection struct {
	kind      Kind
	transport Transport
	events    EventSink
	auth      AuthEventSink // nil for unauthenticated connections
	exec      *async.Executor

	nextID atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]chan *protocol.Response
	closeErr error

	state          atomic.Int32
	started        atomic.Bool
	localClose     atomic.Bool
	disconnectOnce sync.Once
	doneOnce       sync.Once
	done           chan struct{}

	logger zerolog.Logger
}

// NewAuthenticated creates an authenticated connection. The alerts the server
// sent during the handshake are reported to sink before NewAuthenticated
// returns.
func NewAuthenticated(exec *async.Executor, transport Transport, sink AuthEventSink, alerts []string, logger zerolog.Logger) *Connection {
	c := newConnection(KindAuthenticated, exec, transport, sink, logger)
	c.auth = sink

	if len(alerts) > 0 {
		c.logger.Debug().Int("count", len(alerts)).Msg("received alerts")
		sink.Alerts(slices.Clone(alerts))
	}

	return c
}

// NewUnauthenticated creates an unauthenticated connection.
func NewUnauthenticated(exec *async.Executor, transport Transport, sink EventSink, logger zerolog.Logger) *Connection {
	return newConnection(KindUnauthenticated, exec, transport, sink, logger)
}

func newConnection(kind Kind, exec *async.Executor, transport Transport, sink EventSink, logger zerolog.Logger) *Connection {
	c := &Connection{
		kind:      kind,
		transport: transport,
		events:    sink,
		exec:      exec,
		pending:   make(map[uint64]chan *protocol.Response),
		done:      make(chan struct{}),
		logger: logger.With().
			Str("com", "chat").
			Stringer("kind", kind).
			Logger(),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Kind returns the connection variant.
func (c *Connection) Kind() Kind {
	return c.kind
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Start launches the read loop on the executor.
func (c *Connection) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.state.Store(int32(StateConnected))
	if err := c.exec.Spawn("chat-read-loop", c.readLoop); err != nil {
		c.state.Store(int32(StateDisconnected))
		c.failPending(ErrDisconnected)
		c.markDone()
		return fmt.Errorf("start read loop: %w", err)
	}

	c.logger.Debug().Msg("connection started")
	return nil
}

// Done is closed once the connection has stopped reading from its transport.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send sends req with a freshly assigned ID and waits for the correlated
// response. The caller's req.ID is ignored.
func (c *Connection) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	id := c.nextID.Add(1)

	out := *req
	out.ID = id
	payload, err := protocol.EncodeRequest(&out)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan *protocol.Response, 1)
	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.transport.SendRequest(ctx, id, payload); err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("send request %d: %w", id, err)
	}
	c.logger.Trace().Uint64("id", id).Str("verb", out.Verb).Str("path", out.Path).Msg("request sent")

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.closeError()
		}
		return resp, nil
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

// Disconnect closes the transport and waits for the read loop to stop.
// Pending sends fail with ErrDisconnected. The listener is not notified.
// Disconnect must not be called from a listener callback.
func (c *Connection) Disconnect() error {
	var err error
	c.disconnectOnce.Do(func() {
		c.localClose.Store(true)
		err = c.transport.Close()
		if !c.started.Load() {
			c.state.Store(int32(StateDisconnected))
			c.failPending(ErrDisconnected)
			c.markDone()
		}
		c.logger.Debug().Msg("disconnect requested")
	})
	<-c.done
	return err
}

func (c *Connection) readLoop(ctx context.Context) {
	defer c.markDone()

	for {
		in, err := c.transport.Receive(ctx)
		if err != nil {
			c.terminate(err)
			return
		}
		c.handleInbound(ctx, in)
	}
}

func (c *Connection) terminate(err error) {
	c.state.Store(int32(StateDisconnected))

	if c.localClose.Load() {
		c.failPending(ErrDisconnected)
		c.logger.Debug().Msg("connection closed")
		return
	}

	if errors.Is(err, ErrInterrupted) {
		c.failPending(fmt.Errorf("%w: %w", ErrDisconnected, err))
	} else {
		c.failPending(ErrDisconnected)
	}

	c.logger.Info().Err(err).Msg("connection interrupted")
	c.events.ConnectionInterrupted(err)

	if cerr := c.transport.Close(); cerr != nil {
		c.logger.Warn().Err(cerr).Msg("close transport")
	}
}

func (c *Connection) handleInbound(ctx context.Context, in Inbound) {
	switch in.Kind {
	case InboundResponse:
		resp, err := protocol.DecodeResponse(in.Payload)
		if err != nil {
			c.logger.Warn().Err(err).Int("size", len(in.Payload)).Msg("dropping invalid response frame")
			return
		}
		c.deliverResponse(resp)
	case InboundRequest:
		req, err := protocol.DecodeRequest(in.Payload)
		if err != nil {
			c.logger.Warn().Err(err).Int("size", len(in.Payload)).Msg("dropping invalid request frame")
			return
		}
		c.handleServerRequest(ctx, req)
	default:
		c.logger.Warn().Stringer("kind", in.Kind).Msg("dropping unknown inbound frame")
	}
}

func (c *Connection) deliverResponse(resp *protocol.Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn().Uint64("id", resp.ID).Msg("response for unknown request")
		return
	}
	ch <- resp
}

func (c *Connection) handleServerRequest(ctx context.Context, req *protocol.Request) {
	logger := c.logger.With().Uint64("id", req.ID).Str("path", req.Path).Logger()

	if c.auth == nil {
		logger.Warn().Msg("server request on unauthenticated connection")
		return
	}

	switch {
	case req.Verb == protocol.VerbPut && req.Path == protocol.PathIncomingMessage:
		var ts uint64
		if v, ok := req.Header(protocol.HeaderTimestamp); ok {
			parsed, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				logger.Warn().Str("value", v).Msg("invalid timestamp header")
			} else {
				ts = parsed
			}
		}
		id := req.ID
		c.auth.IncomingMessage(req.Body, ts, func(ctx context.Context) error {
			return c.respond(ctx, id, 200, "OK")
		})
	case req.Verb == protocol.VerbPut && req.Path == protocol.PathQueueEmpty:
		c.auth.QueueEmpty()
		if err := c.respond(ctx, req.ID, 200, "OK"); err != nil {
			logger.Warn().Err(err).Msg("ack queue empty")
		}
	default:
		logger.Warn().Str("verb", req.Verb).Msg("unexpected server request")
		if err := c.respond(ctx, req.ID, 400, "Bad Request"); err != nil {
			logger.Warn().Err(err).Msg("reject server request")
		}
	}
}

func (c *Connection) respond(ctx context.Context, id uint64, status uint16, message string) error {
	payload, err := protocol.EncodeResponse(&protocol.Response{ID: id, Status: status, Message: message})
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := c.transport.SendResponse(ctx, id, payload); err != nil {
		return fmt.Errorf("send response %d: %w", id, err)
	}
	return nil
}

func (c *Connection) removePending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Connection) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closeErr == nil {
		c.closeErr = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Connection) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Connection) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
