package chat

import (
	"context"
	"errors"
)

var (
	// ErrInterrupted is returned by Transport.Receive when the underlying
	// link dropped.
	ErrInterrupted = errors.New("connection interrupted")

	// ErrTransportClosed is returned by Transport.Receive once the transport
	// has been closed by either end.
	ErrTransportClosed = errors.New("transport closed")
)

// InboundKind distinguishes frames pushed by the server.
type InboundKind int

const (
	InboundRequest InboundKind = iota
	InboundResponse
)

func (k InboundKind) String() string {
	switch k {
	case InboundRequest:
		return "request"
	case InboundResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Inbound is one frame received from the server. Payload is the encoded frame.
type Inbound struct {
	Kind    InboundKind
	Payload []byte
}

// Transport carries encoded frames between a connection and its server.
// Receive blocks until a frame arrives, the transport is interrupted or closed,
// or ctx is done.
type Transport interface {
	SendRequest(ctx context.Context, id uint64, payload []byte) error
	SendResponse(ctx context.Context, id uint64, payload []byte) error
	Receive(ctx context.Context) (Inbound, error)
	Close() error
}
