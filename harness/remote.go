package harness

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"sync"

	"github.com/Mmx233/fakechat/async"
	"github.com/Mmx233/fakechat/chat"
	"github.com/google/uuid"
)

// Remote is the server end of a connection pair. Tests use it to push frames
// at the connection and to pull what the connection sent.
type Remote struct {
	p         *pair
	exec      *async.Executor
	closeOnce sync.Once
}

func newRemote(p *pair, exec *async.Executor) *Remote {
	return &Remote{p: p, exec: exec}
}

// PairID identifies the pair in log output.
func (r *Remote) PairID() uuid.UUID {
	return r.p.id
}

// InjectServerRequest hands b to the connection as a server request. b is
// delivered byte for byte; decoding it is the connection's job.
func (r *Remote) InjectServerRequest(b []byte) error {
	return r.inject(inboundEvent{frame: chat.Inbound{Kind: chat.InboundRequest, Payload: slices.Clone(b)}}, "server request")
}

// InjectServerRequestBase64 decodes s and injects it as a server request.
func (r *Remote) InjectServerRequestBase64(s string) error {
	b, err := decodeBase64(s)
	if err != nil {
		return err
	}
	return r.InjectServerRequest(b)
}

// InjectServerResponse hands b to the connection as a response to one of its
// requests.
func (r *Remote) InjectServerResponse(b []byte) error {
	return r.inject(inboundEvent{frame: chat.Inbound{Kind: chat.InboundResponse, Payload: slices.Clone(b)}}, "server response")
}

// InjectServerResponseBase64 decodes s and injects it as a server response.
func (r *Remote) InjectServerResponseBase64(s string) error {
	b, err := decodeBase64(s)
	if err != nil {
		return err
	}
	return r.InjectServerResponse(b)
}

// InjectConnectionInterrupted tells the connection that the link dropped.
// Repeated calls are forwarded until the pair is torn down.
func (r *Remote) InjectConnectionInterrupted() error {
	return r.inject(inboundEvent{interrupted: true}, "interruption")
}

// ReceiveNextOutgoingRequest waits for the oldest request the connection sent
// that has not been retrieved yet. It fails with ErrConnectionClosed once the
// pair is torn down and nothing is left to retrieve.
//
// A record that is already captured is returned without going through the
// executor, so a saturated executor only delays waiting receives.
func (r *Remote) ReceiveNextOutgoingRequest(ctx context.Context) (SentRequest, error) {
	if req, ok := r.p.ledger.requests.tryNext(); ok {
		return req, nil
	}
	req, err := async.Invoke(ctx, r.exec, r.p.ledger.requests.next)
	if err != nil {
		return SentRequest{}, fmt.Errorf("receive outgoing request: %w", err)
	}
	return req, nil
}

// ReceiveNextOutgoingResponse waits for the oldest response the connection
// sent to an injected server request.
func (r *Remote) ReceiveNextOutgoingResponse(ctx context.Context) (SentResponse, error) {
	if resp, ok := r.p.ledger.responses.tryNext(); ok {
		return resp, nil
	}
	resp, err := async.Invoke(ctx, r.exec, r.p.ledger.responses.next)
	if err != nil {
		return SentResponse{}, fmt.Errorf("receive outgoing response: %w", err)
	}
	return resp, nil
}

// PendingRequests returns the number of captured requests not yet retrieved.
func (r *Remote) PendingRequests() int {
	return r.p.ledger.requests.len()
}

// PendingResponses returns the number of captured responses not yet retrieved.
func (r *Remote) PendingResponses() int {
	return r.p.ledger.responses.len()
}

// Close releases the remote handle and tears the pair down. Calling it again
// is a no-op.
func (r *Remote) Close() error {
	r.closeOnce.Do(func() { r.p.release("remote") })
	return nil
}

func (r *Remote) inject(ev inboundEvent, what string) error {
	if err := r.p.deliver(ev); err != nil {
		return fmt.Errorf("inject %s: %w", what, err)
	}
	r.p.logger.Trace().Str("what", what).Int("size", len(ev.frame.Payload)).Msg("injected")
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	return b, nil
}
