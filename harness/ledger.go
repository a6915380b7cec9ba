package harness

import (
	"slices"

	"github.com/Mmx233/fakechat/protocol"
)

// SentRequest is a request the connection sent toward the server. The ID is
// the one the connection assigned; the harness never rewrites it.
type SentRequest struct {
	payload []byte
	id      uint64
}

// ID returns the correlation ID assigned by the connection.
func (r SentRequest) ID() uint64 {
	return r.id
}

// Payload returns a copy of the encoded request.
func (r SentRequest) Payload() []byte {
	return slices.Clone(r.payload)
}

// Request decodes the payload.
func (r SentRequest) Request() (*protocol.Request, error) {
	return protocol.DecodeRequest(r.payload)
}

// SentResponse is a response the connection sent for an injected server request.
type SentResponse struct {
	payload []byte
	id      uint64
}

// ID returns the ID of the server request being answered.
func (r SentResponse) ID() uint64 {
	return r.id
}

// Payload returns a copy of the encoded response.
func (r SentResponse) Payload() []byte {
	return slices.Clone(r.payload)
}

// Response decodes the payload.
func (r SentResponse) Response() (*protocol.Response, error) {
	return protocol.DecodeResponse(r.payload)
}

// ledger records everything the connection sends, in send order.
type ledger struct {
	requests  *queue[SentRequest]
	responses *queue[SentResponse]
}

func newLedger() *ledger {
	return &ledger{
		requests:  newQueue[SentRequest](),
		responses: newQueue[SentResponse](),
	}
}

func (l *ledger) recordRequest(id uint64, payload []byte) error {
	return l.requests.push(SentRequest{payload: slices.Clone(payload), id: id})
}

func (l *ledger) recordResponse(id uint64, payload []byte) error {
	return l.responses.push(SentResponse{payload: slices.Clone(payload), id: id})
}

// close keeps unretrieved records available to receivers.
func (l *ledger) close() {
	l.requests.close()
	l.responses.close()
}
