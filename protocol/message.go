package protocol

import "strings"

// Message types
const (
	MsgTypeRequest  = 0x01 // Request in either direction
	MsgTypeResponse = 0x02 // Response correlated to a request ID
)

// Well-known server request paths
const (
	VerbPut = "PUT"
	VerbGet = "GET"

	PathIncomingMessage = "/api/v1/message"
	PathQueueEmpty      = "/api/v1/queue/empty"

	HeaderTimestamp = "X-Signal-Timestamp"
)

// Request is a chat request. Client requests carry an ID assigned by the
// sending connection; server requests carry the server's own ID, which the
// client echoes in its acknowledgment.
type Request struct {
	ID      uint64   `json:"id"`
	Verb    string   `json:"verb"`
	Path    string   `json:"path"`
	Headers []string `json:"headers,omitempty"` // "name:value"
	Body    []byte   `json:"body,omitempty"`
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// Response answers the request with the same ID.
type Response struct {
	ID      uint64   `json:"id"`
	Status  uint16   `json:"status"`
	Message string   `json:"message,omitempty"`
	Headers []string `json:"headers,omitempty"`
	Body    []byte   `json:"body,omitempty"`
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

func lookupHeader(headers []string, name string) (string, bool) {
	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
