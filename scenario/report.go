package scenario

// Report summarizes a scenario run from the connection's side.
type Report struct {
	Name           string       `json:"name"`
	Kind           string       `json:"kind"`
	Steps          int          `json:"steps"`
	Alerts         []string     `json:"alerts"`
	Messages       []Message    `json:"messages"`
	QueueEmpty     int          `json:"queue_empty"`
	Sends          []SendResult `json:"sends"`
	Interrupted    bool         `json:"interrupted"`
	InterruptError string       `json:"interrupt_error,omitempty"`
}

// Message is an incoming message delivered to the listener.
type Message struct {
	Envelope        []byte `json:"envelope"`
	ServerTimestamp uint64 `json:"server_timestamp"`
}

// SendResult is the outcome of a send step. Status is zero when Error is set.
type SendResult struct {
	Step   int    `json:"step"`
	Path   string `json:"path"`
	Status uint16 `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}
