package chat

import "context"

// Ack acknowledges a server request. It sends a 200 response carrying the
// request's ID.
type Ack func(ctx context.Context) error

// EventsListener is the capability set shared by every connection kind.
type EventsListener interface {
	OnConnectionInterrupted(conn *Connection, err error)
}

// Listener receives events from an authenticated connection.
type Listener interface {
	EventsListener
	OnIncomingMessage(conn *Connection, envelope []byte, serverTimestamp uint64, ack Ack)
	OnQueueEmpty(conn *Connection)
	OnAlerts(conn *Connection, alerts []string)
}

// EventSink receives raw events from a connection. Unlike EventsListener it is
// not handed the connection, because events may be emitted while the
// connection is still being constructed.
type EventSink interface {
	ConnectionInterrupted(err error)
}

// AuthEventSink is the EventSink of an authenticated connection.
type AuthEventSink interface {
	EventSink
	IncomingMessage(envelope []byte, serverTimestamp uint64, ack Ack)
	QueueEmpty()
	Alerts(alerts []string)
}
