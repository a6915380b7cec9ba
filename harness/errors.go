package harness

import "errors"

var (
	// ErrHarnessCreation is returned when a connection pair could not be built.
	ErrHarnessCreation = errors.New("harness creation failed")

	// ErrInjection is returned when bytes or signals are injected after the
	// pair has been torn down.
	ErrInjection = errors.New("injection after teardown")

	// ErrConnectionClosed is returned by receives once the pair is torn down
	// and every captured record has been retrieved.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidEncoding is returned by the base64 convenience injectors.
	ErrInvalidEncoding = errors.New("invalid encoding")
)
