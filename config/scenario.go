package config

import (
	"fmt"
	"time"
)

// Connection kinds accepted in scenario files
const (
	KindAuthenticated   = "authenticated"
	KindUnauthenticated = "unauthenticated"
)

// Scenario is a scripted conversation between a test server and one chat
// connection.
type Scenario struct {
	Name           string        `yaml:"name"`
	Kind           string        `yaml:"kind"`            // authenticated or unauthenticated
	Alerts         []string      `yaml:"alerts"`          // delivered when the connection is created
	MaxTasks       int           `yaml:"max_tasks"`       // executor capacity, default 16
	ReceiveTimeout time.Duration `yaml:"receive_timeout"` // per suspending step, default 5s
	Steps          []Step        `yaml:"steps"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	InjectRequest   *ServerRequest  `yaml:"inject_request,omitempty"`
	InjectRaw       string          `yaml:"inject_raw_base64,omitempty"`
	InjectResponse  *ServerResponse `yaml:"inject_response,omitempty"`
	Send            *ClientRequest  `yaml:"send,omitempty"`
	ExpectRequest   *ExpectRequest  `yaml:"expect_request,omitempty"`
	ExpectResponse  *ExpectResponse `yaml:"expect_response,omitempty"`
	Interrupt       bool            `yaml:"interrupt,omitempty"`
	ExpectClosed    bool            `yaml:"expect_closed,omitempty"`
	ExpectQueueDone bool            `yaml:"expect_queue_empty,omitempty"`
}

// ServerRequest is a request pushed by the server.
type ServerRequest struct {
	ID      uint64   `yaml:"id"`
	Verb    string   `yaml:"verb"`
	Path    string   `yaml:"path"`
	Headers []string `yaml:"headers"`
	Body    string   `yaml:"body"`
}

// ServerResponse answers a client request. A zero ID answers the request
// matched by the most recent expect_request step.
type ServerResponse struct {
	ID      uint64 `yaml:"id"`
	Status  uint16 `yaml:"status"`
	Message string `yaml:"message"`
	Body    string `yaml:"body"`
}

// ClientRequest is sent by the connection under test.
type ClientRequest struct {
	Verb    string   `yaml:"verb"`
	Path    string   `yaml:"path"`
	Headers []string `yaml:"headers"`
	Body    string   `yaml:"body"`
}

// ExpectRequest matches the next request the connection sent. Empty fields match anything.
type ExpectRequest struct {
	Verb string `yaml:"verb"`
	Path string `yaml:"path"`
}

// ExpectResponse matches the next response the connection sent. Zero fields match anything.
type ExpectResponse struct {
	ID     uint64 `yaml:"id"`
	Status uint16 `yaml:"status"`
}

// Action names the step's action, or "" if none is set.
func (s Step) Action() string {
	actions := s.actions()
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func (s Step) actions() []string {
	var actions []string
	if s.InjectRequest != nil {
		actions = append(actions, "inject_request")
	}
	if s.InjectRaw != "" {
		actions = append(actions, "inject_raw_base64")
	}
	if s.InjectResponse != nil {
		actions = append(actions, "inject_response")
	}
	if s.Send != nil {
		actions = append(actions, "send")
	}
	if s.ExpectRequest != nil {
		actions = append(actions, "expect_request")
	}
	if s.ExpectResponse != nil {
		actions = append(actions, "expect_response")
	}
	if s.Interrupt {
		actions = append(actions, "interrupt")
	}
	if s.ExpectClosed {
		actions = append(actions, "expect_closed")
	}
	if s.ExpectQueueDone {
		actions = append(actions, "expect_queue_empty")
	}
	return actions
}

// ApplyDefaults fills zero-valued fields.
func (sc *Scenario) ApplyDefaults() {
	if sc.Name == "" {
		sc.Name = GenerateScenarioName()
	}
	if sc.Kind == "" {
		sc.Kind = DefaultKind
	}
	if sc.MaxTasks <= 0 {
		sc.MaxTasks = DefaultMaxTasks
	}
	if sc.ReceiveTimeout <= 0 {
		sc.ReceiveTimeout = DefaultReceiveTimeout
	}
}

// Validate checks the scenario for mistakes that would make a run
// nondeterministic or meaningless.
func (sc *Scenario) Validate() error {
	switch sc.Kind {
	case KindAuthenticated:
	case KindUnauthenticated:
		if len(sc.Alerts) > 0 {
			return fmt.Errorf("alerts are only delivered on authenticated connections")
		}
	default:
		return fmt.Errorf("unknown kind %q", sc.Kind)
	}

	if len(sc.Steps) == 0 {
		return fmt.Errorf("at least one step must be provided")
	}

	// Concurrent sends would race for the next ID, so every send must be
	// matched by an expect_request before the next one.
	unmatchedSend := false
	for i, step := range sc.Steps {
		actions := step.actions()
		switch len(actions) {
		case 0:
			return fmt.Errorf("step[%d]: no action set", i)
		case 1:
		default:
			return fmt.Errorf("step[%d]: multiple actions set: %v", i, actions)
		}

		switch {
		case step.Send != nil:
			if unmatchedSend {
				return fmt.Errorf("step[%d]: send before the previous send was matched by expect_request", i)
			}
			if step.Send.Path == "" {
				return fmt.Errorf("step[%d]: send requires a path", i)
			}
			unmatchedSend = true
		case step.ExpectRequest != nil:
			unmatchedSend = false
		case step.InjectRequest != nil:
			if step.InjectRequest.Path == "" {
				return fmt.Errorf("step[%d]: inject_request requires a path", i)
			}
		case step.ExpectQueueDone:
			if sc.Kind != KindAuthenticated {
				return fmt.Errorf("step[%d]: expect_queue_empty requires an authenticated connection", i)
			}
		}
	}

	if need := sc.RequiredTasks(); sc.MaxTasks > 0 && sc.MaxTasks < need {
		return fmt.Errorf("max_tasks %d is below the %d task slots the steps need", sc.MaxTasks, need)
	}

	return nil
}

// RequiredTasks is the number of executor slots a run of the steps can hold at
// once: the read loop, one outstanding send and one waiting receive.
func (sc *Scenario) RequiredTasks() int {
	need := 1
	var sends, receives bool
	for _, step := range sc.Steps {
		sends = sends || step.Send != nil
		receives = receives || step.ExpectRequest != nil || step.ExpectResponse != nil
	}
	if sends {
		need++
	}
	if receives {
		need++
	}
	return need
}
