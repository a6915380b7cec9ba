// Package scenario drives a harness pair from a scripted config.Scenario.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Mmx233/fakechat/async"
	"github.com/Mmx233/fakechat/chat"
	"github.com/Mmx233/fakechat/config"
	"github.com/Mmx233/fakechat/harness"
	"github.com/Mmx233/fakechat/protocol"
	"github.com/rs/zerolog"
)

var (
	// ErrMismatch is returned when an expect step sees something else.
	ErrMismatch = errors.New("expectation mismatch")
	// ErrTimeout is returned when a suspending step exceeds the receive timeout.
	ErrTimeout = errors.New("step timed out")
)

// Runner executes scenarios.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a runner that logs through logger.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger}
}

type run struct {
	sc     *config.Scenario
	logger zerolog.Logger

	exec   *async.Executor
	conn   *chat.Connection
	remote *harness.Remote
	obs    *observer

	lastRequestID uint64

	sendMu sync.Mutex
	sends  []SendResult
}

// Run executes every step of sc in order and returns what the listener
// observed. The report is returned even when a step fails.
func (r *Runner) Run(ctx context.Context, sc *config.Scenario) (*Report, error) {
	base := r.logger.With().Str("scenario", sc.Name).Logger()
	logger := base.With().Str("com", "scenario").Logger()

	ru := &run{
		sc:     sc,
		logger: logger,
		exec:   async.New(sc.MaxTasks, base),
		obs:    newObserver(ctx, logger),
	}
	defer ru.exec.Close()

	report := &Report{Name: sc.Name, Kind: sc.Kind}

	var err error
	switch sc.Kind {
	case config.KindUnauthenticated:
		ru.conn, ru.remote, err = harness.ConnectUnauthenticated(ru.exec, ru.obs, harness.WithLogger(base))
	default:
		ru.conn, ru.remote, err = harness.ConnectAuthenticated(ru.exec, ru.obs, sc.Alerts, harness.WithLogger(base))
	}
	if err != nil {
		return report, fmt.Errorf("connect: %w", err)
	}
	logger.Info().Stringer("pair", ru.remote.PairID()).Msg("pair created")

	runErr := ru.steps(ctx, report)

	if err := ru.conn.Disconnect(); err != nil {
		logger.Warn().Err(err).Msg("disconnect")
	}
	if err := ru.remote.Close(); err != nil {
		logger.Warn().Err(err).Msg("close remote")
	}
	// waits for outstanding sends
	ru.exec.Close()

	ru.obs.fill(report)
	ru.sendMu.Lock()
	report.Sends = ru.sends
	ru.sendMu.Unlock()
	slices.SortFunc(report.Sends, func(a, b SendResult) int { return a.Step - b.Step })

	return report, runErr
}

func (ru *run) steps(ctx context.Context, report *Report) error {
	for i, step := range ru.sc.Steps {
		action := step.Action()
		ru.logger.Debug().Int("step", i).Str("action", action).Msg("executing step")

		if err := ru.step(ctx, i, step); err != nil {
			ru.logger.Error().Err(err).Int("step", i).Str("action", action).Msg("step failed")
			return fmt.Errorf("step %d (%s): %w", i, action, err)
		}
		report.Steps++
	}
	return nil
}

func (ru *run) step(ctx context.Context, i int, step config.Step) error {
	switch {
	case step.InjectRequest != nil:
		req := step.InjectRequest
		payload, err := protocol.EncodeRequest(&protocol.Request{
			ID:      req.ID,
			Verb:    req.Verb,
			Path:    req.Path,
			Headers: req.Headers,
			Body:    []byte(req.Body),
		})
		if err != nil {
			return err
		}
		return ru.remote.InjectServerRequest(payload)

	case step.InjectRaw != "":
		return ru.remote.InjectServerRequestBase64(step.InjectRaw)

	case step.InjectResponse != nil:
		resp := step.InjectResponse
		id := resp.ID
		if id == 0 {
			if ru.lastRequestID == 0 {
				return fmt.Errorf("no expected request to answer")
			}
			id = ru.lastRequestID
		}
		payload, err := protocol.EncodeResponse(&protocol.Response{
			ID:      id,
			Status:  resp.Status,
			Message: resp.Message,
			Body:    []byte(resp.Body),
		})
		if err != nil {
			return err
		}
		return ru.remote.InjectServerResponse(payload)

	case step.Send != nil:
		return ru.send(ctx, i, step.Send)

	case step.ExpectRequest != nil:
		return ru.expectRequest(ctx, step.ExpectRequest)

	case step.ExpectResponse != nil:
		return ru.expectResponse(ctx, step.ExpectResponse)

	case step.Interrupt:
		return ru.remote.InjectConnectionInterrupted()

	case step.ExpectClosed:
		return ru.wait(ctx, ru.conn.Done())

	case step.ExpectQueueDone:
		return ru.wait(ctx, ru.obs.queueEmptyCh)
	}

	return fmt.Errorf("no action set")
}

func (ru *run) send(ctx context.Context, i int, c *config.ClientRequest) error {
	verb := c.Verb
	if verb == "" {
		verb = protocol.VerbGet
	}
	req := &protocol.Request{Verb: verb, Path: c.Path, Headers: c.Headers, Body: []byte(c.Body)}

	return ru.exec.Spawn("scenario-send", func(context.Context) {
		result := SendResult{Step: i, Path: c.Path}
		resp, err := ru.conn.Send(ctx, req)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Status = resp.Status
		}
		ru.logger.Debug().Int("step", i).Uint16("status", result.Status).Str("error", result.Error).Msg("send finished")

		ru.sendMu.Lock()
		ru.sends = append(ru.sends, result)
		ru.sendMu.Unlock()
	})
}

func (ru *run) expectRequest(ctx context.Context, want *config.ExpectRequest) error {
	ctx, cancel := context.WithTimeout(ctx, ru.sc.ReceiveTimeout)
	defer cancel()

	sent, err := ru.remote.ReceiveNextOutgoingRequest(ctx)
	if err != nil {
		return timeoutErr(err)
	}
	req, err := sent.Request()
	if err != nil {
		return err
	}
	if want.Verb != "" && want.Verb != req.Verb {
		return fmt.Errorf("%w: verb %q, want %q", ErrMismatch, req.Verb, want.Verb)
	}
	if want.Path != "" && want.Path != req.Path {
		return fmt.Errorf("%w: path %q, want %q", ErrMismatch, req.Path, want.Path)
	}

	ru.lastRequestID = sent.ID()
	return nil
}

func (ru *run) expectResponse(ctx context.Context, want *config.ExpectResponse) error {
	ctx, cancel := context.WithTimeout(ctx, ru.sc.ReceiveTimeout)
	defer cancel()

	sent, err := ru.remote.ReceiveNextOutgoingResponse(ctx)
	if err != nil {
		return timeoutErr(err)
	}
	resp, err := sent.Response()
	if err != nil {
		return err
	}
	if want.ID != 0 && want.ID != resp.ID {
		return fmt.Errorf("%w: id %d, want %d", ErrMismatch, resp.ID, want.ID)
	}
	if want.Status != 0 && want.Status != resp.Status {
		return fmt.Errorf("%w: status %d, want %d", ErrMismatch, resp.Status, want.Status)
	}
	return nil
}

func (ru *run) wait(ctx context.Context, ch <-chan struct{}) error {
	timer := time.NewTimer(ru.sc.ReceiveTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
