package scenario

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Mmx233/fakechat/config"
	"github.com/Mmx233/fakechat/examples"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func prepare(t *testing.T, sc *config.Scenario) *config.Scenario {
	t.Helper()
	sc.ApplyDefaults()
	require.NoError(t, sc.Validate())
	return sc
}

func TestRun_Template(t *testing.T) {
	content, err := examples.ScenarioTemplate()
	require.NoError(t, err)

	var sc config.Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	require.NoError(t, decoder.Decode(&sc), "scenario.yaml contains unknown fields or invalid YAML")
	prepare(t, &sc)

	report, err := NewRunner(zerolog.Nop()).Run(context.Background(), &sc)
	require.NoError(t, err)

	assert.Equal(t, "example", report.Name)
	assert.Equal(t, len(sc.Steps), report.Steps)
	assert.Equal(t, []string{"A", "B"}, report.Alerts)

	require.Len(t, report.Messages, 1)
	assert.Equal(t, []byte("hello"), report.Messages[0].Envelope)
	assert.Equal(t, uint64(1700000000000), report.Messages[0].ServerTimestamp)
	assert.Equal(t, 1, report.QueueEmpty)

	require.Len(t, report.Sends, 2)
	assert.Equal(t, "/v1/keepalive", report.Sends[0].Path)
	assert.Equal(t, uint16(200), report.Sends[0].Status)
	assert.Empty(t, report.Sends[0].Error)
	assert.Equal(t, "/v1/messages/alice", report.Sends[1].Path)
	assert.NotEmpty(t, report.Sends[1].Error)

	assert.True(t, report.Interrupted)
	assert.NotEmpty(t, report.InterruptError)
}

func TestRun_Unauthenticated(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		Kind: config.KindUnauthenticated,
		Steps: []config.Step{
			{Send: &config.ClientRequest{Path: "/v1/profile"}},
			{ExpectRequest: &config.ExpectRequest{Verb: "GET", Path: "/v1/profile"}},
			{InjectResponse: &config.ServerResponse{Status: 404}},
			{Interrupt: true},
			{ExpectClosed: true},
		},
	})

	report, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Empty(t, report.Alerts)
	require.Len(t, report.Sends, 1)
	assert.Equal(t, uint16(404), report.Sends[0].Status)
	assert.True(t, report.Interrupted)
}

func TestRun_Mismatch(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		Steps: []config.Step{
			{Send: &config.ClientRequest{Path: "/v1/a"}},
			{ExpectRequest: &config.ExpectRequest{Path: "/v1/b"}},
		},
	})

	report, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrMismatch)
	assert.Contains(t, err.Error(), "step 1 (expect_request)")
	assert.Equal(t, 1, report.Steps)

	// the unanswered send is failed by teardown
	require.Len(t, report.Sends, 1)
	assert.NotEmpty(t, report.Sends[0].Error)
}

func TestRun_Timeout(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		ReceiveTimeout: 50 * time.Millisecond,
		Steps: []config.Step{
			{ExpectRequest: &config.ExpectRequest{}},
		},
	})

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRun_QueueEmptyTimeout(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		ReceiveTimeout: 50 * time.Millisecond,
		Steps: []config.Step{
			{ExpectQueueDone: true},
		},
	})

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRun_ResponseWithoutRequest(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		Steps: []config.Step{
			{InjectResponse: &config.ServerResponse{Status: 200}},
		},
	})

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no expected request")
}

func TestRun_UnknownServerRequestRejected(t *testing.T) {
	sc := prepare(t, &config.Scenario{
		Steps: []config.Step{
			{InjectRequest: &config.ServerRequest{ID: 3, Verb: "DELETE", Path: "/api/v1/unknown"}},
			{ExpectResponse: &config.ExpectResponse{ID: 3, Status: 400}},
		},
	})

	report, err := NewRunner(zerolog.Nop()).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, report.Interrupted)
}
