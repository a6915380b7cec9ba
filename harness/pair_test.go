package harness

import (
	"context"
	"testing"
	"time"

	"github.com/Mmx233/fakechat/chat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPairTransport_RoundTripInjection(t *testing.T) {
	exec := newExecutor(t)
	p := newPair(zerolog.Nop())
	tr := &pairTransport{p: p}
	remote := newRemote(p, exec)
	defer remote.Close()

	payload := []byte{0x01, 0x02}
	require.NoError(t, remote.InjectServerRequest(payload))
	payload[0] = 0xff // the harness keeps its own copy

	in, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chat.InboundRequest, in.Kind)
	assert.Equal(t, []byte{0x01, 0x02}, in.Payload)

	require.NoError(t, remote.InjectServerResponse([]byte{0x03}))
	in, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chat.InboundResponse, in.Kind)
	assert.Equal(t, []byte{0x03}, in.Payload)
}

func TestPairTransport_InjectionOrder(t *testing.T) {
	exec := newExecutor(t)
	p := newPair(zerolog.Nop())
	tr := &pairTransport{p: p}
	remote := newRemote(p, exec)
	defer remote.Close()

	require.NoError(t, remote.InjectServerRequest([]byte("one")))
	require.NoError(t, remote.InjectServerResponse([]byte("two")))
	require.NoError(t, remote.InjectConnectionInterrupted())
	require.NoError(t, remote.InjectServerRequest([]byte("three")))

	in, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one", string(in.Payload))

	in, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", string(in.Payload))

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, chat.ErrInterrupted)

	in, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "three", string(in.Payload))
}

func TestPairTransport_CloseTearsDown(t *testing.T) {
	exec := newExecutor(t)
	p := newPair(zerolog.Nop())
	tr := &pairTransport{p: p}
	remote := newRemote(p, exec)

	require.NoError(t, tr.SendRequest(context.Background(), 1, []byte("req")))
	require.NoError(t, remote.InjectServerRequest([]byte("unread")))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, int32(1), p.refs.Load())

	// Unread client-bound frames are discarded
	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, chat.ErrTransportClosed)

	// Captured requests survive teardown
	rec, err := remote.ReceiveNextOutgoingRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.ID())
	assert.Equal(t, []byte("req"), rec.Payload())

	_, err = remote.ReceiveNextOutgoingRequest(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)

	assert.ErrorIs(t, remote.InjectServerRequest([]byte("late")), ErrInjection)
	assert.ErrorIs(t, remote.InjectConnectionInterrupted(), ErrInjection)
	assert.ErrorIs(t, tr.SendRequest(context.Background(), 2, nil), ErrConnectionClosed)
	assert.ErrorIs(t, tr.SendResponse(context.Background(), 2, nil), ErrConnectionClosed)

	require.NoError(t, remote.Close())
	assert.Equal(t, int32(0), p.refs.Load())
}

func TestPairTransport_ReceiveHonorsContext(t *testing.T) {
	p := newPair(zerolog.Nop())
	tr := &pairTransport{p: p}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSentRequest_PayloadIsImmutable(t *testing.T) {
	p := newPair(zerolog.Nop())
	tr := &pairTransport{p: p}
	defer tr.Close()

	buf := []byte("payload")
	require.NoError(t, tr.SendRequest(context.Background(), 9, buf))
	buf[0] = 'X'

	rec, err := p.ledger.requests.next(context.Background())
	require.NoError(t, err)

	got := rec.Payload()
	assert.Equal(t, "payload", string(got))
	got[0] = 'Y'
	assert.Equal(t, "payload", string(rec.Payload()))
}

// Feature: fake-chat-harness, Property 4: Round-Trip Injection
// For any byte payload injected as a server request, the connection side SHALL
// receive exactly that payload, byte for byte.
func TestRoundTripInjection_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := newPair(zerolog.Nop())
		tr := &pairTransport{p: p}
		defer tr.Close()

		payloads := rapid.SliceOf(rapid.SliceOf(rapid.Byte())).Draw(t, "payloads")
		for _, b := range payloads {
			ev := inboundEvent{frame: chat.Inbound{Kind: chat.InboundRequest, Payload: append([]byte(nil), b...)}}
			if err := p.deliver(ev); err != nil {
				t.Fatalf("deliver: %v", err)
			}
		}

		for i, want := range payloads {
			in, err := tr.Receive(context.Background())
			if err != nil {
				t.Fatalf("receive %d: %v", i, err)
			}
			if string(in.Payload) != string(want) {
				t.Fatalf("payload %d: got %x, want %x", i, in.Payload, want)
			}
		}
	})
}
