package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequest(t *testing.T) {
	req := &Request{
		ID:      7,
		Verb:    VerbPut,
		Path:    PathIncomingMessage,
		Headers: []string{"X-Signal-Timestamp: 1700000000000"},
		Body:    []byte{0x00, 0x01, 0xff},
	}

	frame, err := EncodeRequest(req)
	require.NoError(t, err)

	msgType, err := PeekType(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(MsgTypeRequest), msgType)

	decoded, err := DecodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)

	ts, ok := decoded.Header("x-signal-timestamp")
	assert.True(t, ok)
	assert.Equal(t, "1700000000000", ts)
}

func TestDecodeRequest_WrongType(t *testing.T) {
	frame, err := EncodeResponse(&Response{ID: 1, Status: 200})
	require.NoError(t, err)

	_, err = DecodeRequest(frame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected message type")
}

func TestDecodeRequest_Garbage(t *testing.T) {
	_, err := DecodeRequest([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read header")
}

func TestDecodeResponse_TrailingBytes(t *testing.T) {
	frame, err := EncodeResponse(&Response{ID: 3, Status: 404, Message: "Not Found"})
	require.NoError(t, err)

	_, err = DecodeResponse(append(frame, 0x00))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestReadMessage_PayloadTooLarge(t *testing.T) {
	var header [5]byte
	header[0] = MsgTypeRequest
	binary.BigEndian.PutUint32(header[1:], MaxPayloadSize+1)

	_, _, err := ReadMessage(bytes.NewReader(header[:]))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "payload too large"))
}

func TestReadMessage_ShortPayload(t *testing.T) {
	var header [5]byte
	header[0] = MsgTypeResponse
	binary.BigEndian.PutUint32(header[1:], 10)

	_, _, err := ReadMessage(bytes.NewReader(append(header[:], '{', '}')))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

func TestPeekType_Short(t *testing.T) {
	_, err := PeekType([]byte{MsgTypeRequest})
	assert.Error(t, err)
}

func TestResponseHeader_Missing(t *testing.T) {
	resp := &Response{Headers: []string{"malformed", "content-type: application/json"}}

	_, ok := resp.Header("X-Missing")
	assert.False(t, ok)

	v, ok := resp.Header("Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)
}

// BenchmarkEncodeRequest benchmarks request framing with a typical message body
func BenchmarkEncodeRequest(b *testing.B) {
	req := &Request{ID: 1, Verb: VerbPut, Path: PathIncomingMessage, Body: make([]byte, 1024)}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := EncodeRequest(req); err != nil {
			b.Fatalf("EncodeRequest failed: %v", err)
		}
	}
}
