package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxPayloadSize bounds a single frame's payload.
const MaxPayloadSize = 10 * 1024 * 1024

// Wire format: [1 byte type][4 bytes length][payload]

// WriteMessage writes a message to the writer using buffer pooling to reduce allocations.
func WriteMessage(w io.Writer, msgType byte, payload interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	header := [5]byte{msgType}
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))

	buf.Write(header[:])
	buf.Write(data)

	// Single write to the underlying writer
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// ReadMessage reads one framed message from the reader.
func ReadMessage(r io.Reader) (msgType byte, payload []byte, err error) {
	var header [5]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	msgType = header[0]
	length := binary.BigEndian.Uint32(header[1:])

	if length > MaxPayloadSize {
		return 0, nil, fmt.Errorf("payload too large: %d bytes", length)
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}

	return msgType, payload, nil
}

// DecodeMessage decodes a payload into a message structure
func DecodeMessage(payload []byte, msg interface{}) error {
	if err := json.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// ReadTypedMessage reads and decodes a message in one call
func ReadTypedMessage(r io.Reader, expectedType byte, msg interface{}) error {
	msgType, payload, err := ReadMessage(r)
	if err != nil {
		return err
	}

	if msgType != expectedType {
		return fmt.Errorf("unexpected message type: got 0x%02x, expected 0x%02x", msgType, expectedType)
	}

	return DecodeMessage(payload, msg)
}

// PeekType returns the message type of a complete frame without decoding the payload.
func PeekType(frame []byte) (byte, error) {
	if len(frame) < 5 {
		return 0, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	return frame[0], nil
}

// EncodeRequest frames a request into a standalone byte slice.
func EncodeRequest(req *Request) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgTypeRequest, req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses a frame produced by EncodeRequest. Trailing bytes are rejected.
func DecodeRequest(frame []byte) (*Request, error) {
	var req Request
	if err := decodeFrame(frame, MsgTypeRequest, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse frames a response into a standalone byte slice.
func EncodeResponse(resp *Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgTypeResponse, resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses a frame produced by EncodeResponse. Trailing bytes are rejected.
func DecodeResponse(frame []byte) (*Response, error) {
	var resp Response
	if err := decodeFrame(frame, MsgTypeResponse, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func decodeFrame(frame []byte, expectedType byte, msg interface{}) error {
	r := bytes.NewReader(frame)
	if err := ReadTypedMessage(r, expectedType, msg); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after frame", r.Len())
	}
	return nil
}
