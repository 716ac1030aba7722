package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// Magic prefixes every message on the wire.
	Magic = "i3-ipc"
	// HeaderSize is len(Magic) plus the length and type fields.
	HeaderSize = len(Magic) + 8

	DefaultMaxPayload uint32 = 64 << 20

	// maxZeroWrites bounds how often a writer may accept nothing before
	// WriteMessage gives up.
	maxZeroWrites = 16
)

var (
	ErrShortHeader     = errors.New("ipc: short message header")
	ErrBadMagic        = errors.New("ipc: bad magic, stream out of sync")
	ErrPayloadTooLarge = errors.New("ipc: payload too large")
)

// Header is the decoded fixed header.
type Header struct {
	Length uint32
	Type   uint32
}

// Message is one framed payload. Type is opaque to this package.
type Message struct {
	Type    uint32
	Payload []byte
}

// Limits constrains what ReadMessage will allocate.
type Limits struct {
	MaxPayload uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayload: DefaultMaxPayload}
}

// WriteError reports a failed send. Sent bytes already reached the peer,
// so the stream cannot be reused.
type WriteError struct {
	Sent  int
	Total int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ipc: write failed after %d of %d bytes: %v", e.Sent, e.Total, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// EncodeMessage builds the complete frame for payload.
func EncodeMessage(t uint32, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf, Magic)
	binary.NativeEndian.PutUint32(buf[len(Magic):], uint32(len(payload)))
	binary.NativeEndian.PutUint32(buf[len(Magic)+4:], t)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// WriteMessage frames payload and writes all of it to w. Short writes are
// continued from where the writer stopped; nothing is sent twice.
func WriteMessage(w io.Writer, t uint32, payload []byte) error {
	buf, err := EncodeMessage(t, payload)
	if err != nil {
		return err
	}

	sent, idle := 0, 0
	for sent < len(buf) {
		n, err := w.Write(buf[sent:])
		if n > 0 {
			sent += n
			idle = 0
		}
		if err != nil {
			return &WriteError{Sent: sent, Total: len(buf), Err: err}
		}
		if n == 0 {
			idle++
			if idle >= maxZeroWrites {
				return &WriteError{Sent: sent, Total: len(buf), Err: io.ErrShortWrite}
			}
		}
	}
	return nil
}

// DecodeHeader parses and validates a fixed header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("ipc: invalid header length: %d", len(b))
	}
	if string(b[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	return Header{
		Length: binary.NativeEndian.Uint32(b[len(Magic):]),
		Type:   binary.NativeEndian.Uint32(b[len(Magic)+4:]),
	}, nil
}

// ReadMessage reads one frame. A clean EOF before the first header byte
// is returned as io.EOF.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, ErrShortHeader
		}
		return Message{}, err
	}

	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return Message{}, err
	}
	if h.Length > limits.MaxPayload {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.Length)
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}
	return Message{Type: h.Type, Payload: payload}, nil
}
