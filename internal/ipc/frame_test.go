package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(`exec xterm`),
		[]byte(`["workspace","window"]`),
		{0x00, 0xff, 0x10, 'i', '3'},
		bytes.Repeat([]byte("x"), 1<<20),
	}
	for i, payload := range payloads {
		var buf bytes.Buffer
		typ := uint32(i) | 0x10
		if err := WriteMessage(&buf, typ, payload); err != nil {
			t.Fatalf("payload %d: write: %v", i, err)
		}
		if buf.Len() != HeaderSize+len(payload) {
			t.Fatalf("payload %d: frame size %d want %d", i, buf.Len(), HeaderSize+len(payload))
		}
		h, err := DecodeHeader(buf.Bytes()[:HeaderSize])
		if err != nil {
			t.Fatalf("payload %d: decode header: %v", i, err)
		}
		if h.Length != uint32(len(payload)) {
			t.Fatalf("payload %d: length field %d want %d", i, h.Length, len(payload))
		}

		msg, err := ReadMessage(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("payload %d: read: %v", i, err)
		}
		if msg.Type != typ {
			t.Fatalf("payload %d: type %d want %d", i, msg.Type, typ)
		}
		if !bytes.Equal(msg.Payload, payload) {
			t.Fatalf("payload %d: payload mismatch", i)
		}
	}
}

func TestEncodeMessageLayout(t *testing.T) {
	frame, err := EncodeMessage(GetTree, []byte("{}"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(frame[:6]) != "i3-ipc" {
		t.Fatalf("magic: %q", frame[:6])
	}
	if got := binary.NativeEndian.Uint32(frame[6:10]); got != 2 {
		t.Fatalf("length: %d", got)
	}
	if got := binary.NativeEndian.Uint32(frame[10:14]); got != GetTree {
		t.Fatalf("type: %d", got)
	}
	if string(frame[14:]) != "{}" {
		t.Fatalf("payload: %q", frame[14:])
	}
}

// trickleWriter accepts at most chunk bytes per call and reports success.
type trickleWriter struct {
	chunk int
	calls int
	buf   bytes.Buffer
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) > w.chunk {
		p = p[:w.chunk]
	}
	return w.buf.Write(p)
}

func TestWriteMessageContinuesAfterShortWrites(t *testing.T) {
	payload := []byte(`{"change":"focus","current":{"num":3}}`)
	want, _ := EncodeMessage(RunCommand, payload)

	w := &trickleWriter{chunk: 3}
	if err := WriteMessage(w, RunCommand, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(w.buf.Bytes(), want) {
		t.Fatalf("bytes on the wire differ from the encoded frame")
	}
	if wantCalls := (len(want) + 2) / 3; w.calls != wantCalls {
		t.Fatalf("writes: got %d want %d", w.calls, wantCalls)
	}
}

type failingWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if len(p) <= room {
		return w.buf.Write(p)
	}
	n, _ := w.buf.Write(p[:room])
	return n, io.ErrClosedPipe
}

func TestWriteMessageReportsFailure(t *testing.T) {
	w := &failingWriter{limit: 10}
	err := WriteMessage(w, GetVersion, []byte("payload"))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if werr.Sent != 10 || werr.Total != HeaderSize+7 {
		t.Fatalf("unexpected progress: %+v", werr)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected wrapped io.ErrClosedPipe, got %v", err)
	}
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestWriteMessageGivesUpWithoutProgress(t *testing.T) {
	err := WriteMessage(stuckWriter{}, GetVersion, nil)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestReadMessageBadMagic(t *testing.T) {
	frame, _ := EncodeMessage(GetMarks, []byte("[]"))
	copy(frame, "i4-ipc")
	_, err := ReadMessage(bytes.NewReader(frame), DefaultLimits())
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadMessageShortHeader(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte("i3-ip")), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	_, err = ReadMessage(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	frame, _ := EncodeMessage(GetTree, []byte(`{"nodes":[]}`))
	_, err := ReadMessage(bytes.NewReader(frame[:len(frame)-3]), DefaultLimits())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	_, err = ReadMessage(bytes.NewReader(frame[:HeaderSize]), DefaultLimits())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF for missing payload, got %v", err)
	}
}

func TestReadMessagePayloadLimit(t *testing.T) {
	frame, _ := EncodeMessage(GetTree, bytes.Repeat([]byte("a"), 64))
	_, err := ReadMessage(bytes.NewReader(frame), Limits{MaxPayload: 63})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadMessageSequence(t *testing.T) {
	var buf bytes.Buffer
	for i, p := range []string{"a", "", "ccc"} {
		if err := WriteMessage(&buf, uint32(i), []byte(p)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i, p := range []string{"a", "", "ccc"} {
		msg, err := ReadMessage(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if msg.Type != uint32(i) || string(msg.Payload) != p {
			t.Fatalf("message %d: got (%d, %q)", i, msg.Type, msg.Payload)
		}
	}
	if _, err := ReadMessage(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last message, got %v", err)
	}
}
