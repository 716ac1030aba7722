package ipc

import (
	"errors"
	"net"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// fakeWM serves scripted replies on one end of a pipe.
func fakeWM(t *testing.T, handle func(req Message, c *Conn)) *Client {
	t.Helper()
	client, server := net.Pipe()
	sc := NewConn(server)
	go func() {
		defer sc.Close()
		for {
			req, err := sc.Receive()
			if err != nil {
				return
			}
			handle(req, sc)
		}
	}()
	c := NewClient(NewConn(client))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientRequestReply(t *testing.T) {
	c := fakeWM(t, func(req Message, sc *Conn) {
		_ = sc.Send(req.Type, []byte(`{"echo":`+string(req.Payload)+`}`))
	})
	reply, err := c.Request(GetVersion, []byte(`1`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if reply.Type != GetVersion || string(reply.Payload) != `{"echo":1}` {
		t.Fatalf("unexpected reply: %d %q", reply.Type, reply.Payload)
	}
}

func TestClientRequestTypeMismatch(t *testing.T) {
	c := fakeWM(t, func(req Message, sc *Conn) {
		_ = sc.Send(GetMarks, []byte(`[]`))
	})
	_, err := c.Request(GetTree, nil)
	var ure *UnexpectedReplyError
	if !errors.As(err, &ure) {
		t.Fatalf("expected *UnexpectedReplyError, got %v", err)
	}
	if ure.Want != GetTree || ure.Got != GetMarks {
		t.Fatalf("unexpected error fields: %+v", ure)
	}
}

func TestClientSubscribeQueuesEarlyEvents(t *testing.T) {
	c := fakeWM(t, func(req Message, sc *Conn) {
		if req.Type != Subscribe {
			return
		}
		_ = sc.Send(EventWorkspace, []byte(`{"change":"init"}`))
		_ = sc.Send(Subscribe, []byte(`{"success":true}`))
		_ = sc.Send(EventWindow, []byte(`{"change":"focus"}`))
	})
	if err := c.Subscribe("workspace", "window"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	first, err := c.NextEvent()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if first.Type != EventWorkspace {
		t.Fatalf("first event type %s", MessageTypeName(first.Type))
	}
	second, err := c.NextEvent()
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if second.Type != EventWindow || string(second.Payload) != `{"change":"focus"}` {
		t.Fatalf("second event: %s %q", MessageTypeName(second.Type), second.Payload)
	}
}

func TestClientSubscribeRejected(t *testing.T) {
	c := fakeWM(t, func(req Message, sc *Conn) {
		_ = sc.Send(Subscribe, []byte(`{"success":false}`))
	})
	if err := c.Subscribe("bogus"); !errors.Is(err, ErrSubscribeRejected) {
		t.Fatalf("expected ErrSubscribeRejected, got %v", err)
	}
}

func TestParseCommandReply(t *testing.T) {
	payload := []byte(`[{"success":true},{"success":false,"parse_error":true,"error":"Expected one of these tokens","input":"foo bar","errorposition":"^^^^^^^"}]`)
	results, err := ParseCommandReply(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	failed := FailedCommands(results)
	if len(results) != 2 || len(failed) != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if !failed[0].ParseError || failed[0].Input != "foo bar" {
		t.Fatalf("unexpected failure %+v", failed[0])
	}
	if _, err := ParseCommandReply([]byte(`{`)); err == nil {
		t.Fatalf("expected error for malformed reply")
	}
}

func TestDialRoundTripOverUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		sc := NewConn(nc)
		defer sc.Close()
		req, err := sc.Receive()
		if err != nil {
			return
		}
		_ = sc.Send(req.Type, []byte(`[{"success":true}]`))
	}()

	c, err := DialClient(path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if c.Conn().Path() != path {
		t.Fatalf("path: %q", c.Conn().Path())
	}
	reply, err := c.Request(RunCommand, []byte("nop"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(reply.Payload) != `[{"success":true}]` {
		t.Fatalf("reply: %q", reply.Payload)
	}
}

func TestDialMissingSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	_, err := Dial(path)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConnectError, got %v", err)
	}
	if cerr.Path != path {
		t.Fatalf("path: %q", cerr.Path)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("expected ENOENT in chain, got %v", err)
	}
}

func TestTruncateSocketPath(t *testing.T) {
	long := "/tmp/" + strings.Repeat("a", 300)
	got := TruncateSocketPath(long)
	if len(got) != MaxSocketPath {
		t.Fatalf("length %d want %d", len(got), MaxSocketPath)
	}
	if !strings.HasPrefix(long, got) {
		t.Fatalf("truncation must keep the prefix")
	}
	if TruncateSocketPath("/run/wm.sock") != "/run/wm.sock" {
		t.Fatalf("short paths must be unchanged")
	}
}
