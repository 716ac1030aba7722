package ipc

import (
	"errors"
	"testing"
)

func TestParseMessageType(t *testing.T) {
	cases := map[string]uint32{
		"command":        RunCommand,
		"run_command":    RunCommand,
		"get_tree":       GetTree,
		"tree":           GetTree,
		"GET_WORKSPACES": GetWorkspaces,
		"bar_config":     GetBarConfig,
		"subscribe":      Subscribe,
		"send_tick":      SendTick,
		"sync":           Sync,
		"42":             42,
	}
	for in, want := range cases {
		got, err := ParseMessageType(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %d want %d", in, got, want)
		}
	}
	if _, err := ParseMessageType("teleport"); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestMessageTypeNames(t *testing.T) {
	if MessageTypeName(GetOutputs) != "get_outputs" {
		t.Fatalf("get_outputs: %q", MessageTypeName(GetOutputs))
	}
	if MessageTypeName(EventBinding) != "binding" {
		t.Fatalf("binding: %q", MessageTypeName(EventBinding))
	}
	if MessageTypeName(99) != "99" {
		t.Fatalf("unknown request: %q", MessageTypeName(99))
	}
	if EventName(EventMask|20) != "event_20" {
		t.Fatalf("unknown event: %q", EventName(EventMask|20))
	}
	if !IsEvent(EventTick) || IsEvent(GetTree) {
		t.Fatalf("IsEvent misclassified")
	}
	if n := EventNames(); len(n) != 8 || n[0] != "workspace" || n[7] != "tick" {
		t.Fatalf("event names: %v", n)
	}
}
