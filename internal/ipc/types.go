package ipc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Request types understood by the window manager. The framing layer treats
// them as opaque tags.
const (
	RunCommand uint32 = iota
	GetWorkspaces
	Subscribe
	GetOutputs
	GetTree
	GetMarks
	GetBarConfig
	GetVersion
	GetBindingModes
	GetConfig
	SendTick
	Sync
)

// EventMask marks a message as an event rather than a reply.
const EventMask uint32 = 1 << 31

const (
	EventWorkspace uint32 = EventMask | iota
	EventOutput
	EventMode
	EventWindow
	EventBarconfigUpdate
	EventBinding
	EventShutdown
	EventTick
)

var ErrUnknownMessageType = errors.New("ipc: unknown message type")

var messageNames = map[uint32]string{
	RunCommand:      "command",
	GetWorkspaces:   "get_workspaces",
	Subscribe:       "subscribe",
	GetOutputs:      "get_outputs",
	GetTree:         "get_tree",
	GetMarks:        "get_marks",
	GetBarConfig:    "get_bar_config",
	GetVersion:      "get_version",
	GetBindingModes: "get_binding_modes",
	GetConfig:       "get_config",
	SendTick:        "send_tick",
	Sync:            "sync",
}

var eventNames = map[uint32]string{
	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarconfigUpdate: "barconfig_update",
	EventBinding:         "binding",
	EventShutdown:        "shutdown",
	EventTick:            "tick",
}

// IsEvent reports whether t carries the event bit.
func IsEvent(t uint32) bool { return t&EventMask != 0 }

// ParseMessageType accepts a request name ("get_tree", "tree",
// "run_command", ...) or a decimal tag.
func ParseMessageType(name string) (uint32, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if v, err := strconv.ParseUint(n, 10, 32); err == nil {
		return uint32(v), nil
	}
	if n == "run_command" {
		return RunCommand, nil
	}
	for t, s := range messageNames {
		if n == s || "get_"+n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMessageType, name)
}

// MessageTypeName names a request or event tag, falling back to the number.
func MessageTypeName(t uint32) string {
	if IsEvent(t) {
		return EventName(t)
	}
	if s, ok := messageNames[t]; ok {
		return s
	}
	return strconv.FormatUint(uint64(t), 10)
}

// EventName names an event tag.
func EventName(t uint32) string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "event_" + strconv.FormatUint(uint64(t&^EventMask), 10)
}

// EventNames lists every known event name, for validating subscriptions.
func EventNames() []string {
	names := make([]string, 0, len(eventNames))
	for t := EventWorkspace; t <= EventTick; t++ {
		names = append(names, eventNames[t])
	}
	return names
}
