package ipc

import (
	"errors"
	"testing"
)

type fakeRoot struct {
	value string
	err   error
	asked []string
}

func (f *fakeRoot) RootProperty(name string) (string, error) {
	f.asked = append(f.asked, name)
	return f.value, f.err
}

func clearSocketEnv(t *testing.T) {
	for _, name := range SocketEnvVars {
		t.Setenv(name, "")
	}
}

func TestResolveSocketPathExplicitWins(t *testing.T) {
	clearSocketEnv(t)
	t.Setenv("I3SOCK", "/env.sock")
	root := &fakeRoot{value: "/root.sock"}
	got, err := ResolveSocketPath("/flag.sock", root)
	if err != nil || got != "/flag.sock" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	if len(root.asked) != 0 {
		t.Fatalf("root window should not be consulted")
	}
}

func TestResolveSocketPathEnvironment(t *testing.T) {
	clearSocketEnv(t)
	t.Setenv("SWAYSOCK", "/sway.sock")
	got, err := ResolveSocketPath("", &fakeRoot{value: "/root.sock"})
	if err != nil || got != "/sway.sock" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	t.Setenv("I3SOCK", "/i3.sock")
	got, _ = ResolveSocketPath("", nil)
	if got != "/i3.sock" {
		t.Fatalf("I3SOCK should take precedence, got %q", got)
	}
}

func TestResolveSocketPathRootWindow(t *testing.T) {
	clearSocketEnv(t)
	root := &fakeRoot{value: "/run/user/1000/i3/ipc-socket.123\x00"}
	got, err := ResolveSocketPath("", root)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "/run/user/1000/i3/ipc-socket.123" {
		t.Fatalf("got %q", got)
	}
	if len(root.asked) != 1 || root.asked[0] != SocketPathAtom {
		t.Fatalf("asked for %v", root.asked)
	}
}

func TestResolveSocketPathNothingFound(t *testing.T) {
	clearSocketEnv(t)
	if _, err := ResolveSocketPath("", nil); !errors.Is(err, ErrNoSocketPath) {
		t.Fatalf("expected ErrNoSocketPath, got %v", err)
	}
	root := &fakeRoot{err: errors.New("no display")}
	if _, err := ResolveSocketPath("", root); !errors.Is(err, ErrNoSocketPath) {
		t.Fatalf("expected ErrNoSocketPath, got %v", err)
	}
}
