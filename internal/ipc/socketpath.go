package ipc

import (
	"errors"
	"os"
	"strings"

	"github.com/bryanchriswhite/wmipc/internal/logger"
)

// SocketPathAtom is the X11 root window property the window manager
// publishes its socket path in.
const SocketPathAtom = "I3_SOCKET_PATH"

// SocketEnvVars are consulted in order when no path is given explicitly.
var SocketEnvVars = []string{"I3SOCK", "SWAYSOCK"}

var ErrNoSocketPath = errors.New("ipc: could not determine socket path")

// RootPropertyReader reads string properties off the X11 root window.
type RootPropertyReader interface {
	RootProperty(name string) (string, error)
}

// ResolveSocketPath picks the socket path from, in order: explicit, the
// environment, and the root window property (skipped when root is nil).
func ResolveSocketPath(explicit string, root RootPropertyReader) (string, error) {
	log := logger.WithComponent("ipc")

	if explicit != "" {
		return explicit, nil
	}
	for _, name := range SocketEnvVars {
		if v := os.Getenv(name); v != "" {
			log.Debug().Str("env", name).Str("path", v).Msg("Socket path from environment")
			return v, nil
		}
	}
	if root != nil {
		v, err := root.RootProperty(SocketPathAtom)
		if err == nil {
			v = strings.TrimRight(v, "\x00")
		}
		if err == nil && v != "" {
			log.Debug().Str("path", v).Msg("Socket path from root window")
			return v, nil
		}
		if err != nil {
			log.Debug().Err(err).Msg("Root window socket path lookup failed")
		}
	}
	return "", ErrNoSocketPath
}
