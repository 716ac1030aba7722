package x11

import (
	"os"

	"github.com/bryanchriswhite/wmipc/internal/ipc"
	"github.com/bryanchriswhite/wmipc/internal/logger"
)

// ResolveSocketPath resolves the IPC socket path, connecting to the X
// server only when neither explicit nor the environment names one.
func ResolveSocketPath(explicit string) (string, error) {
	if explicit != "" || socketFromEnv() {
		return ipc.ResolveSocketPath(explicit, nil)
	}

	d, err := Open()
	if err != nil {
		logger.WithComponent("x11").Debug().Err(err).Msg("No X display for socket lookup")
		return ipc.ResolveSocketPath(explicit, nil)
	}
	defer d.Close()
	return ipc.ResolveSocketPath(explicit, d)
}

func socketFromEnv() bool {
	for _, name := range ipc.SocketEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}
