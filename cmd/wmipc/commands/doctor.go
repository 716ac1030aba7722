package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bryanchriswhite/wmipc/internal/ipc"
	"github.com/bryanchriswhite/wmipc/internal/x11"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the connection to the window manager",
	Long: `Report where the socket path comes from, what the X server says about
the focused window, and which window manager version answers on the
socket.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type versionReply struct {
	HumanReadable string `json:"human_readable"`
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	Patch         int    `json:"patch"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	fmt.Fprintf(out, "config:      %s\n", configMgr.GetConfigPath())

	display, err := x11.Open()
	if err != nil {
		fmt.Fprintf(out, "x11:         unavailable (%v)\n", err)
	} else {
		defer display.Close()
		if win, err := display.FocusedWindow(); err == nil {
			fmt.Fprintf(out, "focus:       0x%x %q (%s, pid %d)\n", win.ID, win.Title, win.Class, win.PID)
		} else {
			fmt.Fprintf(out, "focus:       unknown (%v)\n", err)
		}
	}

	var root ipc.RootPropertyReader
	if display != nil {
		root = display
	}
	path, err := ipc.ResolveSocketPath(cfg.SocketPath, root)
	if err != nil {
		fmt.Fprintf(out, "socket:      not found\n")
		return err
	}
	fmt.Fprintf(out, "socket:      %s\n", path)

	client, err := ipc.DialClient(path)
	if err != nil {
		fmt.Fprintf(out, "connect:     failed\n")
		return err
	}
	defer client.Close()

	reply, err := client.Request(ipc.GetVersion, nil)
	if err != nil {
		return err
	}
	return writeVersion(out, reply.Payload)
}

func writeVersion(w io.Writer, payload []byte) error {
	var v versionReply
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("failed to decode version reply: %w", err)
	}
	name := v.HumanReadable
	if name == "" {
		name = fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	fmt.Fprintf(w, "wm version:  %s\n", name)
	return nil
}
