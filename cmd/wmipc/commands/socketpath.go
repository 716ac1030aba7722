package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var socketPathCmd = &cobra.Command{
	Use:   "socketpath",
	Short: "Print the IPC socket path",
	Long: `Print the socket path wmipc would connect to. It comes from --socket or
socket_path in the config, then $I3SOCK and $SWAYSOCK, then the
I3_SOCKET_PATH property of the X11 root window.`,
	Args: cobra.NoArgs,
	RunE: runSocketPath,
}

func init() {
	rootCmd.AddCommand(socketPathCmd)
}

func runSocketPath(cmd *cobra.Command, args []string) error {
	_, path, err := socketPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
