package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/bryanchriswhite/wmipc/internal/statusline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run a status command and show its output",
	Long: `Run a status line command and print each status it produces.

Commands that start with a JSON header such as {"version":1} are read
with the i3bar protocol, anything else as one status per line. On a
terminal the status is redrawn in place.

SIGUSR1 pauses the command with its stop signal, SIGUSR2 resumes it.`,
	Example: `  # Show i3status output
  wmipc status -c i3status

  # Plain text status
  wmipc status -c 'while date; do sleep 1; done'`,
	RunE: runStatus,
}

var (
	statusCommand   string
	statusShell     string
	statusSeparator string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusCommand, "command", "c", "", "status command (default from config status.command)")
	statusCmd.Flags().StringVar(&statusShell, "shell", "", "shell used to run the command (default from config status.shell)")
	statusCmd.Flags().StringVar(&statusSeparator, "separator", " | ", "separator between JSON blocks")
}

func runStatus(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	command := statusCommand
	if command == "" {
		command = cfg.Status.Command
	}
	if command == "" {
		return errors.New("no status command given (use -c or set status.command)")
	}
	shell := statusShell
	if shell == "" {
		shell = cfg.Status.Shell
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := statusline.NewRunner(command, statusline.WithShell(shell))
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	control := make(chan os.Signal, 1)
	signal.Notify(control, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(control)

	log := logger.WithComponent("status")
	out := cmd.OutOrStdout()
	inPlace := false
	if f, ok := out.(*os.File); ok {
		inPlace = term.IsTerminal(int(f.Fd()))
	}

	for {
		select {
		case u, ok := <-runner.Updates():
			if !ok {
				if inPlace {
					io.WriteString(out, "\n")
				}
				if ctx.Err() != nil {
					return nil
				}
				return runner.Err()
			}
			writeStatus(out, renderUpdate(u, statusSeparator), inPlace)
		case sig := <-control:
			var err error
			if sig == syscall.SIGUSR1 {
				err = runner.Pause()
			} else {
				err = runner.Resume()
			}
			if err != nil {
				log.Warn().Err(err).Msg("Failed to signal status command")
			}
		}
	}
}

// block is the part of an i3bar status block this command displays.
type block struct {
	FullText string `json:"full_text"`
}

// renderUpdate flattens an update to one line of text.
func renderUpdate(u statusline.Update, sep string) string {
	if u.Protocol != statusline.ProtocolJSON {
		return u.Text
	}
	var blocks []block
	if err := json.Unmarshal(u.Raw, &blocks); err != nil {
		return string(u.Raw)
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.FullText != "" {
			parts = append(parts, b.FullText)
		}
	}
	return strings.Join(parts, sep)
}

func writeStatus(w io.Writer, line string, inPlace bool) {
	if inPlace {
		fmt.Fprintf(w, "\r\x1b[K%s", line)
		return
	}
	fmt.Fprintln(w, line)
}
