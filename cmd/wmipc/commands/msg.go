package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bryanchriswhite/wmipc/internal/ipc"
	"github.com/bryanchriswhite/wmipc/internal/jsonstream"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
)

var msgCmd = &cobra.Command{
	Use:   "msg [payload...]",
	Short: "Send a message to the window manager",
	Long: `Send one IPC message and print the reply.

The arguments are joined with spaces to form the payload. For commands
the reply is checked and every failed command is reported on stderr,
in which case the exit status is 2.`,
	Example: `  # Run a command
  wmipc msg workspace 2

  # Query the layout tree
  wmipc msg -t get_tree

  # Watch focus changes
  wmipc msg -t subscribe -m '["window"]'

  # Send a payload from a file (comments and trailing commas allowed)
  wmipc msg -t subscribe --payload-file events.jsonc`,
	RunE: runMsg,
}

var (
	msgType        string
	msgQuiet       bool
	msgRaw         bool
	msgMonitor     bool
	msgPayloadFile string
)

func init() {
	rootCmd.AddCommand(msgCmd)

	msgCmd.Flags().StringVarP(&msgType, "type", "t", "command", "message type (name such as get_tree, or number)")
	msgCmd.Flags().BoolVarP(&msgQuiet, "quiet", "q", false, "only send the message, do not print the reply")
	msgCmd.Flags().BoolVarP(&msgRaw, "raw", "r", false, "print replies without reformatting")
	msgCmd.Flags().BoolVarP(&msgMonitor, "monitor", "m", false, "with -t subscribe, keep printing events")
	msgCmd.Flags().StringVar(&msgPayloadFile, "payload-file", "", "read the payload from a file ('-' for stdin)")
}

func runMsg(cmd *cobra.Command, args []string) error {
	t, err := ipc.ParseMessageType(msgType)
	if err != nil {
		return err
	}
	if msgMonitor && t != ipc.Subscribe {
		return errors.New("--monitor requires -t subscribe")
	}

	payload, err := readPayload(cmd.InOrStdin(), t, args, msgPayloadFile)
	if err != nil {
		return err
	}

	cfg, path, err := socketPath()
	if err != nil {
		return err
	}

	client, err := ipc.DialClient(path)
	if err != nil {
		return err
	}
	defer client.Close()

	log := logger.WithComponent("msg")
	log.Debug().
		Str("type", ipc.MessageTypeName(t)).
		Int("payload_bytes", len(payload)).
		Msg("Sending message")

	reply, err := client.Request(t, payload)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	indent := cfg.Output.Indent
	raw := msgRaw || cfg.Output.Raw
	if !msgQuiet {
		printReply(out, reply.Payload, indent, raw)
	}

	if t == ipc.RunCommand {
		results, err := ipc.ParseCommandReply(reply.Payload)
		if err != nil {
			return err
		}
		if failed := ipc.FailedCommands(results); len(failed) > 0 {
			writeFailedCommands(cmd.ErrOrStderr(), failed)
			return &exitError{code: 2}
		}
	}

	if !msgMonitor {
		return nil
	}
	for {
		ev, err := client.NextEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ev.Type == ipc.EventShutdown {
			log.Info().Msg("Window manager is shutting down")
		}
		printReply(out, ev.Payload, indent, raw)
	}
}

// readPayload builds the message body from a payload file or the joined
// arguments. Files for JSON message types may use comments and trailing
// commas.
func readPayload(stdin io.Reader, t uint32, args []string, file string) ([]byte, error) {
	if file == "" {
		return []byte(strings.Join(args, " ")), nil
	}
	if len(args) > 0 {
		return nil, errors.New("payload arguments and --payload-file are mutually exclusive")
	}

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if t == ipc.RunCommand {
		return []byte(strings.TrimSpace(string(data))), nil
	}
	return jsonc.ToJSON(data), nil
}

// printReply writes payload beautified, or verbatim when raw is set or the
// payload is not JSON.
func printReply(w io.Writer, payload []byte, indent string, raw bool) {
	if !raw {
		if pretty, err := jsonstream.Reformat(payload, jsonstream.Beautify(indent)); err == nil {
			w.Write(pretty)
			return
		}
	}
	w.Write(payload)
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		io.WriteString(w, "\n")
	}
}

// writeFailedCommands reports each rejected command, pointing at the
// offending part of the input when the command did not parse.
func writeFailedCommands(w io.Writer, failed []ipc.CommandResult) {
	for _, r := range failed {
		if r.ParseError && r.Input != "" {
			fmt.Fprintf(w, "ERROR: Your command: %s\n", r.Input)
			fmt.Fprintf(w, "ERROR:               %s\n", r.ErrorPosition)
		}
		fmt.Fprintf(w, "ERROR: %s\n", r.Error)
	}
}
