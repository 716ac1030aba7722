package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bryanchriswhite/wmipc/internal/config"
	"github.com/bryanchriswhite/wmipc/internal/jsonstream"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Reformat JSON",
	Long: `Reformat one JSON document from a file or stdin.

Keys keep their order and numbers keep their exact spelling. Invalid or
truncated input produces no output and a non-zero exit status.`,
	Example: `  # Beautify a reply saved earlier
  wmipc fmt tree.json

  # Compact output
  wmipc msg -r -t get_tree | wmipc fmt --compact

  # Accept comments and trailing commas
  wmipc fmt --jsonc config.jsonc`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFmt,
}

var (
	fmtIndent  string
	fmtCompact bool
	fmtJSONC   bool
)

func init() {
	rootCmd.AddCommand(fmtCmd)

	fmtCmd.Flags().StringVar(&fmtIndent, "indent", "", "indent string (default from config, four spaces)")
	fmtCmd.Flags().BoolVar(&fmtCompact, "compact", false, "emit compact JSON")
	fmtCmd.Flags().BoolVar(&fmtJSONC, "jsonc", false, "strip comments and trailing commas first")
}

func runFmt(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if fmtJSONC {
		data = jsonc.ToJSON(data)
	}

	opt := jsonstream.Beautify(jsonstream.DefaultIndent)
	switch {
	case fmtCompact:
		opt = jsonstream.Compact()
	case cmd.Flags().Changed("indent"):
		opt = jsonstream.Beautify(fmtIndent)
	default:
		if cfg, err := config.Load(GetConfigFile()); err == nil {
			opt = jsonstream.Beautify(cfg.Output.Indent)
		}
	}

	out, err := jsonstream.Reformat(data, opt)
	if err != nil {
		return fmt.Errorf("failed to reformat input: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// readInput reads the named file, or stdin when no file (or "-") is given.
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}
