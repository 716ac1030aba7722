package commands

import (
	"encoding/json"
	"fmt"

	"github.com/bryanchriswhite/wmipc/internal/jsonstream"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "Find the \"version\" of the first JSON value",
	Long: `Scan the first JSON value of a file or stdin for an integer "version"
key, the way status line headers are detected. Bytes after that value are
not examined.`,
	Example: `  # Check what a status command announces
  i3status | head -c 4096 | wmipc probe`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

var probeJSON bool

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "print the result as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	r := jsonstream.Probe(data)
	out := cmd.OutOrStdout()
	if probeJSON {
		return json.NewEncoder(out).Encode(map[string]interface{}{
			"version":  r.Version,
			"consumed": r.Consumed,
			"complete": r.Complete,
		})
	}
	fmt.Fprintf(out, "version:  %d\nconsumed: %d\ncomplete: %t\n", r.Version, r.Consumed, r.Complete)
	return nil
}
