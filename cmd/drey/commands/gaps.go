package commands

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dreyhq/drey/internal/printer"
)

var gapsJSON bool

var gapsCmd = &cobra.Command{
	Use:   "gaps <conversation-id>",
	Short: "Show a conversation's detected communication gaps",
	Long: `Show every communication gap detected for one conversation: unowned
questions, repeated-context loops, and their severities.

Find conversation IDs with 'drey list'.`,
	Args: cobra.ExactArgs(1),
	RunE: runGaps,
}

func init() {
	gapsCmd.Flags().BoolVar(&gapsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(gapsCmd)
}

func runGaps(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	gaps, err := st.Gaps(ctx, args[0])
	if err != nil {
		return printer.Error(
			"Failed to read gaps",
			err.Error(),
			[]string{"Check the conversation ID with 'drey list'"},
		)
	}

	if len(gaps) == 0 {
		if gapsJSON {
			printer.Println("[]")
		} else {
			printer.Success("No communication gaps detected.\n")
		}
		return nil
	}

	if gapsJSON {
		data, err := json.MarshalIndent(gaps, "", "  ")
		if err != nil {
			return err
		}
		printer.Println(string(data))
		return nil
	}

	printer.Printf("%-11s %-9s %-22s %s\n", "TYPE", "SEVERITY", "DETECTED", "DESCRIPTION")
	for _, gap := range gaps {
		status := ""
		if gap.Resolved {
			status = " (resolved)"
		}
		printer.Printf("%-11s %-9.2f %-22s %s%s\n",
			gap.GapType,
			gap.Severity,
			gap.DetectedAt.Format("2006-01-02 15:04:05"),
			gap.Description,
			status,
		)
	}
	return nil
}
