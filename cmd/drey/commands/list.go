package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreyhq/drey/internal/printer"
	"github.com/dreyhq/drey/pkg/conversation"
)

var (
	listJSON  bool
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked conversations",
	Long: `List the instance's tracked conversations, most recently active first.

For each conversation, displays:
  • Conversation ID
  • Channel and thread
  • Current lifecycle state
  • Time since last activity

Use --json for machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum conversations to show")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	conversations, err := st.ActiveConversations(ctx, listLimit)
	if err != nil {
		return printer.Error(
			"Failed to list conversations",
			err.Error(),
			[]string{"Check that Redis is reachable and the instance name is correct"},
		)
	}

	if len(conversations) == 0 {
		if listJSON {
			printer.Println("[]")
		} else {
			printer.Println("No tracked conversations.")
		}
		return nil
	}

	if listJSON {
		data, err := json.MarshalIndent(conversations, "", "  ")
		if err != nil {
			return err
		}
		printer.Println(string(data))
		return nil
	}

	printer.Printf("%-36s %-12s %-20s %-16s %s\n", "ID", "CHANNEL", "THREAD", "STATE", "LAST ACTIVITY")
	for _, conv := range conversations {
		thread := conv.ThreadID
		if thread == "" {
			thread = "-"
		}
		printer.Printf("%-36s %-12s %-20s %s %s ago\n",
			conv.ID,
			conv.ChannelID,
			thread,
			padState(conv.CurrentState),
			formatDuration(time.Since(conv.LastActivityAt)),
		)
	}
	return nil
}

// padState pads the uncolored state name to the column width; ANSI escapes
// confuse %-16s padding.
func padState(state conversation.State) string {
	colored := printer.State(state)
	for pad := 16 - len(string(state)); pad > 0; pad-- {
		colored += " "
	}
	return colored
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
