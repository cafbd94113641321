package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreyhq/drey/internal/printer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream coordination decisions in real time",
	Long: `Subscribe to the instance's decision events channel and print each
coordination decision as the daemon emits it.

Decisions are delivered over Redis Pub/Sub, so only decisions made while
watching are shown. Use 'drey gaps' to inspect stored history.

Examples:
  # Watch the instance from DREY_INSTANCE_NAME
  drey watch

  # Watch a specific instance
  drey watch --instance prod`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := st.SubscribeDecisions(ctx)
	if err != nil {
		return printer.Error(
			"Failed to subscribe to decision events",
			err.Error(),
			[]string{"Check that Redis is reachable"},
		)
	}
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	printer.Info("Watching for coordination decisions (Ctrl+C to stop)...\n\n")

	for {
		select {
		case <-sigCh:
			printer.Println("\nStopped.")
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("Skipped malformed decision event: %v\n", err)
		case decision, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Printf("%s  [%s] %-18s %s\n",
				decision.DecidedAt.Format("15:04:05"),
				printer.Priority(decision.Priority),
				decision.Action,
				decision.Reason,
			)
			printer.Printf("          conversation: %s\n", decision.ConversationID)
		}
	}
}
