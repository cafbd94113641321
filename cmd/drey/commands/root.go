package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dreyhq/drey/internal/printer"
	"github.com/dreyhq/drey/internal/store"
)

var (
	version string
	commit  string
	date    string

	rootRedisURL string
	rootInstance string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drey",
	Short: "Drey - Team communication coordination tracker",
	Long: `Drey ingests chat platform events, tracks each thread's coordination
lifecycle through a behavioral state machine, and surfaces unowned questions,
clarification loops, and communication gaps before they stall the team.

The drey CLI inspects a running instance's state over Redis.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootRedisURL, "redis-url", "", "Redis URL (defaults to REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&rootInstance, "instance", "", "Instance name (defaults to DREY_INSTANCE_NAME)")
}

// openStore connects to the target instance's store using flags with
// environment fallbacks.
func openStore() (*store.Store, error) {
	redisURL := rootRedisURL
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	instance := rootInstance
	if instance == "" {
		instance = os.Getenv("DREY_INSTANCE_NAME")
	}
	if instance == "" {
		return nil, printer.Error(
			"No instance specified",
			"drey needs to know which instance's state to inspect.",
			[]string{
				"Pass --instance <name>",
				"Or set DREY_INSTANCE_NAME",
			},
		)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error(
			"Invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", redisURL, err),
			[]string{"Check --redis-url or REDIS_URL"},
		)
	}

	return store.New(opts, instance)
}
