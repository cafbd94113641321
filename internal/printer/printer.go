// Package printer provides colored terminal output for the drey CLI.
package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/dreyhq/drey/pkg/conversation"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// Success prints a success message in green.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	yellow.Printf("⚠ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with optional suggestions to stderr and
// returns a simple error for cobra (which won't reprint it because of
// SilenceErrors).
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", explanation)
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  • %s\n", suggestion)
		}
	}
	return fmt.Errorf("%s", title)
}

// Println prints a plain message.
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// State formats a conversation state with a color reflecting how much
// attention it needs: red for stalled question states, yellow for active
// coordination, green for resolved, dim for idle.
func State(state conversation.State) string {
	switch state {
	case conversation.StateQuestionRaised:
		return red.Sprint(string(state))
	case conversation.StateClarifying, conversation.StateOwnerAssigned, conversation.StateInProgress:
		return yellow.Sprint(string(state))
	case conversation.StateResolved:
		return green.Sprint(string(state))
	default:
		return dim.Sprint(string(state))
	}
}

// Priority formats a decision priority with matching urgency colors.
func Priority(priority conversation.Priority) string {
	switch priority {
	case conversation.PriorityHigh:
		return red.Sprint(string(priority))
	case conversation.PriorityMedium:
		return yellow.Sprint(string(priority))
	default:
		return cyan.Sprint(string(priority))
	}
}
