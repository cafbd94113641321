// Package signal is the behavioral signal extraction port. An Analyzer turns
// one message (plus recent conversation context) into a structured
// BehavioralSignal; everything downstream of the queue consumes signals, not
// raw text.
//
// Extraction is best-effort by contract: any analyzer failure or timeout
// degrades to DefaultSignal and the pipeline continues. A conversation is
// never lost because a classifier was down.
package signal

import (
	"context"
	"strconv"
	"strings"

	"github.com/dreyhq/drey/pkg/conversation"
)

// Analyzer extracts a behavioral signal from one message. RecentContext is
// the trailing window of prior messages in the same conversation, oldest
// first; implementations may ignore it.
type Analyzer interface {
	Analyze(ctx context.Context, message string, recentContext []string) (conversation.BehavioralSignal, error)
}

// DefaultTopic is the topic assigned when extraction cannot determine one.
const DefaultTopic = "unknown"

// DefaultSignal is the neutral signal used whenever extraction fails, times
// out, or returns something unusable.
func DefaultSignal() conversation.BehavioralSignal {
	return conversation.BehavioralSignal{
		Intent:      conversation.IntentUpdate,
		Topic:       DefaultTopic,
		NeedsOwner:  false,
		Confidence:  0.5,
		Uncertainty: 0.5,
		Entities:    []string{},
	}
}

// Normalize converts an untyped raw signal shape into a valid
// BehavioralSignal. External analyzers return loosely typed JSON; every
// field is coerced individually and falls back to its DefaultSignal value on
// any mismatch, so one malformed field never poisons the rest.
// Uncertainty is always recomputed as 1 - Confidence.
func Normalize(raw map[string]any) conversation.BehavioralSignal {
	sig := DefaultSignal()
	if raw == nil {
		return sig
	}

	if intent := conversation.Intent(coerceString(raw["intent"], "")); intent.Validate() == nil {
		sig.Intent = intent
	}
	if topic := strings.TrimSpace(coerceString(raw["topic"], "")); topic != "" {
		sig.Topic = topic
	}
	sig.NeedsOwner = coerceBool(raw["needs_owner"], false)
	sig.Confidence = clamp01(coerceFloat(raw["confidence"], 0.5))
	sig.Uncertainty = 1 - sig.Confidence
	sig.Entities = coerceStringSlice(raw["entities"])
	sig.ImpliedAction = coerceString(raw["implied_action"], "")
	return sig
}

func coerceString(value any, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

func coerceBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func coerceFloat(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func coerceStringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
