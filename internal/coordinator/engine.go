// Package coordinator contains the decision side of the pipeline: the
// rule-based engine that proposes interventions, the communication gap
// detector, and the processor that runs one dequeued event through the whole
// unit of work.
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreyhq/drey/internal/config"
	"github.com/dreyhq/drey/pkg/conversation"
)

// EvalInput is one conversation's situation at evaluation time. All values
// are computed by the caller; the engine itself is pure and deterministic.
type EvalInput struct {
	ConversationID     string
	State              conversation.State
	TimeInState        time.Duration
	SinceActivity      time.Duration
	Signal             conversation.BehavioralSignal
	ClarificationCount int
	GapSeverities      []float64
}

// Engine is the rule-based coordination decision engine. Rules are evaluated
// in fixed priority order and the first match wins; most evaluations match
// nothing, which is the intended quiet default.
type Engine struct {
	thresholds config.Thresholds
	now        func() time.Time

	mu      sync.Mutex
	history []conversation.CoordinationDecision
}

// NewEngine creates an engine with the given thresholds. A nil nowFn
// defaults to time.Now.
func NewEngine(thresholds config.Thresholds, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{
		thresholds: thresholds,
		now:        nowFn,
	}
}

// Evaluate applies the intervention rules to one conversation snapshot.
// Returns nil when no intervention is warranted; nil is the common case, not
// an error. Non-nil decisions are recorded in the engine's history.
func (e *Engine) Evaluate(in EvalInput) *conversation.CoordinationDecision {
	decision := e.match(in)
	if decision == nil {
		return nil
	}

	decision.ID = uuid.New().String()
	decision.ConversationID = in.ConversationID
	decision.DecidedAt = e.now().UTC()

	e.mu.Lock()
	e.history = append(e.history, *decision)
	e.mu.Unlock()

	return decision
}

func (e *Engine) match(in EvalInput) *conversation.CoordinationDecision {
	// Rule 1: unowned question past the ownership timeout.
	if in.State == conversation.StateQuestionRaised && in.Signal.NeedsOwner &&
		in.TimeInState > e.thresholds.OwnershipTimeout() {
		return &conversation.CoordinationDecision{
			Action:   conversation.ActionPromptOwnership,
			Reason:   fmt.Sprintf("No owner assigned after %d hours", e.thresholds.OwnershipTimeoutHours),
			Priority: conversation.PriorityHigh,
			Metadata: map[string]string{
				"hours_elapsed": fmt.Sprintf("%.1f", in.TimeInState.Hours()),
			},
		}
	}

	// Rule 2: clarification looping without progress.
	if (in.State == conversation.StateQuestionRaised || in.State == conversation.StateClarifying) &&
		in.ClarificationCount >= e.thresholds.ClarificationMaxLoops {
		return &conversation.CoordinationDecision{
			Action:   conversation.ActionSuggestContext,
			Reason:   fmt.Sprintf("%d clarification loops detected", in.ClarificationCount),
			Priority: conversation.PriorityMedium,
			Metadata: map[string]string{
				"clarification_count": fmt.Sprintf("%d", in.ClarificationCount),
			},
		}
	}

	// Rule 3: question left unanswered past the response timeout.
	if in.Signal.Intent == conversation.IntentQuestion &&
		in.SinceActivity > e.thresholds.ResponseTimeout() {
		return &conversation.CoordinationDecision{
			Action:   conversation.ActionNudgeResponse,
			Reason:   fmt.Sprintf("Unanswered question for %.1f hours", in.SinceActivity.Hours()),
			Priority: conversation.PriorityMedium,
			Metadata: map[string]string{
				"hours_since_activity": fmt.Sprintf("%.1f", in.SinceActivity.Hours()),
			},
		}
	}

	// Rule 4: an unresolved gap above the severity cutoff.
	if max, ok := maxSeverity(in.GapSeverities); ok && max > e.thresholds.GapSeverityCutoff {
		return &conversation.CoordinationDecision{
			Action:   conversation.ActionFlagGap,
			Reason:   fmt.Sprintf("High severity gap detected: %.2f", max),
			Priority: conversation.PriorityHigh,
			Metadata: map[string]string{
				"max_severity": fmt.Sprintf("%.2f", max),
			},
		}
	}

	return nil
}

// History returns a copy of every decision this engine has produced, in
// order.
func (e *Engine) History() []conversation.CoordinationDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]conversation.CoordinationDecision, len(e.history))
	copy(out, e.history)
	return out
}

// ShouldIntervene is a coarse pre-filter for sweep-style callers: it flags
// conversations stuck in question_raised past the ownership timeout or
// in_progress past the resolution stall, without running the full rule set.
func (e *Engine) ShouldIntervene(state conversation.State, timeInState time.Duration) bool {
	switch state {
	case conversation.StateQuestionRaised:
		return timeInState > e.thresholds.OwnershipTimeout()
	case conversation.StateInProgress:
		return timeInState > e.thresholds.ResolutionStall()
	default:
		return false
	}
}

func maxSeverity(severities []float64) (float64, bool) {
	if len(severities) == 0 {
		return 0, false
	}
	max := severities[0]
	for _, s := range severities[1:] {
		if s > max {
			max = s
		}
	}
	return max, true
}
