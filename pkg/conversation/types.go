package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a conversation.
type State string

const (
	// StateIdle is the initial state of every conversation.
	StateIdle State = "idle"

	// StateQuestionRaised indicates an unanswered question that may need an owner.
	StateQuestionRaised State = "question_raised"

	// StateClarifying indicates an active back-and-forth gathering context.
	StateClarifying State = "clarifying"

	// StateOwnerAssigned indicates someone has taken ownership of the thread.
	StateOwnerAssigned State = "owner_assigned"

	// StateInProgress indicates work on the conversation's subject is underway.
	StateInProgress State = "in_progress"

	// StateResolved indicates the conversation reached an outcome. Resolved is
	// quiescent, not terminal - conversations can reopen.
	StateResolved State = "resolved"
)

// Validate checks if the State is a valid enum value.
func (s State) Validate() error {
	switch s {
	case StateIdle, StateQuestionRaised, StateClarifying,
		StateOwnerAssigned, StateInProgress, StateResolved:
		return nil
	default:
		return fmt.Errorf("unknown conversation state: %q", s)
	}
}

// EventType classifies a canonical inbound event.
type EventType string

const (
	// EventTypeMessage is an ordinary channel or thread message.
	EventTypeMessage EventType = "message"

	// EventTypeMention is a message that explicitly mentions the app.
	EventTypeMention EventType = "mention"
)

// Validate checks if the EventType is a valid enum value.
func (et EventType) Validate() error {
	switch et {
	case EventTypeMessage, EventTypeMention:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", et)
	}
}

// Intent classifies the behavioral purpose of one message.
type Intent string

const (
	// IntentQuestion is a request for information or help.
	IntentQuestion Intent = "question"

	// IntentBugReport describes something broken.
	IntentBugReport Intent = "bug_report"

	// IntentUpdate is a status report or neutral statement.
	IntentUpdate Intent = "update"

	// IntentResolution declares the subject handled or fixed.
	IntentResolution Intent = "resolution"
)

// Validate checks if the Intent is a valid enum value.
func (i Intent) Validate() error {
	switch i {
	case IntentQuestion, IntentBugReport, IntentUpdate, IntentResolution:
		return nil
	default:
		return fmt.Errorf("unknown intent: %q", i)
	}
}

// Action identifies the intervention a coordination decision proposes.
type Action string

const (
	// ActionPromptOwnership asks the channel for an owner.
	ActionPromptOwnership Action = "prompt_ownership"

	// ActionSuggestContext proposes sharing missing context.
	ActionSuggestContext Action = "suggest_context"

	// ActionNudgeResponse nudges for an answer to an open question.
	ActionNudgeResponse Action = "nudge_response"

	// ActionFlagGap surfaces a high-severity communication gap.
	ActionFlagGap Action = "flag_gap"
)

// Validate checks if the Action is a valid enum value.
func (a Action) Validate() error {
	switch a {
	case ActionPromptOwnership, ActionSuggestContext, ActionNudgeResponse, ActionFlagGap:
		return nil
	default:
		return fmt.Errorf("unknown action: %q", a)
	}
}

// Priority ranks a coordination decision.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// GapType classifies a detected communication gap.
type GapType string

const (
	// GapOwnership marks a question left without an owner.
	GapOwnership GapType = "ownership"

	// GapContext marks the same context repeated without an answer.
	GapContext GapType = "context"

	// GapResponse marks a delayed response.
	GapResponse GapType = "response"

	// GapResolution marks a stalled resolution.
	GapResolution GapType = "resolution"
)

// Validate checks if the GapType is a valid enum value.
func (gt GapType) Validate() error {
	switch gt {
	case GapOwnership, GapContext, GapResponse, GapResolution:
		return nil
	default:
		return fmt.Errorf("unknown gap type: %q", gt)
	}
}

// CanonicalEvent is the normalized form of one accepted webhook payload.
// Immutable once created; produced only by the ingestion parser. MessageTS is
// the platform-native message timestamp and doubles as the dedup key for
// redelivered payloads.
type CanonicalEvent struct {
	EventType   EventType `json:"event_type"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id,omitempty"`
	Text        string    `json:"text"`
	ThreadID    string    `json:"thread_id,omitempty"`
	MessageTS   string    `json:"message_ts"`
	EventTS     string    `json:"event_ts"`
}

// ConversationKey returns the identity string this event's conversation is
// keyed by. Events sharing a key must be processed in arrival order.
func (e *CanonicalEvent) ConversationKey() string {
	return e.ChannelID + "|" + e.ThreadID
}

// Validate checks if the CanonicalEvent has valid field values.
func (e *CanonicalEvent) Validate() error {
	if err := e.EventType.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	return nil
}

// BehavioralSignal is the structured interpretation of one message, produced
// by a signal extraction port. Uncertainty is always 1 - Confidence.
type BehavioralSignal struct {
	Intent        Intent   `json:"intent"`
	Topic         string   `json:"topic"`
	NeedsOwner    bool     `json:"needs_owner"`
	Confidence    float64  `json:"confidence"`
	Uncertainty   float64  `json:"uncertainty"`
	Entities      []string `json:"entities"`
	ImpliedAction string   `json:"implied_action,omitempty"`
}

// Validate checks if the BehavioralSignal has valid field values.
func (s *BehavioralSignal) Validate() error {
	if err := s.Intent.Validate(); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", s.Confidence)
	}
	return nil
}

// Conversation is the unit of coordination tracking, scoped to one
// (workspace, channel, thread) triple. At most one CurrentState holds at any
// instant; StateTimestamps records the most recent entry time per state and
// only advances forward in time.
type Conversation struct {
	ID              string              `json:"id"`
	WorkspaceID     string              `json:"workspace_id"`
	ChannelID       string              `json:"channel_id"`
	ThreadID        string              `json:"thread_id,omitempty"`
	CurrentState    State               `json:"current_state"`
	FirstMessageAt  time.Time           `json:"first_message_at"`
	LastActivityAt  time.Time           `json:"last_activity_at"`
	StateTimestamps map[State]time.Time `json:"state_timestamps"`
}

// Validate checks if the Conversation has valid field values.
func (c *Conversation) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid conversation ID: not a valid UUID")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("channel ID cannot be empty")
	}
	if err := c.CurrentState.Validate(); err != nil {
		return fmt.Errorf("invalid current state: %w", err)
	}
	return nil
}

// Message is one stored message within a conversation, annotated with the
// extracted signal fields used by the gap detector's similarity pass.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Text           string    `json:"text"`
	MessageTS      string    `json:"message_ts"`
	Timestamp      time.Time `json:"timestamp"`
	Intent         Intent    `json:"intent,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	NeedsOwner     bool      `json:"needs_owner"`
}

// StateTransition is the immutable record of one successful lifecycle
// transition. Created exclusively by Machine.TransitionTo; never mutated.
type StateTransition struct {
	ID        string            `json:"id"`
	From      State             `json:"from"`
	To        State             `json:"to"`
	Trigger   string            `json:"trigger"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CoordinationDecision is the decision engine's proposed intervention. At
// most one decision is produced per evaluation; the absence of a decision is
// a valid and common result, not an error.
type CoordinationDecision struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Action         Action            `json:"action"`
	Reason         string            `json:"reason"`
	Priority       Priority          `json:"priority"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DecidedAt      time.Time         `json:"decided_at"`
}

// Validate checks if the CoordinationDecision has valid field values.
func (d *CoordinationDecision) Validate() error {
	if err := d.Action.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}
	if err := d.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}
	return nil
}

// CommunicationGap is a detected coordination failure pattern. Gaps are
// findings appended to storage, not mutations of conversation state.
type CommunicationGap struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	GapType        GapType   `json:"gap_type"`
	Severity       float64   `json:"severity"`
	Description    string    `json:"description"`
	DetectedAt     time.Time `json:"detected_at"`
	Resolved       bool      `json:"resolved"`
}

// Validate checks if the CommunicationGap has valid field values.
func (g *CommunicationGap) Validate() error {
	if err := g.GapType.Validate(); err != nil {
		return fmt.Errorf("invalid gap type: %w", err)
	}
	if g.Severity < 0 || g.Severity > 1 {
		return fmt.Errorf("severity out of range [0,1]: %v", g.Severity)
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
