package ingest

import (
	"encoding/json"

	"github.com/dreyhq/drey/pkg/conversation"
)

// envelope is the outer webhook payload shape. Only the fields the gateway
// routes on are decoded.
type envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	TeamID    string          `json:"team_id"`
	Event     json.RawMessage `json:"event"`
}

// innerEvent is the platform's event object inside an event_callback
// envelope.
type innerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	BotID    string `json:"bot_id"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
	TS       string `json:"ts"`
	EventTS  string `json:"event_ts"`
}

// ParseEvent normalizes one raw inner event into a CanonicalEvent. Returns
// nil for anything the pipeline does not track: unknown event types, bot
// messages, and subtyped messages (edits, deletes, channel joins). A nil
// return is a deliberate drop, not an error.
//
// Missing channel or timestamp fields coerce to "" rather than failing; the
// platform owns the payload shape and a partial event is still attributable
// downstream.
func ParseEvent(raw []byte) *conversation.CanonicalEvent {
	var inner innerEvent
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil
	}

	var eventType conversation.EventType
	switch inner.Type {
	case "message":
		eventType = conversation.EventTypeMessage
	case "app_mention":
		eventType = conversation.EventTypeMention
	default:
		return nil
	}

	if inner.BotID != "" || inner.Subtype != "" {
		return nil
	}

	eventTS := inner.EventTS
	if eventTS == "" {
		eventTS = inner.TS
	}

	return &conversation.CanonicalEvent{
		EventType: eventType,
		ChannelID: inner.Channel,
		UserID:    inner.User,
		Text:      inner.Text,
		ThreadID:  inner.ThreadTS,
		MessageTS: inner.TS,
		EventTS:   eventTS,
	}
}
