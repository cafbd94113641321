package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreyhq/drey/pkg/conversation"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Conversations are stored as hashes so individual fields (current_state,
// last_activity_at) stay queryable. Complex fields like the per-state entry
// timestamps are JSON-encoded into a single hash field. Messages,
// transitions, gaps and decisions live in lists of JSON blobs - they are
// append-only and always read back whole.

const timeLayout = time.RFC3339Nano

// ConversationToHash converts a Conversation to Redis hash format.
func ConversationToHash(c *conversation.Conversation) (map[string]interface{}, error) {
	stateTimestamps := make(map[string]string, len(c.StateTimestamps))
	for state, entered := range c.StateTimestamps {
		stateTimestamps[string(state)] = entered.UTC().Format(timeLayout)
	}
	stateTimestampsJSON, err := json.Marshal(stateTimestamps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state_timestamps: %w", err)
	}

	hash := map[string]interface{}{
		"id":               c.ID,
		"workspace_id":     c.WorkspaceID,
		"channel_id":       c.ChannelID,
		"thread_id":        c.ThreadID,
		"current_state":    string(c.CurrentState),
		"first_message_at": c.FirstMessageAt.UTC().Format(timeLayout),
		"last_activity_at": c.LastActivityAt.UTC().Format(timeLayout),
		"state_timestamps": string(stateTimestampsJSON),
	}
	return hash, nil
}

// HashToConversation converts a Redis hash back to a Conversation.
func HashToConversation(hash map[string]string) (*conversation.Conversation, error) {
	firstMessageAt, err := parseTime(hash["first_message_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid first_message_at: %w", err)
	}
	lastActivityAt, err := parseTime(hash["last_activity_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid last_activity_at: %w", err)
	}

	stateTimestamps := make(map[conversation.State]time.Time)
	if raw := hash["state_timestamps"]; raw != "" {
		var decoded map[string]string
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state_timestamps: %w", err)
		}
		for state, entered := range decoded {
			t, err := parseTime(entered)
			if err != nil {
				return nil, fmt.Errorf("invalid state timestamp for %s: %w", state, err)
			}
			stateTimestamps[conversation.State(state)] = t
		}
	}

	return &conversation.Conversation{
		ID:              hash["id"],
		WorkspaceID:     hash["workspace_id"],
		ChannelID:       hash["channel_id"],
		ThreadID:        hash["thread_id"],
		CurrentState:    conversation.State(hash["current_state"]),
		FirstMessageAt:  firstMessageAt,
		LastActivityAt:  lastActivityAt,
		StateTimestamps: stateTimestamps,
	}, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, value)
}
