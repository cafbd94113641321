package store

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// multiple Drey instances can safely coexist on a single Redis server.
//
// Key pattern: drey:{instance}:{entity}:{id}
// Channel pattern: drey:{instance}:{event_type}_events

// ConversationKey returns the Redis key for a conversation hash.
// Pattern: drey:{instance}:conversation:{conversation_id}
func ConversationKey(instance, conversationID string) string {
	return fmt.Sprintf("drey:%s:conversation:%s", instance, conversationID)
}

// ConversationIndexKey returns the key mapping a (workspace, channel, thread)
// triple to its conversation ID. The thread component is empty for top-level
// channel conversations.
// Pattern: drey:{instance}:conversation_by_key:{workspace}:{channel}:{thread}
func ConversationIndexKey(instance, workspaceID, channelID, threadID string) string {
	return fmt.Sprintf("drey:%s:conversation_by_key:%s:%s:%s", instance, workspaceID, channelID, threadID)
}

// MessagesKey returns the Redis key for a conversation's message list.
// Pattern: drey:{instance}:messages:{conversation_id}
func MessagesKey(instance, conversationID string) string {
	return fmt.Sprintf("drey:%s:messages:%s", instance, conversationID)
}

// TransitionsKey returns the Redis key for a conversation's append-only
// transition list.
// Pattern: drey:{instance}:transitions:{conversation_id}
func TransitionsKey(instance, conversationID string) string {
	return fmt.Sprintf("drey:%s:transitions:%s", instance, conversationID)
}

// GapsKey returns the Redis key for a conversation's detected gap list.
// Pattern: drey:{instance}:gaps:{conversation_id}
func GapsKey(instance, conversationID string) string {
	return fmt.Sprintf("drey:%s:gaps:%s", instance, conversationID)
}

// DecisionsKey returns the Redis key for a conversation's decision audit list.
// Pattern: drey:{instance}:decisions:{conversation_id}
func DecisionsKey(instance, conversationID string) string {
	return fmt.Sprintf("drey:%s:decisions:%s", instance, conversationID)
}

// SeenEventKey returns the dedup key for one platform message timestamp.
// Pattern: drey:{instance}:seen:{channel}:{message_ts}
func SeenEventKey(instance, channelID, messageTS string) string {
	return fmt.Sprintf("drey:%s:seen:%s:%s", instance, channelID, messageTS)
}

// ActiveConversationsKey returns the key of the ZSET ranking conversations by
// last activity.
// Pattern: drey:{instance}:active
func ActiveConversationsKey(instance string) string {
	return fmt.Sprintf("drey:%s:active", instance)
}

// DecisionEventsChannel returns the Pub/Sub channel name for coordination
// decision events. The drey watch command subscribes here.
// Pattern: drey:{instance}:decision_events
func DecisionEventsChannel(instance string) string {
	return fmt.Sprintf("drey:%s:decision_events", instance)
}
