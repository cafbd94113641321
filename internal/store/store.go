// Package store is the Redis-backed persistence port for the coordination
// pipeline. It owns the durable side effects of event processing:
// conversation records, message history, the append-only transition audit,
// detected gaps, decision records, and webhook dedup keys.
//
// All keys and channels are namespaced by instance name (see schema.go). The
// store is thread-safe; per-conversation write ordering is the caller's
// responsibility and is guaranteed by the partitioned processing queue.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dreyhq/drey/pkg/conversation"
)

// seenTTL bounds how long webhook dedup keys are kept. Platform redelivery
// happens within minutes; a day is comfortably past it.
const seenTTL = 24 * time.Hour

// Store provides instance-scoped Redis operations for conversation state.
type Store struct {
	rdb      *redis.Client
	instance string
}

// New creates a store for the specified instance. All keys and channels are
// automatically namespaced with the instance name.
// Returns an error if instance is empty.
func New(redisOpts *redis.Options, instance string) (*Store, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Store{
		rdb:      redis.NewClient(redisOpts),
		instance: instance,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// GetOrCreateConversation looks up the conversation for a (workspace,
// channel, thread) triple, creating it in the idle state on first contact.
// The returned bool reports whether the conversation was created.
func (s *Store) GetOrCreateConversation(ctx context.Context, workspaceID, channelID, threadID string, now time.Time) (*conversation.Conversation, bool, error) {
	indexKey := ConversationIndexKey(s.instance, workspaceID, channelID, threadID)

	conversationID, err := s.rdb.Get(ctx, indexKey).Result()
	if err == nil {
		conv, err := s.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load indexed conversation %s: %w", conversationID, err)
		}
		return conv, false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("failed to read conversation index: %w", err)
	}

	conv := &conversation.Conversation{
		ID:              uuid.New().String(),
		WorkspaceID:     workspaceID,
		ChannelID:       channelID,
		ThreadID:        threadID,
		CurrentState:    conversation.StateIdle,
		FirstMessageAt:  now.UTC(),
		LastActivityAt:  now.UTC(),
		StateTimestamps: map[conversation.State]time.Time{},
	}
	if err := conv.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid conversation: %w", err)
	}

	hash, err := ConversationToHash(conv)
	if err != nil {
		return nil, false, fmt.Errorf("failed to serialize conversation: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, ConversationKey(s.instance, conv.ID), hash)
	pipe.Set(ctx, indexKey, conv.ID, 0)
	pipe.ZAdd(ctx, ActiveConversationsKey(s.instance), redis.Z{
		Score:  float64(now.UTC().UnixMilli()),
		Member: conv.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, true, nil
}

// GetConversation retrieves a conversation by ID.
// Returns (nil, redis.Nil) if the conversation doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*conversation.Conversation, error) {
	hash, err := s.rdb.HGetAll(ctx, ConversationKey(s.instance, conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation from Redis: %w", err)
	}
	// HGetAll returns an empty map for non-existent keys.
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	conv, err := HashToConversation(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize conversation: %w", err)
	}
	return conv, nil
}

// UpdateConversationState persists a conversation's current state, per-state
// entry timestamps, and last activity after a processing pass. The active
// ranking is refreshed as a side effect.
func (s *Store) UpdateConversationState(ctx context.Context, conv *conversation.Conversation) error {
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("invalid conversation: %w", err)
	}

	hash, err := ConversationToHash(conv)
	if err != nil {
		return fmt.Errorf("failed to serialize conversation: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, ConversationKey(s.instance, conv.ID), hash)
	pipe.ZAdd(ctx, ActiveConversationsKey(s.instance), redis.Z{
		Score:  float64(conv.LastActivityAt.UTC().UnixMilli()),
		Member: conv.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// AppendMessage appends a message to a conversation's history.
func (s *Store) AppendMessage(ctx context.Context, msg *conversation.Message) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("message conversation ID cannot be empty")
	}

	blob, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, MessagesKey(s.instance, msg.ConversationID), blob).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the conversation's most recent
// messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error) {
	blobs, err := s.rdb.LRange(ctx, MessagesKey(s.instance, conversationID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	messages := make([]conversation.Message, 0, len(blobs))
	for _, blob := range blobs {
		var msg conversation.Message
		if err := json.Unmarshal([]byte(blob), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// AppendTransition appends a state transition to the conversation's
// append-only audit list.
func (s *Store) AppendTransition(ctx context.Context, conversationID string, transition *conversation.StateTransition) error {
	blob, err := json.Marshal(transition)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	if err := s.rdb.RPush(ctx, TransitionsKey(s.instance, conversationID), blob).Err(); err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// Transitions returns the conversation's full transition history in order.
func (s *Store) Transitions(ctx context.Context, conversationID string) ([]conversation.StateTransition, error) {
	blobs, err := s.rdb.LRange(ctx, TransitionsKey(s.instance, conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}

	transitions := make([]conversation.StateTransition, 0, len(blobs))
	for _, blob := range blobs {
		var transition conversation.StateTransition
		if err := json.Unmarshal([]byte(blob), &transition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition: %w", err)
		}
		transitions = append(transitions, transition)
	}
	return transitions, nil
}

// AppendGap records a detected communication gap.
func (s *Store) AppendGap(ctx context.Context, gap *conversation.CommunicationGap) error {
	if err := gap.Validate(); err != nil {
		return fmt.Errorf("invalid gap: %w", err)
	}

	blob, err := json.Marshal(gap)
	if err != nil {
		return fmt.Errorf("failed to marshal gap: %w", err)
	}
	if err := s.rdb.RPush(ctx, GapsKey(s.instance, gap.ConversationID), blob).Err(); err != nil {
		return fmt.Errorf("failed to append gap: %w", err)
	}
	return nil
}

// Gaps returns all gaps recorded for a conversation.
func (s *Store) Gaps(ctx context.Context, conversationID string) ([]conversation.CommunicationGap, error) {
	blobs, err := s.rdb.LRange(ctx, GapsKey(s.instance, conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read gaps: %w", err)
	}

	gaps := make([]conversation.CommunicationGap, 0, len(blobs))
	for _, blob := range blobs {
		var gap conversation.CommunicationGap
		if err := json.Unmarshal([]byte(blob), &gap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gap: %w", err)
		}
		gaps = append(gaps, gap)
	}
	return gaps, nil
}

// UnresolvedGapSeverities returns the severities of the conversation's
// unresolved gaps, for the decision engine's flag_gap rule.
func (s *Store) UnresolvedGapSeverities(ctx context.Context, conversationID string) ([]float64, error) {
	gaps, err := s.Gaps(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	severities := make([]float64, 0, len(gaps))
	for _, gap := range gaps {
		if !gap.Resolved {
			severities = append(severities, gap.Severity)
		}
	}
	return severities, nil
}

// SeenEvent records a platform message timestamp and reports whether it was
// seen for the first time. Redelivered webhook payloads hit an existing key
// and must not be enqueued again.
func (s *Store) SeenEvent(ctx context.Context, channelID, messageTS string) (bool, error) {
	first, err := s.rdb.SetNX(ctx, SeenEventKey(s.instance, channelID, messageTS), "1", seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record seen event: %w", err)
	}
	return first, nil
}

// ActiveConversations returns up to limit conversations ordered by most
// recent activity.
func (s *Store) ActiveConversations(ctx context.Context, limit int) ([]conversation.Conversation, error) {
	ids, err := s.rdb.ZRevRange(ctx, ActiveConversationsKey(s.instance), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active conversations: %w", err)
	}

	conversations := make([]conversation.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}

// PublishDecision appends a decision to the conversation's audit list and
// publishes it on the decision events channel for live subscribers.
func (s *Store) PublishDecision(ctx context.Context, decision *conversation.CoordinationDecision) error {
	if err := decision.Validate(); err != nil {
		return fmt.Errorf("invalid decision: %w", err)
	}

	blob, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	if err := s.rdb.RPush(ctx, DecisionsKey(s.instance, decision.ConversationID), blob).Err(); err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	if err := s.rdb.Publish(ctx, DecisionEventsChannel(s.instance), blob).Err(); err != nil {
		return fmt.Errorf("failed to publish decision event: %w", err)
	}
	return nil
}

// DecisionSubscription represents an active Pub/Sub subscription to decision
// events. Caller must call Close() when done to clean up resources.
type DecisionSubscription struct {
	events <-chan *conversation.CoordinationDecision
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decision events. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *DecisionSubscription) Events() <-chan *conversation.CoordinationDecision {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal;
// the subscription continues and the offending message is skipped.
func (s *DecisionSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *DecisionSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeDecisions subscribes to coordination decision events for this
// instance. Events are delivered on a buffered channel (size 10); Redis
// Pub/Sub is at-most-once, so slow subscribers may miss events.
func (s *Store) SubscribeDecisions(ctx context.Context) (*DecisionSubscription, error) {
	pubsub := s.rdb.Subscribe(ctx, DecisionEventsChannel(s.instance))

	eventsChan := make(chan *conversation.CoordinationDecision, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var decision conversation.CoordinationDecision
				if err := json.Unmarshal([]byte(msg.Payload), &decision); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal decision event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &decision:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &DecisionSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
