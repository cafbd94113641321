package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreyhq/drey/internal/config"
	"github.com/dreyhq/drey/internal/logging"
	"github.com/dreyhq/drey/pkg/conversation"
)

// memGapWriter collects appended gaps in memory.
type memGapWriter struct {
	gaps []conversation.CommunicationGap
	err  error
}

func (w *memGapWriter) AppendGap(_ context.Context, gap *conversation.CommunicationGap) error {
	if w.err != nil {
		return w.err
	}
	w.gaps = append(w.gaps, *gap)
	return nil
}

func newTestDetector(t *testing.T, now time.Time) (*Detector, *memGapWriter) {
	t.Helper()
	cfg := &config.Config{Version: "1.0", SigningSecret: "secret"}
	require.NoError(t, cfg.Validate())

	writer := &memGapWriter{}
	logger := logging.WithComponent(logging.NewNop(), "gaps")
	detector := NewDetector(cfg.GapDetection, cfg.Thresholds.OwnershipTimeout(), writer, logger, func() time.Time { return now })
	return detector, writer
}

func questionConversation(state conversation.State) *conversation.Conversation {
	return &conversation.Conversation{
		ID:           uuid.New().String(),
		WorkspaceID:  "W1",
		ChannelID:    "C100",
		CurrentState: state,
	}
}

func transitionAt(to conversation.State, at time.Time) conversation.StateTransition {
	return conversation.StateTransition{
		ID:        uuid.New().String(),
		From:      conversation.StateIdle,
		To:        to,
		Trigger:   "message:question",
		Timestamp: at,
	}
}

func questionMessage(convID, text string) conversation.Message {
	return conversation.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Text:           text,
		Intent:         conversation.IntentQuestion,
	}
}

func TestDetectOwnershipGap(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("opens after the ownership wait", func(t *testing.T) {
		detector, writer := newTestDetector(t, now)
		conv := questionConversation(conversation.StateQuestionRaised)
		transitions := []conversation.StateTransition{
			transitionAt(conversation.StateQuestionRaised, now.Add(-30*time.Hour)),
		}

		gaps, err := detector.Detect(ctx, conv, transitions, nil)
		require.NoError(t, err)
		require.Len(t, gaps, 1)
		assert.Equal(t, conversation.GapOwnership, gaps[0].GapType)
		assert.InDelta(t, 30.0/72.0, gaps[0].Severity, 1e-9)
		assert.Equal(t, "No owner assigned within 24+ hours", gaps[0].Description)
		assert.Equal(t, conv.ID, gaps[0].ConversationID)
		assert.False(t, gaps[0].Resolved)
		assert.Len(t, writer.gaps, 1)
	})

	t.Run("severity caps at 1.0", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateQuestionRaised)
		transitions := []conversation.StateTransition{
			transitionAt(conversation.StateQuestionRaised, now.Add(-200*time.Hour)),
		}

		gaps, err := detector.Detect(ctx, conv, transitions, nil)
		require.NoError(t, err)
		require.Len(t, gaps, 1)
		assert.Equal(t, 1.0, gaps[0].Severity)
	})

	t.Run("quiet inside the wait", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateQuestionRaised)
		transitions := []conversation.StateTransition{
			transitionAt(conversation.StateQuestionRaised, now.Add(-23*time.Hour)),
		}

		gaps, err := detector.Detect(ctx, conv, transitions, nil)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})

	t.Run("quiet once an owner was ever assigned", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateQuestionRaised)
		transitions := []conversation.StateTransition{
			transitionAt(conversation.StateOwnerAssigned, now.Add(-100*time.Hour)),
			transitionAt(conversation.StateQuestionRaised, now.Add(-30*time.Hour)),
		}

		gaps, err := detector.Detect(ctx, conv, transitions, nil)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})

	t.Run("quiet outside question_raised", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateInProgress)
		transitions := []conversation.StateTransition{
			transitionAt(conversation.StateInProgress, now.Add(-100*time.Hour)),
		}

		gaps, err := detector.Detect(ctx, conv, transitions, nil)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})

	t.Run("quiet with no transitions at all", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateQuestionRaised)

		gaps, err := detector.Detect(ctx, conv, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})
}

func TestDetectContextGap(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("opens on two repeated question pairs", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateClarifying)
		messages := []conversation.Message{
			questionMessage(conv.ID, "how do we rotate the signing key?"),
			questionMessage(conv.ID, "how do we rotate the signing key?"),
			questionMessage(conv.ID, "how do we rotate the signing key?"),
		}

		gaps, err := detector.Detect(ctx, conv, nil, messages)
		require.NoError(t, err)
		require.Len(t, gaps, 1)
		assert.Equal(t, conversation.GapContext, gaps[0].GapType)
		assert.Equal(t, 0.6, gaps[0].Severity)
		// Three identical questions form three matching pairs.
		assert.Equal(t, "Similar questions asked 4 times", gaps[0].Description)
	})

	t.Run("a single repeat is not enough", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateClarifying)
		messages := []conversation.Message{
			questionMessage(conv.ID, "how do we rotate the signing key?"),
			questionMessage(conv.ID, "how do we rotate the signing key?"),
		}

		gaps, err := detector.Detect(ctx, conv, nil, messages)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})

	t.Run("only the leading prefix is compared", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateClarifying)
		base := strings.Repeat("x", 100)
		messages := []conversation.Message{
			questionMessage(conv.ID, base+" first suffix"),
			questionMessage(conv.ID, base+" second suffix"),
			questionMessage(conv.ID, base+" third suffix"),
		}

		gaps, err := detector.Detect(ctx, conv, nil, messages)
		require.NoError(t, err)
		require.Len(t, gaps, 1)
		assert.Equal(t, conversation.GapContext, gaps[0].GapType)
	})

	t.Run("non-question repeats do not count", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateClarifying)
		messages := make([]conversation.Message, 3)
		for i := range messages {
			messages[i] = conversation.Message{
				ID:             uuid.New().String(),
				ConversationID: conv.ID,
				Text:           "still looking into it",
				Intent:         conversation.IntentUpdate,
			}
		}

		gaps, err := detector.Detect(ctx, conv, nil, messages)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})

	t.Run("scan is bounded to the similarity window", func(t *testing.T) {
		detector, _ := newTestDetector(t, now)
		conv := questionConversation(conversation.StateClarifying)

		// Repeats fall outside the 10-message window; recent traffic is
		// all distinct.
		messages := []conversation.Message{
			questionMessage(conv.ID, "same old question?"),
			questionMessage(conv.ID, "same old question?"),
			questionMessage(conv.ID, "same old question?"),
		}
		for i := 0; i < 10; i++ {
			messages = append(messages, questionMessage(conv.ID, strings.Repeat("q", i+1)+"?"))
		}

		gaps, err := detector.Detect(ctx, conv, nil, messages)
		require.NoError(t, err)
		assert.Empty(t, gaps)
	})
}

func TestDetectPersistFailure(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	detector, writer := newTestDetector(t, now)
	writer.err = assert.AnError

	conv := questionConversation(conversation.StateQuestionRaised)
	transitions := []conversation.StateTransition{
		transitionAt(conversation.StateQuestionRaised, now.Add(-30*time.Hour)),
	}

	_, err := detector.Detect(context.Background(), conv, transitions, nil)
	assert.Error(t, err)
}
