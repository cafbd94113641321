package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/internal/config"
	"github.com/dreyhq/drey/pkg/conversation"
)

// GapWriter persists detected gaps. Satisfied by *store.Store.
type GapWriter interface {
	AppendGap(ctx context.Context, gap *conversation.CommunicationGap) error
}

// Detector scans one conversation for communication gap patterns. Detection
// reads conversation history and appends findings; it never mutates
// conversation state.
type Detector struct {
	cfg           config.GapDetection
	ownershipWait time.Duration
	writer        GapWriter
	logger        *logrus.Entry
	now           func() time.Time
}

// NewDetector creates a gap detector. ownershipWait is how long a question
// may sit without an owner before an ownership gap opens. A nil nowFn
// defaults to time.Now.
func NewDetector(cfg config.GapDetection, ownershipWait time.Duration, writer GapWriter, logger *logrus.Entry, nowFn func() time.Time) *Detector {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Detector{
		cfg:           cfg,
		ownershipWait: ownershipWait,
		writer:        writer,
		logger:        logger,
		now:           nowFn,
	}
}

// Detect runs the gap checks against one conversation's history and persists
// every finding. Transitions and messages must be in chronological order.
// Returns the gaps detected in this pass.
func (d *Detector) Detect(ctx context.Context, conv *conversation.Conversation, transitions []conversation.StateTransition, messages []conversation.Message) ([]conversation.CommunicationGap, error) {
	now := d.now().UTC()
	var gaps []conversation.CommunicationGap

	if gap := d.detectOwnershipGap(conv, transitions, now); gap != nil {
		gaps = append(gaps, *gap)
	}
	if gap := d.detectContextGap(conv, messages, now); gap != nil {
		gaps = append(gaps, *gap)
	}

	for i := range gaps {
		if err := d.writer.AppendGap(ctx, &gaps[i]); err != nil {
			return nil, fmt.Errorf("failed to persist %s gap: %w", gaps[i].GapType, err)
		}
		d.logger.WithFields(logrus.Fields{
			"conversation_id": conv.ID,
			"gap_type":        gaps[i].GapType,
			"severity":        gaps[i].Severity,
		}).Info("Communication gap detected")
	}
	return gaps, nil
}

// detectOwnershipGap opens a gap when a question has sat past the ownership
// wait with nobody ever taking it. Severity ramps linearly and caps at 1.0
// once the ramp window has fully elapsed.
func (d *Detector) detectOwnershipGap(conv *conversation.Conversation, transitions []conversation.StateTransition, now time.Time) *conversation.CommunicationGap {
	if conv.CurrentState != conversation.StateQuestionRaised || len(transitions) == 0 {
		return nil
	}
	for _, t := range transitions {
		if t.To == conversation.StateOwnerAssigned {
			return nil
		}
	}

	stalled := now.Sub(transitions[len(transitions)-1].Timestamp)
	if stalled <= d.ownershipWait {
		return nil
	}

	severity := stalled.Hours() / float64(d.cfg.OwnershipRampHours)
	if severity > 1.0 {
		severity = 1.0
	}

	return &conversation.CommunicationGap{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		GapType:        conversation.GapOwnership,
		Severity:       severity,
		Description:    fmt.Sprintf("No owner assigned within %.0f+ hours", d.ownershipWait.Hours()),
		DetectedAt:     now,
	}
}

// detectContextGap opens a gap when the same question keeps being re-asked,
// which usually means the answerers are missing context. Questions count as
// repeats when their leading SimilarityPrefix characters match exactly.
func (d *Detector) detectContextGap(conv *conversation.Conversation, messages []conversation.Message, now time.Time) *conversation.CommunicationGap {
	window := messages
	if len(window) > d.cfg.SimilarityWindow {
		window = window[len(window)-d.cfg.SimilarityWindow:]
	}

	repeats := 0
	for i, first := range window {
		if first.Intent != conversation.IntentQuestion {
			continue
		}
		for _, second := range window[i+1:] {
			if second.Intent != conversation.IntentQuestion {
				continue
			}
			if prefix(first.Text, d.cfg.SimilarityPrefix) == prefix(second.Text, d.cfg.SimilarityPrefix) {
				repeats++
			}
		}
	}

	if repeats < 2 {
		return nil
	}

	return &conversation.CommunicationGap{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		GapType:        conversation.GapContext,
		Severity:       d.cfg.ContextSeverity,
		Description:    fmt.Sprintf("Similar questions asked %d times", repeats+1),
		DetectedAt:     now,
	}
}

func prefix(text string, n int) string {
	if len(text) > n {
		return text[:n]
	}
	return text
}
