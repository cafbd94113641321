package coordinator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/pkg/conversation"
)

// DecisionSink receives coordination decisions at the end of a processing
// pass. Sinks are notification plumbing; a sink failure is logged by the
// processor but never fails the pass.
type DecisionSink interface {
	Deliver(ctx context.Context, decision *conversation.CoordinationDecision) error
}

// LogSink writes decisions to the structured log. Always wired; in a
// minimal deployment it is the only sink.
type LogSink struct {
	logger *logrus.Entry
}

// NewLogSink creates a sink that logs each decision.
func NewLogSink(logger *logrus.Entry) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the decision. Never fails.
func (s *LogSink) Deliver(_ context.Context, decision *conversation.CoordinationDecision) error {
	s.logger.WithFields(logrus.Fields{
		"decision_id":     decision.ID,
		"conversation_id": decision.ConversationID,
		"action":          decision.Action,
		"priority":        decision.Priority,
		"reason":          decision.Reason,
	}).Info("Coordination decision")
	return nil
}

// DecisionPublisher persists and broadcasts decisions. Satisfied by
// *store.Store.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, decision *conversation.CoordinationDecision) error
}

// PublishSink appends decisions to the audit list and broadcasts them on the
// instance's decision events channel, feeding live watchers.
type PublishSink struct {
	publisher DecisionPublisher
}

// NewPublishSink creates a sink backed by the store's decision publisher.
func NewPublishSink(publisher DecisionPublisher) *PublishSink {
	return &PublishSink{publisher: publisher}
}

// Deliver persists and publishes the decision.
func (s *PublishSink) Deliver(ctx context.Context, decision *conversation.CoordinationDecision) error {
	return s.publisher.PublishDecision(ctx, decision)
}
