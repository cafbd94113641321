package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/internal/metrics"
	"github.com/dreyhq/drey/internal/signal"
	"github.com/dreyhq/drey/internal/store"
	"github.com/dreyhq/drey/pkg/conversation"
)

// contextWindow is how many trailing messages are handed to the analyzer and
// the gap detector's similarity pass.
const contextWindow = 10

// Processor runs one dequeued canonical event through the full coordination
// unit of work: conversation lookup, signal extraction, message persistence,
// state transition, decision evaluation, and gap detection.
//
// The queue guarantees per-conversation serial delivery, so a processor pass
// never races another pass for the same conversation.
type Processor struct {
	store             *store.Store
	analyzer          signal.Analyzer
	engine            *Engine
	detector          *Detector
	sinks             []DecisionSink
	metrics           *metrics.Metrics
	logger            *logrus.Entry
	extractionTimeout time.Duration
	now               func() time.Time
}

// NewProcessor wires a processing worker. A nil nowFn defaults to time.Now.
func NewProcessor(st *store.Store, analyzer signal.Analyzer, engine *Engine, detector *Detector, sinks []DecisionSink, m *metrics.Metrics, logger *logrus.Entry, extractionTimeout time.Duration, nowFn func() time.Time) *Processor {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Processor{
		store:             st,
		analyzer:          analyzer,
		engine:            engine,
		detector:          detector,
		sinks:             sinks,
		metrics:           m,
		logger:            logger,
		extractionTimeout: extractionTimeout,
		now:               nowFn,
	}
}

// Process is the queue handler. Failures are terminal for the event: logged
// with full context, counted, and dropped. There is no retry path.
func (p *Processor) Process(ctx context.Context, event conversation.CanonicalEvent) {
	start := p.now()
	err := p.process(ctx, event)
	p.metrics.ProcessingDuration.Observe(p.now().Sub(start).Seconds())

	if err != nil {
		p.metrics.EventsProcessed.WithLabelValues("failed").Inc()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"channel_id": event.ChannelID,
			"thread_id":  event.ThreadID,
			"message_ts": event.MessageTS,
		}).Error("Dropping event after processing failure")
		return
	}
	p.metrics.EventsProcessed.WithLabelValues("ok").Inc()
}

func (p *Processor) process(ctx context.Context, event conversation.CanonicalEvent) error {
	now := p.now().UTC()

	conv, created, err := p.store.GetOrCreateConversation(ctx, event.WorkspaceID, event.ChannelID, event.ThreadID, now)
	if err != nil {
		return fmt.Errorf("conversation lookup failed: %w", err)
	}
	if created {
		p.logger.WithFields(logrus.Fields{
			"conversation_id": conv.ID,
			"channel_id":      conv.ChannelID,
		}).Debug("Tracking new conversation")
	}
	sinceActivity := now.Sub(conv.LastActivityAt)

	recent, err := p.store.RecentMessages(ctx, conv.ID, contextWindow)
	if err != nil {
		return fmt.Errorf("recent message fetch failed: %w", err)
	}
	recentTexts := make([]string, len(recent))
	for i, msg := range recent {
		recentTexts[i] = msg.Text
	}

	sig := p.extractSignal(ctx, event.Text, recentTexts)

	msg := &conversation.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		UserID:         event.UserID,
		Text:           event.Text,
		MessageTS:      event.MessageTS,
		Timestamp:      messageTime(event.MessageTS, now),
		Intent:         sig.Intent,
		Topic:          sig.Topic,
		NeedsOwner:     sig.NeedsOwner,
	}
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("message persist failed: %w", err)
	}

	machine := conversation.NewMachineFrom(conv.CurrentState, conv.StateTimestamps, nil, p.now)
	target := targetState(sig)
	trigger := "message:" + string(sig.Intent)

	if target != machine.Current() {
		if transition := machine.TransitionTo(target, trigger, map[string]string{
			"user_id":    event.UserID,
			"message_ts": event.MessageTS,
		}); transition != nil {
			if err := p.store.AppendTransition(ctx, conv.ID, transition); err != nil {
				return fmt.Errorf("transition persist failed: %w", err)
			}
			p.metrics.Transitions.WithLabelValues(string(transition.To)).Inc()
		} else {
			p.logger.WithFields(logrus.Fields{
				"conversation_id": conv.ID,
				"from":            machine.Current(),
				"to":              target,
				"trigger":         trigger,
			}).Debug("Skipping illegal transition proposal")
		}
	}

	conv.CurrentState = machine.Current()
	conv.StateTimestamps = machine.StateTimestamps()
	conv.LastActivityAt = now
	if err := p.store.UpdateConversationState(ctx, conv); err != nil {
		return fmt.Errorf("conversation update failed: %w", err)
	}

	transitions, err := p.store.Transitions(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("transition history fetch failed: %w", err)
	}
	severities, err := p.store.UnresolvedGapSeverities(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("gap severity fetch failed: %w", err)
	}

	decision := p.engine.Evaluate(EvalInput{
		ConversationID:     conv.ID,
		State:              machine.Current(),
		TimeInState:        machine.TimeInState(""),
		SinceActivity:      sinceActivity,
		Signal:             sig,
		ClarificationCount: clarificationCount(transitions),
		GapSeverities:      severities,
	})

	messages, err := p.store.RecentMessages(ctx, conv.ID, contextWindow)
	if err != nil {
		return fmt.Errorf("gap scan message fetch failed: %w", err)
	}
	gaps, err := p.detector.Detect(ctx, conv, transitions, messages)
	if err != nil {
		return fmt.Errorf("gap detection failed: %w", err)
	}
	for _, gap := range gaps {
		p.metrics.Gaps.WithLabelValues(string(gap.GapType)).Inc()
	}

	if decision != nil {
		p.metrics.Decisions.WithLabelValues(string(decision.Action)).Inc()
		for _, sink := range p.sinks {
			if err := sink.Deliver(ctx, decision); err != nil {
				p.logger.WithError(err).WithField("decision_id", decision.ID).Warn("Decision sink delivery failed")
			}
		}
	}

	return nil
}

// extractSignal runs the analyzer under the extraction timeout. Any failure
// degrades to the default signal; the pipeline never stalls on extraction.
func (p *Processor) extractSignal(ctx context.Context, text string, recentContext []string) conversation.BehavioralSignal {
	extractCtx, cancel := context.WithTimeout(ctx, p.extractionTimeout)
	defer cancel()

	sig, err := p.analyzer.Analyze(extractCtx, text, recentContext)
	if err != nil {
		p.metrics.ExtractionFailures.Inc()
		p.logger.WithError(err).Warn("Signal extraction failed, using default signal")
		return signal.DefaultSignal()
	}
	if err := sig.Validate(); err != nil {
		p.metrics.ExtractionFailures.Inc()
		p.logger.WithError(err).Warn("Analyzer returned invalid signal, using default signal")
		return signal.DefaultSignal()
	}
	return sig
}

// targetState derives the state a signal proposes for the conversation. The
// proposal still has to pass the machine's legality check.
func targetState(sig conversation.BehavioralSignal) conversation.State {
	switch sig.Intent {
	case conversation.IntentQuestion:
		if sig.NeedsOwner {
			return conversation.StateQuestionRaised
		}
		return conversation.StateClarifying
	case conversation.IntentResolution:
		return conversation.StateResolved
	case conversation.IntentBugReport:
		return conversation.StateInProgress
	default:
		return conversation.StateIdle
	}
}

// clarificationCount counts entries into the clarifying state across the
// conversation's transition history.
func clarificationCount(transitions []conversation.StateTransition) int {
	count := 0
	for _, t := range transitions {
		if t.To == conversation.StateClarifying {
			count++
		}
	}
	return count
}

// messageTime converts a platform epoch timestamp ("1718000000.000100") to a
// time.Time, falling back to the processing time when unparseable.
func messageTime(messageTS string, fallback time.Time) time.Time {
	ts, err := strconv.ParseFloat(messageTS, 64)
	if err != nil {
		return fallback
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
