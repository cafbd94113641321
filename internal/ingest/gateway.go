package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/internal/metrics"
)

// ErrBadSignature is returned when a webhook payload fails signature
// verification or its timestamp is outside the replay window. The HTTP
// layer maps it to 401; it is never retried.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Ack is the gateway's response to one webhook delivery. Exactly one of the
// two shapes is meaningful: OK for event acknowledgments, Challenge for the
// platform's URL verification handshake.
type Ack struct {
	OK        bool
	Challenge string
}

// Deduper records platform event identities and reports first sight.
type Deduper interface {
	SeenEvent(ctx context.Context, channelID, messageTS string) (bool, error)
}

// Gateway is the webhook ingestion pipeline: verify, parse, dedup, enqueue.
// Nothing downstream of the queue runs on this path.
type Gateway struct {
	verifier *Verifier
	deduper  Deduper
	queue    *Queue
	metrics  *metrics.Metrics
	logger   *logrus.Entry
}

// NewGateway wires the ingestion pipeline together.
func NewGateway(verifier *Verifier, deduper Deduper, queue *Queue, m *metrics.Metrics, logger *logrus.Entry) *Gateway {
	return &Gateway{
		verifier: verifier,
		deduper:  deduper,
		queue:    queue,
		metrics:  m,
		logger:   logger,
	}
}

// HandleWebhook processes one webhook delivery. The signature is verified
// before anything else, including for url_verification handshakes; an
// unverified challenge is never echoed. Events the pipeline does not track
// and redelivered duplicates acknowledge OK without queueing anything.
func (g *Gateway) HandleWebhook(ctx context.Context, payload []byte, timestamp, signature string) (Ack, error) {
	if !g.verifier.Verify(timestamp, signature, payload) {
		g.metrics.EventsReceived.WithLabelValues("unauthorized").Inc()
		return Ack{}, ErrBadSignature
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// Authenticated but unparseable; acknowledge so the platform
		// does not redeliver a payload we can never use.
		g.logger.WithError(err).Warn("Discarding unparseable webhook payload")
		g.metrics.EventsReceived.WithLabelValues("dropped").Inc()
		return Ack{OK: true}, nil
	}

	if env.Type == "url_verification" {
		g.metrics.EventsReceived.WithLabelValues("challenge").Inc()
		return Ack{Challenge: env.Challenge}, nil
	}

	event := ParseEvent(env.Event)
	if event == nil {
		g.metrics.EventsReceived.WithLabelValues("dropped").Inc()
		return Ack{OK: true}, nil
	}
	event.WorkspaceID = env.TeamID

	first, err := g.deduper.SeenEvent(ctx, event.ChannelID, event.MessageTS)
	if err != nil {
		return Ack{}, err
	}
	if !first {
		g.logger.WithFields(logrus.Fields{
			"channel_id": event.ChannelID,
			"message_ts": event.MessageTS,
		}).Debug("Skipping redelivered event")
		g.metrics.EventsReceived.WithLabelValues("duplicate").Inc()
		return Ack{OK: true}, nil
	}

	if !g.queue.Enqueue(*event) {
		g.logger.WithFields(logrus.Fields{
			"channel_id": event.ChannelID,
			"message_ts": event.MessageTS,
		}).Error("Dropping event, queue partition full")
		g.metrics.EventsReceived.WithLabelValues("dropped").Inc()
		return Ack{OK: true}, nil
	}

	g.metrics.EventsReceived.WithLabelValues("accepted").Inc()
	return Ack{OK: true}, nil
}
