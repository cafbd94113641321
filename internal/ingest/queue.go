package ingest

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/internal/metrics"
	"github.com/dreyhq/drey/pkg/conversation"
)

// Handler processes one dequeued event. Handlers must be safe for concurrent
// use across partitions; events within one partition are delivered serially.
type Handler func(ctx context.Context, event conversation.CanonicalEvent)

// Queue is a partitioned, bounded in-process queue. Events for the same
// conversation always hash to the same partition, so per-conversation order
// is preserved while unrelated conversations process in parallel.
type Queue struct {
	partitions []chan conversation.CanonicalEvent
	metrics    *metrics.Metrics
	logger     *logrus.Entry

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue with the given partition count and per-partition
// depth.
func NewQueue(partitions, depth int, m *metrics.Metrics, logger *logrus.Entry) *Queue {
	chans := make([]chan conversation.CanonicalEvent, partitions)
	for i := range chans {
		chans[i] = make(chan conversation.CanonicalEvent, depth)
	}
	return &Queue{
		partitions: chans,
		metrics:    m,
		logger:     logger,
	}
}

// partition maps a conversation key to a partition index with FNV-32a.
func (q *Queue) partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % len(q.partitions)
}

// Enqueue places an event on its conversation's partition without blocking.
// Returns false if the partition is full or the queue has stopped accepting
// events; the caller decides how to surface the drop.
func (q *Queue) Enqueue(event conversation.CanonicalEvent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	p := q.partition(event.ConversationKey())
	select {
	case q.partitions[p] <- event:
		q.metrics.QueueDepth.WithLabelValues(strconv.Itoa(p)).Inc()
		return true
	default:
		q.metrics.QueueDropped.Inc()
		return false
	}
}

// Run starts one consumer goroutine per partition and blocks until the
// context is cancelled and every partition has drained to empty. Events
// already enqueued at shutdown are still processed; the handler runs with a
// context detached from cancellation so in-flight work can finish.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	processCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, ch := range q.partitions {
		wg.Add(1)
		go func(partition int, events <-chan conversation.CanonicalEvent) {
			defer wg.Done()
			for event := range events {
				q.metrics.QueueDepth.WithLabelValues(strconv.Itoa(partition)).Dec()
				handler(processCtx, event)
			}
		}(i, ch)
	}

	<-ctx.Done()
	q.logger.Info("Queue intake closed, draining partitions")

	q.mu.Lock()
	q.closed = true
	for _, ch := range q.partitions {
		close(ch)
	}
	q.mu.Unlock()

	wg.Wait()
	q.logger.Info("Queue drained")
}
