package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexvault/lexvault/pkg/kafka"
	"github.com/lexvault/lexvault/pkg/metrics"
	"github.com/lexvault/lexvault/pkg/resilience"
)

// publishTimeout bounds a single broker write so a wedged broker cannot
// stall the drain loop indefinitely.
const publishTimeout = 5 * time.Second

// Publisher is the broker surface the emitter writes to.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type queued struct {
	pub   Publisher
	topic string
	event kafka.Event
}

// Emitter queues events in a bounded buffer and publishes them from a
// single background goroutine. Enqueueing never blocks: when the buffer
// is full the event is dropped and counted, because ingest latency is
// worth more than a corpus counter increment.
type Emitter struct {
	documents  Publisher
	invalidate Publisher
	docTopic   string
	invTopic   string
	queue      chan queued
	done       chan struct{}
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEmitter creates an Emitter over the two topic publishers. m may be
// nil in tests.
func NewEmitter(documents, invalidate Publisher, docTopic, invTopic string, bufferSize int, m *metrics.Metrics) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Emitter{
		documents:  documents,
		invalidate: invalidate,
		docTopic:   docTopic,
		invTopic:   invTopic,
		queue:      make(chan queued, bufferSize),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     slog.Default().With("component", "event-emitter"),
	}
}

// Start launches the drain loop. On context cancellation the remaining
// buffer is flushed with a fresh background context before returning.
func (e *Emitter) Start(ctx context.Context) {
	go func() {
		defer close(e.done)
		for {
			select {
			case <-ctx.Done():
				e.drainRemaining()
				return
			default:
			}
			select {
			case q, ok := <-e.queue:
				if !ok {
					return
				}
				e.publish(ctx, q)
			case <-ctx.Done():
				e.drainRemaining()
				return
			}
		}
	}()
	e.logger.Info("event emitter started", "buffer_size", cap(e.queue))
}

// DocumentIngested queues a document event, keyed by address so one
// document's events stay on one partition.
func (e *Emitter) DocumentIngested(ev DocumentIngested) {
	e.enqueue(e.documents, e.docTopic, kafka.Event{Key: ev.Address, Value: ev})
}

// CacheInvalidate queues an invalidation fan-out event.
func (e *Emitter) CacheInvalidate(ev CacheInvalidate) {
	e.enqueue(e.invalidate, e.invTopic, kafka.Event{Key: ev.Origin, Value: ev})
}

// Close stops accepting events, drains the queue, and waits for the
// drain loop to finish.
func (e *Emitter) Close() {
	close(e.queue)
	<-e.done
}

func (e *Emitter) enqueue(pub Publisher, topic string, event kafka.Event) {
	if pub == nil {
		return
	}
	select {
	case e.queue <- queued{pub: pub, topic: topic, event: event}:
	default:
		if e.metrics != nil {
			e.metrics.EventsDroppedTotal.WithLabelValues(topic).Inc()
		}
		e.logger.Warn("event dropped, buffer full", "topic", topic, "key", event.Key)
	}
}

func (e *Emitter) publish(ctx context.Context, q queued) {
	err := resilience.WithTimeout(ctx, publishTimeout, "kafka publish", func(ctx context.Context) error {
		return q.pub.Publish(ctx, q.event)
	})
	if err != nil {
		e.logger.Error("event publish failed", "topic", q.topic, "key", q.event.Key, "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.EventsEmittedTotal.WithLabelValues(q.topic).Inc()
	}
}

// drainRemaining flushes whatever is still queued after cancellation,
// batched per topic so shutdown needs at most one broker write each.
func (e *Emitter) drainRemaining() {
	var docs, invs []kafka.Event
loop:
	for {
		select {
		case q, ok := <-e.queue:
			if !ok {
				break loop
			}
			if q.pub == e.documents {
				docs = append(docs, q.event)
			} else {
				invs = append(invs, q.event)
			}
		default:
			break loop
		}
	}
	e.flushBatch(e.documents, e.docTopic, docs)
	e.flushBatch(e.invalidate, e.invTopic, invs)
}

func (e *Emitter) flushBatch(pub Publisher, topic string, batch []kafka.Event) {
	if pub == nil || len(batch) == 0 {
		return
	}
	err := resilience.WithTimeout(context.Background(), publishTimeout, "kafka flush", func(ctx context.Context) error {
		return pub.PublishBatch(ctx, batch)
	})
	if err != nil {
		e.logger.Error("shutdown flush failed", "topic", topic, "events", len(batch), "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.EventsEmittedTotal.WithLabelValues(topic).Add(float64(len(batch)))
	}
}
