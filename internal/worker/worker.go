package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure/metrics"
	"jan-server/services/support-chat-api/internal/infrastructure/observability"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

// Source yields inbound transport events. Every call opens one consumer;
// consumers of the same source compete for events.
type Source interface {
	Inbound(ctx context.Context) (<-chan livechat.InboundDelivery, error)
}

// Deliverer reconciles one inbound event.
type Deliverer interface {
	Deliver(ctx context.Context, env livechat.Envelope) (*livechat.Delivered, error)
}

// Worker consumes inbound events and hands them to the live adapter.
type Worker struct {
	id          int
	source      Source
	deliverer   Deliverer
	taskTimeout time.Duration
	log         zerolog.Logger
	stopChan    chan struct{}
}

// NewWorker creates a new inbound worker.
func NewWorker(id int, source Source, deliverer Deliverer, taskTimeout time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		id:          id,
		source:      source,
		deliverer:   deliverer,
		taskTimeout: taskTimeout,
		log:         log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:    make(chan struct{}),
	}
}

// Start processes events until the context is cancelled, Stop is called or
// the source is closed.
func (w *Worker) Start(ctx context.Context) {
	deliveries, err := w.source.Inbound(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("open inbound stream")
		return
	}
	w.log.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				w.log.Info().Msg("inbound stream closed")
				return
			}
			w.process(ctx, delivery)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// process acks everything that must not come back: stored events,
// duplicates and malformed events. Transient failures are nacked for
// redelivery, which de-duplication makes safe.
func (w *Worker) process(ctx context.Context, delivery livechat.InboundDelivery) {
	ctx, span := observability.StartInboundSpan(ctx, w.id, delivery.Envelope.AnonymousClientID)
	defer span.End()

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	result, err := w.deliverer.Deliver(taskCtx, delivery.Envelope)
	switch {
	case err == nil:
		delivery.Ack()
		metrics.RecordInboundAck("ack")
		if result != nil && result.Duplicate {
			w.log.Debug().Msg("duplicate inbound event dropped")
		}
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation),
		platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
		delivery.Ack()
		metrics.RecordInboundAck("rejected")
		w.log.Warn().Err(err).Msg("inbound event rejected")
	default:
		observability.RecordError(span, err)
		delivery.Nack()
		metrics.RecordInboundAck("nack")
		w.log.Error().Err(err).Msg("inbound event failed, returned for redelivery")
	}
}
