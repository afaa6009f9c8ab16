package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

// ReconcileInstrumenter records reconciliation outcomes on the OpenTelemetry
// meter so they reach the OTLP exporter. It implements chat.Observer.
type ReconcileInstrumenter struct {
	reconciliations metric.Int64Counter
	merges          metric.Int64Counter
	mergedMessages  metric.Int64Counter
	duration        metric.Float64Histogram
}

// NewReconcileInstrumenter creates the instruments on meter, or on the global
// meter provider when meter is nil.
func NewReconcileInstrumenter(meter metric.Meter) (*ReconcileInstrumenter, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(tracerName)
	}

	reconciliations, err := meter.Int64Counter(
		"jan_support_chat_reconciliations",
		metric.WithDescription("Reconciliation calls by outcome"),
	)
	if err != nil {
		return nil, err
	}
	merges, err := meter.Int64Counter(
		"jan_support_chat_merges",
		metric.WithDescription("Conversations merged into an account conversation"),
	)
	if err != nil {
		return nil, err
	}
	mergedMessages, err := meter.Int64Counter(
		"jan_support_chat_merged_messages",
		metric.WithDescription("Messages moved by merges"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"jan_support_chat_reconcile_duration_seconds",
		metric.WithDescription("Reconciliation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ReconcileInstrumenter{
		reconciliations: reconciliations,
		merges:          merges,
		mergedMessages:  mergedMessages,
		duration:        duration,
	}, nil
}

// ObserveReconcile records one reconciliation call.
func (r *ReconcileInstrumenter) ObserveReconcile(result *chat.Result, err error, elapsed time.Duration) {
	ctx := context.Background()
	outcome := "error"
	if err == nil && result != nil {
		outcome = string(result.Transition.Outcome)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	r.duration.Record(ctx, elapsed.Seconds(), attrs)
	r.reconciliations.Add(ctx, 1, attrs)
	if err == nil && result != nil && result.Transition.Outcome == chat.OutcomeMerged {
		r.merges.Add(ctx, 1)
		r.mergedMessages.Add(ctx, int64(result.MergedMessages))
	}
}
