package metrics

import (
	"strings"
	"time"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

// ReconcileObserver feeds reconciliation outcomes into Prometheus. It
// implements chat.Observer.
type ReconcileObserver struct{}

// NewReconcileObserver returns the Prometheus reconciliation observer.
func NewReconcileObserver() *ReconcileObserver {
	return &ReconcileObserver{}
}

// ObserveReconcile records one reconciliation call.
func (ReconcileObserver) ObserveReconcile(result *chat.Result, err error, elapsed time.Duration) {
	ReconcileDuration.Observe(elapsed.Seconds())
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			IdentityConflictsTotal.Inc()
		}
		ReconciliationsTotal.WithLabelValues("error").Inc()
		return
	}
	ReconciliationsTotal.WithLabelValues(string(result.Transition.Outcome)).Inc()
	if result.Transition.Outcome == chat.OutcomeMerged {
		MergesTotal.Inc()
		MergedMessagesTotal.Add(float64(result.MergedMessages))
	}
}

// TransportObserver feeds live transport counters into Prometheus. It
// implements livechat.Observer.
type TransportObserver struct {
	channelPrefix string
}

// NewTransportObserver returns the Prometheus transport observer.
func NewTransportObserver(channelPrefix string) *TransportObserver {
	return &TransportObserver{channelPrefix: channelPrefix}
}

// PublishFailed counts a failed live publish. Channels are per visitor, so
// only the channel family is used as a label.
func (o *TransportObserver) PublishFailed(channel string) {
	kind := "other"
	if o.channelPrefix != "" && strings.HasPrefix(channel, o.channelPrefix) {
		kind = "conversation"
	}
	PublishFailuresTotal.WithLabelValues(kind).Inc()
}

// DuplicateDropped counts a de-duplicated inbound event.
func (o *TransportObserver) DuplicateDropped() {
	DuplicatesDroppedTotal.Inc()
}

// Delivered counts an inbound event by outcome.
func (o *TransportObserver) Delivered(outcome string) {
	RecordInbound(outcome)
}
