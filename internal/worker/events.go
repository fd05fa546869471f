package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/messaging"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

// EventAuditWorker records every patient change event published by the
// workstations. Only the event type and patient id are logged.
type EventAuditWorker struct {
	broker  messaging.Broker
	channel string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewEventAuditWorker(broker messaging.Broker, channel string, log *logger.Logger, m *metrics.Metrics) *EventAuditWorker {
	return &EventAuditWorker{
		broker:  broker,
		channel: channel,
		logger:  log.With("event-audit-worker"),
		metrics: m,
	}
}

// Start blocks until ctx is done or the subscription ends.
func (w *EventAuditWorker) Start(ctx context.Context) error {
	messages, err := w.broker.Subscribe(ctx, w.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.channel, err)
	}

	w.logger.Info("Starting event audit worker", "channel", w.channel)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down event audit worker")
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(raw)
		}
	}
}

func (w *EventAuditWorker) handle(raw []byte) {
	var msg messaging.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.metrics.EventsConsumed.WithLabelValues("malformed").Inc()
		w.logger.Error(err, "Failed to decode patient event")
		return
	}

	var ref struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(msg.Payload, &ref)

	w.metrics.EventsConsumed.WithLabelValues(msg.Type).Inc()
	w.logger.Info("patient event",
		"event_type", msg.Type,
		"patient_id", ref.ID,
		"occurred_at", msg.OccurredAt)
}
