package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/application"
	"tranche/contexts/token-distribution/vesting-engine/ports"
)

// OutboxRelay publishes committed claim events from the module outbox to
// the event bus. Each message's event type doubles as its topic.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("vesting outbox list pending failed",
			"event", "vesting_outbox_list_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("vesting outbox payload decode failed",
				"event", "vesting_outbox_decode_failed",
				"module", "token-distribution/vesting-engine",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, message.EventType, envelope); err != nil {
			logger.Error("vesting outbox publish failed",
				"event", "vesting_outbox_publish_failed",
				"module", "token-distribution/vesting-engine",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("vesting outbox mark published failed",
				"event", "vesting_outbox_mark_published_failed",
				"module", "token-distribution/vesting-engine",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("vesting outbox relay cycle completed",
			"event", "vesting_outbox_relay_completed",
			"module", "token-distribution/vesting-engine",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
