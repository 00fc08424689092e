package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"tranche/contexts/token-distribution/treasury-service/application"
	domainerrors "tranche/contexts/token-distribution/treasury-service/domain/errors"
	"tranche/contexts/token-distribution/treasury-service/ports"
)

const (
	vestingReleasedTopic            = "vesting.released"
	defaultReleaseConsumerGroupName = "treasury-service-release-cg"
)

// ReleaseConsumer ingests vesting.released envelopes and records the
// corresponding payout audit rows.
type ReleaseConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c ReleaseConsumer) Start(ctx context.Context) error {
	logger := resolveLogger(c.Logger)
	group := c.ConsumerGroup
	if group == "" {
		group = defaultReleaseConsumerGroupName
	}
	if err := c.Subscriber.Subscribe(ctx, vestingReleasedTopic, group, c.handle); err != nil {
		logger.Error("treasury release consumer subscribe failed",
			"event", "treasury_release_consumer_subscribe_failed",
			"module", "token-distribution/treasury-service",
			"layer", "worker",
			"topic", vestingReleasedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("treasury release consumer subscribed",
		"event", "treasury_release_consumer_subscribed",
		"module", "token-distribution/treasury-service",
		"layer", "worker",
		"topic", vestingReleasedTopic,
		"consumer_group", group,
	)
	return nil
}

func (c ReleaseConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := resolveLogger(c.Logger)
	var payload application.ReleasedEvent
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("treasury release event decode failed",
			"event", "treasury_release_decode_failed",
			"module", "token-distribution/treasury-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if payload.Recipient == "" || payload.Amount == 0 {
		logger.Warn("treasury release payload invalid",
			"event", "treasury_release_payload_invalid",
			"module", "token-distribution/treasury-service",
			"layer", "worker",
			"event_id", event.EventID,
			"has_recipient", payload.Recipient != "",
			"amount", payload.Amount,
		)
		return domainerrors.ErrInvalidTransfer
	}

	// Payout rows key on the event ID, so redelivered envelopes land on
	// the same row and the handler stays idempotent.
	if err := c.Service.RecordRelease(ctx, event.EventID, payload); err != nil {
		logger.Error("treasury payout recording failed",
			"event", "treasury_payout_recording_failed",
			"module", "token-distribution/treasury-service",
			"layer", "worker",
			"event_id", event.EventID,
			"recipient", payload.Recipient,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
