package ports

import (
	"context"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	contractsv1 "tranche/contracts/gen/events/v1"
)

// ScheduleRepository owns schedule persistence and id allocation. IDs are
// assigned sequentially starting at 1 with no reuse; 0 means "no schedule".
type ScheduleRepository interface {
	// CreateSchedule validates nothing; it assigns the next id and persists.
	CreateSchedule(ctx context.Context, schedule entities.Schedule) (uint64, error)
	GetSchedule(ctx context.Context, scheduleID uint64) (entities.Schedule, error)
	ListSchedules(ctx context.Context) ([]entities.Schedule, error)
	// UpdateSchedule persists the mutable fields (active flag, commitment root).
	UpdateSchedule(ctx context.Context, schedule entities.Schedule) error
}

// ClaimRepository owns per-recipient claim records. Records are upserted,
// never deleted.
type ClaimRepository interface {
	GetClaimRecord(ctx context.Context, recipient string) (entities.ClaimRecord, bool, error)
	SaveClaimRecord(ctx context.Context, record entities.ClaimRecord) error
	ListClaimRecords(ctx context.Context) ([]entities.ClaimRecord, error)
}

// TokenTransferrer is the value-transfer collaborator boundary. The engine
// calls it only after committing its own claim state and propagates its
// failures verbatim.
type TokenTransferrer interface {
	Transfer(ctx context.Context, recipient string, amount uint64) error
}

// Clock allows deterministic testing of time-dependent release math.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event/outbox identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter appends an event envelope to the module outbox.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
