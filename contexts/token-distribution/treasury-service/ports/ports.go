package ports

import (
	"context"
	"time"

	contractsv1 "tranche/contracts/gen/events/v1"
)

type Account struct {
	Address   string
	Balance   uint64
	UpdatedAt time.Time
}

type Allowance struct {
	Owner     string
	Spender   string
	Remaining uint64
	UpdatedAt time.Time
}

// Payout is the audit record the treasury keeps for every released
// vesting tranche it observes or executes.
type Payout struct {
	PayoutID      string
	Recipient     string
	ScheduleID    uint64
	Amount        uint64
	SourceEventID string
	RecordedAt    time.Time
}

type Repository interface {
	GetAccount(ctx context.Context, address string) (Account, bool, error)
	SaveAccount(ctx context.Context, account Account) error
	GetAllowance(ctx context.Context, owner string, spender string) (Allowance, bool, error)
	SaveAllowance(ctx context.Context, allowance Allowance) error
	RecordPayout(ctx context.Context, payout Payout) error
	ListPayoutsByRecipient(ctx context.Context, recipient string, limit int, offset int) ([]Payout, error)
}

type Clock interface {
	Now() time.Time
}

type EventEnvelope = contractsv1.Envelope

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		groupID string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
