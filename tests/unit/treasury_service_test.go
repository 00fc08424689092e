package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	treasuryservice "tranche/contexts/token-distribution/treasury-service"
	"tranche/contexts/token-distribution/treasury-service/application"
	"tranche/contexts/token-distribution/treasury-service/application/workers"
	domainerrors "tranche/contexts/token-distribution/treasury-service/domain/errors"
	httptransport "tranche/contexts/token-distribution/treasury-service/transport/http"
	contractsv1 "tranche/contracts/gen/events/v1"
	"tranche/internal/platform/messaging"
)

func TestTreasuryPoolPaysVestingReleases(t *testing.T) {
	module := treasuryservice.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.DepositHandler(ctx, httptransport.DepositRequest{
		Account: treasuryservice.PoolAddress,
		Amount:  10000,
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := module.Handler.ApproveHandler(ctx, httptransport.ApproveRequest{
		Owner:   treasuryservice.PoolAddress,
		Spender: treasuryservice.VestingSpender,
		Amount:  5000,
	}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	transferrer := treasuryservice.PoolTransferrer{Service: module.Service}
	if err := transferrer.Transfer(ctx, "wallet-a", 1500); err != nil {
		t.Fatalf("pool transfer failed: %v", err)
	}

	pool, err := module.Handler.GetBalanceHandler(ctx, treasuryservice.PoolAddress)
	if err != nil {
		t.Fatalf("pool balance failed: %v", err)
	}
	if pool.Balance != 8500 {
		t.Fatalf("expected pool balance 8500, got %d", pool.Balance)
	}
	recipient, err := module.Handler.GetBalanceHandler(ctx, "wallet-a")
	if err != nil {
		t.Fatalf("recipient balance failed: %v", err)
	}
	if recipient.Balance != 1500 {
		t.Fatalf("expected recipient balance 1500, got %d", recipient.Balance)
	}
	allowance, err := module.Handler.GetAllowanceHandler(ctx, treasuryservice.PoolAddress, treasuryservice.VestingSpender)
	if err != nil {
		t.Fatalf("allowance failed: %v", err)
	}
	if allowance.Remaining != 3500 {
		t.Fatalf("expected allowance remainder 3500, got %d", allowance.Remaining)
	}

	// The pool approval is consumed, never overdrawn.
	if err := transferrer.Transfer(ctx, "wallet-a", 4000); !errors.Is(err, domainerrors.ErrInsufficientAuthorization) {
		t.Fatalf("expected ErrInsufficientAuthorization, got %v", err)
	}
}

func TestReleaseConsumerRecordsPayoutsFromBus(t *testing.T) {
	module := treasuryservice.NewInMemoryModule(nil)
	bus, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("bus init failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := workers.ReleaseConsumer{
		Subscriber: bus,
		Service:    module.Service,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}

	payload, err := json.Marshal(application.ReleasedEvent{
		Recipient:    "wallet-a",
		ScheduleID:   1,
		Amount:       700,
		ClaimedTotal: 700,
	})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	envelope := contractsv1.Envelope{
		EventID:       "evt-release-1",
		EventType:     "vesting.released",
		OccurredAt:    time.Now().UTC(),
		SourceService: "vesting-engine",
		SchemaVersion: 1,
		PartitionKey:  "wallet-a",
		Data:          payload,
	}

	// Redelivery must collapse onto the same payout row.
	for i := 0; i < 2; i++ {
		if err := bus.Publish(ctx, "vesting.released", envelope); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		payouts, err := module.Handler.ListPayoutsHandler(ctx, "wallet-a", 10, 0)
		if err != nil {
			t.Fatalf("list payouts failed: %v", err)
		}
		if len(payouts) == 1 && payouts[0].Amount == 700 && payouts[0].SourceEventID == "evt-release-1" {
			return
		}
		if len(payouts) > 1 {
			t.Fatalf("expected a single payout row, got %+v", payouts)
		}
		if time.Now().After(deadline) {
			t.Fatalf("payout never recorded, last seen %+v", payouts)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
