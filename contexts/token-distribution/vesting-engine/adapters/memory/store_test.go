package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/ports"
)

func TestScheduleIDsAreSequentialFromSeed(t *testing.T) {
	store := NewStore([]entities.Schedule{{ID: 4, Name: "seeded"}})
	ctx := context.Background()

	first, err := store.CreateSchedule(ctx, entities.Schedule{Name: "next"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first != 5 {
		t.Fatalf("expected id 5 after seed id 4, got %d", first)
	}
	second, _ := store.CreateSchedule(ctx, entities.Schedule{Name: "after"})
	if second != 6 {
		t.Fatalf("expected id 6, got %d", second)
	}

	if _, err := store.GetSchedule(ctx, 99); !errors.Is(err, domainerrors.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestUpdateScheduleRequiresExistingRow(t *testing.T) {
	store := NewStore(nil)
	err := store.UpdateSchedule(context.Background(), entities.Schedule{ID: 1})
	if !errors.Is(err, domainerrors.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestClaimRecordRoundTrip(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if _, found, err := store.GetClaimRecord(ctx, "wallet-a"); err != nil || found {
		t.Fatalf("expected missing record, found=%v err=%v", found, err)
	}
	record := entities.ClaimRecord{
		Recipient:    "wallet-a",
		ScheduleID:   1,
		Status:       entities.ClaimStatusVesting,
		ClaimedTotal: 42,
	}
	if err := store.SaveClaimRecord(ctx, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, found, err := store.GetClaimRecord(ctx, "wallet-a")
	if err != nil || !found {
		t.Fatalf("expected record, found=%v err=%v", found, err)
	}
	if loaded.ClaimedTotal != 42 || loaded.Status != entities.ClaimStatusVesting {
		t.Fatalf("unexpected record %+v", loaded)
	}
}

func TestOutboxPendingAndPublished(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	for i, eventID := range []string{"evt-1", "evt-2"} {
		err := store.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:    eventID,
			EventType:  "vesting.claimed",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	// Replayed envelopes collapse onto the existing row.
	if err := store.AppendOutbox(ctx, ports.EventEnvelope{EventID: "evt-1", EventType: "vesting.claimed"}); err != nil {
		t.Fatalf("replayed append failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected two pending rows ordered by creation, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected only evt-2 pending, got %+v", pending)
	}

	err = store.MarkOutboxPublished(ctx, "evt-missing", base)
	if !errors.Is(err, domainerrors.ErrOutboxMessageNotFound) {
		t.Fatalf("expected ErrOutboxMessageNotFound, got %v", err)
	}
}
