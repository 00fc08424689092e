package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stubSchedules struct {
	schedule entities.Schedule
	found    bool
}

func (s stubSchedules) CreateSchedule(_ context.Context, _ entities.Schedule) (uint64, error) {
	return 0, nil
}

func (s stubSchedules) GetSchedule(_ context.Context, _ uint64) (entities.Schedule, error) {
	if !s.found {
		return entities.Schedule{}, domainerrors.ErrScheduleNotFound
	}
	return s.schedule, nil
}

func (s stubSchedules) ListSchedules(_ context.Context) ([]entities.Schedule, error) {
	if !s.found {
		return nil, nil
	}
	return []entities.Schedule{s.schedule}, nil
}

func (s stubSchedules) UpdateSchedule(_ context.Context, _ entities.Schedule) error { return nil }

type stubClaims struct {
	record entities.ClaimRecord
	found  bool
}

func (s stubClaims) GetClaimRecord(_ context.Context, _ string) (entities.ClaimRecord, bool, error) {
	return s.record, s.found, nil
}

func (s stubClaims) SaveClaimRecord(_ context.Context, _ entities.ClaimRecord) error { return nil }

func (s stubClaims) ListClaimRecords(_ context.Context) ([]entities.ClaimRecord, error) {
	if !s.found {
		return nil, nil
	}
	return []entities.ClaimRecord{s.record}, nil
}

var queryStart = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

func fullyVestedSchedule() entities.Schedule {
	return entities.Schedule{
		ID:              1,
		StartTime:       queryStart.Add(-100 * 24 * time.Hour),
		VestingDuration: 100 * 24 * time.Hour,
		ExpiryTime:      queryStart.Add(100 * 24 * time.Hour),
		ReleaseMode:     entities.ReleaseModeContinuous,
		Active:          true,
	}
}

func TestGetReleasablePreview(t *testing.T) {
	useCase := UseCase{
		Schedules: stubSchedules{schedule: fullyVestedSchedule(), found: true},
		Claims:    stubClaims{},
		Clock:     fixedClock{now: queryStart},
	}
	amount, err := useCase.GetReleasable(context.Background(), "wallet-a", 1, 1000)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if amount != 1000 {
		t.Fatalf("expected full 1000 releasable, got %d", amount)
	}
}

func TestGetReleasableUnknownScheduleIsZero(t *testing.T) {
	useCase := UseCase{
		Schedules: stubSchedules{},
		Claims:    stubClaims{},
		Clock:     fixedClock{now: queryStart},
	}
	amount, err := useCase.GetReleasable(context.Background(), "wallet-a", 9, 1000)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero preview for unknown schedule, got %d err=%v", amount, err)
	}
}

func TestGetReleasableInactiveScheduleIsZero(t *testing.T) {
	schedule := fullyVestedSchedule()
	schedule.Active = false
	useCase := UseCase{
		Schedules: stubSchedules{schedule: schedule, found: true},
		Claims:    stubClaims{},
		Clock:     fixedClock{now: queryStart},
	}
	amount, err := useCase.GetReleasable(context.Background(), "wallet-a", 1, 1000)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero preview for inactive schedule, got %d err=%v", amount, err)
	}
}

func TestGetReleasableCrossScheduleIsZero(t *testing.T) {
	useCase := UseCase{
		Schedules: stubSchedules{schedule: fullyVestedSchedule(), found: true},
		Claims: stubClaims{
			record: entities.ClaimRecord{Recipient: "wallet-a", ScheduleID: 2, Status: entities.ClaimStatusVesting},
			found:  true,
		},
		Clock: fixedClock{now: queryStart},
	}
	amount, err := useCase.GetReleasable(context.Background(), "wallet-a", 1, 1000)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero preview across schedules, got %d err=%v", amount, err)
	}
}

func TestGetReleasableImmatureDeferredIsZero(t *testing.T) {
	schedule := fullyVestedSchedule()
	schedule.ReleaseMode = entities.ReleaseModeDeferred
	useCase := UseCase{
		Schedules: stubSchedules{schedule: schedule, found: true},
		Claims: stubClaims{
			record: entities.ClaimRecord{
				Recipient:      "wallet-a",
				ScheduleID:     1,
				Status:         entities.ClaimStatusDeferredLocked,
				DeferredAmount: 1000,
				DeferredStart:  queryStart.Add(-time.Hour),
				CliffSettled:   true,
			},
			found: true,
		},
		Clock: fixedClock{now: queryStart},
	}
	amount, err := useCase.GetReleasable(context.Background(), "wallet-a", 1, 1000)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero preview for immature deferred lock, got %d err=%v", amount, err)
	}
}

func TestGetClaimRecordMissing(t *testing.T) {
	useCase := UseCase{Schedules: stubSchedules{}, Claims: stubClaims{}, Clock: fixedClock{now: queryStart}}
	_, err := useCase.GetClaimRecord(context.Background(), "wallet-a")
	if !errors.Is(err, domainerrors.ErrClaimRecordNotFound) {
		t.Fatalf("expected ErrClaimRecordNotFound, got %v", err)
	}
}
