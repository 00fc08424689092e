package vesting

import (
	"errors"
	"math"
	"testing"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
)

var start = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func continuousSchedule() entities.Schedule {
	return entities.Schedule{
		ID:              1,
		StartTime:       start,
		CliffDuration:   7 * 24 * time.Hour,
		CliffFraction:   1000,
		VestingDuration: 100 * 24 * time.Hour,
		ExpiryTime:      start.Add(200 * 24 * time.Hour),
		ReleaseMode:     entities.ReleaseModeContinuous,
		Active:          true,
	}
}

func TestEffectiveEntitlementAppliesRewardFraction(t *testing.T) {
	if got := EffectiveEntitlement(1000, 0); got != 1000 {
		t.Fatalf("expected 1000 without reward, got %d", got)
	}
	if got := EffectiveEntitlement(1000, 5000); got != 1500 {
		t.Fatalf("expected 1500 with 50%% reward, got %d", got)
	}
	if got := EffectiveEntitlement(1000, 20000); got != 3000 {
		t.Fatalf("expected 3000 with 200%% reward, got %d", got)
	}
	if got := EffectiveEntitlement(math.MaxUint64, 10000); got != math.MaxUint64 {
		t.Fatalf("expected saturation at MaxUint64, got %d", got)
	}
}

func TestReleasableZeroBeforeStart(t *testing.T) {
	schedule := continuousSchedule()
	amount, _, err := Releasable(schedule, entities.ClaimRecord{}, 2000, start.Add(-time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 0 {
		t.Fatalf("expected 0 before start, got %d", amount)
	}
}

func TestCliffTrancheVestedFromStart(t *testing.T) {
	schedule := continuousSchedule()
	amount, cliff, err := Releasable(schedule, entities.ClaimRecord{}, 2000, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 200 {
		t.Fatalf("expected cliff tranche 200 at start, got %d", amount)
	}
	if !cliff {
		t.Fatalf("expected cliff tranche flag at start")
	}

	// The cliff duration gates the linear ramp only; at exactly the cliff
	// boundary nothing beyond the cliff tranche has vested.
	amount, _, err = Releasable(schedule, entities.ClaimRecord{}, 2000, start.Add(schedule.CliffDuration))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 200 {
		t.Fatalf("expected 200 at cliff boundary, got %d", amount)
	}
}

func TestLinearRampAfterCliff(t *testing.T) {
	schedule := continuousSchedule()
	// Halfway through the 93-day linear span: 200 + 1800/2.
	halfway := start.Add(schedule.CliffDuration).Add((93 * 24 * time.Hour) / 2)
	amount, _, err := Releasable(schedule, entities.ClaimRecord{}, 2000, halfway)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 1100 {
		t.Fatalf("expected 1100 at linear halfway, got %d", amount)
	}
}

func TestFullVestingAtDurationEnd(t *testing.T) {
	schedule := continuousSchedule()
	amount, _, err := Releasable(schedule, entities.ClaimRecord{}, 2000, start.Add(schedule.VestingDuration))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 2000 {
		t.Fatalf("expected full 2000 at vesting end, got %d", amount)
	}
}

func TestReleasableSubtractsClaimedTotal(t *testing.T) {
	schedule := continuousSchedule()
	record := entities.ClaimRecord{
		ScheduleID:   1,
		Status:       entities.ClaimStatusVesting,
		ClaimedTotal: 200,
		CliffSettled: true,
	}
	amount, cliff, err := Releasable(schedule, record, 2000, start.Add(schedule.VestingDuration))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 1800 {
		t.Fatalf("expected 1800 after 200 claimed, got %d", amount)
	}
	if cliff {
		t.Fatalf("settled cliff must not be flagged again")
	}
}

func TestExpiryAcceleratesRemainder(t *testing.T) {
	schedule := continuousSchedule()
	record := entities.ClaimRecord{
		ScheduleID:   1,
		Status:       entities.ClaimStatusVesting,
		ClaimedTotal: 300,
		CliffSettled: true,
	}
	amount, _, err := Releasable(schedule, record, 1000, schedule.ExpiryTime.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 700 {
		t.Fatalf("expected accelerated remainder 700 after expiry, got %d", amount)
	}
}

func TestFlooringResidualAbsorbedByFinalClaim(t *testing.T) {
	schedule := continuousSchedule()
	schedule.CliffFraction = 0
	schedule.CliffDuration = 0

	// An awkward entitlement that floors on partial claims.
	oneThird := start.Add(schedule.VestingDuration / 3)
	partial, _, err := Releasable(schedule, entities.ClaimRecord{}, 1000, oneThird)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := entities.ClaimRecord{
		ScheduleID:   1,
		Status:       entities.ClaimStatusVesting,
		ClaimedTotal: partial,
		CliffSettled: true,
	}
	final, _, err := Releasable(schedule, record, 1000, start.Add(schedule.VestingDuration))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partial+final != 1000 {
		t.Fatalf("expected cumulative release to reach 1000 exactly, got %d", partial+final)
	}
}

func deferredSchedule() entities.Schedule {
	schedule := continuousSchedule()
	schedule.ReleaseMode = entities.ReleaseModeDeferred
	schedule.CliffDuration = 0
	schedule.CliffFraction = 0
	return schedule
}

func TestDeferredNothingBeforeVestingEnd(t *testing.T) {
	schedule := deferredSchedule()
	amount, lockNow, err := Releasable(schedule, entities.ClaimRecord{}, 1000, start.Add(schedule.VestingDuration-time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 0 || lockNow {
		t.Fatalf("expected no lock before vesting end, got amount=%d lock=%v", amount, lockNow)
	}
}

func TestDeferredLockSignalAtVestingEnd(t *testing.T) {
	schedule := deferredSchedule()
	amount, lockNow, err := Releasable(schedule, entities.ClaimRecord{}, 1000, start.Add(schedule.VestingDuration))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 1000 || !lockNow {
		t.Fatalf("expected full entitlement lock signal, got amount=%d lock=%v", amount, lockNow)
	}
}

func TestDeferredPendingMaturity(t *testing.T) {
	schedule := deferredSchedule()
	lockTime := start.Add(schedule.VestingDuration)
	record := entities.ClaimRecord{
		ScheduleID:     1,
		Status:         entities.ClaimStatusDeferredLocked,
		DeferredAmount: 1000,
		DeferredStart:  lockTime,
		CliffSettled:   true,
	}

	_, _, err := Releasable(schedule, record, 1000, lockTime.Add(schedule.VestingDuration-time.Second))
	if !errors.Is(err, ErrDeferredNotMature) {
		t.Fatalf("expected ErrDeferredNotMature, got %v", err)
	}

	amount, _, err := Releasable(schedule, record, 1000, lockTime.Add(schedule.VestingDuration))
	if err != nil {
		t.Fatalf("unexpected error at maturity: %v", err)
	}
	if amount != 1000 {
		t.Fatalf("expected locked amount 1000 at maturity, got %d", amount)
	}
}

func TestDeferredPendingReleasedByExpiry(t *testing.T) {
	schedule := deferredSchedule()
	// Lock late enough that the maturity date lands past expiry.
	lockTime := schedule.ExpiryTime.Add(-time.Hour)
	record := entities.ClaimRecord{
		ScheduleID:     1,
		Status:         entities.ClaimStatusDeferredLocked,
		DeferredAmount: 1000,
		DeferredStart:  lockTime,
		CliffSettled:   true,
	}
	amount, _, err := Releasable(schedule, record, 1000, schedule.ExpiryTime)
	if err != nil {
		t.Fatalf("unexpected error at expiry: %v", err)
	}
	if amount != 1000 {
		t.Fatalf("expected expiry to release locked amount, got %d", amount)
	}
}

func TestMulDivGuards(t *testing.T) {
	if got := mulDiv(10, 10, 0); got != 0 {
		t.Fatalf("expected 0 on zero denominator, got %d", got)
	}
	if got := mulDiv(math.MaxUint64, math.MaxUint64, 1); got != math.MaxUint64 {
		t.Fatalf("expected saturation on overflowing quotient, got %d", got)
	}
	if got := mulDiv(2000, 1000, 10000); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
}
