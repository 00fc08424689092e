package vesting

import (
	"errors"
	"math"
	"math/bits"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
)

// ErrDeferredNotMature signals that a locked deferred entitlement cannot be
// released yet. Callers map it to a claim-not-allowed failure rather than a
// zero-amount success.
var ErrDeferredNotMature = errors.New("deferred entitlement has not matured")

// EffectiveEntitlement is the declared allocation plus the reward bonus,
// floor-rounded. It is the hard ceiling on cumulative release.
func EffectiveEntitlement(allocation uint64, rewardFraction uint32) uint64 {
	bonus := mulDiv(allocation, uint64(rewardFraction), entities.FractionBase)
	if bonus > math.MaxUint64-allocation {
		return math.MaxUint64
	}
	return allocation + bonus
}

// Releasable computes the amount claimable at now for a recipient's record
// under a schedule. The second result is true when the amount includes the
// not-yet-settled cliff tranche; for a deferred schedule it doubles as the
// "lock now, do not transfer" signal on the first qualifying call.
//
// All fractional math floors, so cumulative releases can only undershoot;
// the final claim at or after expiry absorbs any rounding residual by
// topping up to exactly entitlement minus claimed.
func Releasable(
	schedule entities.Schedule,
	record entities.ClaimRecord,
	allocation uint64,
	now time.Time,
) (uint64, bool, error) {
	if now.Before(schedule.StartTime) {
		return 0, false, nil
	}
	entitlement := EffectiveEntitlement(allocation, schedule.RewardFraction)

	if schedule.ReleaseMode == entities.ReleaseModeDeferred {
		return releasableDeferred(schedule, record, entitlement, now)
	}
	return releasableContinuous(schedule, record, entitlement, now), cliffIncluded(schedule, record), nil
}

func releasableDeferred(
	schedule entities.Schedule,
	record entities.ClaimRecord,
	entitlement uint64,
	now time.Time,
) (uint64, bool, error) {
	if record.DeferredPending() {
		matured := !now.Before(record.DeferredStart.Add(schedule.VestingDuration))
		expired := !now.Before(schedule.ExpiryTime)
		if matured || expired {
			return record.DeferredAmount, false, nil
		}
		return 0, false, ErrDeferredNotMature
	}
	if record.ClaimedTotal == 0 && !now.Before(schedule.StartTime.Add(schedule.VestingDuration)) {
		return entitlement, true, nil
	}
	return 0, false, nil
}

func releasableContinuous(
	schedule entities.Schedule,
	record entities.ClaimRecord,
	entitlement uint64,
	now time.Time,
) uint64 {
	// Expiry is an acceleration trigger for enrolled recipients, never a
	// forfeiture: anything unclaimed becomes releasable in full.
	if now.After(schedule.ExpiryTime) {
		if entitlement > record.ClaimedTotal {
			return entitlement - record.ClaimedTotal
		}
		return 0
	}

	elapsed := now.Sub(schedule.StartTime)
	var vested uint64
	if elapsed >= schedule.VestingDuration {
		vested = entitlement
	} else {
		cliffAmount := mulDiv(entitlement, uint64(schedule.CliffFraction), entities.FractionBase)
		vested = cliffAmount
		if elapsed > schedule.CliffDuration {
			linearSpan := schedule.VestingDuration - schedule.CliffDuration
			linearElapsed := elapsed - schedule.CliffDuration
			if linearElapsed > linearSpan {
				linearElapsed = linearSpan
			}
			remaining := entitlement - cliffAmount
			vested += mulDiv(remaining, uint64(linearElapsed/time.Second), uint64(linearSpan/time.Second))
		}
	}
	if vested <= record.ClaimedTotal {
		return 0
	}
	return vested - record.ClaimedTotal
}

func cliffIncluded(schedule entities.Schedule, record entities.ClaimRecord) bool {
	return !record.CliffSettled && schedule.CliffFraction > 0
}

// mulDiv computes floor(a*b/den) with a 128-bit intermediate so entitlement
// math cannot overflow on large allocations.
func mulDiv(a, b, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return math.MaxUint64
	}
	quot, _ := bits.Div64(hi, lo, den)
	return quot
}
