package entities

import "time"

// FractionBase is the denominator for cliff/reward fractions (parts per 10000).
const FractionBase = 10000

// MaxRewardFraction caps the reward bonus at 200% of the declared allocation.
const MaxRewardFraction = 2 * FractionBase

type ReleaseMode string

const (
	// ReleaseModeContinuous releases per the cliff+linear curve as time passes.
	ReleaseModeContinuous ReleaseMode = "continuous"
	// ReleaseModeDeferred locks the full entitlement at first claim and
	// releases it in a single transfer after the vesting duration elapses.
	ReleaseModeDeferred ReleaseMode = "deferred"
)

// Schedule is one release program. All parameters except Active and
// CommitmentRoot are immutable after creation.
type Schedule struct {
	ID              uint64
	Name            string
	StartTime       time.Time
	CliffDuration   time.Duration
	CliffFraction   uint32
	VestingDuration time.Duration
	ExpiryTime      time.Time
	RewardFraction  uint32
	CommitmentRoot  [32]byte
	ReleaseMode     ReleaseMode
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
