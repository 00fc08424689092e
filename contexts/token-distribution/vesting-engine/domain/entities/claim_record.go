package entities

import "time"

type ClaimStatus string

const (
	// ClaimStatusUnenrolled is the implicit state before the first successful claim.
	ClaimStatusUnenrolled ClaimStatus = "unenrolled"
	// ClaimStatusVesting covers continuous-mode records with entitlement remaining.
	ClaimStatusVesting ClaimStatus = "vesting"
	// ClaimStatusDeferredLocked means the full entitlement is locked and
	// waiting out the deferred maturity window.
	ClaimStatusDeferredLocked ClaimStatus = "deferred_locked"
	// ClaimStatusExhausted is terminal: claimed_total reached the entitlement.
	ClaimStatusExhausted ClaimStatus = "exhausted"
)

// ClaimRecord is the per-recipient claim state. One record per recipient,
// created lazily on the first proof-verified claim, never deleted.
// ScheduleID stays 0 until the first successful claim and is fixed for the
// record's lifetime afterwards, enforcing one schedule per recipient.
type ClaimRecord struct {
	Recipient     string
	ScheduleID    uint64
	Status        ClaimStatus
	ClaimedTotal  uint64
	LastClaimTime time.Time
	CliffSettled  bool
	DeferredAmount uint64
	DeferredStart  time.Time
	UpdatedAt      time.Time
}

// DeferredPending reports whether a locked entitlement is waiting for
// release. Deriving this from Status keeps pending-with-zero-amount
// unrepresentable.
func (r ClaimRecord) DeferredPending() bool {
	return r.Status == ClaimStatusDeferredLocked
}

// Enrolled reports whether the record is bound to a schedule.
func (r ClaimRecord) Enrolled() bool {
	return r.ScheduleID != 0
}
