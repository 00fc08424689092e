package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateScheduleRequest struct {
	Name           string `json:"name"`
	StartTime      string `json:"start_time"`
	CliffSeconds   int64  `json:"cliff_seconds"`
	CliffFraction  uint32 `json:"cliff_fraction"`
	VestingSeconds int64  `json:"vesting_seconds"`
	ExpiryTime     string `json:"expiry_time"`
	RewardFraction uint32 `json:"reward_fraction"`
	CommitmentRoot string `json:"commitment_root"`
	ReleaseMode    string `json:"release_mode"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type RotateRootRequest struct {
	CommitmentRoot string `json:"commitment_root"`
}

type ClaimRequest struct {
	Recipient  string   `json:"recipient"`
	ScheduleID uint64   `json:"schedule_id"`
	Allocation uint64   `json:"allocation"`
	Proof      []string `json:"proof"`
}

type ClaimOutcomeDTO struct {
	Recipient    string `json:"recipient"`
	ScheduleID   uint64 `json:"schedule_id"`
	Status       string `json:"status"`
	Amount       uint64 `json:"amount"`
	ClaimedTotal uint64 `json:"claimed_total"`
	Entitlement  uint64 `json:"entitlement"`
}

type ScheduleDTO struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name,omitempty"`
	StartTime      string `json:"start_time"`
	CliffSeconds   int64  `json:"cliff_seconds"`
	CliffFraction  uint32 `json:"cliff_fraction"`
	VestingSeconds int64  `json:"vesting_seconds"`
	ExpiryTime     string `json:"expiry_time"`
	RewardFraction uint32 `json:"reward_fraction"`
	CommitmentRoot string `json:"commitment_root"`
	ReleaseMode    string `json:"release_mode"`
	Active         bool   `json:"active"`
}

type ClaimRecordDTO struct {
	Recipient      string `json:"recipient"`
	ScheduleID     uint64 `json:"schedule_id"`
	Status         string `json:"status"`
	ClaimedTotal   uint64 `json:"claimed_total"`
	LastClaimTime  string `json:"last_claim_time,omitempty"`
	CliffSettled   bool   `json:"cliff_settled"`
	DeferredAmount uint64 `json:"deferred_amount,omitempty"`
	DeferredStart  string `json:"deferred_start,omitempty"`
}

type ReleasableResponse struct {
	Recipient  string `json:"recipient"`
	ScheduleID uint64 `json:"schedule_id"`
	Releasable uint64 `json:"releasable"`
}
