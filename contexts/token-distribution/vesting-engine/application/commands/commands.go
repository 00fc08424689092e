package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/application"
	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/domain/proof"
	"tranche/contexts/token-distribution/vesting-engine/domain/vesting"
	"tranche/contexts/token-distribution/vesting-engine/ports"
)

// MinClaimInterval throttles continuous-mode claims per recipient.
const MinClaimInterval = 24 * time.Hour

const (
	OutcomeReleased     = "released"
	OutcomeLockAccepted = "lock_accepted"
)

const (
	topicClaimed  = "vesting.claimed"
	topicLocked   = "vesting.locked"
	topicReleased = "vesting.released"
)

type CreateScheduleCommand struct {
	Name            string
	StartTime       time.Time
	CliffDuration   time.Duration
	CliffFraction   uint32
	VestingDuration time.Duration
	ExpiryTime      time.Time
	RewardFraction  uint32
	CommitmentRoot  [32]byte
	ReleaseMode     entities.ReleaseMode
}

type ClaimCommand struct {
	Recipient  string
	ScheduleID uint64
	Allocation uint64
	Proof      [][32]byte
}

// ClaimOutcome reports what a successful claim did. A lock_accepted outcome
// carries Amount 0: the entitlement was locked, nothing was transferred.
type ClaimOutcome struct {
	Recipient    string
	ScheduleID   uint64
	Status       string
	Amount       uint64
	ClaimedTotal uint64
	Entitlement  uint64
}

// RecipientLocks serializes claim processing per recipient. Every mutating
// claim holds the recipient's lock across its read-modify-write sequence.
type RecipientLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRecipientLocks() *RecipientLocks {
	return &RecipientLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *RecipientLocks) Acquire(recipient string) func() {
	l.mu.Lock()
	lock, ok := l.locks[recipient]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[recipient] = lock
	}
	l.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

type UseCase struct {
	Schedules ports.ScheduleRepository
	Claims    ports.ClaimRepository
	Transfer  ports.TokenTransferrer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *RecipientLocks
	Logger    *slog.Logger
}

func (uc UseCase) CreateSchedule(ctx context.Context, cmd CreateScheduleCommand) (entities.Schedule, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateScheduleParams(cmd); err != nil {
		logger.Warn("vesting schedule rejected",
			"event", "vesting_schedule_rejected",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"name", strings.TrimSpace(cmd.Name),
			"error", err.Error(),
		)
		return entities.Schedule{}, err
	}
	now := uc.now()
	mode := cmd.ReleaseMode
	if mode == "" {
		mode = entities.ReleaseModeContinuous
	}
	schedule := entities.Schedule{
		Name:            strings.TrimSpace(cmd.Name),
		StartTime:       cmd.StartTime.UTC(),
		CliffDuration:   cmd.CliffDuration,
		CliffFraction:   cmd.CliffFraction,
		VestingDuration: cmd.VestingDuration,
		ExpiryTime:      cmd.ExpiryTime.UTC(),
		RewardFraction:  cmd.RewardFraction,
		CommitmentRoot:  cmd.CommitmentRoot,
		ReleaseMode:     mode,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	scheduleID, err := uc.Schedules.CreateSchedule(ctx, schedule)
	if err != nil {
		logger.Error("vesting schedule create failed",
			"event", "vesting_schedule_create_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"name", schedule.Name,
			"error", err.Error(),
		)
		return entities.Schedule{}, err
	}
	schedule.ID = scheduleID
	logger.Info("vesting schedule created",
		"event", "vesting_schedule_created",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"schedule_id", scheduleID,
		"release_mode", string(schedule.ReleaseMode),
		"start_time", schedule.StartTime.Format(time.RFC3339),
		"expiry_time", schedule.ExpiryTime.Format(time.RFC3339),
	)
	return schedule, nil
}

func (uc UseCase) SetScheduleActive(ctx context.Context, scheduleID uint64, active bool) error {
	logger := application.ResolveLogger(uc.Logger)
	schedule, err := uc.Schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		logger.Warn("vesting schedule activation lookup failed",
			"event", "vesting_schedule_activation_lookup_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return err
	}
	schedule.Active = active
	schedule.UpdatedAt = uc.now()
	if err := uc.Schedules.UpdateSchedule(ctx, schedule); err != nil {
		logger.Error("vesting schedule activation update failed",
			"event", "vesting_schedule_activation_update_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vesting schedule activation toggled",
		"event", "vesting_schedule_activation_toggled",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"schedule_id", scheduleID,
		"active", active,
	)
	return nil
}

func (uc UseCase) RotateCommitmentRoot(ctx context.Context, scheduleID uint64, newRoot [32]byte) error {
	logger := application.ResolveLogger(uc.Logger)
	schedule, err := uc.Schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		logger.Warn("vesting root rotation lookup failed",
			"event", "vesting_root_rotation_lookup_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return err
	}
	schedule.CommitmentRoot = newRoot
	schedule.UpdatedAt = uc.now()
	if err := uc.Schedules.UpdateSchedule(ctx, schedule); err != nil {
		logger.Error("vesting root rotation update failed",
			"event", "vesting_root_rotation_update_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vesting commitment root rotated",
		"event", "vesting_root_rotated",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"schedule_id", scheduleID,
	)
	return nil
}

// Claim runs the full claim state machine for one recipient. The recipient
// lock is held from record load through commit so no two claims for the
// same recipient interleave their read-modify-write sequence. Claim state
// is committed before the transfer collaborator is called and is not rolled
// back if the transfer fails.
func (uc UseCase) Claim(ctx context.Context, cmd ClaimCommand) (ClaimOutcome, error) {
	logger := application.ResolveLogger(uc.Logger)
	recipient := strings.TrimSpace(cmd.Recipient)
	if recipient == "" || cmd.Allocation == 0 {
		logger.Warn("vesting claim invalid input",
			"event", "vesting_claim_invalid_input",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"schedule_id", cmd.ScheduleID,
			"allocation", cmd.Allocation,
		)
		return ClaimOutcome{}, domainerrors.ErrInvalidAmount
	}

	schedule, err := uc.Schedules.GetSchedule(ctx, cmd.ScheduleID)
	if err != nil {
		logger.Warn("vesting claim schedule lookup failed",
			"event", "vesting_claim_schedule_lookup_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"schedule_id", cmd.ScheduleID,
			"error", err.Error(),
		)
		return ClaimOutcome{}, err
	}
	if !schedule.Active {
		logger.Warn("vesting claim on inactive schedule",
			"event", "vesting_claim_schedule_inactive",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"schedule_id", cmd.ScheduleID,
		)
		return ClaimOutcome{}, domainerrors.ErrScheduleInactive
	}

	if uc.Locks != nil {
		release := uc.Locks.Acquire(recipient)
		defer release()
	}

	now := uc.now()
	record, found, err := uc.Claims.GetClaimRecord(ctx, recipient)
	if err != nil {
		logger.Error("vesting claim record lookup failed",
			"event", "vesting_claim_record_lookup_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"error", err.Error(),
		)
		return ClaimOutcome{}, err
	}
	if !found {
		record = entities.ClaimRecord{
			Recipient: recipient,
			Status:    entities.ClaimStatusUnenrolled,
		}
	}
	if record.Enrolled() && record.ScheduleID != cmd.ScheduleID {
		logger.Warn("vesting claim cross-schedule attempt",
			"event", "vesting_claim_cross_schedule",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"bound_schedule_id", record.ScheduleID,
			"schedule_id", cmd.ScheduleID,
		)
		return ClaimOutcome{}, domainerrors.ErrAlreadyEnrolledElsewhere
	}
	// Expiry is an enrollment deadline for new recipients only; enrolled
	// recipients bypass it entirely.
	if !record.Enrolled() && !now.Before(schedule.ExpiryTime) {
		logger.Warn("vesting claim enrollment closed",
			"event", "vesting_claim_enrollment_closed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"schedule_id", cmd.ScheduleID,
			"expiry_time", schedule.ExpiryTime.Format(time.RFC3339),
		)
		return ClaimOutcome{}, domainerrors.ErrEnrollmentClosed
	}
	if !proof.Verify(schedule.CommitmentRoot, recipient, cmd.Allocation, cmd.Proof) {
		logger.Warn("vesting claim proof rejected",
			"event", "vesting_claim_proof_rejected",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"schedule_id", cmd.ScheduleID,
			"allocation", cmd.Allocation,
		)
		return ClaimOutcome{}, domainerrors.ErrProofInvalid
	}

	entitlement := vesting.EffectiveEntitlement(cmd.Allocation, schedule.RewardFraction)

	if record.DeferredPending() {
		return uc.releaseDeferred(ctx, schedule, record, cmd.Allocation, entitlement, now)
	}
	if schedule.ReleaseMode == entities.ReleaseModeDeferred {
		return uc.lockDeferred(ctx, schedule, record, cmd.Allocation, entitlement, now)
	}
	return uc.claimContinuous(ctx, schedule, record, cmd.Allocation, entitlement, now)
}

func (uc UseCase) releaseDeferred(
	ctx context.Context,
	schedule entities.Schedule,
	record entities.ClaimRecord,
	allocation uint64,
	entitlement uint64,
	now time.Time,
) (ClaimOutcome, error) {
	logger := application.ResolveLogger(uc.Logger)
	amount, _, err := vesting.Releasable(schedule, record, allocation, now)
	if errors.Is(err, vesting.ErrDeferredNotMature) {
		logger.Info("vesting deferred release not yet mature",
			"event", "vesting_deferred_not_mature",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"deferred_start", record.DeferredStart.Format(time.RFC3339),
		)
		return ClaimOutcome{}, domainerrors.ErrClaimNotAllowed
	}
	if err != nil {
		return ClaimOutcome{}, err
	}

	record.ClaimedTotal += amount
	record.DeferredAmount = 0
	record.DeferredStart = time.Time{}
	record.LastClaimTime = now
	record.UpdatedAt = now
	if record.ClaimedTotal >= entitlement {
		record.Status = entities.ClaimStatusExhausted
	} else {
		record.Status = entities.ClaimStatusVesting
	}
	if err := uc.Claims.SaveClaimRecord(ctx, record); err != nil {
		logger.Error("vesting deferred release commit failed",
			"event", "vesting_deferred_release_commit_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"error", err.Error(),
		)
		return ClaimOutcome{}, err
	}
	if err := uc.appendOutbox(ctx, topicReleased, record.Recipient, map[string]any{
		"recipient":     record.Recipient,
		"schedule_id":   schedule.ID,
		"amount":        amount,
		"claimed_total": record.ClaimedTotal,
	}); err != nil {
		return ClaimOutcome{}, err
	}

	outcome := ClaimOutcome{
		Recipient:    record.Recipient,
		ScheduleID:   schedule.ID,
		Status:       OutcomeReleased,
		Amount:       amount,
		ClaimedTotal: record.ClaimedTotal,
		Entitlement:  entitlement,
	}
	if err := uc.transfer(ctx, record.Recipient, amount); err != nil {
		return outcome, err
	}
	logger.Info("vesting deferred entitlement released",
		"event", "vesting_deferred_released",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"recipient", record.Recipient,
		"schedule_id", schedule.ID,
		"amount", amount,
	)
	return outcome, nil
}

func (uc UseCase) lockDeferred(
	ctx context.Context,
	schedule entities.Schedule,
	record entities.ClaimRecord,
	allocation uint64,
	entitlement uint64,
	now time.Time,
) (ClaimOutcome, error) {
	logger := application.ResolveLogger(uc.Logger)
	if record.ClaimedTotal >= entitlement {
		logger.Info("vesting deferred lock refused on exhausted record",
			"event", "vesting_deferred_lock_exhausted",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
		)
		return ClaimOutcome{}, domainerrors.ErrNoTokensToClaim
	}
	amount, lockNow, err := vesting.Releasable(schedule, record, allocation, now)
	if err != nil {
		return ClaimOutcome{}, err
	}
	if !lockNow || amount == 0 {
		logger.Info("vesting deferred lock not yet available",
			"event", "vesting_deferred_lock_unavailable",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
		)
		return ClaimOutcome{}, domainerrors.ErrNoTokensToClaim
	}

	record.ScheduleID = schedule.ID
	record.Status = entities.ClaimStatusDeferredLocked
	record.DeferredAmount = amount
	record.DeferredStart = now
	record.CliffSettled = true
	record.LastClaimTime = now
	record.UpdatedAt = now
	if err := uc.Claims.SaveClaimRecord(ctx, record); err != nil {
		logger.Error("vesting deferred lock commit failed",
			"event", "vesting_deferred_lock_commit_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"error", err.Error(),
		)
		return ClaimOutcome{}, err
	}
	if err := uc.appendOutbox(ctx, topicLocked, record.Recipient, map[string]any{
		"recipient":       record.Recipient,
		"schedule_id":     schedule.ID,
		"deferred_amount": amount,
	}); err != nil {
		return ClaimOutcome{}, err
	}
	logger.Info("vesting deferred entitlement locked",
		"event", "vesting_deferred_locked",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"recipient", record.Recipient,
		"schedule_id", schedule.ID,
		"deferred_amount", amount,
	)
	// No transfer on the lock call: the outcome communicates acceptance only.
	return ClaimOutcome{
		Recipient:    record.Recipient,
		ScheduleID:   schedule.ID,
		Status:       OutcomeLockAccepted,
		Amount:       0,
		ClaimedTotal: record.ClaimedTotal,
		Entitlement:  entitlement,
	}, nil
}

func (uc UseCase) claimContinuous(
	ctx context.Context,
	schedule entities.Schedule,
	record entities.ClaimRecord,
	allocation uint64,
	entitlement uint64,
	now time.Time,
) (ClaimOutcome, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !record.LastClaimTime.IsZero() && now.Before(record.LastClaimTime.Add(MinClaimInterval)) {
		logger.Info("vesting claim throttled",
			"event", "vesting_claim_throttled",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"last_claim_time", record.LastClaimTime.Format(time.RFC3339),
		)
		return ClaimOutcome{}, domainerrors.ErrNoTokensToClaim
	}
	amount, cliffTranche, err := vesting.Releasable(schedule, record, allocation, now)
	if err != nil {
		return ClaimOutcome{}, err
	}
	if amount == 0 {
		logger.Info("vesting claim nothing releasable",
			"event", "vesting_claim_nothing_releasable",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"claimed_total", record.ClaimedTotal,
		)
		return ClaimOutcome{}, domainerrors.ErrNoTokensToClaim
	}
	// Entitlement bound is checked, not assumed: never commit past it.
	if amount > entitlement-record.ClaimedTotal {
		logger.Warn("vesting claim clamped to entitlement",
			"event", "vesting_claim_clamped",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"amount", amount,
			"claimed_total", record.ClaimedTotal,
			"entitlement", entitlement,
		)
		amount = entitlement - record.ClaimedTotal
	}

	record.ScheduleID = schedule.ID
	record.ClaimedTotal += amount
	if cliffTranche {
		record.CliffSettled = true
	}
	record.LastClaimTime = now
	record.UpdatedAt = now
	if record.ClaimedTotal >= entitlement {
		record.Status = entities.ClaimStatusExhausted
	} else {
		record.Status = entities.ClaimStatusVesting
	}
	if err := uc.Claims.SaveClaimRecord(ctx, record); err != nil {
		logger.Error("vesting claim commit failed",
			"event", "vesting_claim_commit_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", record.Recipient,
			"schedule_id", schedule.ID,
			"error", err.Error(),
		)
		return ClaimOutcome{}, err
	}
	if err := uc.appendOutbox(ctx, topicClaimed, record.Recipient, map[string]any{
		"recipient":     record.Recipient,
		"schedule_id":   schedule.ID,
		"amount":        amount,
		"claimed_total": record.ClaimedTotal,
		"cliff_tranche": cliffTranche,
	}); err != nil {
		return ClaimOutcome{}, err
	}

	outcome := ClaimOutcome{
		Recipient:    record.Recipient,
		ScheduleID:   schedule.ID,
		Status:       OutcomeReleased,
		Amount:       amount,
		ClaimedTotal: record.ClaimedTotal,
		Entitlement:  entitlement,
	}
	if err := uc.transfer(ctx, record.Recipient, amount); err != nil {
		return outcome, err
	}
	logger.Info("vesting claim released",
		"event", "vesting_claim_released",
		"module", "token-distribution/vesting-engine",
		"layer", "application",
		"recipient", record.Recipient,
		"schedule_id", schedule.ID,
		"amount", amount,
		"claimed_total", record.ClaimedTotal,
		"cliff_tranche", cliffTranche,
	)
	return outcome, nil
}

// transfer calls the collaborator after the claim commit. A failure is
// surfaced as ErrTransferFailed joined with the collaborator error; the
// committed claim state stands, so a retried claim cannot double-release.
func (uc UseCase) transfer(ctx context.Context, recipient string, amount uint64) error {
	logger := application.ResolveLogger(uc.Logger)
	if err := uc.Transfer.Transfer(ctx, recipient, amount); err != nil {
		logger.Error("vesting transfer failed after commit",
			"event", "vesting_transfer_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"amount", amount,
			"error", err.Error(),
		)
		return errors.Join(domainerrors.ErrTransferFailed, err)
	}
	return nil
}

func (uc UseCase) appendOutbox(
	ctx context.Context,
	eventType string,
	partitionKey string,
	data map[string]any,
) error {
	logger := application.ResolveLogger(uc.Logger)
	if uc.Outbox == nil {
		logger.Debug("vesting outbox disabled for module",
			"event", "vesting_outbox_disabled",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"event_type", eventType,
		)
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		logger.Error("vesting outbox event id generation failed",
			"event", "vesting_outbox_event_id_generation_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("vesting outbox payload marshal failed",
			"event", "vesting_outbox_payload_marshal_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
		return err
	}
	if err := uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       uc.now(),
		SourceService:    "vesting-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "recipient",
		PartitionKey:     partitionKey,
		Data:             payload,
	}); err != nil {
		logger.Error("vesting outbox append failed",
			"event", "vesting_outbox_append_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"event_id", eventID,
			"event_type", eventType,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func validateScheduleParams(cmd CreateScheduleCommand) error {
	if cmd.CliffFraction > entities.FractionBase {
		return domainerrors.ErrInvalidFraction
	}
	if cmd.RewardFraction > entities.MaxRewardFraction {
		return domainerrors.ErrInvalidReward
	}
	if cmd.VestingDuration <= 0 {
		return domainerrors.ErrInvalidSchedule
	}
	if !cmd.StartTime.Before(cmd.ExpiryTime) {
		return domainerrors.ErrInvalidSchedule
	}
	if cmd.StartTime.Add(cmd.VestingDuration).After(cmd.ExpiryTime) {
		return domainerrors.ErrInvalidSchedule
	}
	// A cliff needs both a fraction and a duration, or neither: a fraction
	// without a time gate or a gate with nothing to unlock is a config bug.
	if (cmd.CliffFraction == 0) != (cmd.CliffDuration == 0) {
		return domainerrors.ErrInvalidSchedule
	}
	if cmd.CliffDuration < 0 || cmd.CliffDuration >= cmd.VestingDuration {
		if !(cmd.CliffDuration == 0 && cmd.CliffFraction == 0) {
			return domainerrors.ErrInvalidSchedule
		}
	}
	return nil
}
