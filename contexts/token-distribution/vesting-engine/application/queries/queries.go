package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tranche/contexts/token-distribution/vesting-engine/application"
	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/domain/vesting"
	"tranche/contexts/token-distribution/vesting-engine/ports"
)

type UseCase struct {
	Schedules ports.ScheduleRepository
	Claims    ports.ClaimRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

// GetReleasable previews what a claim would release right now. It is
// lock-free and mutates nothing; unknown or inactive schedules and
// enrollment-closed new recipients preview as 0 rather than erroring.
// Callers must not assume the value still holds when a real claim runs.
func (uc UseCase) GetReleasable(
	ctx context.Context,
	recipient string,
	scheduleID uint64,
	allocation uint64,
) (uint64, error) {
	logger := application.ResolveLogger(uc.Logger)
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || allocation == 0 {
		return 0, nil
	}
	schedule, err := uc.Schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrScheduleNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if !schedule.Active {
		return 0, nil
	}

	now := uc.Clock.Now().UTC()
	record, found, err := uc.Claims.GetClaimRecord(ctx, recipient)
	if err != nil {
		logger.Warn("vesting releasable record lookup failed",
			"event", "vesting_releasable_record_lookup_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"recipient", recipient,
			"error", err.Error(),
		)
		return 0, err
	}
	if !found {
		record = entities.ClaimRecord{
			Recipient: recipient,
			Status:    entities.ClaimStatusUnenrolled,
		}
	}
	if record.Enrolled() && record.ScheduleID != scheduleID {
		return 0, nil
	}
	if !record.Enrolled() && !now.Before(schedule.ExpiryTime) {
		return 0, nil
	}

	amount, _, err := vesting.Releasable(schedule, record, allocation, now)
	if errors.Is(err, vesting.ErrDeferredNotMature) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (uc UseCase) GetSchedule(ctx context.Context, scheduleID uint64) (entities.Schedule, error) {
	return uc.Schedules.GetSchedule(ctx, scheduleID)
}

func (uc UseCase) ListSchedules(ctx context.Context) ([]entities.Schedule, error) {
	logger := application.ResolveLogger(uc.Logger)
	schedules, err := uc.Schedules.ListSchedules(ctx)
	if err != nil {
		logger.Error("vesting schedule list failed",
			"event", "vesting_schedule_list_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return nil, err
	}
	return schedules, nil
}

func (uc UseCase) GetClaimRecord(ctx context.Context, recipient string) (entities.ClaimRecord, error) {
	record, found, err := uc.Claims.GetClaimRecord(ctx, strings.TrimSpace(recipient))
	if err != nil {
		return entities.ClaimRecord{}, err
	}
	if !found {
		return entities.ClaimRecord{}, domainerrors.ErrClaimRecordNotFound
	}
	return record, nil
}

func (uc UseCase) ListClaimRecords(ctx context.Context) ([]entities.ClaimRecord, error) {
	return uc.Claims.ListClaimRecords(ctx)
}
