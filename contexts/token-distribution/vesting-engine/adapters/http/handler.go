package httpadapter

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/application"
	"tranche/contexts/token-distribution/vesting-engine/application/commands"
	"tranche/contexts/token-distribution/vesting-engine/application/queries"
	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	httptransport "tranche/contexts/token-distribution/vesting-engine/transport/http"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) CreateScheduleHandler(
	ctx context.Context,
	req httptransport.CreateScheduleRequest,
) (httptransport.ScheduleDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return httptransport.ScheduleDTO{}, domainerrors.ErrInvalidSchedule
	}
	expiryTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ExpiryTime))
	if err != nil {
		return httptransport.ScheduleDTO{}, domainerrors.ErrInvalidSchedule
	}
	root, err := decodeRoot(req.CommitmentRoot)
	if err != nil {
		return httptransport.ScheduleDTO{}, err
	}
	schedule, err := h.Commands.CreateSchedule(ctx, commands.CreateScheduleCommand{
		Name:            req.Name,
		StartTime:       startTime,
		CliffDuration:   time.Duration(req.CliffSeconds) * time.Second,
		CliffFraction:   req.CliffFraction,
		VestingDuration: time.Duration(req.VestingSeconds) * time.Second,
		ExpiryTime:      expiryTime,
		RewardFraction:  req.RewardFraction,
		CommitmentRoot:  root,
		ReleaseMode:     entities.ReleaseMode(strings.ToLower(strings.TrimSpace(req.ReleaseMode))),
	})
	if err != nil {
		logger.Warn("vesting http create schedule failed",
			"event", "vesting_http_create_schedule_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "adapter",
			"name", strings.TrimSpace(req.Name),
			"error", err.Error(),
		)
		return httptransport.ScheduleDTO{}, err
	}
	logger.Info("vesting http schedule created",
		"event", "vesting_http_schedule_created",
		"module", "token-distribution/vesting-engine",
		"layer", "adapter",
		"schedule_id", schedule.ID,
	)
	return mapSchedule(schedule), nil
}

func (h Handler) GetScheduleHandler(ctx context.Context, scheduleID uint64) (httptransport.ScheduleDTO, error) {
	schedule, err := h.Queries.GetSchedule(ctx, scheduleID)
	if err != nil {
		return httptransport.ScheduleDTO{}, err
	}
	return mapSchedule(schedule), nil
}

func (h Handler) ListSchedulesHandler(ctx context.Context) ([]httptransport.ScheduleDTO, error) {
	schedules, err := h.Queries.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]httptransport.ScheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		dtos = append(dtos, mapSchedule(schedule))
	}
	return dtos, nil
}

func (h Handler) SetActiveHandler(
	ctx context.Context,
	scheduleID uint64,
	req httptransport.SetActiveRequest,
) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.Commands.SetScheduleActive(ctx, scheduleID, req.Active); err != nil {
		logger.Warn("vesting http set active failed",
			"event", "vesting_http_set_active_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "adapter",
			"schedule_id", scheduleID,
			"active", req.Active,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (h Handler) RotateRootHandler(
	ctx context.Context,
	scheduleID uint64,
	req httptransport.RotateRootRequest,
) error {
	logger := application.ResolveLogger(h.Logger)
	root, err := decodeRoot(req.CommitmentRoot)
	if err != nil {
		return err
	}
	if err := h.Commands.RotateCommitmentRoot(ctx, scheduleID, root); err != nil {
		logger.Warn("vesting http rotate root failed",
			"event", "vesting_http_rotate_root_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "adapter",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (h Handler) ClaimHandler(
	ctx context.Context,
	req httptransport.ClaimRequest,
) (httptransport.ClaimOutcomeDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	proofPath, err := decodeProof(req.Proof)
	if err != nil {
		return httptransport.ClaimOutcomeDTO{}, err
	}
	outcome, err := h.Commands.Claim(ctx, commands.ClaimCommand{
		Recipient:  req.Recipient,
		ScheduleID: req.ScheduleID,
		Allocation: req.Allocation,
		Proof:      proofPath,
	})
	if err != nil {
		logger.Warn("vesting http claim failed",
			"event", "vesting_http_claim_failed",
			"module", "token-distribution/vesting-engine",
			"layer", "adapter",
			"recipient", strings.TrimSpace(req.Recipient),
			"schedule_id", req.ScheduleID,
			"error", err.Error(),
		)
		return httptransport.ClaimOutcomeDTO{}, err
	}
	logger.Info("vesting http claim completed",
		"event", "vesting_http_claim_completed",
		"module", "token-distribution/vesting-engine",
		"layer", "adapter",
		"recipient", outcome.Recipient,
		"schedule_id", outcome.ScheduleID,
		"status", outcome.Status,
		"amount", outcome.Amount,
	)
	return httptransport.ClaimOutcomeDTO{
		Recipient:    outcome.Recipient,
		ScheduleID:   outcome.ScheduleID,
		Status:       outcome.Status,
		Amount:       outcome.Amount,
		ClaimedTotal: outcome.ClaimedTotal,
		Entitlement:  outcome.Entitlement,
	}, nil
}

func (h Handler) GetReleasableHandler(
	ctx context.Context,
	recipient string,
	scheduleID uint64,
	allocation uint64,
) (httptransport.ReleasableResponse, error) {
	amount, err := h.Queries.GetReleasable(ctx, recipient, scheduleID, allocation)
	if err != nil {
		return httptransport.ReleasableResponse{}, err
	}
	return httptransport.ReleasableResponse{
		Recipient:  strings.TrimSpace(recipient),
		ScheduleID: scheduleID,
		Releasable: amount,
	}, nil
}

func (h Handler) GetClaimRecordHandler(
	ctx context.Context,
	recipient string,
) (httptransport.ClaimRecordDTO, error) {
	record, err := h.Queries.GetClaimRecord(ctx, recipient)
	if err != nil {
		return httptransport.ClaimRecordDTO{}, err
	}
	return mapClaimRecord(record), nil
}

func mapSchedule(schedule entities.Schedule) httptransport.ScheduleDTO {
	return httptransport.ScheduleDTO{
		ID:             schedule.ID,
		Name:           schedule.Name,
		StartTime:      schedule.StartTime.Format(time.RFC3339),
		CliffSeconds:   int64(schedule.CliffDuration / time.Second),
		CliffFraction:  schedule.CliffFraction,
		VestingSeconds: int64(schedule.VestingDuration / time.Second),
		ExpiryTime:     schedule.ExpiryTime.Format(time.RFC3339),
		RewardFraction: schedule.RewardFraction,
		CommitmentRoot: hex.EncodeToString(schedule.CommitmentRoot[:]),
		ReleaseMode:    string(schedule.ReleaseMode),
		Active:         schedule.Active,
	}
}

func mapClaimRecord(record entities.ClaimRecord) httptransport.ClaimRecordDTO {
	dto := httptransport.ClaimRecordDTO{
		Recipient:      record.Recipient,
		ScheduleID:     record.ScheduleID,
		Status:         string(record.Status),
		ClaimedTotal:   record.ClaimedTotal,
		CliffSettled:   record.CliffSettled,
		DeferredAmount: record.DeferredAmount,
	}
	if !record.LastClaimTime.IsZero() {
		dto.LastClaimTime = record.LastClaimTime.Format(time.RFC3339)
	}
	if !record.DeferredStart.IsZero() {
		dto.DeferredStart = record.DeferredStart.Format(time.RFC3339)
	}
	return dto
}

func decodeRoot(value string) ([32]byte, error) {
	var root [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil || len(raw) != len(root) {
		return root, domainerrors.ErrInvalidSchedule
	}
	copy(root[:], raw)
	return root, nil
}

func decodeProof(values []string) ([][32]byte, error) {
	path := make([][32]byte, 0, len(values))
	for _, value := range values {
		raw, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil || len(raw) != 32 {
			return nil, domainerrors.ErrProofInvalid
		}
		var node [32]byte
		copy(node[:], raw)
		path = append(path, node)
	}
	return path, nil
}
