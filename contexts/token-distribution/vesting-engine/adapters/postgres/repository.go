package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateSchedule(ctx context.Context, schedule entities.Schedule) (uint64, error) {
	row := scheduleModelFromEntity(schedule)
	// Sequential id allocation happens inside the create transaction so two
	// concurrent creates cannot both observe the same max(id).
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxID uint64
		if err := tx.Model(&scheduleModel{}).
			Select("COALESCE(MAX(id), 0)").
			Scan(&maxID).Error; err != nil {
			return err
		}
		row.ID = maxID + 1
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, r.logError("vesting_repo_create_schedule_failed", err,
			"name", row.Name,
		)
	}
	return row.ID, nil
}

func (r *Repository) GetSchedule(ctx context.Context, scheduleID uint64) (entities.Schedule, error) {
	if scheduleID == 0 {
		return entities.Schedule{}, domainerrors.ErrScheduleNotFound
	}
	var row scheduleModel
	err := r.db.WithContext(ctx).
		Where("id = ?", scheduleID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Schedule{}, domainerrors.ErrScheduleNotFound
		}
		return entities.Schedule{}, r.logError("vesting_repo_get_schedule_failed", err,
			"schedule_id", scheduleID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSchedules(ctx context.Context) ([]entities.Schedule, error) {
	var rows []scheduleModel
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("vesting_repo_list_schedules_failed", err)
	}
	schedules := make([]entities.Schedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, row.toEntity())
	}
	return schedules, nil
}

func (r *Repository) UpdateSchedule(ctx context.Context, schedule entities.Schedule) error {
	row := scheduleModelFromEntity(schedule)
	result := r.db.WithContext(ctx).
		Model(&scheduleModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"commitment_root": row.CommitmentRoot,
			"active":          row.Active,
			"updated_at":      row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("vesting_repo_update_schedule_failed", result.Error,
			"schedule_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("vesting_repo_update_schedule_not_found",
			"schedule_id", row.ID,
		)
		return domainerrors.ErrScheduleNotFound
	}
	return nil
}

func (r *Repository) GetClaimRecord(ctx context.Context, recipient string) (entities.ClaimRecord, bool, error) {
	var row claimRecordModel
	err := r.db.WithContext(ctx).
		Where("recipient = ?", strings.TrimSpace(recipient)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ClaimRecord{}, false, nil
		}
		return entities.ClaimRecord{}, false, r.logError("vesting_repo_get_claim_record_failed", err,
			"recipient", strings.TrimSpace(recipient),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveClaimRecord(ctx context.Context, record entities.ClaimRecord) error {
	row := claimRecordModelFromEntity(record)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "recipient"}},
		DoUpdates: clause.Assignments(map[string]any{
			"schedule_id":     row.ScheduleID,
			"status":          row.Status,
			"claimed_total":   row.ClaimedTotal,
			"last_claim_time": row.LastClaimTime,
			"cliff_settled":   row.CliffSettled,
			"deferred_amount": row.DeferredAmount,
			"deferred_start":  row.DeferredStart,
			"updated_at":      row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("vesting_repo_save_claim_record_conflict",
				"recipient", row.Recipient,
			)
		}
		return r.logError("vesting_repo_save_claim_record_failed", err,
			"recipient", row.Recipient,
		)
	}
	return nil
}

func (r *Repository) ListClaimRecords(ctx context.Context) ([]entities.ClaimRecord, error) {
	var rows []claimRecordModel
	if err := r.db.WithContext(ctx).
		Order("recipient ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("vesting_repo_list_claim_records_failed", err)
	}
	records := make([]entities.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("vesting_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      raw,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return r.logError("vesting_repo_append_outbox_insert_failed", err,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("vesting_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("vesting_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("vesting_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrOutboxMessageNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "token-distribution/vesting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("vesting repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "token-distribution/vesting-engine",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("vesting repository warning", fields...)
}

type scheduleModel struct {
	ID              uint64    `gorm:"column:id;primaryKey"`
	Name            string    `gorm:"column:name"`
	StartTime       time.Time `gorm:"column:start_time"`
	CliffSeconds    int64     `gorm:"column:cliff_seconds"`
	CliffFraction   uint32    `gorm:"column:cliff_fraction"`
	VestingSeconds  int64     `gorm:"column:vesting_seconds"`
	ExpiryTime      time.Time `gorm:"column:expiry_time"`
	RewardFraction  uint32    `gorm:"column:reward_fraction"`
	CommitmentRoot  []byte    `gorm:"column:commitment_root;type:bytea"`
	ReleaseMode     string    `gorm:"column:release_mode"`
	Active          bool      `gorm:"column:active"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (scheduleModel) TableName() string {
	return "vesting_schedules"
}

func scheduleModelFromEntity(schedule entities.Schedule) scheduleModel {
	root := make([]byte, len(schedule.CommitmentRoot))
	copy(root, schedule.CommitmentRoot[:])
	return scheduleModel{
		ID:             schedule.ID,
		Name:           strings.TrimSpace(schedule.Name),
		StartTime:      schedule.StartTime.UTC(),
		CliffSeconds:   int64(schedule.CliffDuration / time.Second),
		CliffFraction:  schedule.CliffFraction,
		VestingSeconds: int64(schedule.VestingDuration / time.Second),
		ExpiryTime:     schedule.ExpiryTime.UTC(),
		RewardFraction: schedule.RewardFraction,
		CommitmentRoot: root,
		ReleaseMode:    string(schedule.ReleaseMode),
		Active:         schedule.Active,
		CreatedAt:      schedule.CreatedAt.UTC(),
		UpdatedAt:      schedule.UpdatedAt.UTC(),
	}
}

func (m scheduleModel) toEntity() entities.Schedule {
	var root [32]byte
	copy(root[:], m.CommitmentRoot)
	return entities.Schedule{
		ID:              m.ID,
		Name:            m.Name,
		StartTime:       m.StartTime.UTC(),
		CliffDuration:   time.Duration(m.CliffSeconds) * time.Second,
		CliffFraction:   m.CliffFraction,
		VestingDuration: time.Duration(m.VestingSeconds) * time.Second,
		ExpiryTime:      m.ExpiryTime.UTC(),
		RewardFraction:  m.RewardFraction,
		CommitmentRoot:  root,
		ReleaseMode:     entities.ReleaseMode(m.ReleaseMode),
		Active:          m.Active,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type claimRecordModel struct {
	Recipient      string     `gorm:"column:recipient;primaryKey"`
	ScheduleID     uint64     `gorm:"column:schedule_id"`
	Status         string     `gorm:"column:status"`
	ClaimedTotal   uint64     `gorm:"column:claimed_total"`
	LastClaimTime  *time.Time `gorm:"column:last_claim_time"`
	CliffSettled   bool       `gorm:"column:cliff_settled"`
	DeferredAmount uint64     `gorm:"column:deferred_amount"`
	DeferredStart  *time.Time `gorm:"column:deferred_start"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (claimRecordModel) TableName() string {
	return "claim_records"
}

func claimRecordModelFromEntity(record entities.ClaimRecord) claimRecordModel {
	return claimRecordModel{
		Recipient:      strings.TrimSpace(record.Recipient),
		ScheduleID:     record.ScheduleID,
		Status:         string(record.Status),
		ClaimedTotal:   record.ClaimedTotal,
		LastClaimTime:  optionalTime(record.LastClaimTime),
		CliffSettled:   record.CliffSettled,
		DeferredAmount: record.DeferredAmount,
		DeferredStart:  optionalTime(record.DeferredStart),
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func (m claimRecordModel) toEntity() entities.ClaimRecord {
	return entities.ClaimRecord{
		Recipient:      m.Recipient,
		ScheduleID:     m.ScheduleID,
		Status:         entities.ClaimStatus(m.Status),
		ClaimedTotal:   m.ClaimedTotal,
		LastClaimTime:  derefTime(m.LastClaimTime),
		CliffSettled:   m.CliffSettled,
		DeferredAmount: m.DeferredAmount,
		DeferredStart:  derefTime(m.DeferredStart),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "vesting_outbox"
}

func optionalTime(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	t := value.UTC()
	return &t
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ScheduleRepository = (*Repository)(nil)
var _ ports.ClaimRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
