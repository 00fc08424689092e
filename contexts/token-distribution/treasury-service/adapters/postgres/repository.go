package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tranche/contexts/token-distribution/treasury-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) GetAccount(ctx context.Context, address string) (ports.Account, bool, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("address = ?", strings.TrimSpace(address)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, false, nil
		}
		return ports.Account{}, false, r.logError("treasury_repo_get_account_failed", err,
			"address", strings.TrimSpace(address),
		)
	}
	return row.toPort(), true, nil
}

func (r *Repository) SaveAccount(ctx context.Context, account ports.Account) error {
	row := accountModel{
		Address:   strings.TrimSpace(account.Address),
		Balance:   account.Balance,
		UpdatedAt: account.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    row.Balance,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return r.logError("treasury_repo_save_account_failed", err,
			"address", row.Address,
		)
	}
	return nil
}

func (r *Repository) GetAllowance(ctx context.Context, owner string, spender string) (ports.Allowance, bool, error) {
	var row allowanceModel
	err := r.db.WithContext(ctx).
		Where("owner = ? AND spender = ?", strings.TrimSpace(owner), strings.TrimSpace(spender)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Allowance{}, false, nil
		}
		return ports.Allowance{}, false, r.logError("treasury_repo_get_allowance_failed", err,
			"owner", strings.TrimSpace(owner),
			"spender", strings.TrimSpace(spender),
		)
	}
	return row.toPort(), true, nil
}

func (r *Repository) SaveAllowance(ctx context.Context, allowance ports.Allowance) error {
	row := allowanceModel{
		Owner:     strings.TrimSpace(allowance.Owner),
		Spender:   strings.TrimSpace(allowance.Spender),
		Remaining: allowance.Remaining,
		UpdatedAt: allowance.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.Assignments(map[string]any{
			"remaining":  row.Remaining,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return r.logError("treasury_repo_save_allowance_failed", err,
			"owner", row.Owner,
			"spender", row.Spender,
		)
	}
	return nil
}

func (r *Repository) RecordPayout(ctx context.Context, payout ports.Payout) error {
	row := payoutModel{
		PayoutID:      strings.TrimSpace(payout.PayoutID),
		Recipient:     strings.TrimSpace(payout.Recipient),
		ScheduleID:    payout.ScheduleID,
		Amount:        payout.Amount,
		SourceEventID: strings.TrimSpace(payout.SourceEventID),
		RecordedAt:    payout.RecordedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payout_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("treasury_repo_record_payout_conflict",
				"payout_id", row.PayoutID,
			)
			return nil
		}
		return r.logError("treasury_repo_record_payout_failed", err,
			"payout_id", row.PayoutID,
		)
	}
	return nil
}

func (r *Repository) ListPayoutsByRecipient(
	ctx context.Context,
	recipient string,
	limit int,
	offset int,
) ([]ports.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("recipient = ?", strings.TrimSpace(recipient)).
		Order("recorded_at DESC, payout_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, r.logError("treasury_repo_list_payouts_failed", err,
			"recipient", strings.TrimSpace(recipient),
		)
	}
	payouts := make([]ports.Payout, 0, len(rows))
	for _, row := range rows {
		payouts = append(payouts, row.toPort())
	}
	return payouts, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "token-distribution/treasury-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("treasury repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "token-distribution/treasury-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("treasury repository warning", fields...)
}

type accountModel struct {
	Address   string    `gorm:"column:address;primaryKey"`
	Balance   uint64    `gorm:"column:balance"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string {
	return "treasury_accounts"
}

func (m accountModel) toPort() ports.Account {
	return ports.Account{
		Address:   m.Address,
		Balance:   m.Balance,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type allowanceModel struct {
	Owner     string    `gorm:"column:owner;primaryKey"`
	Spender   string    `gorm:"column:spender;primaryKey"`
	Remaining uint64    `gorm:"column:remaining"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (allowanceModel) TableName() string {
	return "treasury_allowances"
}

func (m allowanceModel) toPort() ports.Allowance {
	return ports.Allowance{
		Owner:     m.Owner,
		Spender:   m.Spender,
		Remaining: m.Remaining,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type payoutModel struct {
	PayoutID      string    `gorm:"column:payout_id;primaryKey"`
	Recipient     string    `gorm:"column:recipient"`
	ScheduleID    uint64    `gorm:"column:schedule_id"`
	Amount        uint64    `gorm:"column:amount"`
	SourceEventID string    `gorm:"column:source_event_id"`
	RecordedAt    time.Time `gorm:"column:recorded_at"`
}

func (payoutModel) TableName() string {
	return "treasury_payouts"
}

func (m payoutModel) toPort() ports.Payout {
	return ports.Payout{
		PayoutID:      m.PayoutID,
		Recipient:     m.Recipient,
		ScheduleID:    m.ScheduleID,
		Amount:        m.Amount,
		SourceEventID: m.SourceEventID,
		RecordedAt:    m.RecordedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Repository = (*Repository)(nil)
