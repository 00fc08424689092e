package application

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	domainerrors "tranche/contexts/token-distribution/treasury-service/domain/errors"
	"tranche/contexts/token-distribution/treasury-service/ports"
)

type DepositCommand struct {
	Account string
	Amount  uint64
}

type ApproveCommand struct {
	Owner   string
	Spender string
	Amount  uint64
}

type TransferCommand struct {
	Spender string
	From    string
	To      string
	Amount  uint64
}

// ReleasedEvent is the payload shape of vesting.released envelopes.
type ReleasedEvent struct {
	Recipient    string `json:"recipient"`
	ScheduleID   uint64 `json:"schedule_id"`
	Amount       uint64 `json:"amount"`
	ClaimedTotal uint64 `json:"claimed_total"`
}

// NewAccountGuard builds the mutex serializing balance mutations.
func NewAccountGuard() *sync.Mutex {
	return &sync.Mutex{}
}

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	Guard  *sync.Mutex
	Logger *slog.Logger
}

func (s Service) Deposit(ctx context.Context, cmd DepositCommand) (ports.Account, error) {
	address := strings.TrimSpace(cmd.Account)
	if address == "" || cmd.Amount == 0 {
		return ports.Account{}, domainerrors.ErrInvalidTransfer
	}
	s.lock()
	defer s.unlock()

	account, _, err := s.Repo.GetAccount(ctx, address)
	if err != nil {
		return ports.Account{}, err
	}
	account.Address = address
	account.Balance = saturatingAdd(account.Balance, cmd.Amount)
	account.UpdatedAt = s.now()
	if err := s.Repo.SaveAccount(ctx, account); err != nil {
		return ports.Account{}, err
	}
	resolveLogger(s.Logger).Info("treasury deposit applied",
		"event", "treasury_deposit_applied",
		"module", "token-distribution/treasury-service",
		"layer", "application",
		"account", address,
		"amount", cmd.Amount,
		"balance", account.Balance,
	)
	return account, nil
}

func (s Service) Approve(ctx context.Context, cmd ApproveCommand) (ports.Allowance, error) {
	owner := strings.TrimSpace(cmd.Owner)
	spender := strings.TrimSpace(cmd.Spender)
	if owner == "" || spender == "" || owner == spender {
		return ports.Allowance{}, domainerrors.ErrInvalidTransfer
	}
	s.lock()
	defer s.unlock()

	allowance := ports.Allowance{
		Owner:     owner,
		Spender:   spender,
		Remaining: cmd.Amount,
		UpdatedAt: s.now(),
	}
	if err := s.Repo.SaveAllowance(ctx, allowance); err != nil {
		return ports.Allowance{}, err
	}
	resolveLogger(s.Logger).Info("treasury allowance approved",
		"event", "treasury_allowance_approved",
		"module", "token-distribution/treasury-service",
		"layer", "application",
		"owner", owner,
		"spender", spender,
		"remaining", allowance.Remaining,
	)
	return allowance, nil
}

// Transfer moves tokens between accounts. A spender distinct from the
// source account must hold a sufficient allowance; the allowance is
// consumed before funds move.
func (s Service) Transfer(ctx context.Context, cmd TransferCommand) error {
	spender := strings.TrimSpace(cmd.Spender)
	from := strings.TrimSpace(cmd.From)
	to := strings.TrimSpace(cmd.To)
	if from == "" || to == "" || from == to || cmd.Amount == 0 {
		return domainerrors.ErrInvalidTransfer
	}
	s.lock()
	defer s.unlock()

	var allowance ports.Allowance
	delegated := spender != "" && spender != from
	if delegated {
		found := false
		var err error
		allowance, found, err = s.Repo.GetAllowance(ctx, from, spender)
		if err != nil {
			return err
		}
		if !found || allowance.Remaining < cmd.Amount {
			return domainerrors.ErrInsufficientAuthorization
		}
	}

	source, found, err := s.Repo.GetAccount(ctx, from)
	if err != nil {
		return err
	}
	if !found || source.Balance < cmd.Amount {
		return domainerrors.ErrInsufficientFunds
	}

	destination, _, err := s.Repo.GetAccount(ctx, to)
	if err != nil {
		return err
	}

	now := s.now()
	if delegated {
		allowance.Remaining -= cmd.Amount
		allowance.UpdatedAt = now
		if err := s.Repo.SaveAllowance(ctx, allowance); err != nil {
			return err
		}
	}
	source.Balance -= cmd.Amount
	source.UpdatedAt = now
	if err := s.Repo.SaveAccount(ctx, source); err != nil {
		return err
	}
	destination.Address = to
	destination.Balance = saturatingAdd(destination.Balance, cmd.Amount)
	destination.UpdatedAt = now
	if err := s.Repo.SaveAccount(ctx, destination); err != nil {
		return err
	}

	resolveLogger(s.Logger).Info("treasury transfer completed",
		"event", "treasury_transfer_completed",
		"module", "token-distribution/treasury-service",
		"layer", "application",
		"from", from,
		"to", to,
		"spender", spender,
		"amount", cmd.Amount,
	)
	return nil
}

func (s Service) BalanceOf(ctx context.Context, address string) (ports.Account, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return ports.Account{}, domainerrors.ErrInvalidTransfer
	}
	account, found, err := s.Repo.GetAccount(ctx, address)
	if err != nil {
		return ports.Account{}, err
	}
	if !found {
		return ports.Account{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

func (s Service) AllowanceOf(ctx context.Context, owner string, spender string) (ports.Allowance, error) {
	owner = strings.TrimSpace(owner)
	spender = strings.TrimSpace(spender)
	if owner == "" || spender == "" {
		return ports.Allowance{}, domainerrors.ErrInvalidTransfer
	}
	allowance, found, err := s.Repo.GetAllowance(ctx, owner, spender)
	if err != nil {
		return ports.Allowance{}, err
	}
	if !found {
		return ports.Allowance{Owner: owner, Spender: spender}, nil
	}
	return allowance, nil
}

// RecordRelease writes the payout audit row for a released vesting
// tranche. The event ID doubles as the payout ID so redelivered
// envelopes collapse into a single row.
func (s Service) RecordRelease(ctx context.Context, eventID string, release ReleasedEvent) error {
	eventID = strings.TrimSpace(eventID)
	recipient := strings.TrimSpace(release.Recipient)
	if eventID == "" || recipient == "" || release.Amount == 0 {
		return domainerrors.ErrInvalidTransfer
	}
	payout := ports.Payout{
		PayoutID:      eventID,
		Recipient:     recipient,
		ScheduleID:    release.ScheduleID,
		Amount:        release.Amount,
		SourceEventID: eventID,
		RecordedAt:    s.now(),
	}
	if err := s.Repo.RecordPayout(ctx, payout); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("treasury payout recorded",
		"event", "treasury_payout_recorded",
		"module", "token-distribution/treasury-service",
		"layer", "application",
		"payout_id", payout.PayoutID,
		"recipient", recipient,
		"schedule_id", release.ScheduleID,
		"amount", release.Amount,
	)
	return nil
}

func (s Service) ListPayouts(
	ctx context.Context,
	recipient string,
	limit int,
	offset int,
) ([]ports.Payout, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, domainerrors.ErrInvalidTransfer
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListPayoutsByRecipient(ctx, recipient, limit, offset)
}

func (s Service) lock() {
	if s.Guard != nil {
		s.Guard.Lock()
	}
}

func (s Service) unlock() {
	if s.Guard != nil {
		s.Guard.Unlock()
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
