package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tranche/contexts/token-distribution/treasury-service/application"
	"tranche/contexts/token-distribution/treasury-service/ports"
	httptransport "tranche/contexts/token-distribution/treasury-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) DepositHandler(
	ctx context.Context,
	req httptransport.DepositRequest,
) (httptransport.AccountDTO, error) {
	account, err := h.Service.Deposit(ctx, application.DepositCommand{
		Account: req.Account,
		Amount:  req.Amount,
	})
	if err != nil {
		h.logWarn("treasury_http_deposit_failed",
			"account", strings.TrimSpace(req.Account),
			"error", err.Error(),
		)
		return httptransport.AccountDTO{}, err
	}
	return mapAccount(account), nil
}

func (h Handler) ApproveHandler(
	ctx context.Context,
	req httptransport.ApproveRequest,
) (httptransport.AllowanceDTO, error) {
	allowance, err := h.Service.Approve(ctx, application.ApproveCommand{
		Owner:   req.Owner,
		Spender: req.Spender,
		Amount:  req.Amount,
	})
	if err != nil {
		h.logWarn("treasury_http_approve_failed",
			"owner", strings.TrimSpace(req.Owner),
			"spender", strings.TrimSpace(req.Spender),
			"error", err.Error(),
		)
		return httptransport.AllowanceDTO{}, err
	}
	return mapAllowance(allowance), nil
}

func (h Handler) TransferHandler(
	ctx context.Context,
	req httptransport.TransferRequest,
) error {
	err := h.Service.Transfer(ctx, application.TransferCommand{
		Spender: req.Spender,
		From:    req.From,
		To:      req.To,
		Amount:  req.Amount,
	})
	if err != nil {
		h.logWarn("treasury_http_transfer_failed",
			"from", strings.TrimSpace(req.From),
			"to", strings.TrimSpace(req.To),
			"amount", req.Amount,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (h Handler) GetBalanceHandler(
	ctx context.Context,
	address string,
) (httptransport.AccountDTO, error) {
	account, err := h.Service.BalanceOf(ctx, address)
	if err != nil {
		return httptransport.AccountDTO{}, err
	}
	return mapAccount(account), nil
}

func (h Handler) GetAllowanceHandler(
	ctx context.Context,
	owner string,
	spender string,
) (httptransport.AllowanceDTO, error) {
	allowance, err := h.Service.AllowanceOf(ctx, owner, spender)
	if err != nil {
		return httptransport.AllowanceDTO{}, err
	}
	return mapAllowance(allowance), nil
}

func (h Handler) ListPayoutsHandler(
	ctx context.Context,
	recipient string,
	limit int,
	offset int,
) ([]httptransport.PayoutDTO, error) {
	payouts, err := h.Service.ListPayouts(ctx, recipient, limit, offset)
	if err != nil {
		return nil, err
	}
	dtos := make([]httptransport.PayoutDTO, 0, len(payouts))
	for _, payout := range payouts {
		dtos = append(dtos, httptransport.PayoutDTO{
			PayoutID:      payout.PayoutID,
			Recipient:     payout.Recipient,
			ScheduleID:    payout.ScheduleID,
			Amount:        payout.Amount,
			SourceEventID: payout.SourceEventID,
			RecordedAt:    payout.RecordedAt.Format(time.RFC3339),
		})
	}
	return dtos, nil
}

func (h Handler) logWarn(event string, attrs ...any) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "token-distribution/treasury-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	logger.Warn("treasury http request failed", fields...)
}

func mapAccount(account ports.Account) httptransport.AccountDTO {
	dto := httptransport.AccountDTO{
		Address: account.Address,
		Balance: account.Balance,
	}
	if !account.UpdatedAt.IsZero() {
		dto.UpdatedAt = account.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func mapAllowance(allowance ports.Allowance) httptransport.AllowanceDTO {
	dto := httptransport.AllowanceDTO{
		Owner:     allowance.Owner,
		Spender:   allowance.Spender,
		Remaining: allowance.Remaining,
	}
	if !allowance.UpdatedAt.IsZero() {
		dto.UpdatedAt = allowance.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}
