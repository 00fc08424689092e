package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	treasuryerrors "tranche/contexts/token-distribution/treasury-service/domain/errors"
	treasuryhttp "tranche/contexts/token-distribution/treasury-service/transport/http"
)

func (s *Server) registerTreasuryRoutes() {
	s.mux.HandleFunc("POST /v1/treasury/deposits", s.handleTreasuryDeposit)
	s.mux.HandleFunc("POST /v1/treasury/allowances", s.handleTreasuryApprove)
	s.mux.HandleFunc("POST /v1/treasury/transfers", s.handleTreasuryTransfer)
	s.mux.HandleFunc("GET /v1/treasury/accounts/{address}", s.handleTreasuryBalance)
	s.mux.HandleFunc("GET /v1/treasury/allowances", s.handleTreasuryAllowance)
	s.mux.HandleFunc("GET /v1/treasury/payouts", s.handleTreasuryListPayouts)
}

func (s *Server) handleTreasuryDeposit(w http.ResponseWriter, r *http.Request) {
	if !requireTreasuryAdmin(w, r) {
		return
	}
	var req treasuryhttp.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTreasuryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.treasury.Handler.DepositHandler(r.Context(), req)
	if err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreasuryApprove(w http.ResponseWriter, r *http.Request) {
	if !requireTreasuryAdmin(w, r) {
		return
	}
	var req treasuryhttp.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTreasuryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.treasury.Handler.ApproveHandler(r.Context(), req)
	if err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreasuryTransfer(w http.ResponseWriter, r *http.Request) {
	if !requireTreasuryAdmin(w, r) {
		return
	}
	var req treasuryhttp.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTreasuryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.treasury.Handler.TransferHandler(r.Context(), req); err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": req.From, "to": req.To, "amount": req.Amount})
}

func (s *Server) handleTreasuryBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.treasury.Handler.GetBalanceHandler(r.Context(), r.PathValue("address"))
	if err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreasuryAllowance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.treasury.Handler.GetAllowanceHandler(r.Context(), query.Get("owner"), query.Get("spender"))
	if err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreasuryListPayouts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	offset := 0
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeTreasuryError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeTreasuryError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		offset = value
	}
	resp, err := s.treasury.Handler.ListPayoutsHandler(r.Context(), query.Get("recipient"), limit, offset)
	if err != nil {
		writeTreasuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireTreasuryAdmin(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Admin-Id") == "" {
		writeTreasuryError(w, http.StatusUnauthorized, "missing_admin", "X-Admin-Id header is required")
		return false
	}
	return true
}

func writeTreasuryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, treasuryerrors.ErrAccountNotFound):
		writeTreasuryError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, treasuryerrors.ErrInvalidTransfer):
		writeTreasuryError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, treasuryerrors.ErrInsufficientFunds):
		writeTreasuryError(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, treasuryerrors.ErrInsufficientAuthorization):
		writeTreasuryError(w, http.StatusForbidden, "insufficient_authorization", err.Error())
	default:
		writeTreasuryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeTreasuryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, treasuryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
