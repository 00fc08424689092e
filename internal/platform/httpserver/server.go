package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	treasuryservice "tranche/contexts/token-distribution/treasury-service"
	vestingengine "tranche/contexts/token-distribution/vesting-engine"
	vestingerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/domain/vesting"
	vestinghttp "tranche/contexts/token-distribution/vesting-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tranche/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	vesting  vestingengine.Module
	treasury treasuryservice.Module
}

func New(
	vestingModule vestingengine.Module,
	treasuryModule treasuryservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		vesting:  vestingModule,
		treasury: treasuryModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/vesting/schedules", s.handleCreateSchedule)
	s.mux.HandleFunc("GET /v1/vesting/schedules", s.handleListSchedules)
	s.mux.HandleFunc("GET /v1/vesting/schedules/{schedule_id}", s.handleGetSchedule)
	s.mux.HandleFunc("POST /v1/vesting/schedules/{schedule_id}/active", s.handleSetActive)
	s.mux.HandleFunc("POST /v1/vesting/schedules/{schedule_id}/root", s.handleRotateRoot)
	s.mux.HandleFunc("POST /v1/vesting/claims", s.handleClaim)
	s.mux.HandleFunc("GET /v1/vesting/claims/{recipient}", s.handleGetClaimRecord)
	s.mux.HandleFunc("GET /v1/vesting/releasable", s.handleGetReleasable)

	s.registerTreasuryRoutes()
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req vestinghttp.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.vesting.Handler.CreateScheduleHandler(r.Context(), req)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vesting.Handler.ListSchedulesHandler(r.Context())
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := parseScheduleID(w, r.PathValue("schedule_id"))
	if !ok {
		return
	}
	resp, err := s.vesting.Handler.GetScheduleHandler(r.Context(), scheduleID)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	scheduleID, ok := parseScheduleID(w, r.PathValue("schedule_id"))
	if !ok {
		return
	}
	var req vestinghttp.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.vesting.Handler.SetActiveHandler(r.Context(), scheduleID, req); err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule_id": scheduleID, "active": req.Active})
}

func (s *Server) handleRotateRoot(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	scheduleID, ok := parseScheduleID(w, r.PathValue("schedule_id"))
	if !ok {
		return
	}
	var req vestinghttp.RotateRootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.vesting.Handler.RotateRootHandler(r.Context(), scheduleID, req); err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule_id": scheduleID})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req vestinghttp.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.vesting.Handler.ClaimHandler(r.Context(), req)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetClaimRecord(w http.ResponseWriter, r *http.Request) {
	recipient := r.PathValue("recipient")
	resp, err := s.vesting.Handler.GetClaimRecordHandler(r.Context(), recipient)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReleasable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	recipient := query.Get("recipient")
	scheduleID, err := strconv.ParseUint(query.Get("schedule_id"), 10, 64)
	if err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_schedule_id", "schedule_id must be an unsigned integer")
		return
	}
	allocation, err := strconv.ParseUint(query.Get("allocation"), 10, 64)
	if err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_allocation", "allocation must be an unsigned integer")
		return
	}
	resp, err := s.vesting.Handler.GetReleasableHandler(r.Context(), recipient, scheduleID, allocation)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-Admin-Id")) == "" {
		writeVestingError(w, http.StatusUnauthorized, "missing_admin", "X-Admin-Id header is required")
		return false
	}
	return true
}

func parseScheduleID(w http.ResponseWriter, raw string) (uint64, bool) {
	scheduleID, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || scheduleID == 0 {
		writeVestingError(w, http.StatusBadRequest, "invalid_schedule_id", "schedule_id must be a positive integer")
		return 0, false
	}
	return scheduleID, true
}

func writeVestingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vestingerrors.ErrScheduleNotFound),
		errors.Is(err, vestingerrors.ErrClaimRecordNotFound):
		writeVestingError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, vestingerrors.ErrInvalidSchedule),
		errors.Is(err, vestingerrors.ErrInvalidFraction),
		errors.Is(err, vestingerrors.ErrInvalidReward),
		errors.Is(err, vestingerrors.ErrInvalidAmount):
		writeVestingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, vestingerrors.ErrProofInvalid):
		writeVestingError(w, http.StatusForbidden, "proof_invalid", err.Error())
	case errors.Is(err, vestingerrors.ErrScheduleInactive):
		writeVestingError(w, http.StatusConflict, "schedule_inactive", err.Error())
	case errors.Is(err, vestingerrors.ErrAlreadyEnrolledElsewhere):
		writeVestingError(w, http.StatusConflict, "already_enrolled", err.Error())
	case errors.Is(err, vestingerrors.ErrEnrollmentClosed):
		writeVestingError(w, http.StatusConflict, "enrollment_closed", err.Error())
	case errors.Is(err, vestingerrors.ErrClaimNotAllowed):
		writeVestingError(w, http.StatusConflict, "claim_not_allowed", err.Error())
	case errors.Is(err, vestingerrors.ErrNoTokensToClaim),
		errors.Is(err, vesting.ErrDeferredNotMature):
		writeVestingError(w, http.StatusConflict, "nothing_to_claim", err.Error())
	case errors.Is(err, vestingerrors.ErrTransferFailed):
		writeVestingError(w, http.StatusBadGateway, "transfer_failed", err.Error())
	default:
		writeVestingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVestingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, vestinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
