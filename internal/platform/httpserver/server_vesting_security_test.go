package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	treasuryservice "tranche/contexts/token-distribution/treasury-service"
	vestingengine "tranche/contexts/token-distribution/vesting-engine"
)

func newTestServer() *Server {
	treasury := treasuryservice.NewInMemoryModule(nil)
	vesting := vestingengine.NewInMemoryModule(nil, treasuryservice.PoolTransferrer{Service: treasury.Service}, nil)
	return New(vesting, treasury, nil, "")
}

func validScheduleBody() string {
	start := time.Now().UTC().Add(time.Hour)
	return `{
		"name": "seed-round",
		"start_time": "` + start.Format(time.RFC3339) + `",
		"vesting_seconds": 8640000,
		"expiry_time": "` + start.Add(200 * 24 * time.Hour).Format(time.RFC3339) + `",
		"commitment_root": "` + strings.Repeat("ab", 32) + `",
		"release_mode": "continuous"
	}`
}

func TestCreateScheduleRequiresAdminHeader(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/vesting/schedules", bytes.NewReader([]byte(validScheduleBody())))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateScheduleAcceptsAdminHeader(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/vesting/schedules", bytes.NewReader([]byte(validScheduleBody())))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Id", "admin-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSetActiveRequiresAdminHeader(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/vesting/schedules/1/active", bytes.NewReader([]byte(`{"active":false}`)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRotateRootRequiresAdminHeader(t *testing.T) {
	server := newTestServer()
	body := `{"commitment_root":"` + strings.Repeat("cd", 32) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/vesting/schedules/1/root", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClaimRejectsMalformedBody(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/vesting/claims", bytes.NewReader([]byte(`{"recipient":`)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetScheduleRejectsNonNumericID(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/vesting/schedules/not-a-number", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}
