package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

// stubService records query calls and serves a fixed envelope or error.
type stubService struct {
	env        domain.Envelope
	err        error
	investment float64
}

func (s *stubService) QueryTracker(ctx context.Context) (domain.Envelope, error) {
	return s.env, s.err
}

func (s *stubService) QueryPairwise(ctx context.Context, investment float64) (domain.Envelope, error) {
	s.investment = investment
	return s.env, s.err
}

func (s *stubService) QueryTriangular(ctx context.Context) (domain.Envelope, error) {
	return s.env, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMux(svc OpportunityService) *http.ServeMux {
	h := NewOpportunityHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/opportunities/tracker", h.Tracker)
	mux.HandleFunc("GET /api/opportunities/pairwise", h.Pairwise)
	mux.HandleFunc("GET /api/opportunities/pairwise/{investment}", h.Pairwise)
	mux.HandleFunc("GET /api/opportunities/triangular", h.Triangular)
	return mux
}

func testEnvelope() domain.Envelope {
	return domain.Envelope{
		Key:             "arbipair_data",
		Data:            json.RawMessage(`[{"pair":"BTC / ETH"}]`),
		LastRefreshTime: 1700000000000,
		TTL:             300,
		NextRefreshTime: 1700000300000,
		ServerTime:      1700000100000,
	}
}

func TestTrackerReturnsEnvelope(t *testing.T) {
	svc := &stubService{env: testEnvelope()}
	rec := httptest.NewRecorder()
	newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/tracker", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, int64(1700000000000), env.LastRefreshTime)
	assert.Equal(t, 300, env.TTL)
}

func TestPairwiseParsesInvestmentPathParam(t *testing.T) {
	svc := &stubService{env: testEnvelope()}
	rec := httptest.NewRecorder()
	newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/pairwise/50000", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(50000), svc.investment)
}

func TestPairwiseWithoutInvestmentUsesServiceDefault(t *testing.T) {
	svc := &stubService{env: testEnvelope()}
	rec := httptest.NewRecorder()
	newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/pairwise", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.investment, "zero signals the service to apply its default")
}

func TestPairwiseRejectsMalformedInvestment(t *testing.T) {
	svc := &stubService{env: testEnvelope()}

	for _, raw := range []string{"abc", "-5", "0"} {
		rec := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/pairwise/"+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "investment %q", raw)
	}
}

func TestQueryFailureReturnsServiceError(t *testing.T) {
	svc := &stubService{err: errors.New("no payload could be produced")}

	for _, path := range []string{
		"/api/opportunities/tracker",
		"/api/opportunities/pairwise/100000",
		"/api/opportunities/triangular",
	} {
		rec := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code, "path %s", path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
	}
}

func TestTriangularWrapsDataOnly(t *testing.T) {
	env := testEnvelope()
	env.Data = json.RawMessage(`[{"exchange":"binance"}]`)
	svc := &stubService{env: env}

	rec := httptest.NewRecorder()
	newTestMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/triangular", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"exchange":"binance"}]}`, rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(nil, testLogger())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "cache")
}
