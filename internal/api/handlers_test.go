package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/internal/api/health"
	"alertbus/internal/domain/delivery"
	"alertbus/internal/routing"
	"alertbus/internal/stats"
	"alertbus/pkg/logger"
)

func newTestServer(t *testing.T) (http.Handler, *stats.Aggregator, *routing.AlertRouter) {
	t.Helper()
	log := logger.NewNop()
	aggregator := stats.New(stats.DefaultConfig(), log)
	router := routing.NewAlertRouter(log)

	handlers := NewHandlers(aggregator, router, nil, nil, nil, log)
	srv := NewServer(ServerConfig{ServiceName: "alertbus", Version: "test"}, health.New(log, "alertbus", "test"), handlers, log)
	return srv.Handler(), aggregator, router
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatsSummary(t *testing.T) {
	h, aggregator, _ := newTestServer(t)
	aggregator.Record(delivery.Metric{Type: "entry", Priority: "high", Channel: delivery.ChannelChat, Timestamp: time.Now(), Success: true, DeliveryTimeMs: 120})
	aggregator.Record(delivery.Metric{Type: "exit", Priority: "high", Channel: delivery.ChannelChat, Timestamp: time.Now(), Error: "timeout"})

	rec := get(t, h, "/api/stats/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary stats.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(2), summary.TotalSent)
	assert.Equal(t, int64(1), summary.Failed)
	assert.InDelta(t, 50.0, summary.SuccessRate, 0.01)
}

func TestStatsEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)

	for _, path := range []string{
		"/api/stats/hourly",
		"/api/stats/daily?days=3",
		"/api/stats/top-types?limit=5",
		"/api/stats/failures",
		"/api/stats/thresholds",
		"/api/stats/report?period=weekly",
		"/api/stats/dashboard",
		"/api/routing/stats",
		"/api/dispatches",
		"/api/workers",
	} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}
}

func TestStatsEndpoints_BadParams(t *testing.T) {
	h, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/stats/daily?days=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/stats/top-types?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/stats/report?period=yearly").Code)
}

func TestVoiceStats_Disabled(t *testing.T) {
	h, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/voice/stats").Code)
}

func TestRoutingRules_ListAndImport(t *testing.T) {
	h, _, router := newTestServer(t)

	rec := get(t, h, "/api/routing/rules")
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.Len(t, rules, len(router.ListRules()))

	body := `[{"rule_id":"gold","name":"Gold desk","event_types":["entry"],
		"targets":[{"target_type":"bot","target_id":"gold_desk","priority":1,"enabled":true}],
		"conditions":[{"field":"symbol","operator":"eq","value":"XAUUSD"}],
		"priority":80,"enabled":true}]`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/routing/rules?replace=false", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rule, err := router.GetRule("gold")
	require.NoError(t, err)
	assert.Equal(t, "Gold desk", rule.Name)
}

func TestRoutingRules_ImportRejectsInvalid(t *testing.T) {
	h, _, router := newTestServer(t)
	before := len(router.ListRules())

	body := `[{"rule_id":"bad","name":"Bad","event_types":["not_a_type"],"targets":[],"priority":1,"enabled":true}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/routing/rules", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
	assert.Len(t, router.ListRules(), before)
}

func TestRootAndProbes(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"alertbus","version":"test","status":"running"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, get(t, h, "/health/live").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/health/ready").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}
