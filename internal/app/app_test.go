package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/observability"
	_ "github.com/odyssey-erp/p2p/internal/testing/guard"
	"github.com/odyssey-erp/p2p/jobs"
)

func TestInTestModeFromGuard(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_DIR", t.TempDir())
	t.Setenv("BULK_EXCLUDED_DATES", "2025-12-24..2025-12-26,2026-01-01")
	t.Setenv("DEFAULT_PRICE", "42.50")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "42.5", cfg.DefaultPrice.String())
	require.Len(t, cfg.BulkExcludedDates, 2)
	require.False(t, cfg.IsProduction())

	auto := cfg.Automation()
	require.Equal(t, "npx", auto.Command)
	require.Equal(t, []string{"playwright", "test"}, auto.Args)
	require.Equal(t, "tests/payment.spec.ts", auto.Scripts[automation.StepPayment])

	require.Equal(t, "EA", cfg.RecordDefaults().Unit)
	require.Equal(t, cfg.DefaultSupplier, cfg.CommandDefaults().Supplier)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("BULK_EXCLUDED_DATES", "someday")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("BULK_EXCLUDED_DATES", "")
	t.Setenv("DEFAULT_QUANTITY", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "shown", entry["msg"])

	require.Equal(t, parseLevel(&Config{LogLevel: "nonsense"}).String(), "INFO")
}

func TestRouterServesHealthMetricsAndProblems(t *testing.T) {
	cfg := &Config{AppEnv: "test", AppRequestTimeout: time.Minute, AppRateLimit: 1000}
	router := NewRouter(RouterParams{
		Logger:     NewLogger(cfg),
		Config:     cfg,
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
		InFlight:   func() int { return 2 },
		StartedAt:  time.Now(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, 2, health.InFlight)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "p2p_http_requests_total")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
