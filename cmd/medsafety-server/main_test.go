package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/config"
	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/medication"
)

func testServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		CORSOrigins:    []string{"*"},
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "1M",
		SyncBodyLimit:  "5M",
	}
	registry := medication.NewRegistry(nil, canonical.Default(), nil, nil, nil, medication.SyncConfig{}, zerolog.Nop())
	dbHealth := func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "healthy"}) }
	return newServer(cfg, zerolog.Nop(), dbHealth, medication.NewHandler(registry))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string][]string{
		"serve":    nil,
		"migrate":  {"up", "status"},
		"backfill": {"canonical"},
		"recheck":  nil,
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected %s command, got %v", name, err)
			continue
		}
		for _, sub := range subs {
			if c, _, err := root.Find([]string{name, sub}); err != nil || c.Name() != sub {
				t.Errorf("expected %s %s command", name, sub)
			}
		}
	}

	recheck, _, _ := root.Find([]string{"recheck"})
	if recheck.Flags().Lookup("patient") == nil {
		t.Error("expected --patient flag on recheck")
	}
}

func TestNewServer_Routes(t *testing.T) {
	e := testServer(t)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, route := range []string{
		"GET /health",
		"GET /health/db",
		"GET /metrics",
		"POST /api/v1/patients/:patient_id/medications/safety-check",
		"GET /api/v1/patients/:patient_id/medications",
		"POST /api/v1/medications/sync",
	} {
		if !registered[route] {
			t.Errorf("expected route %s", route)
		}
	}
}

func TestNewServer_Health(t *testing.T) {
	e := testServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected a request id on the response")
	}
}

func TestNewServer_SyncWithoutPatient(t *testing.T) {
	e := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/medications/sync",
		strings.NewReader(`{"medications":{"started":[{"name":"Metformin"}]}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	if got := newLogger(&config.Config{LogLevel: "debug"}).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", got)
	}
	if got := newLogger(&config.Config{LogLevel: "bogus"}).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
	if got := newLogger(nil).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info for nil config, got %s", got)
	}
}

func TestNewLogger_BootstrapEmitsFatal(t *testing.T) {
	logger := newLogger(nil)
	if !logger.Fatal().Enabled() {
		t.Error("expected the config-less logger to report fatal startup errors")
	}
	if logger.Debug().Enabled() {
		t.Error("expected debug events to be filtered without a config")
	}
}
