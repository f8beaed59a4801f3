package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/config"
	"github.com/ehr/medsafety/internal/domain/allergy"
	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/interaction"
	"github.com/ehr/medsafety/internal/domain/medication"
	"github.com/ehr/medsafety/internal/domain/reminder"
	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/internal/platform/advisor"
	"github.com/ehr/medsafety/internal/platform/db"
	"github.com/ehr/medsafety/internal/platform/metrics"
	"github.com/ehr/medsafety/internal/platform/middleware"
	"github.com/ehr/medsafety/internal/platform/rxnav"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && l != zerolog.NoLevel {
			level = l
		}
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// app holds the wired services shared by the server and the maintenance
// commands.
type app struct {
	names      *canonical.Canonicalizer
	records    medication.RepoPG
	registry   *medication.Registry
	backfiller *medication.Backfiller
	rechecker  *interaction.Rechecker
}

func buildApp(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *app {
	names := canonical.Default()

	records := medication.NewRepoPG(pool)
	allergies := allergy.NewRepoPG(pool)
	externalCache := interaction.NewCacheRepoPG(pool)
	reminders := reminder.NewService(reminder.NewReminderRepoPG(pool), reminder.NewNudgeRepoPG(pool), logger)

	var adv safety.Advisor
	if cfg.AdvisorURL != "" {
		adv = advisor.New(cfg.AdvisorURL, cfg.AdvisorTimeout, logger)
	}
	orchestrator := safety.NewOrchestrator(
		safety.NewRuleEngine(names),
		medication.NewSafetySource(records),
		allergies,
		adv,
		logger,
	)

	registry := medication.NewRegistry(records, names, orchestrator, reminders, externalCache, medication.SyncConfig{
		UseAI:           cfg.SafetyUseAI,
		LookupCacheSize: cfg.LookupCacheSize,
		LookupCacheTTL:  cfg.LookupCacheTTL,
	}, logger)

	lookup := interaction.NewLookup(names, rxnav.New(cfg.InteractionAPIURL, cfg.InteractionTimeout), externalCache, interaction.LookupConfig{
		CacheTTL:    cfg.InteractionCacheTTL,
		CallTimeout: cfg.InteractionTimeout,
	}, logger)

	return &app{
		names:      names,
		records:    records,
		registry:   registry,
		backfiller: medication.NewBackfiller(records, names, cfg.BackfillBatchSize, logger),
		rechecker:  interaction.NewRechecker(lookup, medication.NewRecheckRegistry(records), logger),
	}
}

// newServer builds the echo instance with global middleware, probes and the
// versioned API group.
func newServer(cfg *config.Config, logger zerolog.Logger, dbHealth echo.HandlerFunc, handler *medication.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.SyncBodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if dbHealth != nil {
		e.GET("/health/db", dbHealth)
	}
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiV1.Use(middleware.RequestTimeout(timeout))
	handler.RegisterRoutes(apiV1)

	return e
}
