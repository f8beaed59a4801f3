//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/allergy"
	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/interaction"
	"github.com/ehr/medsafety/internal/domain/medication"
	"github.com/ehr/medsafety/internal/domain/reminder"
	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/internal/platform/db"
)

// globalPool is the shared database, migrated once in TestMain.
var globalPool *pgxpool.Pool

// TestMain uses INTEGRATION_DATABASE_URL when set and otherwise starts a
// Postgres container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		c, err := startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
		connStr, stop = c.connStr, c.stop
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 10})
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, migrationsDir(), zerolog.Nop()).Up(ctx); err != nil {
		pool.Close()
		stop()
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	stop()
	os.Exit(code)
}

// migrationsDir locates the migrations directory relative to this file.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// stack is the production wiring minus the network collaborators.
type stack struct {
	names     *canonical.Canonicalizer
	records   medication.RepoPG
	allergies allergy.Repository
	cache     interaction.CacheRepository
	reminders *reminder.Service
	registry  *medication.Registry
}

func newStack() *stack {
	logger := zerolog.Nop()
	names := canonical.Default()
	s := &stack{
		names:     names,
		records:   medication.NewRepoPG(globalPool),
		allergies: allergy.NewRepoPG(globalPool),
		cache:     interaction.NewCacheRepoPG(globalPool),
	}
	s.reminders = reminder.NewService(reminder.NewReminderRepoPG(globalPool), reminder.NewNudgeRepoPG(globalPool), logger)
	orchestrator := safety.NewOrchestrator(safety.NewRuleEngine(names), medication.NewSafetySource(s.records), s.allergies, nil, logger)
	s.registry = medication.NewRegistry(s.records, names, orchestrator, s.reminders, s.cache,
		medication.SyncConfig{LookupCacheSize: 64}, logger)
	return s
}

// insertPendingNudge writes a nudge row directly; nothing in the service
// creates nudges.
func insertPendingNudge(t *testing.T, ctx context.Context, patientID, medicationID uuid.UUID) {
	t.Helper()
	_, err := globalPool.Exec(ctx, `
		INSERT INTO medication_nudge (id, patient_id, medication_id, status, scheduled_for, message)
		VALUES ($1, $2, $3, $4, NOW() + INTERVAL '1 hour', 'time for your dose')`,
		uuid.New(), patientID, medicationID, reminder.NudgePending)
	if err != nil {
		t.Fatalf("insert nudge: %v", err)
	}
}

func countRows(t *testing.T, ctx context.Context, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := globalPool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func ptrStr(s string) *string { return &s }
