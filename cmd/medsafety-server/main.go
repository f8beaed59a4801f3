package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ehr/medsafety/internal/domain/interaction"
	"github.com/ehr/medsafety/internal/domain/medication"
	"github.com/ehr/medsafety/internal/platform/db"
	"github.com/ehr/medsafety/internal/platform/scheduler"
)

const recheckJob = "safety-recheck"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "medsafety-server",
		Short:        "Medication safety and registry service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(recheckCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(nil)
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a := buildApp(pool, cfg, logger)
	e := newServer(cfg, logger, db.HealthHandler(pool), medication.NewHandler(a.registry))

	if cfg.RecheckEnabled {
		sched := scheduler.New(time.Local, logger)
		if err := sched.Daily(recheckJob, cfg.RecheckAt, cfg.RecheckTimeout, func(ctx context.Context) error {
			_, err := a.rechecker.RunAll(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("schedule recheck: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		logger.Info().Str("at", cfg.RecheckAt).Msg("safety recheck scheduled")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir, newLogger(cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir, newLogger(cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Rewrite derived columns of stored records",
	}

	canonicalCmd := &cobra.Command{
		Use:   "canonical",
		Short: "Recompute canonical names and match statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			a := buildApp(pool, cfg, logger)
			if dryRun {
				records, err := a.records.ListAll(ctx)
				if err != nil {
					return fmt.Errorf("list records: %w", err)
				}
				pending := medication.PendingCanonicalUpdates(a.names, records)
				fmt.Printf("Scanned %d record(s); %d would change in %d batch(es).\n",
					len(records), len(pending), len(medication.SplitBatches(pending, cfg.BackfillBatchSize)))
				return nil
			}

			res, err := a.backfiller.Run(ctx)
			fmt.Printf("Scanned %d record(s); updated %d in %d batch(es), %d failed.\n",
				res.Scanned, res.Updated, res.Batches, res.FailedBatches)
			return err
		},
	}
	canonicalCmd.Flags().Bool("dry-run", false, "Report pending changes without writing")
	cmd.AddCommand(canonicalCmd)

	return cmd
}

func recheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recheck",
		Short: "Refresh external interaction warnings of active medications",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")

			var patientID uuid.UUID
			if patient != "" {
				id, err := uuid.Parse(patient)
				if err != nil {
					return fmt.Errorf("invalid --patient: %w", err)
				}
				patientID = id
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.RecheckTimeout)
			defer cancel()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			a := buildApp(pool, cfg, logger)
			var res interaction.RecheckResult
			if patientID != uuid.Nil {
				res, err = a.rechecker.RunPatient(ctx, patientID)
			} else {
				res, err = a.rechecker.RunAll(ctx)
			}
			fmt.Printf("Patients %d, checked %d, skipped %d, failed %d.\n", res.Patients, res.Checked, res.Skipped, res.Failed)
			return err
		},
	}
	cmd.Flags().String("patient", "", "Recheck only this patient id")
	return cmd
}
