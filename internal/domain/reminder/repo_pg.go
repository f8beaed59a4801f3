package reminder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/medsafety/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Reminder Repository ===========

type reminderRepoPG struct{ pool *pgxpool.Pool }

func NewReminderRepoPG(pool *pgxpool.Pool) ReminderRepository {
	return &reminderRepoPG{pool: pool}
}

const reminderCols = `id, patient_id, medication_id, medication_name, times, frequency, created_at`

func (r *reminderRepoPG) scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(&rem.ID, &rem.PatientID, &rem.MedicationID, &rem.MedicationName,
		&rem.Times, &rem.Frequency, &rem.CreatedAt)
	return &rem, err
}

func (r *reminderRepoPG) Create(ctx context.Context, rem *Reminder) error {
	rem.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication_reminder (id, patient_id, medication_id, medication_name, times, frequency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		rem.ID, rem.PatientID, rem.MedicationID, rem.MedicationName, rem.Times, rem.Frequency,
	).Scan(&rem.CreatedAt)
}

func (r *reminderRepoPG) ExistsForMedication(ctx context.Context, medicationID uuid.UUID) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medication_reminder WHERE medication_id = $1)`, medicationID,
	).Scan(&exists)
	return exists, err
}

func (r *reminderRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+reminderCols+` FROM medication_reminder WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Reminder
	for rows.Next() {
		rem, err := r.scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		items = append(items, rem)
	}
	return items, rows.Err()
}

func (r *reminderRepoPG) DeleteByMedication(ctx context.Context, medicationID uuid.UUID) (int64, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM medication_reminder WHERE medication_id = $1`, medicationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Nudge Repository ===========

type nudgeRepoPG struct{ pool *pgxpool.Pool }

func NewNudgeRepoPG(pool *pgxpool.Pool) NudgeRepository {
	return &nudgeRepoPG{pool: pool}
}

func (r *nudgeRepoPG) DeletePendingByMedication(ctx context.Context, medicationID uuid.UUID) (int64, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`DELETE FROM medication_nudge WHERE medication_id = $1 AND status = $2`, medicationID, NudgePending)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
