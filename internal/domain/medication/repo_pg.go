package medication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type recordRepoPG struct{ pool *pgxpool.Pool }

// RepoPG is the Postgres implementation of both Repository and BackfillStore.
type RepoPG interface {
	Repository
	BackfillStore
}

func NewRepoPG(pool *pgxpool.Pool) RepoPG {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, name, name_lower, canonical_name, dose, frequency, active,
	started_at, stopped_at, changed_at, needs_confirmation, medication_status, medication_warning,
	last_safety_check_hash, last_visit_id, created_at, updated_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var warnings []byte
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.Name, &rec.NameLower, &rec.CanonicalName,
		&rec.Dose, &rec.Frequency, &rec.Active,
		&rec.StartedAt, &rec.StoppedAt, &rec.ChangedAt, &rec.NeedsConfirmation, &rec.MedicationStatus, &warnings,
		&rec.LastSafetyCheckHash, &rec.LastVisitID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &rec.MedicationWarning); err != nil {
			return nil, fmt.Errorf("decode medication_warning: %w", err)
		}
	}
	return &rec, nil
}

func encodeWarnings(w []safety.Warning) ([]byte, error) {
	if w == nil {
		w = []safety.Warning{}
	}
	return json.Marshal(w)
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	warnings, err := encodeWarnings(rec.MedicationWarning)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_record (id, patient_id, name, name_lower, canonical_name, dose, frequency, active,
			started_at, stopped_at, changed_at, needs_confirmation, medication_status, medication_warning,
			last_safety_check_hash, last_visit_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.Name, rec.NameLower, rec.CanonicalName, rec.Dose, rec.Frequency, rec.Active,
		rec.StartedAt, rec.StoppedAt, rec.ChangedAt, rec.NeedsConfirmation, rec.MedicationStatus, warnings,
		rec.LastSafetyCheckHash, rec.LastVisitID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	warnings, err := encodeWarnings(rec.MedicationWarning)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE medication_record SET name = $2, name_lower = $3, canonical_name = $4, dose = $5, frequency = $6,
			active = $7, started_at = $8, stopped_at = $9, changed_at = $10, needs_confirmation = $11,
			medication_status = $12, medication_warning = $13, last_safety_check_hash = $14, last_visit_id = $15,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rec.ID, rec.Name, rec.NameLower, rec.CanonicalName, rec.Dose, rec.Frequency,
		rec.Active, rec.StartedAt, rec.StoppedAt, rec.ChangedAt, rec.NeedsConfirmation,
		rec.MedicationStatus, warnings, rec.LastSafetyCheckHash, rec.LastVisitID,
	).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medication_record WHERE id = $1`, id))
}

// Duplicates are permitted, so the finders prefer an active record and then
// the most recently updated one.
func (r *recordRepoPG) FindByCanonical(ctx context.Context, patientID uuid.UUID, canonicalName string) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM medication_record
		WHERE patient_id = $1 AND canonical_name = $2
		ORDER BY active DESC, updated_at DESC LIMIT 1`, patientID, canonicalName))
}

func (r *recordRepoPG) FindByNameLower(ctx context.Context, patientID uuid.UUID, nameLower string) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM medication_record
		WHERE patient_id = $1 AND name_lower = $2
		ORDER BY active DESC, updated_at DESC LIMIT 1`, patientID, nameLower))
}

func (r *recordRepoPG) collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication record: %w", err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medication_record WHERE patient_id = $1 ORDER BY updated_at`, patientID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *recordRepoPG) SearchByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error) {
	where := ` WHERE patient_id = $1`
	if activeOnly {
		where += ` AND active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication_record`+where, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medication_record`+where+` ORDER BY name_lower, created_at LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *recordRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medication_record WHERE patient_id = $1 AND active ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *recordRepoPG) ListPatientsWithActive(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT patient_id FROM medication_record WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *recordRepoPG) SaveSafetyResult(ctx context.Context, id uuid.UUID, warnings []safety.Warning, needsConfirmation bool, hash string) error {
	encoded, err := encodeWarnings(warnings)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_record
		SET medication_warning = $2, needs_confirmation = $3, last_safety_check_hash = $4, updated_at = NOW()
		WHERE id = $1`, id, encoded, needsConfirmation, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *recordRepoPG) ListAll(ctx context.Context) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM medication_record ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ApplyCanonicalBatch queues every update into one pgx.Batch inside a single
// transaction.
func (r *recordRepoPG) ApplyCanonicalBatch(ctx context.Context, updates []CanonicalUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(`UPDATE medication_record SET canonical_name = $2, medication_status = $3, updated_at = NOW() WHERE id = $1`,
				u.ID, u.CanonicalName, u.MedicationStatus)
		}
		results := r.conn(ctx).SendBatch(ctx, batch)
		for i := range updates {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("update %s: %w", updates[i].ID, err)
			}
		}
		return results.Close()
	})
}
