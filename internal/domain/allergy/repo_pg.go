package allergy

import (
	"context"
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
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

var _ safety.AllergySource = (*repoPG)(nil)

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const allergyCols = `id, patient_id, substance, reaction, recorded_at`

func (r *repoPG) scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PatientID, &a.Substance, &a.Reaction, &a.RecordedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Allergy) error {
	if a.Substance == "" {
		return fmt.Errorf("substance is required")
	}
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_allergy (id, patient_id, substance, reaction)
		VALUES ($1, $2, $3, $4)
		RETURNING recorded_at`,
		a.ID, a.PatientID, a.Substance, a.Reaction,
	).Scan(&a.RecordedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+allergyCols+` FROM patient_allergy WHERE patient_id = $1 ORDER BY recorded_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Allergy
	for rows.Next() {
		a, err := r.scanAllergy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allergy: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) ListSubstances(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT substance FROM patient_allergy WHERE patient_id = $1 AND substance <> '' ORDER BY substance`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan substance: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
