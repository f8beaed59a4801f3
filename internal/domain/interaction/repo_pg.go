package interaction

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
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type cacheRepoPG struct{ pool *pgxpool.Pool }

func NewCacheRepoPG(pool *pgxpool.Pool) CacheRepository {
	return &cacheRepoPG{pool: pool}
}

func (r *cacheRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *cacheRepoPG) Get(ctx context.Context, patientID uuid.UUID, cacheKey string) (*CacheEntry, error) {
	var e CacheEntry
	var raw []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, cache_key, warnings, created_at
		FROM external_interaction_cache
		WHERE patient_id = $1 AND cache_key = $2`,
		patientID, cacheKey).Scan(&e.PatientID, &e.CacheKey, &raw, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.Warnings); err != nil {
		return nil, fmt.Errorf("decode cached warnings: %w", err)
	}
	return &e, nil
}

func (r *cacheRepoPG) Put(ctx context.Context, e *CacheEntry) error {
	warnings := e.Warnings
	if warnings == nil {
		warnings = []safety.Warning{}
	}
	raw, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO external_interaction_cache (patient_id, cache_key, warnings, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id, cache_key)
		DO UPDATE SET warnings = EXCLUDED.warnings, created_at = EXCLUDED.created_at`,
		e.PatientID, e.CacheKey, raw, e.CreatedAt)
	return err
}

func (r *cacheRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM external_interaction_cache WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
