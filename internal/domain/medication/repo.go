package medication

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/safety"
)

// Repository persists medication records. Finders return ErrRecordNotFound
// when nothing matches.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindByCanonical(ctx context.Context, patientID uuid.UUID, canonicalName string) (*Record, error)
	FindByNameLower(ctx context.Context, patientID uuid.UUID, nameLower string) (*Record, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	SearchByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	ListPatientsWithActive(ctx context.Context) ([]uuid.UUID, error)
	SaveSafetyResult(ctx context.Context, id uuid.UUID, warnings []safety.Warning, needsConfirmation bool, hash string) error
}

// CanonicalUpdate is one row rewritten by the canonical backfill.
type CanonicalUpdate struct {
	ID               uuid.UUID
	CanonicalName    string
	MedicationStatus string
}

// BackfillStore is the bulk access the canonical backfill needs.
type BackfillStore interface {
	ListAll(ctx context.Context) ([]*Record, error)
	// ApplyCanonicalBatch writes updates in a single transaction.
	ApplyCanonicalBatch(ctx context.Context, updates []CanonicalUpdate) error
}
