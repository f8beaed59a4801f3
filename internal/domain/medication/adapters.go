package medication

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/interaction"
	"github.com/ehr/medsafety/internal/domain/safety"
)

// SafetySource serves a patient's active records to the safety orchestrator.
type SafetySource struct {
	repo Repository
}

func NewSafetySource(repo Repository) *SafetySource {
	return &SafetySource{repo: repo}
}

var _ safety.ActiveMedicationSource = (*SafetySource)(nil)

func (s *SafetySource) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]safety.CurrentMedication, error) {
	records, err := s.repo.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]safety.CurrentMedication, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ToCurrent())
	}
	return out, nil
}

// RecheckRegistry exposes the registry to the external interaction recheck.
type RecheckRegistry struct {
	repo Repository
}

func NewRecheckRegistry(repo Repository) *RecheckRegistry {
	return &RecheckRegistry{repo: repo}
}

var _ interaction.Registry = (*RecheckRegistry)(nil)

func (r *RecheckRegistry) ListPatientsWithActive(ctx context.Context) ([]uuid.UUID, error) {
	return r.repo.ListPatientsWithActive(ctx)
}

func (r *RecheckRegistry) ListActiveRecords(ctx context.Context, patientID uuid.UUID) ([]interaction.ActiveRecord, error) {
	records, err := r.repo.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]interaction.ActiveRecord, 0, len(records))
	for _, rec := range records {
		ar := interaction.ActiveRecord{
			ID:                rec.ID,
			Name:              rec.Name,
			CanonicalName:     rec.CanonicalName,
			Warnings:          rec.MedicationWarning,
			NeedsConfirmation: rec.NeedsConfirmation,
		}
		if rec.LastSafetyCheckHash != nil {
			ar.LastSafetyCheckHash = *rec.LastSafetyCheckHash
		}
		out = append(out, ar)
	}
	return out, nil
}

func (r *RecheckRegistry) SaveSafetyResult(ctx context.Context, id uuid.UUID, warnings []safety.Warning, needsConfirmation bool, hash string) error {
	return r.repo.SaveSafetyResult(ctx, id, warnings, needsConfirmation, hash)
}
