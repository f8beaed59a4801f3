package interaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/safety"
)

// ActiveRecord is the registry view the recheck job works on.
type ActiveRecord struct {
	ID                  uuid.UUID
	Name                string
	CanonicalName       string
	Warnings            []safety.Warning
	NeedsConfirmation   bool
	LastSafetyCheckHash string
}

// Registry is the medication registry as seen by the recheck job.
type Registry interface {
	ListPatientsWithActive(ctx context.Context) ([]uuid.UUID, error)
	ListActiveRecords(ctx context.Context, patientID uuid.UUID) ([]ActiveRecord, error)
	SaveSafetyResult(ctx context.Context, id uuid.UUID, warnings []safety.Warning, needsConfirmation bool, hash string) error
}

// RecheckResult summarizes one run.
type RecheckResult struct {
	Patients int
	Checked  int
	Skipped  int
	Failed   int
}

// Rechecker refreshes the external-source warnings of active records whose
// evaluated medication set has changed since their last check.
type Rechecker struct {
	lookup   *Lookup
	registry Registry
	logger   zerolog.Logger
}

func NewRechecker(lookup *Lookup, registry Registry, logger zerolog.Logger) *Rechecker {
	return &Rechecker{
		lookup:   lookup,
		registry: registry,
		logger:   logger.With().Str("component", "safety-recheck").Logger(),
	}
}

// RunAll rechecks every patient with active medications. A failure for one
// patient is logged and the run continues.
func (r *Rechecker) RunAll(ctx context.Context) (RecheckResult, error) {
	var total RecheckResult
	patients, err := r.registry.ListPatientsWithActive(ctx)
	if err != nil {
		return total, fmt.Errorf("list patients: %w", err)
	}
	for _, pid := range patients {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		res, err := r.RunPatient(ctx, pid)
		total.Patients++
		total.Checked += res.Checked
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			r.logger.Error().Err(err).Str("patient_id", pid.String()).Msg("patient recheck failed")
		}
	}
	r.logger.Info().
		Int("patients", total.Patients).
		Int("checked", total.Checked).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Msg("safety recheck complete")
	return total, nil
}

// RunPatient rechecks one patient's active records.
func (r *Rechecker) RunPatient(ctx context.Context, patientID uuid.UUID) (RecheckResult, error) {
	res := RecheckResult{Patients: 1}
	records, err := r.registry.ListActiveRecords(ctx, patientID)
	if err != nil {
		return res, fmt.Errorf("list active records: %w", err)
	}

	for i, rec := range records {
		others := make([]string, 0, len(records)-1)
		otherCanons := make([]string, 0, len(records)-1)
		for j, o := range records {
			if j == i {
				continue
			}
			others = append(others, o.Name)
			otherCanons = append(otherCanons, o.CanonicalName)
		}

		hash := safety.Fingerprint(safety.SourceExternal, rec.CanonicalName, otherCanons, nil)
		if hash == rec.LastSafetyCheckHash {
			res.Skipped++
			continue
		}

		external, err := r.lookup.check(ctx, patientID, rec.Name, others)
		if err != nil {
			// Keep the previous result and hash so the next run retries.
			res.Failed++
			continue
		}
		warnings := ReplaceExternal(rec.Warnings, external)
		needs := rec.NeedsConfirmation || safety.NeedsConfirmation(external)

		if err := r.registry.SaveSafetyResult(ctx, rec.ID, warnings, needs, hash); err != nil {
			res.Failed++
			r.logger.Error().Err(err).Str("medication_id", rec.ID.String()).Msg("save recheck result failed")
			continue
		}
		res.Checked++
	}
	return res, nil
}

// ReplaceExternal drops the external-source warnings from existing and
// appends fresh, keeping the result ordered by severity.
func ReplaceExternal(existing, fresh []safety.Warning) []safety.Warning {
	out := make([]safety.Warning, 0, len(existing)+len(fresh))
	for _, w := range existing {
		if w.Source != safety.SourceExternal {
			out = append(out, w)
		}
	}
	out = append(out, fresh...)
	out = safety.Dedupe(out)
	safety.SortBySeverity(out)
	return out
}
