// Package medication is the per-patient medication registry: records, the
// sync state machine that applies visit changes to them, and the canonical
// name backfill.
package medication

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/safety"
)

var (
	ErrPatientRequired = errors.New("patient_id is required")
	ErrRecordNotFound  = errors.New("medication record not found")
)

// Record maps to the medication_record table.
type Record struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	PatientID           uuid.UUID        `db:"patient_id" json:"patient_id"`
	Name                string           `db:"name" json:"name"`
	NameLower           string           `db:"name_lower" json:"name_lower"`
	CanonicalName       string           `db:"canonical_name" json:"canonical_name"`
	Dose                *string          `db:"dose" json:"dose,omitempty"`
	Frequency           *string          `db:"frequency" json:"frequency,omitempty"`
	Active              bool             `db:"active" json:"active"`
	StartedAt           *time.Time       `db:"started_at" json:"started_at,omitempty"`
	StoppedAt           *time.Time       `db:"stopped_at" json:"stopped_at,omitempty"`
	ChangedAt           *time.Time       `db:"changed_at" json:"changed_at,omitempty"`
	NeedsConfirmation   bool             `db:"needs_confirmation" json:"needs_confirmation"`
	MedicationStatus    *string          `db:"medication_status" json:"medication_status,omitempty"`
	MedicationWarning   []safety.Warning `db:"medication_warning" json:"medication_warning"`
	LastSafetyCheckHash *string          `db:"last_safety_check_hash" json:"last_safety_check_hash,omitempty"`
	LastVisitID         *string          `db:"last_visit_id" json:"last_visit_id,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// Status returns the stored match status, or "" when none was recorded.
func (r *Record) Status() canonical.MatchStatus {
	if r.MedicationStatus == nil {
		return ""
	}
	return canonical.MatchStatus(*r.MedicationStatus)
}

// ToCurrent is the record as the safety checks compare against it.
func (r *Record) ToCurrent() safety.CurrentMedication {
	return safety.CurrentMedication{
		ID:            r.ID,
		Name:          r.Name,
		CanonicalName: r.CanonicalName,
		Active:        r.Active,
	}
}

// clone copies r so a cached record is never shared between goroutines.
func (r *Record) clone() *Record {
	c := *r
	if r.MedicationWarning != nil {
		c.MedicationWarning = append([]safety.Warning(nil), r.MedicationWarning...)
	}
	return &c
}

// ChangeEntry is one medication as reported by the visit extraction.
type ChangeEntry struct {
	Name              string  `json:"name"`
	Dose              *string `json:"dose,omitempty"`
	Frequency         *string `json:"frequency,omitempty"`
	Note              *string `json:"note,omitempty"`
	Display           *string `json:"display,omitempty"`
	Original          *string `json:"original,omitempty"`
	NeedsConfirmation *bool   `json:"needs_confirmation,omitempty"`
	Status            *string `json:"status,omitempty"`
}

func (e ChangeEntry) flagged() bool {
	if e.NeedsConfirmation != nil && *e.NeedsConfirmation {
		return true
	}
	return e.Status != nil && strings.EqualFold(strings.TrimSpace(*e.Status), string(canonical.StatusUnverified))
}

// Changes groups a visit's entries by transition.
type Changes struct {
	Started []ChangeEntry `json:"started"`
	Stopped []ChangeEntry `json:"stopped"`
	Changed []ChangeEntry `json:"changed"`
}

// SyncRequest is one visit's batch of medication changes.
type SyncRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	VisitID     string    `json:"visit_id"`
	Medications Changes   `json:"medications"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Transition names the state change an entry asks for.
type Transition string

const (
	TransitionStarted Transition = "started"
	TransitionStopped Transition = "stopped"
	TransitionChanged Transition = "changed"
)
