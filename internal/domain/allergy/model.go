// Package allergy stores documented patient allergies and serves them to the
// safety checks.
package allergy

import (
	"time"

	"github.com/google/uuid"
)

// Allergy maps to the patient_allergy table.
type Allergy struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	Substance  string    `db:"substance" json:"substance"`
	Reaction   *string   `db:"reaction" json:"reaction,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
