// Package reminder owns medication reminders and pending nudges, and derives
// reminder times from free-text frequencies.
package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Reminder maps to the medication_reminder table.
type Reminder struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Times          []string  `db:"times" json:"times"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type NudgeStatus string

const (
	NudgePending   NudgeStatus = "pending"
	NudgeSent      NudgeStatus = "sent"
	NudgeCancelled NudgeStatus = "cancelled"
)

// Nudge maps to the medication_nudge table. Nudges are created by the
// notification collaborator; this package only removes pending ones.
type Nudge struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	PatientID    uuid.UUID   `db:"patient_id" json:"patient_id"`
	MedicationID uuid.UUID   `db:"medication_id" json:"medication_id"`
	Status       NudgeStatus `db:"status" json:"status"`
	ScheduledFor time.Time   `db:"scheduled_for" json:"scheduled_for"`
	Message      string      `db:"message" json:"message"`
}
