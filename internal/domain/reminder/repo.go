package reminder

import (
	"context"

	"github.com/google/uuid"
)

type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) error
	ExistsForMedication(ctx context.Context, medicationID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error)
	DeleteByMedication(ctx context.Context, medicationID uuid.UUID) (int64, error)
}

type NudgeRepository interface {
	DeletePendingByMedication(ctx context.Context, medicationID uuid.UUID) (int64, error)
}
