package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	reminders ReminderRepository
	nudges    NudgeRepository
	logger    zerolog.Logger
}

func NewService(reminders ReminderRepository, nudges NudgeRepository, logger zerolog.Logger) *Service {
	return &Service{
		reminders: reminders,
		nudges:    nudges,
		logger:    logger.With().Str("component", "reminder").Logger(),
	}
}

// EnsureReminder creates a reminder for the medication unless one already
// exists or the frequency is as-needed. It reports whether one was created.
func (s *Service) EnsureReminder(ctx context.Context, patientID, medicationID uuid.UUID, name string, frequency *string) (bool, error) {
	if patientID == uuid.Nil {
		return false, fmt.Errorf("patient_id is required")
	}
	if medicationID == uuid.Nil {
		return false, fmt.Errorf("medication_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("medication_name is required")
	}

	exists, err := s.reminders.ExistsForMedication(ctx, medicationID)
	if err != nil {
		return false, fmt.Errorf("check reminder: %w", err)
	}
	if exists {
		return false, nil
	}

	var freq string
	if frequency != nil {
		freq = *frequency
	}
	times := DeriveTimes(freq)
	if times == nil {
		return false, nil
	}

	rem := &Reminder{
		PatientID:      patientID,
		MedicationID:   medicationID,
		MedicationName: name,
		Times:          times,
		Frequency:      frequency,
	}
	if err := s.reminders.Create(ctx, rem); err != nil {
		return false, fmt.Errorf("create reminder: %w", err)
	}
	s.logger.Debug().
		Str("medication_id", medicationID.String()).
		Strs("times", times).
		Msg("reminder created")
	return true, nil
}

// Cancel removes the pending nudges and every reminder of a medication. Both
// deletions are attempted even if the first fails.
func (s *Service) Cancel(ctx context.Context, medicationID uuid.UUID) error {
	var errs []error
	nudges, err := s.nudges.DeletePendingByMedication(ctx, medicationID)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete pending nudges: %w", err))
	}
	reminders, err := s.reminders.DeleteByMedication(ctx, medicationID)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete reminders: %w", err))
	}
	s.logger.Debug().
		Str("medication_id", medicationID.String()).
		Int64("nudges", nudges).
		Int64("reminders", reminders).
		Msg("reminders cancelled")
	return errors.Join(errs...)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	return s.reminders.ListByPatient(ctx, patientID)
}
