package medication

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/safety"
)

func TestSafetySource_ListsActiveOnly(t *testing.T) {
	repo := newMockRecordRepo()
	pid := uuid.New()
	repo.Create(context.Background(), &Record{PatientID: pid, Name: "Warfarin", CanonicalName: "warfarin", Active: true})
	repo.Create(context.Background(), &Record{PatientID: pid, Name: "Aspirin", CanonicalName: "aspirin"})

	current, err := NewSafetySource(repo).ListActiveByPatient(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(current) != 1 || current[0].CanonicalName != "warfarin" || !current[0].Active {
		t.Errorf("expected only the active warfarin record, got %+v", current)
	}
}

func TestRecheckRegistry_MapsRecords(t *testing.T) {
	repo := newMockRecordRepo()
	pid := uuid.New()
	hash := "abc"
	rec := &Record{
		PatientID:           pid,
		Name:                "Warfarin",
		CanonicalName:       "warfarin",
		Active:              true,
		LastSafetyCheckHash: &hash,
		MedicationWarning:   []safety.Warning{{Type: safety.TypeDrugInteraction, Severity: safety.SeverityHigh}},
	}
	repo.Create(context.Background(), rec)
	repo.Create(context.Background(), &Record{PatientID: pid, Name: "Metformin", CanonicalName: "metformin", Active: true})

	reg := NewRecheckRegistry(repo)
	patients, _ := reg.ListPatientsWithActive(context.Background())
	if len(patients) != 1 || patients[0] != pid {
		t.Errorf("expected one patient, got %v", patients)
	}

	records, err := reg.ListActiveRecords(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].LastSafetyCheckHash != "abc" || len(records[0].Warnings) != 1 {
		t.Errorf("unexpected mapping %+v", records[0])
	}
	if records[1].LastSafetyCheckHash != "" {
		t.Errorf("expected empty hash for unchecked record, got %q", records[1].LastSafetyCheckHash)
	}

	if err := reg.SaveSafetyResult(context.Background(), rec.ID, nil, true, "def"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, _ := repo.GetByID(context.Background(), rec.ID)
	if !saved.NeedsConfirmation || *saved.LastSafetyCheckHash != "def" {
		t.Errorf("expected saved result, got %+v", saved)
	}
}
