package medication

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/reminder"
	"github.com/ehr/medsafety/internal/domain/safety"
)

type syncFixture struct {
	repo     *mockRecordRepo
	eval     *mockEvaluator
	stores   *memReminders
	external *mockExternalCache
	registry *Registry
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		repo:     newMockRecordRepo(),
		eval:     &mockEvaluator{},
		stores:   &memReminders{},
		external: &mockExternalCache{},
	}
	reminders := reminder.NewService(f.stores, f.stores, zerolog.Nop())
	f.registry = NewRegistry(f.repo, canonical.Default(), f.eval, reminders, f.external, SyncConfig{}, zerolog.Nop())
	return f
}

func (f *syncFixture) sync(t *testing.T, patientID uuid.UUID, at time.Time, c Changes) {
	t.Helper()
	err := f.registry.Sync(context.Background(), SyncRequest{PatientID: patientID, VisitID: "visit-1", Medications: c, ProcessedAt: at})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
}

func (f *syncFixture) only(t *testing.T, canon string) *Record {
	t.Helper()
	recs := f.repo.byCanonical(canon)
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 %s record, got %d", canon, len(recs))
	}
	return recs[0]
}

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t0.Add(48 * time.Hour)
	t3 = t0.Add(72 * time.Hour)
)

func timeIs(got *time.Time, want time.Time) bool {
	return got != nil && got.Equal(want)
}

func TestSync_IdempotentStart(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Lisinopril 20mg"}}})
	f.sync(t, pid, t1, Changes{Started: []ChangeEntry{{Name: "Lisinopril 20mg"}}})
	f.sync(t, pid, t2, Changes{Started: []ChangeEntry{{Name: "Zestril"}}})

	rec := f.only(t, "lisinopril")
	if !rec.Active {
		t.Error("expected record active")
	}
	if !timeIs(rec.StartedAt, t0) {
		t.Errorf("expected startedAt %v preserved, got %v", t0, rec.StartedAt)
	}
	if rec.Name != "Lisinopril 20mg" {
		t.Errorf("expected name as first entered, got %q", rec.Name)
	}
}

func TestSync_StopAndRestartLifecycle(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Warfarin", Frequency: ptr("daily")}}})
	rec := f.only(t, "warfarin")
	if n, _ := f.stores.countFor(rec.ID); n != 1 {
		t.Fatalf("expected 1 reminder after start, got %d", n)
	}
	f.stores.nudges = []*reminder.Nudge{
		{ID: uuid.New(), MedicationID: rec.ID, Status: reminder.NudgePending},
		{ID: uuid.New(), MedicationID: rec.ID, Status: reminder.NudgePending},
		{ID: uuid.New(), MedicationID: rec.ID, Status: reminder.NudgeSent},
	}

	f.sync(t, pid, t1, Changes{Changed: []ChangeEntry{{Name: "Warfarin", Dose: ptr("5 mg")}}})
	f.sync(t, pid, t2, Changes{Stopped: []ChangeEntry{{Name: "Coumadin"}}})

	rec = f.only(t, "warfarin")
	if rec.Active {
		t.Error("expected record inactive after stop")
	}
	if !timeIs(rec.StoppedAt, t2) {
		t.Errorf("expected stoppedAt %v, got %v", t2, rec.StoppedAt)
	}
	reminders, nudges := f.stores.countFor(rec.ID)
	if reminders != 0 {
		t.Errorf("expected reminders removed, got %d", reminders)
	}
	if nudges != 1 {
		t.Errorf("expected only the sent nudge kept, got %d", nudges)
	}

	f.sync(t, pid, t3, Changes{Started: []ChangeEntry{{Name: "warfarin"}}})
	rec = f.only(t, "warfarin")
	if !rec.Active {
		t.Error("expected record reactivated")
	}
	if !timeIs(rec.StartedAt, t0) {
		t.Errorf("expected original startedAt %v, got %v", t0, rec.StartedAt)
	}
	if rec.StoppedAt != nil {
		t.Errorf("expected stoppedAt cleared, got %v", rec.StoppedAt)
	}
	if rec.ChangedAt != nil {
		t.Errorf("expected changedAt cleared on restart, got %v", rec.ChangedAt)
	}
	if rec.Dose == nil || *rec.Dose != "5 mg" {
		t.Errorf("expected dose kept, got %v", rec.Dose)
	}
	if n, _ := f.stores.countFor(rec.ID); n != 1 {
		t.Errorf("expected reminder recreated once, got %d", n)
	}
}

func TestSync_StartKeepsChangedAtWhenActive(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})
	f.sync(t, pid, t1, Changes{Changed: []ChangeEntry{{Name: "Metformin", Dose: ptr("1000 mg")}}})
	f.sync(t, pid, t2, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})

	rec := f.only(t, "metformin")
	if !timeIs(rec.ChangedAt, t1) {
		t.Errorf("expected changedAt %v kept for an active record, got %v", t1, rec.ChangedAt)
	}
}

func TestSync_ChangedReactivates(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})
	f.sync(t, pid, t1, Changes{Stopped: []ChangeEntry{{Name: "Metformin"}}})
	f.sync(t, pid, t2, Changes{Changed: []ChangeEntry{{Name: "Metformin", Dose: ptr("1000 mg"), Frequency: ptr("twice daily")}}})

	rec := f.only(t, "metformin")
	if !rec.Active || rec.StoppedAt != nil {
		t.Errorf("expected implicit restart, got active=%v stoppedAt=%v", rec.Active, rec.StoppedAt)
	}
	if !timeIs(rec.ChangedAt, t2) {
		t.Errorf("expected changedAt %v, got %v", t2, rec.ChangedAt)
	}
	if *rec.Dose != "1000 mg" || *rec.Frequency != "twice daily" {
		t.Errorf("expected dose and frequency updated, got %q %q", *rec.Dose, *rec.Frequency)
	}
}

func TestSync_ChangedUnknownCreates(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Changed: []ChangeEntry{{Name: "Atorvastatin", Dose: ptr("40 mg")}}})

	rec := f.only(t, "atorvastatin")
	if !rec.Active || !timeIs(rec.StartedAt, t0) || !timeIs(rec.ChangedAt, t0) {
		t.Errorf("expected active record started and changed at %v, got %+v", t0, rec)
	}
}

func TestSync_StopUnknownSkipped(t *testing.T) {
	f := newSyncFixture()

	f.sync(t, uuid.New(), t0, Changes{Stopped: []ChangeEntry{{Name: "Warfarin"}}})

	if f.repo.creates != 0 || f.repo.updates != 0 {
		t.Errorf("expected no writes, got %d creates %d updates", f.repo.creates, f.repo.updates)
	}
}

func TestSync_ComboSplit(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{
		{Name: "Aspirin and Plavix", Frequency: ptr("daily")},
		{Name: "HCTZ/Lisinopril 12.5/20 mg"},
	}})

	f.only(t, "aspirin")
	f.only(t, "clopidogrel")
	all, _ := f.repo.ListByPatient(context.Background(), pid)
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for _, rec := range all {
		if rec.Name == "HCTZ/Lisinopril" {
			if rec.Dose == nil || *rec.Dose != "12.5/20 mg" {
				t.Errorf("expected combo strength as dose, got %v", rec.Dose)
			}
			return
		}
	}
	t.Error("expected an unsplit HCTZ/Lisinopril record")
}

func TestSync_SafetyOutcomeStored(t *testing.T) {
	f := newSyncFixture()
	f.eval.result = func(name string) (*safety.Assessment, error) {
		if name == "Naproxen" {
			return &safety.Assessment{
				Warnings:    []safety.Warning{{Type: safety.TypeDrugInteraction, Severity: safety.SeverityCritical, ConflictingMedication: "Warfarin"}},
				Fingerprint: "fp-naproxen",
			}, nil
		}
		return &safety.Assessment{Fingerprint: "fp-other"}, nil
	}
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{
		{Name: "Naproxen"},
		{Name: "Metformin"},
		{Name: "Lisinopril", NeedsConfirmation: ptr(true)},
		{Name: "Zzyzxqrt"},
	}})

	naproxen := f.only(t, "naproxen")
	if !naproxen.NeedsConfirmation || len(naproxen.MedicationWarning) != 1 {
		t.Errorf("expected flagged record with 1 warning, got %+v", naproxen)
	}
	if naproxen.LastSafetyCheckHash == nil || *naproxen.LastSafetyCheckHash != "fp-naproxen" {
		t.Errorf("expected fingerprint stored, got %v", naproxen.LastSafetyCheckHash)
	}
	if f.only(t, "metformin").NeedsConfirmation {
		t.Error("expected clean record not flagged")
	}
	if !f.only(t, "lisinopril").NeedsConfirmation {
		t.Error("expected entry flag carried")
	}
	unknown := f.only(t, "zzyzxqrt")
	if !unknown.NeedsConfirmation || unknown.Status() != canonical.StatusUnverified {
		t.Errorf("expected unverified record flagged, got status %q", unknown.Status())
	}
}

func TestSync_EvaluationFailureDoesNotBlockWrite(t *testing.T) {
	f := newSyncFixture()
	f.eval.result = func(string) (*safety.Assessment, error) { return nil, errors.New("allergy store down") }

	f.sync(t, uuid.New(), t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})

	rec := f.only(t, "metformin")
	if !rec.NeedsConfirmation || rec.LastSafetyCheckHash != nil {
		t.Errorf("expected flagged record without fingerprint, got %+v", rec)
	}
}

func TestSync_ExcludesPersistedRecord(t *testing.T) {
	f := newSyncFixture()
	f.registry.cfg.UseAI = true
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})
	f.sync(t, pid, t1, Changes{Changed: []ChangeEntry{{Name: "Metformin", Dose: ptr("500 mg")}}})

	rec := f.only(t, "metformin")
	if len(f.eval.calls) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(f.eval.calls))
	}
	if f.eval.calls[0].exclude != nil {
		t.Error("expected no exclusion for a new record")
	}
	if ex := f.eval.calls[1].exclude; ex == nil || *ex != rec.ID {
		t.Errorf("expected exclusion of %s, got %v", rec.ID, ex)
	}
	if !f.eval.calls[1].useAI {
		t.Error("expected configured UseAI passed through")
	}
}

func TestSync_FuzzyNameEvaluatedAsCanonical(t *testing.T) {
	f := newSyncFixture()

	f.sync(t, uuid.New(), t0, Changes{Started: []ChangeEntry{{Name: "Metforminn"}}})

	rec := f.only(t, "metformin")
	if rec.Status() != canonical.StatusFuzzy {
		t.Errorf("expected fuzzy status, got %q", rec.Status())
	}
	if rec.NeedsConfirmation {
		t.Error("expected fuzzy match not flagged")
	}
	if f.eval.calls[0].name != "metformin" {
		t.Errorf("expected corrected name evaluated, got %q", f.eval.calls[0].name)
	}
}

func TestSync_ReminderSideEffects(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{
		{Name: "Ibuprofen", Frequency: ptr("as needed for pain")},
		{Name: "Metformin", Frequency: ptr("twice daily")},
	}})
	f.sync(t, pid, t1, Changes{Started: []ChangeEntry{{Name: "Metformin", Frequency: ptr("twice daily")}}})

	if n, _ := f.stores.countFor(f.only(t, "ibuprofen").ID); n != 0 {
		t.Errorf("expected no reminder for as-needed, got %d", n)
	}
	list, _ := f.stores.ListByPatient(context.Background(), pid)
	if len(list) != 1 {
		t.Fatalf("expected exactly 1 reminder, got %d", len(list))
	}
	if got := list[0].Times; len(got) != 2 || got[0] != "08:00" || got[1] != "20:00" {
		t.Errorf("unexpected reminder times %v", got)
	}
}

func TestSync_SideEffectFailureStillSaves(t *testing.T) {
	f := newSyncFixture()
	f.stores.createErr = errors.New("reminder store down")
	f.external.err = errors.New("cache store down")

	err := f.registry.Sync(context.Background(), SyncRequest{
		PatientID:   uuid.New(),
		Medications: Changes{Started: []ChangeEntry{{Name: "Metformin"}}},
		ProcessedAt: t0,
	})
	if err != nil {
		t.Fatalf("expected side-effect failures swallowed, got %v", err)
	}
	f.only(t, "metformin")
}

func TestSync_PrimaryWriteFailureJoined(t *testing.T) {
	f := newSyncFixture()
	writeErr := errors.New("insert failed")
	f.repo.createErr["metformin"] = writeErr
	pid := uuid.New()

	err := f.registry.Sync(context.Background(), SyncRequest{
		PatientID:   pid,
		Medications: Changes{Started: []ChangeEntry{{Name: "Metformin"}, {Name: "Lisinopril"}}},
		ProcessedAt: t0,
	})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected write error returned, got %v", err)
	}
	f.only(t, "lisinopril")
	if len(f.repo.byCanonical("metformin")) != 0 {
		t.Error("expected failed record absent")
	}
}

func TestSync_ClearsExternalCache(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()

	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})

	if len(f.external.deletes) != 1 || f.external.deletes[0] != pid {
		t.Errorf("expected one cache clear for %s, got %v", pid, f.external.deletes)
	}
}

func TestSync_PatientRequired(t *testing.T) {
	f := newSyncFixture()
	if err := f.registry.Sync(context.Background(), SyncRequest{}); !errors.Is(err, ErrPatientRequired) {
		t.Errorf("expected ErrPatientRequired, got %v", err)
	}
}

func TestSync_ManyEntriesConcurrently(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()
	names := []string{"Metformin", "Lisinopril", "Atorvastatin", "Warfarin", "Omeprazole", "Sertraline"}
	var entries []ChangeEntry
	for _, n := range names {
		entries = append(entries, ChangeEntry{Name: n})
	}

	f.sync(t, pid, t0, Changes{Started: entries})

	all, _ := f.repo.ListByPatient(context.Background(), pid)
	if len(all) != len(names) {
		t.Errorf("expected %d records, got %d", len(names), len(all))
	}
}

func TestSync_NoGoroutinesLeftBehind(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()
	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: "Metformin"}}})

	before := runtime.NumGoroutine()
	for i := 0; i < 200; i++ {
		f.sync(t, pid, t1, Changes{Changed: []ChangeEntry{{Name: "Metformin"}}})
	}
	if after := runtime.NumGoroutine(); after > before+5 {
		t.Errorf("expected goroutine count to stay flat, before=%d after=%d", before, after)
	}
}

func TestSync_SeparatorOnlyNamesKeepCanonical(t *testing.T) {
	f := newSyncFixture()
	pid := uuid.New()
	f.sync(t, pid, t0, Changes{Started: []ChangeEntry{{Name: ","}, {Name: "()"}}})

	recs, _ := f.repo.ListByPatient(context.Background(), pid)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.CanonicalName == "" {
			t.Errorf("record %q stored with an empty canonical name", rec.Name)
		}
	}
}

func TestRecordLookup_ForgetFallsBackToRepo(t *testing.T) {
	repo := newMockRecordRepo()
	pid := uuid.New()
	l := newRecordLookup(repo, pid, 16, time.Minute)

	l.remember(&Record{ID: uuid.New(), PatientID: pid, Name: "Metformin", NameLower: "metformin", CanonicalName: "metformin"})
	if rec, err := l.find(context.Background(), "metformin", "metformin"); err != nil || rec == nil {
		t.Fatalf("expected cached record, got %v %v", rec, err)
	}

	l.forget("metformin", "metformin")
	rec, err := l.find(context.Background(), "metformin", "metformin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected the repository answer (none) after forget, got %+v", rec)
	}
}
