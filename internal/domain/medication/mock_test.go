package medication

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/reminder"
	"github.com/ehr/medsafety/internal/domain/safety"
)

// -- Mock Repositories --

type mockRecordRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*Record
	seq       map[uuid.UUID]int
	next      int
	creates   int
	updates   int
	createErr map[string]error // by name_lower
	batches   [][]CanonicalUpdate
	batchErr  error
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{
		records:   make(map[uuid.UUID]*Record),
		seq:       make(map[uuid.UUID]int),
		createErr: make(map[string]error),
	}
}

func (m *mockRecordRepo) touch(id uuid.UUID) {
	m.next++
	m.seq[id] = m.next
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[r.NameLower]; err != nil {
		return err
	}
	r.ID = uuid.New()
	m.records[r.ID] = r.clone()
	m.touch(r.ID)
	m.creates++
	return nil
}

func (m *mockRecordRepo) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return ErrRecordNotFound
	}
	m.records[r.ID] = r.clone()
	m.touch(r.ID)
	m.updates++
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r.clone(), nil
}

func (m *mockRecordRepo) find(match func(*Record) bool) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Record
	for _, r := range m.records {
		if !match(r) {
			continue
		}
		if best == nil || (r.Active && !best.Active) || (r.Active == best.Active && m.seq[r.ID] > m.seq[best.ID]) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrRecordNotFound
	}
	return best.clone(), nil
}

func (m *mockRecordRepo) FindByCanonical(_ context.Context, patientID uuid.UUID, canonicalName string) (*Record, error) {
	return m.find(func(r *Record) bool { return r.PatientID == patientID && r.CanonicalName == canonicalName })
}

func (m *mockRecordRepo) FindByNameLower(_ context.Context, patientID uuid.UUID, nameLower string) (*Record, error) {
	return m.find(func(r *Record) bool { return r.PatientID == patientID && r.NameLower == nameLower })
}

func (m *mockRecordRepo) filter(match func(*Record) bool) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		if match(r) {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.PatientID == patientID }), nil
}

func (m *mockRecordRepo) SearchByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error) {
	all := m.filter(func(r *Record) bool { return r.PatientID == patientID && (!activeOnly || r.Active) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRecordRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.PatientID == patientID && r.Active }), nil
}

func (m *mockRecordRepo) ListPatientsWithActive(_ context.Context) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, r := range m.filter(func(r *Record) bool { return r.Active }) {
		if !seen[r.PatientID] {
			seen[r.PatientID] = true
			out = append(out, r.PatientID)
		}
	}
	return out, nil
}

func (m *mockRecordRepo) SaveSafetyResult(_ context.Context, id uuid.UUID, warnings []safety.Warning, needs bool, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	r.MedicationWarning = warnings
	r.NeedsConfirmation = needs
	r.LastSafetyCheckHash = &hash
	return nil
}

func (m *mockRecordRepo) ListAll(_ context.Context) ([]*Record, error) {
	return m.filter(func(*Record) bool { return true }), nil
}

func (m *mockRecordRepo) ApplyCanonicalBatch(_ context.Context, updates []CanonicalUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return m.batchErr
	}
	m.batches = append(m.batches, updates)
	for _, u := range updates {
		if r, ok := m.records[u.ID]; ok {
			r.CanonicalName = u.CanonicalName
			status := u.MedicationStatus
			r.MedicationStatus = &status
		}
	}
	return nil
}

// byCanonical returns the stored records with the given canonical name.
func (m *mockRecordRepo) byCanonical(canon string) []*Record {
	return m.filter(func(r *Record) bool { return r.CanonicalName == canon })
}

// -- Mock Evaluator --

type evalCall struct {
	name    string
	exclude *uuid.UUID
	useAI   bool
}

type mockEvaluator struct {
	mu     sync.Mutex
	calls  []evalCall
	result func(name string) (*safety.Assessment, error)
}

func (m *mockEvaluator) Assess(_ context.Context, _ uuid.UUID, entry safety.Candidate, opts safety.EvaluateOptions) (*safety.Assessment, error) {
	m.mu.Lock()
	m.calls = append(m.calls, evalCall{name: entry.Name, exclude: opts.ExcludeMedicationID, useAI: opts.UseAI})
	m.mu.Unlock()
	if m.result != nil {
		return m.result(entry.Name)
	}
	return &safety.Assessment{Fingerprint: "fp-" + entry.Name}, nil
}

// -- Mock reminder and nudge stores --

type memReminders struct {
	mu        sync.Mutex
	reminders []*reminder.Reminder
	nudges    []*reminder.Nudge
	createErr error
}

func (m *memReminders) Create(_ context.Context, r *reminder.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	r.ID = uuid.New()
	m.reminders = append(m.reminders, r)
	return nil
}

func (m *memReminders) ExistsForMedication(_ context.Context, medicationID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.MedicationID == medicationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReminders) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reminder.Reminder
	for _, r := range m.reminders {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReminders) DeleteByMedication(_ context.Context, medicationID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.reminders[:0]
	var n int64
	for _, r := range m.reminders {
		if r.MedicationID == medicationID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.reminders = kept
	return n, nil
}

func (m *memReminders) DeletePendingByMedication(_ context.Context, medicationID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.nudges[:0]
	var n int64
	for _, nd := range m.nudges {
		if nd.MedicationID == medicationID && nd.Status == reminder.NudgePending {
			n++
			continue
		}
		kept = append(kept, nd)
	}
	m.nudges = kept
	return n, nil
}

func (m *memReminders) countFor(medicationID uuid.UUID) (reminders, nudges int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.MedicationID == medicationID {
			reminders++
		}
	}
	for _, nd := range m.nudges {
		if nd.MedicationID == medicationID {
			nudges++
		}
	}
	return reminders, nudges
}

// -- Mock external cache --

type mockExternalCache struct {
	mu      sync.Mutex
	deletes []uuid.UUID
	err     error
}

func (m *mockExternalCache) DeleteByPatient(_ context.Context, patientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, patientID)
	return 0, m.err
}
