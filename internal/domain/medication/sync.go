package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/internal/platform/metrics"
)

// Evaluator is the safety orchestrator as the registry uses it.
type Evaluator interface {
	Assess(ctx context.Context, patientID uuid.UUID, entry safety.Candidate, opts safety.EvaluateOptions) (*safety.Assessment, error)
}

// ReminderScheduler creates and cancels reminders for a medication.
type ReminderScheduler interface {
	EnsureReminder(ctx context.Context, patientID, medicationID uuid.UUID, name string, frequency *string) (bool, error)
	Cancel(ctx context.Context, medicationID uuid.UUID) error
}

// ExternalCache is the persisted external interaction cache.
type ExternalCache interface {
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
}

// SyncConfig tunes the registry. Zero cache values fall back to the
// lookupcache defaults.
type SyncConfig struct {
	UseAI           bool
	LookupCacheSize int
	LookupCacheTTL  time.Duration
}

// Registry applies visit changes to the persisted medication records.
type Registry struct {
	repo      Repository
	names     *canonical.Canonicalizer
	evaluator Evaluator
	reminders ReminderScheduler
	external  ExternalCache
	cfg       SyncConfig
	logger    zerolog.Logger
}

// NewRegistry builds a registry. reminders and external may be nil.
func NewRegistry(repo Repository, names *canonical.Canonicalizer, evaluator Evaluator, reminders ReminderScheduler, external ExternalCache, cfg SyncConfig, logger zerolog.Logger) *Registry {
	return &Registry{
		repo:      repo,
		names:     names,
		evaluator: evaluator,
		reminders: reminders,
		external:  external,
		cfg:       cfg,
		logger:    logger.With().Str("component", "medication-sync").Logger(),
	}
}

// syncUnit is the state shared by every entry of one Sync call.
type syncUnit struct {
	patientID uuid.UUID
	visitID   string
	now       time.Time
	lookup    *recordLookup
	log       zerolog.Logger
}

type syncJob struct {
	transition Transition
	entry      ChangeEntry
}

// Sync applies req idempotently. Entries run concurrently; a failed primary
// write is returned joined with the others, while reminder, nudge and cache
// failures are only logged.
func (r *Registry) Sync(ctx context.Context, req SyncRequest) error {
	if req.PatientID == uuid.Nil {
		return ErrPatientRequired
	}
	now := req.ProcessedAt.UTC()
	if req.ProcessedAt.IsZero() {
		now = time.Now().UTC()
	}

	u := &syncUnit{
		patientID: req.PatientID,
		visitID:   req.VisitID,
		now:       now,
		lookup:    newRecordLookup(r.repo, req.PatientID, r.cfg.LookupCacheSize, r.cfg.LookupCacheTTL),
		log: r.logger.With().
			Str("patient_id", req.PatientID.String()).
			Str("visit_id", req.VisitID).
			Logger(),
	}
	if err := u.lookup.prime(ctx); err != nil {
		u.log.Warn().Err(err).Msg("priming record lookup failed, falling back to queries")
	}

	jobs := expandJobs(req.Medications)
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job syncJob) {
			defer wg.Done()
			errs[i] = r.apply(ctx, u, job)
		}(i, job)
	}
	wg.Wait()

	if r.external != nil {
		if n, err := r.external.DeleteByPatient(ctx, req.PatientID); err != nil {
			metrics.SyncSideEffectFailures.WithLabelValues("external_cache").Inc()
			u.log.Warn().Err(err).Msg("clearing external interaction cache failed")
		} else {
			u.log.Debug().Int64("entries", n).Msg("external interaction cache cleared")
		}
	}

	err := errors.Join(errs...)
	u.log.Info().
		Int("entries", len(jobs)).
		Bool("failed", err != nil).
		Msg("medication sync complete")
	return err
}

// expandJobs splits started and changed combos. Blank entries are dropped.
func expandJobs(c Changes) []syncJob {
	var jobs []syncJob
	for _, e := range c.Started {
		for _, part := range SplitCombo(e) {
			jobs = append(jobs, syncJob{TransitionStarted, part})
		}
	}
	for _, e := range c.Stopped {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		e.Name = strings.TrimSpace(e.Name)
		jobs = append(jobs, syncJob{TransitionStopped, e})
	}
	for _, e := range c.Changed {
		for _, part := range SplitCombo(e) {
			jobs = append(jobs, syncJob{TransitionChanged, part})
		}
	}
	return jobs
}

func (r *Registry) apply(ctx context.Context, u *syncUnit, job syncJob) error {
	name := job.entry.Name
	res := r.names.Resolve(name)
	nameLower := strings.ToLower(name)
	log := u.log.With().Str("transition", string(job.transition)).Str("medication", name).Logger()

	existing, err := u.lookup.find(ctx, res.Canonical, nameLower)
	if err != nil {
		return fmt.Errorf("find medication %q: %w", name, err)
	}

	if job.transition == TransitionStopped {
		return r.stop(ctx, u, log, existing)
	}

	var rec *Record
	if existing == nil {
		rec = &Record{
			PatientID: u.patientID,
			Name:      name,
			NameLower: nameLower,
			Active:    true,
			StartedAt: timePtr(u.now),
		}
		if job.transition == TransitionChanged {
			rec.ChangedAt = timePtr(u.now)
		}
	} else {
		rec = existing
		switch job.transition {
		case TransitionStarted:
			if !rec.Active {
				rec.ChangedAt = nil
			}
			rec.Active = true
			if rec.StartedAt == nil {
				rec.StartedAt = timePtr(u.now)
			}
			rec.StoppedAt = nil
		case TransitionChanged:
			rec.ChangedAt = timePtr(u.now)
			if !rec.Active || rec.StoppedAt != nil {
				rec.Active = true
				rec.StoppedAt = nil
				if rec.StartedAt == nil {
					rec.StartedAt = timePtr(u.now)
				}
			}
		}
	}
	rec.CanonicalName = res.Canonical
	status := string(res.Status)
	rec.MedicationStatus = &status
	applyDetails(rec, job.entry)
	if u.visitID != "" {
		visit := u.visitID
		rec.LastVisitID = &visit
	}

	r.assess(ctx, u, log, rec, job.entry, res, existing != nil)

	if existing == nil {
		if err := r.repo.Create(ctx, rec); err != nil {
			u.lookup.forget(rec.CanonicalName, nameLower)
			return fmt.Errorf("create medication %q: %w", name, err)
		}
	} else if err := r.repo.Update(ctx, rec); err != nil {
		u.lookup.forget(rec.CanonicalName, rec.NameLower)
		return fmt.Errorf("update medication %q: %w", name, err)
	}
	u.lookup.remember(rec)
	metrics.SyncTransitions.WithLabelValues(string(job.transition)).Inc()

	if rec.Active && r.reminders != nil {
		if _, err := r.reminders.EnsureReminder(ctx, rec.PatientID, rec.ID, rec.Name, rec.Frequency); err != nil {
			metrics.SyncSideEffectFailures.WithLabelValues("reminder").Inc()
			log.Error().Err(err).Str("medication_id", rec.ID.String()).Msg("ensuring reminder failed")
		}
	}
	return nil
}

func (r *Registry) stop(ctx context.Context, u *syncUnit, log zerolog.Logger, rec *Record) error {
	if rec == nil {
		metrics.SyncTransitions.WithLabelValues("skipped").Inc()
		log.Info().Msg("stop for unknown medication skipped")
		return nil
	}

	wasActive := rec.Active
	rec.Active = false
	rec.StoppedAt = timePtr(u.now)
	if rec.StartedAt == nil {
		rec.StartedAt = timePtr(u.now)
	}
	if u.visitID != "" {
		visit := u.visitID
		rec.LastVisitID = &visit
	}
	if err := r.repo.Update(ctx, rec); err != nil {
		u.lookup.forget(rec.CanonicalName, rec.NameLower)
		return fmt.Errorf("stop medication %q: %w", rec.Name, err)
	}
	u.lookup.remember(rec)
	metrics.SyncTransitions.WithLabelValues(string(TransitionStopped)).Inc()

	if wasActive && r.reminders != nil {
		if err := r.reminders.Cancel(ctx, rec.ID); err != nil {
			metrics.SyncSideEffectFailures.WithLabelValues("nudge_cleanup").Inc()
			log.Error().Err(err).Str("medication_id", rec.ID.String()).Msg("cancelling reminders failed")
		}
	}
	return nil
}

// assess stores the safety outcome on rec. It never blocks the write: when
// the evaluation itself fails the record is flagged for confirmation instead.
func (r *Registry) assess(ctx context.Context, u *syncUnit, log zerolog.Logger, rec *Record, entry ChangeEntry, res canonical.Resolution, persisted bool) {
	unverified := res.Status == canonical.StatusUnverified
	if r.evaluator == nil {
		rec.NeedsConfirmation = entry.flagged() || unverified
		return
	}

	candidate := safety.Candidate{Name: rec.Name}
	if res.Status == canonical.StatusFuzzy {
		candidate.Name = res.Canonical
	}
	if rec.Dose != nil {
		candidate.Dose = *rec.Dose
	}
	if rec.Frequency != nil {
		candidate.Frequency = *rec.Frequency
	}
	opts := safety.EvaluateOptions{UseAI: r.cfg.UseAI}
	if persisted {
		id := rec.ID
		opts.ExcludeMedicationID = &id
	}

	a, err := r.evaluator.Assess(ctx, u.patientID, candidate, opts)
	if err != nil {
		log.Warn().Err(err).Msg("safety evaluation failed, flagging for confirmation")
		rec.MedicationWarning = []safety.Warning{}
		rec.LastSafetyCheckHash = nil
		rec.NeedsConfirmation = true
		return
	}
	rec.MedicationWarning = a.Warnings
	if rec.MedicationWarning == nil {
		rec.MedicationWarning = []safety.Warning{}
	}
	hash := a.Fingerprint
	rec.LastSafetyCheckHash = &hash
	rec.NeedsConfirmation = entry.flagged() || safety.NeedsConfirmation(a.Warnings) || unverified
}

// applyDetails copies the dose and frequency an entry provides.
func applyDetails(rec *Record, e ChangeEntry) {
	if e.Dose != nil && strings.TrimSpace(*e.Dose) != "" {
		dose := strings.TrimSpace(*e.Dose)
		rec.Dose = &dose
	}
	if e.Frequency != nil && strings.TrimSpace(*e.Frequency) != "" {
		freq := strings.TrimSpace(*e.Frequency)
		rec.Frequency = &freq
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// Check evaluates a candidate for a patient without touching the registry.
func (r *Registry) Check(ctx context.Context, patientID uuid.UUID, entry ChangeEntry, opts safety.EvaluateOptions) (*safety.Assessment, canonical.Resolution, error) {
	if patientID == uuid.Nil {
		return nil, canonical.Resolution{}, ErrPatientRequired
	}
	res := r.names.Resolve(entry.Name)
	candidate := safety.Candidate{Name: strings.TrimSpace(entry.Name)}
	if res.Status == canonical.StatusFuzzy {
		candidate.Name = res.Canonical
	}
	if entry.Dose != nil {
		candidate.Dose = *entry.Dose
	}
	if entry.Frequency != nil {
		candidate.Frequency = *entry.Frequency
	}
	a, err := r.evaluator.Assess(ctx, patientID, candidate, opts)
	if err != nil {
		return nil, res, err
	}
	return a, res, nil
}

// List returns a page of a patient's records.
func (r *Registry) List(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error) {
	if patientID == uuid.Nil {
		return nil, 0, ErrPatientRequired
	}
	return r.repo.SearchByPatient(ctx, patientID, activeOnly, limit, offset)
}

// UseAI reports the configured default for the advisor layer.
func (r *Registry) UseAI() bool { return r.cfg.UseAI }
