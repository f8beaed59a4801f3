package safety

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/platform/metrics"
)

// ErrInvalidOptions is returned when an evaluation request fails validation.
var ErrInvalidOptions = errors.New("invalid evaluation options")

// ActiveMedicationSource lists a patient's currently active medications.
type ActiveMedicationSource interface {
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]CurrentMedication, error)
}

// AllergySource lists the documented allergy substances of a patient.
type AllergySource interface {
	ListSubstances(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

// Advisor is the generative layer. Implementations enforce their own timeout.
type Advisor interface {
	SuggestAdditionalWarnings(ctx context.Context, patientID uuid.UUID, entry Candidate, excludeID *uuid.UUID) ([]Warning, error)
}

// EvaluateOptions controls one evaluation. The zero value runs only the rule
// layer and excludes nothing.
type EvaluateOptions struct {
	// UseAI enables the advisor layer when one is configured.
	UseAI bool
	// ExcludeMedicationID drops the record being replaced from the
	// comparison set.
	ExcludeMedicationID *uuid.UUID
}

// Assessment is the full outcome of an evaluation.
type Assessment struct {
	Warnings       []Warning
	Fingerprint    string
	ShortCircuited bool
	AdvisorUsed    bool
}

// Orchestrator sequences the rule layer and the optional advisor layer.
type Orchestrator struct {
	rules     *RuleEngine
	meds      ActiveMedicationSource
	allergies AllergySource
	advisor   Advisor
	logger    zerolog.Logger
}

// NewOrchestrator builds an orchestrator. advisor may be nil.
func NewOrchestrator(rules *RuleEngine, meds ActiveMedicationSource, allergies AllergySource, advisor Advisor, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		rules:     rules,
		meds:      meds,
		allergies: allergies,
		advisor:   advisor,
		logger:    logger.With().Str("component", "safety-orchestrator").Logger(),
	}
}

// Evaluate returns the merged, deduplicated warnings for entry.
func (o *Orchestrator) Evaluate(ctx context.Context, patientID uuid.UUID, entry Candidate, opts EvaluateOptions) ([]Warning, error) {
	a, err := o.Assess(ctx, patientID, entry, opts)
	if err != nil {
		return nil, err
	}
	return a.Warnings, nil
}

// Assess runs the layers in order. A failure loading the patient's
// medications or allergies is returned; an advisor failure is logged and the
// deterministic results are kept.
func (o *Orchestrator) Assess(ctx context.Context, patientID uuid.UUID, entry Candidate, opts EvaluateOptions) (*Assessment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidOptions)
	}
	if strings.TrimSpace(entry.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidOptions)
	}

	current, err := o.meds.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list active medications: %w", err)
	}
	allergies, err := o.allergies.ListSubstances(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list allergies: %w", err)
	}

	newCanon := o.rules.names.Canonical(entry.Name)
	compared := make([]CurrentMedication, 0, len(current))
	canons := make([]string, 0, len(current))
	for _, m := range current {
		if opts.ExcludeMedicationID != nil && m.ID == *opts.ExcludeMedicationID {
			continue
		}
		canon := o.rules.canonicalOf(m)
		if canon == newCanon {
			continue
		}
		compared = append(compared, m)
		canons = append(canons, canon)
	}

	result := &Assessment{Fingerprint: Fingerprint(SourceHardcoded, newCanon, canons, allergies)}

	start := time.Now()
	ruleWarnings := o.rules.Evaluate(entry.Name, compared, allergies)
	metrics.SafetyLayerCalls.WithLabelValues(string(SourceHardcoded)).Inc()
	metrics.SafetyLayerDuration.WithLabelValues(string(SourceHardcoded)).Observe(time.Since(start).Seconds())

	if HasCritical(ruleWarnings) {
		metrics.SafetyShortCircuits.Inc()
		o.logger.Debug().
			Str("patient_id", patientID.String()).
			Str("medication", newCanon).
			Msg("critical rule finding, skipping advisor")
		warnings := Dedupe(ruleWarnings)
		SortBySeverity(warnings)
		result.Warnings = warnings
		result.ShortCircuited = true
		return result, nil
	}

	merged := ruleWarnings
	if opts.UseAI && o.advisor != nil {
		result.AdvisorUsed = true
		merged = append(merged, o.consultAdvisor(ctx, patientID, entry, opts.ExcludeMedicationID)...)
	}

	merged = Dedupe(merged)
	SortBySeverity(merged)
	result.Warnings = merged
	return result, nil
}

func (o *Orchestrator) consultAdvisor(ctx context.Context, patientID uuid.UUID, entry Candidate, excludeID *uuid.UUID) []Warning {
	start := time.Now()
	suggested, err := o.advisor.SuggestAdditionalWarnings(ctx, patientID, entry, excludeID)
	metrics.SafetyLayerCalls.WithLabelValues(string(SourceAI)).Inc()
	metrics.SafetyLayerDuration.WithLabelValues(string(SourceAI)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SafetyLayerFailures.WithLabelValues(string(SourceAI)).Inc()
		o.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Str("medication", entry.Name).
			Msg("advisor failed, using rule results only")
		return nil
	}

	out := make([]Warning, 0, len(suggested))
	for _, w := range suggested {
		if w.Type == "" || w.Severity < SeverityLow || w.Severity > SeverityCritical {
			continue
		}
		w.Source = SourceAI
		out = append(out, w)
	}
	return out
}

// Fingerprint hashes the medication state an evaluation ran against. layer
// namespaces the hash so that results from different layers never compare
// equal.
func Fingerprint(layer Source, newCanonical string, currentCanonicals, allergies []string) string {
	cur := sortedUnique(currentCanonicals)
	alg := make([]string, 0, len(allergies))
	for _, a := range allergies {
		alg = append(alg, strings.ToLower(strings.TrimSpace(a)))
	}
	alg = sortedUnique(alg)

	h := sha256.New()
	h.Write([]byte(layer))
	h.Write([]byte{0})
	h.Write([]byte(newCanonical))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(cur, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(alg, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
