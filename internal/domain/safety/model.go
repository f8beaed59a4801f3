package safety

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Severity is a strict total order: Critical > High > Moderate > Low. The zero
// value is not a valid severity.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityModerate: "moderate",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses the lowercase wire name of a severity.
func ParseSeverity(v string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(strings.TrimSpace(v), n) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid severity: %q", v)
}

func (s Severity) MarshalText() ([]byte, error) {
	n, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid severity: %d", int(s))
	}
	return []byte(n), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WarningType classifies a safety finding.
type WarningType string

const (
	TypeDuplicateTherapy WarningType = "duplicate_therapy"
	TypeDrugInteraction  WarningType = "drug_interaction"
	TypeAllergyAlert     WarningType = "allergy_alert"
)

// Source names the layer that produced a warning.
type Source string

const (
	SourceHardcoded Source = "hardcoded"
	SourceAI        Source = "ai"
	SourceExternal  Source = "external"
)

// Warning is an immutable advisory finding attached to a medication.
type Warning struct {
	Type                  WarningType `json:"type"`
	Severity              Severity    `json:"severity"`
	Message               string      `json:"message"`
	Details               string      `json:"details"`
	Recommendation        string      `json:"recommendation"`
	ConflictingMedication string      `json:"conflicting_medication,omitempty"`
	Allergen              string      `json:"allergen,omitempty"`
	Source                Source      `json:"source"`
	ExternalIDs           []string    `json:"external_ids,omitempty"`
}

// CurrentMedication is the minimal view of a patient medication the rules
// compare against. CanonicalName may be left empty; it is then derived from Name.
type CurrentMedication struct {
	ID            uuid.UUID
	Name          string
	CanonicalName string
	Active        bool
}

// Candidate is the medication being evaluated.
type Candidate struct {
	Name      string `json:"name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// SortBySeverity orders warnings by descending severity, keeping the
// relative order of equal severities.
func SortBySeverity(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].Severity > ws[j].Severity
	})
}

// Dedupe drops warnings that repeat an earlier one's type, severity,
// conflicting medication and allergen. Comparison is case-insensitive and the
// first occurrence wins.
func Dedupe(ws []Warning) []Warning {
	if len(ws) == 0 {
		return ws
	}
	seen := make(map[string]bool, len(ws))
	out := make([]Warning, 0, len(ws))
	for _, w := range ws {
		key := strings.Join([]string{
			string(w.Type),
			w.Severity.String(),
			strings.ToLower(strings.TrimSpace(w.ConflictingMedication)),
			strings.ToLower(strings.TrimSpace(w.Allergen)),
		}, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

// HasCritical reports whether any warning is critical.
func HasCritical(ws []Warning) bool {
	return MaxSeverity(ws) == SeverityCritical
}

// MaxSeverity returns the highest severity present, or 0 for no warnings.
func MaxSeverity(ws []Warning) Severity {
	var top Severity
	for _, w := range ws {
		if w.Severity > top {
			top = w.Severity
		}
	}
	return top
}

// NeedsConfirmation reports whether the warnings warrant the advisory
// needs-confirmation flag (any high or critical finding).
func NeedsConfirmation(ws []Warning) bool {
	return MaxSeverity(ws) >= SeverityHigh
}
