package safety

import (
	"fmt"
	"strings"

	"github.com/ehr/medsafety/internal/domain/canonical"
)

// broadClasses are too general to signal duplicate therapy on their own.
var broadClasses = map[string]bool{
	"cardiovascular":   true,
	"antibiotic":       true,
	"antihypertensive": true,
	"analgesic":        true,
	"supplement":       true,
}

// allergyUmbrellas expand umbrella allergy terms into the classes they cover.
var allergyUmbrellas = map[string][]string{
	"beta-lactam": {"penicillin"},
	"beta lactam": {"penicillin"},
	"sulfa":       {"sulfonamide"},
}

// InteractionRule is one symmetric row of the interaction table. A and B are
// each either a canonical drug name or a therapeutic class.
type InteractionRule struct {
	A           string
	B           string
	Severity    Severity
	Description string
}

// DefaultInteractions is the static interaction table. Order matters only to
// break ties between equally severe rules matching the same pair.
var DefaultInteractions = []InteractionRule{
	{"warfarin", "nsaid", SeverityCritical, "NSAIDs increase the bleeding risk of warfarin and can cause serious gastrointestinal bleeding."},
	{"nitrate", "pde5-inhibitor", SeverityCritical, "Combining nitrates with PDE5 inhibitors can cause a dangerous drop in blood pressure."},
	{"ssri", "maoi", SeverityCritical, "Serotonergic antidepressants with MAO inhibitors can cause serotonin syndrome."},
	{"snri", "maoi", SeverityCritical, "Serotonergic antidepressants with MAO inhibitors can cause serotonin syndrome."},
	{"opioid", "benzodiazepine", SeverityCritical, "Opioids with benzodiazepines can cause profound sedation and respiratory depression."},
	{"tizanidine", "ciprofloxacin", SeverityCritical, "Ciprofloxacin sharply raises tizanidine levels, causing severe low blood pressure and sedation."},
	{"anticoagulant", "antiplatelet", SeverityHigh, "Anticoagulants with antiplatelet drugs increase the risk of bleeding."},
	{"anticoagulant", "nsaid", SeverityHigh, "NSAIDs increase bleeding risk when combined with anticoagulants."},
	{"warfarin", "amiodarone", SeverityHigh, "Amiodarone raises warfarin levels and the risk of bleeding."},
	{"tramadol", "ssri", SeverityHigh, "Tramadol with SSRIs raises the risk of serotonin syndrome and seizures."},
	{"ace-inhibitor", "potassium-sparing-diuretic", SeverityHigh, "ACE inhibitors with potassium-sparing diuretics can raise potassium to dangerous levels."},
	{"ace-inhibitor", "arb", SeverityHigh, "Dual blockade of the renin-angiotensin system raises the risk of kidney injury and high potassium."},
	{"ace-inhibitor", "potassium-supplement", SeverityModerate, "ACE inhibitors with potassium supplements can raise potassium levels."},
	{"statin", "macrolide", SeverityHigh, "Some macrolide antibiotics raise statin levels and the risk of muscle damage."},
	{"simvastatin", "amiodarone", SeverityHigh, "Amiodarone raises simvastatin levels and the risk of muscle damage."},
	{"digoxin", "amiodarone", SeverityHigh, "Amiodarone raises digoxin levels and the risk of toxicity."},
	{"methotrexate", "nsaid", SeverityHigh, "NSAIDs can reduce methotrexate clearance and raise toxicity."},
	{"lithium", "nsaid", SeverityHigh, "NSAIDs can raise lithium levels toward toxicity."},
	{"lithium", "ace-inhibitor", SeverityModerate, "ACE inhibitors can raise lithium levels."},
	{"beta-blocker", "non-dihydropyridine-ccb", SeverityHigh, "Beta blockers with verapamil or diltiazem can slow the heart dangerously."},
	{"opioid", "sedative-hypnotic", SeverityHigh, "Opioids with sedative hypnotics increase the risk of breathing problems."},
	{"clopidogrel", "omeprazole", SeverityModerate, "Omeprazole can reduce the antiplatelet effect of clopidogrel."},
	{"fluoroquinolone", "antacid", SeverityModerate, "Antacids reduce absorption of fluoroquinolone antibiotics."},
	{"levothyroxine", "calcium-supplement", SeverityLow, "Calcium reduces levothyroxine absorption; separate doses by four hours."},
	{"metformin", "corticosteroid", SeverityLow, "Corticosteroids can raise blood sugar and reduce the effect of metformin."},
}

// RuleEngine runs the deterministic duplicate, interaction and allergy checks.
// All methods are pure and safe for concurrent use.
type RuleEngine struct {
	names        *canonical.Canonicalizer
	interactions []InteractionRule
}

// NewRuleEngine builds an engine over names using DefaultInteractions.
func NewRuleEngine(names *canonical.Canonicalizer) *RuleEngine {
	return &RuleEngine{names: names, interactions: DefaultInteractions}
}

// WithInteractions returns a copy of the engine using rules instead of the
// default table.
func (e *RuleEngine) WithInteractions(rules []InteractionRule) *RuleEngine {
	return &RuleEngine{names: e.names, interactions: rules}
}

// Evaluate concatenates allergy, duplicate and interaction warnings, then
// orders them by descending severity.
func (e *RuleEngine) Evaluate(newName string, current []CurrentMedication, allergies []string) []Warning {
	var out []Warning
	out = append(out, e.CheckAllergies(newName, allergies)...)
	out = append(out, e.CheckDuplicates(newName, current)...)
	out = append(out, e.CheckInteractions(newName, current)...)
	SortBySeverity(out)
	return out
}

// CheckDuplicates flags active medications that resolve to the same canonical
// drug (high) or share a specific therapeutic class (moderate).
func (e *RuleEngine) CheckDuplicates(newName string, current []CurrentMedication) []Warning {
	newCanon := e.names.Canonical(newName)
	if newCanon == "" {
		return nil
	}
	newClasses := e.names.Classes(newCanon)

	var out []Warning
	for _, cur := range current {
		if !cur.Active {
			continue
		}
		curCanon := e.canonicalOf(cur)
		if curCanon == newCanon {
			out = append(out, Warning{
				Type:                  TypeDuplicateTherapy,
				Severity:              SeverityHigh,
				Message:               fmt.Sprintf("%s duplicates an active medication (%s).", newName, cur.Name),
				Details:               fmt.Sprintf("Both %s and %s resolve to %s.", newName, cur.Name, newCanon),
				Recommendation:        "Confirm with your healthcare provider whether both prescriptions are intended.",
				ConflictingMedication: cur.Name,
				Source:                SourceHardcoded,
			})
			continue
		}
		if shared := sharedSpecificClass(newClasses, e.names.Classes(curCanon)); shared != "" {
			out = append(out, Warning{
				Type:                  TypeDuplicateTherapy,
				Severity:              SeverityModerate,
				Message:               fmt.Sprintf("%s and %s are both %s medications.", newName, cur.Name, shared),
				Details:               fmt.Sprintf("Taking two %s medications together is usually unintended.", shared),
				Recommendation:        "Ask your healthcare provider whether you should take both.",
				ConflictingMedication: cur.Name,
				Source:                SourceHardcoded,
			})
		}
	}
	return out
}

// CheckInteractions matches the new drug against each active medication in
// both orientations of every rule. Only the most severe matching rule is
// reported per medication; ties go to the earlier rule.
func (e *RuleEngine) CheckInteractions(newName string, current []CurrentMedication) []Warning {
	newCanon := e.names.Canonical(newName)
	if newCanon == "" {
		return nil
	}
	newTerms := e.terms(newCanon)

	var out []Warning
	for _, cur := range current {
		if !cur.Active {
			continue
		}
		curCanon := e.canonicalOf(cur)
		if curCanon == newCanon {
			continue
		}
		curTerms := e.terms(curCanon)

		var best *InteractionRule
		for i := range e.interactions {
			r := &e.interactions[i]
			forward := newTerms[r.A] && curTerms[r.B]
			reverse := newTerms[r.B] && curTerms[r.A]
			if !forward && !reverse {
				continue
			}
			if best == nil || r.Severity > best.Severity {
				best = r
			}
		}
		if best == nil {
			continue
		}
		out = append(out, Warning{
			Type:                  TypeDrugInteraction,
			Severity:              best.Severity,
			Message:               fmt.Sprintf("Possible interaction between %s and %s.", newName, cur.Name),
			Details:               best.Description,
			Recommendation:        InteractionRecommendation(best.Severity),
			ConflictingMedication: cur.Name,
			Source:                SourceHardcoded,
		})
	}
	return out
}

// CheckAllergies compares each documented allergy against the new drug. A
// direct name or class match is critical; a penicillin or beta-lactam allergy
// against a cephalosporin is a high cross-reactivity warning. Each allergy
// yields at most one warning.
func (e *RuleEngine) CheckAllergies(newName string, allergies []string) []Warning {
	newCanon := e.names.Canonical(newName)
	if newCanon == "" {
		return nil
	}
	classes := e.names.Classes(newCanon)

	var out []Warning
	for _, raw := range allergies {
		allergy := strings.ToLower(strings.TrimSpace(raw))
		if allergy == "" {
			continue
		}

		if e.directAllergyMatch(allergy, newCanon) || classAllergyMatch(allergy, classes) {
			out = append(out, Warning{
				Type:           TypeAllergyAlert,
				Severity:       SeverityCritical,
				Message:        fmt.Sprintf("%s may trigger your documented %s allergy.", newName, raw),
				Details:        fmt.Sprintf("%s matches the recorded allergy to %s.", newCanon, raw),
				Recommendation: "Do not take this medication until your healthcare provider confirms it is safe.",
				Allergen:       raw,
				Source:         SourceHardcoded,
			})
			continue
		}

		if isBetaLactamAllergy(allergy) && hasClass(classes, "cephalosporin") {
			out = append(out, Warning{
				Type:           TypeAllergyAlert,
				Severity:       SeverityHigh,
				Message:        fmt.Sprintf("%s is a cephalosporin and may cross-react with your %s allergy.", newName, raw),
				Details:        "Cross-reactivity between penicillins and cephalosporins is uncommon but documented.",
				Recommendation: "Check with your healthcare provider before taking this medication.",
				Allergen:       raw,
				Source:         SourceHardcoded,
			})
		}
	}
	return out
}

func (e *RuleEngine) canonicalOf(m CurrentMedication) string {
	if m.CanonicalName != "" {
		return m.CanonicalName
	}
	return e.names.Canonical(m.Name)
}

// terms is the set a rule side may match: the canonical name plus its classes.
func (e *RuleEngine) terms(canon string) map[string]bool {
	classes := e.names.Classes(canon)
	t := make(map[string]bool, len(classes)+1)
	t[canon] = true
	for _, c := range classes {
		t[c] = true
	}
	return t
}

// minAllergySubstring keeps one- and two-letter allergy text from matching
// every drug name by substring.
const minAllergySubstring = 3

func (e *RuleEngine) directAllergyMatch(allergy, canon string) bool {
	if len(allergy) >= minAllergySubstring && strings.Contains(canon, allergy) {
		return true
	}
	if len(canon) >= minAllergySubstring && strings.Contains(allergy, canon) {
		return true
	}
	return e.names.Canonical(allergy) == canon
}

func classAllergyMatch(allergy string, classes []string) bool {
	for _, c := range classes {
		if (len(allergy) >= minAllergySubstring && strings.Contains(c, allergy)) || strings.HasPrefix(allergy, c) {
			return true
		}
	}
	for term, covered := range allergyUmbrellas {
		if !strings.Contains(allergy, term) {
			continue
		}
		for _, c := range covered {
			if hasClass(classes, c) {
				return true
			}
		}
	}
	return false
}

func isBetaLactamAllergy(allergy string) bool {
	return strings.Contains(allergy, "penicillin") ||
		strings.Contains(allergy, "beta-lactam") ||
		strings.Contains(allergy, "beta lactam")
}

func sharedSpecificClass(newClasses, curClasses []string) string {
	for _, c := range newClasses {
		if broadClasses[c] {
			continue
		}
		if hasClass(curClasses, c) {
			return c
		}
	}
	return ""
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

// InteractionRecommendation is the advice attached to an interaction warning.
func InteractionRecommendation(s Severity) string {
	if s == SeverityCritical {
		return "Contact your healthcare provider immediately before taking these medications together."
	}
	return "Discuss this combination with your healthcare provider."
}
