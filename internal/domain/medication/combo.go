package medication

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	slashProduct = regexp.MustCompile(`[^\s/]\s*/\s*[^\s/]`)
	withWord     = regexp.MustCompile(`(?i)\bwith\b`)
	comboJoiner  = regexp.MustCompile(`(?i)\s+and\s+|\s*&\s*|\s*\+\s*`)
)

// SplitCombo decides whether an entry names one fixed-dose product or several
// co-administered drugs. Slash notation and "with" mean one product; "and",
// "&" and "+" mean one entry per component, each copying the dose, frequency,
// note and flags verbatim.
func SplitCombo(entry ChangeEntry) []ChangeEntry {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return nil
	}

	if slashProduct.MatchString(name) {
		product, strength := splitStrength(name)
		out := entry
		out.Name = product
		if out.Dose == nil && strength != "" {
			out.Dose = &strength
		}
		return []ChangeEntry{out}
	}

	if withWord.MatchString(name) {
		out := entry
		out.Name = name
		return []ChangeEntry{out}
	}

	parts := comboJoiner.Split(name, -1)
	out := make([]ChangeEntry, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		component := entry
		component.Name = p
		out = append(out, component)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitStrength cuts "HCTZ/Lisinopril 12.5/20 mg" at the first token that
// starts with a digit. A name with no leading product text is kept whole.
func splitStrength(name string) (product, strength string) {
	fields := strings.Fields(name)
	for i, f := range fields {
		if i > 0 && unicode.IsDigit([]rune(f)[0]) {
			return strings.Join(fields[:i], " "), strings.Join(fields[i:], " ")
		}
	}
	return name, ""
}
