// Package canonical resolves free-text drug names to a canonical generic
// identity using an alias table, salt/formulation suffix stripping and, when
// asked, edit-distance correction of misspellings.
package canonical

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchStatus describes how a name was resolved.
type MatchStatus string

const (
	StatusMatched    MatchStatus = "matched"
	StatusFuzzy      MatchStatus = "fuzzy"
	StatusUnverified MatchStatus = "unverified"
)

// saltSuffixes are trailing words dropped before the second alias lookup.
var saltSuffixes = map[string]bool{
	"succinate": true, "tartrate": true, "hydrochloride": true, "hcl": true,
	"sodium":    true, "potassium": true, "calcium": true, "magnesium": true,
	"maleate":   true, "mesylate": true, "besylate": true, "citrate": true,
	"sulfate":   true, "phosphate": true, "acetate": true, "fumarate": true,
	"bromide":   true, "hyclate": true, "monohydrate": true, "dihydrate": true,
	"xr":        true, "er": true, "sr": true, "xl": true, "la": true, "cr": true,
	"dr":        true, "ir": true, "ec": true, "odt": true,
}

// doseWords are dosage-form and unit tokens that never carry identity.
var doseWords = map[string]bool{
	"mg":   true, "mcg": true, "µg": true, "g": true, "ml": true, "iu": true,
	"unit": true, "units": true, "meq": true, "%": true,
	"tab":  true, "tabs": true, "tablet": true, "tablets": true,
	"cap":  true, "caps": true, "capsule": true, "capsules": true,
}

var strengthPattern = regexp.MustCompile(`^\d+(\.\d+)?(/\d+(\.\d+)?)*(mg|mcg|µg|g|ml|iu|units?|meq|%)?$`)

// Canonicalizer holds the reverse alias index. It is safe for concurrent use;
// all state is built in New and never mutated afterwards.
type Canonicalizer struct {
	index   map[string]string
	classes map[string][]string
	known   []string
}

// New builds the reverse index from table. Every canonical name and every
// alias maps to its canonical name.
func New(table map[string]Entry) *Canonicalizer {
	c := &Canonicalizer{
		index:   make(map[string]string, len(table)*3),
		classes: make(map[string][]string, len(table)),
	}
	for name, entry := range table {
		key := normalize(name)
		c.index[key] = key
		c.classes[key] = entry.Classes
		for _, alias := range entry.Aliases {
			c.index[normalize(alias)] = key
		}
	}
	c.known = make([]string, 0, len(c.index))
	for k := range c.index {
		c.known = append(c.known, k)
	}
	sort.Strings(c.known)
	return c
}

var (
	defaultOnce sync.Once
	defaultC    *Canonicalizer
)

// Default returns a Canonicalizer over DefaultTable, built on first use.
func Default() *Canonicalizer {
	defaultOnce.Do(func() {
		defaultC = New(DefaultTable)
	})
	return defaultC
}

// Canonical maps name to its canonical generic name. It never fails: names
// with no alias match come back lowercased, trimmed and suffix-stripped.
func (c *Canonicalizer) Canonical(name string) string {
	n := normalize(name)
	if n == "" {
		return ""
	}
	if hit, ok := c.index[n]; ok {
		return hit
	}
	stripped := stripSuffixes(n)
	if hit, ok := c.index[stripped]; ok {
		return hit
	}
	return stripped
}

// Classes returns the therapeutic classes of a canonical name, most specific
// first, or nil when the drug is not in the table.
func (c *Canonicalizer) Classes(canonical string) []string {
	return c.classes[canonical]
}

// Known reports whether canonical is a name from the reference table.
func (c *Canonicalizer) Known(canonical string) bool {
	_, ok := c.classes[canonical]
	return ok
}

func normalize(s string) string {
	// transform chains keep state, so one is built per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '(' || r == ')' || r == ';'
	})
	if len(fields) == 0 {
		// Only separators: keep the lowercased input rather than nothing.
		return folded
	}
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if doseWords[f] || strengthPattern.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return strings.Join(fields, " ")
	}
	return strings.Join(kept, " ")
}

func stripSuffixes(n string) string {
	words := strings.Fields(n)
	for len(words) > 1 && saltSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
