package canonical

import (
	"math"
	"unicode/utf8"
)

// fuzzyRatio scales the edit-distance tolerance with the longer of the two names.
const fuzzyRatio = 0.35

// Resolution is the outcome of Resolve.
type Resolution struct {
	Canonical string
	Status    MatchStatus
	// Candidate is the known name a fuzzy correction matched against.
	Candidate string
	Distance  int
}

// Resolve canonicalizes name and, when neither the alias index nor suffix
// stripping finds it, tries to correct a misspelling against every known name.
func (c *Canonicalizer) Resolve(name string) Resolution {
	n := normalize(name)
	if n == "" {
		return Resolution{Status: StatusUnverified}
	}
	if hit, ok := c.index[n]; ok {
		return Resolution{Canonical: hit, Status: StatusMatched, Candidate: n}
	}
	stripped := stripSuffixes(n)
	if hit, ok := c.index[stripped]; ok {
		return Resolution{Canonical: hit, Status: StatusMatched, Candidate: stripped}
	}

	best, bestDist := "", -1
	for _, k := range c.known {
		d := Levenshtein(stripped, k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if best != "" && bestDist < Tolerance(stripped, best) {
		return Resolution{Canonical: c.index[best], Status: StatusFuzzy, Candidate: best, Distance: bestDist}
	}
	return Resolution{Canonical: stripped, Status: StatusUnverified}
}

// Tolerance is the largest edit distance, exclusive, accepted as a correction
// between a and b: ceil(0.35 × max(len(a), len(b))) in runes.
func Tolerance(a, b string) int {
	n := utf8.RuneCountInString(a)
	if m := utf8.RuneCountInString(b); m > n {
		n = m
	}
	return int(math.Ceil(fuzzyRatio * float64(n)))
}

// Levenshtein returns the edit distance between a and b counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
