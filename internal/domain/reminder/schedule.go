package reminder

import (
	"regexp"
	"strings"
)

// phrase maps a frequency pattern to its canonical reminder times.
type phrase struct {
	pattern *regexp.Regexp
	times   []string
}

func words(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(` + strings.Join(alternatives, "|") + `)\b`)
}

var (
	asNeeded = words("as needed", "as required", "when needed", "if needed", "on demand", "prn")

	withMeals = words("with meals", "with each meal", "with every meal", "with all meals")

	meals = []phrase{
		{words("breakfast"), []string{"08:00"}},
		{words("lunch"), []string{"12:00"}},
		{words("dinner", "supper"), []string{"18:00"}},
	}

	// Ordered: the more specific cadence must win ("twice daily" is not "daily").
	cadences = []phrase{
		{words("four times", "4 times", "qid", "every 6 hours"), []string{"08:00", "12:00", "16:00", "20:00"}},
		{words("three times", "3 times", "tid", "every 8 hours"), []string{"08:00", "14:00", "20:00"}},
		{words("twice", "two times", "2 times", "bid", "every 12 hours"), []string{"08:00", "20:00"}},
		{words("bedtime", "nightly", "at night", "every night", "qhs", "hs"), []string{"21:00"}},
		{words("once daily", "once a day", "daily", "every day", "every morning", "in the morning", "qd", "qam"), []string{"08:00"}},
		{words("weekly", "once a week", "every week"), []string{"08:00"}},
	}

	defaultTimes = []string{"08:00"}
)

// DeriveTimes classifies a frequency phrase into the daily reminder times, as
// HH:MM in ascending order. A nil result means no reminder should exist
// (as-needed therapy). Unrecognized or empty text gets a single morning
// reminder.
func DeriveTimes(frequency string) []string {
	f := strings.ToLower(strings.TrimSpace(frequency))
	f = strings.ReplaceAll(f, ".", "")
	f = strings.Join(strings.Fields(f), " ")

	if asNeeded.MatchString(f) {
		return nil
	}

	if withMeals.MatchString(f) {
		return []string{"08:00", "12:00", "18:00"}
	}
	var mealTimes []string
	for _, m := range meals {
		if m.pattern.MatchString(f) {
			mealTimes = append(mealTimes, m.times...)
		}
	}
	if len(mealTimes) > 0 {
		return mealTimes
	}

	for _, c := range cadences {
		if c.pattern.MatchString(f) {
			return append([]string(nil), c.times...)
		}
	}
	return append([]string(nil), defaultTimes...)
}
