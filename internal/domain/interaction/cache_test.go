package interaction

import (
	"testing"
	"time"
)

func TestCacheKey_OrderAndDuplicatesIgnored(t *testing.T) {
	a := CacheKey([]string{"11289", "5640", "41493"})
	b := CacheKey([]string{"41493", "11289", "5640", "5640", " "})
	if a != b {
		t.Errorf("expected identical keys, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(a))
	}
	if c := CacheKey([]string{"11289", "5640"}); c == a {
		t.Error("expected different id sets to hash differently")
	}
}

func TestCacheEntry_Expired(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e := &CacheEntry{CreatedAt: created}

	if e.Expired(created.Add(29*24*time.Hour), DefaultCacheTTL) {
		t.Error("expected 29 day old entry to be fresh")
	}
	if !e.Expired(created.Add(DefaultCacheTTL), DefaultCacheTTL) {
		t.Error("expected entry exactly at the TTL to be expired")
	}
	if !e.Expired(created.Add(31*24*time.Hour), DefaultCacheTTL) {
		t.Error("expected 31 day old entry to be expired")
	}
}

func TestLookupKey_OrientedByNewDrug(t *testing.T) {
	a := LookupKey("11289", []string{"1191"})
	b := LookupKey("1191", []string{"11289"})
	if a == b {
		t.Error("expected the new drug to change the key")
	}
	if c := LookupKey("11289", []string{"1191", "1191"}); c != a {
		t.Error("expected duplicate current ids to be ignored")
	}
}
