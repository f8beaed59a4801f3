// Package interaction checks a new medication against a patient's current
// medications using an external interaction database, with a persisted
// per-patient cache of results.
package interaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/domain/safety"
)

// DefaultCacheTTL is how long a cached external result stays fresh.
const DefaultCacheTTL = 30 * 24 * time.Hour

// CacheEntry is one persisted external lookup result. Entries are replaced,
// never mutated.
type CacheEntry struct {
	PatientID uuid.UUID        `json:"patient_id"`
	CacheKey  string           `json:"cache_key"`
	Warnings  []safety.Warning `json:"warnings"`
	CreatedAt time.Time        `json:"created_at"`
}

// Expired reports whether the entry is at least ttl old at now.
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// CacheRepository persists external lookup results keyed by patient and
// drug-set fingerprint.
type CacheRepository interface {
	// Get returns nil, nil when no entry exists.
	Get(ctx context.Context, patientID uuid.UUID, cacheKey string) (*CacheEntry, error)
	// Put inserts or replaces the entry for (PatientID, CacheKey).
	Put(ctx context.Context, e *CacheEntry) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
}

// CacheKey fingerprints a set of external identifiers: the hex SHA-256 of the
// sorted, deduplicated ids joined by commas.
func CacheKey(ids []string) string {
	seen := make(map[string]bool, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	sum := sha256.Sum256([]byte(strings.Join(uniq, ",")))
	return hex.EncodeToString(sum[:])
}

// newIDMarker tags the new drug's identifier inside a lookup key.
const newIDMarker = "*"

// LookupKey is the cache key for checking newID against currentIDs. Warnings
// name the conflicting current drug, so the same id set checked from a
// different new drug gets its own key.
func LookupKey(newID string, currentIDs []string) string {
	ids := make([]string, 0, len(currentIDs)+1)
	ids = append(ids, newID+newIDMarker)
	ids = append(ids, currentIDs...)
	return CacheKey(ids)
}
