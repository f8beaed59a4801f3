package medication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/medsafety/internal/platform/lookupcache"
)

// recordLookup finds a patient's records during one sync, reading through a
// per-invocation cache primed from a single ListByPatient. A miss always
// falls back to the repository.
type recordLookup struct {
	repo      Repository
	patientID uuid.UUID
	cache     *lookupcache.Cache[*Record]
}

func newRecordLookup(repo Repository, patientID uuid.UUID, size int, ttl time.Duration) *recordLookup {
	return &recordLookup{
		repo:      repo,
		patientID: patientID,
		cache:     lookupcache.New[*Record](size, ttl),
	}
}

func canonicalKey(c string) string { return "canonical:" + c }
func nameKey(n string) string      { return "name:" + n }

// prime loads every record of the patient. When several records share a key
// the active one wins, then the later one.
func (l *recordLookup) prime(ctx context.Context) error {
	records, err := l.repo.ListByPatient(ctx, l.patientID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		l.offer(canonicalKey(rec.CanonicalName), rec)
		l.offer(nameKey(rec.NameLower), rec)
	}
	return nil
}

func (l *recordLookup) offer(key string, rec *Record) {
	if cur, ok := l.cache.Get(key); ok && cur.Active && !rec.Active {
		return
	}
	l.cache.Set(key, rec.clone())
}

// find returns the record for canon, else for nameLower, or nil when the
// patient has neither.
func (l *recordLookup) find(ctx context.Context, canon, nameLower string) (*Record, error) {
	if canon != "" {
		rec, err := l.get(canonicalKey(canon), func() (*Record, error) {
			return l.repo.FindByCanonical(ctx, l.patientID, canon)
		})
		if rec != nil || err != nil {
			return rec, err
		}
	}
	return l.get(nameKey(nameLower), func() (*Record, error) {
		return l.repo.FindByNameLower(ctx, l.patientID, nameLower)
	})
}

func (l *recordLookup) get(key string, load func() (*Record, error)) (*Record, error) {
	if rec, ok := l.cache.Get(key); ok {
		return rec.clone(), nil
	}
	rec, err := load()
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, rec.clone())
	return rec, nil
}

// remember caches rec after it was written.
func (l *recordLookup) remember(rec *Record) {
	c := rec.clone()
	l.cache.Set(canonicalKey(rec.CanonicalName), c)
	l.cache.Set(nameKey(rec.NameLower), c.clone())
}

// forget drops both keys so later entries of the sync reload them from the
// repository.
func (l *recordLookup) forget(canon, nameLower string) {
	l.cache.Delete(canonicalKey(canon))
	l.cache.Delete(nameKey(nameLower))
}
