package interaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/internal/platform/metrics"
)

// Pair is one interaction reported by the external source.
type Pair struct {
	ID1         string
	ID2         string
	Severity    string
	Description string
}

// Source is the external interaction database. It is untrusted: every call
// may fail or time out.
type Source interface {
	// ResolveApproximateIdentifier returns "" when nothing matches.
	ResolveApproximateIdentifier(ctx context.Context, name string) (string, error)
	FetchInteractions(ctx context.Context, ids []string) ([]Pair, error)
}

// LookupConfig tunes a Lookup. Zero values fall back to defaults.
type LookupConfig struct {
	CacheTTL    time.Duration
	CallTimeout time.Duration
}

const defaultCallTimeout = 5 * time.Second

// Lookup checks a new drug against current drugs through Source, reading and
// populating the persisted cache. It never returns an error; every failure
// degrades to no warnings.
type Lookup struct {
	names   *canonical.Canonicalizer
	source  Source
	cache   CacheRepository
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewLookup(names *canonical.Canonicalizer, source Source, cache CacheRepository, cfg LookupConfig, logger zerolog.Logger) *Lookup {
	l := &Lookup{
		names:   names,
		source:  source,
		cache:   cache,
		ttl:     cfg.CacheTTL,
		timeout: cfg.CallTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "interaction-lookup").Logger(),
	}
	if l.ttl <= 0 {
		l.ttl = DefaultCacheTTL
	}
	if l.timeout <= 0 {
		l.timeout = defaultCallTimeout
	}
	return l
}

// Check returns external interaction warnings between newName and any of
// currentNames. Interactions purely among current drugs are dropped.
func (l *Lookup) Check(ctx context.Context, patientID uuid.UUID, newName string, currentNames []string) []safety.Warning {
	warnings, _ := l.check(ctx, patientID, newName, currentNames)
	return warnings
}

// check is Check that also reports whether the external source failed, so a
// caller can tell "no interactions" from "unknown".
func (l *Lookup) check(ctx context.Context, patientID uuid.UUID, newName string, currentNames []string) ([]safety.Warning, error) {
	log := l.logger.With().Str("patient_id", patientID.String()).Logger()

	newID, err := l.resolve(ctx, log, newName)
	if err != nil || newID == "" {
		return nil, err
	}

	// id -> display name of the current drug it came from
	current := make(map[string]string, len(currentNames))
	for _, name := range currentNames {
		id, err := l.resolve(ctx, log, name)
		if err != nil || id == "" || id == newID {
			continue
		}
		if _, dup := current[id]; !dup {
			current[id] = name
		}
	}
	if len(current) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(current)+1)
	ids = append(ids, newID)
	for id := range current {
		ids = append(ids, id)
	}
	key := LookupKey(newID, ids[1:])

	if cached, hit := l.cached(ctx, log, patientID, key); hit {
		return cached, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	pairs, err := l.source.FetchInteractions(fetchCtx, ids)
	cancel()
	if err != nil {
		metrics.ExternalLookupFailures.WithLabelValues("fetch").Inc()
		log.Warn().Err(err).Int("ids", len(ids)).Msg("external interaction fetch failed")
		return nil, err
	}

	warnings := make([]safety.Warning, 0, len(pairs))
	for _, p := range pairs {
		var other string
		switch {
		case p.ID1 == newID:
			other = p.ID2
		case p.ID2 == newID:
			other = p.ID1
		default:
			continue
		}
		otherName, ok := current[other]
		if !ok {
			continue
		}
		warnings = append(warnings, toWarning(p, newName, otherName))
	}
	safety.SortBySeverity(warnings)

	entry := &CacheEntry{PatientID: patientID, CacheKey: key, Warnings: warnings, CreatedAt: l.now()}
	if err := l.cache.Put(ctx, entry); err != nil {
		metrics.ExternalCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
	}
	return warnings, nil
}

func (l *Lookup) resolve(ctx context.Context, log zerolog.Logger, name string) (string, error) {
	canon := l.names.Canonical(name)
	if canon == "" {
		return "", nil
	}
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	id, err := l.source.ResolveApproximateIdentifier(callCtx, canon)
	if err != nil {
		metrics.ExternalLookupFailures.WithLabelValues("resolve").Inc()
		log.Warn().Err(err).Str("medication", canon).Msg("identifier resolution failed")
		return "", err
	}
	return strings.TrimSpace(id), nil
}

func (l *Lookup) cached(ctx context.Context, log zerolog.Logger, patientID uuid.UUID, key string) ([]safety.Warning, bool) {
	entry, err := l.cache.Get(ctx, patientID, key)
	switch {
	case err != nil:
		metrics.ExternalCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("cache_key", key).Msg("cache read failed")
		return nil, false
	case entry == nil:
		metrics.ExternalCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case entry.Expired(l.now(), l.ttl):
		metrics.ExternalCacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}
	metrics.ExternalCacheLookups.WithLabelValues("hit").Inc()
	return entry.Warnings, true
}

func toWarning(p Pair, newName, otherName string) safety.Warning {
	sev := MapSeverity(p.Severity)
	details := strings.TrimSpace(p.Description)
	if details == "" {
		details = "The interaction database reports an interaction between these medications."
	}
	return safety.Warning{
		Type:                  safety.TypeDrugInteraction,
		Severity:              sev,
		Message:               fmt.Sprintf("Possible interaction between %s and %s.", newName, otherName),
		Details:               details,
		Recommendation:        safety.InteractionRecommendation(sev),
		ConflictingMedication: otherName,
		Source:                safety.SourceExternal,
		ExternalIDs:           []string{p.ID1, p.ID2},
	}
}

// MapSeverity converts the external source's free-text severity.
func MapSeverity(s string) safety.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "contraindicated":
		return safety.SeverityCritical
	case "high", "major", "severe":
		return safety.SeverityHigh
	case "low", "minor":
		return safety.SeverityLow
	default:
		return safety.SeverityModerate
	}
}
