package medication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/platform/metrics"
)

// MaxBatchSize bounds one backfill transaction.
const MaxBatchSize = 400

const defaultBackfillWorkers = 4

// BackfillResult summarizes a canonical backfill run.
type BackfillResult struct {
	Scanned       int
	Updated       int
	Batches       int
	FailedBatches int
}

// Backfiller recomputes canonical names and match statuses for every stored
// record and rewrites the ones that changed.
type Backfiller struct {
	store     BackfillStore
	names     *canonical.Canonicalizer
	batchSize int
	workers   int
	logger    zerolog.Logger
}

// NewBackfiller builds a backfiller. batchSize outside 1..MaxBatchSize is
// clamped to MaxBatchSize.
func NewBackfiller(store BackfillStore, names *canonical.Canonicalizer, batchSize int, logger zerolog.Logger) *Backfiller {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Backfiller{
		store:     store,
		names:     names,
		batchSize: batchSize,
		workers:   defaultBackfillWorkers,
		logger:    logger.With().Str("component", "canonical-backfill").Logger(),
	}
}

// Run writes the pending updates in concurrent batches. Failed batches are
// reported joined; the others still commit.
func (b *Backfiller) Run(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	records, err := b.store.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("list records: %w", err)
	}
	res.Scanned = len(records)

	updates := PendingCanonicalUpdates(b.names, records)
	batches := SplitBatches(updates, b.batchSize)
	res.Batches = len(batches)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		sem  = make(chan struct{}, b.workers)
	)
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []CanonicalUpdate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := b.store.ApplyCanonicalBatch(ctx, batch); err != nil {
				metrics.BackfillBatches.WithLabelValues("failed").Inc()
				b.logger.Error().Err(err).Int("batch", i).Int("size", len(batch)).Msg("backfill batch failed")
				mu.Lock()
				res.FailedBatches++
				errs = append(errs, fmt.Errorf("batch %d: %w", i, err))
				mu.Unlock()
				return
			}
			metrics.BackfillBatches.WithLabelValues("committed").Inc()
			mu.Lock()
			res.Updated += len(batch)
			mu.Unlock()
		}(i, batch)
	}
	wg.Wait()

	b.logger.Info().
		Int("scanned", res.Scanned).
		Int("updated", res.Updated).
		Int("batches", res.Batches).
		Int("failed_batches", res.FailedBatches).
		Msg("canonical backfill complete")
	return res, errors.Join(errs...)
}

// PendingCanonicalUpdates returns the records whose stored canonical name or
// status differs from what the canonicalizer now resolves.
func PendingCanonicalUpdates(names *canonical.Canonicalizer, records []*Record) []CanonicalUpdate {
	var out []CanonicalUpdate
	for _, rec := range records {
		res := names.Resolve(rec.Name)
		if res.Canonical == "" {
			continue
		}
		status := string(res.Status)
		if rec.CanonicalName == res.Canonical && rec.MedicationStatus != nil && *rec.MedicationStatus == status {
			continue
		}
		out = append(out, CanonicalUpdate{ID: rec.ID, CanonicalName: res.Canonical, MedicationStatus: status})
	}
	return out
}

// SplitBatches cuts items into consecutive groups of at most size.
func SplitBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
