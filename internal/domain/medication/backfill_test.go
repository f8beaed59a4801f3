package medication

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/canonical"
)

func TestSplitBatches(t *testing.T) {
	items := make([]int, 1000)
	batches := SplitBatches(items, MaxBatchSize)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	total := 0
	for i, b := range batches {
		if len(b) > MaxBatchSize {
			t.Errorf("batch %d has %d items", i, len(b))
		}
		total += len(b)
	}
	if total != 1000 {
		t.Errorf("expected 1000 items across batches, got %d", total)
	}
	if len(batches[2]) != 200 {
		t.Errorf("expected final batch of 200, got %d", len(batches[2]))
	}

	if got := SplitBatches([]int{}, 10); len(got) != 0 {
		t.Errorf("expected no batches for no items, got %d", len(got))
	}
}

func TestPendingCanonicalUpdates(t *testing.T) {
	matched := string(canonical.StatusMatched)
	records := []*Record{
		{ID: uuid.New(), Name: "Lipitor", CanonicalName: "lipitor"},
		{ID: uuid.New(), Name: "Zocor", CanonicalName: "simvastatin", MedicationStatus: &matched},
		{ID: uuid.New(), Name: "Coumadin", CanonicalName: "warfarin"},
	}

	updates := PendingCanonicalUpdates(canonical.Default(), records)
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d: %+v", len(updates), updates)
	}
	if updates[0].CanonicalName != "atorvastatin" || updates[0].MedicationStatus != matched {
		t.Errorf("unexpected first update %+v", updates[0])
	}
	if updates[1].ID != records[2].ID {
		t.Errorf("expected missing status backfilled, got %+v", updates[1])
	}
}

func seedRecords(repo *mockRecordRepo, n int) {
	for i := 0; i < n; i++ {
		rec := &Record{PatientID: uuid.New(), Name: "Lipitor", NameLower: "lipitor", CanonicalName: "lipitor"}
		repo.Create(context.Background(), rec)
	}
}

func TestBackfiller_Run(t *testing.T) {
	repo := newMockRecordRepo()
	seedRecords(repo, 1000)

	res, err := NewBackfiller(repo, canonical.Default(), 0, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Scanned != 1000 || res.Updated != 1000 || res.Batches != 3 || res.FailedBatches != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(repo.batches) != 3 {
		t.Fatalf("expected 3 committed batches, got %d", len(repo.batches))
	}
	for i, b := range repo.batches {
		if len(b) > MaxBatchSize {
			t.Errorf("batch %d exceeds limit: %d", i, len(b))
		}
	}
	if n := len(repo.byCanonical("atorvastatin")); n != 1000 {
		t.Errorf("expected every record rewritten, got %d", n)
	}

	again, err := NewBackfiller(repo, canonical.Default(), 0, zerolog.Nop()).Run(context.Background())
	if err != nil || again.Batches != 0 {
		t.Errorf("expected nothing pending on rerun, got %+v %v", again, err)
	}
}

func TestBackfiller_BatchSizeClamped(t *testing.T) {
	b := NewBackfiller(newMockRecordRepo(), canonical.Default(), 5000, zerolog.Nop())
	if b.batchSize != MaxBatchSize {
		t.Errorf("expected batch size clamped to %d, got %d", MaxBatchSize, b.batchSize)
	}
	if b := NewBackfiller(newMockRecordRepo(), canonical.Default(), 50, zerolog.Nop()); b.batchSize != 50 {
		t.Errorf("expected batch size 50 kept, got %d", b.batchSize)
	}
}

func TestBackfiller_BatchFailure(t *testing.T) {
	repo := newMockRecordRepo()
	seedRecords(repo, 10)
	repo.batchErr = errors.New("deadlock detected")

	res, err := NewBackfiller(repo, canonical.Default(), 4, zerolog.Nop()).Run(context.Background())
	if !errors.Is(err, repo.batchErr) {
		t.Fatalf("expected batch error joined, got %v", err)
	}
	if res.Batches != 3 || res.FailedBatches != 3 || res.Updated != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}
