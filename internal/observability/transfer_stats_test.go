package observability

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTransferStats_RecordAccess(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	stats.RecordAccess("https://example.com/a.csv", OutcomeFetch)
	stats.RecordAccess("https://example.com/a.csv", OutcomeLedgerHit)
	stats.RecordAccess("https://example.com/a.csv", OutcomeLedgerHit)

	top := stats.GetTopSources(10)
	if len(top) != 1 {
		t.Fatalf("expected 1 source, got %d", len(top))
	}

	s := top[0]
	if s.URL != "https://example.com/a.csv" {
		t.Errorf("expected URL https://example.com/a.csv, got %s", s.URL)
	}
	if s.Accesses != 3 {
		t.Errorf("expected 3 accesses, got %d", s.Accesses)
	}
	if s.Outcomes[OutcomeFetch] != 1 {
		t.Errorf("expected 1 fetch outcome, got %d", s.Outcomes[OutcomeFetch])
	}
	if s.Outcomes[OutcomeLedgerHit] != 2 {
		t.Errorf("expected 2 ledger hits, got %d", s.Outcomes[OutcomeLedgerHit])
	}
	if s.LastSeen.IsZero() {
		t.Error("expected LastSeen to be set")
	}
}

func TestTransferStats_RecordBytes(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	stats.RecordAccess("https://example.com/a.csv", OutcomeFetch)
	stats.RecordBytes("https://example.com/a.csv", 1024)
	stats.RecordBytes("https://example.com/a.csv", 512)

	// Non-positive sizes are ignored
	stats.RecordBytes("https://example.com/a.csv", 0)
	stats.RecordBytes("https://example.com/a.csv", -7)

	top := stats.GetTopSources(1)
	if len(top) != 1 {
		t.Fatalf("expected 1 source, got %d", len(top))
	}
	if top[0].Bytes != 1536 {
		t.Errorf("expected 1536 bytes, got %d", top[0].Bytes)
	}
}

func TestTransferStats_GetTopSources_Ordering(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	// hot.csv accessed 5 times, warm.csv 3 times, cold.csv once
	for i := 0; i < 5; i++ {
		stats.RecordAccess("https://example.com/hot.csv", OutcomeLedgerHit)
	}
	for i := 0; i < 3; i++ {
		stats.RecordAccess("https://example.com/warm.csv", OutcomeFetch)
	}
	stats.RecordAccess("https://example.com/cold.csv", OutcomeFetch)

	top := stats.GetTopSources(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(top))
	}
	if top[0].URL != "https://example.com/hot.csv" {
		t.Errorf("expected hot.csv first, got %s", top[0].URL)
	}
	if top[0].Accesses != 5 {
		t.Errorf("expected 5 accesses for hot.csv, got %d", top[0].Accesses)
	}
	if top[1].URL != "https://example.com/warm.csv" {
		t.Errorf("expected warm.csv second, got %s", top[1].URL)
	}
}

func TestTransferStats_GetTopSources_LimitExceedsCount(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	stats.RecordAccess("https://example.com/a.csv", OutcomeFetch)
	stats.RecordAccess("https://example.com/b.csv", OutcomeFetch)

	top := stats.GetTopSources(50)
	if len(top) != 2 {
		t.Errorf("expected 2 sources when limit exceeds count, got %d", len(top))
	}
}

func TestTransferStats_Empty(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	top := stats.GetTopSources(10)
	if len(top) != 0 {
		t.Errorf("expected empty result, got %d sources", len(top))
	}

	top = stats.GetTopSources(0)
	if len(top) != 0 {
		t.Errorf("expected empty result for n=0, got %d sources", len(top))
	}

	sum := stats.GetSummary()
	if sum.LedgerHits != 0 || sum.Fetches != 0 || sum.Bytes != 0 {
		t.Errorf("expected zero summary, got %+v", sum)
	}
}

func TestTransferStats_GetSummary(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	stats.RecordAccess("https://example.com/a.csv", OutcomeFetch)
	stats.RecordBytes("https://example.com/a.csv", 2048)
	stats.RecordAccess("https://example.com/a.csv", OutcomeLedgerHit)
	stats.RecordAccess("https://example.com/b.csv", OutcomeDiskHit)
	stats.RecordAccess("https://example.com/c.csv", OutcomeFailure)

	sum := stats.GetSummary()
	if sum.Fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", sum.Fetches)
	}
	if sum.LedgerHits != 1 {
		t.Errorf("expected 1 ledger hit, got %d", sum.LedgerHits)
	}
	if sum.DiskHits != 1 {
		t.Errorf("expected 1 disk hit, got %d", sum.DiskHits)
	}
	if sum.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", sum.Failures)
	}
	if sum.Bytes != 2048 {
		t.Errorf("expected 2048 bytes, got %d", sum.Bytes)
	}
}

func TestTransferStats_Concurrent(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	var wg sync.WaitGroup
	workers := 10
	perWorker := 100

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			url := fmt.Sprintf("https://example.com/file%d.csv", id%3)
			for i := 0; i < perWorker; i++ {
				stats.RecordAccess(url, OutcomeLedgerHit)
				stats.RecordBytes(url, 10)
			}
		}(w)
	}
	wg.Wait()

	var total int64
	for _, s := range stats.GetTopSources(10) {
		total += s.Accesses
	}
	if total != int64(workers*perWorker) {
		t.Errorf("expected %d total accesses, got %d", workers*perWorker, total)
	}

	sum := stats.GetSummary()
	if sum.Bytes != int64(workers*perWorker*10) {
		t.Errorf("expected %d total bytes, got %d", workers*perWorker*10, sum.Bytes)
	}
}

func TestTransferStats_Prune(t *testing.T) {
	stats := NewTransferStats(50 * time.Millisecond)

	stats.RecordAccess("https://example.com/old.csv", OutcomeFetch)
	time.Sleep(80 * time.Millisecond)
	stats.RecordAccess("https://example.com/fresh.csv", OutcomeFetch)

	stats.Prune()

	top := stats.GetTopSources(10)
	if len(top) != 1 {
		t.Fatalf("expected 1 source after prune, got %d", len(top))
	}
	if top[0].URL != "https://example.com/fresh.csv" {
		t.Errorf("expected fresh.csv to survive prune, got %s", top[0].URL)
	}
}

func TestTransferStats_CopyIsolation(t *testing.T) {
	stats := NewTransferStats(24 * time.Hour)

	stats.RecordAccess("https://example.com/a.csv", OutcomeFetch)

	top := stats.GetTopSources(1)
	top[0].Accesses = 999
	top[0].Outcomes[OutcomeFetch] = 999

	again := stats.GetTopSources(1)
	if again[0].Accesses != 1 {
		t.Errorf("mutating returned copy leaked into tracker: accesses = %d", again[0].Accesses)
	}
	if again[0].Outcomes[OutcomeFetch] != 1 {
		t.Errorf("mutating returned outcome map leaked into tracker: %d", again[0].Outcomes[OutcomeFetch])
	}
}
