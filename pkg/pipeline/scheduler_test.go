package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"cinepipe/pkg/checkpoint"
	"cinepipe/pkg/config"
	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/models"
)

// fakeFetcher serves a fixed row set per collection
type fakeFetcher struct {
	mu    sync.Mutex
	rows  map[string][]models.ItemRow
	calls int
	err   error
}

func (f *fakeFetcher) FetchCollection(ctx context.Context, name string, knownIDs map[string]struct{}) ([]models.ItemRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[name], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestScheduler(t *testing.T, fetcher *fakeFetcher, store *fakeRowStore, wrapper *fakeWrapper, opts Options) (*Scheduler, *checkpoint.Manager) {
	t.Helper()
	mgr, err := checkpoint.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create checkpoint manager: %v", err)
	}
	cfg := config.PipelineConfig{
		BatchSize:  500,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	log := logger.NewTestLogger()
	processor := NewProcessor(store, mgr, wrapper, cfg, log)
	scheduler := NewScheduler(fetcher, store, mgr, processor, time.Hour, opts, log)
	scheduler.SetCollections([]string{"Movies"})
	return scheduler, mgr
}

func TestRunOnceFirstCycle(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(4)}}
	store := newFakeRowStore()
	wrapper := &fakeWrapper{}
	scheduler, mgr := newTestScheduler(t, fetcher, store, wrapper, Options{})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	// All fetched rows end up wrapped
	collection, _ := store.LoadCollection("Movies")
	if collection.Len() != 4 {
		t.Fatalf("Expected 4 rows, got %d", collection.Len())
	}
	if collection.WrappedCount() != 4 {
		t.Errorf("Expected 4 wrapped rows, got %d", collection.WrappedCount())
	}

	// Snapshot reflects the new counts
	snapshot := mgr.LoadSnapshot()
	if snapshot["Movies"] != 4 {
		t.Errorf("Snapshot[Movies] = %d, want 4", snapshot["Movies"])
	}
}

func TestRunOnceSkipsWrapWithoutNewRows(t *testing.T) {
	// item-1 permanently fails, so it stays unwrapped after the first cycle
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(3)}}
	store := newFakeRowStore()
	wrapper := &fakeWrapper{failIDs: map[string]bool{"item-1": true}}
	scheduler, _ := newTestScheduler(t, fetcher, store, wrapper, Options{})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("First cycle failed: %v", err)
	}
	callsAfterFirst := wrapper.callCount()

	// Second cycle: same upstream data, so no new rows. The wrap step must
	// not run, and the still-unwrapped row must not be re-attempted.
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("Second cycle failed: %v", err)
	}
	if wrapper.callCount() != callsAfterFirst {
		t.Errorf("Second cycle made %d wrap calls, want 0", wrapper.callCount()-callsAfterFirst)
	}
}

func TestRunOnceForceWrap(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(3)}}
	store := newFakeRowStore()
	wrapper := &fakeWrapper{failIDs: map[string]bool{"item-1": true}}
	scheduler, mgr := newTestScheduler(t, fetcher, store, wrapper, Options{})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("First cycle failed: %v", err)
	}

	// Let the previously failing row succeed, then force a wrap pass
	// despite no new rows. Same checkpoint state, so without the force
	// flag nothing would run.
	wrapper.mu.Lock()
	wrapper.failIDs = nil
	wrapper.mu.Unlock()

	cfg := config.PipelineConfig{BatchSize: 500, MaxRetries: 2, RetryDelay: time.Millisecond}
	log := logger.NewTestLogger()
	forced := NewScheduler(fetcher, store, mgr, NewProcessor(store, mgr, wrapper, cfg, log),
		time.Hour, Options{ForceWrap: true}, log)
	forced.SetCollections([]string{"Movies"})
	if err := forced.RunOnce(context.Background()); err != nil {
		t.Fatalf("Forced cycle failed: %v", err)
	}

	collection, _ := store.LoadCollection("Movies")
	if collection.WrappedCount() != 3 {
		t.Errorf("Expected 3 wrapped rows after forced pass, got %d", collection.WrappedCount())
	}
}

func TestRunOnceSkipFetch(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(3)}}
	store := newFakeRowStore()
	store.put("Movies", testRows(2))
	wrapper := &fakeWrapper{}
	scheduler, _ := newTestScheduler(t, fetcher, store, wrapper, Options{SkipFetch: true})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if fetcher.callCount() != 0 {
		t.Errorf("Expected no fetch calls, got %d", fetcher.callCount())
	}

	// The pre-existing rows still get wrapped: their count is new relative
	// to the empty snapshot
	collection, _ := store.LoadCollection("Movies")
	if collection.WrappedCount() != 2 {
		t.Errorf("Expected 2 wrapped rows, got %d", collection.WrappedCount())
	}
}

func TestRunOnceSkipWrap(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(3)}}
	store := newFakeRowStore()
	wrapper := &fakeWrapper{}
	scheduler, mgr := newTestScheduler(t, fetcher, store, wrapper, Options{SkipWrap: true})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if wrapper.callCount() != 0 {
		t.Errorf("Expected no wrap calls, got %d", wrapper.callCount())
	}

	// The snapshot is still persisted so the next cycle has a baseline
	if snapshot := mgr.LoadSnapshot(); snapshot["Movies"] != 3 {
		t.Errorf("Snapshot[Movies] = %d, want 3", snapshot["Movies"])
	}
}

func TestRunOnceFetchFailureKeepsPriorState(t *testing.T) {
	store := newFakeRowStore()
	store.put("Movies", testRows(2))
	fetcher := &fakeFetcher{err: errs.New(errs.ErrorTypeFetch, "upstream down", 503)}
	wrapper := &fakeWrapper{}
	scheduler, mgr := newTestScheduler(t, fetcher, store, wrapper, Options{})

	err := scheduler.RunOnce(context.Background())
	if err == nil {
		t.Fatal("Expected cycle error on fetch failure")
	}

	// Prior rows untouched, no wrap attempts, no snapshot written
	collection, _ := store.LoadCollection("Movies")
	if collection.Len() != 2 {
		t.Errorf("Expected prior 2 rows, got %d", collection.Len())
	}
	if wrapper.callCount() != 0 {
		t.Errorf("Expected no wrap calls, got %d", wrapper.callCount())
	}
	if snapshot := mgr.LoadSnapshot(); len(snapshot) != 0 {
		t.Errorf("Expected no snapshot after failed cycle, got %v", snapshot)
	}
}

func TestRefreshMergePreservesExistingRows(t *testing.T) {
	// Existing rows keep order and links; only genuinely new IDs append
	existing := testRows(3)
	existing[0].WrappedLink = "https://wrapped.example/item-0"
	store := newFakeRowStore()
	store.put("Movies", existing)

	newRow := models.ItemRow{ID: "item-99", Title: "Item 99", SourceURL: "https://source.example/watch/99"}
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{
		"Movies": {existing[1], newRow}, // one known, one new
	}}
	wrapper := &fakeWrapper{}
	scheduler, _ := newTestScheduler(t, fetcher, store, wrapper, Options{})

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	collection, _ := store.LoadCollection("Movies")
	if collection.Len() != 4 {
		t.Fatalf("Expected 4 rows after merge, got %d", collection.Len())
	}
	if collection.Rows[0].ID != "item-0" || collection.Rows[3].ID != "item-99" {
		t.Errorf("Merge broke ordering: first=%s last=%s", collection.Rows[0].ID, collection.Rows[3].ID)
	}
	// The pre-existing wrapped link survives the refresh
	if collection.Rows[0].WrappedLink != "https://wrapped.example/item-0" {
		t.Errorf("Existing wrapped link lost: %q", collection.Rows[0].WrappedLink)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]models.ItemRow{"Movies": testRows(1)}}
	store := newFakeRowStore()
	wrapper := &fakeWrapper{}
	scheduler, _ := newTestScheduler(t, fetcher, store, wrapper, Options{})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	// Let the first cycle complete, then cancel during the sleep
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
