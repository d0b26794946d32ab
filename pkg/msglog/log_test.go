package msglog

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/niaga/pkg/metrics"
	"github.com/harunnryd/niaga/pkg/session"
)

func TestAppendRedactsContent(t *testing.T) {
	log := NewMemoryLog(nil)
	id, err := log.Append(context.Background(), "s1", "user", "reach me at jane@example.com", 0, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	msgs := log.Messages("s1")
	if len(msgs) != 1 || msgs[0].ID != id {
		t.Fatalf("expected one stored message, got %d", len(msgs))
	}
	if msgs[0].Content == "reach me at jane@example.com" {
		t.Fatalf("email was not redacted: %q", msgs[0].Content)
	}
}

func TestEnrichmentCostEventuallyMerged(t *testing.T) {
	store := session.NewMemoryStore()
	if err := store.Save(context.Background(), &session.Session{ID: "s1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	obs := metrics.NewMemoryObserver()
	worker := NewEnrichmentWorker(&StaticEnricher{
		Result: Enrichment{Sentiment: "negative", Intent: "complaint", Cost: 0.002},
	}, store, obs, nil, WorkerOptions{Buffer: 4, Workers: 1})
	log := NewMemoryLog(worker)
	worker.SetMetaSetter(log)

	id, _ := log.Append(context.Background(), "s1", "user", "barang saya rusak", 0, nil)
	log.EnqueueEnrichment(id, "s1", "barang saya rusak")
	worker.Close()

	s, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.TotalCost != 0.002 {
		t.Fatalf("expected merged cost 0.002, got %v", s.TotalCost)
	}
	msgs := log.Messages("s1")
	if msgs[0].Meta["sentiment"] != "negative" {
		t.Fatalf("expected sentiment meta, got %v", msgs[0].Meta)
	}
	if obs.Count(metrics.EventEnrichmentDone) != 1 {
		t.Fatalf("expected one enrichment_done event")
	}
}

func TestEnrichmentFailureDoesNotTouchSession(t *testing.T) {
	store := session.NewMemoryStore()
	if err := store.Save(context.Background(), &session.Session{ID: "s1", TotalCost: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	worker := NewEnrichmentWorker(&StaticEnricher{Err: context.DeadlineExceeded}, store, nil, nil, WorkerOptions{Buffer: 2})
	worker.Enqueue(Task{MessageID: "m1", SessionID: "s1", Content: "hi"})
	worker.Close()

	s, _ := store.Get(context.Background(), "s1")
	if s.TotalCost != 1 {
		t.Fatalf("failed enrichment must not change cost, got %v", s.TotalCost)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	obs := metrics.NewMemoryObserver()
	// Stall the single worker with a slow enricher so the queue fills.
	slow := enricherFunc(func(ctx context.Context, content string) (Enrichment, error) {
		time.Sleep(50 * time.Millisecond)
		return Enrichment{}, nil
	})
	worker := NewEnrichmentWorker(slow, nil, obs, nil, WorkerOptions{Buffer: 1, Workers: 1})
	for i := 0; i < 10; i++ {
		worker.Enqueue(Task{MessageID: "m", SessionID: "s", Content: "x"})
	}
	if obs.Count(metrics.EventEnrichmentDrop) == 0 {
		t.Fatalf("expected drops when queue is full")
	}
	worker.Close()
}

type enricherFunc func(ctx context.Context, content string) (Enrichment, error)

func (f enricherFunc) Enrich(ctx context.Context, content string) (Enrichment, error) {
	return f(ctx, content)
}

func TestCostMergeWaitsForSessionLock(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	if err := store.Save(ctx, &session.Session{ID: "s1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	locker := session.NewLocker()
	worker := NewEnrichmentWorker(&StaticEnricher{
		Result: Enrichment{Cost: 5},
	}, store, nil, nil, WorkerOptions{Buffer: 4, Workers: 1, Locker: locker})

	// Hold the session lock the way a turn in flight does, then hand
	// the worker a merge. It must not land until the lock is released.
	release := locker.Acquire("s1")
	worker.Enqueue(Task{MessageID: "m1", SessionID: "s1", Content: "barang rusak"})
	time.Sleep(50 * time.Millisecond)

	s, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s.TotalCost += 0.00125
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	release()
	worker.Close()

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := 5.00125
	if diff := got.TotalCost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("merge lost to the turn save: total %v, want %v", got.TotalCost, want)
	}
}
