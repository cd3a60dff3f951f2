package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type applyCandidate struct {
	key string
}

func (c applyCandidate) NaturalKey() string { return c.key }

func classifiedNew(keys ...string) []Classified[applyCandidate] {
	records := make([]Classified[applyCandidate], 0, len(keys))
	for _, key := range keys {
		records = append(records, Classified[applyCandidate]{Candidate: applyCandidate{key}, State: StateNew})
	}
	return records
}

func TestApplyChunkedPartialFailureIsolation(t *testing.T) {
	records := classifiedNew("r1", "r2", "r3", "r4", "r5", "r6", "r7")
	run := NewRun("test")

	write := func(_ context.Context, rec Classified[applyCandidate]) error {
		if rec.Candidate.key == "r3" {
			return errors.New("unique constraint violation")
		}
		return nil
	}

	err := ApplyChunked(context.Background(), run, records, 5, 3, write, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.NewCount != 6 || run.FailedCount != 1 {
		t.Fatalf("expected 6 written 1 failed, got new=%d failed=%d", run.NewCount, run.FailedCount)
	}
	if len(run.Failures) != 1 || run.Failures[0].NaturalKey != "r3" {
		t.Fatalf("expected failure recorded for r3, got %+v", run.Failures)
	}
}

func TestApplyChunkedWriterPanicIsCaught(t *testing.T) {
	records := classifiedNew("r1", "r2")
	run := NewRun("test")

	write := func(_ context.Context, rec Classified[applyCandidate]) error {
		if rec.Candidate.key == "r2" {
			panic("boom")
		}
		return nil
	}

	if err := ApplyChunked(context.Background(), run, records, 10, 2, write, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.NewCount != 1 || run.FailedCount != 1 {
		t.Fatalf("expected panic folded into failures, got new=%d failed=%d", run.NewCount, run.FailedCount)
	}
}

func TestApplyChunkedProgressPerChunk(t *testing.T) {
	records := classifiedNew("r1", "r2", "r3", "r4", "r5")
	run := NewRun("test")

	var events []Progress
	err := ApplyChunked(context.Background(), run, records, 2, 2,
		func(context.Context, Classified[applyCandidate]) error { return nil },
		func(p Progress) { events = append(events, p) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(events))
	}
	expected := []int{2, 4, 5}
	for i, p := range events {
		if p.Processed != expected[i] || p.Total != 5 {
			t.Fatalf("event %d: expected %d/5, got %d/%d", i, expected[i], p.Processed, p.Total)
		}
	}
	if events[2].Percentage != 100 {
		t.Fatalf("final percentage expected 100, got %v", events[2].Percentage)
	}
}

func TestApplyChunkedBoundedConcurrency(t *testing.T) {
	records := classifiedNew("r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8")
	run := NewRun("test")

	var inFlight, peak int32
	write := func(context.Context, Classified[applyCandidate]) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	if err := ApplyChunked(context.Background(), run, records, 8, 2, write, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("concurrency bound exceeded: peak %d in-flight writes", p)
	}
	if run.NewCount != 8 {
		t.Fatalf("expected all 8 written, got %d", run.NewCount)
	}
}

func TestApplyChunkedCancelBetweenChunks(t *testing.T) {
	records := classifiedNew("r1", "r2", "r3", "r4")
	run := NewRun("test")

	ctx, cancel := context.WithCancel(context.Background())
	err := ApplyChunked(ctx, run, records, 2, 2,
		func(context.Context, Classified[applyCandidate]) error { return nil },
		func(p Progress) {
			if p.Processed == 2 {
				cancel()
			}
		})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	// The in-flight chunk drained; counts reflect exactly what was written.
	if run.NewCount != 2 {
		t.Fatalf("expected first chunk written before honoring cancel, got %d", run.NewCount)
	}
}

func TestApplyChunkedSameKeyRowsPersistLastValue(t *testing.T) {
	// Two rows for one natural key with different values. Collapsed to a
	// single write, the final persisted value no longer depends on which
	// concurrent write finishes last.
	candidates := []testCandidate{
		{"2026-01-10", "A01", decimal.NewFromInt(10)},
		{"2026-01-10", "A01", decimal.NewFromInt(12)},
	}
	out := Classify(candidates, map[string]testExisting{}, harvestOptions())
	records := CollapseWritable(out.Writable())

	var mu sync.Mutex
	store := map[string]decimal.Decimal{}
	writes := 0
	write := func(_ context.Context, rec Classified[testCandidate]) error {
		// The earlier row's insert finishing after the later row's update
		// is exactly the ordering that used to lose the last value.
		if rec.Candidate.qty.Equal(decimal.NewFromInt(10)) {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		store[rec.Candidate.NaturalKey()] = rec.Candidate.qty
		writes++
		return nil
	}

	run := NewRun("test")
	if err := ApplyChunked(context.Background(), run, records, 50, 5, write, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writes != 1 {
		t.Fatalf("expected a single write for the key, got %d", writes)
	}
	if got := store["2026-01-10|A01"]; !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected the last row's value 12 persisted, got %s", got)
	}
	if run.NewCount != 1 || run.UpdatedCount != 0 {
		t.Fatalf("expected one row created, got new=%d updated=%d", run.NewCount, run.UpdatedCount)
	}
}

func TestRunStateTransitions(t *testing.T) {
	run := NewRun("test")
	steps := []RunState{RunStateValidating, RunStateCreatingMasters, RunStateApplying, RunStateDone}
	for _, next := range steps {
		if err := run.To(next); err != nil {
			t.Fatalf("legal transition to %s rejected: %v", next, err)
		}
	}
	if err := run.To(RunStateApplying); err == nil {
		t.Fatal("expected transition out of Done to be rejected")
	}

	run = NewRun("test2")
	if err := run.To(RunStateApplying); err == nil {
		t.Fatal("expected Idle -> Applying to be rejected")
	}
	run.Fail("all rows missing required identifier")
	if run.State != RunStateFailed || run.FailReason == "" {
		t.Fatalf("expected failed state with reason, got %+v", run)
	}
}

func TestRunFailRespectsTerminalStates(t *testing.T) {
	run := NewRun("test")
	for _, next := range []RunState{RunStateValidating, RunStateApplying, RunStateDone} {
		if err := run.To(next); err != nil {
			t.Fatalf("legal transition to %s rejected: %v", next, err)
		}
	}
	run.Fail("late failure after completion")
	if run.State != RunStateDone || run.FailReason != "" {
		t.Fatalf("completed run must stay Done, got state=%s reason=%q", run.State, run.FailReason)
	}

	run = NewRun("test2")
	run.Fail("first reason")
	run.Fail("second reason")
	if run.FailReason != "first reason" {
		t.Fatalf("first failure reason must stick, got %q", run.FailReason)
	}
}
