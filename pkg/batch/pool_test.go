package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	results := Run(context.Background(), NewPool(3), items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * n, nil
	})

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, n := range items {
		if results[i].Err != nil {
			t.Errorf("item %d: unexpected error %v", i, results[i].Err)
		}
		if results[i].Value != n*n {
			t.Errorf("item %d = %d, want %d", i, results[i].Value, n*n)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak int32
	items := make([]int, 20)

	Run(context.Background(), NewPool(3), items, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}, nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want at most 3", peak)
	}
	if peak == 0 {
		t.Error("no job ran")
	}
}

func TestRunKeepsGoingAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	results := Run(context.Background(), NewPool(2), []string{"a", "fail", "c"}, func(_ context.Context, s string) (string, error) {
		if s == "fail" {
			return "", boom
		}
		return s, nil
	})

	if !errors.Is(results[1].Err, boom) {
		t.Errorf("item 1 error = %v, want boom", results[1].Err)
	}
	if results[0].Value != "a" || results[2].Value != "c" {
		t.Errorf("other items did not complete: %+v", results)
	}
	if err := FirstError(results); !errors.Is(err, boom) {
		t.Errorf("FirstError() = %v, want boom", err)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	results := Run(context.Background(), NewPool(1), []int{1, 2}, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			panic("bad orbit")
		}
		return n, nil
	})

	if results[0].Err == nil {
		t.Error("panicking job should report an error")
	}
	if results[1].Err != nil || results[1].Value != 2 {
		t.Errorf("second job = %+v, want 2", results[1])
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	results := Run(ctx, NewPool(2), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		called = true
		return n, nil
	})

	if called {
		t.Error("no job should start on a cancelled context")
	}
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("item %d error = %v, want context.Canceled", i, r.Err)
		}
	}
}

func TestNewPoolDefaults(t *testing.T) {
	if NewPool(0).Workers() < 1 {
		t.Error("default pool has no workers")
	}
	if got := NewPool(7).Workers(); got != 7 {
		t.Errorf("Workers() = %d, want 7", got)
	}
	if got := Run(context.Background(), NewPool(2), []int(nil), func(context.Context, int) (int, error) { return 0, nil }); len(got) != 0 {
		t.Errorf("empty batch returned %d results", len(got))
	}
}
