package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestForEach(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		pool := New(workers)

		n := 100
		results := make([]int, n)
		err := pool.ForEach(context.Background(), n, func(i int) error {
			results[i] = i * 2
			return nil
		})
		pool.Close()
		if err != nil {
			t.Fatalf("workers=%d: ForEach: %v", workers, err)
		}
		for i := range n {
			if results[i] != i*2 {
				t.Fatalf("workers=%d: results[%d] = %d, want %d", workers, i, results[i], i*2)
			}
		}
	}
}

func TestForEachEmpty(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	called := false
	if err := pool.ForEach(context.Background(), 0, func(int) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if called {
		t.Fatal("fn called for n = 0")
	}
}

func TestForEachStopsOnError(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	boom := errors.New("boom")
	var calls atomic.Int32
	err := pool.ForEach(context.Background(), 10000, func(i int) error {
		calls.Add(1)
		if i == 5 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls.Load() == 10000 {
		t.Fatal("ForEach kept handing out indices after an error")
	}
}

func TestForEachCanceled(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := pool.ForEach(ctx, 100, func(int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("fn called %d times on a canceled context", calls.Load())
	}
}

func TestForEachAfterClose(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close()

	var sum atomic.Int64
	if err := pool.ForEach(context.Background(), 10, func(i int) error {
		sum.Add(int64(i))
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if sum.Load() != 45 {
		t.Fatalf("sum = %d, want 45", sum.Load())
	}
}
