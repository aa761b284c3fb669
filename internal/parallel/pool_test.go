package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			defer pool.Close()
			if pool.Workers() != tt.want {
				t.Errorf("Workers() = %d, want %d", pool.Workers(), tt.want)
			}
			if !pool.IsRunning() {
				t.Error("IsRunning() = false after creation")
			}
		})
	}
}

func TestWorkerPool_SubmitAndWait(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var mu sync.Mutex
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		i := i
		if !pool.Submit(func() {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		}) {
			t.Fatalf("Submit(%d) = false on a running pool", i)
		}
	}
	pool.Wait()

	if len(seen) != 50 {
		t.Errorf("ran %d tasks, want 50", len(seen))
	}
	if pool.QueuedWork() != 0 {
		t.Errorf("QueuedWork() = %d after Wait, want 0", pool.QueuedWork())
	}
	if got := pool.Completed(); got != 50 {
		t.Errorf("Completed() = %d, want 50", got)
	}
}

func TestWorkerPool_SubmitNil(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()
	if pool.Submit(nil) {
		t.Error("Submit(nil) = true, want false")
	}
}

func TestWorkerPool_Close(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
	if pool.Submit(func() {}) {
		t.Error("Submit after Close = true, want false")
	}
}

func TestWorkerPool_CloseFinishesQueued(t *testing.T) {
	pool := NewWorkerPool(1)
	var counter atomic.Int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() { counter.Add(1) })
	}
	pool.Close()
	if got := counter.Load(); got != 20 {
		t.Errorf("counter = %d after Close, want 20", got)
	}
}

func TestWorkerPool_ConcurrentSubmitters(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				pool.Submit(func() { counter.Add(1) })
			}
		}()
	}
	wg.Wait()
	pool.Wait()

	if got := counter.Load(); got != 200 {
		t.Errorf("counter = %d, want 200", got)
	}
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Submit(func() {})
	}
	pool.Wait()
}
