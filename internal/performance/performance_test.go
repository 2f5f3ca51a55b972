package performance

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkWorkerPool benchmarks the worker pool performance.
func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(1)
		if !pool.Submit(func() {
			time.Sleep(time.Microsecond)
			wg.Done()
		}) {
			wg.Done()
		}
		wg.Wait()
	}
}

// BenchmarkWorkerPoolRun benchmarks batched execution.
func BenchmarkWorkerPoolRun(b *testing.B) {
	pool := NewWorkerPool(8)
	pool.Start()
	defer pool.Stop()

	tasks := make([]func(), 64)
	for i := range tasks {
		tasks[i] = func() {}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Run(tasks)
	}
}

// TestWorkerPoolFunctionality tests worker pool basic functionality.
func TestWorkerPoolFunctionality(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		submitted := pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		})
		if !submitted {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	pool.Stop()

	stats := pool.Stats()
	if uint64(counter) != stats.TasksTotal {
		t.Errorf("Expected %d completed tasks, got %d", stats.TasksTotal, counter)
	}
	t.Logf("Pool stats: TasksTotal=%d, TasksDone=%d", stats.TasksTotal, stats.TasksDone)
}

// TestWorkerPoolRunCompletesAll checks that Run executes every task even when
// the queue overflows.
func TestWorkerPoolRunCompletesAll(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Stop()

	results := make([]int, 500)
	tasks := make([]func(), len(results))
	for i := range tasks {
		i := i
		tasks[i] = func() { results[i] = i * i }
	}

	pool.Run(tasks)

	for i, v := range results {
		if v != i*i {
			t.Fatalf("task %d not executed", i)
		}
	}
	stats := pool.Stats()
	if stats.TasksTotal+stats.Inline != uint64(len(tasks)) {
		t.Errorf("queued %d + inline %d != %d", stats.TasksTotal, stats.Inline, len(tasks))
	}
}

// TestWorkerPoolNotStarted runs everything inline.
func TestWorkerPoolNotStarted(t *testing.T) {
	pool := NewWorkerPool(2)

	var n atomic.Int64
	pool.Run([]func(){
		func() { n.Add(1) },
		func() { n.Add(1) },
	})

	if n.Load() != 2 {
		t.Errorf("expected 2 tasks, got %d", n.Load())
	}
	if pool.Stats().Inline != 2 {
		t.Errorf("expected inline execution, got %+v", pool.Stats())
	}
}

func TestWorkerPoolStopIdempotent(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Stop()
	pool.Stop()
	if pool.Stats().Running {
		t.Error("pool should not be running")
	}
	if pool.Submit(func() {}) {
		t.Error("Submit should fail after Stop")
	}
}
