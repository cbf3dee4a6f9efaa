package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewUploadLimiter_Defaults(t *testing.T) {
	l := NewUploadLimiter(0, 0)
	if l.MaxConcurrent() != DefaultMaxConcurrentUploads {
		t.Errorf("MaxConcurrent() = %d, want %d", l.MaxConcurrent(), DefaultMaxConcurrentUploads)
	}
	if l.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultMaxWaitTime)
	}
}

func TestUploadLimiter_Status(t *testing.T) {
	l := NewUploadLimiter(3, time.Second)
	ctx := context.Background()

	steps := []struct {
		name string
		do   func()
		want UploadLimiterStatus
	}{
		{"idle", func() {}, UploadLimiterStatus{Active: 0, Available: 3, MaxConcurrent: 3}},
		{"acquire", func() { mustAcquire(t, l, ctx) }, UploadLimiterStatus{Active: 1, Available: 2, MaxConcurrent: 3}},
		{"try acquire", func() { l.TryAcquire() }, UploadLimiterStatus{Active: 2, Available: 1, MaxConcurrent: 3}},
		{"release", l.Release, UploadLimiterStatus{Active: 1, Available: 2, MaxConcurrent: 3}},
		{"release all", l.Release, UploadLimiterStatus{Active: 0, Available: 3, MaxConcurrent: 3}},
	}
	for _, step := range steps {
		step.do()
		if got := l.Status(); got != step.want {
			t.Errorf("%s: Status() = %+v, want %+v", step.name, got, step.want)
		}
	}
}

func TestUploadLimiter_TryAcquireWhenFull(t *testing.T) {
	l := NewUploadLimiter(1, time.Second)

	if !l.TryAcquire() {
		t.Fatal("TryAcquire() on a free limiter = false")
	}
	if l.TryAcquire() {
		t.Error("TryAcquire() on a full limiter = true")
	}
	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire() after Release = false")
	}
}

func TestUploadLimiter_AcquireErrors(t *testing.T) {
	t.Run("wait runs out", func(t *testing.T) {
		l := NewUploadLimiter(1, 20*time.Millisecond)
		mustAcquire(t, l, context.Background())

		if err := l.Acquire(context.Background()); !errors.Is(err, ErrTooManyUploads) {
			t.Errorf("Acquire() = %v, want ErrTooManyUploads", err)
		}
	})

	t.Run("caller cancels", func(t *testing.T) {
		l := NewUploadLimiter(1, time.Minute)
		mustAcquire(t, l, context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := l.Acquire(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() = %v, want context.Canceled", err)
		}
		if errors.Is(err, ErrTooManyUploads) {
			t.Error("a cancelled caller must not see ErrTooManyUploads")
		}
	})

	t.Run("caller deadline shorter than wait", func(t *testing.T) {
		l := NewUploadLimiter(1, time.Minute)
		mustAcquire(t, l, context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Acquire() = %v, want context.DeadlineExceeded", err)
		}
		if got := l.ActiveCount(); got != 1 {
			t.Errorf("ActiveCount() = %d, want 1 (failed Acquire holds nothing)", got)
		}
	})
}

func TestUploadLimiter_WaitForDrain(t *testing.T) {
	l := NewUploadLimiter(2, time.Second)
	mustAcquire(t, l, context.Background())

	drained := make(chan error, 1)
	go func() { drained <- l.WaitForDrain(context.Background()) }()

	// The drain queues for every slot. Newcomers line up behind it even
	// though one slot is still free.
	waitFor(t, func() bool {
		if l.TryAcquire() {
			l.Release()
			return false
		}
		return true
	})
	select {
	case err := <-drained:
		t.Fatalf("WaitForDrain() returned %v with an upload still active", err)
	default:
	}

	l.Release()
	select {
	case err := <-drained:
		if err != nil {
			t.Errorf("WaitForDrain() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain() did not return after the last Release")
	}

	if !l.TryAcquire() {
		t.Error("TryAcquire() after drain = false, want slots returned")
	}
	l.Release()
}

func TestUploadLimiter_WaitForDrainGivesUp(t *testing.T) {
	l := NewUploadLimiter(2, time.Second)
	mustAcquire(t, l, context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain() = %v, want context.DeadlineExceeded", err)
	}

	// An abandoned drain must not keep blocking new uploads.
	if !l.TryAcquire() {
		t.Error("TryAcquire() after abandoned drain = false")
	}
}

func TestUploadLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	l := NewUploadLimiter(maxConcurrent, 5*time.Second)

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() = %v", err)
				return
			}
			defer l.Release()

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > maxConcurrent {
		t.Errorf("peak concurrency = %d, want <= %d", got, maxConcurrent)
	}
	if got := l.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() after all done = %d, want 0", got)
	}
}

func mustAcquire(t *testing.T, l *UploadLimiter, ctx context.Context) {
	t.Helper()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}
