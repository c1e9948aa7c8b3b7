package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func noopExpand(folder any) []WorkItem { return nil }

func TestGetNextNeverBlocksWhenBucketNonEmpty(t *testing.T) {
	s := New(2, noopExpand, nil)
	var ran atomic.Bool
	s.buckets[0] = []WorkItem{func(ctx context.Context, threadIdx int) error {
		ran.Store(true)
		return nil
	}}

	done := make(chan struct{})
	go func() {
		item, err := s.GetNext(context.Background(), 0)
		if err != nil {
			t.Errorf("GetNext() error = %v", err)
		}
		if item != nil {
			_ = item(context.Background(), 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GetNext blocked despite a non-empty bucket")
	}
	if !ran.Load() {
		t.Error("returned work item was not the one queued")
	}
}

func TestStealMovesCeilHalfOfDonorBucket(t *testing.T) {
	s := New(2, noopExpand, nil)
	n := 5
	for i := 0; i < n; i++ {
		s.buckets[0] = append(s.buckets[0], func(ctx context.Context, threadIdx int) error { return nil })
	}

	s.mu.Lock()
	donor, ok := s.largestBucketExcept(1)
	if !ok || donor != 0 {
		s.mu.Unlock()
		t.Fatalf("largestBucketExcept() = (%d, %v), want (0, true)", donor, ok)
	}
	s.stealHalf(donor, 1)
	gotStolen := len(s.buckets[1])
	gotKept := len(s.buckets[0])
	s.mu.Unlock()

	wantStolen := (n + 1) / 2
	if gotStolen != wantStolen {
		t.Errorf("stolen = %d, want ceil(%d/2) = %d", gotStolen, n, wantStolen)
	}
	if gotKept != n-wantStolen {
		t.Errorf("kept = %d, want %d", gotKept, n-wantStolen)
	}
}

func TestGetNextStealsWhenOwnBucketEmpty(t *testing.T) {
	s := New(2, noopExpand, nil)
	var count atomic.Int32
	for i := 0; i < 4; i++ {
		s.buckets[0] = append(s.buckets[0], func(ctx context.Context, threadIdx int) error {
			count.Add(1)
			return nil
		})
	}

	item, err := s.GetNext(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetNext() error = %v", err)
	}
	if item == nil {
		t.Fatal("expected a stolen item, got nil")
	}
	if err := item(context.Background(), 1); err != nil {
		t.Fatalf("item() error = %v", err)
	}
	if count.Load() == 0 {
		t.Error("stolen item was not runnable")
	}
}

func TestExpandOrderPreservedThroughLIFO(t *testing.T) {
	var order []int
	var mu sync.Mutex
	expand := func(folder any) []WorkItem {
		return []WorkItem{
			func(ctx context.Context, threadIdx int) error { mu.Lock(); order = append(order, 1); mu.Unlock(); return nil },
			func(ctx context.Context, threadIdx int) error { mu.Lock(); order = append(order, 2); mu.Unlock(); return nil },
			func(ctx context.Context, threadIdx int) error { mu.Lock(); order = append(order, 3); mu.Unlock(); return nil },
		}
	}
	s := New(1, expand, nil)
	s.AddFolderToProcess("root")

	for i := 0; i < 3; i++ {
		item, err := s.GetNext(context.Background(), 0)
		if err != nil {
			t.Fatalf("GetNext() error = %v", err)
		}
		if err := item(context.Background(), 0); err != nil {
			t.Fatalf("item() error = %v", err)
		}
	}

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestRunCompletesAndCallsOnAllIdle(t *testing.T) {
	var processed atomic.Int32
	var idleCalls atomic.Int32

	expand := func(folder any) []WorkItem {
		n, _ := folder.(int)
		if n <= 0 {
			return nil
		}
		return []WorkItem{func(ctx context.Context, threadIdx int) error {
			processed.Add(1)
			return nil
		}}
	}

	s := New(3, expand, func() { idleCalls.Add(1) })
	if err := s.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if processed.Load() != 1 {
		t.Errorf("processed = %d, want 1", processed.Load())
	}
	if idleCalls.Load() != 1 {
		t.Errorf("onAllIdle called %d times, want exactly 1", idleCalls.Load())
	}
}

func TestRunPropagatesWorkerError(t *testing.T) {
	boom := errors.New("boom")
	expand := func(folder any) []WorkItem {
		return []WorkItem{func(ctx context.Context, threadIdx int) error { return boom }}
	}
	s := New(2, expand, nil)
	err := s.Run(context.Background(), "root")
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := New(1, noopExpand, nil)
	err := blocked.Run(ctx, "root")
	if err == nil {
		t.Error("Run() should return an error for an already-cancelled context")
	}
}

func TestGetNextReturnsErrDoneAfterCompletion(t *testing.T) {
	s := New(1, noopExpand, nil)
	s.AddFolderToProcess("root")

	_, err := s.GetNext(context.Background(), 0)
	if !errors.Is(err, ErrDone) {
		t.Fatalf("GetNext() error = %v, want ErrDone", err)
	}
	// Once done, every subsequent call keeps returning ErrDone.
	if _, err := s.GetNext(context.Background(), 0); !errors.Is(err, ErrDone) {
		t.Errorf("second GetNext() error = %v, want ErrDone", err)
	}
}
