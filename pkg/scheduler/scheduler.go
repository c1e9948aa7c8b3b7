// Package scheduler implements the work-stealing scheduler that feeds
// a folder pair sync's worker goroutines. Its purpose is to maximise
// parallelism without making the comparison tree itself thread-safe:
// workers mutate the tree only while holding the engine's single
// global mutex, one at a time, while the scheduler hands out
// self-contained work-item closures that each worker runs unlocked.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrDone is returned by GetNext once every worker has simultaneously
// found no work left — the pass is complete.
var ErrDone = errors.New("scheduler: no more work")

// WorkItem is a unit of work a worker executes outside the scheduler's
// lock. It is the Go analogue of the source's "nullary closure taking a
// syncer handle" — here the syncer handle, if needed, is simply
// captured by the closure; threadIdx is threaded through explicitly
// since engine code needs it for per-thread status/error reporting.
type WorkItem func(ctx context.Context, threadIdx int) error

// Expander decomposes one pending folder into the work items that
// process its direct children. Items representing subfolders are
// themselves closures that, when run, call AddFolderToProcess on the
// same scheduler — expansion itself never recurses or touches
// scheduler state directly, avoiding any reentrant locking.
type Expander func(folder any) []WorkItem

// Scheduler is constructed fresh per pass and discarded once Run
// returns.
type Scheduler struct {
	threadCount int
	expand      Expander
	onAllIdle   func()

	mu              sync.Mutex
	newWork         *sync.Cond
	buckets         [][]WorkItem
	foldersToExpand []any
	idleThreads     int
	done            bool
}

// New constructs a scheduler for threadCount workers. expand is called
// whenever a thread needs to decompose a pending folder into work
// items. onAllIdle, if non-nil, is invoked exactly once, the moment
// every thread simultaneously has no work left — engine code wires
// this to the pass's progress actor's Finish method.
func New(threadCount int, expand Expander, onAllIdle func()) *Scheduler {
	if threadCount < 1 {
		threadCount = 1
	}
	s := &Scheduler{
		threadCount: threadCount,
		expand:      expand,
		onAllIdle:   onAllIdle,
		buckets:     make([][]WorkItem, threadCount),
	}
	s.newWork = sync.NewCond(&s.mu)
	return s
}

// AddFolderToProcess pushes a folder onto the shared expansion stack
// and wakes any idle worker.
func (s *Scheduler) AddFolderToProcess(folder any) {
	s.mu.Lock()
	s.foldersToExpand = append(s.foldersToExpand, folder)
	s.mu.Unlock()
	s.newWork.Broadcast()
}

// GetNext returns threadIdx's next work item, blocking and stealing as
// necessary. It returns ErrDone once the pass has no work left anywhere,
// or ctx.Err() if the caller's context is cancelled first.
func (s *Scheduler) GetNext(ctx context.Context, threadIdx int) (WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.done {
			return nil, ErrDone
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if n := len(s.buckets[threadIdx]); n > 0 {
			item := s.buckets[threadIdx][n-1]
			s.buckets[threadIdx] = s.buckets[threadIdx][:n-1]
			return item, nil
		}

		if n := len(s.foldersToExpand); n > 0 {
			folder := s.foldersToExpand[n-1]
			s.foldersToExpand = s.foldersToExpand[:n-1]
			items := s.expand(folder)
			// Reversed so the LIFO bucket pops items back out in the
			// order expand() listed them (folder items first).
			for i := len(items) - 1; i >= 0; i-- {
				s.buckets[threadIdx] = append(s.buckets[threadIdx], items[i])
			}
			continue
		}

		if donor, ok := s.largestBucketExcept(threadIdx); ok {
			s.stealHalf(donor, threadIdx)
			continue
		}

		s.idleThreads++
		if s.idleThreads >= s.threadCount {
			s.done = true
			if s.onAllIdle != nil {
				s.onAllIdle()
			}
			s.newWork.Broadcast()
			continue
		}
		s.newWork.Wait()
		s.idleThreads--
	}
}

// largestBucketExcept finds the fullest bucket other than exclude,
// requiring at least 2 items so a steal leaves both sides non-empty.
func (s *Scheduler) largestBucketExcept(exclude int) (int, bool) {
	best, bestLen := -1, 1
	for i, b := range s.buckets {
		if i == exclude {
			continue
		}
		if len(b) > bestLen {
			bestLen = len(b)
			best = i
		}
	}
	return best, best >= 0
}

// stealHalf moves every other item (positions 0, 2, 4, ...) of the
// donor bucket into the target bucket.
func (s *Scheduler) stealHalf(donor, target int) {
	src := s.buckets[donor]
	stolen := make([]WorkItem, 0, (len(src)+1)/2)
	kept := make([]WorkItem, 0, len(src)/2)
	for i, item := range src {
		if i%2 == 0 {
			stolen = append(stolen, item)
		} else {
			kept = append(kept, item)
		}
	}
	s.buckets[donor] = kept
	s.buckets[target] = append(s.buckets[target], stolen...)
}

// Run seeds the scheduler with root and drives threadCount workers via
// an errgroup until the pass completes or a worker returns an error,
// which cancels the rest.
func (s *Scheduler) Run(ctx context.Context, root any) error {
	s.AddFolderToProcess(root)

	g, gctx := errgroup.WithContext(ctx)

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			s.mu.Lock()
			s.newWork.Broadcast()
			s.mu.Unlock()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	for i := 0; i < s.threadCount; i++ {
		idx := i
		g.Go(func() error {
			for {
				item, err := s.GetNext(gctx, idx)
				if err != nil {
					if errors.Is(err, ErrDone) {
						return nil
					}
					return err
				}
				if err := item(gctx, idx); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
