// Package actor implements the progress/error mediator shared by a
// folder pair sync's worker threads: a single owner accumulates
// statistics deltas lock-free, funnels status/log/error requests
// through bounded channels instead of the origin's hand-rolled
// condition-variable protocol (spec §9 suggests exactly this
// reimplementation), and enforces at most one outstanding error
// request at a time by construction — a second ReportError call
// simply blocks on the unbuffered request channel until the first is
// drained.
package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Decision is the worker's instruction after an error is reported.
type Decision int

const (
	DecisionIgnore Decision = iota
	DecisionRetry
)

// Callback is the narrow trait the main thread's WaitUntilDone drives.
// It corresponds to the frontend progress contract (spec §6's
// ProcessCallback), trimmed to what the actor itself needs to forward.
type Callback interface {
	ReportStatus(text string)
	UpdateDataProcessed(items, bytes int64)
	UpdateDataTotal(items, bytes int64)
	LogInfo(text string)
	ReportError(text string, retryCount int) Decision
}

type errorRequest struct {
	msg        string
	retryCount int
	threadIdx  int
	resp       chan Decision
}

type logRequest struct {
	msg string
}

// Actor is constructed fresh for each pass of a folder pair sync and
// discarded once WaitUntilDone returns.
type Actor struct {
	threadCount int

	statusMu     sync.Mutex
	threadStatus []string

	errorCh  chan errorRequest
	logCh    chan logRequest
	finishCh chan struct{}

	itemsDeltaProcessed atomic.Int64
	bytesDeltaProcessed atomic.Int64
	itemsDeltaTotal     atomic.Int64
	bytesDeltaTotal     atomic.Int64

	ignoredMu sync.Mutex
	ignored   []error
}

// New constructs an actor for threadCount workers.
func New(threadCount int) *Actor {
	if threadCount < 1 {
		threadCount = 1
	}
	return &Actor{
		threadCount:  threadCount,
		threadStatus: make([]string, threadCount),
		errorCh:      make(chan errorRequest),
		logCh:        make(chan logRequest),
		finishCh:     make(chan struct{}, 1),
	}
}

// UpdateDataProcessed atomically records that Δitems/Δbytes of work
// finished. It never blocks.
func (a *Actor) UpdateDataProcessed(deltaItems, deltaBytes int64) {
	a.itemsDeltaProcessed.Add(deltaItems)
	a.bytesDeltaProcessed.Add(deltaBytes)
}

// UpdateDataTotal atomically records a change to the expected totals
// (used when the tree is revised mid-sync, e.g. a vanished source
// shrinks the plan). It never blocks.
func (a *Actor) UpdateDataTotal(deltaItems, deltaBytes int64) {
	a.itemsDeltaTotal.Add(deltaItems)
	a.bytesDeltaTotal.Add(deltaBytes)
}

// ReportStatus overwrites threadIdx's status line, then performs the
// cooperative cancellation check every suspension point owes the caller.
func (a *Actor) ReportStatus(ctx context.Context, msg string, threadIdx int) error {
	a.statusMu.Lock()
	a.threadStatus[threadIdx] = msg
	a.statusMu.Unlock()
	return ctx.Err()
}

// CurrentStatus composes the "[<k> threads] " prefix (omitted when
// there is only one worker) with the first non-empty per-thread status.
func (a *Actor) CurrentStatus() string {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	var first string
	for _, s := range a.threadStatus {
		if s != "" {
			first = s
			break
		}
	}
	if a.threadCount > 1 {
		return fmt.Sprintf("[%d threads] %s", a.threadCount, first)
	}
	return first
}

// LogInfo publishes an informational message, prefixing it with the
// thread index once more than one worker is active. It blocks until
// the main thread's WaitUntilDone loop drains it, or ctx is cancelled.
func (a *Actor) LogInfo(ctx context.Context, msg string, threadIdx int) error {
	if a.threadCount > 1 {
		msg = fmt.Sprintf("[%d] %s", threadIdx, msg)
	}
	select {
	case a.logCh <- logRequest{msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportError publishes an error and blocks for the main thread's
// decision. Only one request is ever in flight: a concurrent caller
// blocks on the channel send until the previous request's response has
// been delivered and this call's turn arrives, matching the
// "at most one outstanding error" invariant without a dedicated mutex.
func (a *Actor) ReportError(ctx context.Context, msg string, retryCount, threadIdx int) (Decision, error) {
	resp := make(chan Decision, 1)
	req := errorRequest{msg: msg, retryCount: retryCount, threadIdx: threadIdx, resp: resp}
	select {
	case a.errorCh <- req:
	case <-ctx.Done():
		return DecisionIgnore, ctx.Err()
	}
	select {
	case d := <-resp:
		return d, nil
	case <-ctx.Done():
		return DecisionIgnore, ctx.Err()
	}
}

// RetryOnError is the universal error boundary for per-item worker
// code: it runs op, and on failure reports the error and either retries
// (on DecisionRetry) or skips the item (on DecisionIgnore). Per spec
// §4.4/§7, only a fatal error — the context being cancelled while
// waiting on the front end's decision — is returned to the caller; an
// ignored error is recorded (see IgnoredErrors) and swallowed so the
// item's work unit reports success and the pass continues with the
// rest of the tree.
func (a *Actor) RetryOnError(ctx context.Context, threadIdx int, op func() error) error {
	return a.RetryOnErrorWithCleanup(ctx, threadIdx, op, nil)
}

// RetryOnErrorWithCleanup behaves like RetryOnError, but on
// DecisionIgnore it calls cleanup(err) before swallowing the error —
// letting the caller undo whatever partial tree state the abandoned
// operation left behind (e.g. a move pair's dangling move reference)
// without turning the ignore into a pass-wide failure.
func (a *Actor) RetryOnErrorWithCleanup(ctx context.Context, threadIdx int, op func() error, cleanup func(err error)) error {
	for retryCount := 0; ; retryCount++ {
		err := op()
		if err == nil {
			return nil
		}
		decision, waitErr := a.ReportError(ctx, err.Error(), retryCount, threadIdx)
		if waitErr != nil {
			return waitErr
		}
		if decision == DecisionRetry {
			continue
		}
		a.recordIgnored(err)
		if cleanup != nil {
			cleanup(err)
		}
		return nil
	}
}

func (a *Actor) recordIgnored(err error) {
	a.ignoredMu.Lock()
	a.ignored = append(a.ignored, err)
	a.ignoredMu.Unlock()
}

// IgnoredErrors returns every error the front end chose to ignore
// during this actor's pass, for the run report's end-of-pass summary.
func (a *Actor) IgnoredErrors() []error {
	a.ignoredMu.Lock()
	defer a.ignoredMu.Unlock()
	return append([]error(nil), a.ignored...)
}

// Finish signals that every worker has gone idle with no remaining
// work. It is safe to call more than once; only the first call is
// observed by WaitUntilDone.
func (a *Actor) Finish() {
	select {
	case a.finishCh <- struct{}{}:
	default:
	}
}

// WaitUntilDone runs on the owning (main) thread for the duration of
// one pass: it forwards error/log requests as they arrive, and on each
// tickInterval timeout reports current status and flushes accumulated
// deltas through cb. It returns when Finish is observed, or when ctx is
// cancelled.
func (a *Actor) WaitUntilDone(ctx context.Context, tickInterval time.Duration, cb Callback) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.errorCh:
			decision := cb.ReportError(req.msg, req.retryCount)
			req.resp <- decision
		case req := <-a.logCh:
			cb.LogInfo(req.msg)
		case <-ticker.C:
			cb.ReportStatus(a.CurrentStatus())
			a.flush(cb)
		case <-a.finishCh:
			a.flush(cb)
			return nil
		}
	}
}

func (a *Actor) flush(cb Callback) {
	if items, bytes := a.itemsDeltaProcessed.Swap(0), a.bytesDeltaProcessed.Swap(0); items != 0 || bytes != 0 {
		cb.UpdateDataProcessed(items, bytes)
	}
	if items, bytes := a.itemsDeltaTotal.Swap(0), a.bytesDeltaTotal.Swap(0); items != 0 || bytes != 0 {
		cb.UpdateDataTotal(items, bytes)
	}
}
