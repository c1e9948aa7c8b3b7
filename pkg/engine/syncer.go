// Package engine drives the actual synchronization of a comparison
// tree: multi-pass scheduling of create/delete/update/move operations,
// two-step move conflict resolution, deletion-policy dispatch, and the
// pre-flight/execute driver loop that ties a run together.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/syncnorris/pkg/actor"
	"github.com/sdejongh/syncnorris/pkg/afs"
	"github.com/sdejongh/syncnorris/pkg/deletion"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/ratelimit"
	"github.com/sdejongh/syncnorris/pkg/scheduler"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// Options carries the run-wide flags a folder-pair sync consults.
type Options struct {
	VerifyCopiedFiles   bool
	CopyFilePermissions bool
	FailSafeFileCopy    bool
	BandwidthLimitBytes int64 // 0 disables limiting
	ThreadCount         int
	TickInterval        time.Duration

	// Callback receives each pass's progress/status/error reports. A
	// nil Callback runs the pass headlessly (noopCallback).
	Callback actor.Callback
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 100 * time.Millisecond
	}
	if o.ThreadCount < 1 {
		o.ThreadCount = 1
	}
	if o.Callback == nil {
		o.Callback = noopCallback{}
	}
	return o
}

// FolderPairSyncer drives the three-pass execution of one base-folder
// pair. It is constructed fresh per pair per run.
type FolderPairSyncer struct {
	base *tree.BaseFolderPair

	leftBackend, rightBackend   afs.Backend
	leftDeletion, rightDeletion *deletion.Handler

	opts    Options
	limiter *ratelimit.Limiter

	// mu is the engine's single global mutex: every mutation of the
	// comparison tree runs under it. Unlike the source's "hold by
	// default, release around I/O" discipline, Go code takes the lock
	// only around the mutation itself, which is the idiomatic inversion
	// of the same invariant (the tree is touched by one worker at a time).
	// The one blocking AFS call made under it is overwriteFile's
	// delete-target callback, which holds it while the old target is
	// removed through the deletion handler.
	mu sync.Mutex

	modTimeMu     sync.Mutex
	modTimeErrors []error

	ignoredMu     sync.Mutex
	ignoredErrors []error

	act *actor.Actor
}

// NewFolderPairSyncer constructs a syncer for one base-folder pair.
func NewFolderPairSyncer(base *tree.BaseFolderPair, leftBackend, rightBackend afs.Backend, leftDeletion, rightDeletion *deletion.Handler, opts Options) *FolderPairSyncer {
	opts = opts.withDefaults()
	return &FolderPairSyncer{
		base:          base,
		leftBackend:   leftBackend,
		rightBackend:  rightBackend,
		leftDeletion:  leftDeletion,
		rightDeletion: rightDeletion,
		opts:          opts,
		limiter:       ratelimit.NewLimiter(opts.BandwidthLimitBytes),
	}
}

// ModTimeWarnings returns the accumulated non-fatal mod-time set
// failures collected across every pass, to be surfaced as one warning
// at the end of the run (spec.md §4.6.3/§7).
func (s *FolderPairSyncer) ModTimeWarnings() []error {
	s.modTimeMu.Lock()
	defer s.modTimeMu.Unlock()
	return append([]error(nil), s.modTimeErrors...)
}

func (s *FolderPairSyncer) recordModTimeWarning(err error) {
	if err == nil {
		return
	}
	s.modTimeMu.Lock()
	s.modTimeErrors = append(s.modTimeErrors, err)
	s.modTimeMu.Unlock()
}

// IgnoredErrors returns every per-item error the front end chose to
// ignore across every pass run so far, to be surfaced alongside the
// mod-time warnings in the run report (spec.md §4.4/§7).
func (s *FolderPairSyncer) IgnoredErrors() []error {
	s.ignoredMu.Lock()
	defer s.ignoredMu.Unlock()
	return append([]error(nil), s.ignoredErrors...)
}

func (s *FolderPairSyncer) recordIgnoredErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	s.ignoredMu.Lock()
	s.ignoredErrors = append(s.ignoredErrors, errs...)
	s.ignoredMu.Unlock()
}

// RunSync executes pass 0 (move preparation), pass 1 (deletions and
// shrinking overwrites) and pass 2 (everything else) in order.
func (s *FolderPairSyncer) RunSync(ctx context.Context) error {
	for _, pass := range []models.Pass{models.PassMovePrep, models.PassOne, models.PassTwo} {
		if err := s.runPass(ctx, pass); err != nil {
			return fmt.Errorf("pass %v: %w", pass, err)
		}
	}
	return nil
}

func (s *FolderPairSyncer) runPass(ctx context.Context, pass models.Pass) error {
	a := actor.New(s.opts.ThreadCount)
	s.act = a

	var sched *scheduler.Scheduler
	expand := s.expander(pass, func(folder any) { sched.AddFolderToProcess(folder) })
	sched = scheduler.New(s.opts.ThreadCount, expand, a.Finish)

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = sched.Run(passCtx, &s.base.FolderPair)
	}()

	waitErr := a.WaitUntilDone(passCtx, s.opts.TickInterval, s.opts.Callback)
	if waitErr != nil {
		cancel()
	}
	wg.Wait()
	s.recordIgnoredErrors(a.IgnoredErrors())

	if runErr != nil {
		return runErr
	}
	return waitErr
}

// noopCallback is Options.Callback's default when the caller supplies
// none, for passes driven headlessly (e.g. in tests).
type noopCallback struct{}

func (noopCallback) ReportStatus(string)                {}
func (noopCallback) UpdateDataProcessed(int64, int64)   {}
func (noopCallback) UpdateDataTotal(int64, int64)       {}
func (noopCallback) LogInfo(string)                     {}
func (noopCallback) ReportError(string, int) actor.Decision {
	return actor.DecisionIgnore
}

// expander builds the scheduler.Expander for one pass. addFolder lets
// the returned work items re-enqueue child folders without the
// expander needing the scheduler itself (which does not exist yet when
// the expander is constructed).
func (s *FolderPairSyncer) expander(pass models.Pass, addFolder func(any)) scheduler.Expander {
	return func(folderAny any) []scheduler.WorkItem {
		folder := folderAny.(*tree.FolderPair)
		var items []scheduler.WorkItem

		for _, sub := range folder.Folders {
			sub := sub
			items = append(items, func(ctx context.Context, threadIdx int) error {
				addFolder(sub)
				return nil
			})
			if getPassFolderOrSymlink(sub.Op()) == pass {
				items = append(items, func(ctx context.Context, threadIdx int) error {
					return s.dispatchFolder(ctx, threadIdx, sub)
				})
			}
		}
		for _, file := range folder.Files {
			file := file
			if pass == models.PassMovePrep {
				if file.Op().IsMoveFrom() {
					items = append(items, func(ctx context.Context, threadIdx int) error {
						return s.resolveMoveConflict(ctx, threadIdx, file)
					})
				}
				continue
			}
			if getPassFile(file) == pass {
				items = append(items, func(ctx context.Context, threadIdx int) error {
					return s.dispatchFile(ctx, threadIdx, file)
				})
			}
		}
		for _, link := range folder.Symlinks {
			link := link
			if getPassFolderOrSymlink(link.Op()) == pass {
				items = append(items, func(ctx context.Context, threadIdx int) error {
					return s.dispatchSymlink(ctx, threadIdx, link)
				})
			}
		}
		return items
	}
}

// getPassFile implements the file half of spec.md §4.6's getPass.
func getPassFile(f *tree.FilePair) models.Pass {
	op := f.Op()
	switch {
	case op.IsDelete():
		return models.PassOne
	case op.IsOverwrite():
		target, _ := op.TargetSide()
		targetSize := f.Side(target).Size
		sourceSize := f.Side(target.Other()).Size
		if targetSize > sourceSize {
			return models.PassOne
		}
		return models.PassTwo
	case op.IsMoveFrom():
		return models.PassNone
	case op.IsMoveTo(), op.IsCreate(), op.IsCopyMetadata():
		return models.PassTwo
	default:
		return models.PassNone
	}
}

// getPassFolderOrSymlink implements the symlink/folder half of
// spec.md §4.6's getPass — move ops never apply to these kinds.
func getPassFolderOrSymlink(op models.SyncOperation) models.Pass {
	switch {
	case op.IsDelete():
		return models.PassOne
	case op.IsOverwrite(), op.IsCreate(), op.IsCopyMetadata():
		return models.PassTwo
	default:
		return models.PassNone
	}
}

func (s *FolderPairSyncer) pathFor(side models.Side, relPath string) string {
	if side == models.LeftSide {
		return filepath.Join(s.base.LeftPath, relPath)
	}
	return filepath.Join(s.base.RightPath, relPath)
}

func (s *FolderPairSyncer) backendFor(side models.Side) afs.Backend {
	if side == models.LeftSide {
		return s.leftBackend
	}
	return s.rightBackend
}

func (s *FolderPairSyncer) deletionFor(side models.Side) *deletion.Handler {
	if side == models.LeftSide {
		return s.leftDeletion
	}
	return s.rightDeletion
}

// clearSubtreeSide recursively removes side's metadata from every
// descendant of folder (used after a wholesale folder delete) and
// marks each as DO_NOTHING so a later pass's fresh tree walk does not
// try to act on it again.
func (s *FolderPairSyncer) clearSubtreeSide(folder *tree.FolderPair, side models.Side) {
	for _, f := range folder.Files {
		f.Side(side).Clear()
		if f.IsEmptyOnBothSides() {
			f.SetOp(models.OpDoNothing)
		}
	}
	for _, l := range folder.Symlinks {
		l.Side(side).Clear()
		if l.IsEmptyOnBothSides() {
			l.SetOp(models.OpDoNothing)
		}
	}
	for _, sub := range folder.Folders {
		sub.Side(side).Clear()
		s.clearSubtreeSide(sub, side)
		if sub.IsEmptyOnBothSides() {
			sub.SetOp(models.OpDoNothing)
		}
	}
	folder.PruneEmpty()
}

// dispatchFile implements spec.md §4.6.2's per-operation file dispatch.
func (s *FolderPairSyncer) dispatchFile(ctx context.Context, threadIdx int, f *tree.FilePair) error {
	if err := s.act.ReportStatus(ctx, fmt.Sprintf("processing %s", f.RelPath()), threadIdx); err != nil {
		return err
	}
	op := f.Op()
	switch {
	case op.IsCreate():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.createFile(ctx, f) })
	case op.IsDelete():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.deleteFile(ctx, f) })
	case op.IsMoveTo():
		return s.act.RetryOnErrorWithCleanup(ctx, threadIdx, func() error { return s.moveFile(ctx, f) }, func(error) { s.abandonMove(f) })
	case op.IsOverwrite():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.overwriteFile(ctx, f) })
	case op.IsCopyMetadata():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.copyMetadataFile(ctx, f) })
	default:
		return nil
	}
}

func (s *FolderPairSyncer) createFile(ctx context.Context, f *tree.FilePair) error {
	target, _ := f.Op().TargetSide()
	source := target.Other()

	if err := s.createParentFolders(ctx, target, f.Parent()); err != nil {
		return err
	}

	srcPath := s.pathFor(source, f.RelPath())
	tgtPath := s.pathFor(target, f.RelPath())

	res, err := s.backendFor(target).CopyFileTransactional(ctx, srcPath, tgtPath, s.opts.CopyFilePermissions, s.opts.FailSafeFileCopy, nil, s.paceCallback())
	if err != nil {
		if _, ok, probeErr := s.backendFor(source).GetItemTypeIfExists(ctx, srcPath); probeErr == nil && !ok {
			s.mu.Lock()
			f.Side(source).Clear()
			s.mu.Unlock()
			s.act.UpdateDataProcessed(1, 0)
			return nil
		}
		return err
	}
	if s.opts.VerifyCopiedFiles {
		if err := verifyCopy(ctx, s.backendFor(target), srcPath, tgtPath); err != nil {
			_, _ = s.backendFor(target).RemoveFileIfExists(ctx, tgtPath)
			return err
		}
	}

	s.mu.Lock()
	f.Side(target).Present = true
	f.Side(target).Size = res.Size
	f.Side(target).ModTime = res.ModTime.UnixNano()
	f.Side(target).FileID = res.TargetFileID
	f.Side(source).FileID = res.SourceFileID
	s.mu.Unlock()

	s.recordModTimeWarning(res.ModTimeWarning)
	s.act.UpdateDataProcessed(1, res.Size)
	return nil
}

func (s *FolderPairSyncer) deleteFile(ctx context.Context, f *tree.FilePair) error {
	target, _ := f.Op().TargetSide()
	path := s.pathFor(target, f.RelPath())

	if err := s.deletionFor(target).RemoveFile(ctx, path, f.RelPath(), func() { s.act.UpdateDataProcessed(1, 0) }, func(n int64) {}); err != nil {
		return err
	}
	s.mu.Lock()
	f.Side(target).Clear()
	s.mu.Unlock()
	return nil
}

func (s *FolderPairSyncer) moveFile(ctx context.Context, to *tree.FilePair) error {
	fromID, ok := to.MoveRef()
	if !ok {
		return fmt.Errorf("move target %s has no paired source", to.RelPath())
	}
	from, ok := s.base.Lookup(fromID)
	if !ok {
		return fmt.Errorf("move source for %s not found in tree", to.RelPath())
	}

	target, _ := to.Op().TargetSide()
	srcPath := s.pathFor(target, from.RelPath())
	tgtPath := s.pathFor(target, to.RelPath())

	if err := s.backendFor(target).RenameItem(ctx, srcPath, tgtPath); err != nil {
		return err
	}

	s.mu.Lock()
	to.Side(target).Present = true
	to.Side(target).Size = from.Side(target).Size
	to.Side(target).ModTime = from.Side(target).ModTime
	to.Side(target).FileID = from.Side(target).FileID
	from.Side(target).Clear()
	s.mu.Unlock()

	s.act.UpdateDataProcessed(1, 0)
	return nil
}

func (s *FolderPairSyncer) overwriteFile(ctx context.Context, f *tree.FilePair) error {
	target, _ := f.Op().TargetSide()
	source := target.Other()

	oldTargetPath := s.pathFor(target, f.RelPath())
	if f.Side(target).FollowedSymlink {
		if resolved, err := s.backendFor(target).GetSymlinkResolvedPath(ctx, oldTargetPath); err == nil {
			oldTargetPath = resolved
		}
	}
	newTargetPath := s.pathFor(target, f.RelPath())
	if oldTargetPath != newTargetPath {
		if err := s.backendFor(target).RenameItem(ctx, oldTargetPath, newTargetPath); err != nil {
			return err
		}
	}

	srcPath := s.pathFor(source, f.RelPath())

	onDeleteTarget := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.deletionFor(target).RemoveFile(context.Background(), oldTargetPath, f.RelPath(), func() { s.act.UpdateDataProcessed(1, 0) }, nil)
	}

	res, err := s.backendFor(target).CopyFileTransactional(ctx, srcPath, newTargetPath, s.opts.CopyFilePermissions, s.opts.FailSafeFileCopy, onDeleteTarget, s.paceCallback())
	if err != nil {
		return err
	}
	if s.opts.VerifyCopiedFiles {
		if err := verifyCopy(ctx, s.backendFor(target), srcPath, newTargetPath); err != nil {
			_, _ = s.backendFor(target).RemoveFileIfExists(ctx, newTargetPath)
			return err
		}
	}

	s.mu.Lock()
	f.Side(target).Present = true
	f.Side(target).Size = res.Size
	f.Side(target).ModTime = res.ModTime.UnixNano()
	f.Side(target).FileID = res.TargetFileID
	f.Side(source).FileID = res.SourceFileID
	s.mu.Unlock()

	s.recordModTimeWarning(res.ModTimeWarning)
	// onDeleteTarget already reported the overwrite's one item when it
	// removed the old target; the copy itself adds only its bytes.
	s.act.UpdateDataProcessed(0, res.Size)
	return nil
}

func (s *FolderPairSyncer) copyMetadataFile(ctx context.Context, f *tree.FilePair) error {
	target, _ := f.Op().TargetSide()
	source := target.Other()

	oldPath := s.pathFor(target, f.RelPath())
	newPath := s.pathFor(target, f.RelPath())
	if oldPath != newPath {
		if err := s.backendFor(target).RenameItem(ctx, oldPath, newPath); err != nil {
			return err
		}
	}
	s.mu.Lock()
	f.Side(target).ModTime = f.Side(source).ModTime
	s.mu.Unlock()
	s.act.UpdateDataProcessed(1, 0)
	return nil
}

func (s *FolderPairSyncer) dispatchSymlink(ctx context.Context, threadIdx int, l *tree.SymlinkPair) error {
	if err := s.act.ReportStatus(ctx, fmt.Sprintf("processing %s", l.RelPath()), threadIdx); err != nil {
		return err
	}
	op := l.Op()
	switch {
	case op.IsCreate():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.createSymlink(ctx, l) })
	case op.IsDelete():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.deleteSymlink(ctx, l) })
	case op.IsOverwrite(), op.IsCopyMetadata():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.createSymlink(ctx, l) })
	default:
		return nil
	}
}

func (s *FolderPairSyncer) createSymlink(ctx context.Context, l *tree.SymlinkPair) error {
	target, _ := l.Op().TargetSide()
	source := target.Other()

	if err := s.createParentFolders(ctx, target, l.Parent()); err != nil {
		return err
	}

	srcPath := s.pathFor(source, l.RelPath())
	tgtPath := s.pathFor(target, l.RelPath())

	if err := s.backendFor(target).CopySymlink(ctx, srcPath, tgtPath, s.opts.CopyFilePermissions); err != nil {
		return err
	}
	s.mu.Lock()
	l.Side(target).Present = true
	s.mu.Unlock()
	s.act.UpdateDataProcessed(1, 0)
	return nil
}

func (s *FolderPairSyncer) deleteSymlink(ctx context.Context, l *tree.SymlinkPair) error {
	target, _ := l.Op().TargetSide()
	path := s.pathFor(target, l.RelPath())

	if err := s.deletionFor(target).RemoveSymlink(ctx, path, l.RelPath(), func() { s.act.UpdateDataProcessed(1, 0) }); err != nil {
		return err
	}
	s.mu.Lock()
	l.Side(target).Clear()
	s.mu.Unlock()
	return nil
}

func (s *FolderPairSyncer) dispatchFolder(ctx context.Context, threadIdx int, f *tree.FolderPair) error {
	if err := s.act.ReportStatus(ctx, fmt.Sprintf("processing %s", f.RelPath()), threadIdx); err != nil {
		return err
	}
	op := f.Op()
	switch {
	case op.IsCreate():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.createFolder(ctx, f) })
	case op.IsDelete():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.deleteFolder(ctx, f) })
	case op.IsOverwrite(), op.IsCopyMetadata():
		return s.act.RetryOnError(ctx, threadIdx, func() error { return s.copyMetadataFolder(ctx, f) })
	default:
		return nil
	}
}

func (s *FolderPairSyncer) createFolder(ctx context.Context, f *tree.FolderPair) error {
	target, _ := f.Op().TargetSide()
	source := target.Other()

	if err := s.createParentFolders(ctx, target, f.Parent()); err != nil {
		return err
	}

	srcPath := s.pathFor(source, f.RelPath())
	tgtPath := s.pathFor(target, f.RelPath())

	if _, ok, err := s.backendFor(source).GetItemTypeIfExists(ctx, srcPath); err == nil && !ok {
		s.mu.Lock()
		f.Side(source).Clear()
		s.clearSubtreeSide(f, source)
		s.mu.Unlock()
		s.act.UpdateDataProcessed(1, 0)
		return nil
	}

	if err := s.backendFor(target).CopyNewFolder(ctx, srcPath, tgtPath, s.opts.CopyFilePermissions); err != nil {
		if t, ok, probeErr := s.backendFor(target).GetItemTypeIfExists(ctx, tgtPath); probeErr == nil && ok && t == models.ItemTypeFolder {
			// lost a race with a concurrent creator; fine.
		} else {
			return err
		}
	}

	s.mu.Lock()
	f.Side(target).Present = true
	s.mu.Unlock()
	s.act.UpdateDataProcessed(1, 0)
	return nil
}

func (s *FolderPairSyncer) deleteFolder(ctx context.Context, f *tree.FolderPair) error {
	target, _ := f.Op().TargetSide()
	path := s.pathFor(target, f.RelPath())

	before := func(relPath string) { s.act.UpdateDataProcessed(1, 0) }
	if err := s.deletionFor(target).RemoveFolder(ctx, path, f.RelPath(), before, before, func(int64) {}); err != nil {
		return err
	}

	s.mu.Lock()
	f.Side(target).Clear()
	s.clearSubtreeSide(f, target)
	s.mu.Unlock()
	return nil
}

func (s *FolderPairSyncer) copyMetadataFolder(ctx context.Context, f *tree.FolderPair) error {
	target, _ := f.Op().TargetSide()
	oldPath := s.pathFor(target, f.RelPath())
	newPath := s.pathFor(target, f.RelPath())
	if oldPath != newPath {
		if err := s.backendFor(target).RenameItem(ctx, oldPath, newPath); err != nil {
			return err
		}
	}
	s.act.UpdateDataProcessed(1, 0)
	return nil
}

// paceCallback converts cumulative bytes-done notifications into a
// rate-limited pacing delay when a bandwidth limit is configured.
func (s *FolderPairSyncer) paceCallback() afs.BytesProgressFunc {
	if s.limiter == nil {
		return func(int64) {}
	}
	var last int64
	return func(total int64) {
		delta := total - last
		last = total
		if delta <= 0 {
			return
		}
		ratelimit.Throttle(s.limiter, delta)
	}
}

func newGUIDSuffix() string {
	id := uuid.New()
	// A short, stable-looking hex tag derived from the GUID's bytes —
	// the CRC-16 the original computes serves the same purpose (a
	// short collision-resistant tag), so a truncated hex slice of the
	// GUID itself is equivalent here without pulling in a CRC library.
	return fmt.Sprintf("%04x", uint16(id[0])<<8|uint16(id[1]))
}
