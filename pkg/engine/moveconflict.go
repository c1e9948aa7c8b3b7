package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// resolveMoveConflict implements spec.md §4.6.1: pass 0's attempt to
// resolve a move pair (from, to) before ordinary pass-2 dispatch runs.
func (s *FolderPairSyncer) resolveMoveConflict(ctx context.Context, threadIdx int, from *tree.FilePair) error {
	toID, ok := from.MoveRef()
	if !ok {
		return nil
	}
	to, ok := s.base.Lookup(toID)
	if !ok {
		return nil
	}
	side, ok := from.Op().MoveSide()
	if !ok {
		return nil
	}

	parent := from.Parent()
	sourceWillBeDeleted := parent != nil && parent.Op().IsDelete()
	fromClash := parent != nil && parent.HasNameClashSymlinkOrFolder(from.RelPath())

	if !sourceWillBeDeleted && !fromClash {
		// Deferred: `to`'s own MOVE_*_TO op already runs this in pass 2.
		return nil
	}

	toParent := to.Parent()
	parentErr := s.createParentFolders(ctx, side, toParent)
	toClash := toParent != nil && (parentChainHasClash(toParent) || toParent.HasNameClashSymlinkOrFolder(to.RelPath()))

	if parentErr == nil && !toClash {
		moved := false
		err := s.act.RetryOnErrorWithCleanup(ctx, threadIdx, func() error {
			if mvErr := s.moveFile(ctx, to); mvErr != nil {
				return mvErr
			}
			moved = true
			return nil
		}, func(error) { s.abandonMove(to) })
		if err != nil {
			return err
		}
		if moved {
			// Dispatched immediately here in pass 0, not pass 2: clear
			// the pair's move bookkeeping so the unmutated tree walk
			// that feeds pass 2's dispatch does not see `to`'s
			// MOVE_*_TO op and try to move it again from a source
			// moveFile already cleared.
			s.completeMove(to)
		}
		return nil
	}

	return s.setup2StepMove(ctx, side, from, to)
}

// createParentFolders recursively ensures folder and every ancestor up
// to (but not including) the base root exist on side, creating any
// that are missing on that side. Parent creation always happens
// synchronously on the calling thread, before the child is attempted
// (spec.md §5's ordering guarantee).
func (s *FolderPairSyncer) createParentFolders(ctx context.Context, side models.Side, folder *tree.FolderPair) error {
	if folder == nil || folder.Parent() == nil {
		return nil
	}
	if err := s.createParentFolders(ctx, side, folder.Parent()); err != nil {
		return err
	}
	if folder.Side(side).Present {
		return nil
	}
	return s.createFolder(ctx, folder)
}

func parentChainHasClash(folder *tree.FolderPair) bool {
	for f := folder; f != nil && f.Parent() != nil; f = f.Parent() {
		if f.Parent().HasNameClashFileOrSymlink(f.RelPath()) {
			return true
		}
	}
	return false
}

// setup2StepMove implements spec.md §4.6.1 step 4: rename `from` to a
// reserved temp name at the base-folder root, install it as a new tree
// item, and relink the move pair so pass 2 completes the move via the
// temp item instead of the original.
func (s *FolderPairSyncer) setup2StepMove(ctx context.Context, side models.Side, from *tree.FilePair, to *tree.FilePair) error {
	tempRel := filepath.Base(from.RelPath()) + "." + newGUIDSuffix() + models.TempFileSuffix

	srcPath := s.pathFor(side, from.RelPath())
	tgtPath := s.pathFor(side, tempRel)
	if err := s.backendFor(side).RenameItem(ctx, srcPath, tgtPath); err != nil {
		return fmt.Errorf("two-step move stage for %s: %w", from.RelPath(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tempItem := s.base.FolderPair.AddFile(tempRel)
	*tempItem.Side(side) = *from.Side(side)
	tempItem.SetOp(from.Op())
	tempItem.SetMoveRef(to.ID())
	to.SetMoveRef(tempItem.ID())

	from.Side(side).Clear()
	from.ClearMoveRef()
	if parent := from.Parent(); parent != nil {
		parent.RemoveFile(from.ID())
	}
	if from.IsEmptyOnBothSides() {
		from.SetOp(models.OpDoNothing)
	}
	return nil
}

// completeMove marks a move pair done once its move has already run
// (pass 0's immediate-move path), clearing both sides' move references
// and `to`'s op so the pass-2 tree walk — built before this mutation —
// skips it instead of re-dispatching MOVE_*_TO against a `from` that no
// longer exists on disk.
func (s *FolderPairSyncer) completeMove(to *tree.FilePair) {
	fromID, ok := to.MoveRef()

	s.mu.Lock()
	defer s.mu.Unlock()

	to.SetOp(models.OpDoNothing)
	to.ClearMoveRef()
	if !ok {
		return
	}
	if from, found := s.base.Lookup(fromID); found {
		from.ClearMoveRef()
		if from.IsEmptyOnBothSides() {
			from.SetOp(models.OpDoNothing)
		}
	}
}

// abandonMove strips the mutual moveRef from a failed move pair,
// leaving both items to be reconciled by the next comparison run —
// spec.md §4.6.1's "reported and ignored by the user" fallback.
// Re-executing as copy+delete mid-run is left to the next comparison
// pass rather than attempted here, since by the time a MOVE_*_TO
// dispatch fails in pass 2 the paired delete's pass-1 window has
// already closed; but the run's reported totals are patched to match
// that equivalent cost, per spec.md §4.6.1.
func (s *FolderPairSyncer) abandonMove(to *tree.FilePair) {
	fromID, ok := to.MoveRef()
	if !ok {
		return
	}
	from, foundFrom := s.base.Lookup(fromID)

	var size int64
	side, sideOK := to.Op().TargetSide()

	s.mu.Lock()
	to.ClearMoveRef()
	if foundFrom {
		from.ClearMoveRef()
		if sideOK {
			size = from.Side(side).Size
		}
	}
	s.mu.Unlock()

	// A move was counted as one item and zero bytes (pkg/stats' OpMove*To
	// case); the copy+delete it degrades to costs one more item (the
	// delete) and the file's full size (the copy), so patch the running
	// total up by that difference.
	if sideOK {
		s.act.UpdateDataTotal(1, size)
	}
}
