// Package stats computes synchronization statistics from a comparison
// tree. It is a pure function over the tree — no filesystem access, no
// mutation — grounded on the counting rules the engine applies before
// any work starts, so the driver can report totals and run pre-flight
// checks before touching disk.
package stats

import (
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// Conflict records one unresolved item the comparison stage could not
// decide on its own.
type Conflict struct {
	RelPath string
	Message string
}

// Result is the aggregated outcome of folding one base-folder pair's
// tree. All counts are per-item, not per-byte; BytesToProcess is the
// one field that sums sizes.
type Result struct {
	CreateLeft  int
	CreateRight int
	UpdateLeft  int
	UpdateRight int
	DeleteLeft  int
	DeleteRight int

	BytesToProcess int64
	RowsTotal      int

	PhysicalDeleteLeft  bool
	PhysicalDeleteRight bool

	// DiskSpaceLeft/DiskSpaceRight are the net bytes each side's free
	// space must absorb: creates and the copied half of overwrites add,
	// deletes and the replaced half of overwrites subtract.
	DiskSpaceLeft  int64
	DiskSpaceRight int64

	Conflicts []Conflict
}

// item is the subset of tree.FilePair/SymlinkPair/FolderPair the
// aggregator needs; all three satisfy it through their embedded
// common fields.
type item interface {
	Op() models.SyncOperation
	Side(models.Side) *tree.SideMeta
	RelPath() string
}

// Compute folds base's entire subtree into a Result. Folder items are
// walked regardless of their own operation — a DELETE_LEFT folder's
// children still carry their own operations and are counted the same
// as anywhere else in the tree, since these statistics are logical,
// not limited by what a deletion policy will physically touch.
func Compute(base *tree.BaseFolderPair) Result {
	var r Result
	foldChildren(&base.FolderPair, &r)
	return r
}

func foldChildren(f *tree.FolderPair, r *Result) {
	for _, file := range f.Files {
		bump(file, r)
	}
	for _, link := range f.Symlinks {
		bump(link, r)
	}
	for _, sub := range f.Folders {
		bump(sub, r)
		foldChildren(sub, r)
	}
}

func bump(it item, r *Result) {
	r.RowsTotal++

	left := it.Side(models.LeftSide)
	right := it.Side(models.RightSide)

	switch it.Op() {
	case models.OpCreateNewLeft:
		r.CreateLeft++
		r.BytesToProcess += right.Size
		r.DiskSpaceLeft += right.Size
	case models.OpCreateNewRight:
		r.CreateRight++
		r.BytesToProcess += left.Size
		r.DiskSpaceRight += left.Size
	case models.OpDeleteLeft:
		r.DeleteLeft++
		r.PhysicalDeleteLeft = true
		r.DiskSpaceLeft -= left.Size
	case models.OpDeleteRight:
		r.DeleteRight++
		r.PhysicalDeleteRight = true
		r.DiskSpaceRight -= right.Size
	case models.OpOverwriteLeft:
		r.UpdateLeft++
		r.BytesToProcess += right.Size
		r.PhysicalDeleteLeft = true
		r.DiskSpaceLeft += right.Size - left.Size
	case models.OpOverwriteRight:
		r.UpdateRight++
		r.BytesToProcess += left.Size
		r.PhysicalDeleteRight = true
		r.DiskSpaceRight += left.Size - right.Size
	case models.OpCopyMetadataToLeft:
		r.UpdateLeft++
	case models.OpCopyMetadataToRight:
		r.UpdateRight++
	case models.OpMoveLeftTo:
		r.UpdateLeft++
	case models.OpMoveRightTo:
		r.UpdateRight++
	case models.OpMoveLeftFrom, models.OpMoveRightFrom:
		// already counted on the paired *_TO item
	case models.OpUnresolvedConflict:
		r.Conflicts = append(r.Conflicts, Conflict{RelPath: it.RelPath(), Message: "unresolved conflict"})
	case models.OpDoNothing, models.OpEqual:
		// no-op
	}
}

// SignificantDifference reports whether the planned change set is large
// enough relative to the tree's size to warrant a pre-flight warning,
// excluding the common "initial copy" case where one side starts empty.
func (r Result) SignificantDifference() bool {
	isInitialCopy := (r.CreateLeft == 0 || r.CreateRight == 0) &&
		r.UpdateLeft+r.UpdateRight+r.DeleteLeft+r.DeleteRight+len(r.Conflicts) == 0
	if isInitialCopy {
		return false
	}
	changed := r.CreateLeft + r.CreateRight + r.DeleteLeft + r.DeleteRight
	return changed >= 10 && float64(changed) > 0.5*float64(r.RowsTotal)
}

// AlreadyInSync reports whether the tree requires no work at all.
func (r Result) AlreadyInSync() bool {
	return r.CreateLeft+r.CreateRight+r.UpdateLeft+r.UpdateRight+r.DeleteLeft+r.DeleteRight == 0
}
