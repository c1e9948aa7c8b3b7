package stats

import (
	"testing"

	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

func newBase() *tree.BaseFolderPair {
	return tree.NewBaseFolderPair("/left", "/right", tree.FolderPairConfig{})
}

func TestComputeSimpleCreate(t *testing.T) {
	base := newBase()
	f := base.FolderPair.AddFile("a.txt")
	f.Side(models.RightSide).Present = true
	f.Side(models.RightSide).Size = 42
	f.SetOp(models.OpCreateNewLeft)

	r := Compute(base)

	if r.CreateLeft != 1 {
		t.Errorf("CreateLeft = %d, want 1", r.CreateLeft)
	}
	if r.BytesToProcess != 42 {
		t.Errorf("BytesToProcess = %d, want 42", r.BytesToProcess)
	}
	if r.RowsTotal != 1 {
		t.Errorf("RowsTotal = %d, want 1", r.RowsTotal)
	}
	if r.PhysicalDeleteLeft || r.PhysicalDeleteRight {
		t.Error("no deletes expected")
	}
}

func TestComputeDeleteSetsPhysicalFlag(t *testing.T) {
	base := newBase()
	f := base.FolderPair.AddFile("b.txt")
	f.Side(models.LeftSide).Present = true
	f.Side(models.LeftSide).Size = 7
	f.SetOp(models.OpDeleteLeft)

	r := Compute(base)

	if r.DeleteLeft != 1 {
		t.Errorf("DeleteLeft = %d, want 1", r.DeleteLeft)
	}
	if !r.PhysicalDeleteLeft {
		t.Error("PhysicalDeleteLeft should be true")
	}
	if r.BytesToProcess != 0 {
		t.Errorf("BytesToProcess = %d, want 0 for a delete", r.BytesToProcess)
	}
}

func TestComputeOverwriteUsesSourceSize(t *testing.T) {
	base := newBase()
	f := base.FolderPair.AddFile("c.bin")
	f.Side(models.LeftSide).Present = true
	f.Side(models.LeftSide).Size = 10
	f.Side(models.RightSide).Present = true
	f.Side(models.RightSide).Size = 1000
	f.SetOp(models.OpOverwriteLeft)

	r := Compute(base)

	if r.UpdateLeft != 1 {
		t.Errorf("UpdateLeft = %d, want 1", r.UpdateLeft)
	}
	if r.BytesToProcess != 1000 {
		t.Errorf("BytesToProcess = %d, want 1000 (source/right size)", r.BytesToProcess)
	}
	if !r.PhysicalDeleteLeft {
		t.Error("PhysicalDeleteLeft should be true for an overwrite")
	}
}

func TestComputeMoveFromIgnored(t *testing.T) {
	base := newBase()
	from := base.FolderPair.AddFile("y.txt")
	to := base.FolderPair.AddFile("x.txt")
	from.SetOp(models.OpMoveLeftFrom)
	to.SetOp(models.OpMoveLeftTo)
	from.SetMoveRef(to.ID())
	to.SetMoveRef(from.ID())

	r := Compute(base)

	if r.UpdateLeft != 1 {
		t.Errorf("UpdateLeft = %d, want 1 (only the TO half counts)", r.UpdateLeft)
	}
	if r.RowsTotal != 2 {
		t.Errorf("RowsTotal = %d, want 2", r.RowsTotal)
	}
}

func TestComputeUnresolvedConflictRecorded(t *testing.T) {
	base := newBase()
	f := base.FolderPair.AddFile("conflict.txt")
	f.SetOp(models.OpUnresolvedConflict)

	r := Compute(base)

	if len(r.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(r.Conflicts))
	}
	if r.Conflicts[0].RelPath != "conflict.txt" {
		t.Errorf("Conflicts[0].RelPath = %s, want conflict.txt", r.Conflicts[0].RelPath)
	}
}

func TestComputeRecursesIntoFolders(t *testing.T) {
	base := newBase()
	sub := base.FolderPair.AddFolder("sub")
	sub.SetOp(models.OpDeleteLeft)
	sub.Side(models.LeftSide).Present = true
	child := sub.AddFile("child.txt")
	child.SetOp(models.OpDeleteLeft)
	child.Side(models.LeftSide).Present = true

	r := Compute(base)

	if r.DeleteLeft != 2 {
		t.Errorf("DeleteLeft = %d, want 2 (folder + child)", r.DeleteLeft)
	}
	if r.RowsTotal != 2 {
		t.Errorf("RowsTotal = %d, want 2", r.RowsTotal)
	}
}

func TestSignificantDifferenceInitialCopy(t *testing.T) {
	r := Result{CreateLeft: 0, CreateRight: 20, RowsTotal: 20}
	if r.SignificantDifference() {
		t.Error("initial copy (one side all creates, nothing else) should not be significant")
	}
}

func TestSignificantDifferenceThreshold(t *testing.T) {
	r := Result{CreateLeft: 6, CreateRight: 6, RowsTotal: 20}
	if !r.SignificantDifference() {
		t.Error("12 changes out of 20 rows should be significant")
	}

	small := Result{CreateLeft: 2, CreateRight: 2, RowsTotal: 20}
	if small.SignificantDifference() {
		t.Error("4 changes out of 20 rows should not clear the >=10 floor")
	}
}

func TestAlreadyInSync(t *testing.T) {
	r := Result{RowsTotal: 5}
	if !r.AlreadyInSync() {
		t.Error("zero create/update/delete should be AlreadyInSync")
	}

	r.DeleteLeft = 1
	if r.AlreadyInSync() {
		t.Error("a pending delete should not be AlreadyInSync")
	}
}

func TestDiskSpaceComputation(t *testing.T) {
	base := newBase()
	f := base.FolderPair.AddFile("a.txt")
	f.Side(models.LeftSide).Present = true
	f.Side(models.LeftSide).Size = 100
	f.SetOp(models.OpCreateNewRight)

	r := Compute(base)

	if r.DiskSpaceLeft != 0 || r.DiskSpaceRight != 100 {
		t.Errorf("disk space = (%d, %d), want (0, 100)", r.DiskSpaceLeft, r.DiskSpaceRight)
	}
}
