package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/syncnorris/pkg/afs"
	"github.com/sdejongh/syncnorris/pkg/deletion"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

func newTestSyncer(t *testing.T, base *tree.BaseFolderPair) *FolderPairSyncer {
	leftDel := deletion.New(afs.NewLocal(), base.LeftPath, models.DeletionPermanent, "", "", time.Now())
	rightDel := deletion.New(afs.NewLocal(), base.RightPath, models.DeletionPermanent, "", "", time.Now())
	return NewFolderPairSyncer(base, afs.NewLocal(), afs.NewLocal(), leftDel, rightDel, Options{ThreadCount: 2})
}

func TestGetPassFileDeleteAlwaysPassOne(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	f := base.FolderPair.AddFile("a.txt")
	f.SetOp(models.OpDeleteLeft)
	if got := getPassFile(f); got != models.PassOne {
		t.Errorf("getPassFile(DELETE_LEFT) = %v, want PassOne", got)
	}
}

func TestGetPassFileOverwriteShrinkIsPassOne(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	f := base.FolderPair.AddFile("a.txt")
	f.SetOp(models.OpOverwriteLeft)
	f.Side(models.LeftSide).Size = 100  // old target content, larger
	f.Side(models.RightSide).Size = 10 // new source content, smaller
	if got := getPassFile(f); got != models.PassOne {
		t.Errorf("getPassFile(shrinking OVERWRITE_LEFT) = %v, want PassOne", got)
	}
}

func TestGetPassFileOverwriteGrowIsPassTwo(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	f := base.FolderPair.AddFile("a.txt")
	f.SetOp(models.OpOverwriteLeft)
	f.Side(models.LeftSide).Size = 10
	f.Side(models.RightSide).Size = 100
	if got := getPassFile(f); got != models.PassTwo {
		t.Errorf("getPassFile(growing OVERWRITE_LEFT) = %v, want PassTwo", got)
	}
}

func TestGetPassFileMoveFromIsNeverDispatched(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	f := base.FolderPair.AddFile("a.txt")
	f.SetOp(models.OpMoveLeftFrom)
	if got := getPassFile(f); got != models.PassNone {
		t.Errorf("getPassFile(MOVE_LEFT_FROM) = %v, want PassNone", got)
	}
}

func TestGetPassFileCreateAndMoveToArePassTwo(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	for _, op := range []models.SyncOperation{models.OpCreateNewRight, models.OpMoveRightTo, models.OpCopyMetadataToRight} {
		f := base.FolderPair.AddFile("a.txt")
		f.SetOp(op)
		if got := getPassFile(f); got != models.PassTwo {
			t.Errorf("getPassFile(%v) = %v, want PassTwo", op, got)
		}
	}
}

func TestGetPassFolderOrSymlinkMirrorsFileLaw(t *testing.T) {
	cases := map[models.SyncOperation]models.Pass{
		models.OpDeleteRight:         models.PassOne,
		models.OpOverwriteLeft:       models.PassTwo,
		models.OpCreateNewLeft:       models.PassTwo,
		models.OpCopyMetadataToRight: models.PassTwo,
		models.OpDoNothing:           models.PassNone,
		models.OpEqual:               models.PassNone,
	}
	for op, want := range cases {
		if got := getPassFolderOrSymlink(op); got != want {
			t.Errorf("getPassFolderOrSymlink(%v) = %v, want %v", op, got, want)
		}
	}
}

func TestRunSyncCreatesFileOnTargetSide(t *testing.T) {
	leftDir, rightDir := t.TempDir(), t.TempDir()
	content := []byte("hello from the left side")
	if err := os.WriteFile(filepath.Join(leftDir, "a.txt"), content, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	base := tree.NewBaseFolderPair(leftDir, rightDir, tree.FolderPairConfig{HandleDeletion: models.DeletionPermanent})
	f := base.FolderPair.AddFile("a.txt")
	f.Side(models.LeftSide).Present = true
	f.Side(models.LeftSide).Size = int64(len(content))
	f.SetOp(models.OpCreateNewRight)

	s := newTestSyncer(t, base)
	if err := s.RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(rightDir, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("copied content = %q, want %q", got, content)
	}
	if !f.Side(models.RightSide).Present {
		t.Error("tree metadata should mark the right side present after create")
	}
}

func TestRunSyncDeletesFileFromTargetSide(t *testing.T) {
	leftDir, rightDir := t.TempDir(), t.TempDir()
	path := filepath.Join(leftDir, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	base := tree.NewBaseFolderPair(leftDir, rightDir, tree.FolderPairConfig{HandleDeletion: models.DeletionPermanent})
	f := base.FolderPair.AddFile("gone.txt")
	f.Side(models.LeftSide).Present = true
	f.Side(models.LeftSide).Size = 1
	f.SetOp(models.OpDeleteLeft)

	s := newTestSyncer(t, base)
	if err := s.RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("deleted file should no longer exist")
	}
	if f.Side(models.LeftSide).Present {
		t.Error("tree metadata should clear the left side after delete")
	}
}

func TestRunSyncMovesFileOnSameSide(t *testing.T) {
	leftDir, rightDir := t.TempDir(), t.TempDir()
	oldPath := filepath.Join(leftDir, "old.txt")
	if err := os.WriteFile(oldPath, []byte("moved content"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	base := tree.NewBaseFolderPair(leftDir, rightDir, tree.FolderPairConfig{HandleDeletion: models.DeletionPermanent})
	from := base.FolderPair.AddFile("old.txt")
	from.Side(models.LeftSide).Present = true
	from.Side(models.LeftSide).Size = 13
	from.SetOp(models.OpMoveLeftFrom)

	to := base.FolderPair.AddFile("new.txt")
	to.SetOp(models.OpMoveLeftTo)

	from.SetMoveRef(to.ID())
	to.SetMoveRef(from.ID())

	s := newTestSyncer(t, base)
	if err := s.RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync() error = %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old path should be gone after move")
	}
	got, err := os.ReadFile(filepath.Join(leftDir, "new.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "moved content" {
		t.Errorf("moved content = %q, want %q", got, "moved content")
	}
}

func TestRunSyncCreatesFolderOnTargetSide(t *testing.T) {
	leftDir, rightDir := t.TempDir(), t.TempDir()
	if err := os.MkdirAll(filepath.Join(leftDir, "sub"), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	base := tree.NewBaseFolderPair(leftDir, rightDir, tree.FolderPairConfig{HandleDeletion: models.DeletionPermanent})
	sub := base.FolderPair.AddFolder("sub")
	sub.Side(models.LeftSide).Present = true
	sub.SetOp(models.OpCreateNewRight)

	s := newTestSyncer(t, base)
	if err := s.RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(rightDir, "sub"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("created target should be a directory")
	}
}
