package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/syncnorris/pkg/afs"
	"github.com/sdejongh/syncnorris/pkg/deletion"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

func TestSetup2StepMoveRelinksThroughTempItem(t *testing.T) {
	leftDir, rightDir := t.TempDir(), t.TempDir()
	oldPath := filepath.Join(leftDir, "old.txt")
	if err := os.WriteFile(oldPath, []byte("staged"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	base := tree.NewBaseFolderPair(leftDir, rightDir, tree.FolderPairConfig{HandleDeletion: models.DeletionPermanent})
	from := base.FolderPair.AddFile("old.txt")
	from.Side(models.LeftSide).Present = true
	from.SetOp(models.OpMoveLeftFrom)

	to := base.FolderPair.AddFile("new.txt")
	to.SetOp(models.OpMoveLeftTo)
	from.SetMoveRef(to.ID())
	to.SetMoveRef(from.ID())

	leftDel := deletion.New(afs.NewLocal(), leftDir, models.DeletionPermanent, "", "", time.Now())
	rightDel := deletion.New(afs.NewLocal(), rightDir, models.DeletionPermanent, "", "", time.Now())
	s := NewFolderPairSyncer(base, afs.NewLocal(), afs.NewLocal(), leftDel, rightDel, Options{ThreadCount: 1})

	if err := s.setup2StepMove(context.Background(), models.LeftSide, from, to); err != nil {
		t.Fatalf("setup2StepMove() error = %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("original path should have been renamed away")
	}

	var tempItem *tree.FilePair
	for _, fp := range base.FolderPair.Files {
		if strings.HasSuffix(fp.RelPath(), models.TempFileSuffix) {
			tempItem = fp
		}
	}
	if tempItem == nil {
		t.Fatal("expected a new temp-suffixed sibling item at the base root")
	}

	tempRef, ok := tempItem.MoveRef()
	if !ok || tempRef != to.ID() {
		t.Error("temp item's moveRef should point at to")
	}
	toRef, ok := to.MoveRef()
	if !ok || toRef != tempItem.ID() {
		t.Error("to's moveRef should have been relinked to the temp item")
	}
	if _, ok := from.MoveRef(); ok {
		t.Error("from's moveRef should be cleared after staging")
	}
	if from.Side(models.LeftSide).Present {
		t.Error("from's left-side metadata should be cleared after staging")
	}

	if _, err := os.Stat(filepath.Join(leftDir, tempItem.RelPath())); err != nil {
		t.Errorf("staged temp file should exist on disk: %v", err)
	}
}

func TestAbandonMoveClearsBothSidesMoveRef(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	from := base.FolderPair.AddFile("old.txt")
	to := base.FolderPair.AddFile("new.txt")
	from.SetMoveRef(to.ID())
	to.SetMoveRef(from.ID())

	s := &FolderPairSyncer{base: base}
	s.abandonMove(to)

	if _, ok := to.MoveRef(); ok {
		t.Error("to's moveRef should be cleared")
	}
	if _, ok := from.MoveRef(); ok {
		t.Error("from's moveRef should be cleared")
	}
}

func TestParentChainHasClashDetectsAncestorCollision(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	parent := base.FolderPair.AddFolder("parent")
	child := parent.AddFolder("child")
	// A file at the grandparent level whose basename collides with "parent".
	base.FolderPair.AddFile("parent")

	if !parentChainHasClash(child) {
		t.Error("parentChainHasClash() = false, want true when an ancestor's name collides with a sibling file")
	}
}

func TestParentChainHasClashCleanChain(t *testing.T) {
	base := tree.NewBaseFolderPair("/l", "/r", tree.FolderPairConfig{})
	parent := base.FolderPair.AddFolder("parent")
	child := parent.AddFolder("child")

	if parentChainHasClash(child) {
		t.Error("parentChainHasClash() = true, want false with no colliding siblings")
	}
}
