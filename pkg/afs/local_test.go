package afs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdejongh/syncnorris/pkg/models"
)

func tempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "syncnorris-afs-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestLocalGetItemType(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	filePath := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	folderPath := filepath.Join(dir, "sub")
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	linkPath := filepath.Join(dir, "link")
	if err := os.Symlink(filePath, linkPath); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	t.Run("File", func(t *testing.T) {
		typ, err := local.GetItemType(ctx, filePath)
		if err != nil {
			t.Fatalf("GetItemType() error = %v", err)
		}
		if typ != models.ItemTypeFile {
			t.Errorf("GetItemType() = %v, want ItemTypeFile", typ)
		}
	})

	t.Run("Folder", func(t *testing.T) {
		typ, err := local.GetItemType(ctx, folderPath)
		if err != nil {
			t.Fatalf("GetItemType() error = %v", err)
		}
		if typ != models.ItemTypeFolder {
			t.Errorf("GetItemType() = %v, want ItemTypeFolder", typ)
		}
	})

	t.Run("Symlink", func(t *testing.T) {
		typ, err := local.GetItemType(ctx, linkPath)
		if err != nil {
			t.Fatalf("GetItemType() error = %v", err)
		}
		if typ != models.ItemTypeSymlink {
			t.Errorf("GetItemType() = %v, want ItemTypeSymlink", typ)
		}
	})

	t.Run("NonExistent", func(t *testing.T) {
		_, err := local.GetItemType(ctx, filepath.Join(dir, "nope"))
		if err == nil {
			t.Error("GetItemType() should fail for non-existent path")
		}
	})
}

func TestLocalGetItemTypeIfExists(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	_, ok, err := local.GetItemTypeIfExists(ctx, filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("GetItemTypeIfExists() error = %v", err)
	}
	if ok {
		t.Error("GetItemTypeIfExists() ok = true, want false")
	}
}

func TestLocalRemoveFileIfExists(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	filePath := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	existed, err := local.RemoveFileIfExists(ctx, filePath)
	if err != nil {
		t.Fatalf("RemoveFileIfExists() error = %v", err)
	}
	if !existed {
		t.Error("RemoveFileIfExists() existed = false, want true")
	}

	existed, err = local.RemoveFileIfExists(ctx, filePath)
	if err != nil {
		t.Fatalf("RemoveFileIfExists() error = %v", err)
	}
	if existed {
		t.Error("RemoveFileIfExists() existed = true on second call, want false")
	}
}

func TestLocalRemoveFolderIfExistsRecursion(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	root := filepath.Join(dir, "root")
	if err := os.MkdirAll(filepath.Join(root, "child"), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "child", "leaf.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var removed []string
	err := local.RemoveFolderIfExistsRecursion(ctx, root, func(relPath string, isFolder bool) {
		removed = append(removed, relPath)
	})
	if err != nil {
		t.Fatalf("RemoveFolderIfExistsRecursion() error = %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("root folder should be gone")
	}
	if len(removed) == 0 {
		t.Error("expected before-remove callback to fire at least once")
	}
}

func TestLocalRenameItem(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	src := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	tgt := filepath.Join(dir, "b.txt")

	if err := local.RenameItem(ctx, src, tgt); err != nil {
		t.Fatalf("RenameItem() error = %v", err)
	}
	if _, err := os.Stat(tgt); err != nil {
		t.Errorf("target should exist: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should no longer exist")
	}
}

func TestLocalCopySymlink(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	target := filepath.Join(dir, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	src := filepath.Join(dir, "srclink")
	if err := os.Symlink(target, src); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}
	tgt := filepath.Join(dir, "tgtlink")

	if err := local.CopySymlink(ctx, src, tgt, false); err != nil {
		t.Fatalf("CopySymlink() error = %v", err)
	}
	resolved, err := os.Readlink(tgt)
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if resolved != target {
		t.Errorf("Readlink() = %s, want %s", resolved, target)
	}
}

func TestLocalCopyFileTransactional(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	content := []byte("transactional copy content")
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	tgt := filepath.Join(dir, "tgt.txt")

	var bytesSeen int64
	result, err := local.CopyFileTransactional(ctx, src, tgt, true, true, nil, func(done int64) {
		bytesSeen = done
	})
	if err != nil {
		t.Fatalf("CopyFileTransactional() error = %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	if bytesSeen != int64(len(content)) {
		t.Errorf("bytes callback reported %d, want %d", bytesSeen, len(content))
	}

	data, err := os.ReadFile(tgt)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("copied content = %s, want %s", data, content)
	}

	// No leftover temp file.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".ffs_tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestLocalCopyFileTransactionalOnDeleteTarget(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	tgt := filepath.Join(dir, "tgt.txt")

	var called bool
	_, err := local.CopyFileTransactional(ctx, src, tgt, false, true, func() error {
		called = true
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("CopyFileTransactional() error = %v", err)
	}
	if !called {
		t.Error("onDeleteTarget was not invoked")
	}
}

func TestLocalCreateFolderIfMissingRecursion(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	nested := filepath.Join(dir, "a", "b", "c")
	if err := local.CreateFolderIfMissingRecursion(ctx, nested); err != nil {
		t.Fatalf("CreateFolderIfMissingRecursion() error = %v", err)
	}
	info, err := os.Stat(nested)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

func TestLocalRecycleSession(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	victim := filepath.Join(dir, "victim.txt")
	if err := os.WriteFile(victim, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	session, err := local.CreateRecyclerSession(ctx, dir)
	if err != nil {
		t.Fatalf("CreateRecyclerSession() error = %v", err)
	}
	if err := session.RecycleItem(ctx, victim, "victim.txt"); err != nil {
		t.Fatalf("RecycleItem() error = %v", err)
	}
	if _, err := os.Stat(victim); !os.IsNotExist(err) {
		t.Error("victim should be moved out of place")
	}

	var notified []string
	if err := session.TryCleanup(ctx, func(relPath string) {
		notified = append(notified, relPath)
	}); err != nil {
		t.Fatalf("TryCleanup() error = %v", err)
	}
	if len(notified) != 1 || notified[0] != "victim.txt" {
		t.Errorf("notified = %v, want [victim.txt]", notified)
	}
}

func TestLocalOpen(t *testing.T) {
	dir := tempDir(t)
	local := NewLocal()
	ctx := context.Background()

	path := filepath.Join(dir, "open.txt")
	content := []byte("read me")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	rc, err := local.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content = %s, want %s", data, content)
	}
}

func TestLocalIsNullPath(t *testing.T) {
	local := NewLocal()
	if !local.IsNullPath("") {
		t.Error("IsNullPath(\"\") should be true")
	}
	if local.IsNullPath("/some/path") {
		t.Error("IsNullPath(/some/path) should be false")
	}
}

func TestBackendInterfaceLocal(t *testing.T) {
	var _ Backend = NewLocal()
}
