package afs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/google/uuid"

	"github.com/sdejongh/syncnorris/pkg/models"
)

// Local is the filesystem-backed Backend implementation. It is the only
// Backend this repository ships, matching the teacher's single `Local`
// storage backend (pkg/storage/local.go), generalized here to the full
// primitive set pkg/engine needs.
type Local struct{}

// NewLocal constructs the local backend. It takes no root: unlike the
// teacher's storage.Local, paths passed to every method are already
// absolute (base-folder-relative joining happens in pkg/engine), so
// there is nothing to resolve at construction time.
func NewLocal() *Local { return &Local{} }

func (l *Local) GetItemType(ctx context.Context, path string) (models.ItemType, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, newFileError("getItemType", path, err)
	}
	return itemTypeOf(info), nil
}

func (l *Local) GetItemTypeIfExists(ctx context.Context, path string) (models.ItemType, bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, newFileError("getItemTypeIfExists", path, err)
	}
	return itemTypeOf(info), true, nil
}

func itemTypeOf(info os.FileInfo) models.ItemType {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return models.ItemTypeSymlink
	case info.IsDir():
		return models.ItemTypeFolder
	default:
		return models.ItemTypeFile
	}
}

func (l *Local) RemoveFileIfExists(ctx context.Context, path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, newFileError("removeFileIfExists", path, err)
}

func (l *Local) RemoveSymlinkIfExists(ctx context.Context, path string) (bool, error) {
	return l.RemoveFileIfExists(ctx, path)
}

func (l *Local) RemoveFilePlain(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return newFileError("removeFilePlain", path, err)
	}
	return nil
}

func (l *Local) RemoveFolderIfExistsRecursion(ctx context.Context, path string, before BeforeRemoveFunc) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newFileError("removeFolderIfExistsRecursion", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return newFileError("removeFolderIfExistsRecursion", path, err)
		}
		return nil
	}
	return removeRecursive(ctx, path, path, before)
}

func removeRecursive(ctx context.Context, root, dir string, before BeforeRemoveFunc) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newFileError("removeFolderIfExistsRecursion", dir, err)
	}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		child := filepath.Join(dir, entry.Name())
		rel, _ := filepath.Rel(root, child)
		if entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			if err := removeRecursive(ctx, root, child, before); err != nil {
				return err
			}
			if before != nil {
				before(rel, true)
			}
			if err := os.Remove(child); err != nil {
				return newFileError("removeFolderIfExistsRecursion", child, err)
			}
			continue
		}
		if before != nil {
			before(rel, false)
		}
		if err := os.Remove(child); err != nil {
			return newFileError("removeFolderIfExistsRecursion", child, err)
		}
	}
	if before != nil && dir == root {
		before("", true)
	}
	return os.Remove(dir)
}

func (l *Local) RenameItem(ctx context.Context, src, tgt string) error {
	if err := os.Rename(src, tgt); err != nil {
		if isCrossDeviceErr(err) {
			return newFileError("renameItem", src, ErrDifferentVolume)
		}
		return newFileError("renameItem", src, err)
	}
	return nil
}

func isCrossDeviceErr(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}

func (l *Local) GetSymlinkResolvedPath(ctx context.Context, path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", newFileError("getSymlinkResolvedPath", path, err)
	}
	return target, nil
}

func (l *Local) CopySymlink(ctx context.Context, src, tgt string, copyPerms bool) error {
	target, err := os.Readlink(src)
	if err != nil {
		return newFileError("copySymlink", src, err)
	}
	if err := os.Symlink(target, tgt); err != nil {
		return newFileError("copySymlink", tgt, err)
	}
	if copyPerms && runtime.GOOS != "windows" {
		if info, err := os.Lstat(src); err == nil {
			_ = os.Chmod(tgt, info.Mode())
		}
	}
	return nil
}

func (l *Local) CopyNewFolder(ctx context.Context, src, tgt string, copyPerms bool) error {
	mode := os.FileMode(0o755)
	if info, err := os.Stat(src); err == nil {
		mode = info.Mode()
	}
	if err := os.MkdirAll(tgt, mode); err != nil {
		return newFileError("copyNewFolder", tgt, err)
	}
	if copyPerms {
		_ = os.Chmod(tgt, mode)
	}
	return nil
}

// CopyFileTransactional copies src to a sibling temp file, fsyncs it,
// then renames it over tgt — the tgt path is never observed in a
// half-written state. The temp file and rename are used whether or not
// failSafe is set; there is no in-place overwrite mode. failSafe only
// adds a size check: when fewer bytes were written than src holds, the
// temp file is removed and an error returned instead of renaming.
// onDeleteTarget, when non-nil, runs before the copy starts, so an old
// tgt is already gone if the copy then fails.
func (l *Local) CopyFileTransactional(ctx context.Context, src, tgt string, copyPerms, failSafe bool, onDeleteTarget func() error, bytesCb BytesProgressFunc) (CopyResult, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return CopyResult{}, newFileError("copyFileTransactional", src, mapLockedErr(err))
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return CopyResult{}, newFileError("copyFileTransactional", src, err)
	}

	if onDeleteTarget != nil {
		if err := onDeleteTarget(); err != nil {
			return CopyResult{}, err
		}
	}

	tmpPath := tgt + "." + uuid.New().String()[:8] + models.TempFileSuffix
	tmpFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return CopyResult{}, newFileError("copyFileTransactional", tmpPath, err)
	}

	written, copyErr := copyWithProgress(ctx, tmpFile, srcFile, bytesCb)
	syncErr := tmpFile.Sync()
	closeErr := tmpFile.Close()

	if copyErr != nil || syncErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if copyErr != nil {
			return CopyResult{}, newFileError("copyFileTransactional", src, copyErr)
		}
		if syncErr != nil {
			return CopyResult{}, newFileError("copyFileTransactional", tmpPath, syncErr)
		}
		return CopyResult{}, newFileError("copyFileTransactional", tmpPath, closeErr)
	}

	if written != srcInfo.Size() && failSafe {
		_ = os.Remove(tmpPath)
		return CopyResult{}, newFileError("copyFileTransactional", src, fmt.Errorf("short copy: wrote %d of %d bytes", written, srcInfo.Size()))
	}

	if copyPerms {
		_ = os.Chmod(tmpPath, srcInfo.Mode())
	}

	modTime := srcInfo.ModTime()
	var modTimeWarning error
	if err := os.Chtimes(tmpPath, modTime, modTime); err != nil {
		modTimeWarning = fmt.Errorf("set mod time on %s: %w", tgt, err)
	}

	if err := os.Rename(tmpPath, tgt); err != nil {
		_ = os.Remove(tmpPath)
		return CopyResult{}, newFileError("copyFileTransactional", tgt, err)
	}

	return CopyResult{
		Size:           srcInfo.Size(),
		ModTime:        modTime,
		SourceFileID:   fileIdentity(src, srcInfo),
		TargetFileID:   fileIdentity(tgt, srcInfo),
		ModTimeWarning: modTimeWarning,
	}, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, bytesCb BytesProgressFunc) (int64, error) {
	buf := make([]byte, 512*1024)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if bytesCb != nil {
				bytesCb(total)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func mapLockedErr(err error) error {
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY) {
		return ErrFileLocked
	}
	return err
}

// fileIdentity derives a stable per-path identifier used for move
// detection on subsequent runs. Real inode numbers are platform
// specific to extract portably from os.FileInfo without a build-tagged
// syscall.Stat_t split, so this engine falls back to a path+size+mtime
// composite, matching spec.md's note that file-id stability is
// best-effort outside of NTFS/APFS-specific code paths.
func fileIdentity(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
}

func (l *Local) CreateFolderIfMissingRecursion(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return newFileError("createFolderIfMissingRecursion", path, err)
	}
	return nil
}

func (l *Local) CreateRecyclerSession(ctx context.Context, baseFolderPath string) (RecycleSession, error) {
	stagingRoot := filepath.Join(baseFolderPath, ".syncnorris-recycle-"+uuid.New().String())
	if err := os.MkdirAll(stagingRoot, 0o700); err != nil {
		return nil, newFileError("createRecyclerSession", stagingRoot, err)
	}
	return &localRecycleSession{stagingRoot: stagingRoot}, nil
}

// localRecycleSession stages removed items under a hidden per-run
// directory instead of the platform recycle bin (no recycle-bin
// library exists in the reference pack — see DESIGN.md). TryCleanup
// deletes the whole staging tree, matching the semantics of "empty the
// trash" rather than leaving items recoverable indefinitely.
type localRecycleSession struct {
	stagingRoot string
}

func (s *localRecycleSession) RecycleItem(ctx context.Context, path, relPath string) error {
	dest := filepath.Join(s.stagingRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return newFileError("recycleItem", dest, err)
	}
	if err := os.Rename(path, dest); err != nil {
		return newFileError("recycleItem", path, err)
	}
	return nil
}

func (s *localRecycleSession) TryCleanup(ctx context.Context, notify func(relPath string)) error {
	err := filepath.Walk(s.stagingRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if notify != nil {
			rel, _ := filepath.Rel(s.stagingRoot, p)
			notify(rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(s.stagingRoot)
}

func (l *Local) SupportsRecycleBin(ctx context.Context, path string, refreshUI func()) (bool, error) {
	// No platform recycle-bin binding is wired (see DESIGN.md); the
	// staging-directory stand-in is always available as long as path
	// is writable.
	if refreshUI != nil {
		refreshUI()
	}
	return true, nil
}

func (l *Local) GetFreeDiskSpace(ctx context.Context, path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, newFileError("getFreeDiskSpace", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

func (l *Local) SupportPermissionCopy(ctx context.Context, leftPath, rightPath string) (bool, error) {
	return runtime.GOOS != "windows", nil
}

func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newFileError("open", path, err)
	}
	return f, nil
}

func (l *Local) IsNullPath(path string) bool {
	return path == "" || path == os.DevNull
}

func (l *Local) GetDisplayPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(abs)
}

var _ Backend = (*Local)(nil)
