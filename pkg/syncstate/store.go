// Package syncstate implements the synchronous-state database the
// driver consults at the end of each folder pair's run: a per-pair
// snapshot of every item's post-sync metadata, written so that a
// future comparison pass has a record of what "in sync" last looked
// like. The storage format and atomic-write discipline follow the
// flat engine's own state file, adapted here to walk a
// pkg/tree.BaseFolderPair instead of a flat path map.
package syncstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

const stateFileVersion = 1

// FileState is one item's per-side metadata as of the snapshot.
type FileState struct {
	RelPath      string `json:"relative_path"`
	LeftPresent  bool   `json:"left_present"`
	LeftSize     int64  `json:"left_size"`
	LeftModTime  int64  `json:"left_mod_time"`
	RightPresent bool   `json:"right_present"`
	RightSize    int64  `json:"right_size"`
	RightModTime int64  `json:"right_mod_time"`
}

// Snapshot is one folder pair's persisted post-sync state.
type Snapshot struct {
	Version      int                   `json:"version"`
	LeftPath     string                `json:"left_path"`
	RightPath    string                `json:"right_path"`
	LastSyncTime time.Time             `json:"last_sync_time"`
	Files        map[string]*FileState `json:"files"`
}

// Store persists folder pair snapshots as one JSON file per pair under
// Dir, named by a hash of the pair's two base paths.
type Store struct {
	Dir string
}

// New constructs a Store rooted at dir. An empty dir defaults to
// os.UserConfigDir()/syncnorris/state, matching where the flat engine
// kept its own state file.
func New(dir string) *Store {
	if dir == "" {
		dir = defaultDir()
	}
	return &Store{Dir: dir}
}

func defaultDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir, _ = os.UserHomeDir()
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, "syncnorris", "state")
}

// Save implements the driver's saveLastSynchronousState hook: it walks
// base's tree, collects every item still present on either side, and
// writes the resulting snapshot atomically (temp file then rename).
// Callers decide whether a failure here should be anything more than
// a logged warning — Save itself never mutates base.
func (s *Store) Save(ctx context.Context, base *tree.BaseFolderPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := &Snapshot{
		Version:      stateFileVersion,
		LeftPath:     base.LeftPath,
		RightPath:    base.RightPath,
		LastSyncTime: time.Now(),
		Files:        make(map[string]*FileState),
	}
	collectFiles(&base.FolderPair, snap.Files)

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create sync state directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}

	path := s.pathFor(base.LeftPath, base.RightPath)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize sync state: %w", err)
	}
	return nil
}

// Load reads back a previously saved snapshot for the given pair,
// returning a fresh empty snapshot (not an error) if none exists yet.
func (s *Store) Load(leftPath, rightPath string) (*Snapshot, error) {
	data, err := os.ReadFile(s.pathFor(leftPath, rightPath))
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Version: stateFileVersion, LeftPath: leftPath, RightPath: rightPath, Files: make(map[string]*FileState)}, nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if snap.Files == nil {
		snap.Files = make(map[string]*FileState)
	}
	return &snap, nil
}

func collectFiles(folder *tree.FolderPair, out map[string]*FileState) {
	for _, f := range folder.Files {
		addItem(f.RelPath(), f.Side(models.LeftSide), f.Side(models.RightSide), out)
	}
	for _, sl := range folder.Symlinks {
		addItem(sl.RelPath(), sl.Side(models.LeftSide), sl.Side(models.RightSide), out)
	}
	for _, sub := range folder.Folders {
		addItem(sub.RelPath(), sub.Side(models.LeftSide), sub.Side(models.RightSide), out)
		collectFiles(sub, out)
	}
}

func addItem(relPath string, left, right *tree.SideMeta, out map[string]*FileState) {
	if !left.Present && !right.Present {
		return
	}
	out[relPath] = &FileState{
		RelPath:      relPath,
		LeftPresent:  left.Present,
		LeftSize:     left.Size,
		LeftModTime:  left.ModTime,
		RightPresent: right.Present,
		RightSize:    right.Size,
		RightModTime: right.ModTime,
	}
}

// pathFor derives this pair's state file path from a hash of its two
// base paths, the same scheme the flat engine used for its single
// state file's name.
func (s *Store) pathFor(leftPath, rightPath string) string {
	return filepath.Join(s.Dir, hashPaths(leftPath, rightPath)+".json")
}

func hashPaths(left, right string) string {
	left = filepath.Clean(left)
	right = filepath.Clean(right)

	h := uint64(14695981039346656037)
	for _, c := range left + "|" + right {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}
