// Package tree implements the comparison tree the synchronization
// engine consumes: a forest of base-folder pairs whose file, symlink
// and folder items carry per-side metadata and a sync operation tag.
//
// The tree is produced by an external comparison stage (pkg/compare in
// this repository acts as that stage) and is then mutated in place by
// the engine: move conflict resolution inserts a new file item at the
// base folder's root, and post-op bookkeeping removes a side's
// metadata once it has been applied. Items are addressed by a stable
// uuid.UUID so that a move pair's mutual reference survives any of
// this mutation, matching spec.md §3/§9's "stable-address container
// keyed by item id" requirement.
package tree

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sdejongh/syncnorris/pkg/models"
)

// ItemID stably identifies one tree item across the lifetime of a sync.
type ItemID = uuid.UUID

// NewItemID mints a fresh stable identifier.
func NewItemID() ItemID {
	return uuid.New()
}

// SideMeta is the per-side metadata carried by an item. Present is
// false when the item does not exist on that side.
type SideMeta struct {
	Present         bool
	Size            int64
	ModTime         int64 // unix nanoseconds; kept as int64 to stay comparable/zero-valued cheaply
	FileID          string
	FollowedSymlink bool
}

// Clear resets the metadata to "absent".
func (m *SideMeta) Clear() {
	*m = SideMeta{}
}

type itemCommon struct {
	id       ItemID
	relPath  string
	left     SideMeta
	right    SideMeta
	op       models.SyncOperation
	moveRef  *ItemID
	parent   *FolderPair // nil only for the synthetic base-folder root
}

// ID returns the item's stable identifier.
func (c *itemCommon) ID() ItemID { return c.id }

// RelPath returns the item's path relative to the base folder.
func (c *itemCommon) RelPath() string { return c.relPath }

// Op returns the item's assigned sync operation.
func (c *itemCommon) Op() models.SyncOperation { return c.op }

// SetOp overwrites the item's sync operation (used by move-fallback and
// post-op bookkeeping).
func (c *itemCommon) SetOp(op models.SyncOperation) { c.op = op }

// Side returns a pointer to the requested side's metadata.
func (c *itemCommon) Side(s models.Side) *SideMeta {
	if s == models.LeftSide {
		return &c.left
	}
	return &c.right
}

// MoveRef returns the id of the paired move item, if any.
func (c *itemCommon) MoveRef() (ItemID, bool) {
	if c.moveRef == nil {
		return ItemID{}, false
	}
	return *c.moveRef, true
}

// SetMoveRef links this item to its move partner.
func (c *itemCommon) SetMoveRef(id ItemID) { c.moveRef = &id }

// ClearMoveRef strips the move reference, used when a move is abandoned
// in favour of ordinary copy+delete.
func (c *itemCommon) ClearMoveRef() { c.moveRef = nil }

// Parent returns the enclosing folder, or nil at the base folder root.
func (c *itemCommon) Parent() *FolderPair { return c.parent }

// IsEmptyOnBothSides reports whether neither side carries this item any
// longer, meaning it should be pruned from the tree.
func (c *itemCommon) IsEmptyOnBothSides() bool {
	return !c.left.Present && !c.right.Present
}

func baseName(relPath string) string {
	idx := strings.LastIndexByte(relPath, '/')
	if idx < 0 {
		return relPath
	}
	return relPath[idx+1:]
}

// basenameEqual implements the platform's case policy for basename
// clash detection. Matching FreeFileSync's default, comparisons are
// case-insensitive (the common case of syncing against case-insensitive
// filesystems); exact-case filesystems would compare case-sensitively,
// but this engine does not special-case that here, matching the
// teacher's single `Local` backend having no such distinction either.
func basenameEqual(a, b string) bool {
	return strings.EqualFold(baseName(a), baseName(b))
}

// FilePair is a plain-file item.
type FilePair struct{ itemCommon }

// SymlinkPair is a symbolic-link item.
type SymlinkPair struct{ itemCommon }

// FolderPair is a folder item; it owns its children.
type FolderPair struct {
	itemCommon
	Files    map[ItemID]*FilePair
	Symlinks map[ItemID]*SymlinkPair
	Folders  map[ItemID]*FolderPair
}

func newFolderPair(relPath string, parent *FolderPair) *FolderPair {
	return &FolderPair{
		itemCommon: itemCommon{id: NewItemID(), relPath: relPath, parent: parent},
		Files:      make(map[ItemID]*FilePair),
		Symlinks:   make(map[ItemID]*SymlinkPair),
		Folders:    make(map[ItemID]*FolderPair),
	}
}

// AddFile inserts a new file item as a child of this folder. This is
// the primitive two-step move uses to install its temp-named file
// without disturbing any other item's identity.
func (f *FolderPair) AddFile(relPath string) *FilePair {
	fp := &FilePair{itemCommon{id: NewItemID(), relPath: relPath, parent: f}}
	f.Files[fp.id] = fp
	return fp
}

// AddSymlink inserts a new symlink item as a child of this folder.
func (f *FolderPair) AddSymlink(relPath string) *SymlinkPair {
	sp := &SymlinkPair{itemCommon{id: NewItemID(), relPath: relPath, parent: f}}
	f.Symlinks[sp.id] = sp
	return sp
}

// AddFolder inserts a new folder item as a child of this folder.
func (f *FolderPair) AddFolder(relPath string) *FolderPair {
	child := newFolderPair(relPath, f)
	f.Folders[child.id] = child
	return child
}

// RemoveFile drops a file item from this folder's children (pruning).
func (f *FolderPair) RemoveFile(id ItemID) { delete(f.Files, id) }

// RemoveSymlink drops a symlink item from this folder's children.
func (f *FolderPair) RemoveSymlink(id ItemID) { delete(f.Symlinks, id) }

// RemoveFolder drops a folder item (and its subtree) from this folder's children.
func (f *FolderPair) RemoveFolder(id ItemID) { delete(f.Folders, id) }

// HasNameClashSymlinkOrFolder reports whether relPath's basename collides with a
// sibling symlink or folder (not file — the caller picks the sibling
// set relevant to its own item kind per spec.md §4.6.1).
func (f *FolderPair) HasNameClashSymlinkOrFolder(relPath string) bool {
	for _, s := range f.Symlinks {
		if basenameEqual(s.relPath, relPath) {
			return true
		}
	}
	for _, sub := range f.Folders {
		if basenameEqual(sub.relPath, relPath) {
			return true
		}
	}
	return false
}

// HasNameClashFileOrSymlink reports whether relPath's basename collides
// with a sibling file or symlink — used when checking a move target's
// parent folders per spec.md §4.6.1 step 4.
func (f *FolderPair) HasNameClashFileOrSymlink(relPath string) bool {
	for _, file := range f.Files {
		if basenameEqual(file.relPath, relPath) {
			return true
		}
	}
	for _, s := range f.Symlinks {
		if basenameEqual(s.relPath, relPath) {
			return true
		}
	}
	return false
}

// PruneEmpty removes any direct child whose both sides are now empty.
// Folders are pruned only when they are themselves empty on both sides
// AND contain no remaining children (their own children are pruned
// first by the caller, bottom-up).
func (f *FolderPair) PruneEmpty() {
	for id, file := range f.Files {
		if file.IsEmptyOnBothSides() {
			delete(f.Files, id)
		}
	}
	for id, s := range f.Symlinks {
		if s.IsEmptyOnBothSides() {
			delete(f.Symlinks, id)
		}
	}
	for id, sub := range f.Folders {
		sub.PruneEmpty()
		if sub.IsEmptyOnBothSides() && len(sub.Files) == 0 && len(sub.Symlinks) == 0 && len(sub.Folders) == 0 {
			delete(f.Folders, id)
		}
	}
}

// BaseFolderPair is the root of one configured sync: a left root, a
// right root, and the folder-pair configuration that governs deletion
// policy, move detection and direction.
type BaseFolderPair struct {
	FolderPair
	LeftPath  string
	RightPath string
	Config    FolderPairConfig
}

// FolderPairConfig mirrors spec.md §3's folder-pair configuration.
type FolderPairConfig struct {
	DetectMovedFiles       bool
	HandleDeletion         models.DeletionPolicy
	VersioningStyle        models.VersioningStyle
	VersioningFolderPhrase string
	DirectionVariant       models.DirectionVariant
	SaveSyncDB             bool
}

// NewBaseFolderPair creates an empty base-folder pair rooted at the
// given left/right paths.
func NewBaseFolderPair(leftPath, rightPath string, cfg FolderPairConfig) *BaseFolderPair {
	b := &BaseFolderPair{
		LeftPath:  leftPath,
		RightPath: rightPath,
		Config:    cfg,
	}
	b.FolderPair = *newFolderPair("", nil)
	return b
}

// Lookup finds the paired move item by id anywhere under base by
// walking the subtree. The engine keeps move pairs close together in
// practice (same folder or siblings after two-step promotion to the
// root), but this walk is correctness-first, not an optimization target.
func (b *BaseFolderPair) Lookup(id ItemID) (*FilePair, bool) {
	return lookupFile(&b.FolderPair, id)
}

func lookupFile(f *FolderPair, id ItemID) (*FilePair, bool) {
	if fp, ok := f.Files[id]; ok {
		return fp, true
	}
	for _, sub := range f.Folders {
		if fp, ok := lookupFile(sub, id); ok {
			return fp, true
		}
	}
	return nil, false
}
