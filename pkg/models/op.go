package models

// Side identifies one of the two folders in a base-folder pair.
type Side int

const (
	LeftSide Side = iota
	RightSide
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == LeftSide {
		return RightSide
	}
	return LeftSide
}

func (s Side) String() string {
	if s == LeftSide {
		return "left"
	}
	return "right"
}

// SyncOperation is the closed set of per-item sync operations the
// comparison stage may assign. The engine never invents one of these;
// it only executes what the input tree already carries.
type SyncOperation int

const (
	OpCreateNewLeft SyncOperation = iota
	OpCreateNewRight
	OpDeleteLeft
	OpDeleteRight
	OpOverwriteLeft
	OpOverwriteRight
	OpCopyMetadataToLeft
	OpCopyMetadataToRight
	OpMoveLeftFrom
	OpMoveLeftTo
	OpMoveRightFrom
	OpMoveRightTo
	OpDoNothing
	OpEqual
	OpUnresolvedConflict
)

func (op SyncOperation) String() string {
	switch op {
	case OpCreateNewLeft:
		return "CREATE_NEW_LEFT"
	case OpCreateNewRight:
		return "CREATE_NEW_RIGHT"
	case OpDeleteLeft:
		return "DELETE_LEFT"
	case OpDeleteRight:
		return "DELETE_RIGHT"
	case OpOverwriteLeft:
		return "OVERWRITE_LEFT"
	case OpOverwriteRight:
		return "OVERWRITE_RIGHT"
	case OpCopyMetadataToLeft:
		return "COPY_METADATA_TO_LEFT"
	case OpCopyMetadataToRight:
		return "COPY_METADATA_TO_RIGHT"
	case OpMoveLeftFrom:
		return "MOVE_LEFT_FROM"
	case OpMoveLeftTo:
		return "MOVE_LEFT_TO"
	case OpMoveRightFrom:
		return "MOVE_RIGHT_FROM"
	case OpMoveRightTo:
		return "MOVE_RIGHT_TO"
	case OpDoNothing:
		return "DO_NOTHING"
	case OpEqual:
		return "EQUAL"
	case OpUnresolvedConflict:
		return "UNRESOLVED_CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// TargetSide returns the side a write operation applies to. Ops with no
// natural target (DO_NOTHING, EQUAL, UNRESOLVED_CONFLICT, MOVE_*_FROM)
// return ok=false.
func (op SyncOperation) TargetSide() (side Side, ok bool) {
	switch op {
	case OpCreateNewLeft, OpDeleteLeft, OpOverwriteLeft, OpCopyMetadataToLeft, OpMoveLeftTo:
		return LeftSide, true
	case OpCreateNewRight, OpDeleteRight, OpOverwriteRight, OpCopyMetadataToRight, OpMoveRightTo:
		return RightSide, true
	default:
		return LeftSide, false
	}
}

// IsMove reports whether op is one half of a move pair.
func (op SyncOperation) IsMove() bool {
	switch op {
	case OpMoveLeftFrom, OpMoveLeftTo, OpMoveRightFrom, OpMoveRightTo:
		return true
	default:
		return false
	}
}

// IsMoveFrom reports whether op is the source half of a move pair.
func (op SyncOperation) IsMoveFrom() bool {
	return op == OpMoveLeftFrom || op == OpMoveRightFrom
}

// IsMoveTo reports whether op is the target half of a move pair.
func (op SyncOperation) IsMoveTo() bool {
	return op == OpMoveLeftTo || op == OpMoveRightTo
}

// MoveSide returns the side a move pair operates on.
func (op SyncOperation) MoveSide() (side Side, ok bool) {
	switch op {
	case OpMoveLeftFrom, OpMoveLeftTo:
		return LeftSide, true
	case OpMoveRightFrom, OpMoveRightTo:
		return RightSide, true
	default:
		return LeftSide, false
	}
}

// IsDelete reports whether op is one of the DELETE_* variants.
func (op SyncOperation) IsDelete() bool {
	return op == OpDeleteLeft || op == OpDeleteRight
}

// IsOverwrite reports whether op is one of the OVERWRITE_* variants.
func (op SyncOperation) IsOverwrite() bool {
	return op == OpOverwriteLeft || op == OpOverwriteRight
}

// IsCreate reports whether op is one of the CREATE_NEW_* variants.
func (op SyncOperation) IsCreate() bool {
	return op == OpCreateNewLeft || op == OpCreateNewRight
}

// IsCopyMetadata reports whether op is one of the COPY_METADATA_TO_* variants.
func (op SyncOperation) IsCopyMetadata() bool {
	return op == OpCopyMetadataToLeft || op == OpCopyMetadataToRight
}

// Pass identifies one of the three execution phases of a folder pair sync.
type Pass int

const (
	// PassMovePrep resolves move conflicts before any delete/create runs.
	PassMovePrep Pass = iota
	// PassOne runs deletions and shrinking overwrites.
	PassOne
	// PassTwo runs everything else (creates, growing overwrites, moves, metadata).
	PassTwo
	// PassNone marks an item that never executes (DO_NOTHING, EQUAL, UNRESOLVED_CONFLICT).
	PassNone
)

// DeletionPolicy selects how a deletion handler disposes of removed items.
type DeletionPolicy string

const (
	DeletionPermanent  DeletionPolicy = "permanent"
	DeletionRecycler   DeletionPolicy = "recycler"
	DeletionVersioning DeletionPolicy = "versioning"
)

// VersioningStyle is opaque to the engine; it is forwarded to the
// versioning backend verbatim.
type VersioningStyle string

const (
	VersioningReplace   VersioningStyle = "replace"
	VersioningTimestamp VersioningStyle = "timestamp"
)

// DirectionVariant selects the overall sync direction policy used when
// the (external) comparison stage assigns operations.
type DirectionVariant string

const (
	DirectionTwoWay     DirectionVariant = "two-way"
	DirectionMirror     DirectionVariant = "mirror"
	DirectionUpdate     DirectionVariant = "update"
	DirectionCustom     DirectionVariant = "custom"
)

// TempFileSuffix marks the engine's own reserved temp files (two-step
// move targets, in-progress transactional copies). Any item whose
// relative path ends with this suffix always bypasses recycle/versioning
// and is permanently deleted.
const TempFileSuffix = ".ffs_tmp"

// ItemType is the filesystem kind an AFS primitive reports.
type ItemType int

const (
	ItemTypeFile ItemType = iota
	ItemTypeFolder
	ItemTypeSymlink
)
