package compare

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/storage"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// BuildTree walks both sides of a folder pair and produces the
// comparison tree the engine consumes. This is the comparison-stage
// front end spec.md lists as an external collaborator (§1); it exists
// so the CLI has something runnable to hand the engine, not because
// the engine depends on its internals. Move detection is left to a
// future comparator pass — an undetected move surfaces as an ordinary
// create+delete pair, which the engine still executes correctly.
func BuildTree(ctx context.Context, left, right storage.Backend, leftPath, rightPath string, cfg tree.FolderPairConfig, cmp Comparator, excludes []string) (*tree.BaseFolderPair, error) {
	leftEntries, err := left.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing left side: %w", err)
	}
	rightEntries, err := right.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing right side: %w", err)
	}

	leftByPath := indexByRelPath(leftEntries)
	rightByPath := indexByRelPath(rightEntries)

	base := tree.NewBaseFolderPair(leftPath, rightPath, cfg)
	folders := map[string]*tree.FolderPair{"": &base.FolderPair}

	for _, relPath := range unionSortedPaths(leftByPath, rightByPath) {
		if shouldExclude(relPath, excludes) {
			continue
		}
		l, lok := leftByPath[relPath]
		r, rok := rightByPath[relPath]

		parentPath := filepath.ToSlash(filepath.Dir(relPath))
		if parentPath == "." {
			parentPath = ""
		}
		parent, ok := folders[parentPath]
		if !ok {
			// Parent was excluded or never listed as a directory; skip
			// its children too.
			continue
		}

		isDir := (lok && l.IsDir) || (rok && r.IsDir)
		if isDir {
			folder := parent.AddFolder(relPath)
			folders[relPath] = folder
			populateSide(folder.Side(models.LeftSide), l, lok)
			populateSide(folder.Side(models.RightSide), r, rok)
			folder.SetOp(decideOp(lok, rok, true, leftNewer(l, r), cfg.DirectionVariant))
			continue
		}

		item := parent.AddFile(relPath)
		populateSide(item.Side(models.LeftSide), l, lok)
		populateSide(item.Side(models.RightSide), r, rok)

		same := true
		if lok && rok {
			comparison, err := cmp.Compare(ctx, left, right, relPath, relPath)
			if err != nil {
				return nil, fmt.Errorf("comparing %s: %w", relPath, err)
			}
			same = comparison.Result == Same
		}
		item.SetOp(decideOp(lok, rok, same, leftNewer(l, r), cfg.DirectionVariant))
	}

	return base, nil
}

func populateSide(meta *tree.SideMeta, info storage.FileInfo, present bool) {
	meta.Present = present
	if !present {
		return
	}
	meta.Size = info.Size
	meta.ModTime = info.ModTime.UnixNano()
}

func leftNewer(l, r storage.FileInfo) bool {
	return l.ModTime.After(r.ModTime)
}

// decideOp applies a FreeFileSync-style direction policy to one item's
// presence/content state. It is deliberately simple: the real
// comparison/conflict-detection logic spec.md excludes as out of scope
// (§1 Non-goals) lives upstream of this front end in a real deployment.
func decideOp(leftPresent, rightPresent, contentEqual, leftIsNewer bool, variant models.DirectionVariant) models.SyncOperation {
	switch {
	case leftPresent && rightPresent:
		if contentEqual {
			return models.OpEqual
		}
		switch variant {
		case models.DirectionMirror:
			return models.OpOverwriteRight
		case models.DirectionUpdate:
			if leftIsNewer {
				return models.OpOverwriteRight
			}
			return models.OpDoNothing
		case models.DirectionTwoWay:
			if leftIsNewer {
				return models.OpOverwriteRight
			}
			return models.OpOverwriteLeft
		default: // custom and anything unrecognized: flag for manual resolution
			return models.OpUnresolvedConflict
		}
	case leftPresent:
		switch variant {
		case models.DirectionCustom:
			return models.OpUnresolvedConflict
		default:
			return models.OpCreateNewRight
		}
	case rightPresent:
		switch variant {
		case models.DirectionMirror:
			return models.OpDeleteRight
		case models.DirectionUpdate:
			return models.OpDoNothing
		case models.DirectionTwoWay:
			return models.OpCreateNewLeft
		default:
			return models.OpUnresolvedConflict
		}
	default:
		return models.OpDoNothing
	}
}

func indexByRelPath(entries []storage.FileInfo) map[string]storage.FileInfo {
	out := make(map[string]storage.FileInfo, len(entries))
	for _, e := range entries {
		rel := filepath.ToSlash(e.RelativePath)
		if rel == "." {
			continue
		}
		out[rel] = e
	}
	return out
}

func unionSortedPaths(a, b map[string]storage.FileInfo) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	paths := make([]string, 0, len(a)+len(b))
	for p := range a {
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	for p := range b {
		if _, ok := seen[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
