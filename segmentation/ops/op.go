/*
	Package ops implements reversible mask edits and the bounded-depth
	undo/redo queue that owns them.  An op captures enough state on its
	first apply to redo and undo without recomputation: bulk edits keep
	the compact linear-index/previous-value record returned by the mask
	volume, never one object per voxel.
*/
package ops

import (
	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
)

// Op is a reversible segmentation edit.  The first Apply mutates the
// volume and snapshots undo data; later applies (redo) replay the stored
// record rather than recomputing the original selection, since async
// selections are not bit-reproducible.
type Op interface {
	// Apply performs or replays the edit and returns the number of
	// voxels that changed.
	Apply(v mask.Volume) (int, error)

	// Undo replays the inverse record.  Writes matching the target voxel
	// are skipped, so undo is idempotent and causes no count churn.
	Undo(v mask.Volume) (int, error)

	// MergeKey tags ops belonging to one continuous gesture.  Ops with
	// an empty key never coalesce.
	MergeKey() string
}

// Merger is implemented by ops that can fold a later op from the same
// gesture into themselves, keeping one undo step per gesture.
type Merger interface {
	Merge(next Op) bool
}
