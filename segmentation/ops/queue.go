package ops

import (
	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// Queue is the bounded-depth undo/redo stack.  Applied ops are owned by
// the queue.  An op that changes zero voxels is never pushed, and the
// redo stack is emptied on every genuine (non-redo) apply.
type Queue struct {
	maxDepth int
	undo     []Op
	redo     []Op
}

// NewQueue creates a queue bounded to maxDepth undo entries; the oldest
// entry is evicted once the bound is exceeded.  Unbounded history is
// deliberately not supported: bulk-edit records pin real memory.
func NewQueue(maxDepth int) *Queue {
	if maxDepth <= 0 {
		maxDepth = viewer.DefaultUndoDepth
	}
	return &Queue{maxDepth: maxDepth}
}

// Apply runs op against the volume and records it for undo.  Ops whose
// merge keys match the current undo top are folded into it, so a
// continuous gesture stays a single undo step.
func (q *Queue) Apply(v mask.Volume, op Op) (int, error) {
	changed, err := op.Apply(v)
	if err != nil {
		return changed, err
	}
	if changed == 0 {
		// Soft no-op: nothing to record, history untouched.
		return 0, nil
	}
	q.redo = q.redo[:0]
	if key := op.MergeKey(); key != "" && len(q.undo) > 0 {
		top := q.undo[len(q.undo)-1]
		if top.MergeKey() == key {
			if m, ok := top.(Merger); ok {
				if _, ok := op.(Merger); ok && m.Merge(op) {
					return changed, nil
				}
			}
		}
	}
	q.undo = append(q.undo, op)
	if len(q.undo) > q.maxDepth {
		n := copy(q.undo, q.undo[1:])
		q.undo = q.undo[:n]
	}
	return changed, nil
}

// Undo reverses the most recent op.  With nothing applied it is a no-op
// returning 0 changed voxels.
func (q *Queue) Undo(v mask.Volume) (int, error) {
	if len(q.undo) == 0 {
		return 0, nil
	}
	op := q.undo[len(q.undo)-1]
	changed, err := op.Undo(v)
	if err != nil {
		return changed, err
	}
	q.undo = q.undo[:len(q.undo)-1]
	q.redo = append(q.redo, op)
	return changed, nil
}

// Redo replays the most recently undone op.  With an empty redo stack it
// is a no-op returning 0 changed voxels.
func (q *Queue) Redo(v mask.Volume) (int, error) {
	if len(q.redo) == 0 {
		return 0, nil
	}
	op := q.redo[len(q.redo)-1]
	changed, err := op.Apply(v)
	if err != nil {
		return changed, err
	}
	q.redo = q.redo[:len(q.redo)-1]
	q.undo = append(q.undo, op)
	return changed, nil
}

// Clear drops all history, e.g. after the volume is recreated or a
// snapshot restore establishes a new baseline.
func (q *Queue) Clear() {
	q.undo = nil
	q.redo = nil
}

// UndoDepth returns the number of undoable entries.
func (q *Queue) UndoDepth() int { return len(q.undo) }

// RedoDepth returns the number of redoable entries.
func (q *Queue) RedoDepth() int { return len(q.redo) }
