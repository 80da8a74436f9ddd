package ops

import (
	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// SliceSelectionOp applies a flat selection of in-slice pixel indices
// (from threshold, region growing, or AI-assisted selection) to one
// plane slice.  This is the bulk-edit hot path.
type SliceSelectionOp struct {
	Plane      viewer.Plane
	SliceIndex int32
	Width      int32
	Indices    []int32
	Class      uint16

	// Key tags the owning gesture for undo coalescing.
	Key string

	committed bool
	record    mask.UndoRecord
}

func (op *SliceSelectionOp) Apply(v mask.Volume) (int, error) {
	if op.committed {
		return v.ApplyLinearClass(op.record.Linear, op.Class)
	}
	record, err := v.WriteSliceSelection(op.Plane, op.SliceIndex, op.Width, op.Indices, op.Class)
	if err != nil {
		return 0, err
	}
	op.record = record
	op.committed = true
	// The selection itself is no longer needed once the compact record
	// exists; redo replays the record.
	op.Indices = nil
	return record.Len(), nil
}

func (op *SliceSelectionOp) Undo(v mask.Volume) (int, error) {
	if !op.committed {
		return 0, nil
	}
	return v.RestoreLinearValues(op.record.Linear, op.record.Before)
}

func (op *SliceSelectionOp) MergeKey() string { return op.Key }

// Merge folds a later committed selection from the same gesture into
// this op's record.
func (op *SliceSelectionOp) Merge(next Op) bool {
	other, ok := next.(*SliceSelectionOp)
	if !ok || !op.committed || !other.committed {
		return false
	}
	if other.Key == "" || other.Key != op.Key || other.Class != op.Class {
		return false
	}
	op.record.Append(other.record)
	return true
}
