package ops

import (
	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// BrushStampOp stamps a circular brush at an in-slice center across one
// or more slices of a plane.  A drag gesture produces one stamp per
// pointer sample; stamps sharing a Key coalesce into one undo step.
type BrushStampOp struct {
	Plane  viewer.Plane
	Slices []int32

	// CenterI/CenterJ are in-slice coordinates (fast axis, slow axis).
	CenterI int32
	CenterJ int32
	Radius  int32
	Class   uint16

	Key string

	committed bool
	record    mask.UndoRecord
}

func (op *BrushStampOp) Apply(v mask.Volume) (int, error) {
	if op.committed {
		return v.ApplyLinearClass(op.record.Linear, op.Class)
	}
	nx, ny, nz := v.Dims()
	changed := 0
	for _, slice := range op.Slices {
		if slice < 0 || slice >= op.Plane.SliceBound(nx, ny, nz) {
			// Stamps extending past the first or last slice clip, same
			// as pixels clipping at the slice border.
			continue
		}
		w, h := op.Plane.SliceDims(nx, ny, nz)
		indices := diskIndices(op.CenterI, op.CenterJ, op.Radius, w, h)
		rec, err := v.WriteSliceSelection(op.Plane, slice, w, indices, op.Class)
		if err != nil {
			return changed, err
		}
		changed += rec.Len()
		op.record.Append(rec)
	}
	op.committed = true
	return changed, nil
}

func (op *BrushStampOp) Undo(v mask.Volume) (int, error) {
	if !op.committed {
		return 0, nil
	}
	return v.RestoreLinearValues(op.record.Linear, op.record.Before)
}

func (op *BrushStampOp) MergeKey() string { return op.Key }

func (op *BrushStampOp) Merge(next Op) bool {
	other, ok := next.(*BrushStampOp)
	if !ok || !op.committed || !other.committed {
		return false
	}
	if other.Key == "" || other.Key != op.Key || other.Class != op.Class {
		return false
	}
	op.record.Append(other.record)
	return true
}

// diskIndices rasterizes a filled circle of the given radius to in-slice
// pixel indices, clipped to the slice bounds.
func diskIndices(ci, cj, radius, w, h int32) []int32 {
	if radius < 0 {
		return nil
	}
	r2 := int64(radius) * int64(radius)
	indices := make([]int32, 0, (2*radius+1)*(2*radius+1))
	for j := cj - radius; j <= cj+radius; j++ {
		if j < 0 || j >= h {
			continue
		}
		dj := int64(j - cj)
		for i := ci - radius; i <= ci+radius; i++ {
			if i < 0 || i >= w {
				continue
			}
			di := int64(i - ci)
			if di*di+dj*dj <= r2 {
				indices = append(indices, j*w+i)
			}
		}
	}
	return indices
}
