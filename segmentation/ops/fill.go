package ops

import (
	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/segmentation/rle"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// FillOp sets every voxel to one class.  Its undo record is a run-length
// snapshot of the prior state rather than per-voxel arrays: a fill
// touches the whole volume, and runs keep the record proportional to the
// mask's structure instead of its voxel count.
type FillOp struct {
	Class uint16

	committed bool
	prior     rle.LabelChunk
	changed   int
}

func (op *FillOp) Apply(v mask.Volume) (int, error) {
	if op.committed {
		v.Fill(op.Class)
		return op.changed, nil
	}
	op.changed = int(v.NumVoxels() - v.ClassCount(op.Class))
	if op.changed == 0 {
		op.committed = true
		return 0, nil
	}
	op.prior = snapshotRuns(v)
	op.committed = true
	v.Fill(op.Class)
	return op.changed, nil
}

func (op *FillOp) Undo(v mask.Volume) (int, error) {
	if !op.committed || op.changed == 0 {
		return 0, nil
	}
	nx, ny, _ := v.Dims()
	changed := 0
	err := op.prior.ForEachRun(func(start, length int64, value uint16) {
		for i := start; i < start+length; i++ {
			x := int32(i % int64(nx))
			t := i / int64(nx)
			y := int32(t % int64(ny))
			z := int32(t / int64(ny))
			if v.SetVoxel(x, y, z, value) {
				changed++
			}
		}
	})
	return changed, err
}

func (op *FillOp) MergeKey() string { return "" }

// snapshotRuns encodes the volume's current labels in linear scan order.
func snapshotRuns(v mask.Volume) rle.LabelChunk {
	_, _, nz := v.Dims()
	var c rle.LabelChunk
	var cur uint16
	var run int64
	var slice []uint16
	for z := int32(0); z < nz; z++ {
		slice, _ = v.GetSlice(viewer.XY, z, slice)
		for _, val := range slice {
			if run > 0 && val == cur {
				run++
				continue
			}
			if run > 0 {
				c.Values = append(c.Values, cur)
				c.Lengths = append(c.Lengths, run)
			}
			cur = val
			run = 1
		}
	}
	if run > 0 {
		c.Values = append(c.Values, cur)
		c.Lengths = append(c.Lengths, run)
	}
	return c
}
