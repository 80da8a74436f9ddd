package ops

import (
	"testing"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

func newTestVolume(t *testing.T, backend mask.Backend) mask.Volume {
	v, err := mask.New(8, 8, 8, mask.ClassUint16, mask.Options{Preferred: backend, ChunkEdge: 8})
	if err != nil {
		t.Fatalf("unable to create volume: %v\n", err)
	}
	return v
}

func volumeState(v mask.Volume) []uint16 {
	nx, ny, nz := v.Dims()
	state := make([]uint16, 0, v.NumVoxels())
	for z := int32(0); z < nz; z++ {
		for y := int32(0); y < ny; y++ {
			for x := int32(0); x < nx; x++ {
				state = append(state, v.GetVoxel(x, y, z))
			}
		}
	}
	return state
}

func statesEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueueApplyUndoRedo(t *testing.T) {
	for _, backend := range []mask.Backend{mask.DenseBackend, mask.SparseBackend} {
		v := newTestVolume(t, backend)
		q := NewQueue(16)

		blank := volumeState(v)
		changed, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.XY, SliceIndex: 3, Width: 8,
			Indices: []int32{0, 9, 18}, Class: 2,
		})
		if err != nil {
			t.Fatalf("%s apply failed: %v\n", backend, err)
		}
		if changed != 3 {
			t.Fatalf("%s apply changed %d voxels, expected 3\n", backend, changed)
		}
		applied := volumeState(v)

		changed, err = q.Undo(v)
		if err != nil {
			t.Fatalf("%s undo failed: %v\n", backend, err)
		}
		if changed != 3 {
			t.Errorf("%s undo changed %d voxels, expected 3\n", backend, changed)
		}
		if !statesEqual(volumeState(v), blank) {
			t.Fatalf("%s undo did not restore the blank volume\n", backend)
		}

		changed, err = q.Redo(v)
		if err != nil {
			t.Fatalf("%s redo failed: %v\n", backend, err)
		}
		if changed != 3 {
			t.Errorf("%s redo changed %d voxels, expected 3\n", backend, changed)
		}
		if !statesEqual(volumeState(v), applied) {
			t.Fatalf("%s redo did not reproduce the applied state\n", backend)
		}
	}
}

func TestQueueEmptyNoOps(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(4)
	if changed, err := q.Undo(v); changed != 0 || err != nil {
		t.Errorf("undo on empty queue returned (%d, %v)\n", changed, err)
	}
	if changed, err := q.Redo(v); changed != 0 || err != nil {
		t.Errorf("redo on empty queue returned (%d, %v)\n", changed, err)
	}
}

func TestQueueZeroChangeDrop(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(4)
	if _, err := q.Apply(v, &SliceSelectionOp{
		Plane: viewer.XY, SliceIndex: 0, Width: 8, Indices: []int32{5}, Class: 1,
	}); err != nil {
		t.Fatalf("apply failed: %v\n", err)
	}
	if _, err := q.Undo(v); err != nil {
		t.Fatalf("undo failed: %v\n", err)
	}
	if q.RedoDepth() != 1 {
		t.Fatalf("redo depth %d after undo, expected 1\n", q.RedoDepth())
	}

	// Writing class 0 over a blank region changes nothing; the pending
	// redo entry must survive a soft no-op.
	changed, err := q.Apply(v, &SliceSelectionOp{
		Plane: viewer.XY, SliceIndex: 1, Width: 8, Indices: []int32{0, 1}, Class: 0,
	})
	if err != nil {
		t.Fatalf("no-op apply failed: %v\n", err)
	}
	if changed != 0 {
		t.Errorf("no-op apply changed %d voxels\n", changed)
	}
	if q.UndoDepth() != 0 {
		t.Errorf("no-op apply pushed an undo entry\n")
	}
	if q.RedoDepth() != 1 {
		t.Errorf("no-op apply cleared the redo stack\n")
	}

	// A genuine apply does clear it.
	if _, err := q.Apply(v, &SliceSelectionOp{
		Plane: viewer.XY, SliceIndex: 1, Width: 8, Indices: []int32{0, 1}, Class: 5,
	}); err != nil {
		t.Fatalf("apply failed: %v\n", err)
	}
	if q.RedoDepth() != 0 {
		t.Errorf("genuine apply left %d redo entries\n", q.RedoDepth())
	}
}

func TestQueueDepthEviction(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(2)
	for i := int32(0); i < 3; i++ {
		if _, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.XY, SliceIndex: i, Width: 8, Indices: []int32{0}, Class: uint16(i + 1),
		}); err != nil {
			t.Fatalf("apply %d failed: %v\n", i, err)
		}
	}
	if q.UndoDepth() != 2 {
		t.Fatalf("undo depth %d with maxDepth 2, expected 2\n", q.UndoDepth())
	}
	// Only the two newest ops can be undone; the first edit survives.
	if _, err := q.Undo(v); err != nil {
		t.Fatalf("undo failed: %v\n", err)
	}
	if _, err := q.Undo(v); err != nil {
		t.Fatalf("undo failed: %v\n", err)
	}
	if changed, _ := q.Undo(v); changed != 0 {
		t.Errorf("third undo changed %d voxels past the evicted entry\n", changed)
	}
	if got := v.GetVoxel(0, 0, 0); got != 1 {
		t.Errorf("evicted edit lost: voxel (0,0,0) reads %d, expected 1\n", got)
	}
}

func TestGestureCoalescing(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(16)

	blank := volumeState(v)
	// Three strokes of one drag gesture, overlapping at pixel 9.
	strokes := [][]int32{{0, 9}, {9, 18}, {18, 27}}
	for _, indices := range strokes {
		if _, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.XY, SliceIndex: 2, Width: 8,
			Indices: indices, Class: 3, Key: "gesture-7",
		}); err != nil {
			t.Fatalf("stroke apply failed: %v\n", err)
		}
	}
	if q.UndoDepth() != 1 {
		t.Fatalf("gesture spans %d undo entries, expected 1\n", q.UndoDepth())
	}
	if _, err := q.Undo(v); err != nil {
		t.Fatalf("gesture undo failed: %v\n", err)
	}
	if !statesEqual(volumeState(v), blank) {
		t.Fatalf("gesture undo did not restore the blank volume\n")
	}

	// Different keys never coalesce.
	q.Clear()
	for i, key := range []string{"a", "b"} {
		if _, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.XY, SliceIndex: int32(i), Width: 8,
			Indices: []int32{0}, Class: 1, Key: key,
		}); err != nil {
			t.Fatalf("apply failed: %v\n", err)
		}
	}
	if q.UndoDepth() != 2 {
		t.Errorf("distinct keys coalesced: undo depth %d\n", q.UndoDepth())
	}

	// Same key, different class starts a new undo step.
	q.Clear()
	for i, class := range []uint16{4, 5} {
		if _, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.XZ, SliceIndex: int32(i), Width: 8,
			Indices: []int32{1}, Class: class, Key: "gesture-8",
		}); err != nil {
			t.Fatalf("apply failed: %v\n", err)
		}
	}
	if q.UndoDepth() != 2 {
		t.Errorf("class change coalesced: undo depth %d\n", q.UndoDepth())
	}

	// Empty keys never coalesce.
	q.Clear()
	for i := int32(0); i < 2; i++ {
		if _, err := q.Apply(v, &SliceSelectionOp{
			Plane: viewer.YZ, SliceIndex: i, Width: 8, Indices: []int32{2}, Class: 6,
		}); err != nil {
			t.Fatalf("apply failed: %v\n", err)
		}
	}
	if q.UndoDepth() != 2 {
		t.Errorf("keyless ops coalesced: undo depth %d\n", q.UndoDepth())
	}
}

func TestBrushStamp(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(16)

	changed, err := q.Apply(v, &BrushStampOp{
		Plane: viewer.XY, Slices: []int32{4},
		CenterI: 3, CenterJ: 3, Radius: 1, Class: 2, Key: "brush-1",
	})
	if err != nil {
		t.Fatalf("brush apply failed: %v\n", err)
	}
	// Radius 1 disk is a plus shape of 5 pixels.
	if changed != 5 {
		t.Fatalf("brush changed %d voxels, expected 5\n", changed)
	}
	for _, c := range [][2]int32{{3, 3}, {2, 3}, {4, 3}, {3, 2}, {3, 4}} {
		if got := v.GetVoxel(c[0], c[1], 4); got != 2 {
			t.Errorf("brush missed voxel (%d,%d,4): reads %d\n", c[0], c[1], got)
		}
	}
	if got := v.GetVoxel(2, 2, 4); got != 0 {
		t.Errorf("brush overreached corner voxel (2,2,4): reads %d\n", got)
	}

	// Out-of-range slices clip silently; in-range ones still land.
	changed, err = q.Apply(v, &BrushStampOp{
		Plane: viewer.XY, Slices: []int32{-1, 0, 99},
		CenterI: 0, CenterJ: 0, Radius: 0, Class: 2, Key: "brush-2",
	})
	if err != nil {
		t.Fatalf("clipped brush apply failed: %v\n", err)
	}
	if changed != 1 {
		t.Errorf("clipped brush changed %d voxels, expected 1\n", changed)
	}
}

func TestBrushClippedAtEdge(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(16)
	// Center outside the slice still paints the disk's in-bounds part.
	changed, err := q.Apply(v, &BrushStampOp{
		Plane: viewer.XY, Slices: []int32{0},
		CenterI: 0, CenterJ: -1, Radius: 1, Class: 1, Key: "brush-3",
	})
	if err != nil {
		t.Fatalf("edge brush apply failed: %v\n", err)
	}
	if changed != 1 {
		t.Errorf("edge brush changed %d voxels, expected 1\n", changed)
	}
	if got := v.GetVoxel(0, 0, 0); got != 1 {
		t.Errorf("edge brush missed voxel (0,0,0): reads %d\n", got)
	}
}

func TestFillOp(t *testing.T) {
	for _, backend := range []mask.Backend{mask.DenseBackend, mask.SparseBackend} {
		v := newTestVolume(t, backend)
		q := NewQueue(16)
		v.SetVoxel(1, 2, 3, 7)
		v.SetVoxel(4, 5, 6, 9)
		before := volumeState(v)

		changed, err := q.Apply(v, &FillOp{Class: 3})
		if err != nil {
			t.Fatalf("%s fill failed: %v\n", backend, err)
		}
		if changed != 512 {
			t.Errorf("%s fill changed %d voxels, expected 512\n", backend, changed)
		}
		if got := v.ClassCount(3); got != 512 {
			t.Errorf("%s fill left %d voxels of class 3\n", backend, got)
		}

		if _, err := q.Undo(v); err != nil {
			t.Fatalf("%s fill undo failed: %v\n", backend, err)
		}
		if !statesEqual(volumeState(v), before) {
			t.Fatalf("%s fill undo did not restore prior state\n", backend)
		}

		if _, err := q.Redo(v); err != nil {
			t.Fatalf("%s fill redo failed: %v\n", backend, err)
		}
		if got := v.ClassCount(3); got != 512 {
			t.Errorf("%s fill redo left %d voxels of class 3\n", backend, got)
		}
	}
}

func TestFillOpClassClamp(t *testing.T) {
	v, err := mask.New(4, 4, 4, mask.ClassUint8, mask.Options{Preferred: mask.DenseBackend})
	if err != nil {
		t.Fatalf("unable to create uint8 volume: %v\n", err)
	}
	defer v.Dispose()
	q := NewQueue(16)

	changed, err := q.Apply(v, &FillOp{Class: 300})
	if err != nil {
		t.Fatalf("over-width fill failed: %v\n", err)
	}
	if changed != 64 {
		t.Errorf("over-width fill changed %d voxels, expected 64\n", changed)
	}
	if got := v.GetVoxel(2, 2, 2); got != 255 {
		t.Errorf("over-width fill stored %d, expected clamp to 255\n", got)
	}
	if got := v.ClassCount(255); got != 64 {
		t.Errorf("over-width fill counted %d voxels of class 255\n", got)
	}

	if _, err := q.Undo(v); err != nil {
		t.Fatalf("over-width fill undo failed: %v\n", err)
	}
	if got := v.NonZeroVoxels(); got != 0 {
		t.Errorf("undo left %d non-zero voxels\n", got)
	}
}

func TestFillOpNoChange(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(16)
	changed, err := q.Apply(v, &FillOp{Class: 0})
	if err != nil {
		t.Fatalf("fill failed: %v\n", err)
	}
	if changed != 0 {
		t.Errorf("fill of blank volume with class 0 changed %d voxels\n", changed)
	}
	if q.UndoDepth() != 0 {
		t.Errorf("no-op fill pushed an undo entry\n")
	}
}

func TestRedoReplaysRecord(t *testing.T) {
	v := newTestVolume(t, mask.DenseBackend)
	q := NewQueue(16)
	op := &SliceSelectionOp{
		Plane: viewer.XY, SliceIndex: 0, Width: 8, Indices: []int32{0, 1, 2}, Class: 4,
	}
	if _, err := q.Apply(v, op); err != nil {
		t.Fatalf("apply failed: %v\n", err)
	}
	if op.Indices != nil {
		t.Errorf("committed op retained its selection indices\n")
	}
	if _, err := q.Undo(v); err != nil {
		t.Fatalf("undo failed: %v\n", err)
	}
	changed, err := q.Redo(v)
	if err != nil {
		t.Fatalf("redo failed: %v\n", err)
	}
	if changed != 3 {
		t.Errorf("redo changed %d voxels, expected 3\n", changed)
	}
}
