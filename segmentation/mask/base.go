package mask

import (
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// linearStore is the raw voxel accessor each backend supplies to the
// shared bookkeeping layer.  Neither method touches counts or dirty
// state; store returns the previous value.
type linearStore interface {
	load(i int64) uint16
	store(i int64, v uint16) uint16
}

// volumeBase carries the state and behavior common to both backends:
// dimensions, live class counts, dirty tracking, and every operation
// expressible through linearStore.  Backends embed it and implement the
// storage-dependent remainder.
type volumeBase struct {
	nx, ny, nz int32
	total      int64
	width      ClassWidth
	maxClass   uint16

	vox linearStore

	// classCounts[c] == |{voxels == c}| at all times; the sum over all
	// classes equals total.
	classCounts []int64

	// Per-plane sets of touched slice indices.  Bulk operations raise
	// dirtyAll instead of touching the sets.
	dirtySlices [3]map[int32]struct{}
	dirtyAll    bool

	disposed bool
}

func (b *volumeBase) init(nx, ny, nz int32, width ClassWidth, vox linearStore) {
	b.nx, b.ny, b.nz = nx, ny, nz
	b.total = int64(nx) * int64(ny) * int64(nz)
	b.width = width
	b.maxClass = width.MaxClass()
	b.vox = vox
	b.classCounts = make([]int64, int(b.maxClass)+1)
	b.classCounts[0] = b.total
	for i := range b.dirtySlices {
		b.dirtySlices[i] = make(map[int32]struct{})
	}
}

func (b *volumeBase) Dims() (int32, int32, int32) { return b.nx, b.ny, b.nz }
func (b *volumeBase) NumVoxels() int64            { return b.total }
func (b *volumeBase) ClassWidth() ClassWidth      { return b.width }
func (b *volumeBase) Disposed() bool              { return b.disposed }

func (b *volumeBase) inBounds(x, y, z int32) bool {
	return x >= 0 && x < b.nx && y >= 0 && y < b.ny && z >= 0 && z < b.nz
}

// linearIndex flattens (x,y,z) with x fastest, z slowest.
func (b *volumeBase) linearIndex(x, y, z int32) int64 {
	return int64(x) + int64(b.nx)*(int64(y)+int64(b.ny)*int64(z))
}

func (b *volumeBase) coords(i int64) (x, y, z int32) {
	x = int32(i % int64(b.nx))
	t := i / int64(b.nx)
	y = int32(t % int64(b.ny))
	z = int32(t / int64(b.ny))
	return
}

func (b *volumeBase) clampClass(class uint16) uint16 {
	if class > b.maxClass {
		return b.maxClass
	}
	return class
}

func (b *volumeBase) ClassCount(class uint16) int64 {
	if b.disposed {
		return 0
	}
	// Writes clamp over-width classes, so the clamped count is the one
	// such a class actually occupies.
	return b.classCounts[b.clampClass(class)]
}

func (b *volumeBase) NonZeroVoxels() int64 {
	if b.disposed {
		return 0
	}
	return b.total - b.classCounts[0]
}

// --- dirty tracking ---

func (b *volumeBase) markVoxelDirty(x, y, z int32) {
	if b.dirtyAll {
		return
	}
	b.dirtySlices[viewer.XY][z] = struct{}{}
	b.dirtySlices[viewer.XZ][y] = struct{}{}
	b.dirtySlices[viewer.YZ][x] = struct{}{}
}

func (b *volumeBase) markAllDirty() {
	b.dirtyAll = true
	for i := range b.dirtySlices {
		b.dirtySlices[i] = make(map[int32]struct{})
	}
}

func (b *volumeBase) ConsumeSliceDirty(plane viewer.Plane, index int32) bool {
	if b.disposed {
		return false
	}
	if b.dirtyAll {
		return true
	}
	if _, found := b.dirtySlices[plane][index]; found {
		delete(b.dirtySlices[plane], index)
		return true
	}
	return false
}

func (b *volumeBase) ConsumeDirtyAll() bool {
	dirty := b.dirtyAll
	b.dirtyAll = false
	return dirty
}

// --- voxel mutation ---

func (b *volumeBase) GetVoxel(x, y, z int32) uint16 {
	if b.disposed || !b.inBounds(x, y, z) {
		return 0
	}
	return b.vox.load(b.linearIndex(x, y, z))
}

func (b *volumeBase) SetVoxel(x, y, z int32, class uint16) bool {
	if b.disposed || !b.inBounds(x, y, z) {
		return false
	}
	class = b.clampClass(class)
	i := b.linearIndex(x, y, z)
	prev := b.vox.load(i)
	if prev == class {
		return false
	}
	b.vox.store(i, class)
	b.classCounts[prev]--
	b.classCounts[class]++
	b.markVoxelDirty(x, y, z)
	return true
}

// resetCounts rebuilds the population as if every voxel held class.
func (b *volumeBase) resetCounts(class uint16) {
	for i := range b.classCounts {
		b.classCounts[i] = 0
	}
	b.classCounts[class] = b.total
}

// moveCount shifts the entire src population onto tgt.
func (b *volumeBase) moveCount(src, tgt uint16) int64 {
	moved := b.classCounts[src]
	if src == tgt || moved == 0 {
		return 0
	}
	b.classCounts[tgt] += moved
	b.classCounts[src] = 0
	return moved
}

// --- bulk operations ---

func (b *volumeBase) sliceBoundsCheck(plane viewer.Plane, index int32) error {
	if b.disposed {
		return ErrDisposed
	}
	bound := plane.SliceBound(b.nx, b.ny, b.nz)
	if index < 0 || index >= bound {
		return SliceIndexError{Plane: plane, Index: index, Bound: bound}
	}
	return nil
}

func (b *volumeBase) WriteSliceSelection(plane viewer.Plane, sliceIndex, width int32, indices []int32, class uint16) (UndoRecord, error) {
	var record UndoRecord
	if err := b.sliceBoundsCheck(plane, sliceIndex); err != nil {
		return record, err
	}
	if width <= 0 {
		return record, nil
	}
	class = b.clampClass(class)
	for _, idx := range indices {
		if idx < 0 {
			continue
		}
		px := idx % width
		py := idx / width
		x, y, z := plane.VoxelCoord(px, py, sliceIndex)
		if !b.inBounds(x, y, z) {
			// Partially out-of-bounds selections are expected from
			// brush-sized kernels near edges; skip silently.
			continue
		}
		i := b.linearIndex(x, y, z)
		prev := b.vox.load(i)
		if prev == class {
			continue
		}
		b.vox.store(i, class)
		b.classCounts[prev]--
		b.classCounts[class]++
		b.markVoxelDirty(x, y, z)
		record.Linear = append(record.Linear, i)
		record.Before = append(record.Before, prev)
	}
	return record, nil
}

func (b *volumeBase) ApplyLinearClass(linear []int64, class uint16) (int, error) {
	if b.disposed {
		return 0, ErrDisposed
	}
	class = b.clampClass(class)
	changed := 0
	for _, i := range linear {
		if i < 0 || i >= b.total {
			return changed, LinearIndexError{Index: i, Bound: b.total}
		}
		prev := b.vox.load(i)
		if prev == class {
			continue
		}
		b.vox.store(i, class)
		b.classCounts[prev]--
		b.classCounts[class]++
		b.markVoxelDirty(b.coords(i))
		changed++
	}
	return changed, nil
}

func (b *volumeBase) RestoreLinearValues(linear []int64, before []uint16) (int, error) {
	if b.disposed {
		return 0, ErrDisposed
	}
	if len(linear) != len(before) {
		return 0, RestoreLengthError{NumIndices: len(linear), NumValues: len(before)}
	}
	changed := 0
	// Newest-first replay: merged gesture records can touch a voxel more
	// than once, and only reverse order restores the oldest value last.
	for k := len(linear) - 1; k >= 0; k-- {
		i := linear[k]
		if i < 0 || i >= b.total {
			return changed, LinearIndexError{Index: i, Bound: b.total}
		}
		v := before[k]
		prev := b.vox.load(i)
		if prev == v {
			continue
		}
		b.vox.store(i, v)
		b.classCounts[prev]--
		b.classCounts[v]++
		b.markVoxelDirty(b.coords(i))
		changed++
	}
	return changed, nil
}

func (b *volumeBase) GetSlice(plane viewer.Plane, index int32, target []uint16) ([]uint16, error) {
	if err := b.sliceBoundsCheck(plane, index); err != nil {
		return nil, err
	}
	w, h := plane.SliceDims(b.nx, b.ny, b.nz)
	n := int(w) * int(h)
	out := target
	if len(out) != n {
		out = make([]uint16, n)
	}
	pos := 0
	for j := int32(0); j < h; j++ {
		for i := int32(0); i < w; i++ {
			x, y, z := plane.VoxelCoord(i, j, index)
			out[pos] = b.vox.load(b.linearIndex(x, y, z))
			pos++
		}
	}
	delete(b.dirtySlices[plane], index)
	return out, nil
}
