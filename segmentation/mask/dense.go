package mask

// denseVolume keeps one flat array covering every voxel, sized by the
// class width.  Labels are stored little-endian when two bytes wide.
type denseVolume struct {
	volumeBase
	data []byte
}

func newDense(nx, ny, nz int32, width ClassWidth) *denseVolume {
	d := &denseVolume{}
	d.init(nx, ny, nz, width, d)
	d.data = make([]byte, d.total*int64(width))
	return d
}

func (d *denseVolume) Backend() Backend { return DenseBackend }

func (d *denseVolume) load(i int64) uint16 {
	if d.width == ClassUint8 {
		return uint16(d.data[i])
	}
	j := i << 1
	return uint16(d.data[j]) | uint16(d.data[j+1])<<8
}

func (d *denseVolume) store(i int64, v uint16) uint16 {
	if d.width == ClassUint8 {
		prev := uint16(d.data[i])
		d.data[i] = uint8(v)
		return prev
	}
	j := i << 1
	prev := uint16(d.data[j]) | uint16(d.data[j+1])<<8
	d.data[j] = uint8(v)
	d.data[j+1] = uint8(v >> 8)
	return prev
}

func (d *denseVolume) ForEachVoxelOfClass(class uint16, fn func(x, y, z int32)) {
	if d.disposed {
		return
	}
	class = d.clampClass(class)
	if d.classCounts[class] == 0 {
		return
	}
	remaining := d.classCounts[class]
	for i := int64(0); i < d.total && remaining > 0; i++ {
		if d.load(i) == class {
			fn(d.coords(i))
			remaining--
		}
	}
}

func (d *denseVolume) RemapClass(src, tgt uint16) int64 {
	if d.disposed {
		return 0
	}
	src, tgt = d.clampClass(src), d.clampClass(tgt)
	if src == tgt || d.classCounts[src] == 0 {
		return 0
	}
	remaining := d.classCounts[src]
	for i := int64(0); i < d.total && remaining > 0; i++ {
		if d.load(i) == src {
			d.store(i, tgt)
			remaining--
		}
	}
	moved := d.moveCount(src, tgt)
	d.markAllDirty()
	return moved
}

func (d *denseVolume) Clear() { d.Fill(0) }

func (d *denseVolume) Fill(class uint16) {
	if d.disposed {
		return
	}
	class = d.clampClass(class)
	if d.width == ClassUint8 {
		b := uint8(class)
		for i := range d.data {
			d.data[i] = b
		}
	} else {
		lo, hi := uint8(class), uint8(class>>8)
		for i := 0; i < len(d.data); i += 2 {
			d.data[i] = lo
			d.data[i+1] = hi
		}
	}
	d.resetCounts(class)
	d.markAllDirty()
}

func (d *denseVolume) Stats() Stats {
	return Stats{
		Backend:       DenseBackend,
		NumVoxels:     d.total,
		NonZeroVoxels: d.NonZeroVoxels(),
		StorageBytes:  int64(len(d.data)),
	}
}

func (d *denseVolume) Dispose() {
	d.data = nil
	d.classCounts = nil
	d.disposed = true
}
