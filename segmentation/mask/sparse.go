package mask

// chunkKey addresses a cubic chunk in the sparse backend's map.
type chunkKey struct {
	cx, cy, cz int32
}

// sparseVolume maps chunk coordinates to fixed-size chunk arrays.  A
// chunk is allocated on the first differing write inside it; voxels not
// covered by an allocated chunk implicitly hold fillValue.  Clear and
// Fill drop the whole map and flip fillValue, which is what keeps bulk
// resets O(1) amortized.
type sparseVolume struct {
	volumeBase
	edge       int32
	chunkBytes int64
	chunks     map[chunkKey][]byte
	fillValue  uint16
}

func newSparse(nx, ny, nz int32, width ClassWidth, edge int32) *sparseVolume {
	s := &sparseVolume{
		edge:   edge,
		chunks: make(map[chunkKey][]byte),
	}
	s.init(nx, ny, nz, width, s)
	s.chunkBytes = int64(edge) * int64(edge) * int64(edge) * int64(width)
	return s
}

func (s *sparseVolume) Backend() Backend { return SparseBackend }

// chunkOffset returns the chunk key and the byte offset of (x,y,z)
// within that chunk's data.
func (s *sparseVolume) chunkOffset(x, y, z int32) (chunkKey, int64) {
	cx, cy, cz := x/s.edge, y/s.edge, z/s.edge
	lx := int64(x - cx*s.edge)
	ly := int64(y - cy*s.edge)
	lz := int64(z - cz*s.edge)
	e := int64(s.edge)
	off := ((lz*e)+ly)*e + lx
	return chunkKey{cx, cy, cz}, off * int64(s.width)
}

func (s *sparseVolume) loadChunk(data []byte, off int64) uint16 {
	if s.width == ClassUint8 {
		return uint16(data[off])
	}
	return uint16(data[off]) | uint16(data[off+1])<<8
}

func (s *sparseVolume) storeChunk(data []byte, off int64, v uint16) {
	if s.width == ClassUint8 {
		data[off] = uint8(v)
		return
	}
	data[off] = uint8(v)
	data[off+1] = uint8(v >> 8)
}

func (s *sparseVolume) load(i int64) uint16 {
	x, y, z := s.coords(i)
	key, off := s.chunkOffset(x, y, z)
	data, found := s.chunks[key]
	if !found {
		return s.fillValue
	}
	return s.loadChunk(data, off)
}

func (s *sparseVolume) store(i int64, v uint16) uint16 {
	x, y, z := s.coords(i)
	key, off := s.chunkOffset(x, y, z)
	data, found := s.chunks[key]
	if !found {
		if v == s.fillValue {
			return s.fillValue
		}
		data = s.newChunk()
		s.chunks[key] = data
	}
	prev := s.loadChunk(data, off)
	s.storeChunk(data, off, v)
	return prev
}

func (s *sparseVolume) newChunk() []byte {
	data := make([]byte, s.chunkBytes)
	if s.fillValue != 0 {
		if s.width == ClassUint8 {
			b := uint8(s.fillValue)
			for i := range data {
				data[i] = b
			}
		} else {
			lo, hi := uint8(s.fillValue), uint8(s.fillValue>>8)
			for i := 0; i < len(data); i += 2 {
				data[i] = lo
				data[i+1] = hi
			}
		}
	}
	return data
}

// forEachChunkRegion visits every chunk-grid cell, handing fn the key and
// the in-bounds voxel extents it covers.
func (s *sparseVolume) forEachChunkRegion(fn func(key chunkKey, x0, x1, y0, y1, z0, z1 int32)) {
	for cz := int32(0); cz*s.edge < s.nz; cz++ {
		z0, z1 := cz*s.edge, (cz+1)*s.edge
		if z1 > s.nz {
			z1 = s.nz
		}
		for cy := int32(0); cy*s.edge < s.ny; cy++ {
			y0, y1 := cy*s.edge, (cy+1)*s.edge
			if y1 > s.ny {
				y1 = s.ny
			}
			for cx := int32(0); cx*s.edge < s.nx; cx++ {
				x0, x1 := cx*s.edge, (cx+1)*s.edge
				if x1 > s.nx {
					x1 = s.nx
				}
				fn(chunkKey{cx, cy, cz}, x0, x1, y0, y1, z0, z1)
			}
		}
	}
}

func (s *sparseVolume) ForEachVoxelOfClass(class uint16, fn func(x, y, z int32)) {
	if s.disposed {
		return
	}
	class = s.clampClass(class)
	if s.classCounts[class] == 0 {
		return
	}
	// When fillValue matches the requested class, unallocated chunk
	// regions hold it implicitly and must be walked too.  That degrades
	// to a full-volume scan; fillValue != 0 only arises from Fill, so
	// the slow path is accepted.
	visitImplicit := s.fillValue == class
	s.forEachChunkRegion(func(key chunkKey, x0, x1, y0, y1, z0, z1 int32) {
		data, found := s.chunks[key]
		if !found {
			if !visitImplicit {
				return
			}
			for z := z0; z < z1; z++ {
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						fn(x, y, z)
					}
				}
			}
			return
		}
		for z := z0; z < z1; z++ {
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					_, off := s.chunkOffset(x, y, z)
					if s.loadChunk(data, off) == class {
						fn(x, y, z)
					}
				}
			}
		}
	})
}

func (s *sparseVolume) RemapClass(src, tgt uint16) int64 {
	if s.disposed {
		return 0
	}
	src, tgt = s.clampClass(src), s.clampClass(tgt)
	if src == tgt || s.classCounts[src] == 0 {
		return 0
	}
	// O(allocated storage): rewrite stored chunk data, then flip the
	// fill value to cover every implicit voxel in O(1).
	stride := int64(s.width)
	for _, data := range s.chunks {
		for off := int64(0); off < int64(len(data)); off += stride {
			if s.loadChunk(data, off) == src {
				s.storeChunk(data, off, tgt)
			}
		}
	}
	if s.fillValue == src {
		s.fillValue = tgt
	}
	moved := s.moveCount(src, tgt)
	s.markAllDirty()
	return moved
}

func (s *sparseVolume) Clear() { s.Fill(0) }

func (s *sparseVolume) Fill(class uint16) {
	if s.disposed {
		return
	}
	class = s.clampClass(class)
	s.chunks = make(map[chunkKey][]byte)
	s.fillValue = class
	s.resetCounts(class)
	s.markAllDirty()
}

func (s *sparseVolume) Stats() Stats {
	return Stats{
		Backend:         SparseBackend,
		NumVoxels:       s.total,
		NonZeroVoxels:   s.NonZeroVoxels(),
		AllocatedChunks: len(s.chunks),
		StorageBytes:    int64(len(s.chunks)) * s.chunkBytes,
	}
}

func (s *sparseVolume) Dispose() {
	s.chunks = nil
	s.classCounts = nil
	s.disposed = true
}
