/*
	Package mask implements per-voxel classification label storage for the
	segmentation engine.  Two interchangeable backends cover the memory
	spectrum: a dense flat array for volumes that fit the configured voxel
	ceiling, and a sparse chunked map for larger datasets where most
	voxels hold the fill value.  Both backends maintain live per-class
	population counts and per-slice dirty tracking on every mutation.
*/
package mask

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// ClassWidth is the storage width of a class label.
type ClassWidth uint8

const (
	// ClassUint8 stores labels in one byte, max class id 255.
	ClassUint8 ClassWidth = 1

	// ClassUint16 stores labels in two bytes, max class id 65535.
	ClassUint16 ClassWidth = 2
)

// MaxClass returns the largest class id representable at this width.
func (w ClassWidth) MaxClass() uint16 {
	if w == ClassUint8 {
		return 0xff
	}
	return 0xffff
}

func (w ClassWidth) String() string {
	if w == ClassUint8 {
		return "uint8"
	}
	return "uint16"
}

// ClassWidthFromString parses the snapshot encoding of a class width.
func ClassWidthFromString(s string) (ClassWidth, error) {
	switch s {
	case "uint8":
		return ClassUint8, nil
	case "uint16":
		return ClassUint16, nil
	}
	return 0, fmt.Errorf("unknown class data type %q", s)
}

// Backend selects the storage strategy for a mask volume.
type Backend uint8

const (
	// AutoBackend picks dense or sparse from the volume's voxel count.
	AutoBackend Backend = iota

	// DenseBackend is one flat array covering every voxel.
	DenseBackend

	// SparseBackend maps chunk coordinates to fixed-size chunk arrays;
	// unallocated chunks implicitly hold the fill value.
	SparseBackend
)

func (b Backend) String() string {
	switch b {
	case DenseBackend:
		return "dense"
	case SparseBackend:
		return "sparse"
	default:
		return "auto"
	}
}

// Sparse chunk edges outside this range are rejected.
const (
	MinChunkEdge = int32(8)
	MaxChunkEdge = int32(128)
)

// Options tunes backend selection at construction.  The zero value uses
// the package defaults from viewer.DefaultConfig.
type Options struct {
	// Preferred forces a backend; AutoBackend selects by voxel count.
	Preferred Backend

	// DenseVoxelLimit is the largest volume kept dense under AutoBackend.
	DenseVoxelLimit int64

	// ChunkEdge is the sparse backend's cubic chunk edge.
	ChunkEdge int32
}

// UndoRecord is the compact inverse of a bulk write: parallel arrays of
// flat linear voxel index and previous label, only for voxels that
// actually changed.  Bulk selections can cover hundreds of thousands of
// voxels, so the record deliberately never holds one object per voxel.
type UndoRecord struct {
	Linear []int64
	Before []uint16
}

// Len returns the number of changed voxels recorded.
func (r UndoRecord) Len() int { return len(r.Linear) }

// Append folds another record onto this one.  Replay order is preserved:
// RestoreLinearValues walks records newest-first, so appending a later
// gesture segment keeps undo exact even when the segments overlap.
func (r *UndoRecord) Append(other UndoRecord) {
	r.Linear = append(r.Linear, other.Linear...)
	r.Before = append(r.Before, other.Before...)
}

// Stats reports a volume's population and storage footprint.
type Stats struct {
	Backend         Backend
	NumVoxels       int64
	NonZeroVoxels   int64
	AllocatedChunks int
	StorageBytes    int64
}

func (s Stats) String() string {
	if s.Backend == SparseBackend {
		return fmt.Sprintf("sparse mask: %s voxels, %s non-zero, %d chunks, %s",
			humanize.Comma(s.NumVoxels), humanize.Comma(s.NonZeroVoxels),
			s.AllocatedChunks, humanize.Bytes(uint64(s.StorageBytes)))
	}
	return fmt.Sprintf("dense mask: %s voxels, %s non-zero, %s",
		humanize.Comma(s.NumVoxels), humanize.Comma(s.NonZeroVoxels),
		humanize.Bytes(uint64(s.StorageBytes)))
}

// Volume is per-voxel label storage over a fixed-dimension 3d dataset.
// Implementations are not safe for concurrent mutation; the host
// serializes one editing gesture at a time.
type Volume interface {
	// Dims returns the fixed construction dimensions.
	Dims() (nx, ny, nz int32)

	// NumVoxels returns nx*ny*nz.
	NumVoxels() int64

	ClassWidth() ClassWidth
	Backend() Backend

	// GetVoxel returns the label at (x,y,z), or 0 out of bounds.
	GetVoxel(x, y, z int32) uint16

	// SetVoxel writes a label, clamped to the class width's maximum.
	// Out of bounds is a no-op.  Returns true only if the value changed.
	SetVoxel(x, y, z int32, class uint16) bool

	// ClassCount returns the live population of a class.
	ClassCount(class uint16) int64

	// NonZeroVoxels returns the population of all classes except 0.
	NonZeroVoxels() int64

	// ForEachVoxelOfClass enumerates every voxel holding the class.
	ForEachVoxelOfClass(class uint16, fn func(x, y, z int32))

	// RemapClass relabels every src voxel to tgt and returns the number
	// moved.  Sparse volumes do this in O(allocated storage).
	RemapClass(src, tgt uint16) int64

	// WriteSliceSelection writes class to each in-slice pixel index
	// (x = idx%width, y = idx/width) of the given plane slice, silently
	// skipping out-of-bounds pixels, and returns the compact undo record
	// of voxels that actually changed.
	WriteSliceSelection(plane viewer.Plane, sliceIndex, width int32, indices []int32, class uint16) (UndoRecord, error)

	// ApplyLinearClass writes class at each linear index, skipping voxels
	// already holding it, and returns the changed count.  Used to replay
	// a recorded bulk edit.
	ApplyLinearClass(linear []int64, class uint16) (int, error)

	// RestoreLinearValues writes each recorded previous value back,
	// newest-first, skipping voxels already matching.  The exact inverse
	// of a recorded bulk write.
	RestoreLinearValues(linear []int64, before []uint16) (int, error)

	// GetSlice materializes a row-major 2d plane, reusing target when its
	// length matches, and clears that slice's dirty flag.
	GetSlice(plane viewer.Plane, index int32, target []uint16) ([]uint16, error)

	// Clear resets every voxel to 0.
	Clear()

	// Fill sets every voxel to class.
	Fill(class uint16)

	// ConsumeSliceDirty reports whether a slice changed since it was last
	// consumed, clearing its per-slice flag.  It reports true for every
	// slice while the global dirty-all flag is raised.
	ConsumeSliceDirty(plane viewer.Plane, index int32) bool

	// ConsumeDirtyAll reports and clears the global dirty-all flag.
	ConsumeDirtyAll() bool

	Stats() Stats

	// Dispose releases backing storage.  All later operations fail with
	// ErrDisposed or are no-ops.
	Dispose()
	Disposed() bool
}

// New creates a mask volume, choosing dense or sparse storage by the
// volume's voxel count unless opts forces a backend.
func New(nx, ny, nz int32, width ClassWidth, opts Options) (Volume, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid mask volume dimensions (%d, %d, %d)", nx, ny, nz)
	}
	if width != ClassUint8 && width != ClassUint16 {
		return nil, fmt.Errorf("invalid class width %d", width)
	}
	limit := opts.DenseVoxelLimit
	if limit <= 0 {
		limit = viewer.DefaultDenseVoxelLimit
	}
	edge := opts.ChunkEdge
	if edge == 0 {
		edge = viewer.DefaultChunkEdge
	}
	if edge < MinChunkEdge || edge > MaxChunkEdge {
		return nil, fmt.Errorf("sparse chunk edge %d outside [%d, %d]", edge, MinChunkEdge, MaxChunkEdge)
	}

	total := int64(nx) * int64(ny) * int64(nz)
	backend := opts.Preferred
	if backend == AutoBackend {
		if total <= limit {
			backend = DenseBackend
		} else {
			backend = SparseBackend
		}
	}

	var v Volume
	switch backend {
	case DenseBackend:
		v = newDense(nx, ny, nz, width)
	case SparseBackend:
		v = newSparse(nx, ny, nz, width, edge)
	default:
		return nil, fmt.Errorf("invalid mask backend %d", backend)
	}
	viewer.Debugf("Created %s mask volume %d x %d x %d (%s labels)\n", backend, nx, ny, nz, width)
	return v, nil
}
