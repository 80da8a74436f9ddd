/*
	Package store is the segmentation engine façade: it owns the mask
	volume, the undo/redo queue, and a rendered-slice cache, and provides
	tile-based snapshot persistence for the whole mask state.
*/
package store

import (
	"encoding/binary"
	"errors"

	"github.com/coocood/freecache"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/segmentation/ops"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// ErrNoVolume is returned for operations before a volume exists.
var ErrNoVolume = errors.New("no mask volume loaded; call Resize first")

// Store ties a mask volume to its edit history and slice cache.  At most
// one volume is live at a time; Resize retires the previous one.  Store
// is not safe for concurrent mutation.
type Store struct {
	cfg   viewer.Config
	vol   mask.Volume
	queue *ops.Queue
	cache *freecache.Cache
}

// New creates a store with no volume loaded.
func New(cfg viewer.Config) *Store {
	return &Store{
		cfg:   cfg,
		queue: ops.NewQueue(cfg.Ops.UndoDepth),
		cache: freecache.NewCache(cfg.Cache.SliceCacheBytes),
	}
}

// Resize replaces the volume with a fresh all-zero one of the given
// dimensions.  The previous volume is disposed and all history and
// cached slices are dropped; resize is not an undoable edit.
func (s *Store) Resize(nx, ny, nz int32, width mask.ClassWidth) error {
	v, err := mask.New(nx, ny, nz, width, mask.Options{
		DenseVoxelLimit: s.cfg.Mask.DenseVoxelLimit,
		ChunkEdge:       s.cfg.Mask.ChunkEdge,
	})
	if err != nil {
		return err
	}
	if s.vol != nil {
		s.vol.Dispose()
	}
	s.vol = v
	s.queue.Clear()
	s.cache.Clear()
	return nil
}

// Volume returns the live mask volume, or nil before the first Resize.
func (s *Store) Volume() mask.Volume { return s.vol }

// Apply runs an edit op through the undo queue.
func (s *Store) Apply(op ops.Op) (int, error) {
	if s.vol == nil {
		return 0, ErrNoVolume
	}
	return s.queue.Apply(s.vol, op)
}

// Undo reverses the most recent edit, returning the changed voxel count.
func (s *Store) Undo() (int, error) {
	if s.vol == nil {
		return 0, ErrNoVolume
	}
	return s.queue.Undo(s.vol)
}

// Redo replays the most recently undone edit.
func (s *Store) Redo() (int, error) {
	if s.vol == nil {
		return 0, ErrNoVolume
	}
	return s.queue.Redo(s.vol)
}

// ClearHistory drops all undo and redo entries.
func (s *Store) ClearHistory() { s.queue.Clear() }

// UndoDepth returns the number of undoable edits.
func (s *Store) UndoDepth() int { return s.queue.UndoDepth() }

// RedoDepth returns the number of redoable edits.
func (s *Store) RedoDepth() int { return s.queue.RedoDepth() }

// GetSlice materializes a plane slice directly from the volume.
func (s *Store) GetSlice(plane viewer.Plane, index int32, target []uint16) ([]uint16, error) {
	if s.vol == nil {
		return nil, ErrNoVolume
	}
	return s.vol.GetSlice(plane, index, target)
}

// GetSliceCached returns a plane slice, served from the cache when the
// slice has not changed since it was cached.  Bulk edits that raise the
// volume's dirty-all flag drop the entire cache.
func (s *Store) GetSliceCached(plane viewer.Plane, index int32) ([]uint16, error) {
	if s.vol == nil {
		return nil, ErrNoVolume
	}
	if s.vol.ConsumeDirtyAll() {
		s.cache.Clear()
	}
	key := sliceKey(plane, index)
	if !s.vol.ConsumeSliceDirty(plane, index) {
		if data, err := s.cache.Get(key); err == nil {
			return bytesToSlice(data), nil
		}
	}
	sl, err := s.vol.GetSlice(plane, index, nil)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(key, sliceToBytes(sl), 0); err != nil {
		// Entries above freecache's per-entry ceiling just stay uncached.
		viewer.Debugf("slice cache rejected %s slice %d: %v\n", plane, index, err)
	}
	return sl, nil
}

// Stats reports the live volume's population and storage footprint.
func (s *Store) Stats() (mask.Stats, error) {
	if s.vol == nil {
		return mask.Stats{}, ErrNoVolume
	}
	return s.vol.Stats(), nil
}

// Dispose releases the volume and drops history and cache.
func (s *Store) Dispose() {
	if s.vol != nil {
		s.vol.Dispose()
		s.vol = nil
	}
	s.queue.Clear()
	s.cache.Clear()
}

func sliceKey(plane viewer.Plane, index int32) []byte {
	key := make([]byte, 5)
	key[0] = byte(plane)
	binary.LittleEndian.PutUint32(key[1:], uint32(index))
	return key
}

func sliceToBytes(sl []uint16) []byte {
	b := make([]byte, len(sl)*2)
	for i, v := range sl {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func bytesToSlice(b []byte) []uint16 {
	sl := make([]uint16, len(b)/2)
	for i := range sl {
		sl[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return sl
}
