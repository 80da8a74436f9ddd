package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/mask"
	"github.com/RioBao/CTViewerV2-sub000/segmentation/rle"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// SnapshotFormat identifies the tile-based snapshot layout.  Readers
// must reject any other format string.
const SnapshotFormat = "viewer-segmentation-tiles-v1"

// DefaultTileEdge is the cubic tile edge used when building snapshots.
const DefaultTileEdge = int32(64)

// Tile is one cubic region of the snapshot.  Voxels are run-length
// encoded in x-fastest order within the tile's clipped extents.
// All-zero tiles are omitted from the snapshot entirely.
type Tile struct {
	// Origin is the tile's minimum voxel coordinate.
	Origin [3]int32 `json:"origin"`

	// Size is the tile's extent, clipped at the volume boundary.
	Size [3]int32 `json:"size"`

	Data rle.LabelChunk `json:"data"`
}

// Snapshot is a complete serializable capture of a mask volume.
type Snapshot struct {
	ID            uuid.UUID `json:"id"`
	Created       time.Time `json:"created"`
	Format        string    `json:"format"`
	Dimensions    [3]int32  `json:"dimensions"`
	ClassDataType string    `json:"class_data_type"`
	TileEdge      int32     `json:"tile_edge"`
	Tiles         []Tile    `json:"tiles"`
}

// Snapshot captures the live volume as a tile snapshot.  A tileEdge of
// zero or less uses DefaultTileEdge.
func (s *Store) Snapshot(tileEdge int32) (*Snapshot, error) {
	if s.vol == nil {
		return nil, ErrNoVolume
	}
	if tileEdge <= 0 {
		tileEdge = DefaultTileEdge
	}
	nx, ny, nz := s.vol.Dims()
	snap := &Snapshot{
		ID:            uuid.New(),
		Created:       time.Now().UTC(),
		Format:        SnapshotFormat,
		Dimensions:    [3]int32{nx, ny, nz},
		ClassDataType: s.vol.ClassWidth().String(),
		TileEdge:      tileEdge,
	}

	var values []uint16
	for z0 := int32(0); z0 < nz; z0 += tileEdge {
		for y0 := int32(0); y0 < ny; y0 += tileEdge {
			for x0 := int32(0); x0 < nx; x0 += tileEdge {
				sx := minInt32(tileEdge, nx-x0)
				sy := minInt32(tileEdge, ny-y0)
				sz := minInt32(tileEdge, nz-z0)
				n := int(sx) * int(sy) * int(sz)
				if cap(values) < n {
					values = make([]uint16, n)
				}
				values = values[:n]
				allZero := true
				pos := 0
				for z := z0; z < z0+sz; z++ {
					for y := y0; y < y0+sy; y++ {
						for x := x0; x < x0+sx; x++ {
							v := s.vol.GetVoxel(x, y, z)
							values[pos] = v
							if v != 0 {
								allZero = false
							}
							pos++
						}
					}
				}
				if allZero {
					continue
				}
				snap.Tiles = append(snap.Tiles, Tile{
					Origin: [3]int32{x0, y0, z0},
					Size:   [3]int32{sx, sy, sz},
					Data:   rle.EncodeLabelValues(values),
				})
			}
		}
	}

	viewer.Infof("Captured snapshot %s: %d x %d x %d, %d non-empty tiles\n",
		snap.ID, nx, ny, nz, len(snap.Tiles))
	return snap, nil
}

// Restore replaces the volume's contents with a snapshot's.  The volume
// is recreated at the snapshot's dimensions and class width, so all edit
// history and cached slices are dropped; restore establishes a new
// baseline rather than an undoable edit.
func (s *Store) Restore(snap *Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	width, err := mask.ClassWidthFromString(snap.ClassDataType)
	if err != nil {
		return err
	}
	if err := s.Resize(snap.Dimensions[0], snap.Dimensions[1], snap.Dimensions[2], width); err != nil {
		return err
	}
	for ti := range snap.Tiles {
		t := &snap.Tiles[ti]
		values, err := t.Data.Decode()
		if err != nil {
			return fmt.Errorf("tile %d at %v: %v", ti, t.Origin, err)
		}
		pos := 0
		for z := t.Origin[2]; z < t.Origin[2]+t.Size[2]; z++ {
			for y := t.Origin[1]; y < t.Origin[1]+t.Size[1]; y++ {
				for x := t.Origin[0]; x < t.Origin[0]+t.Size[0]; x++ {
					if v := values[pos]; v != 0 {
						s.vol.SetVoxel(x, y, z, v)
					}
					pos++
				}
			}
		}
	}
	viewer.Infof("Restored snapshot %s: %d tiles into %d x %d x %d volume\n",
		snap.ID, len(snap.Tiles), snap.Dimensions[0], snap.Dimensions[1], snap.Dimensions[2])
	return nil
}

// validate checks the snapshot's internal consistency before any voxel
// is touched, so a bad snapshot never partially overwrites the volume.
func (snap *Snapshot) validate() error {
	if snap.Format != SnapshotFormat {
		return fmt.Errorf("unsupported snapshot format %q, expected %q", snap.Format, SnapshotFormat)
	}
	nx, ny, nz := snap.Dimensions[0], snap.Dimensions[1], snap.Dimensions[2]
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return fmt.Errorf("invalid snapshot dimensions %v", snap.Dimensions)
	}
	for ti := range snap.Tiles {
		t := &snap.Tiles[ti]
		for axis := 0; axis < 3; axis++ {
			if t.Origin[axis] < 0 || t.Size[axis] <= 0 ||
				t.Origin[axis]+t.Size[axis] > snap.Dimensions[axis] {
				return fmt.Errorf("tile %d extent %v+%v exceeds volume %v",
					ti, t.Origin, t.Size, snap.Dimensions)
			}
		}
		want := int64(t.Size[0]) * int64(t.Size[1]) * int64(t.Size[2])
		if got := t.Data.NumVoxels(); got != want {
			return fmt.Errorf("tile %d encodes %d voxels, extent holds %d", ti, got, want)
		}
	}
	return nil
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
