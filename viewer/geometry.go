package viewer

import "fmt"

// Plane is one of the three orthogonal slice orientations through a volume.
// Following the viewer's display convention, a plane is named by the two
// axes it spans; the remaining axis is the slicing direction.
type Plane uint8

const (
	// XY describes a 2d rectangle of voxels that share a z-coord.
	XY Plane = iota

	// XZ describes a 2d rectangle of voxels that share a y-coord.
	XZ

	// YZ describes a 2d rectangle of voxels that share an x-coord.
	YZ
)

func (p Plane) String() string {
	switch p {
	case XY:
		return "XY"
	case XZ:
		return "XZ"
	case YZ:
		return "YZ"
	}
	return fmt.Sprintf("Unknown plane (%d)", uint8(p))
}

// PlaneFromString returns the Plane for strings like "xy", "XZ", "yz".
func PlaneFromString(s string) (Plane, error) {
	switch s {
	case "xy", "XY":
		return XY, nil
	case "xz", "XZ":
		return XZ, nil
	case "yz", "YZ":
		return YZ, nil
	}
	return 0, fmt.Errorf("unknown plane specification %q", s)
}

// SliceBound returns the number of slices a volume with the given dimensions
// has along this plane's normal axis.
func (p Plane) SliceBound(nx, ny, nz int32) int32 {
	switch p {
	case XY:
		return nz
	case XZ:
		return ny
	default:
		return nx
	}
}

// SliceDims returns the (width, height) of a slice of this plane in
// row-major order: XY -> (nx, ny), XZ -> (nx, nz), YZ -> (ny, nz).
func (p Plane) SliceDims(nx, ny, nz int32) (width, height int32) {
	switch p {
	case XY:
		return nx, ny
	case XZ:
		return nx, nz
	default:
		return ny, nz
	}
}

// VoxelCoord maps in-slice coordinates (i fast axis, j slow axis) at the
// given slice index to a 3d voxel coordinate.
func (p Plane) VoxelCoord(i, j, sliceIndex int32) (x, y, z int32) {
	switch p {
	case XY:
		return i, j, sliceIndex
	case XZ:
		return i, sliceIndex, j
	default:
		return sliceIndex, i, j
	}
}

// SliceIndexOf returns the slice index containing the given voxel.
func (p Plane) SliceIndexOf(x, y, z int32) int32 {
	switch p {
	case XY:
		return z
	case XZ:
		return y
	default:
		return x
	}
}
