package viewer

import "testing"

func TestPlaneStrings(t *testing.T) {
	for _, c := range []struct {
		spec  string
		plane Plane
	}{
		{"xy", XY}, {"XY", XY}, {"xz", XZ}, {"XZ", XZ}, {"yz", YZ}, {"YZ", YZ},
	} {
		got, err := PlaneFromString(c.spec)
		if err != nil {
			t.Fatalf("unable to parse plane %q: %v\n", c.spec, err)
		}
		if got != c.plane {
			t.Errorf("plane %q parsed to %s, expected %s\n", c.spec, got, c.plane)
		}
	}
	if _, err := PlaneFromString("zx"); err == nil {
		t.Errorf("expected error parsing plane \"zx\"\n")
	}
}

func TestPlaneGeometry(t *testing.T) {
	const nx, ny, nz = 5, 7, 11
	for _, c := range []struct {
		plane         Plane
		bound         int32
		width, height int32
	}{
		{XY, nz, nx, ny},
		{XZ, ny, nx, nz},
		{YZ, nx, ny, nz},
	} {
		if got := c.plane.SliceBound(nx, ny, nz); got != c.bound {
			t.Errorf("%s slice bound %d, expected %d\n", c.plane, got, c.bound)
		}
		w, h := c.plane.SliceDims(nx, ny, nz)
		if w != c.width || h != c.height {
			t.Errorf("%s slice dims (%d, %d), expected (%d, %d)\n", c.plane, w, h, c.width, c.height)
		}
	}
}

// TestVoxelCoordRoundTrip checks VoxelCoord and SliceIndexOf are
// mutually consistent: every in-slice coordinate maps to a voxel on
// that slice, covering each voxel of the volume exactly once per plane.
func TestVoxelCoordRoundTrip(t *testing.T) {
	const nx, ny, nz = 3, 4, 5
	for _, plane := range []Plane{XY, XZ, YZ} {
		w, h := plane.SliceDims(nx, ny, nz)
		seen := make(map[[3]int32]bool)
		for s := int32(0); s < plane.SliceBound(nx, ny, nz); s++ {
			for j := int32(0); j < h; j++ {
				for i := int32(0); i < w; i++ {
					x, y, z := plane.VoxelCoord(i, j, s)
					if x < 0 || x >= nx || y < 0 || y >= ny || z < 0 || z >= nz {
						t.Fatalf("%s (%d,%d) slice %d maps out of bounds to (%d,%d,%d)\n",
							plane, i, j, s, x, y, z)
					}
					if got := plane.SliceIndexOf(x, y, z); got != s {
						t.Fatalf("%s voxel (%d,%d,%d) reports slice %d, expected %d\n",
							plane, x, y, z, got, s)
					}
					c := [3]int32{x, y, z}
					if seen[c] {
						t.Fatalf("%s mapped voxel %v twice\n", plane, c)
					}
					seen[c] = true
				}
			}
		}
		if len(seen) != nx*ny*nz {
			t.Errorf("%s covered %d voxels, expected %d\n", plane, len(seen), nx*ny*nz)
		}
	}
}
