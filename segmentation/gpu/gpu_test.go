package gpu

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/worker"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

var growValues = []float32{
	0, 0, 5, 5,
	0, 0, 5, 5,
	9, 9, 5, 5,
	9, 9, 9, 9,
}

func newTestGrower(t *testing.T, cfg viewer.GPUConfig) *Grower {
	t.Helper()
	g, err := NewGrower(NewSoftwareDevice(), cfg)
	if err != nil {
		t.Fatalf("unable to create grower: %v\n", err)
	}
	t.Cleanup(g.Destroy)
	return g
}

func checkSelection(t *testing.T, got []int32, want []int32) {
	t.Helper()
	sorted := append([]int32(nil), got...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if len(sorted) != len(want) {
		t.Fatalf("selected %v, expected %v\n", sorted, want)
	}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("selected %v, expected %v\n", sorted, want)
		}
	}
}

func TestRunRegionGrowSlice(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{})
	ctx := context.Background()

	selected, err := g.RunRegionGrowSlice(ctx, RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 0, Tolerance: 0,
	})
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkSelection(t, selected, []int32{0, 1, 4, 5})
	if selected[0] != 0 {
		t.Errorf("seed not first in claim order: %v\n", selected)
	}

	selected, err = g.RunRegionGrowSlice(ctx, RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 0, Tolerance: 5,
	})
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkSelection(t, selected, []int32{0, 1, 2, 3, 4, 5, 6, 7, 10, 11})

	selected, err = g.RunRegionGrowSlice(ctx, RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 0, Tolerance: 100,
	})
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	if len(selected) != 16 {
		t.Errorf("full flood selected %d pixels, expected 16\n", len(selected))
	}
}

func TestRunRegionGrowIsolatedSeed(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{})
	// Seed 12 (value 9) with zero tolerance selects the 9 region only.
	selected, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 12, Tolerance: 0,
	})
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkSelection(t, selected, []int32{8, 9, 12, 13, 14, 15})
}

func TestRunRegionGrowSeedOnly(t *testing.T) {
	values := []float32{
		1, 9,
		9, 9,
	}
	g := newTestGrower(t, viewer.GPUConfig{})
	selected, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 2, Height: 2, Values: values, SeedIndex: 0, Tolerance: 0,
	})
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkSelection(t, selected, []int32{0})
}

func TestRunRegionGrowOutOfBoundsSeed(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{})
	for _, seed := range []int32{-1, 16, 999} {
		selected, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
			Width: 4, Height: 4, Values: growValues, SeedIndex: seed, Tolerance: 100,
		})
		if err != nil {
			t.Fatalf("seed %d errored: %v\n", seed, err)
		}
		if len(selected) != 0 {
			t.Errorf("out-of-bounds seed %d selected %v\n", seed, selected)
		}
	}
}

func TestRunRegionGrowShapeMismatch(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{})
	if _, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 5, Height: 4, Values: growValues, SeedIndex: 0,
	}); err == nil {
		t.Errorf("expected error for mismatched slice shape\n")
	}
	if _, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 0, Height: 4, Values: nil, SeedIndex: 0,
	}); err == nil {
		t.Errorf("expected error for zero width\n")
	}
}

func TestRunRegionGrowLimits(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{MaxStorageBindingSize: 32})
	var tooLarge SliceTooLargeError
	if _, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 0,
	}); !errors.As(err, &tooLarge) {
		t.Errorf("expected SliceTooLargeError with 32 byte binding limit, got %v\n", err)
	}

	g = newTestGrower(t, viewer.GPUConfig{MaxWorkgroupsPerDim: 8})
	big := make([]float32, 64*64)
	var wgLimit WorkgroupLimitError
	if _, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
		Width: 64, Height: 64, Values: big, SeedIndex: 0,
	}); !errors.As(err, &wgLimit) {
		t.Errorf("expected WorkgroupLimitError past the dispatch limit, got %v\n", err)
	}
}

// TestBatchingIndependence requires identical selections whether levels
// are submitted one at a time or batched.
func TestBatchingIndependence(t *testing.T) {
	values := make([]float32, 32*32)
	for i := range values {
		values[i] = float32(i % 7)
	}
	want, err := worker.RegionGrowSlice(32, 32, 100, 3, values)
	if err != nil {
		t.Fatalf("reference region grow failed: %v\n", err)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	for _, batch := range []int{1, 2, 128} {
		g := newTestGrower(t, viewer.GPUConfig{LevelsPerBatch: batch})
		selected, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
			Width: 32, Height: 32, Values: values, SeedIndex: 100, Tolerance: 3,
		})
		if err != nil {
			t.Fatalf("region grow with batch %d failed: %v\n", batch, err)
		}
		checkSelection(t, selected, want)
	}
}

// TestMatchesCPUWorker pins the GPU path to the CPU fallback: both must
// select the same pixel set for the same request.
func TestMatchesCPUWorker(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{})
	for seed := int32(0); seed < 16; seed++ {
		for _, tol := range []float32{0, 4, 5, 9} {
			want, err := worker.RegionGrowSlice(4, 4, seed, tol, growValues)
			if err != nil {
				t.Fatalf("reference region grow failed: %v\n", err)
			}
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
			got, err := g.RunRegionGrowSlice(context.Background(), RegionGrowRequest{
				Width: 4, Height: 4, Values: growValues, SeedIndex: seed, Tolerance: tol,
			})
			if err != nil {
				t.Fatalf("region grow seed %d tolerance %g failed: %v\n", seed, tol, err)
			}
			checkSelection(t, got, want)
		}
	}
}

func TestContextCancellation(t *testing.T) {
	g := newTestGrower(t, viewer.GPUConfig{LevelsPerBatch: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.RunRegionGrowSlice(ctx, RegionGrowRequest{
		Width: 4, Height: 4, Values: growValues, SeedIndex: 0, Tolerance: 100,
	}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled region grow returned %v, expected context.Canceled\n", err)
	}
}
