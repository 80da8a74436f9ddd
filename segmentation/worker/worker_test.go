package worker

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/rle"
)

// growValues is a 4x4 slice with three plateaus: a 0 region in the top
// left corner, a 5 column on the right, and a 9 region at the bottom.
var growValues = []float32{
	0, 0, 5, 5,
	0, 0, 5, 5,
	9, 9, 5, 5,
	9, 9, 9, 9,
}

func sortedCopy(indices []int32) []int32 {
	out := append([]int32(nil), indices...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func checkIndices(t *testing.T, got, want []int32) {
	t.Helper()
	got = sortedCopy(got)
	if len(got) != len(want) {
		t.Fatalf("selected %v, expected %v\n", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selected %v, expected %v\n", got, want)
		}
	}
}

func TestThresholdSlice(t *testing.T) {
	indices, err := ThresholdSlice(4, 4, 4, 6, growValues)
	if err != nil {
		t.Fatalf("threshold failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{2, 3, 6, 7, 10, 11})

	indices, err = ThresholdSlice(4, 4, 100, 200, growValues)
	if err != nil {
		t.Fatalf("threshold failed: %v\n", err)
	}
	if len(indices) != 0 {
		t.Errorf("empty threshold selected %v\n", indices)
	}

	if _, err := ThresholdSlice(4, 5, 0, 1, growValues); err == nil {
		t.Errorf("expected error for mismatched slice shape\n")
	}
}

func TestRegionGrowSlice(t *testing.T) {
	// Zero tolerance from the corner selects only the 0 plateau.
	indices, err := RegionGrowSlice(4, 4, 0, 0, growValues)
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{0, 1, 4, 5})
	if indices[0] != 0 {
		t.Errorf("seed not first in claim order: %v\n", indices)
	}

	// Tolerance 5 joins the 5 plateau but not the 9s.
	indices, err = RegionGrowSlice(4, 4, 0, 5, growValues)
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{0, 1, 2, 3, 4, 5, 6, 7, 10, 11})

	// A large tolerance floods the whole slice.
	indices, err = RegionGrowSlice(4, 4, 0, 100, growValues)
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	if len(indices) != 16 {
		t.Errorf("full flood selected %d pixels, expected 16\n", len(indices))
	}

	// Out-of-bounds seeds yield empty selections, not errors.
	for _, seed := range []int32{-1, 16, 500} {
		indices, err = RegionGrowSlice(4, 4, seed, 0, growValues)
		if err != nil {
			t.Fatalf("region grow with seed %d failed: %v\n", seed, err)
		}
		if len(indices) != 0 {
			t.Errorf("out-of-bounds seed %d selected %v\n", seed, indices)
		}
	}
}

func TestRegionGrowIsolatedSeed(t *testing.T) {
	indices, err := RegionGrowSlice(4, 4, 10, 0, growValues)
	if err != nil {
		t.Fatalf("region grow failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{2, 3, 6, 7, 10, 11})
}

func TestClientRoundTrip(t *testing.T) {
	c := NewClient()
	defer c.Stop()
	ctx := context.Background()

	indices, err := c.RegionGrowSlice(ctx, 4, 4, 0, 0, growValues)
	if err != nil {
		t.Fatalf("client region grow failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{0, 1, 4, 5})

	indices, err = c.ThresholdSlice(ctx, 4, 4, 8, 10, growValues)
	if err != nil {
		t.Fatalf("client threshold failed: %v\n", err)
	}
	checkIndices(t, indices, []int32{8, 9, 12, 13, 14, 15})

	bits := []uint8{1, 1, 0, 0, 0, 1, 0}
	m, err := c.EncodeBinaryMaskRLE(ctx, bits)
	if err != nil {
		t.Fatalf("client encode failed: %v\n", err)
	}
	if m.OneCount() != 3 {
		t.Errorf("encoded mask counts %d ones, expected 3\n", m.OneCount())
	}
	decoded, err := c.DecodeBinaryMaskRLE(ctx, m)
	if err != nil {
		t.Fatalf("client decode failed: %v\n", err)
	}
	if len(decoded) != len(bits) {
		t.Fatalf("decoded %d bits, expected %d\n", len(decoded), len(bits))
	}
	for i := range bits {
		if decoded[i] != bits[i] {
			t.Errorf("bit %d: got %d, expected %d\n", i, decoded[i], bits[i])
		}
	}
}

func TestClientErrorResponse(t *testing.T) {
	c := NewClient()
	defer c.Stop()

	if _, err := c.ThresholdSlice(context.Background(), 3, 3, 0, 1, growValues); err == nil {
		t.Errorf("expected error for mismatched slice shape via client\n")
	}

	bad := rle.BinaryMask{NumVoxels: 10, StartsWith: 1, Runs: []int64{3}}
	if _, err := c.DecodeBinaryMaskRLE(context.Background(), bad); err == nil {
		t.Errorf("expected error decoding inconsistent mask via client\n")
	}
}

func TestClientStop(t *testing.T) {
	c := NewClient()
	c.Stop()
	// Stop only signals the worker; wait for its shutdown to land before
	// asserting on post-stop behavior.
	for {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := c.ThresholdSlice(context.Background(), 4, 4, 0, 1, growValues); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("call after Stop returned %v, expected ErrWorkerStopped\n", err)
	}
}

func TestClientContextCancel(t *testing.T) {
	// A client with no worker goroutine never accepts the request, so
	// the call must fall through to the context.
	c := &Client{
		requests: make(chan Request),
		pending:  make(map[uint64]chan Response),
		done:     make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ThresholdSlice(ctx, 4, 4, 0, 1, growValues); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled call returned %v, expected context.Canceled\n", err)
	}
	if len(c.pending) != 0 {
		t.Errorf("canceled call left %d pending entries\n", len(c.pending))
	}
}

func TestKindStrings(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindThresholdSlice:      "threshold-slice",
		KindRegionGrowSlice:     "region-grow-slice",
		KindEncodeBinaryMaskRLE: "encode-binary-mask-rle",
		KindDecodeBinaryMaskRLE: "decode-binary-mask-rle",
	} {
		if got := kind.String(); got != want {
			t.Errorf("kind %d renders %q, expected %q\n", kind, got, want)
		}
	}
}
