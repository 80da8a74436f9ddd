/*
	Package worker runs the segmentation engine's threshold, region-grow,
	and RLE algorithms on a background goroutine, mirroring the GPU path
	for hosts without compute support.  Requests and responses are
	structured messages correlated by a numeric id; buffers are handed
	over rather than copied, so a caller must not reuse a request's
	slices after sending.
*/
package worker

import "github.com/RioBao/CTViewerV2-sub000/segmentation/rle"

// Kind selects the operation a request performs.
type Kind uint8

const (
	KindThresholdSlice Kind = iota + 1
	KindRegionGrowSlice
	KindEncodeBinaryMaskRLE
	KindDecodeBinaryMaskRLE
)

func (k Kind) String() string {
	switch k {
	case KindThresholdSlice:
		return "threshold-slice"
	case KindRegionGrowSlice:
		return "region-grow-slice"
	case KindEncodeBinaryMaskRLE:
		return "encode-binary-mask-rle"
	case KindDecodeBinaryMaskRLE:
		return "decode-binary-mask-rle"
	}
	return "unknown"
}

// Request is a message to the worker.  Only the fields relevant to its
// Kind are read.
type Request struct {
	ID   uint64
	Kind Kind

	// threshold-slice and region-grow-slice
	Width  int32
	Height int32
	Values []float32

	// threshold-slice
	Min float32
	Max float32

	// region-grow-slice
	SeedIndex int32
	Tolerance float32

	// encode-binary-mask-rle
	Bits []uint8

	// decode-binary-mask-rle
	Mask rle.BinaryMask
}

// Response echoes the request id.  OK is false exactly when Err is set.
type Response struct {
	ID         uint64
	OK         bool
	ResultType string
	Err        string

	Indices []int32
	Bits    []uint8
	Mask    rle.BinaryMask
}
