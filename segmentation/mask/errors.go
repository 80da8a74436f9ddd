package mask

import (
	"errors"
	"fmt"

	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// ErrDisposed is returned by operations on a volume after Dispose.
var ErrDisposed = errors.New("mask volume is disposed")

// SliceIndexError reports an out-of-range slice index for a plane.
type SliceIndexError struct {
	Plane viewer.Plane
	Index int32
	Bound int32
}

func (e SliceIndexError) Error() string {
	return fmt.Sprintf("slice index %d out of range for plane %s (bound %d)",
		e.Index, e.Plane, e.Bound)
}

// RestoreLengthError reports mismatched parallel arrays handed to
// RestoreLinearValues.
type RestoreLengthError struct {
	NumIndices int
	NumValues  int
}

func (e RestoreLengthError) Error() string {
	return fmt.Sprintf("restore record has %d linear indices but %d values",
		e.NumIndices, e.NumValues)
}

// LinearIndexError reports a linear index outside the volume.
type LinearIndexError struct {
	Index int64
	Bound int64
}

func (e LinearIndexError) Error() string {
	return fmt.Sprintf("linear voxel index %d out of range [0,%d)", e.Index, e.Bound)
}
