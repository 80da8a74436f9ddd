package gpu

import "fmt"

// SliceTooLargeError means the slice's value buffer exceeds the device's
// maximum storage binding size.  Raised before any dispatch.
type SliceTooLargeError struct {
	Bytes uint64
	Limit uint64
}

func (e SliceTooLargeError) Error() string {
	return fmt.Sprintf("slice needs a %d byte storage binding, device limit is %d", e.Bytes, e.Limit)
}

// WorkgroupLimitError means a worst-case level would need more
// workgroups than the device allows in one dimension.
type WorkgroupLimitError struct {
	Needed uint32
	Limit  uint32
}

func (e WorkgroupLimitError) Error() string {
	return fmt.Sprintf("region grow needs up to %d workgroups, device limit is %d", e.Needed, e.Limit)
}
