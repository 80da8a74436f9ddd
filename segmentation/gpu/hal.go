/*
	Package gpu implements GPU-accelerated 2d region growing for the
	segmentation engine: an iterative level-synchronous BFS whose per-level
	work is sized by indirect dispatch, batched so no single submission
	can trip a platform's hung-device detection.

	Compute work is expressed against a small device abstraction.  A
	software device executes the same kernels on the CPU and backs hosts
	(and tests) without compute support; the wgpu path compiles the
	embedded WGSL via naga and builds its pipelines through
	github.com/gogpu/wgpu.
*/
package gpu

import "context"

// BufferUsage is a bit set describing how a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Limits reports device bounds the driver must respect before dispatch.
type Limits struct {
	MaxStorageBufferBindingSize      uint64
	MaxComputeWorkgroupsPerDimension uint32
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// ComputePipelineDescriptor names a compiled kernel entry point.
type ComputePipelineDescriptor struct {
	Label      string
	EntryPoint string
}

// BindGroupEntry binds a buffer to a shader binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Entries []BindGroupEntry
}

// Buffer is a device allocation.
type Buffer interface {
	Size() uint64
	Usage() BufferUsage
	Destroy()
}

// ComputePipeline is a compiled compute kernel.
type ComputePipeline interface {
	EntryPoint() string
	Destroy()
}

// BindGroup is an immutable set of buffer bindings.
type BindGroup interface {
	Destroy()
}

// CommandBuffer is a finished, submittable recording.
type CommandBuffer interface{}

// ComputePass records dispatches against one pipeline/bind-group state.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, bg BindGroup)
	DispatchWorkgroups(x, y, z uint32)

	// DispatchWorkgroupsIndirect sizes the dispatch from three u32
	// workgroup counts read out of args at submission time.  The args
	// buffer must not be bound as writable storage in the same pass.
	DispatchWorkgroupsIndirect(args Buffer, offset uint64)

	End()
}

// CommandEncoder records passes into a command buffer.
type CommandEncoder interface {
	BeginComputePass(label string) ComputePass
	Finish() CommandBuffer
}

// Device is the compute surface the region-growing driver needs.
type Device interface {
	Limits() Limits
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	NewCommandEncoder() CommandEncoder

	// WriteBuffer uploads data at queue timeline order.
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	// Submit executes a finished command buffer.
	Submit(cb CommandBuffer) error

	// ReadBuffer maps a buffer range back to the CPU.  This is the
	// driver's only suspension point.
	ReadBuffer(ctx context.Context, b Buffer, offset, size uint64) ([]byte, error)

	Destroy()
}
