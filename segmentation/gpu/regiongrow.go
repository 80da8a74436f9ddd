package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// RegionGrowRequest selects 4-connected pixels of a width x height slice
// within Tolerance of the seed pixel's value.
type RegionGrowRequest struct {
	Width     int32
	Height    int32
	Values    []float32
	SeedIndex int32
	Tolerance float32
}

// Grower drives region growing on a compute device.  One Grower may be
// reused across invocations; per-invocation buffers are created and
// released inside each run.  Concurrent runs against one Grower are not
// supported.
type Grower struct {
	dev  Device
	step ComputePipeline
	prep ComputePipeline

	limits         Limits
	levelsPerBatch int
}

// NewGrower compiles the region-growing pipelines on the device.  Config
// values, when set, tighten the device's reported limits.
func NewGrower(dev Device, cfg viewer.GPUConfig) (*Grower, error) {
	g := &Grower{
		dev:            dev,
		limits:         dev.Limits(),
		levelsPerBatch: cfg.LevelsPerBatch,
	}
	if g.levelsPerBatch <= 0 {
		g.levelsPerBatch = viewer.DefaultLevelsPerBatch
	}
	if cfg.MaxStorageBindingSize > 0 && cfg.MaxStorageBindingSize < g.limits.MaxStorageBufferBindingSize {
		g.limits.MaxStorageBufferBindingSize = cfg.MaxStorageBindingSize
	}
	if cfg.MaxWorkgroupsPerDim > 0 && cfg.MaxWorkgroupsPerDim < g.limits.MaxComputeWorkgroupsPerDimension {
		g.limits.MaxComputeWorkgroupsPerDimension = cfg.MaxWorkgroupsPerDim
	}

	var err error
	if g.step, err = dev.CreateComputePipeline(&ComputePipelineDescriptor{
		Label:      "region_grow_step",
		EntryPoint: entryBfsStep,
	}); err != nil {
		return nil, fmt.Errorf("could not create bfs_step pipeline: %v", err)
	}
	if g.prep, err = dev.CreateComputePipeline(&ComputePipelineDescriptor{
		Label:      "region_grow_prepare",
		EntryPoint: entryPrepareNext,
	}); err != nil {
		g.step.Destroy()
		return nil, fmt.Errorf("could not create prepare_next pipeline: %v", err)
	}
	return g, nil
}

// Destroy releases the pipelines.  Buffers are per-invocation and
// already released by the time RunRegionGrowSlice returns.
func (g *Grower) Destroy() {
	if g.step != nil {
		g.step.Destroy()
		g.step = nil
	}
	if g.prep != nil {
		g.prep.Destroy()
		g.prep = nil
	}
}

// RunRegionGrowSlice performs the flood fill and returns the selected
// flat pixel indices in claim order, seed first.  An out-of-bounds seed
// returns an empty selection without touching the device.
func (g *Grower) RunRegionGrowSlice(ctx context.Context, req RegionGrowRequest) ([]int32, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid slice shape %d x %d", req.Width, req.Height)
	}
	n := int64(req.Width) * int64(req.Height)
	if int64(len(req.Values)) != n {
		return nil, fmt.Errorf("slice shape %d x %d does not match %d values", req.Width, req.Height, len(req.Values))
	}
	if req.SeedIndex < 0 || int64(req.SeedIndex) >= n {
		return nil, nil
	}
	valueBytes := uint64(n) * 4
	if valueBytes > g.limits.MaxStorageBufferBindingSize {
		return nil, SliceTooLargeError{Bytes: valueBytes, Limit: g.limits.MaxStorageBufferBindingSize}
	}
	maxGroups := uint32((n + workgroupSize - 1) / workgroupSize)
	if maxGroups > g.limits.MaxComputeWorkgroupsPerDimension {
		return nil, WorkgroupLimitError{Needed: maxGroups, Limit: g.limits.MaxComputeWorkgroupsPerDimension}
	}

	timedLog := viewer.NewTimeLog()

	var buffers []Buffer
	defer func() {
		// Cleanup runs on every exit: success, contract failure, or a
		// device error mid-flight.
		for _, b := range buffers {
			b.Destroy()
		}
	}()
	newBuffer := func(label string, size uint64, usage BufferUsage) (Buffer, error) {
		b, err := g.dev.CreateBuffer(&BufferDescriptor{Label: label, Size: size, Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("could not create %s buffer: %v", label, err)
		}
		buffers = append(buffers, b)
		return b, nil
	}

	params, err := newBuffer("region_grow_params", paramsBytes, BufferUsageUniform|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	values, err := newBuffer("region_grow_values", valueBytes, BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	visitedWords := uint64((n + 31) / 32)
	visited, err := newBuffer("region_grow_visited", visitedWords*4, BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	frontier, err := newBuffer("region_grow_frontier", uint64(n)*4, BufferUsageStorage|BufferUsageCopySrc|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	state, err := newBuffer("region_grow_state", stateBytes, BufferUsageStorage|BufferUsageCopySrc|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	indirect, err := newBuffer("region_grow_indirect", indirectBytes, BufferUsageStorage|BufferUsageIndirect|BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	if err := g.upload(req, params, values, visited, frontier, state, indirect); err != nil {
		return nil, err
	}

	// bfs_step's bind group omits the indirect args buffer: it is
	// consumed as INDIRECT input in the same pass, and prepare_next is
	// its sole writer.
	stepGroup, err := g.dev.CreateBindGroup(&BindGroupDescriptor{
		Label: "region_grow_step_bindings",
		Entries: []BindGroupEntry{
			{Binding: bindParams, Buffer: params},
			{Binding: bindValues, Buffer: values},
			{Binding: bindVisited, Buffer: visited},
			{Binding: bindFrontier, Buffer: frontier},
			{Binding: bindState, Buffer: state},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create step bind group: %v", err)
	}
	defer stepGroup.Destroy()
	prepGroup, err := g.dev.CreateBindGroup(&BindGroupDescriptor{
		Label: "region_grow_prepare_bindings",
		Entries: []BindGroupEntry{
			{Binding: bindState, Buffer: state},
			{Binding: bindIndirect, Buffer: indirect},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create prepare bind group: %v", err)
	}
	defer prepGroup.Destroy()

	// Level-synchronous BFS: levelsPerBatch levels per submission, one
	// nextEnd readback per batch.  Total levels are bounded by the
	// slice's width+height, the longest possible 4-connected path depth.
	maxLevels := int(req.Width + req.Height)
	prevNextEnd := uint32(1)
	converged := false
	for levelsDone := 0; levelsDone < maxLevels && !converged; {
		batch := g.levelsPerBatch
		if remaining := maxLevels - levelsDone; batch > remaining {
			batch = remaining
		}
		enc := g.dev.NewCommandEncoder()
		for i := 0; i < batch; i++ {
			pass := enc.BeginComputePass("bfs_step")
			pass.SetPipeline(g.step)
			pass.SetBindGroup(0, stepGroup)
			pass.DispatchWorkgroupsIndirect(indirect, 0)
			pass.End()

			pass = enc.BeginComputePass("prepare_next")
			pass.SetPipeline(g.prep)
			pass.SetBindGroup(0, prepGroup)
			pass.DispatchWorkgroups(1, 1, 1)
			pass.End()
		}
		if err := g.dev.Submit(enc.Finish()); err != nil {
			return nil, fmt.Errorf("region grow submission failed: %v", err)
		}
		levelsDone += batch

		stateBack, err := g.dev.ReadBuffer(ctx, state, 8, 4)
		if err != nil {
			return nil, fmt.Errorf("region grow state readback failed: %v", err)
		}
		nextEnd := binary.LittleEndian.Uint32(stateBack)
		if nextEnd == prevNextEnd {
			converged = true
		}
		prevNextEnd = nextEnd

		// The batch boundary is the natural cancellation checkpoint.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// The seed is pre-claimed, so the selection holds at least one pixel.
	if int64(prevNextEnd) > n {
		return nil, fmt.Errorf("region grow selected %d pixels of a %d pixel slice", prevNextEnd, n)
	}
	frontierBack, err := g.dev.ReadBuffer(ctx, frontier, 0, uint64(prevNextEnd)*4)
	if err != nil {
		return nil, fmt.Errorf("region grow frontier readback failed: %v", err)
	}
	selected := make([]int32, prevNextEnd)
	for i := range selected {
		selected[i] = int32(binary.LittleEndian.Uint32(frontierBack[i*4:]))
	}
	timedLog.Debugf("GPU region grow selected %d of %d pixels", len(selected), n)
	return selected, nil
}

// upload seeds the device buffers: the seed pixel is pre-claimed in the
// visited bitmap and sits alone in the frontier's first level.
func (g *Grower) upload(req RegionGrowRequest, params, values, visited, frontier, state, indirect Buffer) error {
	p := make([]byte, paramsBytes)
	binary.LittleEndian.PutUint32(p[0:], uint32(req.Width))
	binary.LittleEndian.PutUint32(p[4:], uint32(req.Height))
	binary.LittleEndian.PutUint32(p[8:], math.Float32bits(req.Tolerance))
	binary.LittleEndian.PutUint32(p[12:], math.Float32bits(req.Values[req.SeedIndex]))
	if err := g.dev.WriteBuffer(params, 0, p); err != nil {
		return err
	}

	vb := make([]byte, len(req.Values)*4)
	for i, v := range req.Values {
		binary.LittleEndian.PutUint32(vb[i*4:], math.Float32bits(v))
	}
	if err := g.dev.WriteBuffer(values, 0, vb); err != nil {
		return err
	}

	seed := uint32(req.SeedIndex)
	vw := make([]byte, visited.Size())
	binary.LittleEndian.PutUint32(vw[(seed/32)*4:], 1<<(seed%32))
	if err := g.dev.WriteBuffer(visited, 0, vw); err != nil {
		return err
	}

	fb := make([]byte, 4)
	binary.LittleEndian.PutUint32(fb, seed)
	if err := g.dev.WriteBuffer(frontier, 0, fb); err != nil {
		return err
	}

	sb := make([]byte, stateBytes)
	binary.LittleEndian.PutUint32(sb[0:], 0) // levelStart
	binary.LittleEndian.PutUint32(sb[4:], 1) // levelEnd
	binary.LittleEndian.PutUint32(sb[8:], 1) // nextEnd
	if err := g.dev.WriteBuffer(state, 0, sb); err != nil {
		return err
	}

	ib := make([]byte, indirectBytes)
	binary.LittleEndian.PutUint32(ib[0:], 1)
	binary.LittleEndian.PutUint32(ib[4:], 1)
	binary.LittleEndian.PutUint32(ib[8:], 1)
	return g.dev.WriteBuffer(indirect, 0, ib)
}
