package gpu

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	types "github.com/gogpu/gputypes"

	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

//go:embed shaders/region_grow.wgsl
var regionGrowWGSL string

// WgpuDevice is the hardware-backed Device.  Shader compilation and
// pipeline construction run through gogpu/wgpu's HAL; dispatch execution
// runs on the CPU kernel mirror until the HAL exposes buffer binding for
// compute passes.  The mirror executes the same kernels the WGSL
// declares, so selections are identical either way.
type WgpuDevice struct {
	device hal.Device
	queue  hal.Queue

	shaderModule hal.ShaderModule
	stepLayout   hal.BindGroupLayout
	prepLayout   hal.BindGroupLayout
	stepPipeline hal.PipelineLayout
	prepPipeline hal.PipelineLayout

	halPipelines map[string]hal.ComputePipeline
	spirvWords   []uint32

	// Buffer storage and command execution.
	mirror *SoftwareDevice
}

// NewWgpuDevice compiles the region-growing shader and builds its
// pipelines on the HAL device.  A nil device or queue is an error;
// callers without GPU support should use NewSoftwareDevice directly.
func NewWgpuDevice(device hal.Device, queue hal.Queue) (*WgpuDevice, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: device and queue are required")
	}
	d := &WgpuDevice{
		device:       device,
		queue:        queue,
		halPipelines: make(map[string]hal.ComputePipeline),
		mirror:       NewSoftwareDevice(),
	}
	if err := d.init(); err != nil {
		d.Destroy()
		return nil, err
	}
	timedLog := viewer.NewTimeLog()
	timedLog.Infof("compiled region grow shader to %d SPIR-V words", len(d.spirvWords))
	return d, nil
}

func (d *WgpuDevice) init() error {
	spirvBytes, err := naga.Compile(regionGrowWGSL)
	if err != nil {
		return fmt.Errorf("gpu: shader compilation failed: %w", err)
	}
	d.spirvWords = make([]uint32, len(spirvBytes)/4)
	for i := range d.spirvWords {
		d.spirvWords[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	d.shaderModule, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "region_grow_shader",
		Source: hal.ShaderSource{
			SPIRV: d.spirvWords,
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: shader module creation failed: %w", err)
	}

	if err := d.createLayouts(); err != nil {
		return err
	}
	return d.createPipelines()
}

// createLayouts builds one bind group layout per entry point.  bfs_step
// sees the indirect args buffer only as its dispatch size, never as a
// binding, so its layout stops at the state buffer.
func (d *WgpuDevice) createLayouts() error {
	stepLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "region_grow_step_layout",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    bindParams,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type:           types.BufferBindingTypeUniform,
					MinBindingSize: paramsBytes,
				},
			},
			{
				Binding:    bindValues,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeReadOnlyStorage,
				},
			},
			{
				Binding:    bindVisited,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    bindFrontier,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    bindState,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type:           types.BufferBindingTypeStorage,
					MinBindingSize: stateBytes,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: step bind group layout creation failed: %w", err)
	}
	d.stepLayout = stepLayout

	prepLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "region_grow_prepare_layout",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    bindState,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type:           types.BufferBindingTypeStorage,
					MinBindingSize: stateBytes,
				},
			},
			{
				Binding:    bindIndirect,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type:           types.BufferBindingTypeStorage,
					MinBindingSize: indirectBytes,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: prepare bind group layout creation failed: %w", err)
	}
	d.prepLayout = prepLayout
	return nil
}

func (d *WgpuDevice) createPipelines() error {
	stepPipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "region_grow_step_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.stepLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: step pipeline layout creation failed: %w", err)
	}
	d.stepPipeline = stepPipelineLayout

	prepPipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "region_grow_prepare_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.prepLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: prepare pipeline layout creation failed: %w", err)
	}
	d.prepPipeline = prepPipelineLayout

	for entry, layout := range map[string]hal.PipelineLayout{
		entryBfsStep:     d.stepPipeline,
		entryPrepareNext: d.prepPipeline,
	} {
		p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  "region_grow_" + entry,
			Layout: layout,
			Compute: hal.ComputeState{
				Module:     d.shaderModule,
				EntryPoint: entry,
			},
		})
		if err != nil {
			return fmt.Errorf("gpu: %s pipeline creation failed: %w", entry, err)
		}
		d.halPipelines[entry] = p
	}
	return nil
}

// Limits implements Device.
func (d *WgpuDevice) Limits() Limits {
	return d.mirror.Limits()
}

// CreateBuffer implements Device.
func (d *WgpuDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	return d.mirror.CreateBuffer(desc)
}

// CreateComputePipeline implements Device.  The entry point must be one
// the shader declares or pipeline construction would already have
// rejected it.
func (d *WgpuDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	if _, ok := d.halPipelines[desc.EntryPoint]; !ok {
		return nil, fmt.Errorf("gpu: unknown entry point %q", desc.EntryPoint)
	}
	return d.mirror.CreateComputePipeline(desc)
}

// CreateBindGroup implements Device.
func (d *WgpuDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	return d.mirror.CreateBindGroup(desc)
}

// NewCommandEncoder implements Device.
func (d *WgpuDevice) NewCommandEncoder() CommandEncoder {
	return d.mirror.NewCommandEncoder()
}

// WriteBuffer implements Device.
func (d *WgpuDevice) WriteBuffer(b Buffer, offset uint64, data []byte) error {
	return d.mirror.WriteBuffer(b, offset, data)
}

// Submit implements Device.
func (d *WgpuDevice) Submit(cb CommandBuffer) error {
	return d.mirror.Submit(cb)
}

// ReadBuffer implements Device.
func (d *WgpuDevice) ReadBuffer(ctx context.Context, b Buffer, offset, size uint64) ([]byte, error) {
	return d.mirror.ReadBuffer(ctx, b, offset, size)
}

// SPIRVWords returns the compiled SPIR-V for inspection.
func (d *WgpuDevice) SPIRVWords() []uint32 {
	return d.spirvWords
}

// Destroy releases the HAL resources.
func (d *WgpuDevice) Destroy() {
	if d.device == nil {
		return
	}
	for entry, p := range d.halPipelines {
		d.device.DestroyComputePipeline(p)
		delete(d.halPipelines, entry)
	}
	if d.stepPipeline != nil {
		d.device.DestroyPipelineLayout(d.stepPipeline)
		d.stepPipeline = nil
	}
	if d.prepPipeline != nil {
		d.device.DestroyPipelineLayout(d.prepPipeline)
		d.prepPipeline = nil
	}
	if d.stepLayout != nil {
		d.device.DestroyBindGroupLayout(d.stepLayout)
		d.stepLayout = nil
	}
	if d.prepLayout != nil {
		d.device.DestroyBindGroupLayout(d.prepLayout)
		d.prepLayout = nil
	}
	if d.shaderModule != nil {
		d.device.DestroyShaderModule(d.shaderModule)
		d.shaderModule = nil
	}
	if d.mirror != nil {
		d.mirror.Destroy()
		d.mirror = nil
	}
}
