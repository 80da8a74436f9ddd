package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Kernel is the CPU mirror of one shader entry point.  It receives the
// workgroup counts of its dispatch and the buffers bound at each slot,
// and must implement exactly the algorithm of the WGSL entry point it
// mirrors.
type Kernel func(groups [3]uint32, bindings map[uint32][]byte)

// SoftwareDevice executes compute work on the CPU.  Commands are
// recorded exactly as on a real device and run at Submit, so indirect
// dispatch arguments written by an earlier pass in the same submission
// are honored, matching GPU queue semantics.
type SoftwareDevice struct {
	limits  Limits
	kernels map[string]Kernel
}

// Reasonable stand-ins for what real adapters report.
const (
	softwareMaxStorageBinding uint64 = 1 << 30
	softwareMaxWorkgroups     uint32 = 65535
)

// NewSoftwareDevice creates a CPU device with this package's region
// growing kernels registered.
func NewSoftwareDevice() *SoftwareDevice {
	d := &SoftwareDevice{
		limits: Limits{
			MaxStorageBufferBindingSize:      softwareMaxStorageBinding,
			MaxComputeWorkgroupsPerDimension: softwareMaxWorkgroups,
		},
		kernels: make(map[string]Kernel),
	}
	d.kernels[entryBfsStep] = bfsStepKernel
	d.kernels[entryPrepareNext] = prepareNextKernel
	return d
}

func (d *SoftwareDevice) Limits() Limits { return d.limits }

func (d *SoftwareDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("zero-size buffer %q", desc.Label)
	}
	return &softwareBuffer{
		label: desc.Label,
		data:  make([]byte, desc.Size),
		usage: desc.Usage,
	}, nil
}

func (d *SoftwareDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	k, found := d.kernels[desc.EntryPoint]
	if !found {
		return nil, fmt.Errorf("no kernel registered for entry point %q", desc.EntryPoint)
	}
	return &softwarePipeline{entryPoint: desc.EntryPoint, kernel: k}, nil
}

func (d *SoftwareDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	bg := &softwareBindGroup{bindings: make(map[uint32]*softwareBuffer, len(desc.Entries))}
	for _, e := range desc.Entries {
		buf, ok := e.Buffer.(*softwareBuffer)
		if !ok {
			return nil, fmt.Errorf("bind group %q entry %d: foreign buffer", desc.Label, e.Binding)
		}
		bg.bindings[e.Binding] = buf
	}
	return bg, nil
}

func (d *SoftwareDevice) NewCommandEncoder() CommandEncoder {
	return &softwareEncoder{}
}

func (d *SoftwareDevice) WriteBuffer(b Buffer, offset uint64, data []byte) error {
	buf := b.(*softwareBuffer)
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return fmt.Errorf("write of %d bytes at %d exceeds buffer %q (%d bytes)",
			len(data), offset, buf.label, len(buf.data))
	}
	copy(buf.data[offset:], data)
	return nil
}

func (d *SoftwareDevice) Submit(cb CommandBuffer) error {
	commands, ok := cb.(*softwareCommands)
	if !ok {
		return fmt.Errorf("foreign command buffer")
	}
	for _, cmd := range commands.dispatches {
		if err := cmd.run(); err != nil {
			return err
		}
	}
	return nil
}

func (d *SoftwareDevice) ReadBuffer(_ context.Context, b Buffer, offset, size uint64) ([]byte, error) {
	buf := b.(*softwareBuffer)
	if offset+size > uint64(len(buf.data)) {
		return nil, fmt.Errorf("read of %d bytes at %d exceeds buffer %q (%d bytes)",
			size, offset, buf.label, len(buf.data))
	}
	out := make([]byte, size)
	copy(out, buf.data[offset:offset+size])
	return out, nil
}

func (d *SoftwareDevice) Destroy() {}

type softwareBuffer struct {
	label     string
	data      []byte
	usage     BufferUsage
	destroyed bool
}

func (b *softwareBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *softwareBuffer) Usage() BufferUsage { return b.usage }
func (b *softwareBuffer) Destroy()           { b.destroyed = true; b.data = nil }

type softwarePipeline struct {
	entryPoint string
	kernel     Kernel
}

func (p *softwarePipeline) EntryPoint() string { return p.entryPoint }
func (p *softwarePipeline) Destroy()           {}

type softwareBindGroup struct {
	bindings map[uint32]*softwareBuffer
}

func (bg *softwareBindGroup) Destroy() {}

type dispatchCommand struct {
	pipeline *softwarePipeline
	group    *softwareBindGroup

	// Direct dispatch counts, or the args buffer for indirect dispatch.
	groups       [3]uint32
	indirectArgs *softwareBuffer
	indirectOff  uint64
}

func (c *dispatchCommand) run() error {
	if c.pipeline == nil {
		return fmt.Errorf("dispatch without a pipeline set")
	}
	if c.group == nil {
		return fmt.Errorf("dispatch without a bind group set")
	}
	groups := c.groups
	if c.indirectArgs != nil {
		// Indirect counts are read at execution time, so values written
		// by an earlier pass in this submission apply.
		a := c.indirectArgs.data[c.indirectOff:]
		groups[0] = binary.LittleEndian.Uint32(a[0:])
		groups[1] = binary.LittleEndian.Uint32(a[4:])
		groups[2] = binary.LittleEndian.Uint32(a[8:])
	}
	if groups[0] == 0 || groups[1] == 0 || groups[2] == 0 {
		return nil
	}
	bindings := make(map[uint32][]byte, len(c.group.bindings))
	for slot, buf := range c.group.bindings {
		if buf.destroyed {
			return fmt.Errorf("dispatch binds destroyed buffer %q", buf.label)
		}
		bindings[slot] = buf.data
	}
	c.pipeline.kernel(groups, bindings)
	return nil
}

type softwareCommands struct {
	dispatches []*dispatchCommand
}

type softwareEncoder struct {
	commands softwareCommands
}

func (e *softwareEncoder) BeginComputePass(label string) ComputePass {
	return &softwarePass{encoder: e}
}

func (e *softwareEncoder) Finish() CommandBuffer {
	cb := e.commands
	e.commands = softwareCommands{}
	return &cb
}

type softwarePass struct {
	encoder  *softwareEncoder
	pipeline *softwarePipeline
	group    *softwareBindGroup
}

func (p *softwarePass) SetPipeline(pl ComputePipeline) {
	p.pipeline = pl.(*softwarePipeline)
}

func (p *softwarePass) SetBindGroup(_ uint32, bg BindGroup) {
	p.group = bg.(*softwareBindGroup)
}

func (p *softwarePass) DispatchWorkgroups(x, y, z uint32) {
	p.encoder.commands.dispatches = append(p.encoder.commands.dispatches, &dispatchCommand{
		pipeline: p.pipeline,
		group:    p.group,
		groups:   [3]uint32{x, y, z},
	})
}

func (p *softwarePass) DispatchWorkgroupsIndirect(args Buffer, offset uint64) {
	p.encoder.commands.dispatches = append(p.encoder.commands.dispatches, &dispatchCommand{
		pipeline:     p.pipeline,
		group:        p.group,
		indirectArgs: args.(*softwareBuffer),
		indirectOff:  offset,
	})
}

func (p *softwarePass) End() {}
