package gpu

import (
	"encoding/binary"
	"math"
)

// Shader entry points and their bind slots.  The Go kernels below and
// the WGSL in shaders/region_grow.wgsl must stay in lockstep.
const (
	entryBfsStep     = "bfs_step"
	entryPrepareNext = "prepare_next"

	workgroupSize = 64

	bindParams   = 0
	bindValues   = 1
	bindVisited  = 2
	bindFrontier = 3
	bindState    = 4
	bindIndirect = 5

	paramsBytes   = 16
	stateBytes    = 12
	indirectBytes = 12
)

func u32At(b []byte, i int) uint32     { return binary.LittleEndian.Uint32(b[i*4:]) }
func putU32At(b []byte, i int, v uint32) { binary.LittleEndian.PutUint32(b[i*4:], v) }
func f32At(b []byte, i int) float32    { return math.Float32frombits(u32At(b, i)) }

// bfsStepKernel mirrors the bfs_step WGSL entry point: each invocation
// expands one frontier pixel of the current level [levelStart, levelEnd)
// into unvisited, tolerance-passing 4-neighbors, claiming them in the
// visited bitmap and appending them to the frontier.
func bfsStepKernel(groups [3]uint32, bindings map[uint32][]byte) {
	params := bindings[bindParams]
	values := bindings[bindValues]
	visited := bindings[bindVisited]
	frontier := bindings[bindFrontier]
	state := bindings[bindState]

	width := u32At(params, 0)
	height := u32At(params, 1)
	tolerance := f32At(params, 2)
	seedValue := f32At(params, 3)

	levelStart := u32At(state, 0)
	levelEnd := u32At(state, 1)

	tryClaim := func(q uint32) {
		word, bit := q/32, uint32(1)<<(q%32)
		old := u32At(visited, int(word))
		if old&bit != 0 {
			return
		}
		putU32At(visited, int(word), old|bit)
		d := f32At(values, int(q)) - seedValue
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			slot := u32At(state, 2)
			putU32At(state, 2, slot+1)
			putU32At(frontier, int(slot), q)
		}
	}

	invocations := groups[0] * workgroupSize
	for gid := uint32(0); gid < invocations; gid++ {
		idx := levelStart + gid
		if idx >= levelEnd {
			continue
		}
		p := u32At(frontier, int(idx))
		x, y := p%width, p/width
		if x > 0 {
			tryClaim(p - 1)
		}
		if x+1 < width {
			tryClaim(p + 1)
		}
		if y > 0 {
			tryClaim(p - width)
		}
		if y+1 < height {
			tryClaim(p + width)
		}
	}
}

// prepareNextKernel mirrors the prepare_next WGSL entry point: a single
// invocation advances the level window and rewrites the indirect
// dispatch arguments for the next bfs_step.
func prepareNextKernel(_ [3]uint32, bindings map[uint32][]byte) {
	state := bindings[bindState]
	indirect := bindings[bindIndirect]

	levelEnd := u32At(state, 1)
	nextEnd := u32At(state, 2)
	putU32At(state, 0, levelEnd)
	putU32At(state, 1, nextEnd)

	count := nextEnd - levelEnd
	putU32At(indirect, 0, (count+workgroupSize-1)/workgroupSize)
	putU32At(indirect, 1, 1)
	putU32At(indirect, 2, 1)
}
