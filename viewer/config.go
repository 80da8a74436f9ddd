package viewer

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Defaults used when a config file leaves a section or field unset.
const (
	// DefaultDenseVoxelLimit is the largest volume (in voxels) kept in a
	// single flat array; larger volumes use the sparse chunked backend.
	DefaultDenseVoxelLimit = int64(128) << 20

	// DefaultChunkEdge is the cubic chunk edge length for the sparse backend.
	DefaultChunkEdge = int32(64)

	// DefaultUndoDepth bounds the edit history; the oldest op is evicted
	// once the bound is exceeded.
	DefaultUndoDepth = 512

	// DefaultLevelsPerBatch is the number of BFS levels encoded per GPU
	// submission during region growing.
	DefaultLevelsPerBatch = 128

	// DefaultSliceCacheBytes sizes the rendered-slice cache.
	DefaultSliceCacheBytes = 64 << 20
)

// MaskConfig controls the mask volume storage backend.
type MaskConfig struct {
	DenseVoxelLimit int64 `toml:"dense_voxel_limit"`
	ChunkEdge       int32 `toml:"chunk_edge"`
}

// OpsConfig controls edit history.
type OpsConfig struct {
	UndoDepth int `toml:"undo_depth"`
}

// GPUConfig bounds GPU compute dispatches.  Zero values mean "use the
// device's reported limits".
type GPUConfig struct {
	MaxStorageBindingSize uint64 `toml:"max_storage_binding_size"`
	MaxWorkgroupsPerDim   uint32 `toml:"max_workgroups_per_dim"`
	LevelsPerBatch        int    `toml:"levels_per_batch"`
}

// CacheConfig sizes in-memory caches.
type CacheConfig struct {
	SliceCacheBytes int `toml:"slice_cache_bytes"`
}

// Config is the TOML-loadable configuration for the segmentation engine.
type Config struct {
	Log   LogConfig   `toml:"log"`
	Mask  MaskConfig  `toml:"mask"`
	Ops   OpsConfig   `toml:"ops"`
	GPU   GPUConfig   `toml:"gpu"`
	Cache CacheConfig `toml:"cache"`
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		Mask:  MaskConfig{DenseVoxelLimit: DefaultDenseVoxelLimit, ChunkEdge: DefaultChunkEdge},
		Ops:   OpsConfig{UndoDepth: DefaultUndoDepth},
		GPU:   GPUConfig{LevelsPerBatch: DefaultLevelsPerBatch},
		Cache: CacheConfig{SliceCacheBytes: DefaultSliceCacheBytes},
	}
}

// LoadConfig reads a TOML config file, filling unset fields with defaults.
func LoadConfig(filename string) (Config, error) {
	c := DefaultConfig()
	if filename == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return c, fmt.Errorf("could not decode TOML config %q: %v", filename, err)
	}
	c.fillDefaults()
	return c, nil
}

func (c *Config) fillDefaults() {
	if c.Mask.DenseVoxelLimit <= 0 {
		c.Mask.DenseVoxelLimit = DefaultDenseVoxelLimit
	}
	if c.Mask.ChunkEdge <= 0 {
		c.Mask.ChunkEdge = DefaultChunkEdge
	}
	if c.Ops.UndoDepth <= 0 {
		c.Ops.UndoDepth = DefaultUndoDepth
	}
	if c.GPU.LevelsPerBatch <= 0 {
		c.GPU.LevelsPerBatch = DefaultLevelsPerBatch
	}
	if c.Cache.SliceCacheBytes <= 0 {
		c.Cache.SliceCacheBytes = DefaultSliceCacheBytes
	}
}
