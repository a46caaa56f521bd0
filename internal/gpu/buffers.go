package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Buffer names shared by the culling, visibility and reprojection passes.
const (
	BufferInstances     = "instances"
	BufferMeshes        = "meshes"
	BufferMeshlets      = "meshlets"
	BufferIndices       = "indices"
	BufferPositions     = "positions"
	BufferVisibleInst   = "visible_instances"
	BufferRecords       = "runtime_meshlets"
	BufferDraws         = "draw_commands"
	BufferCounters      = "counters"
	BufferReprojIndices = "reprojected_indices"
	BufferReprojDraws   = "reprojected_draws"
	BufferReadback      = "readback"
)

// BufferSpec sizes and flags one GPU buffer.
type BufferSpec struct {
	Name  string
	Size  uint64
	Usage gputypes.BufferUsage
}

// Capacity bounds the per-frame outputs.
type Capacity struct {
	MaxMeshlets  int
	MaxTriangles int
}

// BufferSpecs lists every buffer the frame needs for the given tables.
func BufferSpecs(v View, c Capacity) []BufferSpec {
	storageIn := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	return []BufferSpec{
		{BufferInstances, align(len(v.Instances) * InstanceStride), storageIn},
		{BufferMeshes, align(len(v.Meshes) * MeshStride), storageIn},
		{BufferMeshlets, align(len(v.Meshlets) * MeshletStride), storageIn},
		{BufferIndices, align(len(v.Indices) * 4), storageIn | gputypes.BufferUsageIndex},
		{BufferPositions, align(len(v.Positions) * 16), storageIn | gputypes.BufferUsageVertex},
		{BufferVisibleInst, align(len(v.Instances) * 4), gputypes.BufferUsageStorage},
		{BufferRecords, align(c.MaxMeshlets * RuntimeRecordSize), gputypes.BufferUsageStorage | gputypes.BufferUsageVertex},
		{BufferDraws, align(c.MaxMeshlets * DrawCommandStride), gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect},
		{BufferCounters, align(CounterCount * 4), gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc},
		{BufferReprojIndices, align(c.MaxTriangles * 12), gputypes.BufferUsageStorage | gputypes.BufferUsageIndex},
		{BufferReprojDraws, align(c.MaxTriangles * DrawCommandStride), gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect},
		{BufferReadback, align(CounterCount * 4), gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	}
}

// Counter slots in the counters buffer.
const (
	CounterInstances = iota
	CounterMeshlets
	CounterTriangles
	CounterCount
)

// ValidateSpecs checks buffer sizes against device limits.
func ValidateSpecs(specs []BufferSpec, limits gputypes.Limits) error {
	for _, s := range specs {
		if s.Size > limits.MaxBufferSize {
			return fmt.Errorf("buffer %s: %d bytes exceeds limit %d", s.Name, s.Size, limits.MaxBufferSize)
		}
	}
	return nil
}

// align rounds up to 16 bytes with a 16-byte minimum, as zero-sized storage
// bindings are invalid.
func align(n int) uint64 {
	if n <= 0 {
		return 16
	}
	return uint64((n + 15) &^ 15)
}
