package visbuf

import (
	"context"
	"encoding/binary"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/logger"
)

// Triangle holds three global vertex indices.
type Triangle struct {
	V0, V1, V2 uint32
}

// Reprojection is the deduplicated set of triangles seen in the last frame,
// one single-triangle draw per entry.
type Reprojection struct {
	Triangles []Triangle
	Draws     []gpu.DrawIndexedIndirect
	Invalid   int
}

// Indices flattens the triangles into an index buffer.
func (r *Reprojection) Indices() []uint32 {
	out := make([]uint32, 0, len(r.Triangles)*3)
	for _, t := range r.Triangles {
		out = append(out, t.V0, t.V1, t.V2)
	}
	return out
}

// MarshalIndices packs the index buffer little-endian.
func (r *Reprojection) MarshalIndices() []byte {
	buf := make([]byte, len(r.Triangles)*12)
	for i, t := range r.Triangles {
		binary.LittleEndian.PutUint32(buf[i*12:], t.V0)
		binary.LittleEndian.PutUint32(buf[i*12+4:], t.V1)
		binary.LittleEndian.PutUint32(buf[i*12+8:], t.V2)
	}
	return buf
}

// Reprojector gathers covered texels into a triangle draw set.
type Reprojector struct {
	Dispatcher *cull.Dispatcher
	Counter    *cull.Counter
}

// NewReprojector creates a reprojector. A nil dispatcher runs sequentially.
func NewReprojector(d *cull.Dispatcher) *Reprojector {
	if d == nil {
		d = cull.Sequential()
	}
	return &Reprojector{Dispatcher: d, Counter: &cull.Counter{}}
}

// Reproject decodes every covered texel, resolves its triangle through the
// runtime records and appends each distinct triangle once at an atomically
// assigned slot. Texels naming records or triangles that do not exist are
// counted as invalid and skipped.
func (rp *Reprojector) Reproject(ctx context.Context, buf *Buffer, records []gpu.RuntimeMeshletRecord, tables gpu.View) (*Reprojection, error) {
	rp.Counter.Reset()

	capacity := buf.Covered()
	tris := make([]Triangle, capacity)
	draws := make([]gpu.DrawIndexedIndirect, capacity)

	var (
		seen    sync.Map
		invalid cull.Counter
	)
	err := rp.Dispatcher.Dispatch(ctx, len(buf.IDs), func(i int) {
		v := buf.IDs[i]
		idx, tri, ok := Decode(v)
		if !ok {
			return
		}
		if int(idx) >= len(records) {
			invalid.Add(1)
			return
		}
		rec := records[idx]
		ml := &tables.Meshlets[rec.MeshletID]
		if tri >= ml.TriangleCount() {
			invalid.Add(1)
			return
		}
		if _, dup := seen.LoadOrStore(v, struct{}{}); dup {
			return
		}

		base := tables.Meshes[ml.MeshID].VertexOffset
		first := ml.IndexOffset + tri*3
		slot := rp.Counter.Add(1)
		tris[slot] = Triangle{
			V0: tables.Indices[first] + base,
			V1: tables.Indices[first+1] + base,
			V2: tables.Indices[first+2] + base,
		}
		draws[slot] = gpu.DrawIndexedIndirect{
			IndexCount:    3,
			InstanceCount: 1,
			FirstIndex:    slot * 3,
			FirstInstance: rec.InstanceID,
		}
	})
	if err != nil {
		return nil, err
	}

	n := rp.Counter.Load()
	out := &Reprojection{
		Triangles: tris[:n],
		Draws:     draws[:n],
		Invalid:   int(invalid.Load()),
	}
	logger.Debug("reprojection",
		zap.Int("covered", capacity),
		zap.Uint32("triangles", n),
		zap.Int("invalid", out.Invalid))
	return out, nil
}
