package cull

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/pkg/math"
)

// Options configures the culling pipeline.
type Options struct {
	LODThreshold float32
	NearMargin   float32
	MaxMeshlets  int
	Occlusion    bool
}

// DefaultOptions returns the standard culling parameters.
func DefaultOptions() Options {
	return Options{
		LODThreshold: DefaultLODThreshold,
		NearMargin:   DefaultNearMargin,
		MaxMeshlets:  1 << 20,
		Occlusion:    true,
	}
}

// Frame is the per-frame input of the culling passes.
type Frame struct {
	View          math.Mat4
	Projection    math.Mat4
	Eye           math.Vec3
	Near, Far     float32
	VerticalScale float32
	Tables        gpu.View
	HZB           HZB // previous frame's pyramid; nil disables occlusion
}

// NewFrame builds a frame from a camera.
func NewFrame(cam *camera.Camera, tables gpu.View, hzb HZB) Frame {
	return Frame{
		View:          cam.ViewMatrix(),
		Projection:    cam.ProjectionMatrix(),
		Eye:           cam.Position,
		Near:          cam.Near,
		Far:           cam.Far,
		VerticalScale: cam.VerticalScalingFactor(),
		Tables:        tables,
		HZB:           hzb,
	}
}

// Stats counts per-pass outcomes.
type Stats struct {
	InstancesTested   int
	InstancesVisible  int
	InstancesFrustum  int
	InstancesOccluded int
	MeshletsTested    int
	MeshletsVisible   int
	MeshletsFrustum   int
	MeshletsOccluded  int
	MeshletsLOD       int
	Overflow          int
}

// Result holds the compacted outputs of one frame.
type Result struct {
	VisibleInstances []uint32
	Records          []gpu.RuntimeMeshletRecord
	Draws            []gpu.DrawIndexedIndirect
	Counters         [gpu.CounterCount]uint32
	Stats            Stats
}

// Pipeline runs the instance pass followed by the meshlet pass.
type Pipeline struct {
	opts       Options
	dispatcher *Dispatcher
	counters   [gpu.CounterCount]Counter
	log        *zap.Logger
}

// NewPipeline creates a pipeline. A nil dispatcher runs sequentially.
func NewPipeline(opts Options, d *Dispatcher) *Pipeline {
	if d == nil {
		d = Sequential()
	}
	if opts.MaxMeshlets <= 0 {
		opts.MaxMeshlets = DefaultOptions().MaxMeshlets
	}
	opts.MaxMeshlets = min(opts.MaxMeshlets, gpu.MaxRuntimeMeshlets)
	return &Pipeline{opts: opts, dispatcher: d, log: logger.Named("cull")}
}

// Counter returns one of the pipeline's compaction counters.
func (p *Pipeline) Counter(slot int) *Counter { return &p.counters[slot] }

type passStats struct {
	frustum, occluded, lod, overflow atomic.Int32
}

// Run culls the frame's instances and meshlets.
func (p *Pipeline) Run(ctx context.Context, f Frame) (*Result, error) {
	planes := Planes(f.Projection.Mul(f.View).FrustumPlanes())
	occ := &Occluder{
		View:       f.View,
		P00:        f.Projection[0],
		P11:        f.Projection[5],
		Near:       f.Near,
		Far:        f.Far,
		NearMargin: p.opts.NearMargin,
	}
	if p.opts.Occlusion {
		occ.HZB = f.HZB
	}

	res := &Result{}
	visible, err := p.instancePass(ctx, f, planes.Outward(), occ, &res.Stats)
	if err != nil {
		return nil, fmt.Errorf("instance pass: %w", err)
	}
	res.VisibleInstances = visible

	records, draws, err := p.meshletPass(ctx, f, visible, planes, occ, &res.Stats)
	if err != nil {
		return nil, fmt.Errorf("meshlet pass: %w", err)
	}
	res.Records = records
	res.Draws = draws
	for i := range p.counters {
		res.Counters[i] = p.counters[i].Load()
	}

	p.log.Debug("cull",
		zap.Int("instances", res.Stats.InstancesTested),
		zap.Int("instances_visible", res.Stats.InstancesVisible),
		zap.Int("meshlets", res.Stats.MeshletsTested),
		zap.Int("meshlets_visible", res.Stats.MeshletsVisible),
		zap.Int("occluded", res.Stats.InstancesOccluded+res.Stats.MeshletsOccluded),
		zap.Int("lod_rejected", res.Stats.MeshletsLOD))
	return res, nil
}

func (p *Pipeline) instancePass(ctx context.Context, f Frame, outward Planes, occ *Occluder, st *Stats) ([]uint32, error) {
	instances := f.Tables.Instances
	counter := &p.counters[gpu.CounterInstances]
	counter.Reset()

	out := make([]uint32, len(instances))
	var ps passStats
	err := p.dispatcher.Dispatch(ctx, len(instances), func(i int) {
		inst := &instances[i]
		mesh := &f.Tables.Meshes[inst.MeshID]
		c, r := WorldSphere(inst.Model, mesh.Bounds)
		if !IsPassFrustumInstance(outward, c, r) {
			ps.frustum.Add(1)
			return
		}
		if !occ.IsVisible(c, r) {
			ps.occluded.Add(1)
			return
		}
		out[counter.Add(1)] = uint32(i)
	})
	if err != nil {
		return nil, err
	}

	n := int(counter.Load())
	st.InstancesTested = len(instances)
	st.InstancesVisible = n
	st.InstancesFrustum = int(ps.frustum.Load())
	st.InstancesOccluded = int(ps.occluded.Load())
	return out[:n], nil
}

type meshletItem struct {
	instance uint32
	meshlet  uint32
}

func (p *Pipeline) meshletPass(ctx context.Context, f Frame, visible []uint32, inward Planes, occ *Occluder, st *Stats) ([]gpu.RuntimeMeshletRecord, []gpu.DrawIndexedIndirect, error) {
	var items []meshletItem
	for _, inst := range visible {
		r := f.Tables.Ranges[f.Tables.Instances[inst].MeshID]
		for m := r.Offset; m < r.Offset+r.Count; m++ {
			items = append(items, meshletItem{instance: inst, meshlet: m})
		}
	}

	counter := &p.counters[gpu.CounterMeshlets]
	counter.Reset()

	capacity := min(len(items), p.opts.MaxMeshlets)
	records := make([]gpu.RuntimeMeshletRecord, capacity)
	draws := make([]gpu.DrawIndexedIndirect, capacity)
	var ps passStats

	err := p.dispatcher.Dispatch(ctx, len(items), func(i int) {
		it := items[i]
		inst := &f.Tables.Instances[it.instance]
		ml := &f.Tables.Meshlets[it.meshlet]
		scale := inst.Model.MaxAxisScale()

		c, r := WorldSphere(inst.Model, ml.SelfBounds)
		if !IsPassFrustum(inward, c, r) {
			ps.frustum.Add(1)
			return
		}
		if !occ.IsVisible(c, r) {
			ps.occluded.Add(1)
			return
		}

		pc, pr := WorldSphere(inst.Model, ml.ParentBounds)
		selfPx := ProjectError(ml.SelfError*scale, c.Distance(f.Eye)-r, f.Near, f.VerticalScale)
		parentPx := ProjectError(parentError(ml.ParentError, scale), pc.Distance(f.Eye)-pr, f.Near, f.VerticalScale)
		if !IsSelectedLOD(selfPx, parentPx, p.opts.LODThreshold) {
			ps.lod.Add(1)
			return
		}

		slot := counter.Add(1)
		if int(slot) >= capacity {
			ps.overflow.Add(1)
			return
		}
		records[slot] = gpu.RuntimeMeshletRecord{InstanceID: it.instance, MeshletID: it.meshlet}
		draws[slot] = gpu.DrawIndexedIndirect{
			IndexCount:    ml.IndexCount,
			InstanceCount: 1,
			FirstIndex:    ml.IndexOffset,
			VertexOffset:  int32(f.Tables.Meshes[ml.MeshID].VertexOffset),
			FirstInstance: slot,
		}
	})
	if err != nil {
		return nil, nil, err
	}

	n := min(int(counter.Load()), capacity)
	st.MeshletsTested = len(items)
	st.MeshletsVisible = n
	st.MeshletsFrustum = int(ps.frustum.Load())
	st.MeshletsOccluded = int(ps.occluded.Load())
	st.MeshletsLOD = int(ps.lod.Load())
	st.Overflow = int(ps.overflow.Load())
	if st.Overflow > 0 {
		p.log.Warn("meshlet output overflow", zap.Int("dropped", st.Overflow), zap.Int("capacity", capacity))
	}
	return records[:n], draws[:n], nil
}

func parentError(e, scale float32) float32 {
	if e >= NoParentError {
		return e
	}
	return e * scale
}
