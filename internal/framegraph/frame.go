package framegraph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/internal/visbuf"
)

// Resource names shared by the frame's passes.
const (
	ResCounters   = "counters"
	ResTables     = "tables"
	ResHZBPrev    = "hzb.previous"
	ResHZBCurrent = "hzb.current"
	ResVisible    = "visible_instances"
	ResRecords    = "runtime_meshlets"
	ResDraws      = "draw_commands"
	ResVisibility = "visibility"
	ResDepth      = "depth"
	ResReproject  = "reprojected"
)

// Pass names in their required order.
const (
	PassReset      = "reset"
	PassCull       = "cull"
	PassVisibility = "visibility"
	PassReproject  = "reproject"
	PassHZB        = "hzb"
)

// FrameResult holds one frame's outputs.
type FrameResult struct {
	Frame        uint64
	Cull         *cull.Result
	Triangles    int
	Reprojection *visbuf.Reprojection
	Buffer       *visbuf.Buffer
	HZB          *visbuf.Pyramid
	Duration     time.Duration
}

// Renderer runs frames over a set of descriptor tables.
type Renderer struct {
	tables      *gpu.Tables
	pipeline    *cull.Pipeline
	reprojector *visbuf.Reprojector
	scheduler   *Scheduler
	buffer      *visbuf.Buffer
	hzb         bool
	order       []*Pass
	log         *zap.Logger

	// per-frame state written by passes
	cam    *camera.Camera
	view   gpu.View
	result *FrameResult
}

// NewRenderer builds the frame graph for the configured viewport.
func NewRenderer(cfg *config.Config, tables *gpu.Tables) (*Renderer, error) {
	d := &cull.Dispatcher{Workers: cfg.Render.Workers, GroupSize: cull.DefaultGroupSize}
	opts := cull.Options{
		LODThreshold: cfg.Cull.ErrorThresholdPx,
		NearMargin:   cfg.Cull.NearPlaneMargin,
		MaxMeshlets:  cfg.Cull.MaxMeshlets,
		Occlusion:    cfg.Render.HZB,
	}
	r := &Renderer{
		tables:      tables,
		pipeline:    cull.NewPipeline(opts, d),
		reprojector: visbuf.NewReprojector(d),
		scheduler:   NewScheduler(),
		buffer:      visbuf.NewBuffer(cfg.Render.Width, cfg.Render.Height),
		hzb:         cfg.Render.HZB,
		log:         logger.Named("frame"),
	}

	var g Graph
	g.Add(&Pass{Name: PassReset, Writes: []string{ResCounters}, Run: r.runReset})
	g.Add(&Pass{
		Name:   PassCull,
		Reads:  []string{ResCounters, ResTables, ResHZBPrev},
		Writes: []string{ResVisible, ResRecords, ResDraws},
		Run:    r.runCull,
	})
	g.Add(&Pass{
		Name:   PassVisibility,
		Reads:  []string{ResTables, ResRecords, ResDraws},
		Writes: []string{ResVisibility, ResDepth},
		Run:    r.runVisibility,
	})
	g.Add(&Pass{
		Name:   PassReproject,
		Reads:  []string{ResCounters, ResTables, ResRecords, ResVisibility},
		Writes: []string{ResReproject},
		Run:    r.runReproject,
	})
	g.Add(&Pass{Name: PassHZB, Reads: []string{ResDepth}, Writes: []string{ResHZBCurrent}, Run: r.runHZB})

	order, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling frame graph: %w", err)
	}
	r.order = order
	return r, nil
}

// Order returns the compiled pass names.
func (r *Renderer) Order() []string {
	names := make([]string, len(r.order))
	for i, p := range r.order {
		names[i] = p.Name
	}
	return names
}

// Scheduler returns the HZB scheduler.
func (r *Renderer) Scheduler() *Scheduler { return r.scheduler }

// Render runs one frame for the camera and swaps the HZB handles.
func (r *Renderer) Render(ctx context.Context, cam *camera.Camera) (*FrameResult, error) {
	start := time.Now()
	r.cam = cam
	r.view = r.tables.Snapshot()
	r.result = &FrameResult{Frame: r.scheduler.Frame(), Buffer: r.buffer}

	for _, p := range r.order {
		if err := p.Run(ctx); err != nil {
			return nil, fmt.Errorf("pass %s: %w", p.Name, err)
		}
	}
	r.scheduler.Swap()

	res := r.result
	res.Duration = time.Since(start)
	r.log.Debug("frame",
		zap.Uint64("frame", res.Frame),
		zap.Int("instances", len(res.Cull.VisibleInstances)),
		zap.Int("meshlets", len(res.Cull.Records)),
		zap.Int("covered", r.buffer.Covered()),
		zap.Int("reprojected", len(res.Reprojection.Triangles)),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (r *Renderer) runReset(ctx context.Context) error {
	r.scheduler.ResetCounters(
		r.pipeline.Counter(gpu.CounterInstances),
		r.pipeline.Counter(gpu.CounterMeshlets),
		r.reprojector.Counter,
	)
	r.buffer.Clear()
	return nil
}

func (r *Renderer) runCull(ctx context.Context) error {
	var prev cull.HZB
	if r.hzb {
		prev = r.scheduler.Previous()
	}
	res, err := r.pipeline.Run(ctx, cull.NewFrame(r.cam, r.view, prev))
	if err != nil {
		return err
	}
	r.result.Cull = res
	return nil
}

func (r *Renderer) runVisibility(ctx context.Context) error {
	rast := &visbuf.Rasterizer{ViewProj: r.cam.ViewProjection()}
	n, err := rast.Draw(ctx, r.buffer, r.result.Cull.Records, r.result.Cull.Draws, r.view)
	if err != nil {
		return err
	}
	r.result.Triangles = n
	return nil
}

func (r *Renderer) runReproject(ctx context.Context) error {
	rep, err := r.reprojector.Reproject(ctx, r.buffer, r.result.Cull.Records, r.view)
	if err != nil {
		return err
	}
	r.result.Reprojection = rep
	return nil
}

func (r *Renderer) runHZB(ctx context.Context) error {
	r.result.HZB = r.scheduler.Build(r.buffer.Depth, r.buffer.Width, r.buffer.Height)
	return nil
}
