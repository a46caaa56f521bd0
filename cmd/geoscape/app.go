package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/debug"
	"github.com/Faultbox/geoscape/internal/framegraph"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/lod"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/internal/shadergen"
	"github.com/Faultbox/geoscape/internal/stream"
	"github.com/Faultbox/geoscape/pkg/geo"
	gmath "github.com/Faultbox/geoscape/pkg/math"
	"github.com/Faultbox/geoscape/pkg/quadtree"
)

const (
	startHeight = 2.0e7
	patchQuads  = 16
	patchPitch  = 2.25
)

// newDeviceUpload mirrors the descriptor tables into device buffers. Builds
// with the gl tag set it; otherwise frames stay CPU only.
var newDeviceUpload func(specs []gpu.BufferSpec) (upload func(gpu.View) error, release func(), err error)

type app struct {
	cfg *config.Config
	log *zap.Logger

	globe    *camera.GlobeCamera
	orbit    *camera.OrbitCamera
	selector *lod.Selector
	streamer *stream.Streamer
	tables   *gpu.Tables
	renderer *framegraph.Renderer
	dumper   *debug.Dumper

	patch     uint32
	instances map[lod.TileID]uint32

	upload  func(gpu.View) error
	release func()
}

func capacity(cfg *config.Config) gpu.Capacity {
	return gpu.Capacity{
		MaxMeshlets:  cfg.Cull.MaxMeshlets,
		MaxTriangles: cfg.Render.Width * cfg.Render.Height,
	}
}

func newApp(cfg *config.Config) (*app, error) {
	var schema *quadtree.Schema
	switch cfg.LOD.Schema {
	case "geographic":
		schema = quadtree.NewGeographicSchema(geo.WGS84)
	default:
		schema = quadtree.NewWebMercatorSchema(geo.WGS84)
	}

	selector := lod.NewSelector(schema, lod.Options{
		MaxLevel:       cfg.LOD.MaxLevel,
		SSEThreshold:   cfg.LOD.SSEThreshold,
		SamplesPerTile: cfg.LOD.SamplesPerTile,
	})
	streamer := stream.New(stream.SyntheticFetcher{}, cfg.Stream)
	selector.AddListener(streamer)

	tables := gpu.NewTables()
	patch, err := tables.AddMesh(patchMesh(patchQuads))
	if err != nil {
		return nil, fmt.Errorf("building patch mesh: %w", err)
	}

	renderer, err := framegraph.NewRenderer(cfg, tables)
	if err != nil {
		return nil, err
	}
	dumper, err := debug.NewDumper(cfg.Debug)
	if err != nil {
		return nil, err
	}

	globe := camera.NewGlobeCamera(geo.WGS84, geo.GeodeticCoordinate{Longitude: 37.6, Latitude: 55.75}, startHeight, cfg.Render.Width, cfg.Render.Height)
	globe.SetFovY(cfg.Render.FovDegrees * math.Pi / 180)

	orbit := camera.NewOrbitCamera()
	orbit.RotationX = -0.15

	var upload func(gpu.View) error
	var release func()
	if newDeviceUpload != nil {
		upload, release, err = newDeviceUpload(gpu.BufferSpecs(tables.Snapshot(), capacity(cfg)))
		if err != nil {
			return nil, fmt.Errorf("device buffers: %w", err)
		}
	}

	return &app{
		cfg:       cfg,
		log:       logger.Named("app"),
		globe:     globe,
		orbit:     orbit,
		selector:  selector,
		streamer:  streamer,
		tables:    tables,
		renderer:  renderer,
		dumper:    dumper,
		patch:     patch,
		instances: make(map[lod.TileID]uint32),
		upload:    upload,
		release:   release,
	}, nil
}

// compileShaders validates the compute shaders. naga does not cover every
// WGSL feature yet, so failures are reported and the CPU passes carry on.
func (a *app) compileShaders() {
	for _, b := range []*shadergen.Builder{shadergen.CullShader(), shadergen.ReprojectShader()} {
		sh, err := b.Build()
		if err != nil {
			a.log.Warn("shader not compiled", zap.Error(err))
			continue
		}
		a.log.Info("shader compiled",
			zap.String("label", sh.Label),
			zap.Int("spirv_bytes", len(sh.SPIRV)),
			zap.Int("bind_groups", len(sh.Layouts)))
	}
}

func (a *app) run(ctx context.Context) error {
	a.compileShaders()
	if a.release != nil {
		defer a.release()
	}

	for frame := 0; frame < a.cfg.Render.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if frame > 0 {
			a.globe.HandleZoom(2)
			a.globe.HandlePan(0.05, 0)
		}

		tiles, err := a.selector.OnCameraChanged(ctx, a.globe.State())
		if err != nil && !errors.Is(err, lod.ErrWalkInFlight) {
			return fmt.Errorf("selecting tiles: %w", err)
		}
		a.streamer.Wait()
		added, err := a.spawnInstances()
		if err != nil {
			return err
		}
		if a.upload != nil && added > 0 {
			if err := a.upload(a.tables.Snapshot()); err != nil {
				return fmt.Errorf("uploading tables: %w", err)
			}
		}

		res, err := a.renderer.Render(ctx, a.localCamera())
		if err != nil {
			return err
		}
		a.logFrame(res, len(tiles), added)

		if a.dumper != nil && a.cfg.Debug.DumpEvery > 0 && frame%a.cfg.Debug.DumpEvery == 0 {
			if err := a.dumper.WriteFrame(res.Frame, res.Buffer, res.HZB); err != nil {
				return fmt.Errorf("dumping frame %d: %w", res.Frame, err)
			}
		}
	}
	return a.checkBuffers()
}

// spawnInstances adds an instance for every newly resident tile.
func (a *app) spawnInstances() (int, error) {
	added := 0
	for _, id := range a.streamer.ResidentTiles() {
		if _, ok := a.instances[id]; ok {
			continue
		}
		data, ok := a.streamer.Resident(id)
		if !ok {
			continue
		}
		decoded, err := stream.DecodeSynthetic(data)
		if err != nil {
			return added, fmt.Errorf("tile %s: %w", id, err)
		}
		slot := len(a.instances)
		inst, err := a.tables.AddInstance(gpu.InstancePayload{
			ID:     uint32(slot),
			MeshID: a.patch,
			Model:  [16]float32(tileModel(decoded, slot)),
		})
		if err != nil {
			return added, err
		}
		a.instances[id] = inst
		added++
	}
	return added, nil
}

// tileModel lays tiles out on a square grid, deeper levels slightly in
// front so they overlap and occlude their ancestors.
func tileModel(id lod.TileID, slot int) gmath.Mat4 {
	cols := 8
	x := float32(slot%cols-cols/2) * patchPitch
	y := float32(slot/cols-cols/2) * patchPitch
	z := float32(id.Level) * 0.05
	spin := gmath.QuatFromAxisAngle(gmath.Vec3{Z: 1}, float32(id.X%4)*math.Pi/2)
	return gmath.TRS(gmath.Vec3{X: x, Y: y, Z: z}, spin, 1)
}

// localCamera frames the instance grid, pulling back as it grows and
// drifting around it a little every frame.
func (a *app) localCamera() *camera.Camera {
	cam := camera.New(a.cfg.Render.Width, a.cfg.Render.Height)
	cam.FovY = float32(a.cfg.Render.FovDegrees * math.Pi / 180)
	cam.Near = float32(a.cfg.Render.Near)
	cam.Far = float32(a.cfg.Render.Far)

	rows := 1 + len(a.instances)/8
	a.orbit.Distance = min(max(6+float32(rows)*patchPitch, a.orbit.MinDistance), a.orbit.MaxDistance)
	a.orbit.HandleDrag(8, 0)
	a.orbit.Apply(cam)
	return cam
}

func (a *app) logFrame(res *framegraph.FrameResult, selected, added int) {
	st := a.streamer.Stats()
	a.log.Info("frame",
		zap.Uint64("frame", res.Frame),
		zap.Float64("height", a.globe.Height()),
		zap.Int("selected_tiles", selected),
		zap.Int("resident_tiles", a.streamer.Cache().Len()),
		zap.Int("new_instances", added),
		zap.Int64("fetch_failed", st.Failed),
		zap.Int("visible_instances", res.Cull.Stats.InstancesVisible),
		zap.Int("visible_meshlets", res.Cull.Stats.MeshletsVisible),
		zap.Int("occluded_meshlets", res.Cull.Stats.MeshletsOccluded),
		zap.Int("triangles", res.Triangles),
		zap.Int("reprojected", len(res.Reprojection.Triangles)),
		zap.Duration("took", res.Duration))
}

// checkBuffers sizes the device buffers for the final scene and checks them
// against the WebGPU default limits.
func (a *app) checkBuffers() error {
	specs := gpu.BufferSpecs(a.tables.Snapshot(), capacity(a.cfg))
	var total uint64
	for _, s := range specs {
		total += s.Size
	}
	a.log.Info("device buffers", zap.Int("buffers", len(specs)), zap.Uint64("bytes", total))
	return gpu.ValidateSpecs(specs, gputypes.DefaultLimits())
}
