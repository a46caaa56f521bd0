package framegraph

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/pkg/math"
)

func names(passes []*Pass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name
	}
	return out
}

func TestCompileOrdersByResources(t *testing.T) {
	var g Graph
	g.Add(&Pass{Name: "hzb", Reads: []string{"depth"}, Writes: []string{"hzb"}})
	g.Add(&Pass{Name: "raster", Reads: []string{"draws"}, Writes: []string{"depth"}})
	g.Add(&Pass{Name: "cull", Reads: []string{"counters"}, Writes: []string{"draws"}})
	g.Add(&Pass{Name: "reset", Writes: []string{"counters"}})
	g.Add(&Pass{Name: "stats"})

	order, err := g.Compile()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"reset", "cull", "raster", "hzb", "stats"}
	if got := names(order); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestCompileWritersKeepDeclarationOrder(t *testing.T) {
	var g Graph
	g.Add(&Pass{Name: "b", Writes: []string{"x"}})
	g.Add(&Pass{Name: "a", Writes: []string{"x"}})
	g.Add(&Pass{Name: "read", Reads: []string{"x"}})

	order, err := g.Compile()
	if err != nil {
		t.Fatal(err)
	}
	if got := names(order); !reflect.DeepEqual(got, []string{"b", "a", "read"}) {
		t.Errorf("order = %v", got)
	}
}

func TestCompileCycle(t *testing.T) {
	var g Graph
	g.Add(&Pass{Name: "cull", Reads: []string{"hzb"}, Writes: []string{"draws"}})
	g.Add(&Pass{Name: "build", Reads: []string{"draws"}, Writes: []string{"hzb"}})

	if _, err := g.Compile(); !errors.Is(err, ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
}

func TestCompileDuplicate(t *testing.T) {
	var g Graph
	g.Add(&Pass{Name: "a"})
	g.Add(&Pass{Name: "a"})
	if _, err := g.Compile(); !errors.Is(err, ErrDuplicatePass) {
		t.Errorf("err = %v, want ErrDuplicatePass", err)
	}
}

func TestSchedulerSwapsHandles(t *testing.T) {
	s := NewScheduler()
	if s.Previous() != nil {
		t.Fatal("previous pyramid before first frame")
	}

	a := s.Build([]float32{0.5}, 1, 1)
	if s.Previous() != nil {
		t.Error("current pyramid visible as previous before swap")
	}
	s.Swap()
	if s.PreviousPyramid() != a || s.Previous().Load(0, 0, 0) != 0.5 {
		t.Error("previous pyramid is not last frame's")
	}

	b := s.Build([]float32{0.25}, 1, 1)
	if b == a {
		t.Error("build overwrote the previous pyramid")
	}
	if s.Previous().Load(0, 0, 0) != 0.5 {
		t.Error("previous pyramid changed during the frame")
	}
	s.Swap()
	if s.PreviousPyramid() != b || s.Frame() != 2 {
		t.Error("second swap did not expose the new pyramid")
	}

	c := s.Build([]float32{0.75}, 1, 1)
	if c != a {
		t.Error("third build did not reuse the first slot")
	}
}

func TestSchedulerResetCounters(t *testing.T) {
	var a, b cull.Counter
	a.Add(3)
	b.Add(5)
	NewScheduler().ResetCounters(&a, &b)
	if a.Load() != 0 || b.Load() != 0 {
		t.Error("counters not reset")
	}
}

// wallScene puts a large wall at z=0 and a small triangle behind it at z=-20.
func wallScene(t *testing.T) *gpu.Tables {
	t.Helper()
	tables := gpu.NewTables()
	wall := gpu.MeshPayload{
		Vertices:       []float32{-50, -50, 0, 50, -50, 0, 50, 50, 0, -50, 50, 0},
		BoundingSphere: [4]float32{0, 0, 0, 71},
		Meshlets: []gpu.MeshletPayload{{
			SelfBounds:   []float32{0, 0, 0, 71, 0},
			ParentBounds: []float32{0, 0, 0, 71, cull.NoParentError},
			Indices:      []uint32{0, 1, 2, 0, 2, 3},
		}},
	}
	small := gpu.MeshPayload{
		Vertices:       []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0},
		BoundingSphere: [4]float32{0, 0, 0, 1},
		Meshlets: []gpu.MeshletPayload{{
			SelfBounds:   []float32{0, 0, 0, 1, 0},
			ParentBounds: []float32{0, 0, 0, 1, cull.NoParentError},
			Indices:      []uint32{0, 1, 2},
		}},
	}
	for _, p := range []gpu.MeshPayload{wall, small} {
		if _, err := tables.AddMesh(p); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tables.AddInstance(gpu.InstancePayload{MeshID: 0, Model: math.Identity()}); err != nil {
		t.Fatal(err)
	}
	if _, err := tables.AddInstance(gpu.InstancePayload{MeshID: 1, Model: math.Translate(0, 0, -20)}); err != nil {
		t.Fatal(err)
	}
	return tables
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Render.Width = 64
	cfg.Render.Height = 36
	cfg.Render.Workers = 1
	return cfg
}

func TestRendererOrder(t *testing.T) {
	r, err := NewRenderer(testConfig(), gpu.NewTables())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{PassReset, PassCull, PassVisibility, PassReproject, PassHZB}
	if got := r.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestRendererOcclusionLagsOneFrame(t *testing.T) {
	r, err := NewRenderer(testConfig(), wallScene(t))
	if err != nil {
		t.Fatal(err)
	}
	cam := camera.New(64, 36)

	first, err := r.Render(context.Background(), cam)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Cull.VisibleInstances) != 2 {
		t.Errorf("frame 0 visible instances = %d, want 2 (no previous HZB)", len(first.Cull.VisibleInstances))
	}
	if first.HZB == nil || first.Triangles != 3 {
		t.Errorf("frame 0: hzb=%v triangles=%d", first.HZB != nil, first.Triangles)
	}
	if n := len(first.Reprojection.Triangles); n != 2 {
		t.Errorf("frame 0 reprojected %d triangles, want the 2 wall triangles", n)
	}

	second, err := r.Render(context.Background(), cam)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Cull.VisibleInstances) != 1 || second.Cull.VisibleInstances[0] != 0 {
		t.Errorf("frame 1 visible = %v, want only the wall", second.Cull.VisibleInstances)
	}
	if second.Cull.Stats.InstancesOccluded != 1 {
		t.Errorf("frame 1 occluded = %d, want 1", second.Cull.Stats.InstancesOccluded)
	}
	if second.Frame != 1 {
		t.Errorf("second frame number = %d", second.Frame)
	}
}

func TestRendererHZBDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Render.HZB = false
	r, err := NewRenderer(cfg, wallScene(t))
	if err != nil {
		t.Fatal(err)
	}
	cam := camera.New(64, 36)
	for i := 0; i < 2; i++ {
		res, err := r.Render(context.Background(), cam)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Cull.VisibleInstances) != 2 {
			t.Errorf("frame %d visible = %d, want 2", i, len(res.Cull.VisibleInstances))
		}
	}
}
