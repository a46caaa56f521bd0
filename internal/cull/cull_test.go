package cull

import (
	"context"
	"errors"
	gomath "math"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/pkg/math"
)

func testCamera() *camera.Camera {
	cam := camera.New(320, 180)
	cam.Position = math.Vec3{X: 0, Y: 0, Z: 10}
	cam.Target = math.Vec3{}
	return cam
}

func TestCounterFetchAdd(t *testing.T) {
	var c Counter
	if got := c.Add(1); got != 0 {
		t.Errorf("first Add = %d, want 0", got)
	}
	if got := c.Add(3); got != 1 {
		t.Errorf("second Add = %d, want 1", got)
	}
	if c.Load() != 4 {
		t.Errorf("Load = %d, want 4", c.Load())
	}
	c.Reset()
	if c.Load() != 0 {
		t.Errorf("Load after Reset = %d", c.Load())
	}
}

func TestFrustumTests(t *testing.T) {
	cam := testCamera()
	inward := Planes(cam.FrustumPlanes())
	outward := inward.Outward()

	behindFar := math.Vec3{X: 0, Y: 0, Z: cam.Position.Z - cam.Far - 1000}
	tests := []struct {
		name   string
		center math.Vec3
		radius float32
		want   bool
	}{
		{"origin point", math.Vec3{}, 0, true},
		{"behind far plane", behindFar, 1, false},
		{"behind camera", math.Vec3{X: 0, Y: 0, Z: 20}, 1, false},
		{"far left", math.Vec3{X: -1000, Y: 0, Z: 0}, 1, false},
		{"straddling left", math.Vec3{X: -9, Y: 0, Z: 0}, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPassFrustum(inward, tt.center, tt.radius); got != tt.want {
				t.Errorf("IsPassFrustum = %v, want %v", got, tt.want)
			}
			if got := IsPassFrustumInstance(outward, tt.center, tt.radius); got != tt.want {
				t.Errorf("IsPassFrustumInstance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorldSphereScalesRadius(t *testing.T) {
	model := math.Translate(1, 2, 3).Mul(math.Scale(2, 3, 1))
	c, r := WorldSphere(model, gpu.Sphere{Center: math.Vec3{X: 1}, Radius: 1})
	if c.X != 3 || c.Y != 2 || c.Z != 3 {
		t.Errorf("center = %+v, want (3,2,3)", c)
	}
	if gomath.Abs(float64(r-3)) > 1e-6 {
		t.Errorf("radius = %v, want 3", r)
	}
}

func TestProjectError(t *testing.T) {
	if got := ProjectError(1, 10, 0.1, 200); gomath.Abs(float64(got-10)) > 1e-5 {
		t.Errorf("ProjectError = %v, want 10", got)
	}
	// Distances inside the near plane clamp to it.
	if got, want := ProjectError(1, 0, 0.5, 100), ProjectError(1, 0.5, 0.5, 100); got != want {
		t.Errorf("clamped = %v, want %v", got, want)
	}
	if ProjectError(1, 100, 0.1, 200) >= ProjectError(1, 10, 0.1, 200) {
		t.Error("projected error did not shrink with distance")
	}
}

func TestIsSelectedLOD(t *testing.T) {
	tests := []struct {
		self, parent float32
		want         bool
	}{
		{0.5, 2, true},
		{0, NoParentError, true},
		{2, 4, false},
		{0.1, 0.5, false},
		{1, 1.0001, true},
	}
	for _, tt := range tests {
		if got := IsSelectedLOD(tt.self, tt.parent, 1); got != tt.want {
			t.Errorf("IsSelectedLOD(%v, %v) = %v, want %v", tt.self, tt.parent, got, tt.want)
		}
	}
}

func TestMipLevel(t *testing.T) {
	tests := []struct {
		w, h   float32
		levels int
		want   int
	}{
		{1, 1, 8, 0},
		{2, 2, 8, 0},
		{4, 1, 8, 1},
		{16, 9, 8, 3},
		{17, 3, 8, 4},
		{4096, 10, 5, 4},
	}
	for _, tt := range tests {
		if got := MipLevel(tt.w, tt.h, tt.levels); got != tt.want {
			t.Errorf("MipLevel(%v, %v, %d) = %d, want %d", tt.w, tt.h, tt.levels, got, tt.want)
		}
	}
}

func TestLinearizeDepth(t *testing.T) {
	if got := LinearizeDepth(0, 1, 100); gomath.Abs(float64(got-1)) > 1e-4 {
		t.Errorf("LinearizeDepth(0) = %v, want near", got)
	}
	if got := LinearizeDepth(1, 1, 100); gomath.Abs(float64(got-100)) > 1e-3 {
		t.Errorf("LinearizeDepth(1) = %v, want far", got)
	}
}

func TestProjectSphereCentered(t *testing.T) {
	r := ProjectSphere(math.Vec3{X: 0, Y: 0, Z: 10}, 1, 1, 1)
	if gomath.Abs(float64(r.U0+r.U1-1)) > 1e-6 || gomath.Abs(float64(r.V0+r.V1-1)) > 1e-6 {
		t.Errorf("rect %+v not centred", r)
	}
	if r.U1 <= r.U0 || r.V1 <= r.V0 {
		t.Errorf("rect %+v is empty", r)
	}
}

type constHZB struct {
	levels int
	depth  float32
}

func (h constHZB) Levels() int { return h.levels }
func (h constHZB) Size(level int) (int, int) {
	return max(64>>level, 1), max(36>>level, 1)
}
func (h constHZB) Load(level, x, y int) float32 { return h.depth }

// windowDepth inverts LinearizeDepth.
func windowDepth(z, near, far float32) float32 {
	ndc := (far + near - 2*near*far/z) / (far - near)
	return (ndc + 1) / 2
}

func TestOcclusion(t *testing.T) {
	cam := testCamera()
	proj := cam.ProjectionMatrix()
	wall := windowDepth(5, cam.Near, cam.Far)

	tests := []struct {
		name   string
		hzb    HZB
		center math.Vec3
		want   bool
	}{
		{"no hzb", nil, math.Vec3{}, true},
		{"empty depth", constHZB{levels: 6, depth: 1}, math.Vec3{}, true},
		{"behind wall", constHZB{levels: 6, depth: wall}, math.Vec3{}, false},
		{"in front of wall", constHZB{levels: 6, depth: windowDepth(20, cam.Near, cam.Far)}, math.Vec3{}, true},
		{"near plane margin", constHZB{levels: 6, depth: wall}, math.Vec3{X: 0, Y: 0, Z: 7}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ := Occluder{
				View:       cam.ViewMatrix(),
				P00:        proj[0],
				P11:        proj[5],
				Near:       cam.Near,
				Far:        cam.Far,
				NearMargin: DefaultNearMargin,
				HZB:        tt.hzb,
			}
			if got := occ.IsVisible(tt.center, 1); got != tt.want {
				t.Errorf("IsVisible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcherCoversAll(t *testing.T) {
	for _, workers := range []int{1, 4} {
		d := &Dispatcher{Workers: workers, GroupSize: 7}
		hits := make([]atomic.Int32, 100)
		if err := d.Dispatch(context.Background(), len(hits), func(i int) { hits[i].Add(1) }); err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		for i := range hits {
			if hits[i].Load() != 1 {
				t.Errorf("workers=%d: index %d hit %d times", workers, i, hits[i].Load())
			}
		}
	}
}

func TestDispatcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		d := &Dispatcher{Workers: workers}
		err := d.Dispatch(ctx, 1000, func(int) {})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: err = %v, want context.Canceled", workers, err)
		}
	}
}

// scene builds one mesh whose meshlets have the given triangle counts, all
// root clusters with zero self error, and one instance per model.
func scene(t *testing.T, triCounts []int, models ...math.Mat4) *gpu.Tables {
	t.Helper()
	tables := gpu.NewTables()
	p := gpu.MeshPayload{BoundingSphere: [4]float32{0, 0, 0, 2}}
	for i := 0; i < 10; i++ {
		p.Vertices = append(p.Vertices, float32(i)*0.1, float32(i%2)*0.1, 0)
	}
	for _, n := range triCounts {
		m := gpu.MeshletPayload{
			SelfBounds:   []float32{0, 0, 0, 1, 0},
			ParentBounds: []float32{0, 0, 0, 2, NoParentError},
		}
		for tri := 0; tri < n; tri++ {
			m.Indices = append(m.Indices, uint32(tri), uint32(tri+1), uint32(tri+2))
		}
		p.Meshlets = append(p.Meshlets, m)
	}
	meshID, err := tables.AddMesh(p)
	if err != nil {
		t.Fatal(err)
	}
	for i, model := range models {
		if _, err := tables.AddInstance(gpu.InstancePayload{ID: uint32(i), MeshID: meshID, Model: model}); err != nil {
			t.Fatal(err)
		}
	}
	return tables
}

func TestPipelineEndToEnd(t *testing.T) {
	for _, workers := range []int{1, 4} {
		// Two meshlets of one and two triangles: index counts 3 and 6.
		tables := scene(t, []int{1, 2}, math.Identity())
		p := NewPipeline(DefaultOptions(), &Dispatcher{Workers: workers, GroupSize: 1})

		res, err := p.Run(context.Background(), NewFrame(testCamera(), tables.Snapshot(), nil))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(res.Records) != 2 || len(res.Draws) != 2 {
			t.Fatalf("workers=%d: %d records, %d draws; want 2, 2", workers, len(res.Records), len(res.Draws))
		}
		if res.Counters[gpu.CounterMeshlets] != 2 {
			t.Errorf("meshlet counter = %d, want 2", res.Counters[gpu.CounterMeshlets])
		}
		if p.Counter(gpu.CounterMeshlets).Load() != 2 {
			t.Errorf("pipeline counter = %d, want 2", p.Counter(gpu.CounterMeshlets).Load())
		}

		counts := []int{int(res.Draws[0].IndexCount), int(res.Draws[1].IndexCount)}
		sort.Ints(counts)
		if counts[0] != 3 || counts[1] != 6 {
			t.Errorf("index counts = %v, want [3 6]", counts)
		}
		for slot, d := range res.Draws {
			if d.InstanceCount != 1 || d.FirstInstance != uint32(slot) {
				t.Errorf("draw %d = %+v", slot, d)
			}
			m := tables.Meshlet(res.Records[slot].MeshletID)
			if d.IndexCount != m.IndexCount || d.FirstIndex != m.IndexOffset {
				t.Errorf("draw %d does not match meshlet %+v", slot, m)
			}
		}
	}
}

func TestPipelineCountersResetPerRun(t *testing.T) {
	tables := scene(t, []int{3, 6}, math.Identity())
	p := NewPipeline(DefaultOptions(), nil)
	frame := NewFrame(testCamera(), tables.Snapshot(), nil)

	for i := 0; i < 3; i++ {
		res, err := p.Run(context.Background(), frame)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Records) != 2 || res.Counters[gpu.CounterInstances] != 1 {
			t.Errorf("run %d: %d records, %d instances", i, len(res.Records), res.Counters[gpu.CounterInstances])
		}
	}
}

func TestPipelineFrustumCullsInstance(t *testing.T) {
	tables := scene(t, []int{3}, math.Identity(), math.Translate(0, 0, 100))
	res, err := NewPipeline(DefaultOptions(), nil).Run(context.Background(), NewFrame(testCamera(), tables.Snapshot(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.VisibleInstances) != 1 || res.VisibleInstances[0] != 0 {
		t.Errorf("visible = %v, want [0]", res.VisibleInstances)
	}
	if res.Stats.InstancesFrustum != 1 {
		t.Errorf("InstancesFrustum = %d, want 1", res.Stats.InstancesFrustum)
	}
	if len(res.Records) != 1 {
		t.Errorf("records = %d, want 1", len(res.Records))
	}
}

func TestPipelineLODRejectsCoarseCluster(t *testing.T) {
	tables := gpu.NewTables()
	p := gpu.MeshPayload{
		Vertices:       []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		BoundingSphere: [4]float32{0, 0, 0, 2},
		Meshlets: []gpu.MeshletPayload{
			// Coarse: visible error at distance 10.
			{SelfBounds: []float32{0, 0, 0, 1, 1}, ParentBounds: []float32{0, 0, 0, 1, NoParentError}, Indices: []uint32{0, 1, 2}},
			// Fine: error below a pixel, parent error above.
			{SelfBounds: []float32{0, 0, 0, 1, 0}, ParentBounds: []float32{0, 0, 0, 1, 1}, Indices: []uint32{0, 1, 2}},
		},
	}
	if _, err := tables.AddMesh(p); err != nil {
		t.Fatal(err)
	}
	if _, err := tables.AddInstance(gpu.InstancePayload{Model: math.Identity()}); err != nil {
		t.Fatal(err)
	}

	res, err := NewPipeline(DefaultOptions(), nil).Run(context.Background(), NewFrame(testCamera(), tables.Snapshot(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || res.Records[0].MeshletID != 1 {
		t.Errorf("records = %+v, want only meshlet 1", res.Records)
	}
	if res.Stats.MeshletsLOD != 1 {
		t.Errorf("MeshletsLOD = %d, want 1", res.Stats.MeshletsLOD)
	}
}

func TestPipelineOcclusion(t *testing.T) {
	tables := scene(t, []int{3}, math.Identity())
	cam := testCamera()
	hzb := constHZB{levels: 6, depth: windowDepth(5, cam.Near, cam.Far)}

	res, err := NewPipeline(DefaultOptions(), nil).Run(context.Background(), NewFrame(cam, tables.Snapshot(), hzb))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.VisibleInstances) != 0 || res.Stats.InstancesOccluded != 1 {
		t.Errorf("visible = %v, occluded = %d; want none visible", res.VisibleInstances, res.Stats.InstancesOccluded)
	}

	opts := DefaultOptions()
	opts.Occlusion = false
	res, err = NewPipeline(opts, nil).Run(context.Background(), NewFrame(cam, tables.Snapshot(), hzb))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Errorf("records with occlusion disabled = %d, want 1", len(res.Records))
	}
}

func TestPipelineClampsCapacityToPackableRange(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMeshlets = 1 << 26
	if got := NewPipeline(opts, nil).opts.MaxMeshlets; got != gpu.MaxRuntimeMeshlets {
		t.Errorf("capacity = %d, want %d", got, gpu.MaxRuntimeMeshlets)
	}
}

func TestPipelineOverflow(t *testing.T) {
	tables := scene(t, []int{3, 6}, math.Identity())
	opts := DefaultOptions()
	opts.MaxMeshlets = 1

	res, err := NewPipeline(opts, nil).Run(context.Background(), NewFrame(testCamera(), tables.Snapshot(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || res.Stats.Overflow != 1 {
		t.Errorf("records = %d, overflow = %d; want 1, 1", len(res.Records), res.Stats.Overflow)
	}
}
