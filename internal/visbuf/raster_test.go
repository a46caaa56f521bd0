package visbuf

import (
	"context"
	"errors"
	"testing"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/pkg/math"
)

// quadScene builds one mesh of two meshlets: a large triangle at z=0 and a
// smaller one at z=1 in front of it, both facing a camera at z=10.
func quadScene(t *testing.T) (*gpu.Tables, *camera.Camera) {
	t.Helper()
	tables := gpu.NewTables()
	p := gpu.MeshPayload{
		Vertices: []float32{
			-5, -5, 0, 5, -5, 0, 0, 5, 0,
			-1, -1, 1, 1, -1, 1, 0, 1, 1,
		},
		BoundingSphere: [4]float32{0, 0, 0, 8},
		Meshlets: []gpu.MeshletPayload{
			{SelfBounds: []float32{0, 0, 0, 8, 0}, ParentBounds: []float32{0, 0, 0, 8, cull.NoParentError}, Indices: []uint32{0, 1, 2}},
			{SelfBounds: []float32{0, 0, 1, 2, 0}, ParentBounds: []float32{0, 0, 1, 2, cull.NoParentError}, Indices: []uint32{3, 4, 5}},
		},
	}
	if _, err := tables.AddMesh(p); err != nil {
		t.Fatal(err)
	}
	if _, err := tables.AddInstance(gpu.InstancePayload{Model: math.Identity()}); err != nil {
		t.Fatal(err)
	}
	cam := camera.New(64, 64)
	cam.Aspect = 1
	return tables, cam
}

func cullScene(t *testing.T, tables *gpu.Tables, cam *camera.Camera) *cull.Result {
	t.Helper()
	res, err := cull.NewPipeline(cull.DefaultOptions(), nil).Run(context.Background(), cull.NewFrame(cam, tables.Snapshot(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("culling kept %d meshlets, want 2", len(res.Records))
	}
	return res
}

func TestRasterizerDepthOrder(t *testing.T) {
	tables, cam := quadScene(t)
	res := cullScene(t, tables, cam)

	buf := NewBuffer(64, 64)
	r := &Rasterizer{ViewProj: cam.ViewProjection()}
	n, err := r.Draw(context.Background(), buf, res.Records, res.Draws, tables.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("submitted %d triangles, want 2", n)
	}

	idx, tri, ok := Decode(buf.At(32, 32))
	if !ok {
		t.Fatal("centre pixel not covered")
	}
	if rec := res.Records[idx]; rec.MeshletID != 1 || tri != 0 {
		t.Errorf("centre pixel = meshlet %d tri %d, want the front meshlet 1", rec.MeshletID, tri)
	}

	idx, _, ok = Decode(buf.At(32, 52))
	if !ok || res.Records[idx].MeshletID != 0 {
		t.Errorf("lower pixel should show the back meshlet, got ok=%v", ok)
	}
	if buf.At(0, 0) != NoCoverage {
		t.Error("corner pixel covered")
	}
	if buf.Depth[32*64+32] >= buf.Depth[52*64+32] {
		t.Error("front triangle is not nearer than the back one")
	}
}

func TestRasterizerRejectsUnpackableRuntimeIndex(t *testing.T) {
	tables, cam := quadScene(t)
	r := &Rasterizer{ViewProj: cam.ViewProjection()}
	draws := []gpu.DrawIndexedIndirect{{IndexCount: 3, InstanceCount: 1, FirstInstance: MaxMeshletIndex + 1}}

	_, err := r.Draw(context.Background(), NewBuffer(8, 8), nil, draws, tables.Snapshot())
	if !errors.Is(err, ErrMeshletIndexOverflow) {
		t.Errorf("Draw error = %v, want ErrMeshletIndexOverflow", err)
	}
}

func TestRasterizerRejectsMissingRecord(t *testing.T) {
	tables, cam := quadScene(t)
	r := &Rasterizer{ViewProj: cam.ViewProjection()}
	draws := []gpu.DrawIndexedIndirect{{IndexCount: 3, InstanceCount: 1, FirstInstance: 4}}

	if _, err := r.Draw(context.Background(), NewBuffer(8, 8), nil, draws, tables.Snapshot()); err == nil {
		t.Error("Draw accepted a draw without a runtime record")
	}
}

func TestReprojectDeduplicates(t *testing.T) {
	tables, cam := quadScene(t)
	res := cullScene(t, tables, cam)

	buf := NewBuffer(64, 64)
	r := &Rasterizer{ViewProj: cam.ViewProjection()}
	if _, err := r.Draw(context.Background(), buf, res.Records, res.Draws, tables.Snapshot()); err != nil {
		t.Fatal(err)
	}

	for _, workers := range []int{1, 4} {
		rp := NewReprojector(&cull.Dispatcher{Workers: workers, GroupSize: 128})
		out, err := rp.Reproject(context.Background(), buf, res.Records, tables.Snapshot())
		if err != nil {
			t.Fatal(err)
		}
		if len(out.Triangles) != 2 || len(out.Draws) != 2 {
			t.Fatalf("workers=%d: %d triangles, want 2", workers, len(out.Triangles))
		}
		if rp.Counter.Load() != 2 {
			t.Errorf("counter = %d, want 2", rp.Counter.Load())
		}

		seen := map[Triangle]bool{}
		for slot, tr := range out.Triangles {
			seen[tr] = true
			d := out.Draws[slot]
			if d.IndexCount != 3 || d.InstanceCount != 1 || d.FirstIndex != uint32(slot*3) {
				t.Errorf("draw %d = %+v", slot, d)
			}
		}
		if !seen[Triangle{0, 1, 2}] || !seen[Triangle{3, 4, 5}] {
			t.Errorf("triangles = %v", out.Triangles)
		}
		if len(out.Indices()) != 6 || len(out.MarshalIndices()) != 24 {
			t.Error("index buffer size mismatch")
		}
	}
}

func TestReprojectVertexOffsetAndInvalid(t *testing.T) {
	tables := gpu.NewTables()
	mesh := gpu.MeshPayload{
		Vertices: make([]float32, 9),
		Meshlets: []gpu.MeshletPayload{
			{SelfBounds: make([]float32, 5), ParentBounds: make([]float32, 5), Indices: []uint32{0, 1, 2}},
		},
	}
	for i := 0; i < 2; i++ {
		if _, err := tables.AddMesh(mesh); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tables.AddInstance(gpu.InstancePayload{MeshID: 1}); err != nil {
		t.Fatal(err)
	}

	records := []gpu.RuntimeMeshletRecord{{InstanceID: 0, MeshletID: 1}}
	buf := NewBuffer(4, 1)
	buf.IDs[0] = MustEncode(0, 0)
	buf.IDs[1] = MustEncode(0, 0)
	buf.IDs[2] = MustEncode(5, 0) // no such record
	buf.IDs[3] = MustEncode(0, 1) // meshlet has one triangle

	out, err := NewReprojector(nil).Reproject(context.Background(), buf, records, tables.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Triangles) != 1 || out.Triangles[0] != (Triangle{3, 4, 5}) {
		t.Errorf("triangles = %v, want [{3 4 5}]", out.Triangles)
	}
	if out.Invalid != 2 {
		t.Errorf("Invalid = %d, want 2", out.Invalid)
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(2, 2)
	b.IDs[3] = 99
	b.Depth[3] = 0.5
	if b.Covered() != 1 {
		t.Errorf("Covered = %d, want 1", b.Covered())
	}
	b.Clear()
	if b.Covered() != 0 || b.Depth[3] != 1 {
		t.Error("Clear did not reset the texel")
	}
}
