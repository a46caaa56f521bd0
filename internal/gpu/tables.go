package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/logger"
	gmath "github.com/Faultbox/geoscape/pkg/math"
)

// Meshlet payload limits.
const (
	MaxMeshletTriangles = 127
	BoundsFloats        = 5 // center xyz, radius, error
	DefaultVertexStride = 3
)

// MeshletPayload is one cluster as delivered by the asset pipeline.
// Indices are local to the mesh's vertex array.
type MeshletPayload struct {
	SelfBounds   []float32
	ParentBounds []float32
	Indices      []uint32
}

// MeshPayload is a mesh as delivered by the asset pipeline. Vertices are
// packed floats, VertexStride per vertex, position first.
type MeshPayload struct {
	Vertices       []float32
	VertexStride   int
	Meshlets       []MeshletPayload
	BoundingSphere [4]float32
	AABB           [6]float32
	Material       MaterialType
}

// InstancePayload places a mesh.
type InstancePayload struct {
	ID     uint32
	MeshID uint32
	Model  [16]float32
}

// MeshletRange locates the meshlets of one mesh in the meshlet table.
type MeshletRange struct {
	Offset uint32
	Count  uint32
}

// Tables holds the descriptor arrays. Entries are appended once per asset
// and never mutated.
type Tables struct {
	mu sync.RWMutex

	meshes    []MeshDesc
	ranges    []MeshletRange
	meshlets  []MeshletDesc
	instances []InstanceDesc
	indices   []uint32
	positions []gmath.Vec3

	log *zap.Logger
}

// NewTables creates empty tables.
func NewTables() *Tables {
	return &Tables{log: logger.Named("gpu")}
}

func sphereFrom(f []float32) Sphere {
	return Sphere{Center: gmath.Vec3{X: f[0], Y: f[1], Z: f[2]}, Radius: f[3]}
}

func validateMesh(p *MeshPayload) (int, error) {
	stride := p.VertexStride
	if stride == 0 {
		stride = DefaultVertexStride
	}
	if stride < 3 || len(p.Vertices)%stride != 0 {
		return 0, fmt.Errorf("%w: %d floats with stride %d", ErrMalformedMesh, len(p.Vertices), stride)
	}
	if !p.Material.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMaterial, p.Material)
	}
	vertexCount := uint32(len(p.Vertices) / stride)
	for i, m := range p.Meshlets {
		if len(m.SelfBounds) != BoundsFloats || len(m.ParentBounds) != BoundsFloats {
			return 0, fmt.Errorf("%w: meshlet %d: bounds need %d floats", ErrMalformedMesh, i, BoundsFloats)
		}
		if len(m.Indices)%3 != 0 {
			return 0, fmt.Errorf("%w: meshlet %d: %d indices", ErrMalformedMesh, i, len(m.Indices))
		}
		if len(m.Indices)/3 > MaxMeshletTriangles {
			return 0, fmt.Errorf("%w: meshlet %d: %d triangles, max %d", ErrMalformedMesh, i, len(m.Indices)/3, MaxMeshletTriangles)
		}
		for _, idx := range m.Indices {
			if idx >= vertexCount {
				return 0, fmt.Errorf("%w: meshlet %d: index %d out of %d vertices", ErrMalformedMesh, i, idx, vertexCount)
			}
		}
	}
	return stride, nil
}

// AddMesh validates and compacts a mesh payload, returning its mesh id.
// A malformed payload leaves the tables untouched.
func (t *Tables) AddMesh(p MeshPayload) (uint32, error) {
	stride, err := validateMesh(&p)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	meshID := uint32(len(t.meshes))
	vertexOffset := uint32(len(t.positions))
	for i := 0; i < len(p.Vertices); i += stride {
		t.positions = append(t.positions, gmath.Vec3{X: p.Vertices[i], Y: p.Vertices[i+1], Z: p.Vertices[i+2]})
	}

	meshletOffset := uint32(len(t.meshlets))
	for _, m := range p.Meshlets {
		t.meshlets = append(t.meshlets, MeshletDesc{
			SelfBounds:   sphereFrom(m.SelfBounds),
			ParentBounds: sphereFrom(m.ParentBounds),
			SelfError:    m.SelfBounds[4],
			ParentError:  m.ParentBounds[4],
			ClusterID:    uint32(len(t.meshlets)) - meshletOffset,
			MeshID:       meshID,
			IndexCount:   uint32(len(m.Indices)),
			IndexOffset:  uint32(len(t.indices)),
		})
		t.indices = append(t.indices, m.Indices...)
	}

	t.meshes = append(t.meshes, MeshDesc{
		Bounds:       sphereFrom(p.BoundingSphere[:]),
		VertexOffset: vertexOffset,
		MeshID:       meshID,
		MeshletCount: uint32(len(p.Meshlets)),
		Material:     p.Material,
	})
	t.ranges = append(t.ranges, MeshletRange{Offset: meshletOffset, Count: uint32(len(p.Meshlets))})

	t.log.Debug("mesh added",
		zap.Uint32("mesh", meshID),
		zap.Int("meshlets", len(p.Meshlets)),
		zap.Int("vertices", len(p.Vertices)/stride),
		zap.Stringer("material", p.Material))
	return meshID, nil
}

// AddInstance appends an instance. The mesh must already be registered.
func (t *Tables) AddInstance(p InstancePayload) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(p.MeshID) >= len(t.meshes) {
		return 0, fmt.Errorf("%w: instance %d references mesh %d", ErrUnknownMesh, p.ID, p.MeshID)
	}
	id := uint32(len(t.instances))
	t.instances = append(t.instances, InstanceDesc{Model: gmath.Mat4(p.Model), MeshID: p.MeshID})
	return id, nil
}

// Mesh returns a mesh descriptor.
func (t *Tables) Mesh(id uint32) MeshDesc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meshes[id]
}

// MeshletRange returns where a mesh's meshlets live in the meshlet table.
func (t *Tables) MeshletRange(meshID uint32) MeshletRange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ranges[meshID]
}

// Meshlet returns a meshlet descriptor.
func (t *Tables) Meshlet(id uint32) MeshletDesc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meshlets[id]
}

// Instance returns an instance descriptor.
func (t *Tables) Instance(id uint32) InstanceDesc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances[id]
}

// Index returns an entry of the shared index pool.
func (t *Tables) Index(i uint32) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indices[i]
}

// Position returns a vertex position by global vertex index.
func (t *Tables) Position(v uint32) gmath.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.positions[v]
}

// Counts returns the table sizes.
func (t *Tables) Counts() (meshes, meshlets, instances, indices int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.meshes), len(t.meshlets), len(t.instances), len(t.indices)
}

// Snapshot returns the tables as plain slices for a frame. Tables are
// append-only, so the slices stay valid while new assets are added.
func (t *Tables) Snapshot() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return View{
		Meshes:    t.meshes[:len(t.meshes):len(t.meshes)],
		Ranges:    t.ranges[:len(t.ranges):len(t.ranges)],
		Meshlets:  t.meshlets[:len(t.meshlets):len(t.meshlets)],
		Instances: t.instances[:len(t.instances):len(t.instances)],
		Indices:   t.indices[:len(t.indices):len(t.indices)],
		Positions: t.positions[:len(t.positions):len(t.positions)],
	}
}

// View is an immutable per-frame snapshot of the tables.
type View struct {
	Meshes    []MeshDesc
	Ranges    []MeshletRange
	Meshlets  []MeshletDesc
	Instances []InstanceDesc
	Indices   []uint32
	Positions []gmath.Vec3
}

// MarshalInstances packs the instance table.
func (v View) MarshalInstances() []byte {
	buf := make([]byte, 0, len(v.Instances)*InstanceStride)
	for i := range v.Instances {
		buf = append(buf, v.Instances[i].Marshal()...)
	}
	return buf
}

// MarshalMeshes packs the mesh table.
func (v View) MarshalMeshes() []byte {
	buf := make([]byte, 0, len(v.Meshes)*MeshStride)
	for i := range v.Meshes {
		buf = append(buf, v.Meshes[i].Marshal()...)
	}
	return buf
}

// MarshalMeshlets packs the meshlet table.
func (v View) MarshalMeshlets() []byte {
	buf := make([]byte, 0, len(v.Meshlets)*MeshletStride)
	for i := range v.Meshlets {
		buf = append(buf, v.Meshlets[i].Marshal()...)
	}
	return buf
}

// MarshalIndices packs the shared index pool.
func (v View) MarshalIndices() []byte {
	buf := make([]byte, len(v.Indices)*4)
	for i, idx := range v.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// MarshalPositions packs vertex positions as vec4<f32> with w = 1.
func (v View) MarshalPositions() []byte {
	buf := make([]byte, len(v.Positions)*16)
	for i, p := range v.Positions {
		binary.LittleEndian.PutUint32(buf[i*16:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[i*16+4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(buf[i*16+8:], math.Float32bits(p.Z))
		binary.LittleEndian.PutUint32(buf[i*16+12:], math.Float32bits(1))
	}
	return buf
}
