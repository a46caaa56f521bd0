// Package gpu defines the GPU-facing descriptor records and the append-only
// tables that compact asset payloads into them.
package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	gmath "github.com/Faultbox/geoscape/pkg/math"
)

// Record strides in bytes.
const (
	SphereSize        = 16
	InstanceStride    = 80
	MeshStride        = 32
	MeshletStride     = 64
	DrawCommandStride = 20
	RuntimeRecordSize = 8
)

// MaxRuntimeMeshlets is the number of runtime meshlet slots a visibility
// texel can address: 25 bits, with 0 reserved for no coverage.
const MaxRuntimeMeshlets = 1<<25 - 1

// Sphere is a bounding sphere.
type Sphere struct {
	Center gmath.Vec3
	Radius float32
}

func putFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func getFloat(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func (s Sphere) put(buf []byte) {
	putFloat(buf[0:], s.Center.X)
	putFloat(buf[4:], s.Center.Y)
	putFloat(buf[8:], s.Center.Z)
	putFloat(buf[12:], s.Radius)
}

func getSphere(buf []byte) Sphere {
	return Sphere{
		Center: gmath.Vec3{X: getFloat(buf[0:]), Y: getFloat(buf[4:]), Z: getFloat(buf[8:])},
		Radius: getFloat(buf[12:]),
	}
}

func checkSize(name string, buf []byte, size int) error {
	if len(buf) < size {
		return fmt.Errorf("%s: short buffer: %d bytes, want %d", name, len(buf), size)
	}
	return nil
}

// MeshDesc describes one mesh.
type MeshDesc struct {
	Bounds       Sphere
	VertexOffset uint32
	MeshID       uint32
	MeshletCount uint32
	Material     MaterialType
}

// Marshal encodes the record.
func (m *MeshDesc) Marshal() []byte {
	buf := make([]byte, MeshStride)
	m.Bounds.put(buf[0:])
	binary.LittleEndian.PutUint32(buf[16:], m.VertexOffset)
	binary.LittleEndian.PutUint32(buf[20:], m.MeshID)
	binary.LittleEndian.PutUint32(buf[24:], m.MeshletCount)
	binary.LittleEndian.PutUint32(buf[28:], uint32(m.Material))
	return buf
}

// Unmarshal decodes the record.
func (m *MeshDesc) Unmarshal(buf []byte) error {
	if err := checkSize("mesh", buf, MeshStride); err != nil {
		return err
	}
	m.Bounds = getSphere(buf[0:])
	m.VertexOffset = binary.LittleEndian.Uint32(buf[16:])
	m.MeshID = binary.LittleEndian.Uint32(buf[20:])
	m.MeshletCount = binary.LittleEndian.Uint32(buf[24:])
	m.Material = MaterialType(binary.LittleEndian.Uint32(buf[28:]))
	return nil
}

// MeshletDesc describes one cluster and the coarser cluster it simplifies to.
type MeshletDesc struct {
	SelfBounds   Sphere
	ParentBounds Sphere
	SelfError    float32
	ParentError  float32
	ClusterID    uint32
	MeshID       uint32
	IndexCount   uint32
	IndexOffset  uint32
}

// TriangleCount returns the number of triangles in the meshlet.
func (m *MeshletDesc) TriangleCount() uint32 { return m.IndexCount / 3 }

// Marshal encodes the record.
func (m *MeshletDesc) Marshal() []byte {
	buf := make([]byte, MeshletStride)
	m.SelfBounds.put(buf[0:])
	m.ParentBounds.put(buf[16:])
	putFloat(buf[32:], m.SelfError)
	putFloat(buf[36:], m.ParentError)
	binary.LittleEndian.PutUint32(buf[40:], m.ClusterID)
	binary.LittleEndian.PutUint32(buf[44:], m.MeshID)
	binary.LittleEndian.PutUint32(buf[48:], m.IndexCount)
	binary.LittleEndian.PutUint32(buf[52:], m.IndexOffset)
	// 56..64 pad
	return buf
}

// Unmarshal decodes the record.
func (m *MeshletDesc) Unmarshal(buf []byte) error {
	if err := checkSize("meshlet", buf, MeshletStride); err != nil {
		return err
	}
	m.SelfBounds = getSphere(buf[0:])
	m.ParentBounds = getSphere(buf[16:])
	m.SelfError = getFloat(buf[32:])
	m.ParentError = getFloat(buf[36:])
	m.ClusterID = binary.LittleEndian.Uint32(buf[40:])
	m.MeshID = binary.LittleEndian.Uint32(buf[44:])
	m.IndexCount = binary.LittleEndian.Uint32(buf[48:])
	m.IndexOffset = binary.LittleEndian.Uint32(buf[52:])
	return nil
}

// InstanceDesc places a mesh in the world.
type InstanceDesc struct {
	Model  gmath.Mat4
	MeshID uint32
}

// Marshal encodes the record.
func (d *InstanceDesc) Marshal() []byte {
	buf := make([]byte, InstanceStride)
	for i := 0; i < 16; i++ {
		putFloat(buf[i*4:], d.Model[i])
	}
	binary.LittleEndian.PutUint32(buf[64:], d.MeshID)
	// 68..80 pad
	return buf
}

// Unmarshal decodes the record.
func (d *InstanceDesc) Unmarshal(buf []byte) error {
	if err := checkSize("instance", buf, InstanceStride); err != nil {
		return err
	}
	for i := 0; i < 16; i++ {
		d.Model[i] = getFloat(buf[i*4:])
	}
	d.MeshID = binary.LittleEndian.Uint32(buf[64:])
	return nil
}

// DrawIndexedIndirect is one indexed indirect draw command.
type DrawIndexedIndirect struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// Marshal encodes the command.
func (d *DrawIndexedIndirect) Marshal() []byte {
	buf := make([]byte, DrawCommandStride)
	d.put(buf)
	return buf
}

func (d *DrawIndexedIndirect) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], d.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:], d.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:], d.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:], uint32(d.VertexOffset))
	binary.LittleEndian.PutUint32(buf[16:], d.FirstInstance)
}

// Unmarshal decodes the command.
func (d *DrawIndexedIndirect) Unmarshal(buf []byte) error {
	if err := checkSize("draw command", buf, DrawCommandStride); err != nil {
		return err
	}
	d.IndexCount = binary.LittleEndian.Uint32(buf[0:])
	d.InstanceCount = binary.LittleEndian.Uint32(buf[4:])
	d.FirstIndex = binary.LittleEndian.Uint32(buf[8:])
	d.VertexOffset = int32(binary.LittleEndian.Uint32(buf[12:]))
	d.FirstInstance = binary.LittleEndian.Uint32(buf[16:])
	return nil
}

// RuntimeMeshletRecord is a surviving (instance, meshlet) pair. Its position
// in the record array is the instance index used by its draw command.
type RuntimeMeshletRecord struct {
	InstanceID uint32
	MeshletID  uint32
}

// Marshal encodes the record.
func (r *RuntimeMeshletRecord) Marshal() []byte {
	buf := make([]byte, RuntimeRecordSize)
	binary.LittleEndian.PutUint32(buf[0:], r.InstanceID)
	binary.LittleEndian.PutUint32(buf[4:], r.MeshletID)
	return buf
}

// Unmarshal decodes the record.
func (r *RuntimeMeshletRecord) Unmarshal(buf []byte) error {
	if err := checkSize("runtime record", buf, RuntimeRecordSize); err != nil {
		return err
	}
	r.InstanceID = binary.LittleEndian.Uint32(buf[0:])
	r.MeshletID = binary.LittleEndian.Uint32(buf[4:])
	return nil
}

// MarshalDraws packs commands back to back.
func MarshalDraws(draws []DrawIndexedIndirect) []byte {
	buf := make([]byte, len(draws)*DrawCommandStride)
	for i := range draws {
		draws[i].put(buf[i*DrawCommandStride:])
	}
	return buf
}

// MarshalRecords packs runtime records back to back.
func MarshalRecords(records []RuntimeMeshletRecord) []byte {
	buf := make([]byte, len(records)*RuntimeRecordSize)
	for i, r := range records {
		binary.LittleEndian.PutUint32(buf[i*8:], r.InstanceID)
		binary.LittleEndian.PutUint32(buf[i*8+4:], r.MeshletID)
	}
	return buf
}
