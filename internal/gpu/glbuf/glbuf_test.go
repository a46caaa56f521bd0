package glbuf

import (
	"bytes"
	"testing"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/gogpu/gputypes"

	"github.com/Faultbox/geoscape/internal/gpu"
	gmath "github.com/Faultbox/geoscape/pkg/math"
)

func TestTarget(t *testing.T) {
	tests := []struct {
		usage gputypes.BufferUsage
		want  uint32
	}{
		{gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect, gl.DRAW_INDIRECT_BUFFER},
		{gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst, gl.SHADER_STORAGE_BUFFER},
		{gputypes.BufferUsageIndex, gl.ELEMENT_ARRAY_BUFFER},
		{gputypes.BufferUsageUniform, gl.UNIFORM_BUFFER},
		{gputypes.BufferUsageVertex, gl.ARRAY_BUFFER},
	}
	for _, tt := range tests {
		if got := Target(tt.usage); got != tt.want {
			t.Errorf("Target(%v) = %#x, want %#x", tt.usage, got, tt.want)
		}
	}
}

func TestHint(t *testing.T) {
	if got := Hint(gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst); got != gl.STATIC_DRAW {
		t.Errorf("input hint = %#x, want STATIC_DRAW", got)
	}
	if got := Hint(gputypes.BufferUsageStorage); got != gl.DYNAMIC_COPY {
		t.Errorf("output hint = %#x, want DYNAMIC_COPY", got)
	}
}

func TestBindingsFollowSpecOrder(t *testing.T) {
	specs := gpu.BufferSpecs(gpu.View{}, gpu.Capacity{MaxMeshlets: 4, MaxTriangles: 8})
	u := NewUploader(specs, nil)
	for i, s := range specs {
		b, ok := u.Binding(s.Name)
		if !ok || b != uint32(i) {
			t.Errorf("Binding(%s) = %d, %v; want %d", s.Name, b, ok, i)
		}
	}
	if err := u.Upload("nope", []byte{1}); err == nil {
		t.Error("Upload to unknown buffer succeeded")
	}
}

type recordingDriver struct {
	next     uint32
	sizes    map[uint32]int
	data     map[uint32][]byte
	storage  map[uint32]uint32 // binding -> id
	deleted  []uint32
	subCalls int
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{
		sizes:   make(map[uint32]int),
		data:    make(map[uint32][]byte),
		storage: make(map[uint32]uint32),
	}
}

func (d *recordingDriver) GenBuffer() uint32 {
	d.next++
	return d.next
}

func (d *recordingDriver) BufferData(_, id uint32, size int, data []byte, _ uint32) {
	d.sizes[id] = size
	d.data[id] = append([]byte(nil), data...)
}

func (d *recordingDriver) BufferSubData(_, id uint32, data []byte) {
	d.subCalls++
	d.data[id] = append([]byte(nil), data...)
}

func (d *recordingDriver) BindStorage(binding, id uint32) { d.storage[binding] = id }
func (d *recordingDriver) DeleteBuffer(id uint32)         { d.deleted = append(d.deleted, id) }

func TestUploaderLifecycle(t *testing.T) {
	view := gpu.View{
		Indices:   []uint32{0, 1, 2},
		Positions: []gmath.Vec3{{}, {X: 1}, {Y: 1}},
	}
	specs := gpu.BufferSpecs(gpu.View{}, gpu.Capacity{MaxMeshlets: 4, MaxTriangles: 8})
	d := newRecordingDriver()
	u := NewUploader(specs, d)

	u.Allocate(specs)
	for _, s := range specs {
		b, ok := u.Buffer(s.Name)
		if !ok {
			t.Fatalf("buffer %s not allocated", s.Name)
		}
		if d.sizes[b.ID] != int(s.Size) {
			t.Errorf("%s size = %d, want %d", s.Name, d.sizes[b.ID], s.Size)
		}
	}
	draws, _ := u.Buffer(gpu.BufferDraws)
	if d.storage[draws.Binding] != draws.ID {
		t.Error("indirect buffer not bound as storage")
	}
	readback, _ := u.Buffer(gpu.BufferReadback)
	if _, bound := d.storage[readback.Binding]; bound {
		t.Error("readback buffer bound as storage")
	}

	// 3 indices fit the 16-byte minimum; 3 vec4 positions grow the buffer.
	if err := u.UploadTables(view); err != nil {
		t.Fatalf("UploadTables: %v", err)
	}
	indices, _ := u.Buffer(gpu.BufferIndices)
	if got := d.data[indices.ID]; !bytes.Equal(got, view.MarshalIndices()) {
		t.Errorf("indices = %v, want %v", got, view.MarshalIndices())
	}
	positions, _ := u.Buffer(gpu.BufferPositions)
	if positions.Size != 48 || d.sizes[positions.ID] != 48 {
		t.Errorf("positions size = %d (driver %d), want 48", positions.Size, d.sizes[positions.ID])
	}

	if err := u.ResetCounters(); err != nil {
		t.Fatalf("ResetCounters: %v", err)
	}
	counters, _ := u.Buffer(gpu.BufferCounters)
	if got := d.data[counters.ID]; !bytes.Equal(got, make([]byte, gpu.CounterCount*4)) {
		t.Errorf("counters = %v, want zeros", got)
	}

	u.Release()
	if len(d.deleted) != len(specs) {
		t.Errorf("deleted %d buffers, want %d", len(d.deleted), len(specs))
	}
	if _, ok := u.Buffer(gpu.BufferIndices); ok {
		t.Error("buffer still present after Release")
	}
}
