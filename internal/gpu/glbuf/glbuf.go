// Package glbuf uploads descriptor tables and per-frame buffers into OpenGL
// shader storage buffers. A current GL 4.3 context is owned by the caller.
package glbuf

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/logger"
)

// Buffer is one GL buffer object.
type Buffer struct {
	ID      uint32
	Target  uint32
	Binding uint32
	Size    int
}

// Driver is the part of the GL API the uploader calls.
type Driver interface {
	GenBuffer() uint32
	BufferData(target, id uint32, size int, data []byte, hint uint32)
	BufferSubData(target, id uint32, data []byte)
	BindStorage(binding, id uint32)
	DeleteBuffer(id uint32)
}

// GL drives the context current on the calling thread through go-gl.
type GL struct{}

func (GL) GenBuffer() uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	return id
}

func (GL) BufferData(target, id uint32, size int, data []byte, hint uint32) {
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = unsafe.Pointer(&data[0])
	}
	gl.BindBuffer(target, id)
	gl.BufferData(target, size, ptr, hint)
}

func (GL) BufferSubData(target, id uint32, data []byte) {
	gl.BindBuffer(target, id)
	gl.BufferSubData(target, 0, len(data), unsafe.Pointer(&data[0]))
}

func (GL) BindStorage(binding, id uint32) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, binding, id)
}

func (GL) DeleteBuffer(id uint32) {
	gl.DeleteBuffers(1, &id)
}

// Indirect buffers are also written by compute, so they get a storage binding.
func (u *Uploader) bindBase(b *Buffer) {
	if b.Target == gl.SHADER_STORAGE_BUFFER || b.Target == gl.DRAW_INDIRECT_BUFFER {
		u.driver.BindStorage(b.Binding, b.ID)
	}
}

// Uploader owns the GL buffers of one frame pipeline.
type Uploader struct {
	driver   Driver
	buffers  map[string]*Buffer
	bindings map[string]uint32
	log      *zap.Logger
}

// NewUploader assigns storage binding points to specs in order. A nil
// driver uses GL.
func NewUploader(specs []gpu.BufferSpec, d Driver) *Uploader {
	if d == nil {
		d = GL{}
	}
	u := &Uploader{
		driver:   d,
		buffers:  make(map[string]*Buffer),
		bindings: make(map[string]uint32),
		log:      logger.Named("glbuf"),
	}
	for i, s := range specs {
		u.bindings[s.Name] = uint32(i)
	}
	return u
}

// Target picks the GL bind target for a buffer's usage.
func Target(usage gputypes.BufferUsage) uint32 {
	switch {
	case usage&gputypes.BufferUsageIndirect != 0:
		return gl.DRAW_INDIRECT_BUFFER
	case usage&gputypes.BufferUsageStorage != 0:
		return gl.SHADER_STORAGE_BUFFER
	case usage&gputypes.BufferUsageIndex != 0:
		return gl.ELEMENT_ARRAY_BUFFER
	case usage&gputypes.BufferUsageUniform != 0:
		return gl.UNIFORM_BUFFER
	}
	return gl.ARRAY_BUFFER
}

// Hint picks the GL usage hint. Inputs are written once per asset, outputs
// are rewritten by compute every frame.
func Hint(usage gputypes.BufferUsage) uint32 {
	if usage&gputypes.BufferUsageCopyDst != 0 && usage&gputypes.BufferUsageCopySrc == 0 {
		return gl.STATIC_DRAW
	}
	return gl.DYNAMIC_COPY
}

// Allocate creates every buffer at its BufferSpec size.
func (u *Uploader) Allocate(specs []gpu.BufferSpec) {
	for _, s := range specs {
		b, ok := u.buffers[s.Name]
		if !ok {
			b = &Buffer{ID: u.driver.GenBuffer(), Target: Target(s.Usage), Binding: u.bindings[s.Name]}
			u.buffers[s.Name] = b
		}
		u.driver.BufferData(b.Target, b.ID, int(s.Size), nil, Hint(s.Usage))
		b.Size = int(s.Size)
		u.bindBase(b)
	}
	u.log.Debug("allocated buffers", zap.Int("count", len(specs)))
}

// Upload writes data at the start of a named buffer, growing it if needed.
func (u *Uploader) Upload(name string, data []byte) error {
	b, ok := u.buffers[name]
	if !ok {
		return fmt.Errorf("glbuf: unknown buffer %q", name)
	}
	if len(data) == 0 {
		return nil
	}
	if len(data) > b.Size {
		u.driver.BufferData(b.Target, b.ID, len(data), data, gl.DYNAMIC_DRAW)
		b.Size = len(data)
		u.bindBase(b)
		return nil
	}
	u.driver.BufferSubData(b.Target, b.ID, data)
	return nil
}

// UploadTables writes the descriptor tables of a view.
func (u *Uploader) UploadTables(v gpu.View) error {
	uploads := []struct {
		name string
		data []byte
	}{
		{gpu.BufferInstances, v.MarshalInstances()},
		{gpu.BufferMeshes, v.MarshalMeshes()},
		{gpu.BufferMeshlets, v.MarshalMeshlets()},
		{gpu.BufferIndices, v.MarshalIndices()},
		{gpu.BufferPositions, v.MarshalPositions()},
	}
	for _, up := range uploads {
		if err := u.Upload(up.name, up.data); err != nil {
			return err
		}
	}
	return nil
}

// ResetCounters zeroes the compaction counters before a pass.
func (u *Uploader) ResetCounters() error {
	return u.Upload(gpu.BufferCounters, make([]byte, gpu.CounterCount*4))
}

// Buffer returns a named buffer.
func (u *Uploader) Buffer(name string) (*Buffer, bool) {
	b, ok := u.buffers[name]
	return b, ok
}

// Binding returns the storage binding point assigned to a buffer name.
func (u *Uploader) Binding(name string) (uint32, bool) {
	b, ok := u.bindings[name]
	return b, ok
}

// Release deletes every buffer.
func (u *Uploader) Release() {
	for name, b := range u.buffers {
		u.driver.DeleteBuffer(b.ID)
		delete(u.buffers, name)
	}
}
