// Package shadergen assembles WGSL compute shaders from binding snippets.
// Each snippet contributes a declaration and a binding; the builder assigns
// binding slots in order and validates the result at build time.
package shadergen

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Snippet contributes one resource binding to a shader.
type Snippet interface {
	// Name is the WGSL variable name of the binding.
	Name() string
	// EmitDeclaration returns type declarations the binding needs, or "".
	EmitDeclaration() string
	// EmitBinding returns the WGSL variable declaration at group and slot.
	EmitBinding(group, slot uint32) string
	// Layout describes the binding for bind group layout creation.
	Layout(slot uint32) gputypes.BindGroupLayoutEntry
}

// StorageBuffer binds a runtime-sized array of Elem.
type StorageBuffer struct {
	Var      string
	Elem     string
	Decl     string
	ReadOnly bool
}

func (s StorageBuffer) Name() string            { return s.Var }
func (s StorageBuffer) EmitDeclaration() string { return s.Decl }

func (s StorageBuffer) EmitBinding(group, slot uint32) string {
	access := "read_write"
	if s.ReadOnly {
		access = "read"
	}
	return fmt.Sprintf("@group(%d) @binding(%d) var<storage, %s> %s: array<%s>;", group, slot, access, s.Var, s.Elem)
}

func (s StorageBuffer) Layout(slot uint32) gputypes.BindGroupLayoutEntry {
	t := gputypes.BufferBindingTypeStorage
	if s.ReadOnly {
		t = gputypes.BufferBindingTypeReadOnlyStorage
	}
	return gputypes.BindGroupLayoutEntry{
		Binding:    slot,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: t},
	}
}

// UniformBuffer binds a single uniform struct.
type UniformBuffer struct {
	Var  string
	Type string
	Decl string
}

func (u UniformBuffer) Name() string            { return u.Var }
func (u UniformBuffer) EmitDeclaration() string { return u.Decl }

func (u UniformBuffer) EmitBinding(group, slot uint32) string {
	return fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", group, slot, u.Var, u.Type)
}

func (u UniformBuffer) Layout(slot uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    slot,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

// AtomicCounter binds a fixed array of atomic compaction counters.
type AtomicCounter struct {
	Var   string
	Count int
}

func (a AtomicCounter) Name() string            { return a.Var }
func (a AtomicCounter) EmitDeclaration() string { return "" }

func (a AtomicCounter) EmitBinding(group, slot uint32) string {
	return fmt.Sprintf("@group(%d) @binding(%d) var<storage, read_write> %s: array<atomic<u32>, %d>;", group, slot, a.Var, a.Count)
}

func (a AtomicCounter) Layout(slot uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    slot,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	}
}

// Texture binds a sampled 2D float texture, such as the HZB.
type Texture struct {
	Var string
}

func (t Texture) Name() string            { return t.Var }
func (t Texture) EmitDeclaration() string { return "" }

func (t Texture) EmitBinding(group, slot uint32) string {
	return fmt.Sprintf("@group(%d) @binding(%d) var %s: texture_2d<f32>;", group, slot, t.Var)
}

func (t Texture) Layout(slot uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    slot,
		Visibility: gputypes.ShaderStageCompute,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}
