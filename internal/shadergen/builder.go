package shadergen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/logger"
)

var (
	ErrBindingLimit   = errors.New("too many bindings in bind group")
	ErrBindGroupLimit = errors.New("too many bind groups")
	ErrShaderInvalid  = errors.New("shader failed to compile")
	ErrDuplicateBind  = errors.New("duplicate binding")
)

// Limits bounds the bindings of one pipeline.
type Limits struct {
	MaxBindGroups       uint32
	MaxBindingsPerGroup uint32
}

// DefaultLimits mirrors the WebGPU baseline of four bind groups and eight
// storage buffers per stage.
func DefaultLimits() Limits {
	return Limits{MaxBindGroups: 4, MaxBindingsPerGroup: 8}
}

// Binding locates a snippet in the pipeline layout.
type Binding struct {
	Group, Slot uint32
}

// Shader is a built and validated compute shader.
type Shader struct {
	Label    string
	Source   string
	SPIRV    []byte
	Layouts  [][]gputypes.BindGroupLayoutEntry
	Bindings map[string]Binding
}

type entry struct {
	snippet Snippet
	group   int // -1 = next free slot
}

// Builder assembles snippets and an entry point into a shader.
type Builder struct {
	label         string
	limits        Limits
	entries       []entry
	body          string
	workgroupSize []uint32

	// Compile turns WGSL into SPIR-V; naga.Compile by default.
	Compile func(source string) ([]byte, error)
}

// NewBuilder creates a builder.
func NewBuilder(label string, limits Limits) *Builder {
	return &Builder{
		label:         label,
		limits:        limits,
		workgroupSize: []uint32{64},
		Compile:       naga.Compile,
	}
}

// Add binds a snippet at the next free slot, spilling into the next group
// when the current one is full.
func (b *Builder) Add(s Snippet) *Builder {
	b.entries = append(b.entries, entry{snippet: s, group: -1})
	return b
}

// AddToGroup binds a snippet at the next slot of a fixed group.
func (b *Builder) AddToGroup(group uint32, s Snippet) *Builder {
	b.entries = append(b.entries, entry{snippet: s, group: int(group)})
	return b
}

// Entry sets the body of the compute entry point. The body sees the
// invocation id as gid.
func (b *Builder) Entry(body string, workgroupSize ...uint32) *Builder {
	if len(workgroupSize) > 0 {
		b.workgroupSize = workgroupSize
	}
	b.body = body
	return b
}

// Assign computes binding slots without emitting source.
func (b *Builder) Assign() (map[string]Binding, error) {
	out := make(map[string]Binding, len(b.entries))
	next := make([]uint32, b.limits.MaxBindGroups)
	auto := uint32(0)

	for _, e := range b.entries {
		if _, dup := out[e.snippet.Name()]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateBind, e.snippet.Name())
		}
		var g uint32
		if e.group >= 0 {
			g = uint32(e.group)
			if g >= b.limits.MaxBindGroups {
				return nil, fmt.Errorf("%w: %s in group %d, max %d", ErrBindGroupLimit, e.snippet.Name(), g, b.limits.MaxBindGroups)
			}
			if next[g] >= b.limits.MaxBindingsPerGroup {
				return nil, fmt.Errorf("%w: %s in group %d, max %d", ErrBindingLimit, e.snippet.Name(), g, b.limits.MaxBindingsPerGroup)
			}
		} else {
			for auto < b.limits.MaxBindGroups && next[auto] >= b.limits.MaxBindingsPerGroup {
				auto++
			}
			if auto >= b.limits.MaxBindGroups {
				return nil, fmt.Errorf("%w: no slot left for %s", ErrBindGroupLimit, e.snippet.Name())
			}
			g = auto
		}
		out[e.snippet.Name()] = Binding{Group: g, Slot: next[g]}
		next[g]++
	}
	return out, nil
}

// Build assigns slots, emits WGSL and validates it.
func (b *Builder) Build() (*Shader, error) {
	bindings, err := b.Assign()
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", b.label, err)
	}

	var src strings.Builder
	seen := make(map[string]bool)
	for _, e := range b.entries {
		d := e.snippet.EmitDeclaration()
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		src.WriteString(d)
		src.WriteString("\n\n")
	}

	groups := uint32(0)
	for _, bd := range bindings {
		groups = max(groups, bd.Group+1)
	}
	layouts := make([][]gputypes.BindGroupLayoutEntry, groups)
	for _, e := range b.entries {
		bd := bindings[e.snippet.Name()]
		src.WriteString(e.snippet.EmitBinding(bd.Group, bd.Slot))
		src.WriteByte('\n')
		layouts[bd.Group] = append(layouts[bd.Group], e.snippet.Layout(bd.Slot))
	}

	size := make([]string, len(b.workgroupSize))
	for i, n := range b.workgroupSize {
		size[i] = strconv.FormatUint(uint64(n), 10)
	}
	fmt.Fprintf(&src, "\n@compute @workgroup_size(%s)\nfn main(@builtin(global_invocation_id) gid: vec3<u32>) {\n%s}\n", strings.Join(size, ", "), b.body)

	sh := &Shader{
		Label:    b.label,
		Source:   src.String(),
		Layouts:  layouts,
		Bindings: bindings,
	}
	if b.Compile != nil {
		spirv, err := b.Compile(sh.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrShaderInvalid, b.label, err)
		}
		sh.SPIRV = spirv
	}

	logger.Debug("shader built",
		zap.String("label", b.label),
		zap.Int("bindings", len(bindings)),
		zap.Int("groups", len(layouts)),
		zap.Int("spirv_bytes", len(sh.SPIRV)))
	return sh, nil
}
