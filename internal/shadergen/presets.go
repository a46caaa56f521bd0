package shadergen

const declInstance = `struct Instance {
    model: mat4x4<f32>,
    mesh_id: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}`

const declMesh = `struct Mesh {
    bounds: vec4<f32>,
    vertex_offset: u32,
    mesh_id: u32,
    meshlet_count: u32,
    material: u32,
}`

const declMeshlet = `struct Meshlet {
    self_bounds: vec4<f32>,
    parent_bounds: vec4<f32>,
    self_error: f32,
    parent_error: f32,
    cluster_id: u32,
    mesh_id: u32,
    index_count: u32,
    index_offset: u32,
    pad0: u32,
    pad1: u32,
}`

const declRecord = `struct RuntimeMeshlet {
    instance_id: u32,
    meshlet_id: u32,
}`

const declDraw = `struct DrawCommand {
    index_count: u32,
    instance_count: u32,
    first_index: u32,
    vertex_offset: i32,
    first_instance: u32,
}`

// params = (near, far, vertical scale, lod threshold)
const declCamera = `struct Camera {
    view_proj: mat4x4<f32>,
    planes: array<vec4<f32>, 6>,
    eye: vec4<f32>,
    params: vec4<f32>,
}`

// Counter slots match gpu.CounterInstances, CounterMeshlets and
// CounterTriangles.
const counterSlots = 3

const cullBody = `    let i = gid.x;
    if (i >= arrayLength(&candidates)) {
        return;
    }
    let rec = candidates[i];
    let m = meshlets[rec.meshlet_id];
    let inst = instances[rec.instance_id];

    let c = (inst.model * vec4<f32>(m.self_bounds.xyz, 1.0)).xyz;
    let r = m.self_bounds.w;
    for (var p = 0u; p < 6u; p = p + 1u) {
        let pl = camera.planes[p];
        if (dot(pl.xyz, c) + pl.w < -r) {
            return;
        }
    }

    let near = camera.params.x;
    let vs = camera.params.z;
    let threshold = camera.params.w;
    let d_self = max(distance(c, camera.eye.xyz) - r, near);
    let self_err = m.self_error / d_self * vs * 0.5;
    var parent_err = m.parent_error;
    if (parent_err < 3.0e38) {
        let pc = (inst.model * vec4<f32>(m.parent_bounds.xyz, 1.0)).xyz;
        let d_parent = max(distance(pc, camera.eye.xyz) - m.parent_bounds.w, near);
        parent_err = parent_err / d_parent * vs * 0.5;
    }
    if (self_err > threshold || parent_err <= threshold) {
        return;
    }

    let slot = atomicAdd(&counters[1], 1u);
    if (slot >= arrayLength(&records)) {
        return;
    }
    atomicAdd(&counters[2], m.index_count / 3u);
    records[slot] = rec;
    let mesh = meshes[inst.mesh_id];
    draws[slot] = DrawCommand(m.index_count, 1u, m.index_offset, i32(mesh.vertex_offset), slot);
`

const reprojectBody = `    let dims = textureDimensions(visibility);
    if (gid.x >= dims.x || gid.y >= dims.y) {
        return;
    }
    let v = u32(textureLoad(visibility, vec2<i32>(gid.xy), 0).r);
    if (v == 0u) {
        return;
    }
    let rec_index = (v >> 7u) - 1u;
    let tri = v & 127u;
    if (rec_index >= arrayLength(&records)) {
        return;
    }
    let rec = records[rec_index];
    let m = meshlets[rec.meshlet_id];
    if (tri * 3u >= m.index_count) {
        return;
    }
    let mesh = meshes[instances[rec.instance_id].mesh_id];
    let slot = atomicAdd(&counters[0], 1u);
    if (slot * 3u + 2u >= arrayLength(&out_indices)) {
        return;
    }
    for (var k = 0u; k < 3u; k = k + 1u) {
        out_indices[slot * 3u + k] = indices[m.index_offset + tri * 3u + k] + mesh.vertex_offset;
    }
    out_draws[slot] = DrawCommand(3u, 1u, slot * 3u, 0, rec.instance_id);
`

// CullShader returns the meshlet culling compute shader builder. Candidates
// are (instance, meshlet) pairs emitted by the instance pass.
func CullShader() *Builder {
	return NewBuilder("cull", DefaultLimits()).
		Add(UniformBuffer{Var: "camera", Type: "Camera", Decl: declCamera}).
		Add(StorageBuffer{Var: "instances", Elem: "Instance", Decl: declInstance, ReadOnly: true}).
		Add(StorageBuffer{Var: "meshes", Elem: "Mesh", Decl: declMesh, ReadOnly: true}).
		Add(StorageBuffer{Var: "meshlets", Elem: "Meshlet", Decl: declMeshlet, ReadOnly: true}).
		Add(StorageBuffer{Var: "candidates", Elem: "RuntimeMeshlet", Decl: declRecord, ReadOnly: true}).
		Add(StorageBuffer{Var: "records", Elem: "RuntimeMeshlet", Decl: declRecord}).
		Add(StorageBuffer{Var: "draws", Elem: "DrawCommand", Decl: declDraw}).
		Add(AtomicCounter{Var: "counters", Count: counterSlots}).
		AddToGroup(1, Texture{Var: "hzb"}).
		Entry(cullBody, 64)
}

// ReprojectShader returns the visibility reprojection compute shader builder.
// The visibility texture stores packed ids as floats.
func ReprojectShader() *Builder {
	return NewBuilder("reproject", DefaultLimits()).
		Add(StorageBuffer{Var: "instances", Elem: "Instance", Decl: declInstance, ReadOnly: true}).
		Add(StorageBuffer{Var: "meshes", Elem: "Mesh", Decl: declMesh, ReadOnly: true}).
		Add(StorageBuffer{Var: "meshlets", Elem: "Meshlet", Decl: declMeshlet, ReadOnly: true}).
		Add(StorageBuffer{Var: "records", Elem: "RuntimeMeshlet", Decl: declRecord, ReadOnly: true}).
		Add(StorageBuffer{Var: "indices", Elem: "u32", ReadOnly: true}).
		Add(StorageBuffer{Var: "out_indices", Elem: "u32"}).
		Add(StorageBuffer{Var: "out_draws", Elem: "DrawCommand", Decl: declDraw}).
		Add(AtomicCounter{Var: "counters", Count: 1}).
		AddToGroup(1, Texture{Var: "visibility"}).
		Entry(reprojectBody, 8, 8)
}
