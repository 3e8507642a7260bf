package webgpu

// utilityShader backs the device's own copies, presentation and partial
// clears. It declares the same group 0 layout as every technique.
const utilityShader = `
struct Params {
    values: array<vec4<f32>, 8>,
    transform: mat4x4<f32>,
};

@group(0) @binding(0) var t0: texture_2d<f32>;
@group(0) @binding(4) var s: sampler;
@group(0) @binding(5) var<uniform> params: Params;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@location(0) position: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = params.transform * vec4<f32>(position, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_blit(in: VertexOut) -> @location(0) vec4<f32> {
    return textureSample(t0, s, in.uv);
}

@fragment
fn fs_fill(in: VertexOut) -> @location(0) vec4<f32> {
    return params.values[0];
}
`
