//go:build windows

// Package webgpu provides embedded WGSL compute shaders for the fused
// recurrent step kernels.
package webgpu

// WGSL compute shaders for the recurrent forward pass.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// Every step shader processes one timestep of one (layer, direction)
// sweep: each thread owns one (batch, unit) pair and computes all gate
// pre-activations for it. The packed weight block of the current
// (direction, layer) starts at params.w_off and holds, gate-major:
// Wx [g x units x in], Wh [g x units x units], bx [g x units],
// bh [g x units].

// vanillaStepShader runs one rnn_relu/rnn_tanh step:
// h' = act(Wx x + bx + Wh h + bh). params.act selects relu (0) or tanh (1).
const vanillaStepShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> h_in: array<f32>;
@group(0) @binding(3) var<storage, read_write> h_out: array<f32>;
@group(0) @binding(4) var<storage, read_write> out: array<f32>;

struct Params {
    t: u32,
    batch: u32,
    in_width: u32,
    units: u32,
    w_off: u32,
    act: u32,
}
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.batch * params.units) {
        return;
    }
    let n = idx / params.units;
    let u = idx % params.units;
    let units = params.units;
    let in_width = params.in_width;

    let wx_off = params.w_off;
    let wh_off = wx_off + units * in_width;
    let bx_off = wh_off + units * units;
    let bh_off = bx_off + units;

    var pre = w[bx_off + u] + w[bh_off + u];
    let x_row = (params.t * params.batch + n) * in_width;
    for (var i = 0u; i < in_width; i = i + 1u) {
        pre = pre + w[wx_off + u * in_width + i] * x[x_row + i];
    }
    for (var j = 0u; j < units; j = j + 1u) {
        pre = pre + w[wh_off + u * units + j] * h_in[n * units + j];
    }

    var h = tanh(pre);
    if (params.act == 0u) {
        h = max(pre, 0.0);
    }
    h_out[idx] = h;
    out[(params.t * params.batch + n) * units + u] = h;
}
`

// lstmStepShader runs one LSTM step with gate order
// [input, forget, cell, output]:
//
//	i = sigmoid(pre_0)  f = sigmoid(pre_1)
//	g = tanh(pre_2)     o = sigmoid(pre_3)
//	c' = f*c + i*g      h' = o * tanh(c')
const lstmStepShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> h_in: array<f32>;
@group(0) @binding(3) var<storage, read> c_in: array<f32>;
@group(0) @binding(4) var<storage, read_write> h_out: array<f32>;
@group(0) @binding(5) var<storage, read_write> c_out: array<f32>;
@group(0) @binding(6) var<storage, read_write> out: array<f32>;

struct Params {
    t: u32,
    batch: u32,
    in_width: u32,
    units: u32,
    w_off: u32,
    act: u32,
}
@group(0) @binding(7) var<uniform> params: Params;

fn sigmoid(v: f32) -> f32 {
    return 1.0 / (1.0 + exp(-v));
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.batch * params.units) {
        return;
    }
    let n = idx / params.units;
    let u = idx % params.units;
    let units = params.units;
    let in_width = params.in_width;

    let wx_off = params.w_off;
    let wh_off = wx_off + 4u * units * in_width;
    let bx_off = wh_off + 4u * units * units;
    let bh_off = bx_off + 4u * units;

    let x_row = (params.t * params.batch + n) * in_width;
    var pre = array<f32, 4>();
    for (var k = 0u; k < 4u; k = k + 1u) {
        var acc = w[bx_off + k * units + u] + w[bh_off + k * units + u];
        let wx_row = wx_off + (k * units + u) * in_width;
        for (var i = 0u; i < in_width; i = i + 1u) {
            acc = acc + w[wx_row + i] * x[x_row + i];
        }
        let wh_row = wh_off + (k * units + u) * units;
        for (var j = 0u; j < units; j = j + 1u) {
            acc = acc + w[wh_row + j] * h_in[n * units + j];
        }
        pre[k] = acc;
    }

    let iv = sigmoid(pre[0]);
    let fv = sigmoid(pre[1]);
    let gv = tanh(pre[2]);
    let ov = sigmoid(pre[3]);
    let c = fv * c_in[idx] + iv * gv;
    let h = ov * tanh(c);

    c_out[idx] = c;
    h_out[idx] = h;
    out[(params.t * params.batch + n) * units + u] = h;
}
`

// gruStepShader runs one GRU step with gate order [reset, update, candidate]
// in the linear-before-reset form: the recurrent part of the candidate is
// computed first and then gated by r, matching the packed dual-bias layout.
//
//	r = sigmoid(xp_0 + hp_0)   z = sigmoid(xp_1 + hp_1)
//	n = tanh(xp_2 + r * hp_2)  h' = (1-z)*n + z*h
const gruStepShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> h_in: array<f32>;
@group(0) @binding(3) var<storage, read_write> h_out: array<f32>;
@group(0) @binding(4) var<storage, read_write> out: array<f32>;

struct Params {
    t: u32,
    batch: u32,
    in_width: u32,
    units: u32,
    w_off: u32,
    act: u32,
}
@group(0) @binding(5) var<uniform> params: Params;

fn sigmoid(v: f32) -> f32 {
    return 1.0 / (1.0 + exp(-v));
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.batch * params.units) {
        return;
    }
    let n = idx / params.units;
    let u = idx % params.units;
    let units = params.units;
    let in_width = params.in_width;

    let wx_off = params.w_off;
    let wh_off = wx_off + 3u * units * in_width;
    let bx_off = wh_off + 3u * units * units;
    let bh_off = bx_off + 3u * units;

    let x_row = (params.t * params.batch + n) * in_width;
    var xp = array<f32, 3>();
    var hp = array<f32, 3>();
    for (var k = 0u; k < 3u; k = k + 1u) {
        var ax = w[bx_off + k * units + u];
        let wx_row = wx_off + (k * units + u) * in_width;
        for (var i = 0u; i < in_width; i = i + 1u) {
            ax = ax + w[wx_row + i] * x[x_row + i];
        }
        xp[k] = ax;

        var ah = w[bh_off + k * units + u];
        let wh_row = wh_off + (k * units + u) * units;
        for (var j = 0u; j < units; j = j + 1u) {
            ah = ah + w[wh_row + j] * h_in[n * units + j];
        }
        hp[k] = ah;
    }

    let rv = sigmoid(xp[0] + hp[0]);
    let zv = sigmoid(xp[1] + hp[1]);
    let nv = tanh(xp[2] + rv * hp[2]);
    let h = (1.0 - zv) * nv + zv * h_in[idx];

    h_out[idx] = h;
    out[(params.t * params.batch + n) * units + u] = h;
}
`

// sumShader adds two direction outputs element-wise. Inner layers of a
// bidirectional stack feed the next layer the sum of both directions.
const sumShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] + b[idx];
    }
}
`

// concatShader interleaves the two direction outputs of the final layer on
// the feature axis: result[t, n, 0:units] = fwd, result[t, n, units:] = bwd.
const concatShader = `
@group(0) @binding(0) var<storage, read> fwd: array<f32>;
@group(0) @binding(1) var<storage, read> bwd: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    units: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / params.units;
    let u = idx % params.units;
    result[row * 2u * params.units + u] = fwd[idx];
    result[(row * 2u + 1u) * params.units + u] = bwd[idx];
}
`
