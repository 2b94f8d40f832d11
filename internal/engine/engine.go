// Package engine defines the boundary between the recurrent op surface and
// the compute primitives that execute it.
//
// An Engine plays the role of a native kernel library: it consumes the
// derived shapes and the opaque parameter buffer and runs the fused
// forward/backward primitives. The reference implementation lives in
// engine/cpu; engine/webgpu dispatches the forward pass to the GPU.
package engine

import (
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// ForwardArgs carries the tensors of one forward dispatch. All tensors are
// Float32 and contiguous; the engine never allocates outputs itself.
//
// InputC and OutputC are only meaningful for LSTM models. Reserve must hold
// ReserveSize elements when Training is set and may be nil otherwise.
type ForwardArgs struct {
	Shapes   rnn.Shapes
	Training bool

	Input  *tensor.RawTensor // seq_length x batch x input_size
	InputH *tensor.RawTensor // (num_layers*dir_count) x batch x num_units
	InputC *tensor.RawTensor // same as InputH, LSTM only
	Params *tensor.RawTensor // opaque flat weight/bias buffer

	Output  *tensor.RawTensor // seq_length x batch x (dir_count*num_units)
	OutputH *tensor.RawTensor // same shape as InputH
	OutputC *tensor.RawTensor // same shape as InputC, LSTM only
	Reserve *tensor.RawTensor // opaque scratch for the backward pass
}

// BackwardArgs carries the tensors of one backward dispatch. The gradient
// outputs are written in place; ParamsBackprop is expected to be zeroed by
// the caller before dispatch.
type BackwardArgs struct {
	Shapes rnn.Shapes

	Input  *tensor.RawTensor
	InputH *tensor.RawTensor
	InputC *tensor.RawTensor
	Params *tensor.RawTensor

	OutputBackprop  *tensor.RawTensor // same shape as forward Output
	OutputHBackprop *tensor.RawTensor // same shape as InputH
	OutputCBackprop *tensor.RawTensor // same shape as InputC, LSTM only
	Reserve         *tensor.RawTensor // reserve produced by the training forward

	InputBackprop  *tensor.RawTensor
	InputHBackprop *tensor.RawTensor
	InputCBackprop *tensor.RawTensor
	ParamsBackprop *tensor.RawTensor
}

// Engine executes fused recurrent primitives for a prepared Plan.
//
// Engines own whatever native resources they need (devices, pipelines,
// buffers) and release them in Close; per-dispatch resources must be
// released on every exit path, including errors.
type Engine interface {
	// Name identifies the engine, e.g. "cpu" or "webgpu".
	Name() string

	// ReserveSize returns the element count of the reserve space a
	// training-mode forward pass produces for the given invocation. The
	// layout of that space is owned by the engine and opaque to callers.
	ReserveSize(plan *Plan, shapes rnn.Shapes) int

	// Forward runs the fused forward primitive.
	Forward(plan *Plan, args ForwardArgs) error

	// Backward runs the fused backward primitive. Engines that only
	// support inference return ErrUnsupported.
	Backward(plan *Plan, args BackwardArgs) error

	// Close releases the engine's resources.
	Close() error
}
