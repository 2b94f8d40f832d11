// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package rnn provides the public API for fused multi-layer recurrent
// primitives: vanilla RNN (relu/tanh), GRU and LSTM, unidirectional or
// bidirectional, over pluggable compute engines.
//
// The package exposes three layers of API:
//   - Pure model math: ParamSize, DeriveShapes, Config. No engine needed.
//   - The op surface: Forward and Backward ops over an Engine.
//   - Model: a convenience wrapper owning a parameter buffer.
//
// Example:
//
//	eng := cpu.New()
//	defer eng.Close()
//
//	attrs, _ := rnn.ParseAttrs("lstm", "linear_input", "unidirectional")
//	model, err := rnn.NewModel(attrs, 2, 128, 64, eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := model.Forward(input, hidden, cell)
package rnn

import (
	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/ops"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Mode selects the recurrent cell type.
type Mode = rnn.Mode

// Cell type constants, matching the attribute strings
// "rnn_relu", "rnn_tanh", "lstm" and "gru".
const (
	ReLU Mode = rnn.ReLU
	Tanh Mode = rnn.Tanh
	LSTM Mode = rnn.LSTM
	GRU  Mode = rnn.GRU
)

// Direction selects unidirectional or bidirectional stacking.
type Direction = rnn.Direction

// Direction constants.
const (
	Unidirectional Direction = rnn.Unidirectional
	Bidirectional  Direction = rnn.Bidirectional
)

// InputMode selects how the first layer consumes its input.
type InputMode = rnn.InputMode

// Input mode constants. AutoSelect resolves to SkipInput when
// input_size == num_units and to LinearInput otherwise.
const (
	LinearInput InputMode = rnn.LinearInput
	SkipInput   InputMode = rnn.SkipInput
	AutoSelect  InputMode = rnn.AutoSelect
)

// Config describes a recurrent model.
type Config = rnn.Config

// Shapes is the derived dimension snapshot of one model invocation.
type Shapes = rnn.Shapes

// Sentinel errors, matchable with errors.Is.
var (
	ErrInvalidConfig = rnn.ErrInvalidConfig
	ErrShapeMismatch = rnn.ErrShapeMismatch
	ErrInvalidRank   = rnn.ErrInvalidRank
)

// Engine executes fused recurrent primitives. Implementations live in
// engine/cpu and engine/webgpu.
type Engine = engine.Engine

// ErrUnsupported reports a primitive the engine does not implement.
var ErrUnsupported = engine.ErrUnsupported

// Attrs is the attribute set shared by all recurrent ops.
type Attrs = ops.Attrs

// ParseAttrs validates attribute strings at the boundary.
func ParseAttrs(mode, inputMode, direction string) (Attrs, error) {
	return ops.ParseAttrs(mode, inputMode, direction)
}

// NewConfig validates and returns a model configuration.
func NewConfig(cfg Config) (Config, error) {
	return rnn.NewConfig(cfg)
}

// ParseConfig builds a Config from attribute strings and dimensions.
func ParseConfig(mode, inputMode, direction string, numLayers, numUnits, inputSize int) (Config, error) {
	return rnn.ParseConfig(mode, inputMode, direction, numLayers, numUnits, inputSize)
}

// DeriveShapes computes the dependent shapes of one invocation from the
// input, hidden state and (LSTM only) cell state tensor shapes.
func DeriveShapes(mode Mode, direction Direction, input, hidden, cell tensor.Shape) (Shapes, error) {
	return rnn.DeriveShapes(mode, direction, input, hidden, cell)
}

// ParamSize returns the flat element count of the opaque parameter buffer,
// or -1 for an unrecognized mode.
func ParamSize(mode Mode, dirCount, inputSize, numUnits, numLayers int) int64 {
	return rnn.ParamSize(mode, dirCount, inputSize, numUnits, numLayers)
}

// ParamsSize reports the parameter buffer size for validated attributes
// and dimensions.
func ParamsSize(attrs Attrs, numLayers, numUnits, inputSize int) (int64, error) {
	return ops.ParamsSize(attrs, numLayers, numUnits, inputSize)
}

// Forward is the fused forward op. See ops for semantics.
type Forward = ops.Forward

// Backward is the fused backward op.
type Backward = ops.Backward

// ForwardResult holds the outputs of one forward invocation.
type ForwardResult = ops.ForwardResult

// BackwardResult holds the gradients of one backward invocation.
type BackwardResult = ops.BackwardResult

// NewForward builds a forward op bound to an engine. training selects
// whether invocations produce a reserve space for a later backward pass.
func NewForward(attrs Attrs, eng Engine, training bool) *Forward {
	return ops.NewForward(attrs, eng, training)
}

// NewBackward builds a backward op bound to an engine.
func NewBackward(attrs Attrs, eng Engine) *Backward {
	return ops.NewBackward(attrs, eng)
}
