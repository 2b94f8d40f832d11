// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package rnn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/recurrent/internal/ops"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Model wraps a configuration, an engine and an owned parameter buffer
// behind a small train/infer API. It is a convenience layer over the
// Forward and Backward ops; callers that manage their own parameter
// buffers should use those directly.
type Model struct {
	cfg    Config
	params *tensor.RawTensor

	infer *ops.Forward
	train *ops.Forward
	back  *ops.Backward
}

// NewModel validates the configuration, allocates the packed parameter
// buffer and initializes it with uniform values in [-k, k] where
// k = 1/sqrt(num_units), seeded from the attribute seed pair.
func NewModel(attrs Attrs, numLayers, numUnits, inputSize int, eng Engine) (*Model, error) {
	cfg, err := rnn.NewConfig(Config{
		Mode:      attrs.Mode,
		InputMode: attrs.InputMode,
		Direction: attrs.Direction,
		NumLayers: numLayers,
		NumUnits:  numUnits,
		InputSize: inputSize,
		Dropout:   attrs.Dropout,
		Seed:      attrs.Seed,
		Seed2:     attrs.Seed2,
	})
	if err != nil {
		return nil, err
	}

	size := cfg.ParamSize()
	params, err := tensor.NewRaw(tensor.Shape{int(size)}, tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("allocating parameter buffer: %w", err)
	}

	rng := rand.New(rand.NewSource(int64(attrs.CombinedSeed())))
	scale := float32(1 / math.Sqrt(float64(numUnits)))
	data := params.AsFloat32()
	for i := range data {
		data[i] = (2*rng.Float32() - 1) * scale
	}

	return &Model{
		cfg:    cfg,
		params: params,
		infer:  ops.NewForward(attrs, eng, false),
		train:  ops.NewForward(attrs, eng, true),
		back:   ops.NewBackward(attrs, eng),
	}, nil
}

// Config returns the validated model configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// Params returns the model's packed parameter buffer. Mutating it (e.g.
// applying optimizer updates) is the caller's business; the buffer is
// read on every forward and backward call.
func (m *Model) Params() *tensor.RawTensor {
	return m.params
}

// Forward runs an inference forward pass. inputC is only consulted for
// LSTM models and may be nil otherwise.
func (m *Model) Forward(input, inputH, inputC *tensor.RawTensor) (*ForwardResult, error) {
	return m.infer.Run(input, inputH, inputC, m.params)
}

// ForwardTraining runs a training forward pass; the result carries the
// reserve space Backward needs.
func (m *Model) ForwardTraining(input, inputH, inputC *tensor.RawTensor) (*ForwardResult, error) {
	return m.train.Run(input, inputH, inputC, m.params)
}

// Backward consumes the inputs of a training forward pass, the gradients
// flowing into its outputs and its reserve space, and returns the
// gradients with respect to the inputs and parameters.
func (m *Model) Backward(input, inputH, inputC,
	outputBackprop, outputHBackprop, outputCBackprop, reserve *tensor.RawTensor) (*BackwardResult, error) {
	return m.back.Run(input, inputH, inputC, m.params,
		outputBackprop, outputHBackprop, outputCBackprop, reserve)
}
