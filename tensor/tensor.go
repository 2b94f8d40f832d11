// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the flat host tensors the
// recurrent ops consume and produce.
//
// The recurrent primitives only ever exchange whole, contiguous buffers
// with a compute engine, so the surface is deliberately small: a shape,
// a data type, and a raw buffer.
//
// Example:
//
//	x, err := tensor.FromSlice(data, tensor.Shape{seq, batch, features})
//	if err != nil {
//	    log.Fatal(err)
//	}
package tensor

import (
	"github.com/born-ml/recurrent/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
)

// RawTensor is a flat host buffer together with its shape and data type.
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromSlice creates a Float32 tensor backed by a copy of data.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Empty returns a tensor with no elements, used for outputs that exist
// only for some model configurations.
func Empty(dtype DataType) *RawTensor {
	return tensor.Empty(dtype)
}
