// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU engine for GPU-accelerated recurrent
// inference.
//
// The engine runs the fused forward pass on the GPU; training (reserve
// space and the backward pass) stays on the CPU engine. Initialization
// degrades gracefully when no compatible GPU or native library is
// present.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    eng, err := webgpu.New()
//	    ...
//	} else {
//	    eng = cpu.New()
//	}
package webgpu

import (
	"github.com/born-ml/recurrent/internal/engine"
	internalwebgpu "github.com/born-ml/recurrent/internal/engine/webgpu"
)

// Engine is the WebGPU implementation of the recurrent compute engine.
type Engine = internalwebgpu.Engine

// Compile-time check that Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// New creates a WebGPU engine.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible
// GPU or the native library is missing). Call Close() when done to free
// GPU resources.
func New() (*Engine, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// Useful for graceful fallback to the CPU engine when no GPU is present.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
