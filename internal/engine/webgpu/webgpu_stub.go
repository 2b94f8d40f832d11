//go:build !windows

// Package webgpu implements a GPU compute engine for the fused recurrent
// forward pass. The wgpu_native bindings only ship for windows; on other
// platforms New reports the engine as unavailable.
package webgpu

import (
	"fmt"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
)

// Engine is a placeholder on platforms without WebGPU bindings.
type Engine struct{}

// New reports that no WebGPU device is available on this platform.
func New() (*Engine, error) {
	return nil, fmt.Errorf("webgpu: not available on this platform")
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() bool {
	return false
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "webgpu"
}

// ReserveSize reports zero: the engine never runs in training mode.
func (e *Engine) ReserveSize(plan *engine.Plan, shapes rnn.Shapes) int {
	return 0
}

// Forward is unavailable without WebGPU bindings.
func (e *Engine) Forward(plan *engine.Plan, args engine.ForwardArgs) error {
	return engine.ErrUnsupported
}

// Backward is not supported on the GPU engine.
func (e *Engine) Backward(plan *engine.Plan, args engine.BackwardArgs) error {
	return engine.ErrUnsupported
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return nil
}
