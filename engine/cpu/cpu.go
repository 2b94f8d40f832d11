// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the reference CPU engine for the recurrent
// primitives. It implements every mode, multi-layer and bidirectional
// stacking, and the full training path (forward with reserve space plus
// backward-through-time).
package cpu

import (
	"github.com/born-ml/recurrent/internal/engine"
	internalcpu "github.com/born-ml/recurrent/internal/engine/cpu"
)

// Engine is the CPU implementation of the recurrent compute engine.
type Engine = internalcpu.Engine

// Compile-time check that Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// New creates a CPU engine.
//
// Example:
//
//	import (
//	    "github.com/born-ml/recurrent/engine/cpu"
//	    "github.com/born-ml/recurrent/rnn"
//	)
//
//	func main() {
//	    eng := cpu.New()
//	    defer eng.Close()
//	    model, err := rnn.NewModel(attrs, 2, 128, 64, eng)
//	    ...
//	}
func New() *Engine {
	return internalcpu.New()
}
