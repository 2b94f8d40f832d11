// Package cpu implements the reference compute engine for the fused
// recurrent primitives: plain Go loops over the packed parameter layout,
// covering all cell variants, stacked layers, both directions, and the full
// backward pass. It trades speed for being the layout's executable
// definition: vendor kernels are expected to outperform it, not disagree
// with it.
package cpu

import (
	"fmt"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Engine is the CPU compute engine. It is stateless and safe for
// concurrent use.
type Engine struct{}

// New creates a CPU engine.
func New() *Engine {
	return &Engine{}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "cpu"
}

// Close releases nothing; the CPU engine holds no native resources.
func (e *Engine) Close() error {
	return nil
}

// ReserveSize returns the element count of the reserve space for one
// training-mode invocation.
func (e *Engine) ReserveSize(plan *engine.Plan, shapes rnn.Shapes) int {
	layout := newReserveLayout(plan.Config(), shapes)
	return layout.total
}

// Forward runs the fused forward pass.
func (e *Engine) Forward(plan *engine.Plan, args engine.ForwardArgs) error {
	cfg := plan.Config()
	s := args.Shapes

	if err := checkLen("params", args.Params, int(plan.ParamSize())); err != nil {
		return err
	}
	if err := checkLen("input", args.Input, s.SeqLength*s.BatchSize*s.InputSize); err != nil {
		return err
	}
	stateLen := s.NumLayers * s.DirCount * s.BatchSize * s.NumUnits
	if err := checkLen("input_h", args.InputH, stateLen); err != nil {
		return err
	}
	if err := checkLen("output", args.Output, s.SeqLength*s.BatchSize*s.DirCount*s.NumUnits); err != nil {
		return err
	}
	if err := checkLen("output_h", args.OutputH, stateLen); err != nil {
		return err
	}
	if cfg.Mode.HasCellState() {
		if err := checkLen("input_c", args.InputC, stateLen); err != nil {
			return err
		}
		if err := checkLen("output_c", args.OutputC, stateLen); err != nil {
			return err
		}
	}

	layout := newReserveLayout(cfg, s)
	var reserve []float32
	if args.Training {
		if err := checkLen("reserve_space", args.Reserve, layout.total); err != nil {
			return err
		}
		reserve = args.Reserve.AsFloat32()
	} else {
		// Inference still sweeps through the same layout, just on
		// engine-local scratch.
		reserve = make([]float32, layout.total)
	}

	fwd := &forwardPass{
		cfg:     cfg,
		shapes:  s,
		layout:  layout,
		params:  splitParams(cfg, args.Params.AsFloat32()),
		reserve: reserve,
	}
	fwd.run(args)
	return nil
}

// Backward runs the fused backward pass over the reserve space produced by
// a training-mode forward.
func (e *Engine) Backward(plan *engine.Plan, args engine.BackwardArgs) error {
	cfg := plan.Config()
	s := args.Shapes

	if err := checkLen("params", args.Params, int(plan.ParamSize())); err != nil {
		return err
	}
	inputLen := s.SeqLength * s.BatchSize * s.InputSize
	if err := checkLen("input", args.Input, inputLen); err != nil {
		return err
	}
	stateLen := s.NumLayers * s.DirCount * s.BatchSize * s.NumUnits
	outputLen := s.SeqLength * s.BatchSize * s.DirCount * s.NumUnits
	if err := checkLen("input_h", args.InputH, stateLen); err != nil {
		return err
	}
	if err := checkLen("output_backprop", args.OutputBackprop, outputLen); err != nil {
		return err
	}
	if err := checkLen("output_h_backprop", args.OutputHBackprop, stateLen); err != nil {
		return err
	}
	if err := checkLen("input_backprop", args.InputBackprop, inputLen); err != nil {
		return err
	}
	if err := checkLen("input_h_backprop", args.InputHBackprop, stateLen); err != nil {
		return err
	}
	if err := checkLen("params_backprop", args.ParamsBackprop, int(plan.ParamSize())); err != nil {
		return err
	}
	if cfg.Mode.HasCellState() {
		if err := checkLen("output_c_backprop", args.OutputCBackprop, stateLen); err != nil {
			return err
		}
		if err := checkLen("input_c_backprop", args.InputCBackprop, stateLen); err != nil {
			return err
		}
	}

	layout := newReserveLayout(cfg, s)
	if err := checkLen("reserve_space", args.Reserve, layout.total); err != nil {
		return err
	}

	bwd := &backwardPass{
		cfg:        cfg,
		shapes:     s,
		layout:     layout,
		params:     splitParams(cfg, args.Params.AsFloat32()),
		paramGrads: splitParams(cfg, args.ParamsBackprop.AsFloat32()),
		reserve:    args.Reserve.AsFloat32(),
	}
	bwd.run(args)
	return nil
}

func checkLen(name string, t *tensor.RawTensor, want int) error {
	if t == nil {
		return fmt.Errorf("%w: missing %s tensor", rnn.ErrShapeMismatch, name)
	}
	if t.NumElements() != want {
		return fmt.Errorf("%w: %s has %d elements, engine expects %d",
			rnn.ErrShapeMismatch, name, t.NumElements(), want)
	}
	return nil
}
