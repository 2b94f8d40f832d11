package ops

import (
	"fmt"
	"sync"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Backward runs the fused backward pass of a recurrent model.
//
// It consumes the same inputs the training-mode forward pass saw, the
// gradients flowing into the forward outputs, and the reserve space that
// forward produced. Like Forward it caches its execution plan across
// invocations with the same structural dimensions.
type Backward struct {
	attrs Attrs
	eng   engine.Engine

	mu   sync.Mutex
	plan *engine.Plan
}

// BackwardResult holds the gradients of one backward invocation, shaped
// exactly like the corresponding forward inputs. InputCBackprop is empty
// for non-LSTM models.
type BackwardResult struct {
	InputBackprop  *tensor.RawTensor
	InputHBackprop *tensor.RawTensor
	InputCBackprop *tensor.RawTensor
	ParamsBackprop *tensor.RawTensor
}

// NewBackward builds a backward op bound to an engine.
func NewBackward(attrs Attrs, eng engine.Engine) *Backward {
	return &Backward{attrs: attrs, eng: eng}
}

func (b *Backward) planFor(shapes rnn.Shapes) (*engine.Plan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.plan != nil && b.plan.CompatibleWith(shapes) {
		return b.plan, nil
	}
	plan, err := engine.NewPlan(b.attrs.Mode, b.attrs.InputMode, b.attrs.Direction, shapes)
	if err != nil {
		return nil, err
	}
	b.plan = plan
	return plan, nil
}

// Run validates the forward inputs and the incoming gradients against one
// another, allocates the gradient outputs and dispatches the engine.
//
// outputCBackprop is required for LSTM models and ignored otherwise.
func (b *Backward) Run(input, inputH, inputC, params,
	outputBackprop, outputHBackprop, outputCBackprop, reserve *tensor.RawTensor) (*BackwardResult, error) {

	shapes, err := extractForwardInput(b.attrs, input, inputH, inputC, params)
	if err != nil {
		return nil, err
	}
	plan, err := b.planFor(shapes)
	if err != nil {
		return nil, err
	}
	if err := checkParams(params, plan.ParamSize()); err != nil {
		return nil, err
	}

	// The incoming gradients must mirror the forward output shapes
	// exactly; a silent size mismatch here would corrupt the sweep.
	if outputBackprop == nil || !outputBackprop.Shape().Equal(shapes.OutputShape) {
		return nil, fmt.Errorf("%w: output_backprop must have shape %v",
			rnn.ErrShapeMismatch, shapes.OutputShape)
	}
	if outputHBackprop == nil || outputHBackprop.NumElements() != inputH.NumElements() {
		return nil, fmt.Errorf("%w: output_h_backprop must match input_h shape %v",
			rnn.ErrShapeMismatch, inputH.Shape())
	}
	if b.attrs.Mode.HasCellState() {
		if outputCBackprop == nil || outputCBackprop.NumElements() != inputC.NumElements() {
			return nil, fmt.Errorf("%w: output_c_backprop must match input_c shape %v",
				rnn.ErrShapeMismatch, inputC.Shape())
		}
	}
	if want := b.eng.ReserveSize(plan, shapes); reserve == nil || reserve.NumElements() != want {
		return nil, fmt.Errorf("%w: reserve space must hold %d elements", rnn.ErrShapeMismatch, want)
	}

	dInput, err := tensor.NewRaw(input.Shape(), tensor.Float32)
	if err != nil {
		return nil, err
	}
	dInputH, err := tensor.NewRaw(inputH.Shape(), tensor.Float32)
	if err != nil {
		return nil, err
	}
	dInputC := tensor.Empty(tensor.Float32)
	if b.attrs.Mode.HasCellState() {
		if dInputC, err = tensor.NewRaw(inputC.Shape(), tensor.Float32); err != nil {
			return nil, err
		}
	}
	dParams, err := tensor.NewRaw(params.Shape(), tensor.Float32)
	if err != nil {
		return nil, err
	}

	err = b.eng.Backward(plan, engine.BackwardArgs{
		Shapes:          shapes,
		Input:           input,
		InputH:          inputH,
		InputC:          inputC,
		Params:          params,
		OutputBackprop:  outputBackprop,
		OutputHBackprop: outputHBackprop,
		OutputCBackprop: outputCBackprop,
		Reserve:         reserve,
		InputBackprop:   dInput,
		InputHBackprop:  dInputH,
		InputCBackprop:  dInputC,
		ParamsBackprop:  dParams,
	})
	if err != nil {
		return nil, fmt.Errorf("%s backward: %w", b.eng.Name(), err)
	}
	return &BackwardResult{
		InputBackprop:  dInput,
		InputHBackprop: dInputH,
		InputCBackprop: dInputC,
		ParamsBackprop: dParams,
	}, nil
}
