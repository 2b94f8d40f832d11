package ops

import (
	"fmt"
	"sync"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Forward runs the fused forward pass of a recurrent model.
//
// An op instance is long-lived: it caches the execution plan of its last
// invocation and reuses it as long as the structural dimensions of the
// inputs do not change. Sequence length and batch size may vary freely
// between calls. Forward is safe for concurrent use.
type Forward struct {
	attrs    Attrs
	eng      engine.Engine
	training bool

	mu   sync.Mutex
	plan *engine.Plan
}

// ForwardResult holds the outputs of one forward invocation.
//
// OutputC is empty for non-LSTM models. Reserve is empty in inference
// mode; in training mode it is the opaque scratch the backward pass needs
// and must be handed back untouched.
type ForwardResult struct {
	Output  *tensor.RawTensor
	OutputH *tensor.RawTensor
	OutputC *tensor.RawTensor
	Reserve *tensor.RawTensor
}

// NewForward builds a forward op bound to an engine. training selects
// whether invocations produce a reserve space for a later backward pass.
func NewForward(attrs Attrs, eng engine.Engine, training bool) *Forward {
	return &Forward{attrs: attrs, eng: eng, training: training}
}

// planFor returns a plan compatible with the derived shapes, rebuilding
// the cached one only when the structural dimensions changed.
func (f *Forward) planFor(shapes rnn.Shapes) (*engine.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plan != nil && f.plan.CompatibleWith(shapes) {
		return f.plan, nil
	}
	plan, err := engine.NewPlan(f.attrs.Mode, f.attrs.InputMode, f.attrs.Direction, shapes)
	if err != nil {
		return nil, err
	}
	f.plan = plan
	return plan, nil
}

// Run derives the model shapes from the inputs, validates the parameter
// buffer, allocates the outputs and dispatches the engine.
//
// inputC is required for LSTM models and ignored otherwise.
func (f *Forward) Run(input, inputH, inputC, params *tensor.RawTensor) (*ForwardResult, error) {
	shapes, err := extractForwardInput(f.attrs, input, inputH, inputC, params)
	if err != nil {
		return nil, err
	}
	plan, err := f.planFor(shapes)
	if err != nil {
		return nil, err
	}
	if err := checkParams(params, plan.ParamSize()); err != nil {
		return nil, err
	}

	out, err := tensor.NewRaw(shapes.OutputShape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	outH, err := tensor.NewRaw(shapes.HiddenStateShape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	outC := tensor.Empty(tensor.Float32)
	if f.attrs.Mode.HasCellState() {
		if outC, err = tensor.NewRaw(shapes.HiddenStateShape, tensor.Float32); err != nil {
			return nil, err
		}
	}
	reserve := tensor.Empty(tensor.Float32)
	if f.training {
		size := f.eng.ReserveSize(plan, shapes)
		if reserve, err = tensor.NewRaw(tensor.Shape{size}, tensor.Float32); err != nil {
			return nil, err
		}
	}

	err = f.eng.Forward(plan, engine.ForwardArgs{
		Shapes:   shapes,
		Training: f.training,
		Input:    input,
		InputH:   inputH,
		InputC:   inputC,
		Params:   params,
		Output:   out,
		OutputH:  outH,
		OutputC:  outC,
		Reserve:  reserve,
	})
	if err != nil {
		return nil, fmt.Errorf("%s forward: %w", f.eng.Name(), err)
	}
	return &ForwardResult{Output: out, OutputH: outH, OutputC: outC, Reserve: reserve}, nil
}
