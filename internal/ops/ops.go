// Package ops implements the operation surface of the recurrent
// primitives: parameter-buffer sizing, the fused forward pass, and the
// fused backward pass. Each op validates its tensors, derives the model
// shapes, allocates the outputs, and dispatches a compute engine.
package ops

import (
	"fmt"

	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// Attrs is the attribute set shared by all recurrent ops, matching the
// string vocabulary host frameworks use. Dropout and the seed pair are
// carried through to engines untouched; none of the op logic reads them.
type Attrs struct {
	Mode      rnn.Mode
	InputMode rnn.InputMode
	Direction rnn.Direction

	Dropout float32
	Seed    int64
	Seed2   int64
}

// ParseAttrs validates attribute strings at the boundary.
func ParseAttrs(mode, inputMode, direction string) (Attrs, error) {
	m, err := rnn.ParseMode(mode)
	if err != nil {
		return Attrs{}, err
	}
	im, err := rnn.ParseInputMode(inputMode)
	if err != nil {
		return Attrs{}, err
	}
	d, err := rnn.ParseDirection(direction)
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{Mode: m, InputMode: im, Direction: d}, nil
}

// CombinedSeed folds the seed pair into one 64-bit value.
func (a Attrs) CombinedSeed() uint64 {
	return uint64(a.Seed)<<32 | uint64(uint32(a.Seed2))
}

// extractForwardInput validates the forward input tensors and derives the
// model shapes from them. It is shared by the forward and backward ops,
// which see the same input set.
func extractForwardInput(attrs Attrs, input, inputH, inputC, params *tensor.RawTensor) (rnn.Shapes, error) {
	if input == nil || inputH == nil || params == nil {
		return rnn.Shapes{}, fmt.Errorf("%w: input, input_h and params are required", rnn.ErrShapeMismatch)
	}
	var cellShape tensor.Shape
	if attrs.Mode.HasCellState() {
		if inputC == nil {
			return rnn.Shapes{}, fmt.Errorf("%w: lstm requires an input_c tensor", rnn.ErrShapeMismatch)
		}
		cellShape = inputC.Shape()
	}

	shapes, err := rnn.DeriveShapes(attrs.Mode, attrs.Direction, input.Shape(), inputH.Shape(), cellShape)
	if err != nil {
		return rnn.Shapes{}, err
	}

	// The engines consume flat buffers; a rank-2 hidden state cannot
	// describe a bidirectional stack, so catch the element-count
	// disagreement here rather than deep in a kernel.
	wantState := shapes.NumLayers * shapes.DirCount * shapes.BatchSize * shapes.NumUnits
	if inputH.NumElements() != wantState {
		return rnn.Shapes{}, fmt.Errorf("%w: input_h %v holds %d elements, model needs %d",
			rnn.ErrShapeMismatch, inputH.Shape(), inputH.NumElements(), wantState)
	}
	return shapes, nil
}

// checkParams verifies the opaque buffer length against the agreed size.
func checkParams(params *tensor.RawTensor, want int64) error {
	if int64(params.NumElements()) != want {
		return fmt.Errorf("%w: params buffer holds %d elements, model needs %d",
			rnn.ErrShapeMismatch, params.NumElements(), want)
	}
	return nil
}
