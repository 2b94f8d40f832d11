package rnn

import (
	"fmt"

	"github.com/born-ml/recurrent/internal/tensor"
)

// Shapes is a read-only snapshot of every dependent dimension of one model
// invocation, derived once from the configuration and the concrete input
// tensors and never mutated afterwards.
type Shapes struct {
	SeqLength int
	BatchSize int
	InputSize int
	NumUnits  int
	NumLayers int
	DirCount  int

	InputShape       tensor.Shape
	OutputShape      tensor.Shape
	HiddenStateShape tensor.Shape
}

// DeriveShapes computes the dependent shapes for one invocation.
//
// The input may be rank 2 (batch, input_size), which implies seq_length 1,
// or rank 3 (seq_length, batch, input_size). The hidden state may be rank 2
// (batch, num_units), which implies num_layers 1, or rank 3
// (num_layers*dir_count, batch, num_units). For LSTM the cell state must
// have exactly the hidden state's shape; pass a nil cell shape for all
// other modes.
//
// The output shape mirrors the input rank: (seq_length, batch,
// dir_count*num_units) for rank-3 inputs, (batch, dir_count*num_units) for
// rank-2 inputs.
func DeriveShapes(mode Mode, direction Direction, input, hidden, cell tensor.Shape) (Shapes, error) {
	var s Shapes
	s.DirCount = direction.DirCount()

	// Input layout: T x N x F, or N x F with an implied single step.
	switch input.Rank() {
	case 2:
		s.SeqLength = 1
		s.BatchSize = input[0]
		s.InputSize = input[1]
		s.InputShape = tensor.Shape{1, s.BatchSize, s.InputSize}
	case 3:
		s.SeqLength = input[0]
		s.BatchSize = input[1]
		s.InputSize = input[2]
		s.InputShape = input.Clone()
	default:
		return Shapes{}, fmt.Errorf("%w: input must be rank 2 or 3, got rank %d (%v)",
			ErrInvalidRank, input.Rank(), input)
	}

	// Hidden layout: (L * dir_count) x N x num_units, or N x num_units
	// with an implied single layer.
	switch hidden.Rank() {
	case 2:
		s.NumLayers = 1
		s.NumUnits = hidden[1]
		s.HiddenStateShape = tensor.Shape{s.BatchSize, s.NumUnits}
	case 3:
		s.NumLayers = hidden[0] / s.DirCount
		s.NumUnits = hidden[2]
		s.HiddenStateShape = tensor.Shape{s.DirCount * s.NumLayers, s.BatchSize, s.NumUnits}
	default:
		return Shapes{}, fmt.Errorf("%w: hidden state must be rank 2 or 3, got rank %d (%v)",
			ErrInvalidRank, hidden.Rank(), hidden)
	}

	// Only LSTM carries a cell state, and it must agree with the hidden
	// state exactly.
	if mode.HasCellState() {
		if !hidden.Equal(cell) {
			return Shapes{}, fmt.Errorf("%w: hidden state %v and cell state %v must have the same shape",
				ErrShapeMismatch, hidden, cell)
		}
	}

	// Output layout: T x N x (dir_count * num_units), rank mirrors input.
	if input.Rank() == 2 {
		s.OutputShape = tensor.Shape{s.BatchSize, s.DirCount * s.NumUnits}
	} else {
		s.OutputShape = tensor.Shape{s.SeqLength, s.BatchSize, s.DirCount * s.NumUnits}
	}
	return s, nil
}

// CompatibleWith reports whether a cached execution plan built for s can be
// reused for rhs. Sequence length and batch size may differ between
// compatible invocations; the structural dimensions may not.
func (s Shapes) CompatibleWith(rhs Shapes) bool {
	return s.NumLayers == rhs.NumLayers && s.InputSize == rhs.InputSize &&
		s.NumUnits == rhs.NumUnits && s.DirCount == rhs.DirCount
}

// String summarizes the structural dimensions, mirroring the plan-cache key.
func (s Shapes) String() string {
	return fmt.Sprintf("[num_layers, input_size, num_units, dir_count]: [%d, %d, %d, %d]",
		s.NumLayers, s.InputSize, s.NumUnits, s.DirCount)
}
