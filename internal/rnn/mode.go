// Package rnn implements the model core of the recurrent primitives: the
// closed mode/direction/input-mode enumerations, model configuration, shape
// derivation, and the opaque parameter-buffer sizing formula.
//
// Everything here is pure computation over immutable inputs. Tensor
// allocation and the actual forward/backward execution live in the engine
// and op packages, which consume the values derived here.
package rnn

import "fmt"

// Mode identifies the recurrent cell variant.
type Mode int

// Supported cell variants.
const (
	ReLU Mode = iota // vanilla RNN with ReLU activation
	Tanh             // vanilla RNN with tanh activation
	LSTM
	GRU
)

// ParseMode converts an attribute string into a Mode.
// Unknown strings are rejected before any shape or size computation runs.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rnn_relu":
		return ReLU, nil
	case "rnn_tanh":
		return Tanh, nil
	case "lstm":
		return LSTM, nil
	case "gru":
		return GRU, nil
	}
	return 0, fmt.Errorf("%w: unknown rnn mode %q", ErrInvalidConfig, s)
}

// GateCount returns the number of gates per cell step: 1 for the vanilla
// RNNs, 3 for GRU, 4 for LSTM. Returns -1 for an unrecognized mode.
func (m Mode) GateCount() int {
	switch m {
	case ReLU, Tanh:
		return 1
	case GRU:
		return 3
	case LSTM:
		return 4
	}
	return -1
}

// HasCellState reports whether the variant carries a cell state alongside
// the hidden state. Only LSTM does; all other models use the hidden state
// alone.
func (m Mode) HasCellState() bool {
	return m == LSTM
}

// String returns the attribute-string form of the mode.
func (m Mode) String() string {
	switch m {
	case ReLU:
		return "rnn_relu"
	case Tanh:
		return "rnn_tanh"
	case LSTM:
		return "lstm"
	case GRU:
		return "gru"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Direction identifies how the time axis is traversed.
type Direction int

// Supported directions.
const (
	Unidirectional Direction = iota
	Bidirectional
)

// ParseDirection converts an attribute string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "unidirectional":
		return Unidirectional, nil
	case "bidirectional":
		return Bidirectional, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, s)
}

// DirCount returns 2 for bidirectional models and 1 otherwise.
func (d Direction) DirCount() int {
	if d == Bidirectional {
		return 2
	}
	return 1
}

// String returns the attribute-string form of the direction.
func (d Direction) String() string {
	if d == Bidirectional {
		return "bidirectional"
	}
	return "unidirectional"
}

// InputMode controls the projection between the input and the first layer.
type InputMode int

// Supported input modes.
const (
	// LinearInput applies a learned linear projection to the input.
	LinearInput InputMode = iota
	// SkipInput feeds the input straight into the first layer. Only
	// allowed when input_size == num_units.
	SkipInput
	// AutoSelect resolves to SkipInput when input_size == num_units and
	// to LinearInput otherwise. Resolution happens in Config validation.
	AutoSelect
)

// ParseInputMode converts an attribute string into an InputMode.
func ParseInputMode(s string) (InputMode, error) {
	switch s {
	case "linear_input":
		return LinearInput, nil
	case "skip_input":
		return SkipInput, nil
	case "auto_select":
		return AutoSelect, nil
	}
	return 0, fmt.Errorf("%w: unknown input mode %q", ErrInvalidConfig, s)
}

// Resolve returns the concrete input mode for the given sizes: AutoSelect
// becomes SkipInput when inputSize == numUnits and LinearInput otherwise.
// Concrete modes resolve to themselves.
func (im InputMode) Resolve(inputSize, numUnits int) InputMode {
	if im != AutoSelect {
		return im
	}
	if inputSize == numUnits {
		return SkipInput
	}
	return LinearInput
}

// String returns the attribute-string form of the input mode.
func (im InputMode) String() string {
	switch im {
	case LinearInput:
		return "linear_input"
	case SkipInput:
		return "skip_input"
	case AutoSelect:
		return "auto_select"
	}
	return fmt.Sprintf("InputMode(%d)", int(im))
}
