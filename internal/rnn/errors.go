package rnn

import "errors"

// Sentinel errors for the recurrent model core. Every error returned by
// this package wraps one of these; callers match with errors.Is and must
// treat any of them as fatal for the enclosing dispatch.
var (
	// ErrInvalidConfig reports a non-positive dimension or an unrecognized
	// mode/direction/input-mode string.
	ErrInvalidConfig = errors.New("invalid recurrent model configuration")

	// ErrShapeMismatch reports disagreeing tensor shapes, e.g. an LSTM
	// cell state that differs from the hidden state.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidRank reports a tensor rank the model does not support.
	ErrInvalidRank = errors.New("unsupported tensor rank")
)
