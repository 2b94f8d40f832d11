package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/recurrent/internal/engine/cpu"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

func mustAttrs(t *testing.T, mode, inputMode, direction string) Attrs {
	t.Helper()
	attrs, err := ParseAttrs(mode, inputMode, direction)
	require.NoError(t, err)
	return attrs
}

func filled(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	buf, err := tensor.NewRaw(shape, tensor.Float32)
	require.NoError(t, err)
	data := buf.AsFloat32()
	for i := range data {
		data[i] = float32((i%7)-3) * 0.05
	}
	return buf
}

func paramsFor(t *testing.T, attrs Attrs, layers, units, inputSize int) *tensor.RawTensor {
	t.Helper()
	size, err := ParamsSize(attrs, layers, units, inputSize)
	require.NoError(t, err)
	return filled(t, tensor.Shape{int(size)})
}

func TestParseAttrsRejectsUnknownStrings(t *testing.T) {
	_, err := ParseAttrs("lstm", "linear_input", "unidirectional")
	assert.NoError(t, err)

	_, err = ParseAttrs("peephole_lstm", "linear_input", "unidirectional")
	assert.Error(t, err)
	_, err = ParseAttrs("lstm", "dense_input", "unidirectional")
	assert.Error(t, err)
	_, err = ParseAttrs("lstm", "linear_input", "omnidirectional")
	assert.Error(t, err)
}

func TestParamsSizeMatchesPackedLayout(t *testing.T) {
	attrs := mustAttrs(t, "lstm", "linear_input", "unidirectional")
	size, err := ParamsSize(attrs, 1, 3, 4)
	require.NoError(t, err)
	// 4 gates x 3 units x (4 + 3 + 2).
	assert.Equal(t, int64(108), size)

	attrs = mustAttrs(t, "gru", "linear_input", "bidirectional")
	size, err = ParamsSize(attrs, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(306), size)
}

func TestParamsSizeRejectsInvalidDims(t *testing.T) {
	attrs := mustAttrs(t, "rnn_tanh", "linear_input", "unidirectional")
	_, err := ParamsSize(attrs, 0, 3, 4)
	assert.ErrorIs(t, err, rnn.ErrInvalidConfig)
	_, err = ParamsSize(attrs, 1, -1, 4)
	assert.ErrorIs(t, err, rnn.ErrInvalidConfig)
}

func TestForwardLSTMProducesAllOutputs(t *testing.T) {
	attrs := mustAttrs(t, "lstm", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, true)

	input := filled(t, tensor.Shape{5, 2, 4})
	inputH := filled(t, tensor.Shape{1, 2, 3})
	inputC := filled(t, tensor.Shape{1, 2, 3})
	params := paramsFor(t, attrs, 1, 3, 4)

	res, err := op.Run(input, inputH, inputC, params)
	require.NoError(t, err)

	assert.True(t, res.Output.Shape().Equal(tensor.Shape{5, 2, 3}))
	assert.True(t, res.OutputH.Shape().Equal(tensor.Shape{1, 2, 3}))
	assert.True(t, res.OutputC.Shape().Equal(tensor.Shape{1, 2, 3}))
	assert.False(t, res.Reserve.IsEmpty(), "training forward must produce a reserve space")
}

func TestForwardNonLSTMHasNoCellOutput(t *testing.T) {
	attrs := mustAttrs(t, "gru", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, false)

	input := filled(t, tensor.Shape{4, 2, 3})
	inputH := filled(t, tensor.Shape{1, 2, 3})
	params := paramsFor(t, attrs, 1, 3, 3)

	res, err := op.Run(input, inputH, nil, params)
	require.NoError(t, err)
	assert.True(t, res.OutputC.IsEmpty())
	assert.True(t, res.Reserve.IsEmpty(), "inference forward must not allocate a reserve space")
}

func TestForwardRankTwoInputImpliesSingleStep(t *testing.T) {
	attrs := mustAttrs(t, "rnn_tanh", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, false)

	input := filled(t, tensor.Shape{2, 4})
	inputH := filled(t, tensor.Shape{2, 3})
	params := paramsFor(t, attrs, 1, 3, 4)

	res, err := op.Run(input, inputH, nil, params)
	require.NoError(t, err)
	assert.True(t, res.Output.Shape().Equal(tensor.Shape{2, 3}),
		"rank-2 input must yield a rank-2 output")
}

func TestForwardBidirectionalOutputWidth(t *testing.T) {
	attrs := mustAttrs(t, "rnn_relu", "linear_input", "bidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, false)

	input := filled(t, tensor.Shape{3, 2, 4})
	inputH := filled(t, tensor.Shape{2, 2, 3})
	params := paramsFor(t, attrs, 1, 3, 4)

	res, err := op.Run(input, inputH, nil, params)
	require.NoError(t, err)
	assert.True(t, res.Output.Shape().Equal(tensor.Shape{3, 2, 6}))
}

func TestForwardRejectsBadInputs(t *testing.T) {
	attrs := mustAttrs(t, "lstm", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, true)

	input := filled(t, tensor.Shape{5, 2, 4})
	inputH := filled(t, tensor.Shape{1, 2, 3})
	inputC := filled(t, tensor.Shape{1, 2, 3})
	params := paramsFor(t, attrs, 1, 3, 4)

	t.Run("missing cell state", func(t *testing.T) {
		_, err := op.Run(input, inputH, nil, params)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("cell state shape clash", func(t *testing.T) {
		badC := filled(t, tensor.Shape{1, 2, 5})
		_, err := op.Run(input, inputH, badC, params)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("short params buffer", func(t *testing.T) {
		short := filled(t, tensor.Shape{107})
		_, err := op.Run(input, inputH, inputC, short)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("rank four input", func(t *testing.T) {
		bad := filled(t, tensor.Shape{5, 2, 4, 1})
		_, err := op.Run(bad, inputH, inputC, params)
		assert.ErrorIs(t, err, rnn.ErrInvalidRank)
	})
	t.Run("rank two hidden with bidirectional model", func(t *testing.T) {
		biAttrs := mustAttrs(t, "lstm", "linear_input", "bidirectional")
		biOp := NewForward(biAttrs, eng, true)
		flatH := filled(t, tensor.Shape{2, 3})
		flatC := filled(t, tensor.Shape{2, 3})
		biParams := paramsFor(t, biAttrs, 1, 3, 4)
		_, err := biOp.Run(input, flatH, flatC, biParams)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
}

func TestForwardReusesPlanAcrossBatchAndSeqChanges(t *testing.T) {
	attrs := mustAttrs(t, "gru", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()
	op := NewForward(attrs, eng, false)
	params := paramsFor(t, attrs, 1, 3, 4)

	_, err := op.Run(filled(t, tensor.Shape{5, 2, 4}), filled(t, tensor.Shape{1, 2, 3}), nil, params)
	require.NoError(t, err)
	first := op.plan

	// Same structural dimensions, different seq length and batch size.
	_, err = op.Run(filled(t, tensor.Shape{3, 4, 4}), filled(t, tensor.Shape{1, 4, 3}), nil, params)
	require.NoError(t, err)
	assert.Same(t, first, op.plan, "compatible invocation must reuse the cached plan")

	// New input size forces a rebuild, and a matching params buffer.
	wide := paramsFor(t, attrs, 1, 3, 6)
	_, err = op.Run(filled(t, tensor.Shape{5, 2, 6}), filled(t, tensor.Shape{1, 2, 3}), nil, wide)
	require.NoError(t, err)
	assert.NotSame(t, first, op.plan, "structural change must rebuild the plan")
}

func TestBackwardProducesGradientsShapedLikeInputs(t *testing.T) {
	attrs := mustAttrs(t, "lstm", "linear_input", "bidirectional")
	eng := cpu.New()
	defer eng.Close()

	input := filled(t, tensor.Shape{4, 2, 3})
	inputH := filled(t, tensor.Shape{4, 2, 3})
	inputC := filled(t, tensor.Shape{4, 2, 3})
	params := paramsFor(t, attrs, 2, 3, 3)

	fwd := NewForward(attrs, eng, true)
	res, err := fwd.Run(input, inputH, inputC, params)
	require.NoError(t, err)

	bwd := NewBackward(attrs, eng)
	grads, err := bwd.Run(input, inputH, inputC, params,
		filled(t, tensor.Shape{4, 2, 6}), filled(t, tensor.Shape{4, 2, 3}),
		filled(t, tensor.Shape{4, 2, 3}), res.Reserve)
	require.NoError(t, err)

	assert.True(t, grads.InputBackprop.Shape().Equal(input.Shape()))
	assert.True(t, grads.InputHBackprop.Shape().Equal(inputH.Shape()))
	assert.True(t, grads.InputCBackprop.Shape().Equal(inputC.Shape()))
	assert.True(t, grads.ParamsBackprop.Shape().Equal(params.Shape()))
}

func TestBackwardValidatesGradientShapes(t *testing.T) {
	attrs := mustAttrs(t, "rnn_tanh", "linear_input", "unidirectional")
	eng := cpu.New()
	defer eng.Close()

	input := filled(t, tensor.Shape{4, 2, 3})
	inputH := filled(t, tensor.Shape{1, 2, 3})
	params := paramsFor(t, attrs, 1, 3, 3)

	fwd := NewForward(attrs, eng, true)
	res, err := fwd.Run(input, inputH, nil, params)
	require.NoError(t, err)

	bwd := NewBackward(attrs, eng)
	dy := filled(t, tensor.Shape{4, 2, 3})
	dhy := filled(t, tensor.Shape{1, 2, 3})

	t.Run("wrong output grad shape", func(t *testing.T) {
		bad := filled(t, tensor.Shape{4, 2, 5})
		_, err := bwd.Run(input, inputH, nil, params, bad, dhy, nil, res.Reserve)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("wrong hidden grad size", func(t *testing.T) {
		bad := filled(t, tensor.Shape{2, 2, 3})
		_, err := bwd.Run(input, inputH, nil, params, dy, bad, nil, res.Reserve)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("wrong reserve size", func(t *testing.T) {
		bad := filled(t, tensor.Shape{res.Reserve.NumElements() + 1})
		_, err := bwd.Run(input, inputH, nil, params, dy, dhy, nil, bad)
		assert.ErrorIs(t, err, rnn.ErrShapeMismatch)
	})
	t.Run("valid call succeeds", func(t *testing.T) {
		_, err := bwd.Run(input, inputH, nil, params, dy, dhy, nil, res.Reserve)
		assert.NoError(t, err)
	})
}

func TestCombinedSeedFoldsPair(t *testing.T) {
	a := Attrs{Seed: 1, Seed2: 2}
	assert.Equal(t, uint64(1)<<32|2, a.CombinedSeed())
}
