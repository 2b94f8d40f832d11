package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

// newCase builds a plan plus randomly initialized tensors for one
// configuration. Values are kept small so finite differences stay sane.
type testCase struct {
	plan   *engine.Plan
	shapes rnn.Shapes

	input, inputH, inputC, params *tensor.RawTensor
}

func newCase(t *testing.T, mode rnn.Mode, direction rnn.Direction, layers, units, inputSize, seq, batch int, seed int64) *testCase {
	t.Helper()
	cfg, err := rnn.NewConfig(rnn.Config{
		Mode:      mode,
		Direction: direction,
		NumLayers: layers,
		NumUnits:  units,
		InputSize: inputSize,
	})
	require.NoError(t, err)

	plan, err := engine.PlanFromConfig(cfg)
	require.NoError(t, err)

	dirs := cfg.DirCount()
	shapes, err := rnn.DeriveShapes(mode, direction,
		tensor.Shape{seq, batch, inputSize},
		tensor.Shape{layers * dirs, batch, units},
		tensor.Shape{layers * dirs, batch, units})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(seed))
	fill := func(shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.NewRaw(shape, tensor.Float32)
		require.NoError(t, err)
		data := raw.AsFloat32()
		for i := range data {
			data[i] = float32(rng.NormFloat64()) * 0.5
		}
		return raw
	}

	tc := &testCase{
		plan:   plan,
		shapes: shapes,
		input:  fill(tensor.Shape{seq, batch, inputSize}),
		inputH: fill(tensor.Shape{layers * dirs, batch, units}),
		params: fill(tensor.Shape{int(plan.ParamSize())}),
	}
	if mode.HasCellState() {
		tc.inputC = fill(tensor.Shape{layers * dirs, batch, units})
	} else {
		tc.inputC = tensor.Empty(tensor.Float32)
	}
	return tc
}

func (tc *testCase) forward(t *testing.T, e *Engine, training bool) engine.ForwardArgs {
	t.Helper()
	s := tc.shapes
	out, err := tensor.NewRaw(s.OutputShape, tensor.Float32)
	require.NoError(t, err)
	outH, err := tensor.NewRaw(tensor.Shape{s.NumLayers * s.DirCount, s.BatchSize, s.NumUnits}, tensor.Float32)
	require.NoError(t, err)
	outC := tensor.Empty(tensor.Float32)
	if tc.plan.Config().Mode.HasCellState() {
		outC, err = tensor.NewRaw(tensor.Shape{s.NumLayers * s.DirCount, s.BatchSize, s.NumUnits}, tensor.Float32)
		require.NoError(t, err)
	}
	reserve := tensor.Empty(tensor.Float32)
	if training {
		reserve, err = tensor.NewRaw(tensor.Shape{e.ReserveSize(tc.plan, s)}, tensor.Float32)
		require.NoError(t, err)
	}

	args := engine.ForwardArgs{
		Shapes:   s,
		Training: training,
		Input:    tc.input,
		InputH:   tc.inputH,
		InputC:   tc.inputC,
		Params:   tc.params,
		Output:   out,
		OutputH:  outH,
		OutputC:  outC,
		Reserve:  reserve,
	}
	require.NoError(t, e.Forward(tc.plan, args))
	return args
}

func TestForwardZeroParamsGiveZeroOutputs(t *testing.T) {
	e := New()
	for _, mode := range []rnn.Mode{rnn.ReLU, rnn.Tanh, rnn.LSTM, rnn.GRU} {
		tc := newCase(t, mode, rnn.Unidirectional, 2, 3, 4, 5, 2, 7)
		tc.params.Zero()
		tc.inputH.Zero()
		if mode.HasCellState() {
			tc.inputC.Zero()
		}

		args := tc.forward(t, e, false)
		for i, v := range args.Output.AsFloat32() {
			assert.Zerof(t, v, "%s output[%d]", mode, i)
		}
		for i, v := range args.OutputH.AsFloat32() {
			assert.Zerof(t, v, "%s output_h[%d]", mode, i)
		}
	}
}

func TestForwardSingleStepTanhMatchesDirectComputation(t *testing.T) {
	e := New()
	tc := newCase(t, rnn.Tanh, rnn.Unidirectional, 1, 3, 2, 1, 1, 11)
	args := tc.forward(t, e, false)

	// Unpack the flat buffer by the documented layout: Wx, Wh, bx, bh.
	p := tc.params.AsFloat32()
	wx := p[0:6]   // 3x2
	wh := p[6:15]  // 3x3
	bx := p[15:18] // 3
	bh := p[18:21] // 3

	x := tc.input.AsFloat32()
	h := tc.inputH.AsFloat32()
	out := args.Output.AsFloat32()
	for u := 0; u < 3; u++ {
		sum := float64(bx[u]) + float64(bh[u])
		for i := 0; i < 2; i++ {
			sum += float64(wx[u*2+i]) * float64(x[i])
		}
		for v := 0; v < 3; v++ {
			sum += float64(wh[u*3+v]) * float64(h[v])
		}
		assert.InDelta(t, math.Tanh(sum), out[u], 1e-5)
	}
	// Single layer, single step: output row equals the final hidden state.
	assert.Equal(t, args.Output.AsFloat32(), args.OutputH.AsFloat32())
}

func TestForwardDeterministic(t *testing.T) {
	e := New()
	tc := newCase(t, rnn.LSTM, rnn.Bidirectional, 2, 3, 4, 5, 2, 13)
	a := tc.forward(t, e, false)
	b := tc.forward(t, e, false)
	assert.Equal(t, a.Output.AsFloat32(), b.Output.AsFloat32())
	assert.Equal(t, a.OutputH.AsFloat32(), b.OutputH.AsFloat32())
	assert.Equal(t, a.OutputC.AsFloat32(), b.OutputC.AsFloat32())
}

// The forward half of a bidirectional model must match the unidirectional
// model that shares its forward-direction parameters and initial state.
func TestForwardBidirectionalForwardHalf(t *testing.T) {
	e := New()
	const units, inputSize, seq, batch = 3, 4, 5, 2

	bi := newCase(t, rnn.GRU, rnn.Bidirectional, 1, units, inputSize, seq, batch, 17)
	uni := newCase(t, rnn.GRU, rnn.Unidirectional, 1, units, inputSize, seq, batch, 17)

	// Share input, forward-direction params and forward initial state.
	copy(uni.input.AsFloat32(), bi.input.AsFloat32())
	copy(uni.params.AsFloat32(), bi.params.AsFloat32()[:uni.plan.ParamSize()])
	copy(uni.inputH.AsFloat32(), bi.inputH.AsFloat32()[:batch*units])

	biOut := bi.forward(t, e, false).Output.AsFloat32()
	uniOut := uni.forward(t, e, false).Output.AsFloat32()

	for t0 := 0; t0 < seq; t0++ {
		for n := 0; n < batch; n++ {
			for u := 0; u < units; u++ {
				got := biOut[(t0*batch+n)*2*units+u]
				want := uniOut[(t0*batch+n)*units+u]
				assert.InDelta(t, want, got, 1e-6)
			}
		}
	}
}

// Stacking two single-layer runs by hand must equal one two-layer run.
func TestForwardLayerStackingEquivalence(t *testing.T) {
	e := New()
	const units, inputSize, seq, batch = 3, 4, 4, 2

	full := newCase(t, rnn.Tanh, rnn.Unidirectional, 2, units, inputSize, seq, batch, 19)
	fullOut := full.forward(t, e, false)

	layer0 := newCase(t, rnn.Tanh, rnn.Unidirectional, 1, units, inputSize, seq, batch, 19)
	copy(layer0.input.AsFloat32(), full.input.AsFloat32())
	split := int(layer0.plan.ParamSize())
	copy(layer0.params.AsFloat32(), full.params.AsFloat32()[:split])
	copy(layer0.inputH.AsFloat32(), full.inputH.AsFloat32()[:batch*units])
	out0 := layer0.forward(t, e, false)

	layer1 := newCase(t, rnn.Tanh, rnn.Unidirectional, 1, units, units, seq, batch, 19)
	copy(layer1.input.AsFloat32(), out0.Output.AsFloat32())
	copy(layer1.params.AsFloat32(), full.params.AsFloat32()[split:])
	copy(layer1.inputH.AsFloat32(), full.inputH.AsFloat32()[batch*units:])
	out1 := layer1.forward(t, e, false)

	got := fullOut.Output.AsFloat32()
	want := out1.Output.AsFloat32()
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5)
	}
}

func TestForwardRejectsBadBuffers(t *testing.T) {
	e := New()
	tc := newCase(t, rnn.Tanh, rnn.Unidirectional, 1, 3, 4, 5, 2, 23)

	short, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float32)
	require.NoError(t, err)
	good := tc.params
	tc.params = short
	s := tc.shapes
	out, _ := tensor.NewRaw(s.OutputShape, tensor.Float32)
	outH, _ := tensor.NewRaw(tensor.Shape{s.NumLayers, s.BatchSize, s.NumUnits}, tensor.Float32)
	args := engine.ForwardArgs{
		Shapes: s, Input: tc.input, InputH: tc.inputH, InputC: tc.inputC,
		Params: tc.params, Output: out, OutputH: outH, OutputC: tensor.Empty(tensor.Float32),
	}
	assert.ErrorIs(t, e.Forward(tc.plan, args), rnn.ErrShapeMismatch)
	tc.params = good
}

// loss is a fixed linear functional over all forward outputs, so its exact
// gradients are the backprop tensors fed with the coefficient planes.
func lossOf(t *testing.T, e *Engine, tc *testCase, dy, dhy, dcy []float32) float64 {
	args := tc.forward(t, e, false)
	sum := float64(0)
	for i, v := range args.Output.AsFloat32() {
		sum += float64(dy[i]) * float64(v)
	}
	for i, v := range args.OutputH.AsFloat32() {
		sum += float64(dhy[i]) * float64(v)
	}
	if dcy != nil {
		for i, v := range args.OutputC.AsFloat32() {
			sum += float64(dcy[i]) * float64(v)
		}
	}
	return sum
}

func gradCheck(t *testing.T, mode rnn.Mode, direction rnn.Direction, layers int) {
	t.Helper()
	e := New()
	const units, inputSize, seq, batch = 3, 2, 3, 2
	tc := newCase(t, mode, direction, layers, units, inputSize, seq, batch, 29)
	s := tc.shapes

	if mode == rnn.ReLU {
		// Keep every pre-activation strictly positive so the finite
		// differences never step across the ReLU kink.
		for _, buf := range []*tensor.RawTensor{tc.input, tc.inputH, tc.params} {
			data := buf.AsFloat32()
			for i, v := range data {
				data[i] = float32(math.Abs(float64(v)))*0.5 + 0.1
			}
		}
	}

	rng := rand.New(rand.NewSource(31))
	coeffs := func(n int) []float32 {
		c := make([]float32, n)
		for i := range c {
			c[i] = float32(rng.NormFloat64())
		}
		return c
	}
	stateLen := s.NumLayers * s.DirCount * s.BatchSize * s.NumUnits
	dy := coeffs(s.OutputShape.NumElements())
	dhy := coeffs(stateLen)
	var dcy []float32
	if mode.HasCellState() {
		dcy = coeffs(stateLen)
	}

	// Analytic gradients via the backward primitive.
	fargs := tc.forward(t, e, true)
	mk := func(n int) *tensor.RawTensor {
		raw, err := tensor.NewRaw(tensor.Shape{n}, tensor.Float32)
		require.NoError(t, err)
		return raw
	}
	fromSlice := func(data []float32) *tensor.RawTensor {
		raw, err := tensor.FromSlice(data, tensor.Shape{len(data)})
		require.NoError(t, err)
		return raw
	}
	bargs := engine.BackwardArgs{
		Shapes:          s,
		Input:           tc.input,
		InputH:          tc.inputH,
		InputC:          tc.inputC,
		Params:          tc.params,
		OutputBackprop:  fromSlice(dy),
		OutputHBackprop: fromSlice(dhy),
		OutputCBackprop: tensor.Empty(tensor.Float32),
		Reserve:         fargs.Reserve,
		InputBackprop:   mk(tc.input.NumElements()),
		InputHBackprop:  mk(stateLen),
		InputCBackprop:  tensor.Empty(tensor.Float32),
		ParamsBackprop:  mk(tc.params.NumElements()),
	}
	if mode.HasCellState() {
		bargs.OutputCBackprop = fromSlice(dcy)
		bargs.InputCBackprop = mk(stateLen)
	}
	require.NoError(t, e.Backward(tc.plan, bargs))

	// Numeric gradients via central differences.
	check := func(name string, buf *tensor.RawTensor, analytic []float32) {
		const eps = 1e-2
		data := buf.AsFloat32()
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			up := lossOf(t, e, tc, dy, dhy, dcy)
			data[i] = orig - eps
			down := lossOf(t, e, tc, dy, dhy, dcy)
			data[i] = orig

			numeric := (up - down) / (2 * eps)
			tol := 1e-2 + 0.02*math.Abs(numeric)
			assert.InDeltaf(t, numeric, float64(analytic[i]), tol,
				"%s %s[%d]", mode, name, i)
		}
	}
	check("input", tc.input, bargs.InputBackprop.AsFloat32())
	check("input_h", tc.inputH, bargs.InputHBackprop.AsFloat32())
	check("params", tc.params, bargs.ParamsBackprop.AsFloat32())
	if mode.HasCellState() {
		check("input_c", tc.inputC, bargs.InputCBackprop.AsFloat32())
	}
}

func TestBackwardGradientsTanh(t *testing.T) {
	gradCheck(t, rnn.Tanh, rnn.Unidirectional, 1)
}

func TestBackwardGradientsReLU(t *testing.T) {
	gradCheck(t, rnn.ReLU, rnn.Unidirectional, 1)
}

func TestBackwardGradientsLSTM(t *testing.T) {
	gradCheck(t, rnn.LSTM, rnn.Unidirectional, 1)
}

func TestBackwardGradientsGRU(t *testing.T) {
	gradCheck(t, rnn.GRU, rnn.Unidirectional, 1)
}

func TestBackwardGradientsStackedBidirectional(t *testing.T) {
	gradCheck(t, rnn.Tanh, rnn.Bidirectional, 2)
}

func TestBackwardGradientsStackedLSTM(t *testing.T) {
	gradCheck(t, rnn.LSTM, rnn.Bidirectional, 2)
}

func TestReserveSizeCoversTrainingForward(t *testing.T) {
	e := New()
	tc := newCase(t, rnn.GRU, rnn.Bidirectional, 2, 3, 4, 5, 2, 37)
	n := e.ReserveSize(tc.plan, tc.shapes)
	assert.Positive(t, n)

	// Training forward must accept a reserve of exactly that size.
	args := tc.forward(t, e, true)
	assert.Equal(t, n, args.Reserve.NumElements())
}
