package cpu

import (
	"github.com/born-ml/recurrent/internal/rnn"
)

// The opaque parameter buffer is packed per direction, per layer:
//
//	Wx  g x num_units x in   input projections, gate-major, row-major
//	Wh  g x num_units x num_units   recurrent projections
//	bx  g x num_units        input-side biases
//	bh  g x num_units        recurrent-side biases
//
// where in = input_size for the first layer and num_units above it. The
// per-(direction, layer) footprint is therefore g*num_units*(in+num_units+2),
// which is exactly the rnn.ParamSize formula.
//
// Gate order: vanilla RNN has the single activation gate; LSTM packs
// [input, forget, cell, output]; GRU packs [reset, update, candidate].

// layerParams is a view into the packed buffer for one (direction, layer).
type layerParams struct {
	in int // input width of this layer

	wx []float32 // g * units * in
	wh []float32 // g * units * units
	bx []float32 // g * units
	bh []float32 // g * units
}

// wxGate returns the input projection of one gate as a units x in matrix.
func (lp *layerParams) wxGate(gate, units int) []float32 {
	n := units * lp.in
	return lp.wx[gate*n : (gate+1)*n]
}

// whGate returns the recurrent projection of one gate as a units x units matrix.
func (lp *layerParams) whGate(gate, units int) []float32 {
	n := units * units
	return lp.wh[gate*n : (gate+1)*n]
}

func (lp *layerParams) bxGate(gate, units int) []float32 {
	return lp.bx[gate*units : (gate+1)*units]
}

func (lp *layerParams) bhGate(gate, units int) []float32 {
	return lp.bh[gate*units : (gate+1)*units]
}

// splitParams carves the flat buffer into per-(direction, layer) views.
// The caller has already checked the buffer length against rnn.ParamSize.
func splitParams(cfg rnn.Config, buf []float32) [][]layerParams {
	g := cfg.Mode.GateCount()
	units := cfg.NumUnits
	dirs := cfg.DirCount()

	views := make([][]layerParams, dirs)
	off := 0
	for d := 0; d < dirs; d++ {
		views[d] = make([]layerParams, cfg.NumLayers)
		for l := 0; l < cfg.NumLayers; l++ {
			in := cfg.InputSize
			if l > 0 {
				in = units
			}
			lp := layerParams{in: in}
			take := func(n int) []float32 {
				s := buf[off : off+n]
				off += n
				return s
			}
			lp.wx = take(g * units * in)
			lp.wh = take(g * units * units)
			lp.bx = take(g * units)
			lp.bh = take(g * units)
			views[d][l] = lp
		}
	}
	return views
}
