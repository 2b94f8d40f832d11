package cpu

import "github.com/born-ml/recurrent/internal/rnn"

// reserveLayout describes the engine-owned layout of the reserve space a
// training forward pass hands to the backward pass. Per (layer, direction)
// it holds the full hidden-state history (T+1 slots), the cell-state
// history for LSTM, the post-activation gate values for LSTM/GRU, and the
// recurrent candidate projection for GRU. After those come the combined
// inter-layer inputs for layers 1..L-1, shared across directions.
//
// Hidden-state slots are indexed by absolute time: the forward direction
// enters step t from slot t and leaves into slot t+1, the backward
// direction enters from slot t+1 and leaves into slot t. Slot 0 (backward:
// slot T) therefore carries the initial state.
type reserveLayout struct {
	seq, batch, units, layers, dirs int
	gates                           int // stored gate planes: 4 LSTM, 3 GRU, 0 vanilla
	lstm, gru                       bool

	perLayerDir int // elements per (layer, direction) block
	inputsOff   int // start of the inter-layer inputs
	total       int
}

func newReserveLayout(cfg rnn.Config, s rnn.Shapes) reserveLayout {
	r := reserveLayout{
		seq:    s.SeqLength,
		batch:  s.BatchSize,
		units:  s.NumUnits,
		layers: s.NumLayers,
		dirs:   s.DirCount,
		lstm:   cfg.Mode == rnn.LSTM,
		gru:    cfg.Mode == rnn.GRU,
	}
	switch {
	case r.lstm:
		r.gates = 4
	case r.gru:
		r.gates = 3
	}

	stateLen := (r.seq + 1) * r.batch * r.units
	r.perLayerDir = stateLen // hidden history
	if r.lstm {
		r.perLayerDir += stateLen // cell history
	}
	r.perLayerDir += r.gates * r.seq * r.batch * r.units
	if r.gru {
		r.perLayerDir += r.seq * r.batch * r.units // candidate projection
	}

	r.inputsOff = r.layers * r.dirs * r.perLayerDir
	r.total = r.inputsOff + (r.layers-1)*r.seq*r.batch*r.units
	return r
}

func (r *reserveLayout) block(buf []float32, layer, dir int) []float32 {
	off := (layer*r.dirs + dir) * r.perLayerDir
	return buf[off : off+r.perLayerDir]
}

// hHist returns the hidden-state history, (T+1) x batch x units.
func (r *reserveLayout) hHist(buf []float32, layer, dir int) []float32 {
	b := r.block(buf, layer, dir)
	return b[:(r.seq+1)*r.batch*r.units]
}

// cHist returns the cell-state history for LSTM, (T+1) x batch x units.
func (r *reserveLayout) cHist(buf []float32, layer, dir int) []float32 {
	b := r.block(buf, layer, dir)
	n := (r.seq + 1) * r.batch * r.units
	return b[n : 2*n]
}

// gateVals returns the stored gate values, gates x T x batch x units.
func (r *reserveLayout) gateVals(buf []float32, layer, dir int) []float32 {
	b := r.block(buf, layer, dir)
	off := (r.seq + 1) * r.batch * r.units
	if r.lstm {
		off *= 2
	}
	return b[off : off+r.gates*r.seq*r.batch*r.units]
}

// candVals returns the GRU recurrent candidate projections, T x batch x units.
func (r *reserveLayout) candVals(buf []float32, layer, dir int) []float32 {
	b := r.block(buf, layer, dir)
	return b[r.perLayerDir-r.seq*r.batch*r.units : r.perLayerDir]
}

// layerInput returns the combined input of layer l (1 <= l < L),
// T x batch x units.
func (r *reserveLayout) layerInput(buf []float32, layer int) []float32 {
	n := r.seq * r.batch * r.units
	off := r.inputsOff + (layer-1)*n
	return buf[off : off+n]
}

// stateSlot returns one batch x units slice of a state history.
func (r *reserveLayout) stateSlot(hist []float32, slot int) []float32 {
	n := r.batch * r.units
	return hist[slot*n : (slot+1)*n]
}

// gatePlane returns the batch x units gate values of gate k at time t.
func (r *reserveLayout) gatePlane(gates []float32, k, t int) []float32 {
	n := r.batch * r.units
	off := (k*r.seq + t) * n
	return gates[off : off+n]
}

// inSlot returns the state slot a step at absolute time t reads from.
func (r *reserveLayout) inSlot(t int, backward bool) int {
	if backward {
		return t + 1
	}
	return t
}

// outSlot returns the state slot a step at absolute time t writes to.
func (r *reserveLayout) outSlot(t int, backward bool) int {
	if backward {
		return t
	}
	return t + 1
}
