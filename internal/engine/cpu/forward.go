package cpu

import (
	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
)

// forwardPass sweeps the stacked model layer by layer. For bidirectional
// models the two directions of an inner layer are combined by element-wise
// sum before feeding the next layer (the only combination consistent with
// higher layers projecting num_units inputs); the final layer's directions
// are concatenated on the feature axis, as the output shape demands.
type forwardPass struct {
	cfg     rnn.Config
	shapes  rnn.Shapes
	layout  reserveLayout
	params  [][]layerParams
	reserve []float32
}

func (f *forwardPass) run(args engine.ForwardArgs) {
	s := f.shapes
	batch, units := s.BatchSize, s.NumUnits
	dirs, layers := s.DirCount, s.NumLayers

	inputH := args.InputH.AsFloat32()
	var inputC []float32
	if f.cfg.Mode.HasCellState() {
		inputC = args.InputC.AsFloat32()
	}

	layerIn := args.Input.AsFloat32()
	inWidth := s.InputSize
	for l := 0; l < layers; l++ {
		for d := 0; d < dirs; d++ {
			state := (l*dirs + d) * batch * units
			f.sweep(l, d, layerIn, inWidth,
				inputH[state:state+batch*units], inputC, state)
		}

		if l < layers-1 {
			next := f.layout.layerInput(f.reserve, l+1)
			f.combine(l, next)
			layerIn = next
			inWidth = units
		}
	}

	f.writeOutputs(args)
}

// sweep runs one (layer, direction) pass over the whole sequence.
func (f *forwardPass) sweep(layer, dir int, layerIn []float32, inWidth int, h0, inputC []float32, stateOff int) {
	s := f.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	backward := dir == 1
	lp := &f.params[dir][layer]
	g := f.cfg.Mode.GateCount()

	hHist := f.layout.hHist(f.reserve, layer, dir)
	var cHist []float32
	if f.layout.lstm {
		cHist = f.layout.cHist(f.reserve, layer, dir)
	}

	// Seed the initial state slot.
	initSlot := 0
	if backward {
		initSlot = seq
	}
	copy(f.layout.stateSlot(hHist, initSlot), h0)
	if f.layout.lstm {
		copy(f.layout.stateSlot(cHist, initSlot), inputC[stateOff:stateOff+batch*units])
	}

	var gates, cand []float32
	if f.layout.gates > 0 {
		gates = f.layout.gateVals(f.reserve, layer, dir)
	}
	if f.layout.gru {
		cand = f.layout.candVals(f.reserve, layer, dir)
	}

	xp := make([]float32, g*units)
	hp := make([]float32, g*units)

	for step := 0; step < seq; step++ {
		t := step
		if backward {
			t = seq - 1 - step
		}
		hIn := f.layout.stateSlot(hHist, f.layout.inSlot(t, backward))
		hOut := f.layout.stateSlot(hHist, f.layout.outSlot(t, backward))
		var cIn, cOut []float32
		if f.layout.lstm {
			cIn = f.layout.stateSlot(cHist, f.layout.inSlot(t, backward))
			cOut = f.layout.stateSlot(cHist, f.layout.outSlot(t, backward))
		}

		for n := 0; n < batch; n++ {
			x := layerIn[(t*batch+n)*inWidth : (t*batch+n+1)*inWidth]
			hInRow := hIn[n*units : (n+1)*units]
			hOutRow := hOut[n*units : (n+1)*units]

			// Gate pre-activations: xp_k = Wx_k x + bx_k and
			// hp_k = Wh_k h + bh_k, kept separate because GRU
			// gates the recurrent candidate part with r.
			for k := 0; k < g; k++ {
				copy(xp[k*units:(k+1)*units], lp.bxGate(k, units))
				matVecAcc(xp[k*units:(k+1)*units], lp.wxGate(k, units), x, units, inWidth)
				copy(hp[k*units:(k+1)*units], lp.bhGate(k, units))
				matVecAcc(hp[k*units:(k+1)*units], lp.whGate(k, units), hInRow, units, units)
			}

			switch f.cfg.Mode {
			case rnn.ReLU, rnn.Tanh:
				for u := 0; u < units; u++ {
					pre := xp[u] + hp[u]
					if f.cfg.Mode == rnn.ReLU {
						hOutRow[u] = reluf(pre)
					} else {
						hOutRow[u] = tanhf(pre)
					}
				}

			case rnn.LSTM:
				cInRow := cIn[n*units : (n+1)*units]
				cOutRow := cOut[n*units : (n+1)*units]
				for u := 0; u < units; u++ {
					iv := sigmoid(xp[u] + hp[u])
					fv := sigmoid(xp[units+u] + hp[units+u])
					gv := tanhf(xp[2*units+u] + hp[2*units+u])
					ov := sigmoid(xp[3*units+u] + hp[3*units+u])
					cOutRow[u] = fv*cInRow[u] + iv*gv
					hOutRow[u] = ov * tanhf(cOutRow[u])

					f.layout.gatePlane(gates, 0, t)[n*units+u] = iv
					f.layout.gatePlane(gates, 1, t)[n*units+u] = fv
					f.layout.gatePlane(gates, 2, t)[n*units+u] = gv
					f.layout.gatePlane(gates, 3, t)[n*units+u] = ov
				}

			case rnn.GRU:
				for u := 0; u < units; u++ {
					rv := sigmoid(xp[u] + hp[u])
					zv := sigmoid(xp[units+u] + hp[units+u])
					nv := tanhf(xp[2*units+u] + rv*hp[2*units+u])
					hOutRow[u] = (1-zv)*nv + zv*hInRow[u]

					f.layout.gatePlane(gates, 0, t)[n*units+u] = rv
					f.layout.gatePlane(gates, 1, t)[n*units+u] = zv
					f.layout.gatePlane(gates, 2, t)[n*units+u] = nv
					cand[(t*batch+n)*units+u] = hp[2*units+u]
				}
			}
		}
	}
}

// combine builds the next layer's input from this layer's per-time output:
// the direction sum for bidirectional models, a plain copy otherwise.
func (f *forwardPass) combine(layer int, dst []float32) {
	s := f.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits

	for d := 0; d < s.DirCount; d++ {
		hHist := f.layout.hHist(f.reserve, layer, d)
		backward := d == 1
		for t := 0; t < seq; t++ {
			out := f.layout.stateSlot(hHist, f.layout.outSlot(t, backward))
			row := t * batch * units
			if d == 0 {
				copy(dst[row:row+batch*units], out)
			} else {
				addAcc(dst[row:row+batch*units], out)
			}
		}
	}
}

// writeOutputs assembles the concatenated output and the final states.
func (f *forwardPass) writeOutputs(args engine.ForwardArgs) {
	s := f.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	dirs, layers := s.DirCount, s.NumLayers
	last := layers - 1

	out := args.Output.AsFloat32()
	for d := 0; d < dirs; d++ {
		hHist := f.layout.hHist(f.reserve, last, d)
		backward := d == 1
		for t := 0; t < seq; t++ {
			slot := f.layout.stateSlot(hHist, f.layout.outSlot(t, backward))
			for n := 0; n < batch; n++ {
				dst := (t*batch+n)*dirs*units + d*units
				copy(out[dst:dst+units], slot[n*units:(n+1)*units])
			}
		}
	}

	outH := args.OutputH.AsFloat32()
	var outC []float32
	if f.cfg.Mode.HasCellState() {
		outC = args.OutputC.AsFloat32()
	}
	for l := 0; l < layers; l++ {
		for d := 0; d < dirs; d++ {
			finalSlot := seq
			if d == 1 {
				finalSlot = 0
			}
			dst := (l*dirs + d) * batch * units
			copy(outH[dst:dst+batch*units], f.layout.stateSlot(f.layout.hHist(f.reserve, l, d), finalSlot))
			if outC != nil {
				copy(outC[dst:dst+batch*units], f.layout.stateSlot(f.layout.cHist(f.reserve, l, d), finalSlot))
			}
		}
	}
}
