package cpu

import (
	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
)

// backwardPass runs backpropagation through time over the reserve space a
// training forward left behind, from the top layer down. The inner-layer
// direction sum of the forward pass means both directions of the layer
// below receive the same per-time gradient.
type backwardPass struct {
	cfg        rnn.Config
	shapes     rnn.Shapes
	layout     reserveLayout
	params     [][]layerParams
	paramGrads [][]layerParams
	reserve    []float32
}

func (b *backwardPass) run(args engine.BackwardArgs) {
	s := b.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	dirs, layers := s.DirCount, s.NumLayers

	// Per-time output gradient of the layer currently being processed,
	// one plane per direction.
	dOut := make([][]float32, dirs)
	dy := args.OutputBackprop.AsFloat32()
	for d := 0; d < dirs; d++ {
		dOut[d] = make([]float32, seq*batch*units)
		for t := 0; t < seq; t++ {
			for n := 0; n < batch; n++ {
				src := (t*batch+n)*dirs*units + d*units
				copy(dOut[d][(t*batch+n)*units:(t*batch+n+1)*units], dy[src:src+units])
			}
		}
	}

	for l := layers - 1; l >= 0; l-- {
		var layerIn []float32
		inWidth := units
		if l == 0 {
			layerIn = args.Input.AsFloat32()
			inWidth = s.InputSize
		} else {
			layerIn = b.layout.layerInput(b.reserve, l)
		}

		dIn := make([]float32, seq*batch*inWidth)
		for d := 0; d < dirs; d++ {
			b.sweepBack(l, d, layerIn, inWidth, dOut[d], dIn, args)
		}

		if l > 0 {
			// Sum-combined inputs: the same gradient flows to every
			// direction of the layer below.
			for d := 0; d < dirs; d++ {
				copy(dOut[d], dIn)
			}
		} else {
			copy(args.InputBackprop.AsFloat32(), dIn)
		}
	}
}

// sweepBack walks one (layer, direction) in reverse processing order.
func (b *backwardPass) sweepBack(layer, dir int, layerIn []float32, inWidth int, dOut, dIn []float32, args engine.BackwardArgs) {
	s := b.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	backward := dir == 1
	lp := &b.params[dir][layer]
	gp := &b.paramGrads[dir][layer]
	g := b.cfg.Mode.GateCount()
	state := (layer*s.DirCount + dir) * batch * units

	hHist := b.layout.hHist(b.reserve, layer, dir)
	var cHist, gates, cand []float32
	if b.layout.lstm {
		cHist = b.layout.cHist(b.reserve, layer, dir)
	}
	if b.layout.gates > 0 {
		gates = b.layout.gateVals(b.reserve, layer, dir)
	}
	if b.layout.gru {
		cand = b.layout.candVals(b.reserve, layer, dir)
	}

	// Gradients w.r.t. the states flowing backwards through time, seeded
	// by the final-state gradients.
	dhNext := make([]float32, batch*units)
	copy(dhNext, args.OutputHBackprop.AsFloat32()[state:state+batch*units])
	var dcNext []float32
	if b.layout.lstm {
		dcNext = make([]float32, batch*units)
		copy(dcNext, args.OutputCBackprop.AsFloat32()[state:state+batch*units])
	}

	dhTotal := make([]float32, units)
	dhNew := make([]float32, units)
	dpre := make([]float32, g*units)
	gn := make([]float32, units)

	for step := seq - 1; step >= 0; step-- {
		t := step
		if backward {
			t = seq - 1 - step
		}
		hIn := b.layout.stateSlot(hHist, b.layout.inSlot(t, backward))
		hOut := b.layout.stateSlot(hHist, b.layout.outSlot(t, backward))

		for n := 0; n < batch; n++ {
			x := layerIn[(t*batch+n)*inWidth : (t*batch+n+1)*inWidth]
			hInRow := hIn[n*units : (n+1)*units]
			hOutRow := hOut[n*units : (n+1)*units]
			row := (t*batch + n) * units

			for u := 0; u < units; u++ {
				dhTotal[u] = dOut[row+u] + dhNext[n*units+u]
				dhNew[u] = 0
			}

			switch b.cfg.Mode {
			case rnn.ReLU, rnn.Tanh:
				for u := 0; u < units; u++ {
					var deriv float32
					if b.cfg.Mode == rnn.ReLU {
						if hOutRow[u] > 0 {
							deriv = 1
						}
					} else {
						deriv = 1 - hOutRow[u]*hOutRow[u]
					}
					dpre[u] = dhTotal[u] * deriv
				}

			case rnn.LSTM:
				cInRow := b.layout.stateSlot(cHist, b.layout.inSlot(t, backward))[n*units : (n+1)*units]
				cOutRow := b.layout.stateSlot(cHist, b.layout.outSlot(t, backward))[n*units : (n+1)*units]
				for u := 0; u < units; u++ {
					iv := b.layout.gatePlane(gates, 0, t)[n*units+u]
					fv := b.layout.gatePlane(gates, 1, t)[n*units+u]
					gv := b.layout.gatePlane(gates, 2, t)[n*units+u]
					ov := b.layout.gatePlane(gates, 3, t)[n*units+u]
					tc := tanhf(cOutRow[u])

					do := dhTotal[u] * tc
					dc := dcNext[n*units+u] + dhTotal[u]*ov*(1-tc*tc)
					di := dc * gv
					df := dc * cInRow[u]
					dg := dc * iv
					dcNext[n*units+u] = dc * fv

					dpre[u] = di * iv * (1 - iv)
					dpre[units+u] = df * fv * (1 - fv)
					dpre[2*units+u] = dg * (1 - gv*gv)
					dpre[3*units+u] = do * ov * (1 - ov)
				}

			case rnn.GRU:
				for u := 0; u < units; u++ {
					rv := b.layout.gatePlane(gates, 0, t)[n*units+u]
					zv := b.layout.gatePlane(gates, 1, t)[n*units+u]
					nv := b.layout.gatePlane(gates, 2, t)[n*units+u]

					dz := dhTotal[u] * (hInRow[u] - nv)
					dn := dhTotal[u] * (1 - zv)
					dhNew[u] += dhTotal[u] * zv

					dpreN := dn * (1 - nv*nv)
					dr := dpreN * cand[row+u]

					dpre[u] = dr * rv * (1 - rv)
					dpre[units+u] = dz * zv * (1 - zv)
					dpre[2*units+u] = dpreN
				}
			}

			// Shared accumulation: x-side weights/biases and the
			// gradient w.r.t. this layer's input.
			dInRow := dIn[(t*batch+n)*inWidth : (t*batch+n+1)*inWidth]
			for k := 0; k < g; k++ {
				dk := dpre[k*units : (k+1)*units]
				outerAcc(gp.wxGate(k, units), dk, x, units, inWidth)
				addAcc(gp.bxGate(k, units), dk)
				matTVecAcc(dInRow, lp.wxGate(k, units), dk, units, inWidth)
			}

			// Recurrent side. The GRU candidate gate reaches the
			// previous state through the reset gate.
			if b.cfg.Mode == rnn.GRU {
				for k := 0; k < 2; k++ {
					dk := dpre[k*units : (k+1)*units]
					outerAcc(gp.whGate(k, units), dk, hInRow, units, units)
					addAcc(gp.bhGate(k, units), dk)
					matTVecAcc(dhNew, lp.whGate(k, units), dk, units, units)
				}
				for u := 0; u < units; u++ {
					rv := b.layout.gatePlane(gates, 0, t)[n*units+u]
					gn[u] = dpre[2*units+u] * rv
				}
				outerAcc(gp.whGate(2, units), gn, hInRow, units, units)
				addAcc(gp.bhGate(2, units), gn)
				matTVecAcc(dhNew, lp.whGate(2, units), gn, units, units)
			} else {
				for k := 0; k < g; k++ {
					dk := dpre[k*units : (k+1)*units]
					outerAcc(gp.whGate(k, units), dk, hInRow, units, units)
					addAcc(gp.bhGate(k, units), dk)
					matTVecAcc(dhNew, lp.whGate(k, units), dk, units, units)
				}
			}

			copy(dhNext[n*units:(n+1)*units], dhNew)
		}
	}

	// What is left is the gradient w.r.t. the initial states.
	copy(args.InputHBackprop.AsFloat32()[state:state+batch*units], dhNext)
	if b.layout.lstm {
		copy(args.InputCBackprop.AsFloat32()[state:state+batch*units], dcNext)
	}
}
