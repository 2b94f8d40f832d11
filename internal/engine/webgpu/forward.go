//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// forwardRun holds the per-invocation GPU state of one forward dispatch.
// The host drives the sequence loop; every timestep of every (layer,
// direction) sweep is one fused compute dispatch over batch*units threads.
type forwardRun struct {
	e      *Engine
	cfg    rnn.Config
	shapes rnn.Shapes

	paramsBuf *wgpu.Buffer
	// Element offset of the packed weight block per (direction, layer).
	offsets [][]int

	temps []*wgpu.Buffer
}

func (e *Engine) forward(plan *engine.Plan, args engine.ForwardArgs) error {
	for _, t := range []*tensor.RawTensor{args.Input, args.InputH, args.Params, args.Output, args.OutputH} {
		if t == nil || t.DType() != tensor.Float32 {
			return fmt.Errorf("webgpu: only float32 tensors are supported")
		}
	}

	cfg := plan.Config()
	r := &forwardRun{e: e, cfg: cfg, shapes: args.Shapes}
	defer r.release()

	r.paramsBuf = r.track(e.createBuffer(args.Params.Data(), storageUsage))
	r.splitOffsets()

	return r.run(args)
}

func (r *forwardRun) track(buf *wgpu.Buffer) *wgpu.Buffer {
	r.temps = append(r.temps, buf)
	return buf
}

func (r *forwardRun) release() {
	for _, buf := range r.temps {
		buf.Release()
	}
	r.temps = nil
}

// splitOffsets mirrors the packed parameter layout: per direction, per
// layer, one contiguous block of g*units*(in+units+2) elements.
func (r *forwardRun) splitOffsets() {
	g := r.cfg.Mode.GateCount()
	units := r.cfg.NumUnits
	dirs := r.cfg.DirCount()

	r.offsets = make([][]int, dirs)
	off := 0
	for d := 0; d < dirs; d++ {
		r.offsets[d] = make([]int, r.cfg.NumLayers)
		for l := 0; l < r.cfg.NumLayers; l++ {
			in := r.cfg.InputSize
			if l > 0 {
				in = units
			}
			r.offsets[d][l] = off
			off += g * units * (in + units + 2)
		}
	}
}

func (r *forwardRun) run(args engine.ForwardArgs) error {
	s := r.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	dirs, layers := s.DirCount, s.NumLayers
	planeBytes := batch * units * 4

	xBuf := r.track(r.e.createBuffer(args.Input.Data(), storageUsage))
	inWidth := s.InputSize

	outH := args.OutputH.Data()
	var outC []byte
	if r.cfg.Mode.HasCellState() {
		if args.OutputC == nil || args.InputC == nil {
			return fmt.Errorf("webgpu: lstm forward needs cell state tensors")
		}
		outC = args.OutputC.Data()
	}

	for l := 0; l < layers; l++ {
		outBufs := make([]*wgpu.Buffer, dirs)
		for d := 0; d < dirs; d++ {
			outBufs[d] = r.track(r.e.device.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: storageUsage,
				Size:  uint64(seq * batch * units * 4),
			}))

			plane := (l*dirs + d) * planeBytes
			hFinal, cFinal, err := r.sweep(l, d, xBuf, inWidth, outBufs[d],
				args.InputH.Data()[plane:plane+planeBytes], sliceOrNil(args.InputC, plane, planeBytes))
			if err != nil {
				return err
			}
			copy(outH[plane:plane+planeBytes], hFinal)
			if outC != nil {
				copy(outC[plane:plane+planeBytes], cFinal)
			}
		}

		switch {
		case l < layers-1 && dirs == 2:
			next := r.track(r.e.device.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: storageUsage,
				Size:  uint64(seq * batch * units * 4),
			}))
			if err := r.sum(outBufs[0], outBufs[1], next, seq*batch*units); err != nil {
				return err
			}
			xBuf = next
		case l < layers-1:
			xBuf = outBufs[0]
		case dirs == 2:
			final := r.track(r.e.device.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: storageUsage,
				Size:  uint64(seq * batch * 2 * units * 4),
			}))
			if err := r.concat(outBufs[0], outBufs[1], final, seq*batch*units, units); err != nil {
				return err
			}
			data, err := r.e.readBuffer(final, uint64(seq*batch*2*units*4))
			if err != nil {
				return err
			}
			copy(args.Output.Data(), data)
		default:
			data, err := r.e.readBuffer(outBufs[0], uint64(seq*batch*units*4))
			if err != nil {
				return err
			}
			copy(args.Output.Data(), data)
		}
		inWidth = units
	}
	return nil
}

// sweep runs one (layer, direction) pass over the whole sequence and
// returns the final hidden (and cell) state bytes.
func (r *forwardRun) sweep(layer, dir int, xBuf *wgpu.Buffer, inWidth int, outBuf *wgpu.Buffer, h0, c0 []byte) ([]byte, []byte, error) {
	s := r.shapes
	seq, batch, units := s.SeqLength, s.BatchSize, s.NumUnits
	backward := dir == 1
	planeBytes := uint64(batch * units * 4)

	hPing := r.track(r.e.createBuffer(h0, storageUsage))
	hPong := r.track(r.e.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: storageUsage, Size: planeBytes}))

	var cPing, cPong *wgpu.Buffer
	if r.cfg.Mode.HasCellState() {
		cPing = r.track(r.e.createBuffer(c0, storageUsage))
		cPong = r.track(r.e.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: storageUsage, Size: planeBytes}))
	}

	for step := 0; step < seq; step++ {
		t := step
		if backward {
			t = seq - 1 - step
		}
		if err := r.step(t, layer, dir, inWidth, xBuf, outBuf, hPing, hPong, cPing, cPong); err != nil {
			return nil, nil, err
		}
		hPing, hPong = hPong, hPing
		cPing, cPong = cPong, cPing
	}

	hFinal, err := r.e.readBuffer(hPing, planeBytes)
	if err != nil {
		return nil, nil, err
	}
	var cFinal []byte
	if cPing != nil {
		if cFinal, err = r.e.readBuffer(cPing, planeBytes); err != nil {
			return nil, nil, err
		}
	}
	return hFinal, cFinal, nil
}

// step dispatches one fused timestep kernel.
func (r *forwardRun) step(t, layer, dir, inWidth int, xBuf, outBuf, hIn, hOut, cIn, cOut *wgpu.Buffer) error {
	s := r.shapes
	batch, units := s.BatchSize, s.NumUnits

	var name, code string
	act := uint32(1)
	switch r.cfg.Mode {
	case rnn.ReLU:
		name, code = "rnn_step", vanillaStepShader
		act = 0
	case rnn.Tanh:
		name, code = "rnn_step", vanillaStepShader
	case rnn.LSTM:
		name, code = "lstm_step", lstmStepShader
	case rnn.GRU:
		name, code = "gru_step", gruStepShader
	}

	shader := r.e.compileShader(name, code)
	pipeline := r.e.getOrCreatePipeline(name, shader)

	// Uniform: t, batch, in_width, units, w_off, act.
	uni := make([]byte, 32)
	binary.LittleEndian.PutUint32(uni[0:4], uint32(t))
	binary.LittleEndian.PutUint32(uni[4:8], uint32(batch))
	binary.LittleEndian.PutUint32(uni[8:12], uint32(inWidth))
	binary.LittleEndian.PutUint32(uni[12:16], uint32(units))
	binary.LittleEndian.PutUint32(uni[16:20], uint32(r.offsets[dir][layer]))
	binary.LittleEndian.PutUint32(uni[20:24], act)
	uniBuf := r.e.createUniformBuffer(uni)
	defer uniBuf.Release()

	xSize := uint64(s.SeqLength * batch * inWidth * 4)
	planeSize := uint64(batch * units * 4)
	outSize := uint64(s.SeqLength * batch * units * 4)

	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, xBuf, 0, xSize),
		wgpu.BufferBindingEntry(1, r.paramsBuf, 0, uint64(r.cfg.ParamSize()*4)),
		wgpu.BufferBindingEntry(2, hIn, 0, planeSize),
	}
	if r.cfg.Mode.HasCellState() {
		entries = append(entries,
			wgpu.BufferBindingEntry(3, cIn, 0, planeSize),
			wgpu.BufferBindingEntry(4, hOut, 0, planeSize),
			wgpu.BufferBindingEntry(5, cOut, 0, planeSize),
			wgpu.BufferBindingEntry(6, outBuf, 0, outSize),
			wgpu.BufferBindingEntry(7, uniBuf, 0, 32),
		)
	} else {
		entries = append(entries,
			wgpu.BufferBindingEntry(3, hOut, 0, planeSize),
			wgpu.BufferBindingEntry(4, outBuf, 0, outSize),
			wgpu.BufferBindingEntry(5, uniBuf, 0, 32),
		)
	}

	return r.dispatch(pipeline, entries, uint32((batch*units+workgroupSize-1)/workgroupSize))
}

// sum combines two direction outputs element-wise for the next layer.
func (r *forwardRun) sum(a, b, result *wgpu.Buffer, n int) error {
	shader := r.e.compileShader("sum", sumShader)
	pipeline := r.e.getOrCreatePipeline("sum", shader)

	uni := make([]byte, 16)
	binary.LittleEndian.PutUint32(uni[0:4], uint32(n))
	uniBuf := r.e.createUniformBuffer(uni)
	defer uniBuf.Release()

	size := uint64(n * 4)
	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, a, 0, size),
		wgpu.BufferBindingEntry(1, b, 0, size),
		wgpu.BufferBindingEntry(2, result, 0, size),
		wgpu.BufferBindingEntry(3, uniBuf, 0, 16),
	}
	return r.dispatch(pipeline, entries, uint32((n+workgroupSize-1)/workgroupSize))
}

// concat interleaves the final layer's directions on the feature axis.
func (r *forwardRun) concat(fwd, bwd, result *wgpu.Buffer, n, units int) error {
	shader := r.e.compileShader("concat", concatShader)
	pipeline := r.e.getOrCreatePipeline("concat", shader)

	uni := make([]byte, 16)
	binary.LittleEndian.PutUint32(uni[0:4], uint32(n))
	binary.LittleEndian.PutUint32(uni[4:8], uint32(units))
	uniBuf := r.e.createUniformBuffer(uni)
	defer uniBuf.Release()

	size := uint64(n * 4)
	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, fwd, 0, size),
		wgpu.BufferBindingEntry(1, bwd, 0, size),
		wgpu.BufferBindingEntry(2, result, 0, 2*size),
		wgpu.BufferBindingEntry(3, uniBuf, 0, 16),
	}
	return r.dispatch(pipeline, entries, uint32((n+workgroupSize-1)/workgroupSize))
}

func (r *forwardRun) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, workgroups uint32) error {
	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := r.e.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := r.e.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	r.e.queue.Submit(cmdBuffer)
	return nil
}

func sliceOrNil(t *tensor.RawTensor, off, n int) []byte {
	if t == nil || t.IsEmpty() {
		return nil
	}
	return t.Data()[off : off+n]
}
