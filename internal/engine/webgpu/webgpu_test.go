//go:build windows

package webgpu

import (
	"math"
	"testing"

	"github.com/born-ml/recurrent/internal/engine"
	"github.com/born-ml/recurrent/internal/engine/cpu"
	"github.com/born-ml/recurrent/internal/rnn"
	"github.com/born-ml/recurrent/internal/tensor"
)

func TestIsAvailable(t *testing.T) {
	available := IsAvailable()
	t.Logf("WebGPU available: %v", available)
	// Note: This test doesn't fail if WebGPU is unavailable
	// It just reports the status
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New()
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func fill(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	buf, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	data := buf.AsFloat32()
	for i := range data {
		data[i] = float32((i%11)-5) * 0.07
	}
	return buf
}

// forwardArgs builds a full inference argument set for one invocation.
func forwardArgs(t *testing.T, mode rnn.Mode, direction rnn.Direction, seq, batch, layers, inputSize, units int) (rnn.Shapes, engine.ForwardArgs) {
	t.Helper()
	dirs := direction.DirCount()

	input := fill(t, tensor.Shape{seq, batch, inputSize})
	inputH := fill(t, tensor.Shape{layers * dirs, batch, units})
	inputC := tensor.Empty(tensor.Float32)
	var cellShape tensor.Shape
	if mode.HasCellState() {
		inputC = fill(t, tensor.Shape{layers * dirs, batch, units})
		cellShape = inputC.Shape()
	}

	shapes, err := rnn.DeriveShapes(mode, direction, input.Shape(), inputH.Shape(), cellShape)
	if err != nil {
		t.Fatalf("DeriveShapes: %v", err)
	}
	size := rnn.ParamSize(mode, dirs, inputSize, units, layers)
	params := fill(t, tensor.Shape{int(size)})

	args := engine.ForwardArgs{
		Shapes: shapes,
		Input:  input,
		InputH: inputH,
		InputC: inputC,
		Params: params,
	}
	return shapes, args
}

func allocOutputs(t *testing.T, mode rnn.Mode, shapes rnn.Shapes, args *engine.ForwardArgs) {
	t.Helper()
	var err error
	if args.Output, err = tensor.NewRaw(shapes.OutputShape, tensor.Float32); err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	if args.OutputH, err = tensor.NewRaw(shapes.HiddenStateShape, tensor.Float32); err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	args.OutputC = tensor.Empty(tensor.Float32)
	if mode.HasCellState() {
		if args.OutputC, err = tensor.NewRaw(shapes.HiddenStateShape, tensor.Float32); err != nil {
			t.Fatalf("NewRaw: %v", err)
		}
	}
}

func assertClose(t *testing.T, name string, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d vs %d", name, len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(float64(got[i]) - float64(want[i]))
		if diff > 1e-4+1e-3*math.Abs(float64(want[i])) {
			t.Fatalf("%s[%d]: gpu %v vs cpu %v", name, i, got[i], want[i])
		}
	}
}

// TestForwardMatchesCPU cross-checks the GPU forward pass against the cpu
// engine for every mode and both directions.
func TestForwardMatchesCPU(t *testing.T) {
	gpu := newEngine(t)
	ref := cpu.New()
	defer ref.Close()

	cases := []struct {
		name      string
		mode      rnn.Mode
		direction rnn.Direction
		layers    int
	}{
		{"tanh", rnn.Tanh, rnn.Unidirectional, 1},
		{"relu", rnn.ReLU, rnn.Unidirectional, 1},
		{"lstm", rnn.LSTM, rnn.Unidirectional, 2},
		{"gru", rnn.GRU, rnn.Unidirectional, 2},
		{"lstm bidirectional", rnn.LSTM, rnn.Bidirectional, 2},
		{"gru bidirectional", rnn.GRU, rnn.Bidirectional, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shapes, gpuArgs := forwardArgs(t, tc.mode, tc.direction, 5, 2, tc.layers, 4, 3)
			allocOutputs(t, tc.mode, shapes, &gpuArgs)

			plan, err := engine.NewPlan(tc.mode, rnn.LinearInput, tc.direction, shapes)
			if err != nil {
				t.Fatalf("NewPlan: %v", err)
			}
			if err := gpu.Forward(plan, gpuArgs); err != nil {
				t.Fatalf("gpu forward: %v", err)
			}

			cpuArgs := gpuArgs
			allocOutputs(t, tc.mode, shapes, &cpuArgs)
			if err := ref.Forward(plan, cpuArgs); err != nil {
				t.Fatalf("cpu forward: %v", err)
			}

			assertClose(t, "output", gpuArgs.Output.AsFloat32(), cpuArgs.Output.AsFloat32())
			assertClose(t, "output_h", gpuArgs.OutputH.AsFloat32(), cpuArgs.OutputH.AsFloat32())
			if tc.mode.HasCellState() {
				assertClose(t, "output_c", gpuArgs.OutputC.AsFloat32(), cpuArgs.OutputC.AsFloat32())
			}
		})
	}
}

func TestTrainingForwardUnsupported(t *testing.T) {
	gpu := newEngine(t)

	shapes, args := forwardArgs(t, rnn.Tanh, rnn.Unidirectional, 3, 2, 1, 4, 3)
	allocOutputs(t, rnn.Tanh, shapes, &args)
	args.Training = true

	plan, err := engine.NewPlan(rnn.Tanh, rnn.LinearInput, rnn.Unidirectional, shapes)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if err := gpu.Forward(plan, args); err == nil {
		t.Fatal("training forward should be rejected")
	}
}

func TestBackwardUnsupported(t *testing.T) {
	gpu := newEngine(t)

	shapes, _ := forwardArgs(t, rnn.Tanh, rnn.Unidirectional, 3, 2, 1, 4, 3)
	plan, err := engine.NewPlan(rnn.Tanh, rnn.LinearInput, rnn.Unidirectional, shapes)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if err := gpu.Backward(plan, engine.BackwardArgs{Shapes: shapes}); err == nil {
		t.Fatal("backward should be unsupported")
	}
}
