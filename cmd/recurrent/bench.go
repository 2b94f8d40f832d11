package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/born-ml/recurrent/engine/cpu"
	"github.com/born-ml/recurrent/engine/webgpu"
	"github.com/born-ml/recurrent/rnn"
	"github.com/born-ml/recurrent/tensor"
)

var (
	benchEngine     string
	benchSeq        int
	benchBatch      int
	benchIterations int
	benchTraining   bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the forward (and backward) pass",
	Long: `Run timed forward passes of the configured model on a compute
engine. With --training each iteration also runs the backward pass.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchEngine, "engine", "cpu", "compute engine: cpu, webgpu")
	benchCmd.Flags().IntVar(&benchSeq, "seq", 0, "sequence length")
	benchCmd.Flags().IntVar(&benchBatch, "batch", 0, "batch size")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 0, "timed iterations")
	benchCmd.Flags().BoolVar(&benchTraining, "training", false, "benchmark the training path")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seq") {
		cfg.Bench.SeqLength = benchSeq
	}
	if cmd.Flags().Changed("batch") {
		cfg.Bench.BatchSize = benchBatch
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Bench.Iterations = benchIterations
	}
	if cmd.Flags().Changed("training") {
		cfg.Bench.Training = benchTraining
	}

	model, err := cfg.modelConfig()
	if err != nil {
		return err
	}

	eng, err := pickEngine(benchEngine)
	if err != nil {
		return err
	}
	defer eng.Close()

	if cfg.Bench.Training && benchEngine != "cpu" {
		return fmt.Errorf("training benchmarks need the cpu engine")
	}

	attrs, err := rnn.ParseAttrs(cfg.Model.Mode, cfg.Model.InputMode, cfg.Model.Direction)
	if err != nil {
		return err
	}
	m, err := rnn.NewModel(attrs, model.NumLayers, model.NumUnits, model.InputSize, eng)
	if err != nil {
		return err
	}

	seq, batch := cfg.Bench.SeqLength, cfg.Bench.BatchSize
	dirs := model.DirCount()

	input := randomTensor(tensor.Shape{seq, batch, model.InputSize})
	hidden := randomTensor(tensor.Shape{model.NumLayers * dirs, batch, model.NumUnits})
	var cell *tensor.RawTensor
	if attrs.Mode.HasCellState() {
		cell = randomTensor(tensor.Shape{model.NumLayers * dirs, batch, model.NumUnits})
	}

	logger.Infof("model: %s", model)
	logger.Infof("workload: seq=%d batch=%d iterations=%d training=%v engine=%s",
		seq, batch, cfg.Bench.Iterations, cfg.Bench.Training, eng.Name())

	// Warm up once so shader compilation and plan building stay out of
	// the timings.
	if _, err := m.Forward(input, hidden, cell); err != nil {
		return err
	}

	var fwdTotal, bwdTotal time.Duration
	for i := 0; i < cfg.Bench.Iterations; i++ {
		if cfg.Bench.Training {
			start := time.Now()
			res, err := m.ForwardTraining(input, hidden, cell)
			if err != nil {
				return err
			}
			fwdTotal += time.Since(start)

			dy := randomTensor(res.Output.Shape())
			dhy := randomTensor(hidden.Shape())
			var dcy *tensor.RawTensor
			if cell != nil {
				dcy = randomTensor(cell.Shape())
			}
			start = time.Now()
			if _, err := m.Backward(input, hidden, cell, dy, dhy, dcy, res.Reserve); err != nil {
				return err
			}
			bwdTotal += time.Since(start)
			continue
		}

		start := time.Now()
		if _, err := m.Forward(input, hidden, cell); err != nil {
			return err
		}
		fwdTotal += time.Since(start)
	}

	iters := time.Duration(cfg.Bench.Iterations)
	color.Green("forward:  %v/iter (%v total)", fwdTotal/iters, fwdTotal)
	if cfg.Bench.Training {
		color.Green("backward: %v/iter (%v total)", bwdTotal/iters, bwdTotal)
	}
	fmt.Println()
	return nil
}

func pickEngine(name string) (rnn.Engine, error) {
	switch name {
	case "cpu":
		return cpu.New(), nil
	case "webgpu":
		if !webgpu.IsAvailable() {
			return nil, fmt.Errorf("webgpu engine not available on this system")
		}
		eng, err := webgpu.New()
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

func randomTensor(shape tensor.Shape) *tensor.RawTensor {
	buf, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		panic(err)
	}
	data := buf.AsFloat32()
	for i := range data {
		data[i] = rand.Float32()*2 - 1
	}
	return buf
}
