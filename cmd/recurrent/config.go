package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/recurrent/rnn"
)

// Config is the YAML file format accepted by the --config flag.
type Config struct {
	Model ModelConfig `yaml:"model"`
	Bench BenchConfig `yaml:"bench"`
}

// ModelConfig mirrors the model attributes and dimensions.
type ModelConfig struct {
	Mode      string `yaml:"mode"`
	InputMode string `yaml:"input_mode"`
	Direction string `yaml:"direction"`
	NumLayers int    `yaml:"num_layers"`
	NumUnits  int    `yaml:"num_units"`
	InputSize int    `yaml:"input_size"`
}

// BenchConfig controls the bench command workload.
type BenchConfig struct {
	SeqLength  int  `yaml:"seq_length"`
	BatchSize  int  `yaml:"batch_size"`
	Iterations int  `yaml:"iterations"`
	Training   bool `yaml:"training"`
}

// defaultConfig returns the configuration used when no file and no flags
// override it.
func defaultConfig() Config {
	return Config{
		Model: ModelConfig{
			Mode:      "lstm",
			InputMode: "linear_input",
			Direction: "unidirectional",
			NumLayers: 2,
			NumUnits:  128,
			InputSize: 64,
		},
		Bench: BenchConfig{
			SeqLength:  32,
			BatchSize:  16,
			Iterations: 10,
		},
	}
}

// loadConfig reads a YAML config file over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// modelConfig resolves the file/flag configuration into validated model
// attributes and dimensions.
func (c Config) modelConfig() (rnn.Config, error) {
	return rnn.ParseConfig(c.Model.Mode, c.Model.InputMode, c.Model.Direction,
		c.Model.NumLayers, c.Model.NumUnits, c.Model.InputSize)
}
