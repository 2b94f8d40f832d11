package rnn

import "fmt"

// Config describes a recurrent model. It is immutable once constructed;
// invalid combinations are rejected by NewConfig and never reach the shape
// or size computations.
//
// Dropout, Seed and Seed2 are accepted and carried for the compute engine;
// the model core itself makes no use of them.
type Config struct {
	Mode      Mode
	InputMode InputMode
	Direction Direction

	NumLayers int
	NumUnits  int
	InputSize int

	Dropout float32
	Seed    int64
	Seed2   int64
}

// NewConfig validates and returns a model configuration.
//
// The input mode is resolved at construction: auto_select becomes
// skip_input when InputSize == NumUnits, linear_input otherwise.
// skip_input with InputSize != NumUnits is rejected.
func NewConfig(cfg Config) (Config, error) {
	if cfg.NumLayers <= 0 {
		return Config{}, fmt.Errorf("%w: num_layers must be positive, got %d", ErrInvalidConfig, cfg.NumLayers)
	}
	if cfg.NumUnits <= 0 {
		return Config{}, fmt.Errorf("%w: num_units must be positive, got %d", ErrInvalidConfig, cfg.NumUnits)
	}
	if cfg.InputSize <= 0 {
		return Config{}, fmt.Errorf("%w: input_size must be positive, got %d", ErrInvalidConfig, cfg.InputSize)
	}
	if cfg.Mode.GateCount() < 0 {
		return Config{}, fmt.Errorf("%w: unknown rnn mode %d", ErrInvalidConfig, int(cfg.Mode))
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return Config{}, fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, cfg.Dropout)
	}

	cfg.InputMode = cfg.InputMode.Resolve(cfg.InputSize, cfg.NumUnits)
	if cfg.InputMode == SkipInput && cfg.InputSize != cfg.NumUnits {
		return Config{}, fmt.Errorf("%w: skip_input requires input_size == num_units, got %d and %d",
			ErrInvalidConfig, cfg.InputSize, cfg.NumUnits)
	}

	return cfg, nil
}

// ParseConfig builds a Config from the attribute-string vocabulary used by
// host frameworks: mode, input mode and direction arrive as strings and are
// validated at this boundary.
func ParseConfig(mode, inputMode, direction string, numLayers, numUnits, inputSize int) (Config, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Config{}, err
	}
	im, err := ParseInputMode(inputMode)
	if err != nil {
		return Config{}, err
	}
	d, err := ParseDirection(direction)
	if err != nil {
		return Config{}, err
	}
	return NewConfig(Config{
		Mode:      m,
		InputMode: im,
		Direction: d,
		NumLayers: numLayers,
		NumUnits:  numUnits,
		InputSize: inputSize,
	})
}

// DirCount returns the direction count of the configuration.
func (c Config) DirCount() int {
	return c.Direction.DirCount()
}

// ParamSize returns the flat element count of the opaque parameter buffer
// for this configuration.
func (c Config) ParamSize() int64 {
	return ParamSize(c.Mode, c.DirCount(), c.InputSize, c.NumUnits, c.NumLayers)
}

// String summarizes the configuration.
func (c Config) String() string {
	return fmt.Sprintf("%s %s layers=%d units=%d input=%d",
		c.Mode, c.Direction, c.NumLayers, c.NumUnits, c.InputSize)
}
