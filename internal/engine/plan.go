package engine

import (
	"errors"
	"fmt"

	"github.com/born-ml/recurrent/internal/rnn"
)

// ErrUnsupported reports a primitive the engine does not implement.
var ErrUnsupported = errors.New("operation not supported by engine")

// Plan is an immutable execution plan: the model configuration fixed to the
// structural dimensions of one derived Shapes snapshot, plus the parameter
// buffer size both sides agreed on.
//
// A plan built for one invocation can be reused for another iff
// Shapes.CompatibleWith holds: sequence length and batch size may vary,
// the structural dimensions may not. The op layer caches plans on exactly
// that rule.
type Plan struct {
	cfg       rnn.Config
	key       rnn.Shapes
	paramSize int64
}

// NewPlan fixes the model types to the structural dimensions captured in
// shapes and computes the expected parameter buffer size.
func NewPlan(mode rnn.Mode, inputMode rnn.InputMode, direction rnn.Direction, shapes rnn.Shapes) (*Plan, error) {
	cfg, err := rnn.NewConfig(rnn.Config{
		Mode:      mode,
		InputMode: inputMode,
		Direction: direction,
		NumLayers: shapes.NumLayers,
		NumUnits:  shapes.NumUnits,
		InputSize: shapes.InputSize,
	})
	if err != nil {
		return nil, err
	}
	size := cfg.ParamSize()
	if size < 0 {
		return nil, fmt.Errorf("%w: no parameter layout for mode %s", rnn.ErrInvalidConfig, cfg.Mode)
	}
	return &Plan{cfg: cfg, key: shapes, paramSize: size}, nil
}

// PlanFromConfig builds a plan directly from a validated configuration,
// for callers that know the structural dimensions up front.
func PlanFromConfig(cfg rnn.Config) (*Plan, error) {
	cfg, err := rnn.NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Plan{
		cfg: cfg,
		key: rnn.Shapes{
			NumLayers: cfg.NumLayers,
			NumUnits:  cfg.NumUnits,
			InputSize: cfg.InputSize,
			DirCount:  cfg.DirCount(),
		},
		paramSize: cfg.ParamSize(),
	}, nil
}

// Config returns the plan's configuration.
func (p *Plan) Config() rnn.Config {
	return p.cfg
}

// ParamSize returns the element count of the opaque parameter buffer.
func (p *Plan) ParamSize() int64 {
	return p.paramSize
}

// CompatibleWith reports whether the plan can serve an invocation with the
// given derived shapes.
func (p *Plan) CompatibleWith(shapes rnn.Shapes) bool {
	return p.key.CompatibleWith(shapes)
}

// String describes the cached plan key.
func (p *Plan) String() string {
	return p.key.String()
}
