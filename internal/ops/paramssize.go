package ops

import (
	"github.com/born-ml/recurrent/internal/rnn"
)

// ParamsSize reports the number of elements a packed parameter buffer
// needs for the given attributes and model dimensions. Callers size the
// opaque buffer with this before any forward pass.
func ParamsSize(attrs Attrs, numLayers, numUnits, inputSize int) (int64, error) {
	cfg, err := rnn.NewConfig(rnn.Config{
		Mode:      attrs.Mode,
		InputMode: attrs.InputMode,
		Direction: attrs.Direction,
		NumLayers: numLayers,
		NumUnits:  numUnits,
		InputSize: inputSize,
		Dropout:   attrs.Dropout,
		Seed:      attrs.Seed,
		Seed2:     attrs.Seed2,
	})
	if err != nil {
		return 0, err
	}
	return cfg.ParamSize(), nil
}
