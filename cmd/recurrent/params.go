package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	paramsMode      string
	paramsInputMode string
	paramsDirection string
	paramsLayers    int
	paramsUnits     int
	paramsInputSize int
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the packed parameter buffer size for a model",
	Long: `Compute the element count and byte size of the opaque packed
parameter buffer for a recurrent model configuration.`,
	RunE: runParams,
}

func init() {
	paramsCmd.Flags().StringVar(&paramsMode, "mode", "", "cell type: rnn_relu, rnn_tanh, lstm, gru")
	paramsCmd.Flags().StringVar(&paramsInputMode, "input-mode", "", "input mode: linear_input, skip_input, auto_select")
	paramsCmd.Flags().StringVar(&paramsDirection, "direction", "", "direction: unidirectional, bidirectional")
	paramsCmd.Flags().IntVar(&paramsLayers, "layers", 0, "number of stacked layers")
	paramsCmd.Flags().IntVar(&paramsUnits, "units", 0, "hidden units per layer")
	paramsCmd.Flags().IntVar(&paramsInputSize, "input-size", 0, "input feature size")
}

func runParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	overrideModel(cmd, &cfg.Model)

	model, err := cfg.modelConfig()
	if err != nil {
		return err
	}

	size := model.ParamSize()
	logger.Infof("model: %s", model)
	logger.Infof("resolved input mode: %s", model.InputMode)

	color.Green("parameter buffer: %d elements (%d bytes as float32)", size, size*4)
	fmt.Println()
	return nil
}

// overrideModel applies any explicitly set model flags over the file
// configuration.
func overrideModel(cmd *cobra.Command, m *ModelConfig) {
	if cmd.Flags().Changed("mode") {
		m.Mode = paramsMode
	}
	if cmd.Flags().Changed("input-mode") {
		m.InputMode = paramsInputMode
	}
	if cmd.Flags().Changed("direction") {
		m.Direction = paramsDirection
	}
	if cmd.Flags().Changed("layers") {
		m.NumLayers = paramsLayers
	}
	if cmd.Flags().Changed("units") {
		m.NumUnits = paramsUnits
	}
	if cmd.Flags().Changed("input-size") {
		m.InputSize = paramsInputSize
	}
}
