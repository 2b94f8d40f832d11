// Package main provides the recurrent primitives CLI: parameter-buffer
// sizing, engine benchmarks and version information.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logger     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "recurrent",
	Short: "fused recurrent primitives toolbox",
	Long:  `Inspect and benchmark fused multi-layer RNN/GRU/LSTM primitives.`,
}

type cliFormatter struct{}

func (f *cliFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func init() {
	logger = logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&cliFormatter{})

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "model config file path (YAML)")

	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
