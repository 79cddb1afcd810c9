package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pbauer/gridq/pkg/config"
	"github.com/pbauer/gridq/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gridq",
	Short: "Cluster job lifecycle manager for SGE-style batch schedulers",
	Long: `gridq stages units of work, submits them to a Sun Grid Engine style
batch scheduler, polls and interprets scheduler status, and reconciles
scheduler-reported completion against actual filesystem evidence before
declaring a task done.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gridq/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig reads the config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger builds the CLI logger from config.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(cfg.LogLevel), false)
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
