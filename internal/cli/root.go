package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"document-qa/internal/config"
	"document-qa/internal/logger"
)

var (
	cfgFile       string
	debug         bool
	jsonOutput    bool
	currentConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "docqa answers questions about a single document, citing its pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}
		logger.Init(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, WithCaller: debug})
		currentConfig = cfg
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./configs/config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func getConfig() *config.Config {
	if currentConfig == nil {
		return config.Default()
	}
	return currentConfig
}
