package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subforge/internal/config"
	"subforge/internal/logger"
	"subforge/internal/pattern"
)

var cfgFile string
var verbose bool
var logFile string
var logJSON bool

var rootCmd = &cobra.Command{
	Use:   "subforge",
	Short: "Filter, rename and chain proxy nodes into subscriptions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{Verbose: verbose, Path: logFile, JSON: logJSON})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies its process-wide settings.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Log.Fatalf("Error loading config: %v", err)
	}
	pattern.MatchTimeout = cfg.Pipeline.RegexTimeout
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stdout (overwrites file)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}
