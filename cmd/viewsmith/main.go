package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Flags shared by every subcommand, plus the console logger built in
// the root PersistentPreRunE. File logging is configured separately by
// serve from the loaded config.
var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

// Set via ldflags at release time.
var (
	version = "0.3.0"
	commit  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "viewsmith",
	Short: "viewsmith - model-driven layout server",
	Long: `viewsmith serves generative UI layouts over HTTP.

A chat model plans each view by calling layout and dataset tools against a
local SQLite store. The resulting layout JSON and its datasets are returned
to clients directly or streamed step by step over SSE.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := buildLogger(verbose)
		if err != nil {
			return fmt.Errorf("initialize console logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("viewsmith %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "viewsmith.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose console logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
