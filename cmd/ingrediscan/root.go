package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

// NewRootCmd creates the root command for ingrediscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingrediscan",
		Short: "Analyze product label photos for ingredients and health risks",
		Long: `IngrediScan reads a photo of a packaged product label, extracts its text with
OCR, asks a vision language model to identify the ingredients and health
risks, and reports a normalized result.

The model is reached through OpenRouter; set OPENROUTER_API_KEY before use.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cmd, verbose)
		},
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file (overrides CONFIG_FILE)")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging sends logs to stderr so stdout carries only the report
func setupLogging(cmd *cobra.Command, verbose bool) {
	if cmd.Name() == "serve" {
		return
	}
	logger.Logger.SetOutput(cmd.ErrOrStderr())
	if verbose {
		logger.Logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.Logger.SetLevel(logrus.WarnLevel)
	}
}

// loadConfig reads --config, falling back to CONFIG_FILE
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
