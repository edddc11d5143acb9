package main

import (
	"github.com/spf13/cobra"

	"frameworks/coursebook/pkg/config"
	"frameworks/coursebook/pkg/logging"
)

var verbose bool

// NewRootCmd returns the root command for the coursebook binary.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coursebook",
		Short:         "Course materials Q&A over a vector index",
		Long:          "coursebook loads course documents into a searchable index and answers questions about them with a tool-calling language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare invocation serves, so container entrypoints need no arguments.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newLogger() logging.Logger {
	logger := logging.NewLoggerWithService("coursebook")
	if verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	config.LoadEnv(logger)
	return logger
}
