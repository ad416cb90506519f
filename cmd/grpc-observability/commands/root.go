// Package commands implements the grpc-observability command tree.
package commands

import (
	"github.com/spf13/cobra"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "grpc-observability",
		Short: "Inspect and run gRPC call logging configuration",
		Long: `grpc-observability reads the GRPC_CONFIG_OBSERVABILITY document (or the file
named by GRPC_CONFIG_OBSERVABILITY_FILE) that drives call-level gRPC logging.

Examples:
  # Validate the configuration found in the environment
  grpc-observability validate

  # Validate a file and print the result as YAML
  grpc-observability validate --file observability.yaml -o yaml

  # Activate from the environment and serve the lifecycle status
  grpc-observability serve --diagnostics-addr 127.0.0.1:9464 --watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("output", "o", outputJSON, "Output format (json|yaml)")

	root.AddCommand(
		newValidateCommand(),
		newDefaultsCommand(),
		newEventTypesCommand(),
		newServeCommand(),
	)

	return root
}
