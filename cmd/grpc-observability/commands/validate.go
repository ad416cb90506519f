package commands

import (
	"github.com/spf13/cobra"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/diagnostics"
)

func newValidateCommand() *cobra.Command {
	var (
		file  string
		stdin bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse a configuration document and print the resolved settings",
		Long: `Parse the observability configuration and print the values that activation
would use, defaults included. Without flags the document is read from
GRPC_CONFIG_OBSERVABILITY, then from the file named by
GRPC_CONFIG_OBSERVABILITY_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaders := config.DefaultLoaders()

			switch {
			case stdin:
				loaders = []config.Loader{config.ReaderLoader{Reader: cmd.InOrStdin()}}
			case file != "":
				loaders = []config.Loader{config.FileLoader{Path: file}}
			}

			cfg, err := config.Load(cmd.Context(), loaders...)
			if err != nil {
				return err
			}

			return printValue(cmd, diagnostics.NewConfigStatus(cfg))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the document from a JSON or YAML file")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read the JSON document from standard input")
	cmd.MarkFlagsMutuallyExclusive("file", "stdin")

	return cmd
}

func newDefaultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the settings used when logging_config is absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printValue(cmd, diagnostics.NewConfigStatus(config.Default()))
		},
	}
}

func newEventTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "event-types",
		Short: "List the event type names accepted in event_types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := make([]string, 0, len(config.AllEventTypes()))
			for _, event := range config.AllEventTypes() {
				names = append(names, event.String())
			}

			return printValue(cmd, names)
		},
	}
}
