package commands

import (
	"encoding/json"
	"io"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func printValue(cmd *cobra.Command, value any) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return ewrap.Wrap(err, "read output flag")
	}

	return encode(cmd.OutOrStdout(), format, value)
}

func encode(w io.Writer, format string, value any) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(value)
		if err != nil {
			return ewrap.Wrap(err, "encode yaml")
		}

		err = enc.Close()
		if err != nil {
			return ewrap.Wrap(err, "flush yaml")
		}

		return nil
	case outputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(value)
		if err != nil {
			return ewrap.Wrap(err, "encode json")
		}

		return nil
	default:
		return ewrap.Newf("unsupported output format %q (want json or yaml)", format)
	}
}
