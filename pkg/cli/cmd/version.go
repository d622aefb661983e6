package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the herd version and bundled distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "", "text":
				fmt.Fprintln(cmd.OutOrStdout(), version.Info())
				return nil
			case "yaml":
				return printYAML(cmd.OutOrStdout(), struct {
					Build         map[string]string `yaml:"build"`
					Distributions []string          `yaml:"distributions"`
				}{version.Map(), catalog.BuiltinVersions()})
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, yaml)")
	return cmd
}
