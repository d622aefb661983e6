package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/cli/utils"
)

func newImagesCmd(opts *rootOptions) *cobra.Command {
	var (
		argString string
		testOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Prepare and verify cluster images",
		Long: `Image commands pack the catalog's packages onto an instance so it
can serve as a cluster image, and verify the images a cluster uses.

For example:
  herd images args
  herd images pack -f cluster.yaml worker-0 --args java_version=8
  herd images validate -f cluster.yaml --test-only`,
	}

	argsCmd := &cobra.Command{
		Use:   "args",
		Short: "List the arguments image packing accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			imageArgs, err := a.orch.ImageArguments()
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderImageArguments(imageArgs)
		},
	}

	packCmd := &cobra.Command{
		Use:   "pack <instance-id>",
		Short: "Pack an instance into a cluster image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			imageArgs, err := utils.ParseKeyValues(argString)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			targets, err := utils.SelectInstances(a.cluster, args)
			if err != nil {
				return err
			}
			if err := a.orch.PackImage(cmd.Context(), targets[0], testOnly, imageArgs); err != nil {
				return err
			}
			format.Success(a.out, "Instance %s packed", targets[0].ID)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify the images of every node group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			imageArgs, err := utils.ParseKeyValues(argString)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.orch.ValidateImages(cmd.Context(), a.cluster, testOnly, imageArgs); err != nil {
				return err
			}
			format.Success(a.out, "Images of cluster %s are valid", a.cluster.ID)
			return nil
		},
	}

	for _, c := range []*cobra.Command{packCmd, validateCmd} {
		c.Flags().StringVar(&argString, "args", "", "image arguments (name=value,...)")
		c.Flags().BoolVar(&testOnly, "test-only", false, "only verify, change nothing")
	}

	cmd.AddCommand(argsCmd, packCmd, validateCmd)
	return cmd
}
