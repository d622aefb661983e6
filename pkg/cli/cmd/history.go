package cmd

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [cluster-id]",
		Short: "Show recorded lifecycle operations",
		Long: `Show the lifecycle operations recorded for a cluster, newest first.
Without an argument the cluster given with --file is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clusterID string
			if len(args) == 1 {
				clusterID = args[0]
			} else if err := opts.requireCluster(); err != nil {
				return err
			}

			a, err := newApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if clusterID == "" {
				clusterID = a.cluster.ID
			}
			ops, err := a.recorder.History(cmd.Context(), clusterID)
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderOperations(ops)
		},
	}
}

func newClustersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clusters",
		Short: "List stored cluster records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			clusters, err := a.clusters.List(cmd.Context())
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderClusters(clusters)
		},
	}
}
