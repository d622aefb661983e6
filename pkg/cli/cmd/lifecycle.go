package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/cli/utils"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/orchestrator"
	"github.com/rzbill/herd/pkg/types"
)

// lifecycleFlags are shared by the commands that change a cluster.
type lifecycleFlags struct {
	timeout time.Duration
}

func (f *lifecycleFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up after this long (0 waits indefinitely)")
}

// operationContext is cancelled on interrupt and after the timeout.
func (f *lifecycleFlags) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if f.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var resize, add string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a cluster's topology",
		Long: `Validate the cluster record against the catalog rules. Every
violation is reported, not only the first.

With --resize or --add a proposed scaling is validated instead; the
record itself is not changed. A node group resized to 0 is dropped.

For example:
  herd validate -f cluster.yaml
  herd validate -f cluster.yaml --resize worker=5,edge=0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			existing, err := utils.ParseCounts(resize)
			if err != nil {
				return err
			}
			additional, err := utils.ParseCounts(add)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if resize != "" || add != "" {
				err = a.orch.ValidateScaling(cmd.Context(), a.cluster, existing, additional)
			} else {
				err = a.orch.Validate(cmd.Context(), a.cluster)
			}
			if err != nil {
				return err
			}
			format.Success(a.out, "Cluster %s is valid", a.cluster.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&resize, "resize", "", "new counts of existing node groups (group=count,...)")
	cmd.Flags().StringVar(&add, "add", "", "counts of node groups being added (group=count,...)")
	return cmd
}

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	flags := &lifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure every instance of a new cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, opts, flags, "configured", func(ctx context.Context, a *app) (*types.Cluster, error) {
				return a.cluster, a.orch.ConfigureCluster(ctx, a.cluster)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	flags := &lifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start every node process and run post-start hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, opts, flags, "started", func(ctx context.Context, a *app) (*types.Cluster, error) {
				return a.cluster, a.orch.StartCluster(ctx, a.cluster)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newScaleCmd(opts *rootOptions) *cobra.Command {
	flags := &lifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "scale <instance-id>...",
		Short: "Bring new instances into service",
		Long: `Configure and start instances that were added to the cluster
record. The existing instances are updated with the new topology
before the new ones start.

For example:
  herd scale -f cluster.yaml worker-3 worker-4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, opts, flags, "scaled", func(ctx context.Context, a *app) (*types.Cluster, error) {
				instances, err := utils.SelectInstances(a.cluster, args)
				if err != nil {
					return nil, err
				}
				return a.cluster, a.runTask(ctx, a.orch.SubmitScale(ctx, a.cluster, instances))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDecommissionCmd(opts *rootOptions) *cobra.Command {
	flags := &lifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "decommission <instance-id>...",
		Short: "Take instances out of service",
		Long: `Move data off the given instances, stop them, wait until they no
longer heartbeat and remove them from the cluster. The remaining
instances are then updated. On success the stored record no longer
holds the instances.

For example:
  herd decommission -f cluster.yaml worker-2 --timeout 10m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, opts, flags, "decommissioned", func(ctx context.Context, a *app) (*types.Cluster, error) {
				instances, err := utils.SelectInstances(a.cluster, args)
				if err != nil {
					return nil, err
				}
				if err := a.runTask(ctx, a.orch.SubmitDecommission(ctx, a.cluster, instances)); err != nil {
					return nil, err
				}
				return withoutInstances(a.cluster, args), nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// runLifecycle opens the store, runs op and saves the resulting record.
func runLifecycle(cmd *cobra.Command, opts *rootOptions, flags *lifecycleFlags, verb string,
	op func(ctx context.Context, a *app) (*types.Cluster, error)) error {
	if err := opts.requireCluster(); err != nil {
		return err
	}
	a, err := newApp(cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := flags.operationContext(cmd.Context())
	defer cancel()

	c, err := op(ctx, a)
	if err != nil {
		return err
	}

	c.UpdatedAt = time.Now()
	if err := a.clusters.Save(ctx, c); err != nil {
		a.logger.Warn("Failed to save cluster record", log.Cluster(c.ID), log.Err(err))
	}
	format.Success(a.out, "Cluster %s %s", c.ID, verb)
	return nil
}

// runTask waits for t, cancelling it when ctx ends first.
func (a *app) runTask(ctx context.Context, t *orchestrator.Task) error {
	a.logger.Debug("Waiting for task", log.Str(log.TaskIDKey, t.ID))
	if err := t.Wait(ctx); err != nil && t.Status() == orchestrator.TaskStatusRunning {
		t.Cancel()
		<-t.Done()
	}
	if err := t.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", t.Kind, t.Status(), err)
	}
	return nil
}

func withoutInstances(c *types.Cluster, ids []string) *types.Cluster {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	out := c.Clone()
	for _, ng := range out.NodeGroups {
		kept := ng.Instances[:0]
		for _, inst := range ng.Instances {
			if !drop[inst.ID] {
				kept = append(kept, inst)
			}
		}
		if ng.Count -= len(ng.Instances) - len(kept); ng.Count < 0 {
			ng.Count = 0
		}
		ng.Instances = kept
	}
	return out
}
