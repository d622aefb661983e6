package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/types"
)

func newServicesCmd(opts *rootOptions) *cobra.Command {
	var required bool

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List catalog services",
		Long: `List the services of the distribution catalog. With --file only
the services the cluster runs are shown; --required shows the services
every valid cluster must run.

For example:
  herd services
  herd services -f cluster.yaml
  herd services -f cluster.yaml --required`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var services []*catalog.Service
			switch {
			case required:
				services, err = a.orch.RequiredServices(cmd.Context(), a.cluster)
			case a.cluster != nil:
				services, err = a.orch.ClusterServices(cmd.Context(), a.cluster)
			default:
				services = a.orch.Services()
			}
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderServices(services)
		},
	}

	cmd.Flags().BoolVar(&required, "required", false, "show only required services")
	return cmd
}

func newConfigsCmd(opts *rootOptions) *cobra.Command {
	var dict bool

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List configuration options",
		Long: `List every configuration option the catalog exposes for the
cluster's service versions. --dict prints each service's option
defaults as YAML instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if dict {
				d, err := a.orch.ConfigsDict(cmd.Context(), a.cluster)
				if err != nil {
					return err
				}
				return printYAML(a.out, d)
			}

			configs, err := a.orch.Configs(cmd.Context(), a.cluster)
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderConfigs(configs)
		},
	}

	cmd.Flags().BoolVar(&dict, "dict", false, "print option defaults per service as YAML")
	return cmd
}

func newPortsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports <node-group-id>",
		Short: "Show the ports a node group opens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ng := a.cluster.NodeGroup(args[0])
			if ng == nil {
				return fmt.Errorf("node group %s not found in cluster %s", args[0], a.cluster.ID)
			}
			ports, err := a.orch.GetOpenPorts(cmd.Context(), ng)
			if err != nil {
				return err
			}

			strs := make([]string, len(ports))
			for i, p := range ports {
				strs[i] = strconv.Itoa(p)
			}
			fmt.Fprintln(a.out, strings.Join(strs, " "))
			return nil
		},
	}
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List supported job types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, jt := range a.orch.JobTypes() {
				fmt.Fprintln(a.out, jt)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hints <job-type>",
		Short: "Show configuration hints for a job type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			hints, err := a.orch.JobConfigHints(types.JobType(args[0]))
			if err != nil {
				return err
			}
			return printYAML(a.out, hints)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "engine <job-type>",
		Short: "Show the engine that runs a job type on the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.orch.ResolveJobEngine(cmd.Context(), a.cluster, types.JobType(args[0]))
			if err != nil {
				return err
			}
			return NewResourceTable(a.out).RenderKeyValues(map[string]string{
				"url":          engine.URL(),
				"host":         engine.Host,
				"namenode":     engine.NameNodeURI(),
				"workflow_dir": engine.WorkflowDir,
			}, "")
		},
	})

	return cmd
}

func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
