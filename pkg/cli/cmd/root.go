package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/version"
)

// rootOptions holds the persistent flags every command shares.
type rootOptions struct {
	configFile  string
	clusterFile string
	dataDir     string
	dryRun      bool
	verbose     bool
	logLevel    string
	logFormat   string
	noColor     bool
}

// NewRootCmd creates the herd command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "herd",
		Short: "Herd - cluster lifecycle orchestrator",
		Long: `Herd validates, configures, starts, scales and decommissions
distributed data-platform clusters. Cluster topology is read from a
YAML record; the service catalog comes from an embedded distribution
or a catalog file.`,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is specified, display the help
			_ = cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				format.EnableColor(false)
			}
		},
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default is ./herd.yaml or /etc/herd/herd.yaml)")
	flags.StringVarP(&opts.clusterFile, "file", "f", "", "cluster record (YAML)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the operation store (overrides config)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "record remote commands instead of running them")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newServicesCmd(opts),
		newConfigsCmd(opts),
		newPortsCmd(opts),
		newValidateCmd(opts),
		newChecksCmd(opts),
		newJobsCmd(opts),
		newImagesCmd(opts),
		newConfigureCmd(opts),
		newStartCmd(opts),
		newScaleCmd(opts),
		newDecommissionCmd(opts),
		newHistoryCmd(opts),
		newClustersCmd(opts),
		newMonitorCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the herd command tree. This is called by main.main().
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		format.PrintError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// requireCluster fails commands that need a cluster record but got none.
func (o *rootOptions) requireCluster() error {
	if o.clusterFile == "" {
		return fmt.Errorf("a cluster record is required, use --file")
	}
	return nil
}
