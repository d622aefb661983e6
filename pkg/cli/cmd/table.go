package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/health"
	"github.com/rzbill/herd/pkg/types"
)

// ResourceTable renders herd resources as tables
type ResourceTable struct {
	// Configuration
	Headers  []string
	MaxWidth int

	out           io.Writer
	tableRenderer *pterm.TablePrinter
}

// NewResourceTable creates a new resource table writing to out
func NewResourceTable(out io.Writer) *ResourceTable {
	table := pterm.DefaultTable.WithHasHeader(true)

	headerStyle := pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	table = table.WithHeaderStyle(headerStyle)

	return &ResourceTable{
		out:           out,
		tableRenderer: table,
		MaxWidth:      60,
	}
}

// render prints rows under the table's headers, or empty when there are
// no rows.
func (t *ResourceTable) render(rows [][]string, empty string) error {
	if len(rows) == 0 {
		fmt.Fprintln(t.out, empty)
		return nil
	}

	data := append([][]string{t.Headers}, rows...)
	s, err := t.tableRenderer.WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, s)
	return nil
}

// RenderServices renders catalog services, one row per version.
func (t *ResourceTable) RenderServices(services []*catalog.Service) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"NAME", "VERSION", "DEFAULT", "PROCESSES"}
	}

	rows := make([][]string, 0, len(services))
	for _, s := range services {
		def := ""
		if s.Default {
			def = "*"
		}
		rows = append(rows, []string{
			s.UIName,
			s.Version,
			def,
			format.Truncate(strings.Join(s.ProcessNames(), ", "), t.MaxWidth),
		})
	}
	return t.render(rows, "No services found")
}

// RenderConfigs renders configuration options.
func (t *ResourceTable) RenderConfigs(options []catalog.ConfigOption) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"TARGET", "NAME", "SCOPE", "TYPE", "DEFAULT"}
	}

	rows := make([][]string, 0, len(options))
	for _, o := range options {
		rows = append(rows, []string{
			o.ApplicableTarget,
			o.Name,
			o.Scope,
			o.Type,
			format.Truncate(o.DefaultValue, t.MaxWidth),
		})
	}
	return t.render(rows, "No configuration options found")
}

// RenderChecks renders check descriptors. When results are given they
// must be in the same order as checks.
func (t *ResourceTable) RenderChecks(checks []types.CheckDescriptor, results []health.Result) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"NAME", "KIND", "TARGET"}
		if results != nil {
			t.Headers = append(t.Headers, "STATUS", "MESSAGE")
		}
	}

	rows := make([][]string, 0, len(checks))
	for i, c := range checks {
		var target string
		switch c.Kind {
		case types.CheckKindCluster:
			target = c.Message
		case types.CheckKindExec:
			target = c.Host + " $ " + format.Truncate(c.Command, t.MaxWidth)
		default:
			target = c.Host + ":" + strconv.Itoa(c.Port) + c.Path
		}
		row := []string{c.Name, string(c.Kind), target}
		if results != nil {
			r := results[i]
			status := "healthy"
			if !r.Healthy {
				status = "unhealthy"
			}
			row = append(row, format.StatusLabel(status), format.Truncate(r.Message, t.MaxWidth))
		}
		rows = append(rows, row)
	}
	return t.render(rows, "No checks found")
}

// RenderOperations renders recorded lifecycle operations.
func (t *ResourceTable) RenderOperations(ops []types.Operation) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"ID", "CLUSTER", "KIND", "STATUS", "STARTED", "DURATION", "ERROR"}
	}

	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		duration := "-"
		if d := op.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			shortID(op.ID),
			op.ClusterID,
			string(op.Kind),
			format.StatusLabel(string(op.Status)),
			formatAgeTable(op.StartedAt),
			duration,
			format.Truncate(op.Error, t.MaxWidth),
		})
	}
	return t.render(rows, "No operations found")
}

// RenderClusters renders stored cluster records.
func (t *ResourceTable) RenderClusters(clusters []*types.Cluster) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"ID", "NAME", "DISTRIBUTION", "NODE GROUPS", "INSTANCES", "UPDATED"}
	}

	rows := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		rows = append(rows, []string{
			c.ID,
			c.Name,
			c.DistributionVersion,
			strconv.Itoa(len(c.NodeGroups)),
			strconv.Itoa(len(c.Instances())),
			formatAgeTable(c.UpdatedAt),
		})
	}
	return t.render(rows, "No clusters found")
}

// RenderImageArguments renders the arguments image packing accepts.
func (t *ResourceTable) RenderImageArguments(args []types.ImageArgument) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"NAME", "REQUIRED", "DEFAULT", "CHOICES", "DESCRIPTION"}
	}

	rows := make([][]string, 0, len(args))
	for _, a := range args {
		rows = append(rows, []string{
			a.Name,
			strconv.FormatBool(a.Required),
			a.Default,
			strings.Join(a.Choices, ", "),
			format.Truncate(a.Description, t.MaxWidth),
		})
	}
	return t.render(rows, "No image arguments")
}

// RenderKeyValues renders a map as two sorted columns.
func (t *ResourceTable) RenderKeyValues(m map[string]string, empty string) error {
	if len(t.Headers) == 0 {
		t.Headers = []string{"NAME", "VALUE"}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, format.Truncate(m[k], t.MaxWidth)})
	}
	return t.render(rows, empty)
}

// formatAgeTable formats a time.Time as a human-readable age string
func formatAgeTable(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}

	duration := time.Since(t)
	if duration < time.Minute {
		return "Just now"
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else if duration < 365*24*time.Hour {
		return fmt.Sprintf("%dd", int(duration.Hours()/24))
	}
	return fmt.Sprintf("%dy", int(duration.Hours()/24/365))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
