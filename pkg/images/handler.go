// Package images prepares and verifies machine images for a distribution.
package images

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

// Argument names understood by Pack and Validate.
const (
	ArgJavaDistro = "java_distro"
	ArgOSFamily   = "os_family"
)

// Step is one provisioning unit: Check exits zero when the image already
// satisfies it, Install makes it so.
type Step struct {
	Name    string
	Check   string
	Install string
}

// Handler packs and validates images through a remote executor.
type Handler struct {
	dist     *catalog.Distribution
	exec     remote.Executor
	registry Registry
	logger   log.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRegistry makes Validate require every node group image to be
// registered.
func WithRegistry(r Registry) HandlerOption {
	return func(h *Handler) {
		h.registry = r
	}
}

// NewHandler creates an image handler for a distribution.
func NewHandler(dist *catalog.Distribution, exec remote.Executor, logger log.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	h := &Handler{dist: dist, exec: exec, logger: logger.WithComponent("images")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// VersionArgName returns the argument selecting a service version.
func VersionArgName(service string) string {
	return strings.ToLower(strings.ReplaceAll(service, " ", "_")) + "_version"
}

// Arguments lists the arguments Pack and Validate accept.
func (h *Handler) Arguments() []types.ImageArgument {
	args := []types.ImageArgument{
		{
			Name:        ArgJavaDistro,
			Description: "The distribution of Java to install.",
			Default:     "openjdk",
			Choices:     []string{"openjdk", "oracle-java"},
		},
		{
			Name:        ArgOSFamily,
			Description: "Package manager family of the image.",
			Default:     "ubuntu",
			Choices:     []string{"ubuntu", "centos"},
		},
	}
	for _, name := range h.dist.ServiceNames() {
		variants := h.dist.Variants(name)
		if len(variants) < 2 {
			continue
		}
		versions := make([]string, len(variants))
		for i, s := range variants {
			versions[i] = s.Version
		}
		sort.SliceStable(versions, func(i, j int) bool {
			return catalog.CompareVersions(versions[i], versions[j]) > 0
		})
		args = append(args, types.ImageArgument{
			Name:        VersionArgName(name),
			Description: fmt.Sprintf("Version of %s to install.", name),
			Default:     h.dist.DefaultVariant(name).Version,
			Choices:     versions,
		})
	}
	return args
}

// resolveArgs fills defaults and rejects unknown arguments and values
// outside an argument's choices.
func (h *Handler) resolveArgs(given map[string]string) (map[string]string, error) {
	known := make(map[string]types.ImageArgument)
	resolved := make(map[string]string)
	for _, a := range h.Arguments() {
		known[a.Name] = a
		resolved[a.Name] = a.Default
	}

	var errs error
	for name, value := range given {
		a, ok := known[name]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown image argument %q", name))
			continue
		}
		if len(a.Choices) > 0 && !contains(a.Choices, value) {
			errs = multierr.Append(errs, fmt.Errorf("image argument %s must be one of %s, got %q",
				name, strings.Join(a.Choices, ", "), value))
			continue
		}
		resolved[name] = value
	}
	for name, a := range known {
		if a.Required && resolved[name] == "" {
			errs = multierr.Append(errs, fmt.Errorf("image argument %s is required", name))
		}
	}
	if errs != nil {
		return nil, types.ValidationErrorFrom(errs)
	}
	return resolved, nil
}

// Steps returns the provisioning steps for resolved arguments.
func (h *Handler) Steps(args map[string]string) []Step {
	install := "apt-get install -y"
	if args[ArgOSFamily] == "centos" {
		install = "yum install -y"
	}

	java := "openjdk-8-jdk"
	switch {
	case args[ArgJavaDistro] == "oracle-java":
		java = "oracle-java8-installer"
	case args[ArgOSFamily] == "centos":
		java = "java-1.8.0-openjdk-devel"
	}

	steps := []Step{{
		Name:    "java",
		Check:   "command -v java",
		Install: install + " " + java,
	}}

	for _, name := range h.dist.ServiceNames() {
		version := args[VersionArgName(name)]
		s := h.dist.Service(name, version)
		if s == nil {
			s = h.dist.DefaultVariant(name)
		}
		for _, np := range s.NodeProcesses {
			if np.Package == "" {
				continue
			}
			steps = append(steps, Step{
				Name:    np.Package,
				Check:   fmt.Sprintf("(dpkg -s %[1]s || rpm -q %[1]s) >/dev/null 2>&1", np.Package),
				Install: install + " " + np.Package,
			})
		}
	}
	return catalog.Unique(steps, func(s Step) string { return s.Name })
}

// Pack provisions the target machine. With testOnly set nothing is
// installed and every unsatisfied step is reported as a violation.
func (h *Handler) Pack(ctx context.Context, target *types.Instance, testOnly bool, args map[string]string) error {
	resolved, err := h.resolveArgs(args)
	if err != nil {
		return err
	}

	logger := h.logger.WithContext(ctx).With(log.Str("instance", target.ID), log.Bool("testOnly", testOnly))
	logger.Info("Packing image")

	var violations error
	for _, step := range h.Steps(resolved) {
		_, err := h.exec.Execute(ctx, target, step.Check)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if testOnly {
			violations = multierr.Append(violations,
				fmt.Errorf("image on %s is missing %s", target.ID, step.Name))
			continue
		}

		logger.Debug("Installing", log.Str("step", step.Name))
		if _, err := h.exec.Execute(ctx, target, step.Install); err != nil {
			return fmt.Errorf("failed to install %s on %s: %w", step.Name, target.ID, err)
		}
	}
	return types.ValidationErrorFrom(violations)
}

// Validate checks that every node group image is registered, then checks
// every instance of the cluster against the image requirements,
// installing what is missing unless testOnly is set.
func (h *Handler) Validate(ctx context.Context, cluster *types.Cluster, testOnly bool, args map[string]string) error {
	var violations error
	if h.registry != nil {
		for _, ng := range cluster.NodeGroups {
			imageID := ImageOf(cluster, ng)
			if imageID == "" {
				violations = multierr.Append(violations, fmt.Errorf("node group %q has no image", ng.Name))
				continue
			}
			if _, err := h.registry.Tags(ctx, imageID); err != nil {
				violations = multierr.Append(violations, fmt.Errorf("node group %q: %v", ng.Name, err))
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	for _, inst := range cluster.Instances() {
		err := h.Pack(ctx, inst, testOnly, args)
		if err == nil {
			continue
		}
		if !types.IsValidationError(err) {
			return err
		}
		violations = multierr.Append(violations, err)
	}
	return types.ValidationErrorFrom(violations)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
