package validation

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/images"
)

// Rule checks one constraint against a context. A rule may report several
// violations at once by combining them with multierr.
type Rule func(ctx context.Context, cc *cluster.Context) error

// AtLeast requires at least count instances of process.
func AtLeast(process string, count int) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		if actual := cc.InstancesCount(process); actual < count {
			return fmt.Errorf("cluster should contain at least %d %s component(s), actual %s count is %d",
				count, process, process, actual)
		}
		return nil
	}
}

// AtMost allows at most count instances of process.
func AtMost(process string, count int) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		if actual := cc.InstancesCount(process); actual > count {
			return fmt.Errorf("cluster should contain at most %d %s component(s), actual %s count is %d",
				count, process, process, actual)
		}
		return nil
	}
}

// Exactly requires exactly count instances of process.
func Exactly(process string, count int) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		if actual := cc.InstancesCount(process); actual != count {
			return fmt.Errorf("cluster should contain exactly %d %s component(s), actual %s count is %d",
				count, process, process, actual)
		}
		return nil
	}
}

// OddCount rejects an even number of process instances above one.
func OddCount(process string) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		if actual := cc.InstancesCount(process); actual > 1 && actual%2 == 0 {
			return fmt.Errorf("cluster should contain an odd number of %s, but %d found", process, actual)
		}
		return nil
	}
}

// EachNodeHas requires every node group to host process.
func EachNodeHas(process string) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		var errs error
		for _, ng := range cc.NodeGroups() {
			if !ng.HasProcess(process) {
				errs = multierr.Append(errs, fmt.Errorf("node group %q is missing component %s", ng.Name, process))
			}
		}
		return errs
	}
}

// OnSameNode requires every node group hosting process to host dependency too.
func OnSameNode(process, dependency string) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		var errs error
		for _, ng := range cc.NodeGroups(process) {
			if !ng.HasProcess(dependency) {
				errs = multierr.Append(errs, fmt.Errorf("node group %q is missing component %s, required by %s",
					ng.Name, dependency, process))
			}
		}
		return errs
	}
}

// DependsOn requires the cluster to run service, pinned to version when set.
func DependsOn(service, version, requiredBy string) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		if cc.IsPresent(service, version) {
			return nil
		}
		name := service
		if version != "" {
			name += " " + version
		}
		return fmt.Errorf("%s service is required by %s", name, requiredBy)
	}
}

// ClientConflict rejects node groups hosting client alongside any of components.
func ClientConflict(client string, components []string) Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		var errs error
		for _, ng := range cc.NodeGroups(client) {
			for _, c := range components {
				if ng.HasProcess(c) {
					errs = multierr.Append(errs, fmt.Errorf("%s cannot be installed alongside %s package on node group %q",
						c, client, ng.Name))
				}
			}
		}
		return errs
	}
}

// RequiredOS requires images of node groups hosting the service's
// processes to carry the os tag. A nil registry knows no images.
func RequiredOS(registry images.Registry, service *catalog.Service, os string) Rule {
	if registry == nil {
		registry = images.StaticRegistry{}
	}
	return func(ctx context.Context, cc *cluster.Context) error {
		var errs error
		for _, ng := range cc.NodeGroups(service.ProcessNames()...) {
			imageID := images.ImageOf(cc.Cluster(), ng)
			if imageID == "" {
				errs = multierr.Append(errs, fmt.Errorf("service %s requires %s OS, node group %q has no image",
					service.UIName, os, ng.Name))
				continue
			}
			ok, err := images.HasTag(ctx, registry, imageID, os)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cannot verify image of node group %q: %v", ng.Name, err))
				continue
			}
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("service %s requires %s OS, image %s of node group %q is not tagged %q",
					service.UIName, os, imageID, ng.Name, os))
			}
		}
		return errs
	}
}

// Compile turns a catalog rule spec owned by service into a Rule.
func Compile(spec catalog.RuleSpec, service *catalog.Service, registry images.Registry) (Rule, error) {
	if err := spec.Check(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case catalog.RuleAtLeast:
		return AtLeast(spec.Process, spec.Count), nil
	case catalog.RuleAtMost:
		return AtMost(spec.Process, spec.Count), nil
	case catalog.RuleExactly:
		return Exactly(spec.Process, spec.Count), nil
	case catalog.RuleOddCount:
		return OddCount(spec.Process), nil
	case catalog.RuleEachNodeHas:
		return EachNodeHas(spec.Process), nil
	case catalog.RuleOnSameNode:
		return OnSameNode(spec.Process, spec.Dependency), nil
	case catalog.RuleDependsOn:
		return DependsOn(spec.Service, spec.Version, service.UIName), nil
	case catalog.RuleClientConflict:
		return ClientConflict(spec.Client, spec.Components), nil
	case catalog.RuleRequiredOS:
		return RequiredOS(registry, service, spec.OS), nil
	}
	return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
}
