package orchestrator

import (
	"context"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/edp"
	"github.com/rzbill/herd/pkg/types"
)

// read builds a context for c under the cluster's shared lock. Queries on
// one cluster run concurrently with each other but never alongside a
// lifecycle operation. A nil cluster yields a catalog-only context.
func (o *Orchestrator) read(ctx context.Context, c *types.Cluster, fn func(cc *cluster.Context) error) error {
	if c != nil {
		unlock, err := o.locks.rlock(ctx, c.ID)
		if err != nil {
			return err
		}
		defer unlock()
	}
	return fn(o.builder.Build(c))
}

// Services returns every catalog entry, all versions included.
func (o *Orchestrator) Services() []*catalog.Service {
	return o.builder.Distribution().Services
}

// RequiredServices returns the services a valid cluster must run, in the
// versions c selects.
func (o *Orchestrator) RequiredServices(ctx context.Context, c *types.Cluster) ([]*catalog.Service, error) {
	var out []*catalog.Service
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = cc.RequiredServices()
		return nil
	})
	return out, err
}

// ClusterServices returns the services c actually runs.
func (o *Orchestrator) ClusterServices(ctx context.Context, c *types.Cluster) ([]*catalog.Service, error) {
	var out []*catalog.Service
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = cc.ClusterServices()
		return nil
	})
	return out, err
}

// NodeProcesses maps service names to their node process names.
func (o *Orchestrator) NodeProcesses(ctx context.Context, c *types.Cluster) (map[string][]string, error) {
	var out map[string][]string
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = cc.NodeProcesses()
		return nil
	})
	return out, err
}

// Configs returns every configuration option the catalog exposes.
func (o *Orchestrator) Configs(ctx context.Context, c *types.Cluster) ([]catalog.ConfigOption, error) {
	var out []catalog.ConfigOption
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = cc.Configs()
		return nil
	})
	return out, err
}

// ConfigsDict maps service names to option defaults.
func (o *Orchestrator) ConfigsDict(ctx context.Context, c *types.Cluster) (map[string]map[string]string, error) {
	var out map[string]map[string]string
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = cc.ConfigsDict()
		return nil
	})
	return out, err
}

// GetOpenPorts returns the ports opened by the node processes ng hosts,
// without duplicates, in order of first occurrence over the catalog.
func (o *Orchestrator) GetOpenPorts(ctx context.Context, ng *types.NodeGroup) ([]int, error) {
	if ng.ClusterID != "" {
		unlock, err := o.locks.rlock(ctx, ng.ClusterID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	ports := make([]int, 0)
	for _, s := range o.builder.Distribution().Services {
		for _, np := range s.NodeProcesses {
			if ng.HasProcess(np.UIName) {
				ports = append(ports, np.OpenPorts...)
			}
		}
	}
	return catalog.Unique(ports, func(p int) int { return p }), nil
}

// GetClusterChecks returns the health check descriptors of c. Nothing is
// executed.
func (o *Orchestrator) GetClusterChecks(ctx context.Context, c *types.Cluster) ([]types.CheckDescriptor, error) {
	var out []types.CheckDescriptor
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		out = o.checker.GetChecks(cc)
		return nil
	})
	return out, err
}

// JobTypes lists the job types the cluster can run.
func (o *Orchestrator) JobTypes() []types.JobType {
	return o.jobs.SupportedJobTypes()
}

// JobConfigHints returns configuration suggestions for a job type.
func (o *Orchestrator) JobConfigHints(jobType types.JobType) (types.ConfigHints, error) {
	return o.jobs.ConfigHints(jobType)
}

// ResolveJobEngine returns the engine able to run jobType on c, or
// types.ErrUnsupportedJobType.
func (o *Orchestrator) ResolveJobEngine(ctx context.Context, c *types.Cluster, jobType types.JobType) (*edp.Engine, error) {
	var engine *edp.Engine
	err := o.read(ctx, c, func(cc *cluster.Context) error {
		var err error
		engine, err = o.jobs.Resolve(cc, jobType)
		return err
	})
	return engine, err
}

// HasImageHandler reports whether the image operations are available.
func (o *Orchestrator) HasImageHandler() bool {
	return o.images != nil
}

// ImageArguments returns the arguments image packing accepts, or
// types.ErrCapabilityUnavailable without an image handler.
func (o *Orchestrator) ImageArguments() ([]types.ImageArgument, error) {
	if o.images == nil {
		return nil, types.ErrCapabilityUnavailable
	}
	return o.images.Arguments(), nil
}

// PackImage prepares target as a cluster image, or only verifies it when
// testOnly is set.
func (o *Orchestrator) PackImage(ctx context.Context, target *types.Instance, testOnly bool, args map[string]string) error {
	if o.images == nil {
		return types.ErrCapabilityUnavailable
	}
	return o.images.Pack(ctx, target, testOnly, args)
}

// ValidateImages checks the images of every node group of c.
func (o *Orchestrator) ValidateImages(ctx context.Context, c *types.Cluster, testOnly bool, args map[string]string) error {
	if o.images == nil {
		return types.ErrCapabilityUnavailable
	}
	if c == nil {
		return errNoCluster("validate_images")
	}
	return o.read(ctx, c, func(*cluster.Context) error {
		return o.images.Validate(ctx, c, testOnly, args)
	})
}
