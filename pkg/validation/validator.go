// Package validation checks cluster topologies against the service
// catalog before any mutation happens.
package validation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/images"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// Validator checks a cluster context and reports every violated
// constraint in one *types.ValidationError.
type Validator struct {
	registry images.Registry
	logger   log.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithRegistry lets required_os rules look up image tags.
func WithRegistry(r images.Registry) Option {
	return func(v *Validator) {
		v.registry = r
	}
}

// NewValidator creates a validator.
func NewValidator(logger log.Logger, opts ...Option) *Validator {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	v := &Validator{logger: logger.WithComponent("validator")}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks that required services are present, every node group
// has storage, and every rule of every cluster service holds.
func (v *Validator) Validate(ctx context.Context, cc *cluster.Context) error {
	var errs error

	for _, s := range cc.RequiredServices() {
		if !cc.IsPresent(s.UIName, "") {
			errs = multierr.Append(errs, fmt.Errorf("%s service is required", s.UIName))
		}
	}

	errs = multierr.Append(errs, HasVolumes()(ctx, cc))

	for _, s := range cc.ClusterServices() {
		for _, spec := range s.Rules {
			rule, err := Compile(spec, s, v.registry)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("service %s: %w", s, err))
				continue
			}
			errs = multierr.Append(errs, rule(ctx, cc))
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if errs != nil {
		verr := types.ValidationErrorFrom(errs)
		v.logger.Debug("Cluster failed validation",
			log.Cluster(cc.Cluster().ID), log.Int("violations", len(multierr.Errors(errs))))
		return verr
	}
	return nil
}

// ValidateScaling validates the topology that would result from resizing
// node groups. existing and additional map node group IDs to their
// proposed instance counts; groups scaled to zero drop out.
func (v *Validator) ValidateScaling(ctx context.Context, cc *cluster.Context, existing, additional map[string]int) error {
	counts := make(map[string]int, len(existing)+len(additional))
	for id, n := range existing {
		counts[id] = n
	}
	for id, n := range additional {
		counts[id] = n
	}

	fake := cc.Cluster().Clone()
	var errs error
	groups := make([]*types.NodeGroup, 0, len(fake.NodeGroups))
	for _, ng := range fake.NodeGroups {
		n, ok := counts[ng.ID]
		if !ok {
			groups = append(groups, ng)
			continue
		}
		delete(counts, ng.ID)
		if n > 0 {
			ng.Count = n
			groups = append(groups, ng)
		}
	}
	fake.NodeGroups = groups

	unknown := make([]string, 0, len(counts))
	for id := range counts {
		unknown = append(unknown, id)
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		errs = multierr.Append(errs, fmt.Errorf("node group %s is not part of cluster %s", id, fake.ID))
	}

	fcc := cluster.NewBuilder(cc.Distribution(), v.logger).Build(fake)
	errs = multierr.Append(errs, v.Validate(ctx, fcc))
	if err := ctx.Err(); err != nil {
		return err
	}
	return types.ValidationErrorFrom(errs)
}

// HasVolumes requires every node group to have a volume or an ephemeral drive.
func HasVolumes() Rule {
	return func(_ context.Context, cc *cluster.Context) error {
		var errs error
		for _, ng := range cc.NodeGroups() {
			if ng.VolumesPerNode == 0 && ng.EphemeralDiskGB == 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s must have at least 1 volume or ephemeral drive", ng.Name))
			}
		}
		return errs
	}
}
