package images

import (
	"context"
	"fmt"

	"github.com/rzbill/herd/pkg/types"
)

// Registry answers which tags an image carries.
type Registry interface {
	Tags(ctx context.Context, imageID string) ([]string, error)
}

// StaticRegistry is a Registry backed by a fixed map of image ID to tags.
type StaticRegistry map[string][]string

// Tags implements Registry.
func (r StaticRegistry) Tags(_ context.Context, imageID string) ([]string, error) {
	tags, ok := r[imageID]
	if !ok {
		return nil, fmt.Errorf("image %q is not registered", imageID)
	}
	return tags, nil
}

// HasTag reports whether the image carries tag.
func HasTag(ctx context.Context, r Registry, imageID, tag string) (bool, error) {
	tags, err := r.Tags(ctx, imageID)
	if err != nil {
		return false, err
	}
	for _, t := range tags {
		if t == tag {
			return true, nil
		}
	}
	return false, nil
}

// ImageOf returns the image a node group boots from, falling back to the
// cluster default.
func ImageOf(c *types.Cluster, ng *types.NodeGroup) string {
	if ng.ImageID != "" {
		return ng.ImageID
	}
	return c.DefaultImageID
}
