// Package utils holds argument parsing shared by the CLI commands.
package utils

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/herd/pkg/types"
)

// ParseKeyValues parses a "key=value,key=value" string into a map.
// Example: "java_version=8,test=true" -> {"java_version": "8", "test": "true"}
func ParseKeyValues(s string) (map[string]string, error) {
	result := make(map[string]string)
	if s == "" {
		return result, nil
	}

	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid format, expected key=value: %s", pair)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in: %s", pair)
		}
		if strings.Contains(value, "=") {
			return nil, fmt.Errorf("invalid value format, contains additional equals sign: %s", value)
		}
		result[key] = value
	}

	return result, nil
}

// ParseCounts parses "group=count" pairs into node group counts.
func ParseCounts(s string) (map[string]int, error) {
	kv, err := ParseKeyValues(s)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(kv))
	for k, v := range kv {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count for %s: %q", k, v)
		}
		counts[k] = n
	}
	return counts, nil
}

// LoadCluster reads a cluster record from a YAML file. Instances inherit
// their node group ID when the file leaves it out.
func LoadCluster(path string) (*types.Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster file: %w", err)
	}

	var c types.Cluster
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cluster file %s: %w", path, err)
	}
	for _, ng := range c.NodeGroups {
		if ng.ClusterID == "" {
			ng.ClusterID = c.ID
		}
		for _, inst := range ng.Instances {
			if inst.NodeGroupID == "" {
				inst.NodeGroupID = ng.ID
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SelectInstances returns the instances of c with the given IDs, in the
// order given. Unknown IDs are an error.
func SelectInstances(c *types.Cluster, ids []string) ([]*types.Instance, error) {
	byID := make(map[string]*types.Instance)
	for _, inst := range c.Instances() {
		byID[inst.ID] = inst
	}

	var missing []string
	out := make([]*types.Instance, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, inst)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown instances in cluster %s: %s", c.ID, strings.Join(missing, ", "))
	}
	return out, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
