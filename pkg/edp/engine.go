// Package edp resolves data-processing job types to the engine that runs
// them on a cluster.
package edp

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

const (
	// OozieProcess is the node process hosting the workflow server.
	OozieProcess = "Oozie"

	// OoziePort is the workflow server's HTTP port.
	OoziePort = 11000

	// WorkflowDir is the filesystem root job workflows are uploaded under.
	WorkflowDir = "/user/mapr/herd/workflows"
)

// ErrNoEngineHost is returned when the cluster runs no Oozie server.
var ErrNoEngineHost = errors.New("cluster has no Oozie server")

var supportedJobTypes = []types.JobType{
	types.JobTypeHive,
	types.JobTypeJava,
	types.JobTypeMapReduce,
	types.JobTypeMapReduceStreaming,
	types.JobTypePig,
	types.JobTypeShell,
	types.JobTypeSpark,
}

// Engine is an Oozie job engine bound to one cluster.
type Engine struct {
	ClusterID   string        `json:"clusterId"`
	JobType     types.JobType `json:"jobType"`
	Host        string        `json:"host"`
	Port        int           `json:"port"`
	WorkflowDir string        `json:"workflowDir"`
}

// URL returns the base URL of the Oozie server.
func (e *Engine) URL() string {
	return fmt.Sprintf("http://%s/oozie", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

// NameNodeURI returns the filesystem URI workflows reference.
func (e *Engine) NameNodeURI() string {
	return "maprfs:///"
}

// WorkflowPath returns where the workflow of a job is uploaded.
func (e *Engine) WorkflowPath(jobID string) string {
	return fmt.Sprintf("%s/%s/%s", e.WorkflowDir, e.ClusterID, jobID)
}

// Resolver maps job types to Oozie engines.
type Resolver struct {
	logger log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Resolver{logger: logger.WithComponent("edp")}
}

// SupportedJobTypes lists the job types the engine can run.
func (r *Resolver) SupportedJobTypes() []types.JobType {
	return append([]types.JobType(nil), supportedJobTypes...)
}

// Supports reports whether jobType can be run.
func (r *Resolver) Supports(jobType types.JobType) bool {
	for _, t := range supportedJobTypes {
		if t == jobType {
			return true
		}
	}
	return false
}

// Resolve returns an engine bound to the cluster's Oozie server.
func (r *Resolver) Resolve(cc *cluster.Context, jobType types.JobType) (*Engine, error) {
	if !r.Supports(jobType) {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedJobType, jobType)
	}

	hosts := cc.InstancesOf(OozieProcess)
	if len(hosts) == 0 {
		return nil, ErrNoEngineHost
	}

	e := &Engine{
		ClusterID:   cc.Cluster().ID,
		JobType:     jobType,
		Host:        hosts[0].Address(),
		Port:        OoziePort,
		WorkflowDir: WorkflowDir,
	}
	r.logger.Debug("Resolved job engine",
		log.Cluster(e.ClusterID), log.Str("job_type", string(jobType)), log.Str("url", e.URL()))
	return e, nil
}

// ConfigHints returns the configuration suggestions for jobType without
// binding to a cluster.
func (r *Resolver) ConfigHints(jobType types.JobType) (types.ConfigHints, error) {
	if !r.Supports(jobType) {
		return types.ConfigHints{}, fmt.Errorf("%w: %s", types.ErrUnsupportedJobType, jobType)
	}
	return configHints(jobType), nil
}
