// Package cluster implements the ClusterMutator and WorkloadClassifier
// contracts against a Kubernetes cluster via client-go.
package cluster

import "context"

// Node describes one cluster node's scheduling-relevant attributes.
type Node struct {
	Name        string
	Labels      map[string]string
	Allocatable map[string]string
	Capacity    map[string]string
}

// ResourceSpec is the current or desired resource configuration of a
// workload.
type ResourceSpec struct {
	CPU            float64
	Memory         string // e.g. "512Mi"
	Replicas       int
	NodeAffinities map[string][]string // zone -> hostnames
}

// Mutator reads the current resource spec of a workload and writes a new
// one.
type Mutator interface {
	GetNodes(ctx context.Context) ([]Node, error)
	GetCurrentResources(ctx context.Context, appName string) (*ResourceSpec, error)
	ApplyResourceAction(ctx context.Context, appName string, cpu float64, memory string, replicas int, nodeAffinities map[string][]string) (bool, error)
}

// Classifier identifies a workload's type so the orchestrator can choose
// the appropriate performance signal.
type Classifier interface {
	IdentifyAppType(ctx context.Context, appName string) (string, error)
	Characteristics(ctx context.Context, appName string) (Characteristics, error)
}

// Characteristics are supplemental, log-only facts about a workload; they
// never drive bandit control flow.
type Characteristics struct {
	AppType          string
	Stateful         bool
	Recurring        bool
	NetworkIntensive bool
	MemoryIntensive  bool
	CPUIntensive     bool
}

const (
	AppTypeBatch        = "batch"
	AppTypeMicroservice = "microservice"
)
