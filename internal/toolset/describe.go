package toolset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// ResourceSource describes the workload behind a service name.
type ResourceSource interface {
	Describe(ctx context.Context, service, cluster string) models.ResourceDescription
}

// DescribeSimulator synthesizes a kubectl-describe-shaped view of a workload.
// It is deterministic for a given service name: services whose name contains
// "memory" present an OOMKilled restart history, everything else presents a
// healthy pod.
type DescribeSimulator struct{}

// NewDescribeSimulator constructs the deterministic resource describer.
func NewDescribeSimulator() *DescribeSimulator {
	return &DescribeSimulator{}
}

// Describe returns the synthesized resource description for the service.
func (s *DescribeSimulator) Describe(ctx context.Context, service, cluster string) models.ResourceDescription {
	_ = ctx
	now := time.Now().UTC()
	oomProne := strings.Contains(strings.ToLower(service), "memory")

	container := models.ContainerState{
		Name:         service,
		Ready:        true,
		RestartCount: 0,
		LastState:    "Completed",
		Image:        fmt.Sprintf("registry.local/%s:latest", service),
		Requests:     map[string]string{"cpu": "100m", "memory": "256Mi"},
		Limits:       map[string]string{"cpu": "500m", "memory": "512Mi"},
	}

	events := []models.ResourceEvent{
		{
			Type:    "Normal",
			Reason:  "Scheduled",
			Message: fmt.Sprintf("Successfully assigned default/%s to node-1", service),
			Count:   1,
			Age:     "10m",
			Source:  "default-scheduler",
		},
		{
			Type:    "Normal",
			Reason:  "Pulled",
			Message: fmt.Sprintf("Container image %q already present on machine", container.Image),
			Count:   1,
			Age:     "10m",
			Source:  "kubelet",
		},
		{
			Type:    "Normal",
			Reason:  "Started",
			Message: fmt.Sprintf("Started container %s", service),
			Count:   1,
			Age:     "10m",
			Source:  "kubelet",
		},
	}

	if oomProne {
		container.RestartCount = 1
		container.LastState = "OOMKilled"
		events = append(events, models.ResourceEvent{
			Type:    "Warning",
			Reason:  "OOMKilling",
			Message: fmt.Sprintf("Memory cgroup out of memory: Killed process in container %s", service),
			Count:   1,
			Age:     "2m",
			Source:  "kernel-monitor",
		})
	}

	return models.ResourceDescription{
		Kind:      "Pod",
		Name:      fmt.Sprintf("%s-7d9f8b6c5-x2k4j", service),
		Namespace: "default",
		Cluster:   cluster,
		Node:      "node-1",
		Status:    "Running",
		Conditions: []models.ResourceCondition{
			{Type: "Initialized", Status: "True", LastTransition: now.Add(-10 * time.Minute)},
			{Type: "Ready", Status: "True", LastTransition: now.Add(-9 * time.Minute)},
			{Type: "ContainersReady", Status: "True", LastTransition: now.Add(-9 * time.Minute)},
			{Type: "PodScheduled", Status: "True", LastTransition: now.Add(-10 * time.Minute)},
		},
		Containers: []models.ContainerState{container},
		Events:     events,
	}
}
