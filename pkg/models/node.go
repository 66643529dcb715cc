package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Node represents a simulated compute host in the cluster
type Node struct {
	ID          string    `json:"id"`
	Resources   Resources `json:"resources"`           // total capacity
	Available   Resources `json:"available_resources"` // unallocated capacity
	Version     string    `json:"version"`
	RunningJobs []*Job    `json:"-"` // sole record of which jobs are running here
	Managed     bool      `json:"managed"`
}

// NewNode creates a managed node with all capacity available
func NewNode(id string, shape Resources, version string) *Node {
	return &Node{
		ID:          id,
		Resources:   shape.Clone(),
		Available:   shape.Clone(),
		Version:     version,
		RunningJobs: make([]*Job, 0),
		Managed:     true,
	}
}

// NewUnmanagedNode creates a node that exists outside the reconciler's state
func NewUnmanagedNode(id string, shape Resources, version string) *Node {
	n := NewNode(id, shape, version)
	n.Managed = false
	return n
}

// CanRun reports whether the node has the right version and enough free capacity for job
func (n *Node) CanRun(job *Job) bool {
	if job.Version != "" && job.Version != n.Version {
		return false
	}
	return n.Available.Fits(job.Requirements)
}

// Mismatch explains why CanRun is false, or returns "" when the job fits
func (n *Node) Mismatch(job *Job) string {
	if job.Version != "" && job.Version != n.Version {
		return fmt.Sprintf("version mismatch %s vs %s", job.Version, n.Version)
	}
	if !n.Available.Fits(job.Requirements) {
		return "insufficient resources"
	}
	return ""
}

// Assign allocates the job's requirements and marks it running on this node.
// Callers must check CanRun first; violating that is a programming error.
func (n *Node) Assign(job *Job) error {
	if !n.CanRun(job) {
		return errors.Wrapf(ErrInvalidAssignment, "node %s cannot run job %s: %s", n.ID, job.ID, n.Mismatch(job))
	}
	if err := job.SetStatus(JobStatusRunning); err != nil {
		return errors.Wrapf(ErrInvalidAssignment, "job %s: %v", job.ID, err)
	}

	for k, v := range job.Requirements {
		n.Available[k] -= v
	}
	n.RunningJobs = append(n.RunningJobs, job)
	job.AssignedNode = n.ID
	return nil
}

// Release returns the job's requirements to the pool. It is a no-op when the job is not running here.
func (n *Node) Release(job *Job) bool {
	for i, running := range n.RunningJobs {
		if running != job {
			continue
		}
		n.RunningJobs = append(n.RunningJobs[:i], n.RunningJobs[i+1:]...)
		for k, v := range job.Requirements {
			n.Available[k] += v
		}
		return true
	}
	return false
}

// HasJob reports whether a job with the given id runs on the node
func (n *Node) HasJob(jobID string) bool {
	for _, job := range n.RunningJobs {
		if job.ID == jobID {
			return true
		}
	}
	return false
}

// Idle reports whether no job runs on the node
func (n *Node) Idle() bool {
	return len(n.RunningJobs) == 0
}

// Allocated sums the requirements of every running job
func (n *Node) Allocated() Resources {
	used := NewResources(0, 0, 0)
	for _, job := range n.RunningJobs {
		for k, v := range job.Requirements {
			used[k] += v
		}
	}
	return used
}

// Resize replaces the node's total capacity. The new shape must still cover
// what running jobs hold; availability is recomputed from the allocation.
func (n *Node) Resize(shape Resources) error {
	used := n.Allocated()
	if !shape.Fits(used) {
		return errors.Wrapf(ErrResourceBusy, "node %s: running jobs hold %s, new shape is %s", n.ID, used, shape)
	}

	n.Resources = shape.Clone()
	n.Available = make(Resources, len(shape))
	for _, k := range ResourceKinds {
		n.Available[k] = shape[k] - used[k]
	}
	return nil
}

// CheckInvariant verifies 0 <= available <= total and total-available == allocated for every kind
func (n *Node) CheckInvariant() error {
	used := n.Allocated()
	for _, k := range ResourceKinds {
		total, avail := n.Resources[k], n.Available[k]
		if avail < 0 || avail > total {
			return errors.Errorf("node %s: %s available %d outside [0, %d]", n.ID, k, avail, total)
		}
		if total-avail != used[k] {
			return errors.Errorf("node %s: %s allocated %d but running jobs require %d", n.ID, k, total-avail, used[k])
		}
	}
	return nil
}
