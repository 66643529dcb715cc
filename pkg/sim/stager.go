package sim

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/infra"
	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/models"
)

// Scenario building blocks used by the lesson engine

// ResetScenario clears jobs and nodes, restores the default infrastructure
// config and adds the requested default nodes and random pending jobs
func (s *Simulator) ResetScenario(nodes, jobs int) {
	s.scheduler.ResetJobs()
	s.cluster.Clear()
	s.infra.ResetConfig()

	for i := 0; i < nodes; i++ {
		s.cluster.Add(models.NewNode(fmt.Sprintf("node-%d", i), models.NewResources(8, 2, 64), "2.0"))
	}
	for i := 0; i < jobs; i++ {
		jobType, version := models.JobTypeInference, ""
		if s.rng.Intn(2) == 0 {
			jobType, version = models.JobTypeTraining, "2.0"
		}
		req := models.NewResources(1+s.rng.Intn(2), s.rng.Intn(2), 4+s.rng.Intn(5))
		s.scheduler.CreateJob(jobType, req, s.clock.Now()+50, version)
	}
	s.logger.WithField("nodes", nodes).WithField("jobs", jobs).Debug("scenario reset")
}

// OverrideConfig rewrites the infrastructure config with the override applied
func (s *Simulator) OverrideConfig(o infra.Override) error {
	spec, err := s.infra.Spec()
	if err != nil {
		return err
	}
	s.infra.SetConfig(o.Apply(spec).Render())
	return nil
}

// AddNode places a node described by a scenario
func (s *Simulator) AddNode(spec lessons.NodeSpec) error {
	shape := models.NewResources(spec.CPU, spec.GPU, spec.RAM)
	if spec.Unmanaged {
		s.cluster.Add(models.NewUnmanagedNode(spec.ID, shape, spec.Version))
	} else {
		s.cluster.Add(models.NewNode(spec.ID, shape, spec.Version))
	}
	return nil
}

// AddJob queues a job described by a scenario, submitting it when a node is named
func (s *Simulator) AddJob(spec lessons.JobSpec) error {
	jobType, ok := lessons.JobTypes[spec.Type]
	if !ok {
		return errors.Errorf("unknown job type %q", spec.Type)
	}
	job := s.scheduler.CreateJob(jobType, models.NewResources(spec.CPU, spec.GPU, spec.RAM), s.clock.Now()+spec.Deadline, spec.Version)
	if spec.Node == "" {
		return nil
	}
	return s.scheduler.Submit(job.ID, spec.Node)
}

// CompleteRunning finishes every running job at once
func (s *Simulator) CompleteRunning() error {
	for _, job := range s.scheduler.Running() {
		if err := s.scheduler.Complete(job); err != nil {
			return err
		}
	}
	return nil
}
