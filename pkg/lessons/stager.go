package lessons

import (
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/infra"
	"github.com/psantana5/opsim/pkg/models"
)

// JobTypes maps the scenario job type names onto job types
var JobTypes = map[string]models.JobType{
	"training":  models.JobTypeTraining,
	"inference": models.JobTypeInference,
	"onnx":      models.JobTypeOptimized,
}

// Stager builds lesson scenarios on the simulator
type Stager interface {
	// ResetScenario clears jobs and nodes, restores the default infrastructure
	// config, then adds n default nodes and j random pending jobs
	ResetScenario(nodes, jobs int)
	OverrideConfig(o infra.Override) error
	AddNode(spec NodeSpec) error
	AddJob(spec JobSpec) error
	// CompleteRunning completes every running job immediately
	CompleteRunning() error
}

func stage(s Stager, sc *Scenario) error {
	if sc == nil {
		return nil
	}
	if sc.Reset {
		s.ResetScenario(sc.Nodes, sc.Jobs)
	}
	if sc.Config != nil {
		if err := s.OverrideConfig(*sc.Config); err != nil {
			return errors.Wrap(err, "override config")
		}
	}
	for _, n := range sc.AddNodes {
		if err := s.AddNode(n); err != nil {
			return errors.Wrapf(err, "add node %s", n.ID)
		}
	}
	for _, j := range sc.AddJobs {
		if err := s.AddJob(j); err != nil {
			return errors.Wrap(err, "add job")
		}
	}
	if sc.CompleteRunning {
		if err := s.CompleteRunning(); err != nil {
			return errors.Wrap(err, "complete running jobs")
		}
	}
	return nil
}
