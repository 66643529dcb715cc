package scheduler

import (
	"github.com/psantana5/opsim/pkg/models"
	"github.com/sirupsen/logrus"
)

// Tick advances simulated time by one step. It returns false without changing
// anything while the hold predicate is true (an active lesson freezes time).
//
// Order within a tick: clock, cost, arrivals, running jobs, random events, autoscaling.
func (s *Scheduler) Tick() bool {
	if s.hold() {
		return false
	}

	now := s.clock.Advance()
	s.accrueCost()
	s.maybeGenerateJob()
	s.processRunning(now)
	s.maybeRandomEvent()
	if s.autoscaling {
		s.autoscale()
	}
	return true
}

func (s *Scheduler) accrueCost() {
	for _, node := range s.cluster.Nodes() {
		for _, kind := range models.ResourceKinds {
			s.cost += float64(node.Resources.Get(kind)) * s.config.CostRates[kind]
		}
	}
}

func (s *Scheduler) processRunning(now int) {
	for _, node := range s.cluster.Nodes() {
		running := append([]*models.Job(nil), node.RunningJobs...)
		for _, job := range running {
			job.Progress += s.config.ProgressStep
			if job.Progress >= 100 {
				if err := s.Complete(job); err != nil {
					s.logger.WithError(err).WithField("job", job.ID).Warn("complete failed")
				}
				continue
			}
			if now > job.Deadline {
				if err := s.Fail(job, "deadline missed"); err != nil {
					s.logger.WithError(err).WithField("job", job.ID).Warn("fail failed")
				}
			}
		}
	}
}

func (s *Scheduler) maybeGenerateJob() {
	if s.rng.Float64() >= s.config.JobArrivalChance {
		return
	}
	job := s.randomJob()
	s.queue = append(s.queue, job)
	s.events.Record("New job '%s' (%s) arrived.", job.ID, job.Type)
}

func (s *Scheduler) randomJob() *models.Job {
	jobType := models.JobTypeInference
	version := ""
	if s.rng.Intn(2) == 0 {
		jobType = models.JobTypeTraining
		version = s.config.TrainingVersion
	}
	req := models.NewResources(
		s.between(1, 4),
		s.between(0, 2),
		s.between(4, 32),
	)
	deadline := s.clock.Now() + s.between(s.config.MinDeadline, s.config.MaxDeadline)
	return models.NewJob(s.newID(), jobType, req, deadline, version)
}

// between returns a uniform integer in [lo, hi]
func (s *Scheduler) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Scheduler) maybeRandomEvent() {
	if s.rng.Float64() >= s.config.EventChance {
		return
	}
	if s.rng.Intn(2) == 0 {
		s.hardwareFailure()
		return
	}
	s.urgentJob()
}

// hardwareFailure removes a random node, failing everything it was running.
// The infrastructure config is left alone so the loss shows up as plan drift.
func (s *Scheduler) hardwareFailure() {
	nodes := s.cluster.Nodes()
	if len(nodes) == 0 {
		return
	}
	node := nodes[s.rng.Intn(len(nodes))]
	for _, job := range append([]*models.Job(nil), node.RunningJobs...) {
		if err := s.Fail(job, "hardware failure"); err != nil {
			s.logger.WithError(err).WithField("job", job.ID).Warn("fail failed")
		}
	}
	s.cluster.Remove(node.ID)
	s.events.Record("EVENT: Hardware failure on node '%s'!", node.ID)
	s.logger.WithField("node", node.ID).Info("hardware failure")
}

func (s *Scheduler) urgentJob() {
	job := models.NewJob(s.newID(), models.JobTypeInference, models.NewResources(2, 1, 8), s.clock.Now()+s.config.UrgentDeadline, "")
	s.queue = append([]*models.Job{job}, s.queue...)
	s.events.Record("EVENT: Urgent job '%s' arrived and jumped the queue!", job.ID)
}

// autoscale grows the cluster when the queue backs up and trims an idle node when it drains
func (s *Scheduler) autoscale() {
	if s.provisioner == nil {
		return
	}
	queued, nodes := len(s.queue), s.cluster.Len()

	switch {
	case queued > s.config.ScaleUpQueue && nodes < s.config.MaxNodes:
		step := s.config.ScaleUpStep
		if nodes+step > s.config.MaxNodes {
			step = s.config.MaxNodes - nodes
		}
		added, err := s.provisioner.Grow(step)
		if err != nil {
			s.logger.WithError(err).Warn("autoscale grow failed")
			return
		}
		if added > 0 {
			s.events.Record("AUTOSCALE: Queue length %d, added %d node(s).", queued, added)
		}

	case queued < s.config.ScaleDownQueue && nodes > s.config.MinNodes:
		idle := make([]*models.Node, 0)
		for _, node := range s.cluster.ManagedNodes() {
			if node.Idle() {
				idle = append(idle, node)
			}
		}
		if len(idle) == 0 {
			return
		}
		node := idle[s.rng.Intn(len(idle))]
		if err := s.provisioner.Shrink(node.ID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"node": node.ID}).Warn("autoscale shrink failed")
			return
		}
		s.events.Record("AUTOSCALE: Queue length %d, removed idle node '%s'.", queued, node.ID)
	}
}
