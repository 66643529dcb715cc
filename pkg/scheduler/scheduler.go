package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/events"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/sirupsen/logrus"
)

// Provisioner grows and shrinks the cluster on behalf of the autoscaler
type Provisioner interface {
	Grow(n int) (int, error)
	Shrink(nodeID string) error
}

// Scheduler owns the job lifecycle: the pending queue, job history and the periodic tick
type Scheduler struct {
	config      *Config
	clock       *models.Clock
	cluster     *models.Cluster
	events      *events.Log
	rng         *rand.Rand
	newID       func() string
	provisioner Provisioner
	hold        func() bool
	logger      *logrus.Entry

	queue     []*models.Job
	completed []*models.Job
	failed    []*models.Job

	score       int
	cost        float64
	autoscaling bool
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithRand sets the random source used for arrivals and events
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithIDGenerator sets the job id generator
func WithIDGenerator(gen func() string) Option {
	return func(s *Scheduler) { s.newID = gen }
}

// WithProvisioner wires the autoscaler to the reconciler
func WithProvisioner(p Provisioner) Option {
	return func(s *Scheduler) { s.provisioner = p }
}

// WithHold sets a predicate that freezes Tick while it returns true
func WithHold(hold func() bool) Option {
	return func(s *Scheduler) { s.hold = hold }
}

// WithLogger sets the component logger
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler over cluster
func New(clock *models.Clock, cluster *models.Cluster, log *events.Log, config *Config, opts ...Option) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Scheduler{
		config:    config,
		clock:     clock,
		cluster:   cluster,
		events:    log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:     shortUUID,
		hold:      func() bool { return false },
		queue:     make([]*models.Job, 0),
		completed: make([]*models.Job, 0),
		failed:    make([]*models.Job, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Component(nil, "scheduler")
	}
	return s
}

func shortUUID() string {
	return uuid.NewString()[:8]
}

// CreateJob builds a pending job with a fresh id and appends it to the queue
func (s *Scheduler) CreateJob(jobType models.JobType, req models.Resources, deadline int, version string) *models.Job {
	job := models.NewJob(s.newID(), jobType, req, deadline, version)
	s.queue = append(s.queue, job)
	return job
}

// Submit places a pending job on a node. A job that does not fit is failed and
// the returned error wraps models.ErrResourceConflict with the reason.
func (s *Scheduler) Submit(jobID, nodeID string) error {
	job := s.GetJob(jobID)
	if job == nil {
		return errors.Wrapf(models.ErrNotFound, "job '%s'", jobID)
	}
	node, ok := s.cluster.Get(nodeID)
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "node '%s'", nodeID)
	}
	if job.Status != models.JobStatusPending {
		return errors.Wrapf(models.ErrInvalidState, "job '%s' is %s, not pending", jobID, job.Status)
	}

	if reason := node.Mismatch(job); reason != "" {
		s.Fail(job, reason)
		return errors.Wrapf(models.ErrResourceConflict, "job '%s' rejected by node '%s': %s", jobID, nodeID, reason)
	}

	if err := node.Assign(job); err != nil {
		return err
	}
	s.removeFromQueue(job)
	job.SubmissionTime = models.IntPtr(s.clock.Now())

	s.events.Record("Job '%s' submitted to node '%s'.", jobID, nodeID)
	s.logger.WithFields(logrus.Fields{"job": jobID, "node": nodeID}).Debug("job submitted")
	return nil
}

// Cancel stops a running job and returns it to the back of the queue
func (s *Scheduler) Cancel(jobID string) error {
	job := s.GetJob(jobID)
	if job == nil {
		return errors.Wrapf(models.ErrNotFound, "job '%s'", jobID)
	}
	if job.Status != models.JobStatusRunning {
		return errors.Wrapf(models.ErrInvalidState, "job '%s' is %s, not running", jobID, job.Status)
	}
	node, ok := s.cluster.Get(job.AssignedNode)
	if !ok {
		return errors.Wrapf(models.ErrInvalidState, "job '%s' references missing node '%s'", jobID, job.AssignedNode)
	}

	node.Release(job)
	if err := job.SetStatus(models.JobStatusPending); err != nil {
		return err
	}
	job.AssignedNode = ""
	job.Progress = 0
	job.SubmissionTime = nil
	s.queue = append(s.queue, job)

	s.events.Record("Job '%s' cancelled and returned to queue.", jobID)
	s.logger.WithField("job", jobID).Debug("job cancelled")
	return nil
}

// Complete finishes a running job, releasing its node and awarding score
func (s *Scheduler) Complete(job *models.Job) error {
	if err := job.SetStatus(models.JobStatusCompleted); err != nil {
		return err
	}
	nodeID := job.AssignedNode
	if node, ok := s.cluster.Get(nodeID); ok {
		node.Release(job)
	}
	job.Progress = 100
	job.CompletionTime = models.IntPtr(s.clock.Now())
	s.completed = append(s.completed, job)
	s.score += s.config.CompletionReward

	s.events.Record("Job '%s' completed successfully on node '%s'.", job.ID, nodeID)
	s.logger.WithFields(logrus.Fields{"job": job.ID, "node": nodeID}).Debug("job completed")
	return nil
}

// Fail moves a pending or running job to the failed history with reason
func (s *Scheduler) Fail(job *models.Job, reason string) error {
	if err := job.SetStatus(models.JobStatusFailed); err != nil {
		return err
	}
	if node, ok := s.cluster.Get(job.AssignedNode); ok {
		node.Release(job)
	}
	s.removeFromQueue(job)

	job.ErrorMessage = reason
	s.failed = append(s.failed, job)
	s.score -= s.config.FailurePenalty

	s.events.Record("Job '%s' failed: %s", job.ID, reason)
	s.logger.WithFields(logrus.Fields{"job": job.ID, "reason": reason}).Debug("job failed")
	return nil
}

// ConvertToOnnx derives an optimized pending job from a completed training job.
// The new job needs half the resources and is due OnnxDeadline ticks from now.
func (s *Scheduler) ConvertToOnnx(jobID string) (*models.Job, error) {
	src := s.GetJob(jobID)
	if src == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "job '%s'", jobID)
	}
	if src.Type != models.JobTypeTraining || src.Status != models.JobStatusCompleted {
		return nil, errors.Wrapf(models.ErrInvalidState, "job '%s' must be a completed %s job", jobID, models.JobTypeTraining)
	}

	job := s.CreateJob(models.JobTypeOptimized, src.Requirements.Half(), s.clock.Now()+s.config.OnnxDeadline, "")
	s.events.Record("Job '%s' converted to ONNX job '%s'.", src.ID, job.ID)
	return job, nil
}

// GetJob finds a job by id in the queue, the histories and on every node
func (s *Scheduler) GetJob(id string) *models.Job {
	for _, list := range [][]*models.Job{s.queue, s.completed, s.failed} {
		for _, job := range list {
			if job.ID == id {
				return job
			}
		}
	}
	for _, node := range s.cluster.Nodes() {
		for _, job := range node.RunningJobs {
			if job.ID == id {
				return job
			}
		}
	}
	return nil
}

// Pending returns the queue in order
func (s *Scheduler) Pending() []*models.Job {
	return append([]*models.Job(nil), s.queue...)
}

// CompletedJobs returns the completed history, oldest first
func (s *Scheduler) CompletedJobs() []*models.Job {
	return append([]*models.Job(nil), s.completed...)
}

// FailedJobs returns the failed history, oldest first
func (s *Scheduler) FailedJobs() []*models.Job {
	return append([]*models.Job(nil), s.failed...)
}

// Running returns every running job, grouped by node in cluster order
func (s *Scheduler) Running() []*models.Job {
	out := make([]*models.Job, 0)
	for _, node := range s.cluster.Nodes() {
		out = append(out, node.RunningJobs...)
	}
	return out
}

// AllJobs returns pending, completed, failed and running jobs
func (s *Scheduler) AllJobs() []*models.Job {
	out := make([]*models.Job, 0, len(s.queue)+len(s.completed)+len(s.failed))
	out = append(out, s.queue...)
	out = append(out, s.completed...)
	out = append(out, s.failed...)
	return append(out, s.Running()...)
}

// Score returns the current score
func (s *Scheduler) Score() int { return s.score }

// Cost returns the accrued cost
func (s *Scheduler) Cost() float64 { return s.cost }

// Autoscaling reports whether autoscaling is enabled
func (s *Scheduler) Autoscaling() bool { return s.autoscaling }

// SetAutoscaling toggles autoscaling
func (s *Scheduler) SetAutoscaling(enabled bool) {
	s.autoscaling = enabled
	s.logger.WithField("enabled", enabled).Debug("autoscaling toggled")
}

// ResetJobs drops the queue and history; used when a scenario is staged
func (s *Scheduler) ResetJobs() {
	s.queue = s.queue[:0]
	s.completed = s.completed[:0]
	s.failed = s.failed[:0]
}

// Restore loads saved totals and jobs. Pending, completed and failed jobs are
// sorted into their collections by status; running jobs must already be on their nodes.
// queueOrder keeps the saved queue order; jobs missing from it follow, ordered by deadline.
func (s *Scheduler) Restore(score int, cost float64, autoscaling bool, jobs map[string]*models.Job, queueOrder []string) {
	s.score = score
	s.cost = cost
	s.autoscaling = autoscaling
	s.ResetJobs()

	rank := make(map[string]int, len(queueOrder))
	for i, id := range queueOrder {
		rank[id] = i
	}
	ids := make([]string, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := jobs[ids[i]], jobs[ids[j]]
		ra, okA := rank[a.ID]
		rb, okB := rank[b.ID]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		case a.Deadline != b.Deadline:
			return a.Deadline < b.Deadline
		default:
			return a.ID < b.ID
		}
	})

	for _, id := range ids {
		job := jobs[id]
		switch job.Status {
		case models.JobStatusPending:
			s.queue = append(s.queue, job)
		case models.JobStatusCompleted:
			s.completed = append(s.completed, job)
		case models.JobStatusFailed:
			s.failed = append(s.failed, job)
		}
	}
	sortByTime(s.completed, func(j *models.Job) *int { return j.CompletionTime })
	sortByTime(s.failed, func(j *models.Job) *int { return j.SubmissionTime })
}

func sortByTime(jobs []*models.Job, key func(*models.Job) *int) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := key(jobs[i]), key(jobs[j])
		if a == nil || b == nil {
			return a != nil
		}
		return *a < *b
	})
}

func (s *Scheduler) removeFromQueue(job *models.Job) {
	for i, queued := range s.queue {
		if queued == job {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Summary aggregates the headline numbers of a session
type Summary struct {
	Time              int
	Completed         int
	Failed            int
	AvgCompletionTime float64
	TotalCost         float64
	Score             int
}

// Metrics computes the session summary
func (s *Scheduler) Metrics() Summary {
	var total, counted int
	for _, job := range s.completed {
		if job.SubmissionTime != nil && job.CompletionTime != nil {
			total += *job.CompletionTime - *job.SubmissionTime
			counted++
		}
	}
	avg := 0.0
	if counted > 0 {
		avg = float64(total) / float64(counted)
	}
	return Summary{
		Time:              s.clock.Now(),
		Completed:         len(s.completed),
		Failed:            len(s.failed),
		AvgCompletionTime: avg,
		TotalCost:         s.cost,
		Score:             s.score,
	}
}
