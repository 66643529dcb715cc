// Package sim assembles the cluster, scheduler, reconciler, event log and
// lesson engine into one simulation and knows how to snapshot it.
package sim

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/events"
	"github.com/psantana5/opsim/pkg/infra"
	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/psantana5/opsim/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

// Options configures a Simulator
type Options struct {
	Seed        int64 // 0 seeds from the wall clock
	Scheduler   *scheduler.Config
	Registry    *lessons.Registry
	Logger      *logrus.Logger
	IDGenerator func() string
	Autoscaling bool
	Empty       bool // start with no nodes or jobs instead of the default scenario
}

// Simulator owns every piece of simulation state
type Simulator struct {
	clock      *models.Clock
	cluster    *models.Cluster
	events     *events.Log
	scheduler  *scheduler.Scheduler
	infra      *infra.Reconciler
	lessons    *lessons.Engine
	monitoring string
	rng        *rand.Rand
	logger     *logrus.Entry
}

// New builds a simulator
func New(opts Options) (*Simulator, error) {
	registry := opts.Registry
	if registry == nil {
		var err error
		if registry, err = lessons.LoadRegistry(); err != nil {
			return nil, errors.Wrap(err, "load lessons")
		}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		clock:      models.NewClock(),
		cluster:    models.NewCluster(),
		monitoring: DefaultMonitoringConfig,
		rng:        rand.New(rand.NewSource(seed)),
		logger:     logging.Component(opts.Logger, "sim"),
	}
	s.events = events.NewLog(s.clock, logging.Component(opts.Logger, "events"))
	s.infra = infra.NewReconciler(s.cluster, s.events, logging.Component(opts.Logger, "infra"))

	schedOpts := []scheduler.Option{
		scheduler.WithRand(s.rng),
		scheduler.WithProvisioner(s.infra),
		scheduler.WithHold(func() bool { return s.lessons.Active() }),
		scheduler.WithLogger(logging.Component(opts.Logger, "scheduler")),
	}
	if opts.IDGenerator != nil {
		schedOpts = append(schedOpts, scheduler.WithIDGenerator(opts.IDGenerator))
	}
	s.scheduler = scheduler.New(s.clock, s.cluster, s.events, opts.Scheduler, schedOpts...)
	s.scheduler.SetAutoscaling(opts.Autoscaling)
	s.lessons = lessons.NewEngine(registry, s, s.events, logging.Component(opts.Logger, "lessons"))

	if !opts.Empty {
		s.ResetScenario(lessons.DefaultNodes, lessons.DefaultJobs)
	}
	return s, nil
}

// Clock returns the simulation clock
func (s *Simulator) Clock() *models.Clock { return s.clock }

// Cluster returns the node set
func (s *Simulator) Cluster() *models.Cluster { return s.cluster }

// Events returns the event log
func (s *Simulator) Events() *events.Log { return s.events }

// Scheduler returns the job scheduler
func (s *Simulator) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Infra returns the infrastructure reconciler
func (s *Simulator) Infra() *infra.Reconciler { return s.infra }

// Lessons returns the lesson engine
func (s *Simulator) Lessons() *lessons.Engine { return s.lessons }

// Tick advances the simulation one step unless a lesson holds time still
func (s *Simulator) Tick() bool {
	return s.scheduler.Tick()
}

// CheckInvariants verifies every node's resource accounting
func (s *Simulator) CheckInvariants() error {
	for _, node := range s.cluster.Nodes() {
		if err := node.CheckInvariant(); err != nil {
			return errors.Wrap(models.ErrInvalidState, err.Error())
		}
	}
	return nil
}
