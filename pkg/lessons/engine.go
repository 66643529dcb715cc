// Package lessons runs guided lessons: it checks learner input against the
// current step and stages a scenario on the simulator as steps are entered.
package lessons

import (
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/events"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/sirupsen/logrus"
)

// Default scenario restored when a lesson ends
const (
	DefaultNodes = 2
	DefaultJobs  = 2
)

// Engine is the lesson state machine: inactive, or at one step of one lesson
type Engine struct {
	registry  *Registry
	stager    Stager
	events    *events.Log
	logger    *logrus.Entry
	active    *Lesson
	step      int
	completed []string
}

// Outcome reports what an Advance did
type Outcome struct {
	Ended        bool
	Lesson       *Lesson
	FinalMessage string
}

// Progress is the persisted lesson state
type Progress struct {
	Active    string   `json:"active,omitempty"`
	Step      int      `json:"step"`
	Completed []string `json:"completed"`
}

// NewEngine creates an inactive engine
func NewEngine(registry *Registry, stager Stager, log *events.Log, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logging.Component(nil, "lessons")
	}
	return &Engine{
		registry:  registry,
		stager:    stager,
		events:    log,
		logger:    logger,
		completed: make([]string, 0),
	}
}

// Registry returns the lesson registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start activates a lesson at step 0 and stages its first scenario
func (e *Engine) Start(id string) (*Lesson, error) {
	lesson, ok := e.registry.Get(id)
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "lesson '%s'", id)
	}
	e.active = lesson
	e.step = 0
	if err := stage(e.stager, lesson.Steps[0].Setup); err != nil {
		e.active = nil
		return nil, err
	}
	e.logger.WithField("lesson", id).Info("lesson started")
	return lesson, nil
}

// Active reports whether a lesson is running
func (e *Engine) Active() bool {
	return e.active != nil
}

// ActiveLesson returns the running lesson, or nil
func (e *Engine) ActiveLesson() *Lesson {
	return e.active
}

// StepIndex returns the current step index
func (e *Engine) StepIndex() int {
	return e.step
}

// Current returns the current step, or nil when inactive
func (e *Engine) Current() *Step {
	if e.active == nil {
		return nil
	}
	return e.active.Steps[e.step]
}

// CheckInput reports whether raw completes the current step
func (e *Engine) CheckInput(raw string) bool {
	step := e.Current()
	if step == nil {
		return false
	}
	return step.matcher.Match(raw)
}

// Advance moves to the next step, staging its scenario. Advancing past the
// last step, or past a step marked final, ends the lesson.
func (e *Engine) Advance() (*Outcome, error) {
	if e.active == nil {
		return &Outcome{}, nil
	}
	lesson, current := e.active, e.Current()

	next := e.step + 1
	if current.Final || next >= len(lesson.Steps) {
		e.End()
		return &Outcome{Ended: true, Lesson: lesson, FinalMessage: current.FinalMessage}, nil
	}

	// the step only moves once its scenario is in place
	if err := stage(e.stager, lesson.Steps[next].Setup); err != nil {
		return nil, errors.Wrapf(err, "lesson '%s' step %d", lesson.ID, next+1)
	}
	e.step = next
	return &Outcome{Lesson: lesson}, nil
}

// End marks the active lesson completed and restores the default scenario.
// Calling it with no active lesson does nothing.
func (e *Engine) End() {
	if e.active == nil {
		return
	}
	lesson := e.active
	if !e.IsCompleted(lesson.ID) {
		e.completed = append(e.completed, lesson.ID)
	}
	e.active = nil
	e.step = 0

	e.stager.ResetScenario(DefaultNodes, DefaultJobs)
	e.events.Record("Tutorial '%s' completed!", lesson.Name)
	e.logger.WithField("lesson", lesson.ID).Info("lesson completed")
}

// IsCompleted reports whether the lesson has been finished before
func (e *Engine) IsCompleted(id string) bool {
	for _, done := range e.completed {
		if done == id {
			return true
		}
	}
	return false
}

// Completed returns completed lesson ids in completion order
func (e *Engine) Completed() []string {
	out := make([]string, len(e.completed))
	copy(out, e.completed)
	return out
}

// Progress captures the engine state for persistence
func (e *Engine) Progress() Progress {
	p := Progress{Step: e.step, Completed: e.Completed()}
	if e.active != nil {
		p.Active = e.active.ID
	}
	return p
}

// Restore reinstates saved progress without staging any scenario
func (e *Engine) Restore(p Progress) error {
	var active *Lesson
	if p.Active != "" {
		lesson, ok := e.registry.Get(p.Active)
		if !ok {
			return errors.Wrapf(models.ErrNotFound, "lesson '%s'", p.Active)
		}
		if p.Step < 0 || p.Step >= len(lesson.Steps) {
			return errors.Wrapf(models.ErrInvalidState, "lesson '%s' has no step %d", p.Active, p.Step)
		}
		active = lesson
	}

	e.active = active
	e.step = 0
	if active != nil {
		e.step = p.Step
	}
	e.completed = append(make([]string, 0, len(p.Completed)), p.Completed...)
	return nil
}
