package lessons

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/infra"
)

// noneSentinel marks a step that accepts any input
const noneSentinel = "none"

// Lesson is an ordered list of steps teaching one skill
type Lesson struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Skills      []string `yaml:"skills"`
	Steps       []*Step  `yaml:"steps"`

	Category string `yaml:"-"`
}

// Step is one instruction and the input that completes it
type Step struct {
	Text         string    `yaml:"text"`
	Expect       string    `yaml:"expect"`
	Dynamic      bool      `yaml:"dynamic"`
	Answers      []string  `yaml:"answers"`
	Answer       string    `yaml:"answer"`
	Final        bool      `yaml:"final"`
	FinalMessage string    `yaml:"final_message"`
	DocLink      string    `yaml:"doc_link"`
	DocQuote     string    `yaml:"doc_quote"`
	Setup        *Scenario `yaml:"setup"`

	matcher Matcher
}

// IsChoice reports whether the step is a multiple-choice question
func (s *Step) IsChoice() bool {
	return s.matcher.Kind == MatchChoice
}

// Matcher returns the compiled input matcher
func (s *Step) Matcher() Matcher {
	return s.matcher
}

func (s *Step) compile() error {
	switch {
	case len(s.Answers) > 0:
		if s.Answer == "" {
			return errors.New("multiple-choice step without an answer")
		}
		s.matcher = Matcher{Kind: MatchChoice, Want: strings.TrimSpace(s.Answer)}
	case s.Expect == "" || s.Expect == noneSentinel:
		s.matcher = Matcher{Kind: MatchNone}
	case s.Dynamic:
		s.matcher = Matcher{Kind: MatchPrefix, Want: strings.TrimSpace(s.Expect)}
	default:
		s.matcher = Matcher{Kind: MatchExact, Want: strings.TrimSpace(s.Expect)}
	}
	return nil
}

func (l *Lesson) validate() error {
	if l.ID == "" {
		return errors.New("lesson without an id")
	}
	if len(l.Steps) == 0 {
		return errors.Errorf("lesson %s has no steps", l.ID)
	}
	for i, step := range l.Steps {
		if step == nil {
			return errors.Errorf("lesson %s step %d is empty", l.ID, i)
		}
		if err := step.compile(); err != nil {
			return errors.Wrapf(err, "lesson %s step %d", l.ID, i)
		}
		if step.Setup != nil {
			if err := step.Setup.validate(); err != nil {
				return errors.Wrapf(err, "lesson %s step %d", l.ID, i)
			}
		}
	}
	return nil
}

// Scenario describes the cluster a step starts from. Fields apply in order:
// reset, config, nodes, jobs, complete_running.
type Scenario struct {
	Reset           bool            `yaml:"reset"`
	Nodes           int             `yaml:"nodes"` // default nodes created by the reset
	Jobs            int             `yaml:"jobs"`  // random pending jobs created by the reset
	Config          *infra.Override `yaml:"config"`
	AddNodes        []NodeSpec      `yaml:"add_nodes"`
	AddJobs         []JobSpec       `yaml:"add_jobs"`
	CompleteRunning bool            `yaml:"complete_running"`
}

// NodeSpec describes a node placed by a scenario
type NodeSpec struct {
	ID        string `yaml:"id"`
	CPU       int    `yaml:"cpu"`
	GPU       int    `yaml:"gpu"`
	RAM       int    `yaml:"ram"`
	Version   string `yaml:"version"`
	Unmanaged bool   `yaml:"unmanaged"`
}

// JobSpec describes a job placed by a scenario. Deadline is relative to the current tick.
type JobSpec struct {
	Type     string `yaml:"type"`
	CPU      int    `yaml:"cpu"`
	GPU      int    `yaml:"gpu"`
	RAM      int    `yaml:"ram"`
	Version  string `yaml:"version"`
	Deadline int    `yaml:"deadline"`
	Node     string `yaml:"node"` // submit straight to this node when set
}

func (s *Scenario) validate() error {
	if s.Nodes < 0 || s.Jobs < 0 {
		return errors.New("scenario counts must not be negative")
	}
	if !s.Reset && (s.Nodes > 0 || s.Jobs > 0) {
		return errors.New("nodes and jobs require reset")
	}
	for _, n := range s.AddNodes {
		if n.ID == "" {
			return errors.New("scenario node without an id")
		}
	}
	for _, j := range s.AddJobs {
		if _, ok := JobTypes[j.Type]; !ok {
			return errors.Errorf("scenario job has unknown type %q", j.Type)
		}
	}
	return nil
}
