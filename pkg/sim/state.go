package sim

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/models"
)

// StateVersion is bumped whenever the persisted layout changes
const StateVersion = 1

// State is the persisted record of a simulation
type State struct {
	Version          int                    `json:"version"`
	Time             int                    `json:"time"`
	Score            int                    `json:"score"`
	Cost             float64                `json:"cost"`
	Autoscaling      bool                   `json:"autoscaling_enabled"`
	EventLog         []string               `json:"event_log"`
	Jobs             map[string]*models.Job `json:"jobs"`
	Queue            []string               `json:"queue"`
	Cluster          ClusterState           `json:"cluster"`
	CompletedLessons []string               `json:"completed_tutorials"`
	ActiveLesson     string                 `json:"active_tutorial,omitempty"`
	LessonStep       int                    `json:"tutorial_step"`
	InfraConfig      string                 `json:"infra_config"`
	MonitoringConfig string                 `json:"monitoring_config"`
}

// ClusterState keeps nodes by id plus their display order
type ClusterState struct {
	Order []string             `json:"order"`
	Nodes map[string]NodeState `json:"nodes"`
}

// NodeState is a node with its running jobs referenced by id
type NodeState struct {
	ID          string           `json:"id"`
	Resources   models.Resources `json:"resources"`
	Available   models.Resources `json:"available_resources"`
	Version     string           `json:"version"`
	Managed     bool             `json:"managed"`
	RunningJobs []string         `json:"running_jobs"`
}

// Snapshot captures the full simulation state. The result shares nothing with the simulator.
func (s *Simulator) Snapshot() *State {
	progress := s.lessons.Progress()
	st := &State{
		Version:          StateVersion,
		Time:             s.clock.Now(),
		Score:            s.scheduler.Score(),
		Cost:             s.scheduler.Cost(),
		Autoscaling:      s.scheduler.Autoscaling(),
		EventLog:         s.events.Entries(),
		Jobs:             make(map[string]*models.Job),
		Queue:            make([]string, 0),
		Cluster:          ClusterState{Order: make([]string, 0), Nodes: make(map[string]NodeState)},
		CompletedLessons: progress.Completed,
		ActiveLesson:     progress.Active,
		LessonStep:       progress.Step,
		InfraConfig:      s.infra.Config(),
		MonitoringConfig: s.monitoring,
	}

	for _, job := range s.scheduler.AllJobs() {
		st.Jobs[job.ID] = job.Clone()
	}
	for _, job := range s.scheduler.Pending() {
		st.Queue = append(st.Queue, job.ID)
	}
	for _, node := range s.cluster.Nodes() {
		ns := NodeState{
			ID:          node.ID,
			Resources:   node.Resources.Clone(),
			Available:   node.Available.Clone(),
			Version:     node.Version,
			Managed:     node.Managed,
			RunningJobs: make([]string, 0, len(node.RunningJobs)),
		}
		for _, job := range node.RunningJobs {
			ns.RunningJobs = append(ns.RunningJobs, job.ID)
		}
		st.Cluster.Order = append(st.Cluster.Order, node.ID)
		st.Cluster.Nodes[node.ID] = ns
	}
	return st
}

// Restore replaces the simulation state with st. Inconsistent records are
// rejected with models.ErrInvalidState and leave the simulator untouched.
func (s *Simulator) Restore(st *State) error {
	if st == nil {
		return errors.Wrap(models.ErrInvalidState, "empty state")
	}
	if st.Version > StateVersion {
		return errors.Wrapf(models.ErrInvalidState, "state version %d is newer than supported version %d", st.Version, StateVersion)
	}

	jobs := make(map[string]*models.Job, len(st.Jobs))
	for id, job := range st.Jobs {
		if job == nil || job.ID != id {
			return errors.Wrapf(models.ErrInvalidState, "job record %s is malformed", id)
		}
		if !models.IsKnownState(job.Status) {
			return errors.Wrapf(models.ErrInvalidState, "job %s has unknown status %q", id, job.Status)
		}
		jobs[id] = job.Clone()
	}

	nodes, err := rebuildNodes(st.Cluster, jobs)
	if err != nil {
		return err
	}

	progress := lessons.Progress{Active: st.ActiveLesson, Step: st.LessonStep, Completed: st.CompletedLessons}
	if err := s.lessons.Restore(progress); err != nil {
		return err
	}

	s.cluster.Clear()
	for _, node := range nodes {
		s.cluster.Add(node)
	}
	s.clock.Set(st.Time)
	s.scheduler.Restore(st.Score, st.Cost, st.Autoscaling, jobs, st.Queue)
	s.events.Restore(st.EventLog)
	s.infra.SetConfig(st.InfraConfig)
	s.monitoring = st.MonitoringConfig
	s.logger.WithField("jobs", len(jobs)).WithField("nodes", len(nodes)).Info("state restored")
	return nil
}

// rebuildNodes links running jobs to their nodes and checks the accounting
func rebuildNodes(cs ClusterState, jobs map[string]*models.Job) ([]*models.Node, error) {
	order := cs.Order
	if len(order) != len(cs.Nodes) {
		order = make([]string, 0, len(cs.Nodes))
		for id := range cs.Nodes {
			order = append(order, id)
		}
		sort.Strings(order)
	}

	placed := make(map[string]string)
	nodes := make([]*models.Node, 0, len(order))
	for _, id := range order {
		ns, ok := cs.Nodes[id]
		if !ok || ns.ID != id {
			return nil, errors.Wrapf(models.ErrInvalidState, "node record %s is malformed", id)
		}
		node := &models.Node{
			ID:          ns.ID,
			Resources:   ns.Resources.Clone(),
			Available:   ns.Available.Clone(),
			Version:     ns.Version,
			Managed:     ns.Managed,
			RunningJobs: make([]*models.Job, 0, len(ns.RunningJobs)),
		}
		for _, jobID := range ns.RunningJobs {
			job, ok := jobs[jobID]
			if !ok {
				return nil, errors.Wrapf(models.ErrInvalidState, "node %s references unknown job %s", id, jobID)
			}
			if job.Status != models.JobStatusRunning || job.AssignedNode != id {
				return nil, errors.Wrapf(models.ErrInvalidState, "job %s is %s on %q, not running on %s", jobID, job.Status, job.AssignedNode, id)
			}
			if other, dup := placed[jobID]; dup {
				return nil, errors.Wrapf(models.ErrInvalidState, "job %s runs on both %s and %s", jobID, other, id)
			}
			placed[jobID] = id
			node.RunningJobs = append(node.RunningJobs, job)
		}
		if err := node.CheckInvariant(); err != nil {
			return nil, errors.Wrap(models.ErrInvalidState, err.Error())
		}
		nodes = append(nodes, node)
	}

	for id, job := range jobs {
		if job.Status == models.JobStatusRunning {
			if _, ok := placed[id]; !ok {
				return nil, errors.Wrapf(models.ErrInvalidState, "running job %s is not on any node", id)
			}
		}
	}
	return nodes, nil
}
