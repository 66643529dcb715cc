package models

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType is the workload category of a job
type JobType string

const (
	JobTypeTraining  JobType = "PyTorch Training"
	JobTypeInference JobType = "Inference"
	JobTypeOptimized JobType = "ONNX Inference"
)

// Job represents a unit of work waiting for, running on, or finished on a node
type Job struct {
	ID             string    `json:"id"`
	Type           JobType   `json:"type"`
	Requirements   Resources `json:"requirements"`
	Deadline       int       `json:"deadline"`
	Status         JobStatus `json:"status"`
	Version        string    `json:"version,omitempty"` // empty means version-agnostic
	AssignedNode   string    `json:"assigned_node,omitempty"`
	Progress       int       `json:"progress"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	SubmissionTime *int      `json:"submission_time,omitempty"`
	CompletionTime *int      `json:"completion_time,omitempty"`
}

// NewJob creates a pending job
func NewJob(id string, jobType JobType, requirements Resources, deadline int, version string) *Job {
	return &Job{
		ID:           id,
		Type:         jobType,
		Requirements: requirements.Clone(),
		Deadline:     deadline,
		Status:       JobStatusPending,
		Version:      version,
	}
}

// SetStatus moves the job to a new status, rejecting transitions the lifecycle does not allow
func (j *Job) SetStatus(to JobStatus) error {
	if err := ValidateTransition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	return nil
}

// VersionLabel renders the required version for display
func (j *Job) VersionLabel() string {
	if j.Version == "" {
		return "any"
	}
	return j.Version
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	c := *j
	c.Requirements = j.Requirements.Clone()
	if j.SubmissionTime != nil {
		t := *j.SubmissionTime
		c.SubmissionTime = &t
	}
	if j.CompletionTime != nil {
		t := *j.CompletionTime
		c.CompletionTime = &t
	}
	return &c
}

// IntPtr is a helper for the optional tick fields
func IntPtr(v int) *int {
	return &v
}
