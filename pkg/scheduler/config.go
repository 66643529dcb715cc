package scheduler

import "github.com/psantana5/opsim/pkg/models"

// Config holds the simulation tunables used by the scheduler
type Config struct {
	ProgressStep     int // progress added to every running job per tick
	CompletionReward int // score awarded per completed job
	FailurePenalty   int // score removed per failed job

	JobArrivalChance float64 // probability a new job arrives on a tick
	MinDeadline      int     // generated jobs get a deadline in [now+MinDeadline, now+MaxDeadline]
	MaxDeadline      int
	TrainingVersion  string // software version required by generated training jobs

	EventChance    float64 // probability of a random event on a tick
	UrgentDeadline int     // ticks an urgent job has to finish
	OnnxDeadline   int     // ticks a converted job has to finish

	CostRates map[models.ResourceKind]float64 // cost per unit of total capacity per tick

	ScaleUpQueue   int // autoscaling adds nodes when the queue is longer than this
	ScaleDownQueue int // autoscaling removes an idle node when the queue is shorter than this
	MaxNodes       int
	MinNodes       int
	ScaleUpStep    int // nodes added per scale-up
}

// DefaultConfig returns the stock simulation tunables
func DefaultConfig() *Config {
	return &Config{
		ProgressStep:     10,
		CompletionReward: 100,
		FailurePenalty:   50,
		JobArrivalChance: 0.3,
		MinDeadline:      20,
		MaxDeadline:      50,
		TrainingVersion:  "2.0",
		EventChance:      0.05,
		UrgentDeadline:   15,
		OnnxDeadline:     30,
		CostRates: map[models.ResourceKind]float64{
			models.ResourceCPU: 0.1,
			models.ResourceGPU: 0.5,
			models.ResourceRAM: 0.05,
		},
		ScaleUpQueue:   5,
		ScaleDownQueue: 2,
		MaxNodes:       10,
		MinNodes:       2,
		ScaleUpStep:    1,
	}
}

// Quiet returns DefaultConfig with random arrivals and events disabled
func Quiet() *Config {
	cfg := DefaultConfig()
	cfg.JobArrivalChance = 0
	cfg.EventChance = 0
	return cfg
}
