package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/events"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	clock   *models.Clock
	cluster *models.Cluster
	log     *events.Log
	sched   *Scheduler
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job%03d", n)
	}
}

func newHarness(t *testing.T, cfg *Config, opts ...Option) *harness {
	t.Helper()
	if cfg == nil {
		cfg = Quiet()
	}
	h := &harness{
		clock:   models.NewClock(),
		cluster: models.NewCluster(),
	}
	h.log = events.NewLog(h.clock, nil)
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1))), WithIDGenerator(sequentialIDs())}, opts...)
	h.sched = New(h.clock, h.cluster, h.log, cfg, opts...)
	return h
}

func (h *harness) addNode(id string, cpu, gpu, ram int, version string) *models.Node {
	node := models.NewNode(id, models.NewResources(cpu, gpu, ram), version)
	h.cluster.Add(node)
	return node
}

func TestSubmitRunsToCompletion(t *testing.T) {
	h := newHarness(t, nil)
	node := h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 100, "")

	require.NoError(t, h.sched.Submit(job.ID, "node-0"))
	assert.Equal(t, models.NewResources(6, 1, 56), node.Available)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Empty(t, h.sched.Pending())

	for i := 0; i < 9; i++ {
		h.sched.Tick()
	}
	assert.Equal(t, 90, job.Progress)
	assert.Equal(t, models.JobStatusRunning, job.Status)

	h.sched.Tick()
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.NewResources(8, 2, 64), node.Available)
	assert.Len(t, h.sched.CompletedJobs(), 1)
	assert.Equal(t, 100, h.sched.Score())
	require.NoError(t, node.CheckInvariant())
}

func TestSubmitVersionMismatchFailsJob(t *testing.T) {
	h := newHarness(t, nil)
	node := h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeTraining, models.NewResources(2, 1, 8), 100, "1.9")

	err := h.sched.Submit(job.ID, "node-0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrResourceConflict))
	assert.Contains(t, err.Error(), "version mismatch")

	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "version mismatch")
	assert.Empty(t, h.sched.Pending())
	assert.Len(t, h.sched.FailedJobs(), 1)
	assert.Equal(t, -50, h.sched.Score())
	assert.Equal(t, models.NewResources(8, 2, 64), node.Available)
}

func TestSubmitInsufficientResources(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 2, 0, 8, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 100, "")

	err := h.sched.Submit(job.ID, "node-0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient resources")
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestSubmitUnknownIDs(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")

	err := h.sched.Submit("nope", "node-0")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	err = h.sched.Submit(job.ID, "node-9")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestSubmitRejectsNonPending(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")
	require.NoError(t, h.sched.Submit(job.ID, "node-0"))

	err := h.sched.Submit(job.ID, "node-0")
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestCancelReturnsJobToQueue(t *testing.T) {
	h := newHarness(t, nil)
	node := h.addNode("node-0", 8, 2, 64, "2.0")
	first := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 100, "")
	second := h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")
	require.NoError(t, h.sched.Submit(first.ID, "node-0"))
	h.sched.Tick()

	require.NoError(t, h.sched.Cancel(first.ID))
	assert.Equal(t, models.JobStatusPending, first.Status)
	assert.Empty(t, first.AssignedNode)
	assert.Equal(t, models.NewResources(8, 2, 64), node.Available)

	pending := h.sched.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)

	err := h.sched.Cancel(second.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestDeadlineMissFailsJob(t *testing.T) {
	h := newHarness(t, nil)
	node := h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 3, "")
	require.NoError(t, h.sched.Submit(job.ID, "node-0"))

	for i := 0; i < 3; i++ {
		h.sched.Tick()
	}
	assert.Equal(t, models.JobStatusRunning, job.Status)

	h.sched.Tick()
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "deadline missed", job.ErrorMessage)
	assert.True(t, node.Idle())
	assert.Equal(t, models.NewResources(8, 2, 64), node.Available)
}

func TestCompletionWinsOverDeadlineOnSameTick(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 5, "")
	require.NoError(t, h.sched.Submit(job.ID, "node-0"))

	for i := 0; i < 10; i++ {
		h.sched.Tick()
	}
	assert.Equal(t, models.JobStatusFailed, job.Status)

	h2 := newHarness(t, nil)
	h2.addNode("node-0", 8, 2, 64, "2.0")
	job2 := h2.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 9, "")
	require.NoError(t, h2.sched.Submit(job2.ID, "node-0"))
	for i := 0; i < 10; i++ {
		h2.sched.Tick()
	}
	assert.Equal(t, models.JobStatusCompleted, job2.Status)
}

func TestConvertToOnnx(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	train := h.sched.CreateJob(models.JobTypeTraining, models.NewResources(4, 2, 16), 100, "2.0")

	_, err := h.sched.ConvertToOnnx(train.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	require.NoError(t, h.sched.Submit(train.ID, "node-0"))
	for i := 0; i < 10; i++ {
		h.sched.Tick()
	}
	require.Equal(t, models.JobStatusCompleted, train.Status)

	onnx, err := h.sched.ConvertToOnnx(train.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeOptimized, onnx.Type)
	assert.Equal(t, models.NewResources(2, 1, 8), onnx.Requirements)
	assert.Equal(t, h.clock.Now()+30, onnx.Deadline)
	assert.Equal(t, models.JobStatusPending, onnx.Status)
	assert.Equal(t, onnx, h.sched.GetJob(onnx.ID))
}

func TestTickHeld(t *testing.T) {
	held := true
	h := newHarness(t, nil, WithHold(func() bool { return held }))
	h.addNode("node-0", 8, 2, 64, "2.0")

	assert.False(t, h.sched.Tick())
	assert.Equal(t, 0, h.clock.Now())
	assert.Equal(t, 0.0, h.sched.Cost())

	held = false
	assert.True(t, h.sched.Tick())
	assert.Equal(t, 1, h.clock.Now())
}

func TestCostAccrual(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")

	h.sched.Tick()
	assert.InDelta(t, 8*0.1+2*0.5+64*0.05, h.sched.Cost(), 1e-9)
}

func TestCostAccrualIsOrderStable(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 7, 3, 61, "2.0")
	h.addNode("node-1", 13, 1, 9, "2.0")

	rates := DefaultConfig().CostRates
	want := 0.0
	for i := 0; i < 50; i++ {
		h.sched.Tick()
		for _, node := range h.cluster.Nodes() {
			for _, kind := range models.ResourceKinds {
				want += float64(node.Resources.Get(kind)) * rates[kind]
			}
		}
	}
	assert.Equal(t, want, h.sched.Cost())
}

func TestRandomArrivals(t *testing.T) {
	cfg := Quiet()
	cfg.JobArrivalChance = 1
	h := newHarness(t, cfg)

	for i := 0; i < 20; i++ {
		h.sched.Tick()
	}
	pending := h.sched.Pending()
	require.Len(t, pending, 20)
	for _, job := range pending {
		assert.GreaterOrEqual(t, job.Requirements.Get(models.ResourceCPU), 1)
		assert.LessOrEqual(t, job.Requirements.Get(models.ResourceCPU), 4)
		assert.LessOrEqual(t, job.Requirements.Get(models.ResourceGPU), 2)
		assert.GreaterOrEqual(t, job.Requirements.Get(models.ResourceRAM), 4)
		assert.LessOrEqual(t, job.Requirements.Get(models.ResourceRAM), 32)
		if job.Type == models.JobTypeTraining {
			assert.Equal(t, "2.0", job.Version)
		} else {
			assert.Empty(t, job.Version)
		}
	}
}

func TestHardwareFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 100, "")
	require.NoError(t, h.sched.Submit(job.ID, "node-0"))

	h.sched.hardwareFailure()
	assert.Equal(t, 0, h.cluster.Len())
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "hardware failure", job.ErrorMessage)
	assert.Contains(t, h.log.Recent(1)[0], "Hardware failure on node 'node-0'")
}

func TestUrgentJobJumpsQueue(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")

	h.sched.urgentJob()
	pending := h.sched.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, models.NewResources(2, 1, 8), pending[0].Requirements)
	assert.Equal(t, 15, pending[0].Deadline)
}

type fakeProvisioner struct {
	cluster *models.Cluster
	grown   int
	shrunk  []string
}

func (p *fakeProvisioner) Grow(n int) (int, error) {
	for i := 0; i < n; i++ {
		p.cluster.Add(models.NewNode(p.cluster.NextNodeID(), models.NewResources(8, 2, 64), "2.0"))
	}
	p.grown += n
	return n, nil
}

func (p *fakeProvisioner) Shrink(nodeID string) error {
	p.cluster.Remove(nodeID)
	p.shrunk = append(p.shrunk, nodeID)
	return nil
}

func TestAutoscale(t *testing.T) {
	h := newHarness(t, nil)
	prov := &fakeProvisioner{cluster: h.cluster}
	h.sched.provisioner = prov
	h.addNode("node-0", 8, 2, 64, "2.0")
	h.addNode("node-1", 8, 2, 64, "2.0")

	for i := 0; i < 6; i++ {
		h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")
	}

	h.sched.Tick()
	assert.Equal(t, 0, prov.grown, "autoscaling is off by default")

	h.sched.SetAutoscaling(true)
	h.sched.Tick()
	assert.Equal(t, 1, prov.grown)
	assert.Equal(t, 3, h.cluster.Len())

	h.sched.ResetJobs()
	h.sched.Tick()
	require.Len(t, prov.shrunk, 1)
	assert.Equal(t, 2, h.cluster.Len())

	h.sched.Tick()
	assert.Len(t, prov.shrunk, 1, "never shrinks below the minimum")
}

func TestAutoscaleSkipsBusyNodes(t *testing.T) {
	h := newHarness(t, nil)
	prov := &fakeProvisioner{cluster: h.cluster}
	h.sched.provisioner = prov
	h.sched.SetAutoscaling(true)
	for i := 0; i < 3; i++ {
		h.addNode(fmt.Sprintf("node-%d", i), 8, 2, 64, "2.0")
		job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 100, "")
		require.NoError(t, h.sched.Submit(job.ID, fmt.Sprintf("node-%d", i)))
	}

	h.sched.Tick()
	assert.Empty(t, prov.shrunk)
	assert.Equal(t, 3, h.cluster.Len())
}

func TestRestoreSortsJobsByStatus(t *testing.T) {
	h := newHarness(t, nil)
	a := models.NewJob("a", models.JobTypeInference, models.NewResources(1, 0, 4), 10, "")
	b := models.NewJob("b", models.JobTypeInference, models.NewResources(1, 0, 4), 5, "")
	done := models.NewJob("c", models.JobTypeInference, models.NewResources(1, 0, 4), 5, "")
	done.Status = models.JobStatusCompleted
	done.CompletionTime = models.IntPtr(4)
	lost := models.NewJob("d", models.JobTypeInference, models.NewResources(1, 0, 4), 5, "")
	lost.Status = models.JobStatusFailed

	jobs := map[string]*models.Job{"a": a, "b": b, "c": done, "d": lost}
	h.sched.Restore(250, 12.5, true, jobs, []string{"a", "b"})

	pending := h.sched.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "b", pending[1].ID)
	assert.Len(t, h.sched.CompletedJobs(), 1)
	assert.Len(t, h.sched.FailedJobs(), 1)
	assert.Equal(t, 250, h.sched.Score())
	assert.Equal(t, 12.5, h.sched.Cost())
	assert.True(t, h.sched.Autoscaling())

	h.sched.Restore(0, 0, false, jobs, nil)
	pending = h.sched.Pending()
	assert.Equal(t, "b", pending[0].ID, "without a saved order the queue is sorted by deadline")
}

func TestMetricsSummary(t *testing.T) {
	h := newHarness(t, nil)
	h.addNode("node-0", 8, 2, 64, "2.0")
	job := h.sched.CreateJob(models.JobTypeInference, models.NewResources(2, 1, 8), 100, "")
	require.NoError(t, h.sched.Submit(job.ID, "node-0"))
	for i := 0; i < 10; i++ {
		h.sched.Tick()
	}

	sum := h.sched.Metrics()
	assert.Equal(t, 10, sum.Time)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 10.0, sum.AvgCompletionTime)
	assert.Equal(t, 100, sum.Score)
}
