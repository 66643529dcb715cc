package shell

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/psantana5/opsim/pkg/models"
	"github.com/psantana5/opsim/pkg/scheduler"
	"github.com/psantana5/opsim/pkg/sim"
	"github.com/psantana5/opsim/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job%03d", n)
	}
}

type harness struct {
	sim   *sim.Simulator
	shell *Shell
	out   *bytes.Buffer
}

// newHarness builds a quiet simulator with one default node and a shell reading input
func newHarness(t *testing.T, input string) *harness {
	t.Helper()
	s, err := sim.New(sim.Options{
		Seed:        1,
		Scheduler:   scheduler.Quiet(),
		IDGenerator: sequentialIDs(),
		Empty:       true,
	})
	require.NoError(t, err)
	s.Cluster().Add(models.NewNode("node-0", models.NewResources(8, 2, 64), "2.0"))

	out := &bytes.Buffer{}
	sh := New(s, Options{
		In:    strings.NewReader(input),
		Out:   out,
		Store: store.NewMemoryStore(),
	})
	return &harness{sim: s, shell: sh, out: out}
}

// run feeds one line and returns what it printed
func (h *harness) run(t *testing.T, line string) string {
	t.Helper()
	h.out.Reset()
	h.shell.Handle(context.Background(), line)
	return h.out.String()
}

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
		args []string
	}{
		{"status", KindStatus, []string{}},
		{"  submit job001  node-0 ", KindSubmit, []string{"job001", "node-0"}},
		{"terraform apply -target=node-0", KindTerraform, []string{"apply", "-target=node-0"}},
		{"edit-prometheus-config", KindEditPrometheus, []string{}},
		{"frobnicate now", KindUnknown, []string{"frobnicate", "now"}},
		{"", KindUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kind, args := Parse(tt.line)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.args, args)
		})
	}

	assert.Equal(t, "convert-onnx", KindConvertOnnx.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.True(t, KindStatus.Ticks())
	assert.False(t, KindSave.Ticks())
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	h := newHarness(t, "")
	job := h.sim.Scheduler().CreateJob(models.JobTypeTraining, models.NewResources(2, 1, 8), 50, "2.0")

	out := h.run(t, "submit "+job.ID+" node-0")
	assert.Contains(t, out, "Job 'job001' submitted successfully.")
	assert.Equal(t, 1, h.sim.Clock().Now())

	for i := 0; i < 9; i++ {
		h.run(t, "status")
	}
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, h.sim.Scheduler().Score())

	out = h.run(t, "completed-jobs")
	assert.Contains(t, out, "job001")
}

func TestSubmitVersionMismatchFailsJob(t *testing.T) {
	h := newHarness(t, "")
	job := h.sim.Scheduler().CreateJob(models.JobTypeTraining, models.NewResources(2, 1, 8), 50, "1.9")

	out := h.run(t, "submit "+job.ID+" node-0")
	assert.Contains(t, out, "version mismatch 1.9 vs 2.0")
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, -50, h.sim.Scheduler().Score())

	node, _ := h.sim.Cluster().Get("node-0")
	assert.Equal(t, models.NewResources(8, 2, 64), node.Available)

	out = h.run(t, "debug "+job.ID)
	assert.Contains(t, out, "Error for job 'job001': version mismatch 1.9 vs 2.0")
}

func TestCommandOutput(t *testing.T) {
	h := newHarness(t, "")
	h.sim.Scheduler().CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 30, "")
	h.sim.Events().Record("hello from the test")

	tests := []struct {
		line string
		want string
	}{
		{"help", "ls-jobs"},
		{"status", "node-0"},
		{"ls-jobs", "job001"},
		{"show-job job001", "Inference"},
		{"show-job nope", "Job 'nope' not found."},
		{"submit job001", "Usage: submit <job_id> <node_id>"},
		{"cancel job001", "not running"},
		{"convert-onnx job001", "must be a completed"},
		{"cat main.tf", `resource "cluster_node"`},
		{"cat prometheus.yml", "scrape_interval"},
		{"cat /etc/passwd", "No such file"},
		{"autoscale maybe", "Usage: autoscale <on|off>"},
		{"autoscale on", "Autoscaling is now enabled."},
		{"cost", "Total accumulated cost: $"},
		{"metrics", "Average Job Completion Time"},
		{"metrics raw", "opsim_jobs"},
		{"log", "hello from the test"},
		{"next", "No tutorial is running."},
		{"tutorial show tf_1_1", "Skills for tutorial"},
		{"tutorial show nope", "not found"},
		{"tutorial", "Category:"},
		{"frobnicate", "Unknown command: 'frobnicate'"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Contains(t, h.run(t, tt.line), tt.want)
		})
	}
}

func TestOnlySimulationCommandsTick(t *testing.T) {
	h := newHarness(t, "")

	h.run(t, "help")
	h.run(t, "save")
	h.run(t, "frobnicate")
	assert.Equal(t, 0, h.sim.Clock().Now())

	h.run(t, "status")
	h.run(t, "cost")
	assert.Equal(t, 2, h.sim.Clock().Now())
}

func TestTerraformCommands(t *testing.T) {
	h := newHarness(t, "")
	h.sim.Cluster().Remove("node-0")

	steps := []struct {
		line string
		want string
	}{
		{"terraform init", "successfully initialized"},
		{"terraform validate", "The configuration is valid."},
		{"terraform plan", "Terraform will create 1 new nodes"},
		{"terraform apply", "1 nodes have been provisioned."},
		{"terraform plan", "No changes."},
		{"terraform apply", "0 nodes have been provisioned."},
		{"terraform state list", "cluster_node.node-0"},
		{"terraform show", `resource "cluster_node" "node-0"`},
		{"terraform apply -target=node-0", "Node 'node-0' has been updated."},
		{"terraform apply now", "Usage: terraform apply"},
		{"terraform import node-0", "already managed"},
		{"terraform destroy node-9", "not found"},
		{"terraform destroy node-0", "Node 'node-0' destroyed."},
		{"terraform state list", "No resources in state."},
		{"terraform frob", "Unknown terraform subcommand: 'frob'"},
		{"terraform", "Usage: terraform"},
	}
	for _, step := range steps {
		assert.Contains(t, h.run(t, step.line), step.want, step.line)
	}
}

func TestEditTerraformConfigReadsUntilEnd(t *testing.T) {
	config := `resource "cluster_node" "default" {
count = 3
cpu = 4
gpu = 0
ram = 16
pytorch_version = "2.1"
}`
	input := "edit-terraform-config\n" + config + "\nEND\nterraform plan\nterraform fmt\nexit\n"
	h := newHarness(t, input)
	h.sim.Cluster().Remove("node-0")

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "Terraform configuration updated.")
	assert.Contains(t, out, "Terraform will create 3 new nodes")
	assert.Contains(t, out, "Exiting. Goodbye!")

	spec, err := h.sim.Infra().Spec()
	require.NoError(t, err)
	assert.Equal(t, 3, spec.Count)
	assert.Equal(t, "2.1", spec.Version)
	assert.Contains(t, h.sim.Infra().Config(), "  count")
}

func TestBrokenTerraformConfig(t *testing.T) {
	h := newHarness(t, "edit-terraform-config\nresource {\nEND\nterraform plan\n")
	require.NoError(t, h.shell.Run(context.Background()))
	assert.Contains(t, h.out.String(), "Error: ")
	assert.Contains(t, h.out.String(), "config parse error")
}

func TestPrometheusLesson(t *testing.T) {
	config := strings.TrimRight(sim.DefaultMonitoringConfig, "\n") + `
  - job_name: 'node'
    static_configs:
      - targets: ['localhost:9100']`

	input := strings.Join([]string{
		"tutorial start prometheus_1_2",
		"status", // wrong command is rejected
		"next",
		"edit-prometheus-config",
		config,
		"END",
		"restart-prometheus",
		"a", // wrong answer
		"docs",
		"B",
	}, "\n") + "\n"
	h := newHarness(t, input)

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "Starting tutorial: 'Monitoring a Target with an Exporter'...")
	assert.Contains(t, out, "That's not the right command.")
	assert.Contains(t, out, "node -> localhost:9100")
	assert.Contains(t, out, "That's not the right answer. Try again.")
	assert.Contains(t, out, "Correct!")
	assert.Contains(t, out, "You have successfully configured Prometheus")
	assert.Contains(t, out, "Tutorial complete!")

	assert.False(t, h.sim.Lessons().Active())
	assert.True(t, h.sim.Lessons().IsCompleted("prometheus_1_2"))
	assert.Equal(t, 0, h.sim.Clock().Now(), "time is frozen during a lesson")
}

func TestLessonShowsDocQuote(t *testing.T) {
	h := newHarness(t, "")
	h.run(t, "tutorial start tf_1_6")
	h.run(t, "terraform apply")
	h.run(t, "edit-terraform-config")

	assert.Contains(t, h.run(t, "docs"), "Documentation Quote:")
	assert.Equal(t, 2, h.sim.Lessons().StepIndex())
}

func TestSaveAndLoad(t *testing.T) {
	h := newHarness(t, "")
	job := h.sim.Scheduler().CreateJob(models.JobTypeInference, models.NewResources(1, 0, 4), 30, "")

	assert.Contains(t, h.run(t, "load"), "No saved game found.")
	assert.Contains(t, h.run(t, "save"), "Game saved.")
	saved := h.sim.Snapshot()

	h.run(t, "submit "+job.ID+" node-0")
	h.run(t, "status")
	require.Equal(t, 2, h.sim.Clock().Now())

	assert.Contains(t, h.run(t, "load"), "Game loaded.")
	assert.Equal(t, saved.Time, h.sim.Clock().Now())
	assert.Equal(t, models.JobStatusPending, h.sim.Scheduler().GetJob(job.ID).Status)
	assert.Len(t, h.sim.Scheduler().Pending(), 1)

	assert.Contains(t, h.run(t, "save slot2"), "Game saved.")
	assert.Contains(t, h.run(t, "load slot3"), "No saved game found.")
}

func TestSaveDisabledWithoutStore(t *testing.T) {
	s, err := sim.New(sim.Options{Seed: 1, Scheduler: scheduler.Quiet(), Empty: true})
	require.NoError(t, err)
	out := &bytes.Buffer{}
	sh := New(s, Options{In: strings.NewReader(""), Out: out})

	sh.Handle(context.Background(), "save")
	assert.Contains(t, out.String(), "Saving is disabled.")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, "status\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.shell.Run(ctx), context.Canceled)
}
