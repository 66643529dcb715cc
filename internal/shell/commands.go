package shell

import "strings"

// Kind identifies a shell command
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindStatus
	KindLsJobs
	KindCompletedJobs
	KindFailedJobs
	KindShowJob
	KindSubmit
	KindCancel
	KindDebug
	KindConvertOnnx
	KindTerraform
	KindEditTerraform
	KindCat
	KindEditPrometheus
	KindRestartPrometheus
	KindAutoscale
	KindCost
	KindMetrics
	KindLog
	KindTutorial
	KindNext
	KindDocs
	KindSave
	KindLoad
	KindExit
)

// command describes one entry of the command table
type command struct {
	kind  Kind
	name  string
	usage string
	help  string
	tick  bool // advance the simulation once after running outside a lesson
}

var commands = []command{
	{KindHelp, "help", "help", "Displays this help message.", false},
	{KindTutorial, "tutorial", "tutorial [list|show <id>|start <id>]", "Lists tutorials, shows skills for one, or starts one.", false},
	{KindNext, "next", "next", "Continues a tutorial.", false},
	{KindDocs, "docs", "docs", "Shows the documentation quote for the current tutorial step.", false},
	{KindStatus, "status", "status", "Shows the current state of the cluster and resource utilization.", true},
	{KindLsJobs, "ls-jobs", "ls-jobs", "Lists all pending jobs in the queue.", true},
	{KindCompletedJobs, "completed-jobs", "completed-jobs", "Lists completed jobs.", true},
	{KindFailedJobs, "failed-jobs", "failed-jobs", "Lists failed jobs.", true},
	{KindShowJob, "show-job", "show-job <job_id>", "Provides detailed information about a job.", true},
	{KindSubmit, "submit", "submit <job_id> <node_id>", "Submits a job to a specific node.", true},
	{KindCancel, "cancel", "cancel <job_id>", "Cancels a running job and returns it to the queue.", true},
	{KindDebug, "debug", "debug <job_id>", "Shows the error for a failed job.", true},
	{KindConvertOnnx, "convert-onnx", "convert-onnx <job_id>", "Converts a completed training job into an optimized ONNX job.", true},
	{KindTerraform, "terraform", "terraform <init|validate|fmt|plan|apply [-target=<node_id>]|destroy <node_id>|show|import <node_id>|state list>", "Manages cluster nodes from the configuration.", true},
	{KindEditTerraform, "edit-terraform-config", "edit-terraform-config", "Replaces main.tf; finish with END on its own line.", true},
	{KindCat, "cat", "cat <main.tf|prometheus.yml>", "Prints a configuration file.", true},
	{KindEditPrometheus, "edit-prometheus-config", "edit-prometheus-config", "Replaces prometheus.yml; finish with END on its own line.", true},
	{KindRestartPrometheus, "restart-prometheus", "restart-prometheus", "Reloads the monitoring configuration.", true},
	{KindAutoscale, "autoscale", "autoscale <on|off>", "Toggles autoscaling.", true},
	{KindCost, "cost", "cost", "Displays the current resource expenditure.", true},
	{KindMetrics, "metrics", "metrics [raw]", "Displays performance metrics, or the Prometheus exposition with raw.", true},
	{KindLog, "log", "log", "Displays recent simulation events.", true},
	{KindSave, "save", "save [slot]", "Saves the simulation.", false},
	{KindLoad, "load", "load [slot]", "Loads a saved simulation.", false},
	{KindExit, "exit", "exit", "Quits the simulator.", false},
}

var (
	commandsByName = make(map[string]command, len(commands))
	commandsByKind = make(map[Kind]command, len(commands))
)

func init() {
	for _, c := range commands {
		commandsByName[c.name] = c
		commandsByKind[c.kind] = c
	}
}

func (k Kind) String() string {
	if c, ok := commandsByKind[k]; ok {
		return c.name
	}
	return "unknown"
}

// Ticks reports whether running k outside a lesson advances simulated time
func (k Kind) Ticks() bool {
	return commandsByKind[k].tick
}

// Parse splits a line into its command kind and arguments
func Parse(line string) (Kind, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return KindUnknown, nil
	}
	c, ok := commandsByName[fields[0]]
	if !ok {
		return KindUnknown, fields
	}
	return c.kind, fields[1:]
}
