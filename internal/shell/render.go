package shell

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/psantana5/opsim/pkg/scheduler"
)

func usage(total, available int) string {
	return fmt.Sprintf("%d/%d", total-available, total)
}

func renderStatus(w io.Writer, nodes []*models.Node, time, score int, cost float64) {
	fmt.Fprintf(w, "Time: %d | Score: %d | Cost: $%.2f\n", time, score, cost)

	table := tablewriter.NewWriter(w)
	table.Header("Node ID", "CPU (Used/Total)", "GPU (Used/Total)", "RAM (Used/Total)", "PyTorch Version", "Managed", "Running Jobs")
	for _, node := range nodes {
		ids := make([]string, 0, len(node.RunningJobs))
		for _, job := range node.RunningJobs {
			ids = append(ids, job.ID)
		}
		table.Append([]string{
			node.ID,
			usage(node.Resources.Get(models.ResourceCPU), node.Available.Get(models.ResourceCPU)),
			usage(node.Resources.Get(models.ResourceGPU), node.Available.Get(models.ResourceGPU)),
			usage(node.Resources.Get(models.ResourceRAM), node.Available.Get(models.ResourceRAM)) + " GB",
			node.Version,
			strconv.FormatBool(node.Managed),
			strings.Join(ids, ", "),
		})
	}
	table.Render()
}

func renderJobs(w io.Writer, title string, jobs []*models.Job) {
	fmt.Fprintln(w, title)
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Type", "Status", "CPU", "GPU", "RAM", "Version", "Deadline")
	for _, job := range jobs {
		table.Append([]string{
			job.ID,
			string(job.Type),
			string(job.Status),
			strconv.Itoa(job.Requirements.Get(models.ResourceCPU)),
			strconv.Itoa(job.Requirements.Get(models.ResourceGPU)),
			fmt.Sprintf("%d GB", job.Requirements.Get(models.ResourceRAM)),
			job.VersionLabel(),
			strconv.Itoa(job.Deadline),
		})
	}
	table.Render()
}

func renderJob(w io.Writer, job *models.Job) {
	fmt.Fprintf(w, "Job Details: %s\n", job.ID)

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append([]string{"Type", string(job.Type)})
	table.Append([]string{"Status", string(job.Status)})
	table.Append([]string{"CPU Req", strconv.Itoa(job.Requirements.Get(models.ResourceCPU))})
	table.Append([]string{"GPU Req", strconv.Itoa(job.Requirements.Get(models.ResourceGPU))})
	table.Append([]string{"RAM Req", fmt.Sprintf("%d GB", job.Requirements.Get(models.ResourceRAM))})
	table.Append([]string{"Deadline", strconv.Itoa(job.Deadline)})
	table.Append([]string{"PyTorch Version", job.VersionLabel()})
	switch job.Status {
	case models.JobStatusRunning:
		table.Append([]string{"Assigned Node", job.AssignedNode})
		table.Append([]string{"Progress", fmt.Sprintf("%d%%", job.Progress)})
	case models.JobStatusFailed:
		table.Append([]string{"Error", job.ErrorMessage})
	}
	table.Render()
}

func renderMetrics(w io.Writer, m scheduler.Summary) {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append([]string{"Total Time Elapsed", strconv.Itoa(m.Time)})
	table.Append([]string{"Total Completed Jobs", strconv.Itoa(m.Completed)})
	table.Append([]string{"Total Failed Jobs", strconv.Itoa(m.Failed)})
	table.Append([]string{"Average Job Completion Time", fmt.Sprintf("%.2f time units", m.AvgCompletionTime)})
	table.Append([]string{"Total Cost", fmt.Sprintf("$%.2f", m.TotalCost)})
	table.Append([]string{"Score", strconv.Itoa(m.Score)})
	table.Render()
}

func renderLog(w io.Writer, entries []string) {
	table := tablewriter.NewWriter(w)
	table.Header("Event")
	for _, e := range entries {
		table.Append([]string{e})
	}
	table.Render()
}

func renderHelp(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("Command", "Description")
	for _, c := range commands {
		table.Append([]string{c.usage, c.help})
	}
	table.Render()
}

// renderLessons lists every category with each lesson's progress
func renderLessons(w io.Writer, engine *lessons.Engine) {
	active := engine.ActiveLesson()
	for _, cat := range engine.Registry().Categories() {
		fmt.Fprintf(w, "\nCategory: %s\n", cat.Name)
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Name", "Status")
		for _, l := range cat.Lessons {
			status := "Not Started"
			switch {
			case engine.IsCompleted(l.ID):
				status = "Completed"
			case active != nil && active.ID == l.ID:
				status = "In Progress"
			}
			table.Append([]string{l.ID, l.Name, status})
		}
		table.Render()
	}
	fmt.Fprintln(w, "\nTo see skills taught in a tutorial, type: `tutorial show <ID>`")
	fmt.Fprintln(w, "To start a tutorial, type: `tutorial start <ID>`")
}
