package shell

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/psantana5/opsim/pkg/models"
)

// execute runs one command and reports whether the shell should keep running
func (sh *Shell) execute(ctx context.Context, kind Kind, args []string) bool {
	sh.logger.WithField("command", kind.String()).Debug("dispatch")

	switch kind {
	case KindHelp:
		renderHelp(sh.out)
	case KindStatus:
		sched := sh.sim.Scheduler()
		renderStatus(sh.out, sh.sim.Cluster().Nodes(), sh.sim.Clock().Now(), sched.Score(), sched.Cost())
	case KindLsJobs:
		renderJobs(sh.out, "Pending Jobs", sh.sim.Scheduler().Pending())
	case KindCompletedJobs:
		renderJobs(sh.out, "Completed Jobs", sh.sim.Scheduler().CompletedJobs())
	case KindFailedJobs:
		renderJobs(sh.out, "Failed Jobs", sh.sim.Scheduler().FailedJobs())
	case KindShowJob:
		sh.showJob(args)
	case KindSubmit:
		sh.submit(args)
	case KindCancel:
		sh.cancel(args)
	case KindDebug:
		sh.debug(args)
	case KindConvertOnnx:
		sh.convertOnnx(args)
	case KindTerraform:
		sh.terraform(args)
	case KindEditTerraform:
		sh.println("Current main.tf:\n%s", sh.sim.Infra().Config())
		sh.println("Enter the new configuration (type '%s' on a new line to finish):", endMarker)
		sh.sim.Infra().SetConfig(sh.readBlock())
		sh.println("Terraform configuration updated.")
	case KindCat:
		sh.cat(args)
	case KindEditPrometheus:
		sh.println("Current prometheus.yml:\n%s", sh.sim.MonitoringConfig())
		sh.println("Enter the new configuration (type '%s' on a new line to finish):", endMarker)
		sh.sim.SetMonitoringConfig(sh.readBlock())
		sh.println("Prometheus configuration updated. Run `restart-prometheus` to apply it.")
	case KindRestartPrometheus:
		cfg, err := sh.sim.RestartMonitoring()
		if err != nil {
			sh.fail(err)
			break
		}
		sh.println("Prometheus restarted. Scraping %d job(s):", len(cfg.ScrapeConfigs))
		for _, sc := range cfg.ScrapeConfigs {
			sh.println("  %s -> %s", sc.JobName, strings.Join(sc.Targets(), ", "))
		}
	case KindAutoscale:
		sh.autoscale(args)
	case KindCost:
		sh.println("Total accumulated cost: $%.2f", sh.sim.Scheduler().Cost())
	case KindMetrics:
		if len(args) == 1 && args[0] == "raw" {
			if err := sh.exporter.WriteText(sh.out); err != nil {
				sh.fail(err)
			}
			break
		}
		renderMetrics(sh.out, sh.sim.Scheduler().Metrics())
	case KindLog:
		renderLog(sh.out, sh.sim.Events().Recent(10))
	case KindTutorial:
		sh.tutorial(args)
	case KindNext:
		if !sh.sim.Lessons().Active() {
			sh.println("No tutorial is running.")
		}
	case KindDocs:
		sh.println("No documentation quote for this step.")
	case KindSave:
		sh.save(ctx, args)
	case KindLoad:
		sh.load(ctx, args)
	case KindExit:
		sh.println("Exiting. Goodbye!")
		return false
	default:
		if len(args) > 0 {
			sh.println("Unknown command: '%s'. Type `help` for a list of commands.", args[0])
		}
	}
	return true
}

func (sh *Shell) showJob(args []string) {
	if len(args) != 1 {
		sh.println("Usage: show-job <job_id>")
		return
	}
	job := sh.sim.Scheduler().GetJob(args[0])
	if job == nil {
		sh.println("Job '%s' not found.", args[0])
		return
	}
	renderJob(sh.out, job)
}

func (sh *Shell) submit(args []string) {
	if len(args) != 2 {
		sh.println("Usage: submit <job_id> <node_id>")
		return
	}
	err := sh.sim.Scheduler().Submit(args[0], args[1])
	switch {
	case err == nil:
		sh.println("Job '%s' submitted successfully.", args[0])
	case errors.Is(err, models.ErrResourceConflict):
		job := sh.sim.Scheduler().GetJob(args[0])
		sh.println("Failed to submit job '%s': %s. The job has failed.", args[0], job.ErrorMessage)
	default:
		sh.fail(err)
	}
}

func (sh *Shell) cancel(args []string) {
	if len(args) != 1 {
		sh.println("Usage: cancel <job_id>")
		return
	}
	if err := sh.sim.Scheduler().Cancel(args[0]); err != nil {
		sh.fail(err)
		return
	}
	sh.println("Job '%s' cancelled.", args[0])
}

func (sh *Shell) debug(args []string) {
	if len(args) != 1 {
		sh.println("Usage: debug <job_id>")
		return
	}
	job := sh.sim.Scheduler().GetJob(args[0])
	if job == nil || job.Status != models.JobStatusFailed {
		sh.println("Job not found or has not failed.")
		return
	}
	sh.println("Error for job '%s': %s", job.ID, job.ErrorMessage)
}

func (sh *Shell) convertOnnx(args []string) {
	if len(args) != 1 {
		sh.println("Usage: convert-onnx <job_id>")
		return
	}
	job, err := sh.sim.Scheduler().ConvertToOnnx(args[0])
	if err != nil {
		sh.fail(err)
		return
	}
	sh.println("Created new ONNX job '%s' with reduced resource needs.", job.ID)
}

func (sh *Shell) cat(args []string) {
	if len(args) != 1 {
		sh.println("Usage: cat <main.tf|prometheus.yml>")
		return
	}
	switch args[0] {
	case "main.tf":
		sh.println("%s", strings.TrimRight(sh.sim.Infra().Config(), "\n"))
	case "prometheus.yml":
		sh.println("%s", strings.TrimRight(sh.sim.MonitoringConfig(), "\n"))
	default:
		sh.println("cat: %s: No such file", args[0])
	}
}

func (sh *Shell) autoscale(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		sh.println("Usage: autoscale <on|off>")
		return
	}
	sh.sim.Scheduler().SetAutoscaling(args[0] == "on")
	state := "disabled"
	if sh.sim.Scheduler().Autoscaling() {
		state = "enabled"
	}
	sh.println("Autoscaling is now %s.", state)
}

func (sh *Shell) tutorial(args []string) {
	engine := sh.sim.Lessons()
	if len(args) == 0 || args[0] == "list" {
		renderLessons(sh.out, engine)
		return
	}
	if len(args) != 2 || (args[0] != "show" && args[0] != "start") {
		sh.println("Usage: tutorial [list|show <id>|start <id>]")
		return
	}

	if args[0] == "show" {
		lesson, ok := engine.Registry().Get(args[1])
		if !ok {
			sh.println("Tutorial '%s' not found.", args[1])
			return
		}
		sh.println("Skills for tutorial: %s", lesson.Name)
		for _, skill := range lesson.Skills {
			sh.println("- %s", skill)
		}
		return
	}

	lesson, err := engine.Start(args[1])
	if err != nil {
		sh.fail(err)
		return
	}
	sh.println("Starting tutorial: '%s'...", lesson.Name)
}

func (sh *Shell) save(ctx context.Context, args []string) {
	if sh.store == nil {
		sh.println("Saving is disabled.")
		return
	}
	slot := ""
	if len(args) > 0 {
		slot = args[0]
	}
	if err := sh.store.Save(ctx, slot, sh.sim.Snapshot()); err != nil {
		sh.fail(err)
		return
	}
	sh.sim.Events().Record("Game saved.")
	sh.println("Game saved.")
}

func (sh *Shell) load(ctx context.Context, args []string) {
	if sh.store == nil {
		sh.println("Loading is disabled.")
		return
	}
	slot := ""
	if len(args) > 0 {
		slot = args[0]
	}
	state, err := sh.store.Load(ctx, slot)
	if errors.Is(err, models.ErrNotFound) {
		sh.println("No saved game found.")
		return
	}
	if err != nil {
		sh.fail(err)
		return
	}
	if err := sh.sim.Restore(state); err != nil {
		sh.fail(err)
		return
	}
	sh.sim.Events().Record("Game loaded.")
	sh.println("Game loaded.")
}
