// Package metrics exposes the simulation as Prometheus gauges.
package metrics

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/opsim/pkg/models"
	"github.com/psantana5/opsim/pkg/sim"
)

// jobStatuses are always exported, even at zero
var jobStatuses = []models.JobStatus{
	models.JobStatusPending,
	models.JobStatusRunning,
	models.JobStatusCompleted,
	models.JobStatusFailed,
}

// Exporter publishes simulation gauges on its own registry
type Exporter struct {
	registry *prometheus.Registry

	time          prometheus.Gauge
	score         prometheus.Gauge
	cost          prometheus.Gauge
	avgCompletion prometheus.Gauge
	autoscaling   prometheus.Gauge
	lessonsDone   prometheus.Gauge
	nodes         *prometheus.GaugeVec
	jobs          *prometheus.GaugeVec
	nodeCapacity  *prometheus.GaugeVec
	nodeAvailable *prometheus.GaugeVec
	nodeJobs      *prometheus.GaugeVec
}

// NewExporter creates the collectors and registers them
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		time: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_time_ticks",
			Help: "Simulated time in ticks",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_score",
			Help: "Current score",
		}),
		cost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_cost_total",
			Help: "Accumulated infrastructure cost",
		}),
		avgCompletion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_job_completion_ticks_avg",
			Help: "Average ticks from submission to completion",
		}),
		autoscaling: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_autoscaling_enabled",
			Help: "1 when autoscaling is on",
		}),
		lessonsDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsim_lessons_completed",
			Help: "Number of completed lessons",
		}),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsim_nodes",
			Help: "Nodes in the cluster by whether the reconciler manages them",
		}, []string{"managed"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsim_jobs",
			Help: "Jobs by status",
		}, []string{"status"}),
		nodeCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsim_node_capacity",
			Help: "Total node capacity by resource",
		}, []string{"node", "resource"}),
		nodeAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsim_node_available",
			Help: "Unallocated node capacity by resource",
		}, []string{"node", "resource"}),
		nodeJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsim_node_running_jobs",
			Help: "Jobs running on each node",
		}, []string{"node"}),
	}

	e.registry.MustRegister(
		e.time, e.score, e.cost, e.avgCompletion, e.autoscaling, e.lessonsDone,
		e.nodes, e.jobs, e.nodeCapacity, e.nodeAvailable, e.nodeJobs,
	)
	return e
}

// Observe copies the simulator's current state into the gauges.
// It must run on the goroutine that owns s.
func (e *Exporter) Observe(s *sim.Simulator) {
	summary := s.Scheduler().Metrics()
	e.time.Set(float64(summary.Time))
	e.score.Set(float64(summary.Score))
	e.cost.Set(summary.TotalCost)
	e.avgCompletion.Set(summary.AvgCompletionTime)
	e.lessonsDone.Set(float64(len(s.Lessons().Completed())))
	if s.Scheduler().Autoscaling() {
		e.autoscaling.Set(1)
	} else {
		e.autoscaling.Set(0)
	}

	counts := make(map[models.JobStatus]int)
	for _, job := range s.Scheduler().AllJobs() {
		counts[job.Status]++
	}
	for _, status := range jobStatuses {
		e.jobs.WithLabelValues(string(status)).Set(float64(counts[status]))
	}

	// Nodes come and go; drop series for nodes that no longer exist
	e.nodeCapacity.Reset()
	e.nodeAvailable.Reset()
	e.nodeJobs.Reset()
	managed, unmanaged := 0, 0
	for _, node := range s.Cluster().Nodes() {
		if node.Managed {
			managed++
		} else {
			unmanaged++
		}
		for _, kind := range models.ResourceKinds {
			e.nodeCapacity.WithLabelValues(node.ID, string(kind)).Set(float64(node.Resources.Get(kind)))
			e.nodeAvailable.WithLabelValues(node.ID, string(kind)).Set(float64(node.Available.Get(kind)))
		}
		e.nodeJobs.WithLabelValues(node.ID).Set(float64(len(node.RunningJobs)))
	}
	e.nodes.WithLabelValues("true").Set(float64(managed))
	e.nodes.WithLabelValues("false").Set(float64(unmanaged))
}

// WriteText renders every metric family in the Prometheus text format
func (e *Exporter) WriteText(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return errors.Wrapf(err, "failed to encode metric %s", mf.GetName())
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Handler serves GET /metrics and GET /health
func (e *Exporter) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	return router
}
