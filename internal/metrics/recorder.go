// Package metrics records run outcomes as Prometheus metrics. A CLI run is
// short lived, so the registry is written to a node-exporter textfile at exit
// instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/errors"
)

const namespace = "cost_parker"

type Recorder struct {
	registry *prometheus.Registry

	results      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	retryWait    prometheus.Counter
	costDelta    *prometheus.GaugeVec
	hourlyCost   *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
	partialFails *prometheus.CounterVec
}

// NewRecorder builds a Recorder on its own registry. project is attached as a
// constant label to every series.
func NewRecorder(project string) *Recorder {
	labels := prometheus.Labels{"project": project}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "resource_results_total",
			Help:        "Driver results by command, kind, action and outcome.",
			ConstLabels: labels,
		}, []string{"command", "kind", "action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "resource_duration_seconds",
			Help:        "Time spent on one resource within a run.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"command", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "api_retries_total",
			Help:        "Retried remote calls by operation and error code.",
			ConstLabels: labels,
		}, []string{"operation", "code"}),
		retryWait: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "api_retry_wait_seconds_total",
			Help:        "Total backoff time spent before retries.",
			ConstLabels: labels,
		}),
		costDelta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cost_delta_usd_per_hour",
			Help:        "Estimated hourly cost change of the last run.",
			ConstLabels: labels,
		}, []string{"command", "dry_run"}),
		hourlyCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "hourly_cost_usd",
			Help:        "Estimated hourly cost after the last run.",
			ConstLabels: labels,
		}, []string{"command", "dry_run"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}, []string{"command"}),
		partialFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "partial_failures_total",
			Help:        "Runs that finished with at least one failed resource.",
			ConstLabels: labels,
		}, []string{"command"}),
	}
	r.registry.MustRegister(
		r.results, r.duration, r.retries, r.retryWait,
		r.costDelta, r.hourlyCost, r.lastRun, r.partialFails,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for tests or a push gateway.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveResult(cmd domain.Command, res domain.OperationResult) {
	outcome := "ok"
	if res.Failed() {
		outcome = string(errors.GetCode(res.Err))
	}
	r.results.WithLabelValues(cmd.String(), res.Kind.String(), res.Action.String(), outcome).Inc()
	r.duration.WithLabelValues(cmd.String(), res.Kind.String()).Observe(res.Duration.Seconds())
}

func (r *Recorder) ObserveRetry(operation string, err error, wait time.Duration) {
	r.retries.WithLabelValues(operation, string(errors.GetCode(err))).Inc()
	r.retryWait.Add(wait.Seconds())
}

func (r *Recorder) ObserveRun(report *domain.OperationReport) {
	if report == nil {
		return
	}
	dry := "false"
	if report.DryRun {
		dry = "true"
	}
	cmd := report.Command.String()
	r.costDelta.WithLabelValues(cmd, dry).Set(report.TotalCostDeltaPerHour)
	r.hourlyCost.WithLabelValues(cmd, dry).Set(report.TotalHourlyCost)
	r.lastRun.WithLabelValues(cmd).Set(float64(report.FinishedAt.Unix()))
	if report.PartialFailure {
		r.partialFails.WithLabelValues(cmd).Inc()
	}
}

// WriteTextfile writes every series to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to write metrics textfile")
	}
	return nil
}
