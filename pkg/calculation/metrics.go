package calculation

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcenergy_recalculations_total",
			Help: "Total number of project recalculation passes by outcome.",
		},
		[]string{"outcome"},
	)

	stepSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcenergy_step_skips_total",
			Help: "Total number of calculation steps skipped for missing data.",
		},
		[]string{"step", "reason"},
	)

	fieldWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcenergy_field_writes_total",
			Help: "Total number of calculated fields whose value changed.",
		},
		[]string{"record"},
	)

	projectPUE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dcenergy_project_pue_ratio",
			Help: "Power Usage Effectiveness per project.",
		},
		[]string{"project", "kind"},
	)

	registered uint32
)

// RegisterMetrics registers the engine metrics and exposes them on /metrics.
func RegisterMetrics(mux *http.ServeMux) {
	if atomic.CompareAndSwapUint32(&registered, 0, 1) {
		prometheus.MustRegister(recalculationsTotal, stepSkipsTotal, fieldWritesTotal, projectPUE)
	}
	mux.Handle("/metrics", promhttp.Handler())
}

func recordPUE(projectID, kind string, v *float64) {
	if v == nil {
		projectPUE.DeleteLabelValues(projectID, kind)
		return
	}
	projectPUE.WithLabelValues(projectID, kind).Set(*v)
}
