package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(convertDurationSeconds, entitiesParsedTotal, boqExceptionsTotal) }

var convertDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "boq_convert_duration_seconds",
		Help:    "DWG to DXF conversion duration, labeled by converter and success.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"converter", "success"},
)

var entitiesParsedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "boq_dxf_entities_parsed_total",
		Help: "DXF entities parsed, labeled by entity type.",
	},
	[]string{"type"},
)

var boqExceptionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "boq_validation_exceptions_total",
		Help: "BOQ rows flagged by validation.",
	},
)

func ObserveConvert(converter string, d time.Duration, ok bool) {
	success := "false"
	if ok {
		success = "true"
	}
	convertDurationSeconds.WithLabelValues(norm(converter), success).Observe(d.Seconds())
}

func AddEntitiesParsed(entityType string, n int) {
	entitiesParsedTotal.WithLabelValues(norm(entityType)).Add(float64(n))
}

func AddValidationExceptions(n int) { boqExceptionsTotal.Add(float64(n)) }
