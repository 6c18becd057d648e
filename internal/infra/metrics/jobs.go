package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsSubmittedTotal, jobsProcessedTotal, jobsRequeuedTotal, jobDurationSeconds, uploadBytes)
}

var jobsSubmittedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "boq_jobs_submitted_total",
		Help: "Total number of jobs accepted by the upload endpoint.",
	},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "boq_jobs_processed_total",
		Help: "Total number of jobs finished by workers, labeled by status.",
	},
	[]string{"status"}, // 'done', 'failed', 'retried'
)

var jobsRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "boq_jobs_requeued_total",
		Help: "Jobs re-enqueued by the stale-job sweeper.",
	},
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "boq_job_duration_seconds",
		Help:    "End-to-end pipeline duration per job.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
)

var uploadBytes = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "boq_upload_bytes",
		Help:    "Size distribution of uploaded drawings.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	},
)

func IncJobSubmitted()      { jobsSubmittedTotal.Inc() }
func IncJobRequeued(n int)  { jobsRequeuedTotal.Add(float64(n)) }
func ObserveUpload(n int64) { uploadBytes.Observe(float64(n)) }

func IncJobProcessed(status string, d time.Duration) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationSeconds.Observe(d.Seconds())
}
