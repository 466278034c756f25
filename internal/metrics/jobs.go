package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsSubmittedTotal, jobSubmissionFailuresTotal, jobNotificationsTotal, generationTasksTotal,
		taskQueueDepth, taskQueueRejectionsTotal)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Generation jobs accepted by the submission endpoint, by kind.",
		},
		[]string{"kind"},
	)

	jobSubmissionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_submission_failures_total",
			Help: "Submissions that failed before the worker accepted them, by kind.",
		},
		[]string{"kind"},
	)

	jobNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_notifications_total",
			Help: "One-shot job notifications raised, by kind and terminal status.",
		},
		[]string{"kind", "status"},
	)

	generationTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tasks_total",
			Help: "Generation tasks run by the server worker pool, by kind and outcome.",
		},
		[]string{"kind", "status"}, // 'completed', 'failed'
	)

	taskQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_task_queue_depth",
			Help: "Generation tasks waiting for a worker.",
		},
	)

	taskQueueRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_task_queue_rejections_total",
			Help: "Tasks refused by the queue, by reason.",
		},
		[]string{"reason"}, // 'full', 'closed'
	)
)

func IncJobSubmitted(kind string) {
	jobsSubmittedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobSubmissionFailure(kind string) {
	jobSubmissionFailuresTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobNotification(kind, status string) {
	jobNotificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncGenerationTask(kind, status string) {
	generationTasksTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func SetTaskQueueDepth(n int) {
	taskQueueDepth.Set(float64(n))
}

func IncTaskQueueRejection(reason string) {
	taskQueueRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}
