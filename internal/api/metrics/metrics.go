// Package metrics defines and registers all custom Prometheus metrics for the
// Projexia API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// when the package is first imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "projexia"

// ── Activity metrics ──────────────────────────────────────────────────────────

// ActivityRecordedTotal counts activity entries persisted by the dispatcher.
// Label:
//   - kind: the activity kind (e.g. "task.created", "member.removed")
var ActivityRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_recorded_total",
		Help:      "Total number of activity entries persisted.",
	},
	[]string{"kind"},
)

// ActivityErrorsTotal counts activity entries that could not be persisted or queued.
// Label:
//   - reason: short description of the failure ("insert_failed", "dropped")
var ActivityErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_errors_total",
		Help:      "Total number of activity entries that failed.",
	},
	[]string{"reason"},
)

// ActivityQueueDepth tracks the number of entries waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var ActivityQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "activity_queue_depth",
		Help:      "Current number of activity entries pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ActivityProcessingDuration measures how long a single entry takes to persist.
var ActivityProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "activity_processing_duration_seconds",
		Help:      "Duration of activity persistence from dequeue to insert.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// ── Project metrics ───────────────────────────────────────────────────────────

// ProjectsCreatedTotal counts newly created projects.
var ProjectsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "projects_created_total",
		Help:      "Total number of projects created.",
	},
)

// MembersInvitedTotal counts members added to existing projects.
// Label:
//   - role: "admin", "member" or "viewer"
var MembersInvitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "members_invited_total",
		Help:      "Total number of members invited, by role.",
	},
	[]string{"role"},
)

// ProjectCacheTotal counts project view cache lookups.
// Label:
//   - result: "hit" or "miss"
var ProjectCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "project_cache_total",
		Help:      "Total number of project view cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Task metrics ──────────────────────────────────────────────────────────────

// TasksCreatedTotal counts newly created tasks.
// Label:
//   - status: the initial status of the task
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created, by initial status.",
	},
	[]string{"status"},
)

// TaskStatusTransitionsTotal counts status changes applied to tasks.
var TaskStatusTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_status_transitions_total",
		Help:      "Total number of task status changes, by source and target status.",
	},
	[]string{"from", "to"},
)

// CommentsAddedTotal counts comments appended to tasks.
var CommentsAddedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_added_total",
		Help:      "Total number of comments added to tasks.",
	},
)

// IdempotencyTotal counts idempotency key lookups on create endpoints.
// Labels:
//   - scope: "project" or "task"
//   - result: "hit" (replayed), "miss" (new resource) or "in_progress" (rejected)
var IdempotencyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_total",
		Help:      "Total number of idempotency key lookups, labelled by scope and result.",
	},
	[]string{"scope", "result"},
)
