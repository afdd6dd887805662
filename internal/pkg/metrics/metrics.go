// Package metrics defines and registers all custom Prometheus metrics for the
// fleet API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthOperationsTotal counts auth orchestrator calls by outcome.
// Labels:
//   - operation: register, login, refresh, logout, change_password
//   - result: "ok", "conflict", "unauthorized", "not_found", "invalid", "error"
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// AuthOperationDuration measures auth operation latency, dominated by bcrypt.
var AuthOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "auth_operation_duration_seconds",
		Help:      "Duration of auth operations, including hashing and store round-trips.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheLookupsTotal counts read-through lookups.
// Labels:
//   - namespace: key namespace (e.g. "user:profile", "vehicles:list")
//   - result: "hit", "miss", or "error" (cache unavailable, treated as miss)
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of cache lookups, labelled by key namespace and result.",
	},
	[]string{"namespace", "result"},
)

// CacheInvalidationsTotal counts invalidations.
// Label:
//   - mode: "scoped" (keys and prefixes), "flush" (fallback), or "failed"
var CacheInvalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Total number of cache invalidations, by mode.",
	},
	[]string{"mode"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the current number of session events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of session events pending in each audit worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsTotal counts session events by kind and outcome.
// Labels:
//   - kind: the session event kind (e.g. "login")
//   - result: "recorded", "dropped" (queue full), or "failed" (store error)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of session audit events, by kind and result.",
	},
	[]string{"kind", "result"},
)

// ── Vehicle metrics ───────────────────────────────────────────────────────────

// VehicleMutationsTotal counts successful vehicle writes.
// Label:
//   - operation: create, update, delete, assign_driver, unassign_driver
var VehicleMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vehicle_mutations_total",
		Help:      "Total number of vehicle mutations, by operation.",
	},
	[]string{"operation"},
)
