package observability

import "github.com/prometheus/client_golang/prometheus"

// Release reasons used as the "reason" label of LockReleases.
const (
	ReasonManual   = "manual"
	ReasonWatchdog = "watchdog"
	ReasonJanitor  = "janitor"
	ReasonDeleted  = "deleted"
)

var (
	// LockAcquires counts acquire attempts by result (acquired, held, unknown, error).
	LockAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdfast_lock_acquire_total",
		Help: "Total number of lock acquire attempts",
	}, []string{"result"})

	// LockReleases counts successful releases by reason.
	LockReleases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdfast_lock_release_total",
		Help: "Total number of lock releases",
	}, []string{"reason"})

	// LockHeld is 1 while a session holds the lock.
	LockHeld = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "holdfast_lock_held",
		Help: "Whether the exclusive lock is currently held",
	})

	// EventsPublished counts change events by type.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdfast_events_published_total",
		Help: "Total number of change events published",
	}, []string{"type"})

	// CorruptRecords counts persisted records that could not be decoded.
	CorruptRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdfast_store_corrupt_records_total",
		Help: "Total number of unreadable session records treated as absent",
	})

	// SessionsEvicted counts sessions removed by the janitor.
	SessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdfast_sessions_evicted_total",
		Help: "Total number of idle sessions evicted by the janitor",
	})

	// TokensIssued counts admission tokens issued.
	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdfast_tokens_issued_total",
		Help: "Total number of admission tokens issued",
	})

	// TokensRejected counts admission attempts with an invalid token.
	TokensRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdfast_tokens_rejected_total",
		Help: "Total number of admission attempts rejected",
	})

	// Connections reports the number of open realtime connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "holdfast_realtime_connections",
		Help: "Current number of open realtime connections",
	})

	// StoreDuration observes session store call latency by operation.
	StoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "holdfast_store_operation_duration_seconds",
		Help:    "Latency of session store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// StoreErrors counts failed session store calls by operation and kind (not_found, corrupt, unavailable, other).
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdfast_store_errors_total",
		Help: "Total number of failed session store operations",
	}, []string{"op", "kind"})

	// DroppedConnections counts realtime connections closed because a send failed or lagged.
	DroppedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdfast_realtime_dropped_total",
		Help: "Total number of realtime connections dropped by the broadcaster",
	})
)

// NewRegistry creates a new Prometheus registry with the holdfast collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	Register(reg)
	return reg
}

// Register registers the holdfast collectors on the provided registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		LockAcquires,
		LockReleases,
		LockHeld,
		EventsPublished,
		CorruptRecords,
		SessionsEvicted,
		TokensIssued,
		TokensRejected,
		Connections,
		DroppedConnections,
		StoreDuration,
		StoreErrors,
	)
}
