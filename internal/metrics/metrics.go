package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// dispatchTotal counts dispatch outcomes.
	// Labels:
	// - provider: api | smtp | none
	// - result: sent | not_configured | failed
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfmail",
			Subsystem: "email",
			Name:      "dispatch_total",
			Help:      "Email dispatch attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// dispatchErrorsTotal counts transport failures by diagnosed class.
	dispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfmail",
			Subsystem: "email",
			Name:      "dispatch_errors_total",
			Help:      "Email transport failures by provider and error class.",
		},
		[]string{"provider", "class"},
	)

	// remindersTotal counts per-loan scanner outcomes.
	// Labels:
	// - result: sent | throttled | failed | skipped
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfmail",
			Subsystem: "reminder",
			Name:      "loans_total",
			Help:      "Overdue loans processed by the scanner, by outcome.",
		},
		[]string{"result"},
	)

	// scanDurationSeconds observes the duration of one overdue scan.
	scanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shelfmail",
		Subsystem: "reminder",
		Name:      "scan_duration_seconds",
		Help:      "Duration of one overdue scan in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// scanRunsTotal counts scanner invocations by result.
	// Labels:
	// - result: ok | error | locked
	scanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfmail",
			Subsystem: "reminder",
			Name:      "scan_runs_total",
			Help:      "Overdue scan runs by result.",
		},
		[]string{"result"},
	)
)

// IncDispatch increments the dispatch outcome counter.
func IncDispatch(provider, result string) {
	if provider == "" {
		provider = "none"
	}
	dispatchTotal.WithLabelValues(provider, result).Inc()
}

// IncDispatchError increments the transport failure counter.
func IncDispatchError(provider, class string) {
	if class == "" {
		class = "unknown"
	}
	dispatchErrorsTotal.WithLabelValues(provider, class).Inc()
}

// AddReminders adds n to the reminder outcome counter.
func AddReminders(result string, n int) {
	if n <= 0 {
		return
	}
	remindersTotal.WithLabelValues(result).Add(float64(n))
}

// ObserveScan records one scan's duration in seconds.
func ObserveScan(seconds float64) { scanDurationSeconds.Observe(seconds) }

// IncScanRun increments the scan run counter.
func IncScanRun(result string) { scanRunsTotal.WithLabelValues(result).Inc() }

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
