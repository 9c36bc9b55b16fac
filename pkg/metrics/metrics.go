package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Term is the current term this node has observed.
	Term = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_term",
			Help: "Current term observed by the node",
		},
		[]string{"node_id"},
	)

	// IsLeader is 1 if this node believes it is the current leader, 0 otherwise.
	IsLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = not leader)",
		},
		[]string{"node_id"},
	)

	// CommitIndex is the highest log index known to be committed.
	CommitIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_commit_index",
			Help: "Highest log index known to be committed",
		},
		[]string{"node_id"},
	)

	// LastApplied is the highest log index applied to the state machine.
	LastApplied = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_last_applied",
			Help: "Highest log index applied to the state machine",
		},
		[]string{"node_id"},
	)

	// LogLength is the number of entries currently held in the log store.
	LogLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_log_length",
			Help: "Number of entries currently held in the log store",
		},
		[]string{"node_id"},
	)

	// ElectionsStartedTotal counts how many elections a node started,
	// including each restarted election while it stays a candidate.
	ElectionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_elections_started_total",
			Help: "Total number of elections started by this node",
		},
		[]string{"node_id"},
	)

	// ElectionsWonTotal counts how many elections resulted in this node becoming leader.
	ElectionsWonTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_elections_won_total",
			Help: "Total number of elections won by this node",
		},
		[]string{"node_id"},
	)

	// AppendEntriesRejectedTotal counts AppendEntries RPCs this node rejected.
	AppendEntriesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_append_entries_rejected_total",
			Help: "Total number of AppendEntries RPCs rejected by this node",
		},
		[]string{"node_id"},
	)

	// ApplyDuration tracks how long each apply-pump batch takes.
	ApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raft_apply_duration_seconds",
			Help:    "Time taken to drain the commit-to-apply pump per update() call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_id"},
	)
)

func init() {
	prometheus.MustRegister(Term)
	prometheus.MustRegister(IsLeader)
	prometheus.MustRegister(CommitIndex)
	prometheus.MustRegister(LastApplied)
	prometheus.MustRegister(LogLength)
	prometheus.MustRegister(ElectionsStartedTotal)
	prometheus.MustRegister(ElectionsWonTotal)
	prometheus.MustRegister(AppendEntriesRejectedTotal)
	prometheus.MustRegister(ApplyDuration)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
