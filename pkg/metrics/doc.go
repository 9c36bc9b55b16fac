/*
Package metrics provides Prometheus metrics for the raft engine.

The metrics package defines and registers a small set of gauges, counters, and
one histogram using the Prometheus client library, giving hosts visibility into
per-node term, leadership, replication progress, and apply latency. Metrics are
exposed via HTTP for scraping. The raft engine imports this package and updates
the counters and the apply-duration histogram itself, at the moment each event
happens; the gauges are set by the host (see cmd/raftdemo).

# Metrics Catalog

raft_term{node_id}:
  - Type: Gauge
  - Current term observed by the node.

raft_is_leader{node_id}:
  - Type: Gauge
  - 1 if this node believes it is the current leader, 0 otherwise.

raft_commit_index{node_id}:
  - Type: Gauge
  - Highest log index known to be committed.

raft_last_applied{node_id}:
  - Type: Gauge
  - Highest log index applied to the state machine.

raft_log_length{node_id}:
  - Type: Gauge
  - Number of entries currently held in the log store.

raft_elections_started_total{node_id}:
  - Type: Counter
  - Total elections this node started, including restarted elections.

raft_elections_won_total{node_id}:
  - Type: Counter
  - Total elections this node won (became leader).

raft_append_entries_rejected_total{node_id}:
  - Type: Counter
  - Total AppendEntries RPCs rejected by this node.

raft_apply_duration_seconds{node_id}:
  - Type: Histogram
  - Time taken to drain the commit-to-apply pump per update() call.

# Usage

	timer := metrics.NewTimer()
	// ... timed work ...
	timer.ObserveDurationVec(metrics.ApplyDuration, nodeID)

	metrics.Term.WithLabelValues(nodeID).Set(float64(engine.CurrentTerm()))
	metrics.CommitIndex.WithLabelValues(nodeID).Set(float64(engine.CommitIndex()))

	http.Handle("/metrics", metrics.Handler())

# Monitoring

Has leader: max(raft_is_leader) by (node_id) > 0 across the cluster.
Leader churn: changes(raft_is_leader[10m]) > 3 suggests unstable elections
or a too-short election timeout relative to network latency.
Replication lag: raft_commit_index - raft_last_applied, sustained growth
means the apply pump is falling behind the log.
*/
package metrics
