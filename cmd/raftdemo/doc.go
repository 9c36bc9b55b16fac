// Command raftdemo drives a small in-process Raft cluster for manual
// observation. It is not a deployment tool: every engine is a plain data
// structure in the same process, driven in turn from one loop, sharing one
// wall clock and an in-memory message bus instead of a network transport.
//
// Usage:
//
//	raftdemo run --config cluster.example.yaml
//
// With no --config, it starts a 3-node in-memory cluster with the timing
// defaults in config.go. Prometheus metrics are served at /metrics on the
// config file's metrics_addr (127.0.0.1:9090 by default); logs go to stdout via
// pkg/log, structured the same way the raft package itself logs.
package main
