/*
Package log provides structured logging for the raft engine and its host tooling
using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("raft")                    │          │
	│  │  - WithNodeID("node-3")                     │          │
	│  │  - WithPeerID(7)                            │          │
	│  │  - WithTerm(42)                             │          │
	│  └──────────────────▼─────────────────────────┘          │
	│                                                            │
	│  JSON Format:                                             │
	│  {"level":"info","component":"raft","node_id":"3",        │
	│   "term":42,"message":"became leader"}                    │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	engineLog := log.WithComponent("raft").With().Uint64("node_id", nodeID).Logger()
	engineLog.Info().Uint64("term", term).Msg("became leader")
	engineLog.Debug().Str("from", from.String()).Msg("dropped stale message")

Each raft.Engine is constructed with its own child logger (see Config.Logger in
package raft) so that several engines running in one process — as the demo
harness does — produce distinguishable logs without a shared mutable global
component name.

# Log Levels

Debug is for per-message traffic (accepted/rejected RPCs, dropped stale
messages). Info is for state transitions (role changes, term changes, new
leader). Warn is reserved for conditions a human should glance at but that do
not stop progress. Error marks operations that failed, including log I/O
failures, which callers should treat as fatal for the owning engine.
*/
package log
