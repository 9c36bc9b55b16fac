/*
Package raft implements the core of the Raft consensus protocol: leader
election, log replication, and commit ordering across a fixed cluster of
peer nodes. Given a durable LogStore and an application-supplied ApplyFunc,
an Engine guarantees that every correct node executes the same sequence of
proposed commands in the same order, even under message loss, reordering,
duplication, and node crash/restart.

# Architecture

	┌──────────────────────── ENGINE ───────────────────────────┐
	│                                                             │
	│   inbound queue ──► dispatch (term guard, membership)      │
	│                          │                                 │
	│                          ▼                                 │
	│              ┌───────────────────────┐                     │
	│              │   current role        │  Follower           │
	│              │   (swapped on          │  Candidate          │
	│              │    transition)         │  Leader             │
	│              └───────────┬───────────┘                     │
	│                          │ emits                           │
	│                          ▼                                 │
	│                  outbound buffer (caller-owned, sorted     │
	│                  by peer id then message kind)              │
	│                                                             │
	│   commit_index ──► apply pump ──► ApplyFunc(index, payload) │
	│                                                             │
	│   LogStore: Append / Truncate / Entries / TermAt /          │
	│             LastIndex / LastTerm / SetVote / LoadVote       │
	└─────────────────────────────────────────────────────────────┘

One logical owner drives an Engine by calling Update, Receive, and Propose;
these must never run concurrently on the same Engine (§5). Update performs
one productive step per call — one timer check, at most one queued message,
one apply-pump pass — and returns the earliest time it should be called
again, so a host can drive the loop as tightly or as loosely as it needs.

# Roles

Follower, Candidate, and Leader are each a small struct satisfying the role
interface (role.go): onEntry, onExit, tick, handle, nextTickAt. The Engine
holds exactly one role value and swaps it via setNextRole; no role holds a
pointer back to the Engine, every role method takes it as a parameter
instead, so there are no reference cycles.

# Determinism

Election timeouts are drawn from a seedable generator (rand.go) so tests can
reproduce exact interleavings. Timers are stored as absolute deadlines, never
durations measured against "last tick", keeping the engine's behavior a pure
function of the sequence of (now, inbound message) pairs it is fed.
*/
package raft
