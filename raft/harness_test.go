package raft

import (
	"testing"
	"time"
)

// testNode bundles an Engine with the plumbing a test needs to drive it by
// hand: its log store (for inspecting replicated state) and a record of
// what the apply callback has delivered.
type testNode struct {
	id      NodeId
	engine  *Engine
	log     *MemoryLog
	applied []Entry
}

type nodeOpts struct {
	minElection time.Duration
	maxElection time.Duration
	heartbeat   time.Duration
	seed        uint64
}

func defaultNodeOpts(seed uint64) nodeOpts {
	return nodeOpts{
		minElection: 150 * time.Millisecond,
		maxElection: 150 * time.Millisecond,
		heartbeat:   50 * time.Millisecond,
		seed:        seed,
	}
}

func newTestNode(t *testing.T, id NodeId, buddies []NodeId, opts nodeOpts) *testNode {
	t.Helper()
	tn := &testNode{id: id, log: NewMemoryLog()}
	e, err := NewEngine(Config{
		SelfID:             id,
		BuddyIDs:           buddies,
		MinElectionTimeout: opts.minElection,
		MaxElectionTimeout: opts.maxElection,
		HeartbeatTimeout:   opts.heartbeat,
		MaxWaitEntries:     8,
		MaxPacketEntries:   8,
		MaxPacketBytes:     1 << 16,
		RandomSeed:         opts.seed,
		Log:                tn.log,
		Apply: func(index Index, payload []byte) {
			cp := make([]byte, len(payload))
			copy(cp, payload)
			tn.applied = append(tn.applied, Entry{Index: index, Payload: cp})
		},
	})
	if err != nil {
		t.Fatalf("NewEngine(%d): %v", id, err)
	}
	tn.engine = e
	return tn
}

func (tn *testNode) initialize(t *testing.T, now time.Time) {
	t.Helper()
	if err := tn.engine.Initialize(now); err != nil {
		t.Fatalf("node %d Initialize: %v", tn.id, err)
	}
}

// drainOnce calls Update exactly once, returning the outbound messages and
// next-tick time.
func (tn *testNode) drainOnce(t *testing.T, now time.Time) ([]Message, time.Time) {
	t.Helper()
	var out []Message
	next, err := tn.engine.Update(now, &out)
	if err != nil {
		t.Fatalf("node %d Update: %v", tn.id, err)
	}
	return out, next
}

// drainUntilQuiet repeatedly calls Update at a fixed timestamp until no
// more work remains (next_tick_at > now), collecting all outbound
// messages produced along the way. This models a host "driving the loop
// tightly" per spec §4.4.
func (tn *testNode) drainUntilQuiet(t *testing.T, now time.Time) []Message {
	t.Helper()
	var all []Message
	for i := 0; i < 100; i++ {
		out, next := tn.drainOnce(t, now)
		all = append(all, out...)
		if next.After(now) {
			return all
		}
	}
	t.Fatalf("node %d did not quiesce at %v after 100 steps", tn.id, now)
	return all
}

func deliver(t *testing.T, nodes map[NodeId]*testNode, msgs []Message) {
	t.Helper()
	for _, m := range msgs {
		dest, ok := nodes[m.To()]
		if !ok {
			continue
		}
		if err := dest.engine.Receive(m); err != nil {
			t.Fatalf("node %d Receive: %v", m.To(), err)
		}
	}
}

func baseTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}
