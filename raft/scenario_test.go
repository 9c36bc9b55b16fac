package raft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests implement the concrete scenarios A-F from the specification
// this engine is built against. In the scenarios that run a full election
// (A and B), node 1 is given a short, fixed election timeout and the
// remaining nodes a much longer one so that elections resolve
// deterministically without relying on who a test happens to tick first —
// the same effect randomized per-node timeouts give a real cluster, made
// explicit here for repeatability. Scenario D instead gives all four nodes
// the same randomized range with distinct seeds.

func fastOpts(seed uint64) nodeOpts {
	return nodeOpts{minElection: 150 * time.Millisecond, maxElection: 150 * time.Millisecond, heartbeat: 50 * time.Millisecond, seed: seed}
}

func slowOpts(seed uint64) nodeOpts {
	return nodeOpts{minElection: 5 * time.Second, maxElection: 5 * time.Second, heartbeat: 50 * time.Millisecond, seed: seed}
}

// runCluster ticks every node (in id order) at the same timestamp once per
// round, draining each to quiescence, then delivers all outbound messages
// before advancing to the next round's timestamp.
func runCluster(t *testing.T, nodes map[NodeId]*testNode, order []NodeId, now time.Time, rounds int, step time.Duration) time.Time {
	t.Helper()
	for i := 0; i < rounds; i++ {
		var all []Message
		for _, id := range order {
			all = append(all, nodes[id].drainUntilQuiet(t, now)...)
		}
		deliver(t, nodes, all)
		now = now.Add(step)
	}
	return now
}

func findLeader(nodes map[NodeId]*testNode) *testNode {
	for _, n := range nodes {
		if n.engine.Role() == RoleLeader {
			return n
		}
	}
	return nil
}

// Scenario A — three-node happy path.
func TestScenarioA_ThreeNodeHappyPath(t *testing.T) {
	now := baseTime()
	nodes := map[NodeId]*testNode{
		1: newTestNode(t, 1, []NodeId{2, 3}, fastOpts(1)),
		2: newTestNode(t, 2, []NodeId{1, 3}, slowOpts(2)),
		3: newTestNode(t, 3, []NodeId{1, 2}, slowOpts(3)),
	}
	for _, n := range nodes {
		n.initialize(t, now)
	}
	order := []NodeId{1, 2, 3}

	now = runCluster(t, nodes, order, now, 20, 20*time.Millisecond)

	leader := findLeader(nodes)
	require.NotNil(t, leader, "expected a leader to emerge")
	require.Equal(t, NodeId(1), leader.id, "node 1 has the short timeout and should win")
	require.Equal(t, Term(1), leader.engine.CurrentTerm())

	index, term, err := leader.engine.Propose([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, Index(1), index)
	require.Equal(t, Term(1), term)

	now = runCluster(t, nodes, order, now, 20, 20*time.Millisecond)

	for id, n := range nodes {
		require.Lenf(t, n.applied, 1, "node %d applied entries", id)
		require.Equal(t, Index(1), n.applied[0].Index)
		require.Equal(t, "x", string(n.applied[0].Payload))
	}
}

// Scenario B — leader crash and re-election.
func TestScenarioB_LeaderCrashReElection(t *testing.T) {
	now := baseTime()
	nodes := map[NodeId]*testNode{
		1: newTestNode(t, 1, []NodeId{2, 3}, fastOpts(1)),
		2: newTestNode(t, 2, []NodeId{1, 3}, slowOpts(2)),
		3: newTestNode(t, 3, []NodeId{1, 2}, slowOpts(3)),
	}
	for _, n := range nodes {
		n.initialize(t, now)
	}
	order := []NodeId{1, 2, 3}

	now = runCluster(t, nodes, order, now, 20, 20*time.Millisecond)
	leader := findLeader(nodes)
	require.Equal(t, NodeId(1), leader.id)

	_, _, err := nodes[1].engine.Propose([]byte("x"))
	require.NoError(t, err)
	now = runCluster(t, nodes, order, now, 20, 20*time.Millisecond)
	for _, n := range nodes {
		require.Len(t, n.applied, 1)
	}

	// Node 1 stops being ticked (simulating a crash) for a long stretch;
	// nodes 2 and 3 now both have equally long timeouts from their own
	// perspective, so give node 2 a short one for this phase to force a
	// deterministic winner, mirroring the original's staggered timeouts.
	n2 := nodes[2]
	n2.engine.cfg.MinElectionTimeout = 50 * time.Millisecond
	n2.engine.cfg.MaxElectionTimeout = 50 * time.Millisecond

	aliveOrder := []NodeId{2, 3}
	aliveNodes := map[NodeId]*testNode{2: nodes[2], 3: nodes[3]}
	later := now.Add(1000 * time.Millisecond)
	later = runCluster(t, aliveNodes, aliveOrder, later, 20, 20*time.Millisecond)

	newLeader := findLeader(aliveNodes)
	require.NotNil(t, newLeader, "one of the surviving nodes should become leader")
	require.Equal(t, NodeId(2), newLeader.id)
	require.Greater(t, newLeader.engine.CurrentTerm(), Term(1))

	index, term, err := newLeader.engine.Propose([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, Index(2), index)
	require.Equal(t, newLeader.engine.CurrentTerm(), term)

	later = runCluster(t, aliveNodes, aliveOrder, later, 20, 20*time.Millisecond)
	require.Len(t, nodes[3].applied, 2)

	// Resume node 1 much later; its stale AppendEntries bookkeeping must
	// accept the new leader's entries starting from where it left off.
	resume := later.Add(5 * time.Second)
	resumedNodes := map[NodeId]*testNode{1: nodes[1], 2: nodes[2], 3: nodes[3]}
	resume = runCluster(t, resumedNodes, []NodeId{1, 2, 3}, resume, 30, 20*time.Millisecond)

	require.Len(t, nodes[1].applied, 2, "resumed node 1 should catch up on entry 2")
	require.Equal(t, "y", string(nodes[1].applied[1].Payload))
}

// Scenario C — log divergence and truncation.
func TestScenarioC_LogDivergenceTruncation(t *testing.T) {
	now := baseTime()
	n3 := newTestNode(t, 3, []NodeId{1, 2}, fastOpts(3))
	require.NoError(t, n3.log.Append([]Entry{
		{Index: 1, Term: 1, Payload: []byte("a")},
		{Index: 2, Term: 2, Payload: []byte("b")},
		{Index: 3, Term: 2, Payload: []byte("c-prime")},
	}))
	n3.initialize(t, now)
	n3.engine.currentTerm = 3

	msg := &AppendEntriesReq{
		FromID:       1,
		ToID:         3,
		LeaderTerm:   3,
		PrevLogIndex: 2,
		PrevLogTerm:  2,
		Entries:      []Entry{{Index: 3, Term: 3, Payload: []byte("c")}},
		LeaderCommit: 0,
	}
	require.NoError(t, n3.engine.Receive(msg))
	var out []Message
	_, err := n3.engine.Update(now, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	resp := out[0].(*AppendEntriesResp)
	require.True(t, resp.Success)
	require.Equal(t, Index(3), resp.LastLogIndex)

	got, err := n3.log.Entries(1, 3)
	require.NoError(t, err)
	require.Equal(t, Term(2), got[1].Term)
	require.Equal(t, Term(3), got[2].Term)
	require.Equal(t, "c", string(got[2].Payload))
}

// Scenario D — split vote recovers. Four nodes, randomized (but distinct)
// timeouts; this test does not pin the exact split-then-resolve timeline
// (that depends on the PRNG's internal sequence) but asserts the safety
// property the scenario exists to demonstrate: despite ties, exactly one
// leader eventually emerges and no two nodes are ever leader in the same
// term.
func TestScenarioD_SplitVoteRecovers(t *testing.T) {
	now := baseTime()
	nodes := map[NodeId]*testNode{
		1: newTestNode(t, 1, []NodeId{2, 3, 4}, nodeOpts{minElection: 100 * time.Millisecond, maxElection: 250 * time.Millisecond, heartbeat: 20 * time.Millisecond, seed: 11}),
		2: newTestNode(t, 2, []NodeId{1, 3, 4}, nodeOpts{minElection: 100 * time.Millisecond, maxElection: 250 * time.Millisecond, heartbeat: 20 * time.Millisecond, seed: 22}),
		3: newTestNode(t, 3, []NodeId{1, 2, 4}, nodeOpts{minElection: 100 * time.Millisecond, maxElection: 250 * time.Millisecond, heartbeat: 20 * time.Millisecond, seed: 33}),
		4: newTestNode(t, 4, []NodeId{1, 2, 3}, nodeOpts{minElection: 100 * time.Millisecond, maxElection: 250 * time.Millisecond, heartbeat: 20 * time.Millisecond, seed: 44}),
	}
	for _, n := range nodes {
		n.initialize(t, now)
	}
	order := []NodeId{1, 2, 3, 4}

	leadersByTerm := map[Term]NodeId{}
	for i := 0; i < 50; i++ {
		now = runCluster(t, nodes, order, now, 1, 20*time.Millisecond)
		for id, n := range nodes {
			if n.engine.Role() == RoleLeader {
				term := n.engine.CurrentTerm()
				if existing, ok := leadersByTerm[term]; ok {
					require.Equal(t, existing, id, "two different nodes claimed leadership in term %d", term)
				} else {
					leadersByTerm[term] = id
				}
			}
		}
	}
	require.NotEmpty(t, leadersByTerm, "expected some node to become leader eventually")
}

// Scenario E — commit requires current-term (Raft Figure 8 hazard).
func TestScenarioE_CommitRequiresCurrentTerm(t *testing.T) {
	now := baseTime()
	n1 := newTestNode(t, 1, []NodeId{2, 3}, fastOpts(1))
	require.NoError(t, n1.log.Append([]Entry{
		{Index: 1, Term: 1, Payload: []byte("a")},
		{Index: 2, Term: 1, Payload: []byte("b")},
	}))
	n1.initialize(t, now)
	n1.engine.currentTerm = 2
	lead := newLeader()
	lead.progress.onBecomeLeader([]NodeId{2, 3}, n1.log.LastIndex(), now)
	n1.engine.currentRole = lead

	var out []Message
	require.NoError(t, n1.engine.Receive(&AppendEntriesResp{FromID: 2, ToID: 1, FollowerTerm: 2, LastLogIndex: 2, Success: true}))
	_, err := n1.engine.Update(now, &out)
	require.NoError(t, err)
	require.Equal(t, Index(0), n1.engine.CommitIndex(), "replicating an old-term entry to one peer must not commit it")

	out = nil
	require.NoError(t, n1.engine.Receive(&AppendEntriesResp{FromID: 3, ToID: 1, FollowerTerm: 2, LastLogIndex: 2, Success: true}))
	_, err = n1.engine.Update(now, &out)
	require.NoError(t, err)
	require.Equal(t, Index(0), n1.engine.CommitIndex(), "a majority on an old-term entry still must not commit")

	index, term, err := n1.engine.Propose([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, Index(3), index)
	require.Equal(t, Term(2), term)

	out = nil
	require.NoError(t, n1.engine.Receive(&AppendEntriesResp{FromID: 2, ToID: 1, FollowerTerm: 2, LastLogIndex: 3, Success: true}))
	_, err = n1.engine.Update(now, &out)
	require.NoError(t, err)

	out = nil
	require.NoError(t, n1.engine.Receive(&AppendEntriesResp{FromID: 3, ToID: 1, FollowerTerm: 2, LastLogIndex: 3, Success: true}))
	_, err = n1.engine.Update(now, &out)
	require.NoError(t, err)

	require.Equal(t, Index(3), n1.engine.CommitIndex(), "a current-term entry replicated to a majority commits it and everything before it")
	require.Len(t, n1.applied, 3)
}

// Scenario F — leader step-down on stale term.
func TestScenarioF_LeaderStepsDownOnStaleTerm(t *testing.T) {
	now := baseTime()
	n1 := newTestNode(t, 1, []NodeId{2, 3}, fastOpts(1))
	n1.initialize(t, now)
	n1.engine.currentTerm = 2
	n1.engine.votedFor = 1
	n1.engine.votedForSet = true
	n1.engine.leaderID = 1
	n1.engine.leaderIDSet = true
	lead := newLeader()
	lead.progress.onBecomeLeader([]NodeId{2, 3}, 0, now)
	n1.engine.currentRole = lead

	var out []Message
	require.NoError(t, n1.engine.Receive(&AppendEntriesResp{FromID: 2, ToID: 1, FollowerTerm: 3, LastLogIndex: 0, Success: false}))
	_, err := n1.engine.Update(now, &out)
	require.NoError(t, err)

	require.Equal(t, RoleFollower, n1.engine.Role())
	require.Equal(t, Term(3), n1.engine.CurrentTerm())
	_, votedSet := n1.engine.VotedFor()
	require.False(t, votedSet)
	_, leaderSet := n1.engine.LeaderID()
	require.False(t, leaderSet)

	out = nil
	next, err := n1.engine.Update(now, &out)
	require.NoError(t, err)
	require.Empty(t, out, "a freshly-stepped-down follower emits no leader-side traffic on the next tick")
	require.False(t, next.Before(now))
}
