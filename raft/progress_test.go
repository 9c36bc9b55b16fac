package raft

import (
	"testing"
	"time"
)

func TestProgressTable_OnBecomeLeader(t *testing.T) {
	pt := newProgressTable()
	now := time.Now()
	pt.onBecomeLeader([]NodeId{2, 3}, 5, now)

	for _, id := range []NodeId{2, 3} {
		p := pt.get(id)
		if p == nil {
			t.Fatalf("peer %d missing", id)
		}
		if p.nextIndex != 6 {
			t.Errorf("peer %d nextIndex = %d, want 6", id, p.nextIndex)
		}
		if p.matchIndex != 0 {
			t.Errorf("peer %d matchIndex = %d, want 0", id, p.matchIndex)
		}
		if !p.nextHeartbeatAt.Equal(now) {
			t.Errorf("peer %d nextHeartbeatAt = %v, want %v", id, p.nextHeartbeatAt, now)
		}
	}
}

func TestProgressTable_OnAccept(t *testing.T) {
	pt := newProgressTable()
	pt.onBecomeLeader([]NodeId{2}, 5, time.Now())

	pt.onAccept(2, 3)
	p := pt.get(2)
	// nextIndex is max(6, 3+1): an accept never moves it backwards.
	if p.matchIndex != 3 || p.nextIndex != 6 || p.replyIndex != 3 {
		t.Fatalf("after accept(3): match=%d next=%d reply=%d", p.matchIndex, p.nextIndex, p.replyIndex)
	}

	// Accepting a lower index than already matched must not regress.
	pt.onAccept(2, 1)
	if p.matchIndex != 3 {
		t.Fatalf("accept(1) regressed matchIndex to %d", p.matchIndex)
	}
}

func TestProgressTable_OnReject(t *testing.T) {
	pt := newProgressTable()
	pt.onBecomeLeader([]NodeId{2}, 10, time.Now())
	p := pt.get(2)
	p.nextIndex = 8

	pt.onReject(2, 3)
	if p.nextIndex != 4 {
		t.Fatalf("onReject: nextIndex = %d, want 4 (min(7, 3+1))", p.nextIndex)
	}

	pt.onReject(2, 100)
	if p.nextIndex < 1 {
		t.Fatalf("onReject: nextIndex went below 1: %d", p.nextIndex)
	}
}

func TestProgressTable_QuorumMatch(t *testing.T) {
	pt := newProgressTable()
	pt.onBecomeLeader([]NodeId{2, 3, 4}, 0, time.Now())
	pt.onAccept(2, 5)
	pt.onAccept(3, 5)
	pt.onAccept(4, 1)

	// self=0, peers={5,5,1}; sorted desc: 5,5,1,0; majority=3 (4 nodes) -> index 2 (0-based) = 1
	n := pt.quorumMatch(0, 3)
	if n != 1 {
		t.Fatalf("quorumMatch = %d, want 1", n)
	}

	n2 := pt.quorumMatch(0, 2)
	if n2 != 5 {
		t.Fatalf("quorumMatch(majority=2) = %d, want 5", n2)
	}
}
