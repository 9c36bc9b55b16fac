package raft

import "time"

// peerProgress is the Leader's per-follower bookkeeping: the next log index
// to send, the highest index confirmed replicated, the highest index asked
// to accept but not yet answered (a pacing hint), and the next heartbeat
// deadline.
type peerProgress struct {
	nextIndex       Index
	matchIndex      Index
	replyIndex      Index
	nextHeartbeatAt time.Time
}

// progressTable tracks peerProgress for every buddy, held only by the
// Leader role.
type progressTable struct {
	peers map[NodeId]*peerProgress
}

func newProgressTable() *progressTable {
	return &progressTable{peers: make(map[NodeId]*peerProgress)}
}

// onBecomeLeader resets every buddy's progress record when this node
// becomes leader.
func (t *progressTable) onBecomeLeader(buddies []NodeId, lastIndex Index, now time.Time) {
	t.peers = make(map[NodeId]*peerProgress, len(buddies))
	for _, p := range buddies {
		t.peers[p] = &peerProgress{
			nextIndex:       lastIndex + 1,
			matchIndex:      0,
			replyIndex:      0,
			nextHeartbeatAt: now,
		}
	}
}

func (t *progressTable) get(peer NodeId) *peerProgress {
	return t.peers[peer]
}

// onAccept records a successful AppendEntries reply from peer.
func (t *progressTable) onAccept(peer NodeId, ackedLastIndex Index) {
	p := t.peers[peer]
	if p == nil {
		return
	}
	if ackedLastIndex > p.matchIndex {
		p.matchIndex = ackedLastIndex
	}
	if ackedLastIndex+1 > p.nextIndex {
		p.nextIndex = ackedLastIndex + 1
	}
	p.replyIndex = ackedLastIndex
}

// onReject backs off nextIndex after a failed AppendEntries reply.
func (t *progressTable) onReject(peer NodeId, peerLastIndex Index) {
	p := t.peers[peer]
	if p == nil {
		return
	}
	candidate := p.nextIndex - 1
	bound := peerLastIndex + 1
	next := candidate
	if bound < next {
		next = bound
	}
	if next < 1 {
		next = 1
	}
	p.nextIndex = next
	if p.replyIndex >= next {
		p.replyIndex = next - 1
	}
}

// quorumMatch returns the largest index replicated on at least M nodes
// (self included), i.e. the commit-advancement candidate N.
func (t *progressTable) quorumMatch(selfLastIndex Index, majority int) Index {
	matches := make([]Index, 0, len(t.peers)+1)
	matches = append(matches, selfLastIndex)
	for _, p := range t.peers {
		matches = append(matches, p.matchIndex)
	}
	// Sort descending; the (majority-1)-th element (0-indexed) is the
	// largest index acknowledged by at least `majority` nodes.
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j] > matches[i] {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if majority < 1 || majority > len(matches) {
		return 0
	}
	return matches[majority-1]
}
