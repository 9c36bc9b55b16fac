package raft

import (
	"time"

	"github.com/quorumkit/raft/pkg/metrics"
)

// candidateRole implements spec §4.3.2.
type candidateRole struct {
	electionDeadline time.Time
	grantedVotes     map[NodeId]bool
}

func newCandidate() *candidateRole {
	return &candidateRole{grantedVotes: make(map[NodeId]bool)}
}

func (r *candidateRole) kind() RoleKind { return RoleCandidate }

func (r *candidateRole) onEntry(e *Engine, now time.Time) {
	// Entered only from Follower. The deadline is set to now so the first
	// tick immediately starts an election.
	r.electionDeadline = now
	r.grantedVotes = make(map[NodeId]bool)
}

func (r *candidateRole) onExit(e *Engine) {}

func (r *candidateRole) tick(e *Engine, now time.Time, out *[]Message) {
	if now.Before(r.electionDeadline) {
		return
	}
	r.electionDeadline = now.Add(randElectionTimeout(e.rand, e.cfg.MinElectionTimeout, e.cfg.MaxElectionTimeout))
	e.currentTerm++
	e.votedFor = e.cfg.SelfID
	e.votedForSet = true
	if err := e.persistVote(); err != nil {
		// Engine is now halted; don't pretend the election started.
		return
	}
	r.grantedVotes = map[NodeId]bool{e.cfg.SelfID: true}

	metrics.ElectionsStartedTotal.WithLabelValues(nodeLabel(e.cfg.SelfID)).Inc()
	e.logger.Info().Uint64("term", uint64(e.currentTerm)).Msg("starting election")

	for _, buddy := range e.cfg.BuddyIDs {
		*out = append(*out, &VoteReq{
			FromID:        e.cfg.SelfID,
			ToID:          buddy,
			CandidateTerm: e.currentTerm,
			LastLogIndex:  e.log.LastIndex(),
			LastLogTerm:   e.log.LastTerm(),
		})
	}

	r.checkMajority(e, now)
}

func (r *candidateRole) nextTickAt(e *Engine, now time.Time) time.Time {
	return r.electionDeadline
}

func (r *candidateRole) checkMajority(e *Engine, now time.Time) {
	if len(r.grantedVotes) >= e.majority {
		e.leaderID = e.cfg.SelfID
		e.leaderIDSet = true
		metrics.ElectionsWonTotal.WithLabelValues(nodeLabel(e.cfg.SelfID)).Inc()
		e.setNextRole(newLeader())
	}
}

func (r *candidateRole) handle(e *Engine, now time.Time, msg Message, out *[]Message) {
	switch m := msg.(type) {
	case *VoteResp:
		r.handleVoteResp(e, now, m, out)
	case *AppendEntriesReq:
		r.handleAppendEntries(e, now, m, out)
	case *VoteReq, *AppendEntriesResp:
		// only the common term guard applies; otherwise ignored
	}
}

func (r *candidateRole) handleVoteResp(e *Engine, now time.Time, m *VoteResp, out *[]Message) {
	if m.FollowerTerm != e.currentTerm || !m.Granted {
		return
	}
	r.grantedVotes[m.FromID] = true
	r.checkMajority(e, now)
}

func (r *candidateRole) handleAppendEntries(e *Engine, now time.Time, m *AppendEntriesReq, out *[]Message) {
	if m.LeaderTerm < e.currentTerm {
		return
	}
	// m.LeaderTerm == e.currentTerm here (LeaderTerm > current_term already
	// stepped down via the common guard before reaching this handler).
	e.clearVote()
	e.transitionNow(newFollower(), now)
	e.currentRole.handle(e, now, m, out)
}
