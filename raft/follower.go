package raft

import (
	"time"

	"github.com/quorumkit/raft/pkg/metrics"
)

// followerRole implements spec §4.3.1. A Follower's only timer is its
// election deadline; on firing it becomes a Candidate.
type followerRole struct {
	electionDeadline time.Time
}

func newFollower() *followerRole {
	return &followerRole{}
}

func (r *followerRole) kind() RoleKind { return RoleFollower }

func (r *followerRole) onEntry(e *Engine, now time.Time) {
	r.electionDeadline = now.Add(randElectionTimeout(e.rand, e.cfg.MinElectionTimeout, e.cfg.MaxElectionTimeout))
}

func (r *followerRole) onExit(e *Engine) {}

func (r *followerRole) tick(e *Engine, now time.Time, out *[]Message) {
	if now.Before(r.electionDeadline) {
		return
	}
	e.clearVote()
	e.clearLeader()
	e.setNextRole(newCandidate())
}

func (r *followerRole) nextTickAt(e *Engine, now time.Time) time.Time {
	return r.electionDeadline
}

func (r *followerRole) handle(e *Engine, now time.Time, msg Message, out *[]Message) {
	switch m := msg.(type) {
	case *VoteReq:
		r.handleVoteReq(e, now, m, out)
	case *AppendEntriesReq:
		r.handleAppendEntries(e, now, m, out)
	case *VoteResp, *AppendEntriesResp:
		// ignored in Follower
	}
}

func (r *followerRole) handleVoteReq(e *Engine, now time.Time, m *VoteReq, out *[]Message) {
	candLast := m.LastLogTerm
	selfLast := e.log.LastTerm()
	logUpToDate := candLast > selfLast || (candLast == selfLast && m.LastLogIndex >= e.log.LastIndex())

	canVote := !e.votedForSet || e.votedFor == m.FromID
	grant := m.CandidateTerm >= e.currentTerm && m.CandidateTerm > 0 && logUpToDate && canVote

	if grant {
		priorTerm, priorVotedFor, priorVotedForSet := e.currentTerm, e.votedFor, e.votedForSet
		e.votedFor = m.FromID
		e.votedForSet = true
		if err := e.persistVote(); err != nil {
			// Vote was not durably recorded: revert in-memory state and refuse
			// the grant so we don't tell the candidate it won our vote when a
			// restart could make us forget (or re-cast) it.
			e.currentTerm, e.votedFor, e.votedForSet = priorTerm, priorVotedFor, priorVotedForSet
			grant = false
		} else {
			r.electionDeadline = now.Add(randElectionTimeout(e.rand, e.cfg.MinElectionTimeout, e.cfg.MaxElectionTimeout))
		}
	}
	*out = append(*out, &VoteResp{
		FromID:       e.cfg.SelfID,
		ToID:         m.FromID,
		FollowerTerm: e.currentTerm,
		Granted:      grant,
	})
}

func (r *followerRole) handleAppendEntries(e *Engine, now time.Time, m *AppendEntriesReq, out *[]Message) {
	reply := func(success bool) {
		if !success {
			metrics.AppendEntriesRejectedTotal.WithLabelValues(nodeLabel(e.cfg.SelfID)).Inc()
		}
		*out = append(*out, &AppendEntriesResp{
			FromID:       e.cfg.SelfID,
			ToID:         m.FromID,
			FollowerTerm: e.currentTerm,
			LastLogIndex: e.log.LastIndex(),
			Success:      success,
		})
	}

	if m.LeaderTerm < e.currentTerm || m.LeaderTerm == 0 {
		reply(false)
		return
	}

	r.electionDeadline = now.Add(randElectionTimeout(e.rand, e.cfg.MinElectionTimeout, e.cfg.MaxElectionTimeout))
	if !e.leaderIDSet || e.leaderID != m.FromID {
		e.leaderID = m.FromID
		e.leaderIDSet = true
	}

	lastIndex := e.log.LastIndex()
	if m.PrevLogIndex > lastIndex {
		reply(false)
		return
	}
	if m.PrevLogIndex < lastIndex {
		if err := e.log.Truncate(m.PrevLogIndex + 1); err != nil {
			e.halt(wrapLogIO("follower truncate", err))
			return
		}
		lastIndex = e.log.LastIndex()
	}
	if m.PrevLogIndex >= 1 {
		term, err := e.log.TermAt(m.PrevLogIndex)
		if err != nil {
			e.halt(wrapLogIO("follower term_at", err))
			return
		}
		if term != m.PrevLogTerm {
			if err := e.log.Truncate(m.PrevLogIndex); err != nil {
				e.halt(wrapLogIO("follower truncate", err))
				return
			}
			reply(false)
			return
		}
	}

	if len(m.Entries) > 0 {
		if err := e.log.Append(m.Entries); err != nil {
			e.halt(wrapLogIO("follower append", err))
			return
		}
	}

	newLast := e.log.LastIndex()
	if m.LeaderCommit > e.commitIndex && e.commitIndex < newLast {
		if m.LeaderCommit < newLast {
			e.commitIndex = m.LeaderCommit
		} else {
			e.commitIndex = newLast
		}
	}

	reply(true)
}
