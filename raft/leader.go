package raft

import "time"

// leaderRole implements spec §4.3.3. A Leader never steps down by time,
// only by discovering a higher term from a peer.
type leaderRole struct {
	progress *progressTable
}

func newLeader() *leaderRole {
	return &leaderRole{progress: newProgressTable()}
}

func (r *leaderRole) kind() RoleKind { return RoleLeader }

func (r *leaderRole) onEntry(e *Engine, now time.Time) {
	// onBecomeLeader sets every peer's nextHeartbeatAt to now, so this
	// role's very first tick() call — on the next Update — immediately
	// sends each buddy an (empty, since the log has no new entries yet)
	// AppendEntries, serving as the "immediate heartbeat on entry" the
	// spec calls for without needing output access during onEntry itself.
	r.progress.onBecomeLeader(e.cfg.BuddyIDs, e.log.LastIndex(), now)
}

func (r *leaderRole) onExit(e *Engine) {}

func (r *leaderRole) tick(e *Engine, now time.Time, out *[]Message) {
	for _, peer := range e.cfg.BuddyIDs {
		r.tickPeer(e, now, peer, out)
	}
}

func (r *leaderRole) tickPeer(e *Engine, now time.Time, peer NodeId, out *[]Message) {
	p := r.progress.get(peer)
	if p == nil {
		return
	}
	from := p.nextIndex
	lastIndex := e.log.LastIndex()
	to := from + Index(e.cfg.MaxPacketEntries) - 1
	if to > lastIndex {
		to = lastIndex
	}

	windowOpen := p.replyIndex-p.matchIndex < Index(e.cfg.MaxWaitEntries)

	// A slice that ends at or below replyIndex is already in flight; it is
	// not sent again until a reply moves replyIndex or nextIndex.
	if to >= from && to > p.replyIndex && windowOpen {
		prevIndex := from - 1
		prevTerm, err := e.log.TermAt(prevIndex)
		if err != nil {
			e.halt(wrapLogIO("leader term_at", err))
			return
		}
		entries, err := e.log.Entries(from, to)
		if err != nil {
			e.halt(wrapLogIO("leader entries read", err))
			return
		}
		entries = clampPacketBytes(entries, e.cfg.MaxPacketBytes)
		to = from + Index(len(entries)) - 1
		*out = append(*out, &AppendEntriesReq{
			FromID:       e.cfg.SelfID,
			ToID:         peer,
			LeaderTerm:   e.currentTerm,
			PrevLogIndex: prevIndex,
			PrevLogTerm:  prevTerm,
			Entries:      entries,
			LeaderCommit: e.commitIndex,
		})
		p.replyIndex = to
		p.nextHeartbeatAt = now.Add(e.cfg.HeartbeatTimeout)
		return
	}

	if !now.Before(p.nextHeartbeatAt) {
		lastTerm, err := e.log.TermAt(lastIndex)
		if err != nil {
			e.halt(wrapLogIO("leader term_at", err))
			return
		}
		*out = append(*out, &AppendEntriesReq{
			FromID:       e.cfg.SelfID,
			ToID:         peer,
			LeaderTerm:   e.currentTerm,
			PrevLogIndex: lastIndex,
			PrevLogTerm:  lastTerm,
			Entries:      nil,
			LeaderCommit: e.commitIndex,
		})
		p.nextHeartbeatAt = now.Add(e.cfg.HeartbeatTimeout)
	}
}

func (r *leaderRole) nextTickAt(e *Engine, now time.Time) time.Time {
	earliest := time.Time{}
	for _, peer := range e.cfg.BuddyIDs {
		p := r.progress.get(peer)
		if p == nil {
			continue
		}
		if earliest.IsZero() || p.nextHeartbeatAt.Before(earliest) {
			earliest = p.nextHeartbeatAt
		}
	}
	if earliest.IsZero() {
		return now
	}
	return earliest
}

func (r *leaderRole) handle(e *Engine, now time.Time, msg Message, out *[]Message) {
	switch m := msg.(type) {
	case *AppendEntriesResp:
		r.handleAppendEntriesResp(e, now, m, out)
	case *VoteReq, *AppendEntriesReq:
		// only the common term guard applies; otherwise ignored
	}
}

func (r *leaderRole) handleAppendEntriesResp(e *Engine, now time.Time, m *AppendEntriesResp, out *[]Message) {
	if m.FollowerTerm > e.currentTerm {
		return // already handled by the common term guard before dispatch
	}
	if m.Success {
		r.progress.onAccept(m.FromID, m.LastLogIndex)
		n := r.progress.quorumMatch(e.log.LastIndex(), e.majority)
		if n > e.commitIndex {
			termAtN, err := e.log.TermAt(n)
			if err != nil {
				e.halt(wrapLogIO("leader commit term_at", err))
				return
			}
			if termAtN == e.currentTerm {
				e.commitIndex = n
			}
		}
		return
	}
	r.progress.onReject(m.FromID, m.LastLogIndex)
	// The next tick will immediately retry the peer with the backed-off
	// slice since nextHeartbeatAt is unaffected and the window re-opens.
}

// clampPacketBytes trims entries to the prefix whose cumulative payload size
// fits within maxBytes, always keeping at least the first entry so a single
// oversized entry still makes progress one entry at a time.
func clampPacketBytes(entries []Entry, maxBytes int) []Entry {
	if len(entries) <= 1 {
		return entries
	}
	total := 0
	for i, e := range entries {
		total += len(e.Payload)
		if total > maxBytes {
			if i == 0 {
				return entries[:1]
			}
			return entries[:i]
		}
	}
	return entries
}

// propose implements the Leader.Propose operation: allocate the next index,
// append (index, current_term, payload) durably, return (index, term).
func (r *leaderRole) propose(e *Engine, payload []byte) (Index, Term, error) {
	index := e.log.LastIndex() + 1
	entry := Entry{Index: index, Term: e.currentTerm, Payload: payload}
	if err := e.log.Append([]Entry{entry}); err != nil {
		err = wrapLogIO("propose", err)
		e.halt(err)
		return 0, 0, err
	}
	return index, e.currentTerm, nil
}
