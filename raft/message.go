package raft

// Message is implemented by every RPC shape the engine sends and receives.
// It lets the common term-guard in role.go inspect the sender's term
// without a type switch duplicated in every role.
type Message interface {
	From() NodeId
	To() NodeId
	SenderTerm() Term
}

// VoteReq is sent by a Candidate to every buddy to request a vote.
type VoteReq struct {
	FromID        NodeId
	ToID          NodeId
	CandidateTerm Term
	LastLogIndex  Index
	LastLogTerm   Term
}

func (m *VoteReq) From() NodeId     { return m.FromID }
func (m *VoteReq) To() NodeId       { return m.ToID }
func (m *VoteReq) SenderTerm() Term { return m.CandidateTerm }

// VoteResp answers a VoteReq.
type VoteResp struct {
	FromID       NodeId
	ToID         NodeId
	FollowerTerm Term
	Granted      bool
}

func (m *VoteResp) From() NodeId     { return m.FromID }
func (m *VoteResp) To() NodeId       { return m.ToID }
func (m *VoteResp) SenderTerm() Term { return m.FollowerTerm }

// AppendEntriesReq replicates log entries, or (with an empty Entries slice)
// serves as a heartbeat asserting leadership.
type AppendEntriesReq struct {
	FromID       NodeId
	ToID         NodeId
	LeaderTerm   Term
	PrevLogIndex Index
	PrevLogTerm  Term
	Entries      []Entry
	LeaderCommit Index
}

func (m *AppendEntriesReq) From() NodeId     { return m.FromID }
func (m *AppendEntriesReq) To() NodeId       { return m.ToID }
func (m *AppendEntriesReq) SenderTerm() Term { return m.LeaderTerm }

// AppendEntriesResp answers an AppendEntriesReq.
type AppendEntriesResp struct {
	FromID       NodeId
	ToID         NodeId
	FollowerTerm Term
	LastLogIndex Index
	Success      bool
}

func (m *AppendEntriesResp) From() NodeId     { return m.FromID }
func (m *AppendEntriesResp) To() NodeId       { return m.ToID }
func (m *AppendEntriesResp) SenderTerm() Term { return m.FollowerTerm }

// messageKindRank orders outbound messages deterministically within one
// update() call: by peer id first, then by message kind, matching spec
// ordering guarantees.
func messageKindRank(m Message) int {
	switch m.(type) {
	case *VoteReq:
		return 0
	case *VoteResp:
		return 1
	case *AppendEntriesReq:
		return 2
	case *AppendEntriesResp:
		return 3
	default:
		return 99
	}
}
