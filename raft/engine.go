package raft

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	rlog "github.com/quorumkit/raft/pkg/log"
	"github.com/quorumkit/raft/pkg/metrics"
)

// ApplyFunc is invoked at most once per index, in strictly increasing index
// order, never with holes. The payload slice is borrowed for the duration
// of the call only; it must not be retained without copying.
type ApplyFunc func(index Index, payload []byte)

// Config are the engine's construction-time knobs (spec §4.4). All fields
// are fixed for the engine's lifetime; there are no env-vars, files, or CLI
// flags here, only what the host supplies in code.
type Config struct {
	SelfID   NodeId
	BuddyIDs []NodeId

	MinElectionTimeout time.Duration
	MaxElectionTimeout time.Duration
	HeartbeatTimeout   time.Duration

	MaxWaitEntries   int
	MaxPacketEntries int
	MaxPacketBytes   int

	RandomSeed uint64

	Log   LogStore
	Apply ApplyFunc

	// MaxApplyBatch bounds how many committed entries the apply pump drains
	// per Update call; 0 means unbounded (drain until last_applied ==
	// commit_index), matching the original cr::Raft::execute(logEntryNum)
	// bound adopted in SPEC_FULL.md §15.
	MaxApplyBatch int

	// Logger, if nil, defaults to rlog.WithComponent("raft") scoped with
	// this node's id.
	Logger *zerolog.Logger
}

func (c *Config) validate() error {
	if c.Log == nil {
		return fmt.Errorf("%w: Log is required", ErrConfig)
	}
	if c.Apply == nil {
		return fmt.Errorf("%w: Apply is required", ErrConfig)
	}
	seen := map[NodeId]bool{c.SelfID: true}
	for _, b := range c.BuddyIDs {
		if b == c.SelfID {
			return fmt.Errorf("%w: buddy_ids must not contain self_id", ErrConfig)
		}
		if seen[b] {
			return fmt.Errorf("%w: buddy_ids must be unique", ErrConfig)
		}
		seen[b] = true
	}
	if c.MinElectionTimeout <= 0 || c.MaxElectionTimeout <= 0 || c.MinElectionTimeout > c.MaxElectionTimeout {
		return fmt.Errorf("%w: 0 < min_election_timeout <= max_election_timeout required", ErrConfig)
	}
	if c.HeartbeatTimeout <= 0 || c.HeartbeatTimeout >= c.MinElectionTimeout {
		return fmt.Errorf("%w: heartbeat_timeout must be positive and less than min_election_timeout", ErrConfig)
	}
	if c.MaxWaitEntries < 1 {
		return fmt.Errorf("%w: max_wait_entries must be >= 1", ErrConfig)
	}
	if c.MaxPacketEntries < 1 {
		return fmt.Errorf("%w: max_packet_entries must be >= 1", ErrConfig)
	}
	if c.MaxPacketBytes < 1 {
		return fmt.Errorf("%w: max_packet_bytes must be >= 1", ErrConfig)
	}
	return nil
}

// Engine is the Raft protocol core: single-threaded and cooperative. Update,
// Receive, and Propose must not be called concurrently; callers that need
// concurrent access must serialize with their own mutex or message pipe.
type Engine struct {
	cfg      Config
	log      LogStore
	apply    ApplyFunc
	rand     randSource
	logger   zerolog.Logger
	buddies  map[NodeId]bool
	majority int

	initialized bool

	currentTerm Term
	votedFor    NodeId
	votedForSet bool
	leaderID    NodeId
	leaderIDSet bool
	commitIndex Index
	lastApplied Index

	currentRole role
	pendingRole role

	inbound []Message

	// haltErr is set the first time a log-store operation fails. Per spec
	// §7 a LogIoError invalidates the engine permanently; once set, Update,
	// Receive, and Propose all return it instead of doing any further work.
	haltErr error
}

// NewEngine validates cfg and constructs an engine in the not-yet-initialized
// state. Call Initialize before Update/Receive/Propose.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	buddies := make(map[NodeId]bool, len(cfg.BuddyIDs))
	for _, b := range cfg.BuddyIDs {
		buddies[b] = true
	}
	var logger zerolog.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	} else {
		logger = rlog.WithComponent("raft").With().Uint64("node_id", uint64(cfg.SelfID)).Logger()
	}
	e := &Engine{
		cfg:      cfg,
		log:      cfg.Log,
		apply:    cfg.Apply,
		rand:     newXorshift64(cfg.RandomSeed),
		logger:   logger,
		buddies: buddies,
		// Majority over the whole cluster (self + buddies): M =
		// floor((|buddies|+1)/2) + 1, matching
		// _examples/original_source/src/cr/raft/candidate.cpp's
		// checkVoteGranted() (grantNodeIds_.size() > (1+buddies.size())/2).
		majority: (len(cfg.BuddyIDs)+1)/2 + 1,
	}
	return e, nil
}

// Initialize enters Follower at now. Calling it twice is an error.
func (e *Engine) Initialize(now time.Time) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	term, votedFor, votedForSet, err := e.log.LoadVote()
	if err != nil {
		return wrapLogIO("initialize", err)
	}
	e.currentTerm = term
	e.votedFor = votedFor
	e.votedForSet = votedForSet
	e.initialized = true
	e.currentRole = newFollower()
	e.currentRole.onEntry(e, now)
	return nil
}

// Receive pushes msg to the tail of the inbound queue. It does not execute
// any work; the next Update call dispatches at most one queued message.
func (e *Engine) Receive(msg Message) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.haltErr != nil {
		return e.haltErr
	}
	e.inbound = append(e.inbound, msg)
	return nil
}

// Update drives one step: the current role's timer rule, then at most one
// inbound message, then a pending role transition if one was requested,
// then the apply pump. It returns the earliest time the engine next needs
// attention: the nearest of the role's next deadline, or now itself if the
// inbound queue is non-empty.
//
// If any log-store operation fails during tick, dispatch, or the apply
// pump, the engine halts: this and every subsequent call return the same
// wrapped LogIoError without doing further work, per spec §7.
func (e *Engine) Update(now time.Time, out *[]Message) (time.Time, error) {
	if !e.initialized {
		return time.Time{}, ErrNotInitialized
	}
	if e.haltErr != nil {
		return time.Time{}, e.haltErr
	}

	e.currentRole.tick(e, now, out)
	if e.haltErr != nil {
		return time.Time{}, e.haltErr
	}
	e.applyPendingTransition(now)

	if len(e.inbound) > 0 {
		msg := e.inbound[0]
		e.inbound = e.inbound[1:]
		e.dispatch(now, msg, out)
		if e.haltErr != nil {
			return time.Time{}, e.haltErr
		}
		e.applyPendingTransition(now)
	}

	e.runApplyPump()
	if e.haltErr != nil {
		return time.Time{}, e.haltErr
	}

	sortOutbound(*out)

	next := e.currentRole.nextTickAt(e, now)
	if len(e.inbound) > 0 && next.After(now) {
		next = now
	}
	return next, nil
}

// dispatch validates msg against the destination/membership contract (spec
// §4.5), applies the common term guard, and hands it to the current role.
func (e *Engine) dispatch(now time.Time, msg Message, out *[]Message) {
	if msg.To() != e.cfg.SelfID || !e.buddies[msg.From()] {
		e.logger.Debug().
			Uint64("from", uint64(msg.From())).
			Uint64("to", uint64(msg.To())).
			Msg("dropped malformed message: unknown sender or wrong destination")
		return
	}
	if applyTermGuard(e, now, msg) {
		e.currentRole.handle(e, now, msg, out)
		return
	}
	e.currentRole.handle(e, now, msg, out)
}

func (e *Engine) applyPendingTransition(now time.Time) {
	if e.pendingRole == nil {
		return
	}
	e.currentRole.onExit(e)
	e.currentRole = e.pendingRole
	e.pendingRole = nil
	e.logger.Info().Str("role", e.currentRole.kind().String()).Msg("role transition")
	e.currentRole.onEntry(e, now)
}

// transitionNow performs an immediate (not deferred) role switch, used by
// the common term guard and by mid-handle step-downs (a Candidate
// observing a legitimate same-term AppendEntries) that must re-dispatch the
// triggering message to the new role within the same Update call.
func (e *Engine) transitionNow(r role, now time.Time) {
	e.currentRole.onExit(e)
	e.currentRole = r
	e.logger.Info().Str("role", e.currentRole.kind().String()).Msg("role transition")
	e.currentRole.onEntry(e, now)
}

// setNextRole requests a role transition to be applied once the current
// role's tick/handle call returns.
func (e *Engine) setNextRole(r role) {
	e.pendingRole = r
}

func (e *Engine) runApplyPump() {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ApplyDuration, nodeLabel(e.cfg.SelfID))

	limit := e.cfg.MaxApplyBatch
	applied := 0
	for e.lastApplied < e.commitIndex {
		if limit > 0 && applied >= limit {
			break
		}
		next := e.lastApplied + 1
		entries, err := e.log.Entries(next, next)
		if err != nil {
			e.halt(wrapLogIO("apply pump", err))
			return
		}
		e.apply(next, entries[0].Payload)
		e.lastApplied = next
		applied++
	}
}

// Propose accepts a payload from the host iff this engine is the Leader.
// On success it allocates the next log index, durably appends
// (index, current_term, payload), and returns (index, term) immediately;
// replication to peers happens on subsequent Update calls.
func (e *Engine) Propose(payload []byte) (Index, Term, error) {
	if !e.initialized {
		return 0, 0, ErrNotInitialized
	}
	if e.haltErr != nil {
		return 0, 0, e.haltErr
	}
	leader, ok := e.currentRole.(*leaderRole)
	if !ok {
		if e.leaderIDSet {
			return 0, 0, &NotLeaderError{LeaderID: e.leaderID, HasLeader: true}
		}
		return 0, 0, &NotLeaderError{}
	}
	return leader.propose(e, payload)
}

func (e *Engine) clearVote() {
	e.votedFor = 0
	e.votedForSet = false
	_ = e.persistVote()
}

func (e *Engine) clearLeader() {
	e.leaderID = 0
	e.leaderIDSet = false
}

// persistVote durably saves (current_term, voted_for). On failure it halts
// the engine (spec §7: a LogIoError invalidates the engine) and returns the
// wrapped error so callers that must not act as if the vote were durable
// (e.g. granting a vote) can check it.
func (e *Engine) persistVote() error {
	err := wrapLogIO("persist vote", e.log.SetVote(e.currentTerm, e.votedFor, e.votedForSet))
	if err != nil {
		e.halt(err)
	}
	return err
}

// halt records the first fatal log-store failure observed. Once set, Update,
// Receive, and Propose refuse further work; the host must discard this
// engine and restart the node, per spec §7.
func (e *Engine) halt(err error) {
	if e.haltErr != nil {
		return
	}
	e.haltErr = err
	e.logger.Error().Err(err).Msg("engine halted: fatal log store failure")
}

func nodeLabel(id NodeId) string {
	return fmt.Sprintf("%d", uint64(id))
}

func sortOutbound(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].To() != msgs[j].To() {
			return msgs[i].To() < msgs[j].To()
		}
		return messageKindRank(msgs[i]) < messageKindRank(msgs[j])
	})
}

// --- read-only accessors (spec §4.4) ---

func (e *Engine) CurrentTerm() Term         { return e.currentTerm }
func (e *Engine) VotedFor() (NodeId, bool)  { return e.votedFor, e.votedForSet }
func (e *Engine) LeaderID() (NodeId, bool)  { return e.leaderID, e.leaderIDSet }
func (e *Engine) CommitIndex() Index        { return e.commitIndex }
func (e *Engine) LastApplied() Index        { return e.lastApplied }
func (e *Engine) Role() RoleKind            { return e.currentRole.kind() }
func (e *Engine) SelfID() NodeId            { return e.cfg.SelfID }
func (e *Engine) LastLogIndex() Index       { return e.log.LastIndex() }
func (e *Engine) LastLogTerm() Term         { return e.log.LastTerm() }
