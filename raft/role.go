package raft

import "time"

// RoleKind identifies which of the three Raft roles an engine currently
// occupies.
type RoleKind int

const (
	RoleFollower RoleKind = iota
	RoleCandidate
	RoleLeader
)

func (k RoleKind) String() string {
	switch k {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// role is implemented by Follower, Candidate, and Leader (spec §9: a tagged
// variant with a shared interface, no inheritance, no cyclic back-pointers —
// every method takes the owning engine as its first argument instead of
// holding a pointer back to it).
type role interface {
	kind() RoleKind

	// onEntry runs once when the engine transitions into this role.
	onEntry(e *Engine, now time.Time)

	// onExit runs once when the engine transitions out of this role.
	onExit(e *Engine)

	// tick evaluates this role's timer rule (election deadline, heartbeat
	// schedule, ...) and may emit outbound messages or request a
	// transition via e.setNextRole.
	tick(e *Engine, now time.Time, out *[]Message)

	// handle processes one already-validated inbound message (destination
	// and sender membership already checked, term guard already applied)
	// and may emit outbound messages or request a transition.
	handle(e *Engine, now time.Time, msg Message, out *[]Message)

	// nextTickAt returns the earliest time this role next needs attention,
	// ignoring queued messages (the engine folds queue non-emptiness in).
	nextTickAt(e *Engine, now time.Time) time.Time
}

// applyTermGuard implements the common guard of spec §4.3: on any inbound
// message whose sender term exceeds current_term, step down to Follower
// before the message is dispatched to a role handler. Returns true if a
// step-down occurred, meaning the caller must re-dispatch msg to the (now
// current) role.
func applyTermGuard(e *Engine, now time.Time, msg Message) bool {
	if msg.SenderTerm() <= e.currentTerm {
		return false
	}
	e.logger.Info().
		Uint64("new_term", uint64(msg.SenderTerm())).
		Uint64("old_term", uint64(e.currentTerm)).
		Msg("stepping down: observed higher term")
	e.currentTerm = msg.SenderTerm()
	e.clearVote()
	e.clearLeader()
	e.transitionNow(newFollower(), now)
	return true
}
