package raft

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's error taxonomy. Wrap with fmt.Errorf and
// %w when adding context; callers should match with errors.Is/errors.As.
var (
	// ErrConfig marks an invalid construction argument. Raised only while
	// building an engine, never during operation.
	ErrConfig = errors.New("raft: invalid configuration")

	// ErrNotInitialized is returned by Update, Receive, and Propose if
	// Initialize has not yet been called.
	ErrNotInitialized = errors.New("raft: engine not initialized")

	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("raft: engine already initialized")

	// ErrLogIO marks a fatal underlying log-store failure. The node must be
	// restarted; the engine must not be used again after this error.
	ErrLogIO = errors.New("raft: log store I/O failure")

	// ErrMalformedMessage marks an inbound message whose invariants are
	// violated. Silently dropped by the engine; callers may log it.
	ErrMalformedMessage = errors.New("raft: malformed message")

	// ErrMalformedRange marks an out-of-range log read.
	ErrMalformedRange = errors.New("raft: malformed log range")
)

// NotLeaderError is returned by Propose when the engine is not the Leader.
// LeaderID carries a hint the caller may use to forward the request, and is
// the zero value with HasLeader false if no leader is currently known.
type NotLeaderError struct {
	LeaderID  NodeId
	HasLeader bool
}

func (e *NotLeaderError) Error() string {
	if e.HasLeader {
		return fmt.Sprintf("raft: not leader (leader_id=%d)", e.LeaderID)
	}
	return "raft: not leader"
}

// Is makes errors.Is(err, ErrNotLeader) work for any *NotLeaderError.
func (e *NotLeaderError) Is(target error) bool {
	return target == ErrNotLeader
}

// ErrNotLeader is a matchable sentinel; use errors.As to recover the
// optional leader-id hint from the concrete *NotLeaderError.
var ErrNotLeader = errors.New("raft: not leader")

func wrapLogIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrLogIO, err)
}
