package raft

import "sync"

// MemoryLog is an in-memory LogStore for tests and the in-process demo
// cluster. Operations are O(1)/O(n) slice manipulation with no durability;
// a process restart loses everything.
type MemoryLog struct {
	mu         sync.Mutex
	entries    []Entry // entries[i] has Index == i+1
	currTerm   Term
	votedFor   NodeId
	votedForOK bool
}

// NewMemoryLog returns an empty in-memory log store.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	want := Index(len(l.entries)) + 1
	for i, e := range entries {
		if e.Index != want+Index(i) {
			return ErrMalformedMessage
		}
	}
	l.entries = append(l.entries, entries...)
	return nil
}

func (l *MemoryLog) Truncate(startIndex Index) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	last := Index(len(l.entries))
	if startIndex < 1 || startIndex > last {
		return outOfRange(startIndex, last, last)
	}
	l.entries = l.entries[:startIndex-1]
	return nil
}

func (l *MemoryLog) Entries(from, to Index) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	last := Index(len(l.entries))
	if from < 1 || to > last || from > to {
		return nil, outOfRange(from, to, last)
	}
	out := make([]Entry, to-from+1)
	copy(out, l.entries[from-1:to])
	return out, nil
}

func (l *MemoryLog) TermAt(index Index) (Term, error) {
	if index == 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	last := Index(len(l.entries))
	if index < 1 || index > last {
		return 0, outOfRange(index, index, last)
	}
	return l.entries[index-1].Term, nil
}

func (l *MemoryLog) LastIndex() Index {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Index(len(l.entries))
}

func (l *MemoryLog) LastTerm() Term {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

func (l *MemoryLog) SetVote(currentTerm Term, votedFor NodeId, votedForSet bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currTerm = currentTerm
	l.votedFor = votedFor
	l.votedForOK = votedForSet
	return nil
}

func (l *MemoryLog) LoadVote() (Term, NodeId, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currTerm, l.votedFor, l.votedForOK, nil
}

func (l *MemoryLog) Close() error { return nil }
