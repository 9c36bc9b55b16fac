package raft

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Bucket and sidecar key names for the bbolt-backed log store, grounded on
// the teacher's storage.BoltStore bucket-per-entity / sidecar-key pattern in
// boltdb.go, retargeted from cluster objects to log entries.
var (
	entriesBucket = []byte("entries")
	metaBucket    = []byte("meta")

	metaLastIndexKey = []byte("last_index")
	metaLastTermKey  = []byte("last_term")
	metaCurrentTerm  = []byte("current_term")
	metaVotedFor     = []byte("voted_for")
	metaVotedForSet  = []byte("voted_for_set")
)

// BoltLog is a durable LogStore backed by go.etcd.io/bbolt. Entries are
// stored keyed by their big-endian-encoded index, so key order and index
// order coincide; last_index/last_term sidecar keys live in a second
// bucket and are updated in the same transaction as any entry mutation,
// giving atomic, crash-consistent persistence. current_term/voted_for live
// in that same bucket and are written by SetVote in its own transaction. bbolt
// fsyncs on every committed write transaction by default, satisfying the
// durable-append requirement without extra configuration.
type BoltLog struct {
	db *bolt.DB
}

// OpenBoltLog opens (creating if absent) a bbolt-backed log store under
// dataDir/raft-log.db, creating the entries and meta buckets on first use.
func OpenBoltLog(dataDir string) (*BoltLog, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "raft-log.db"), 0o600, nil)
	if err != nil {
		return nil, wrapLogIO("open bolt log", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapLogIO("init bolt log buckets", err)
	}
	return &BoltLog{db: db}, nil
}

func encodeIndex(i Index) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 16+len(e.Payload))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.Index))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.Term))
	copy(buf[16:], e.Payload)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 16 {
		return Entry{}, fmt.Errorf("%w: truncated entry record", ErrMalformedMessage)
	}
	payload := make([]byte, len(b)-16)
	copy(payload, b[16:])
	return Entry{
		Index:   Index(binary.BigEndian.Uint64(b[0:8])),
		Term:    Term(binary.BigEndian.Uint64(b[8:16])),
		Payload: payload,
	}, nil
}

func (l *BoltLog) readMetaUint64(tx *bolt.Tx, key []byte) uint64 {
	b := tx.Bucket(metaBucket).Get(key)
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (l *BoltLog) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := l.db.Update(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		eb := tx.Bucket(entriesBucket)
		last := Index(l.readMetaUint64(tx, metaLastIndexKey))
		want := last + 1
		for i, e := range entries {
			if e.Index != want+Index(i) {
				return ErrMalformedMessage
			}
			if err := eb.Put(encodeIndex(e.Index), encodeEntry(e)); err != nil {
				return err
			}
		}
		tail := entries[len(entries)-1]
		if err := mb.Put(metaLastIndexKey, encodeIndex(tail.Index)); err != nil {
			return err
		}
		return mb.Put(metaLastTermKey, encodeIndex(Index(tail.Term)))
	})
	return wrapLogIO("append", err)
}

func (l *BoltLog) Truncate(startIndex Index) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		eb := tx.Bucket(entriesBucket)
		last := Index(l.readMetaUint64(tx, metaLastIndexKey))
		if startIndex < 1 || startIndex > last {
			return outOfRange(startIndex, last, last)
		}
		for i := startIndex; i <= last; i++ {
			if err := eb.Delete(encodeIndex(i)); err != nil {
				return err
			}
		}
		newLast := startIndex - 1
		if err := mb.Put(metaLastIndexKey, encodeIndex(newLast)); err != nil {
			return err
		}
		if newLast == 0 {
			return mb.Put(metaLastTermKey, encodeIndex(0))
		}
		b := eb.Get(encodeIndex(newLast))
		e, err := decodeEntry(b)
		if err != nil {
			return err
		}
		return mb.Put(metaLastTermKey, encodeIndex(Index(e.Term)))
	})
	return wrapLogIO("truncate", err)
}

func (l *BoltLog) Entries(from, to Index) ([]Entry, error) {
	var out []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		last := Index(l.readMetaUint64(tx, metaLastIndexKey))
		if from < 1 || to > last || from > to {
			return outOfRange(from, to, last)
		}
		eb := tx.Bucket(entriesBucket)
		out = make([]Entry, 0, to-from+1)
		for i := from; i <= to; i++ {
			e, err := decodeEntry(eb.Get(encodeIndex(i)))
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, wrapLogIO("entries", err)
	}
	return out, nil
}

func (l *BoltLog) TermAt(index Index) (Term, error) {
	if index == 0 {
		return 0, nil
	}
	var term Term
	err := l.db.View(func(tx *bolt.Tx) error {
		last := Index(l.readMetaUint64(tx, metaLastIndexKey))
		if index < 1 || index > last {
			return outOfRange(index, index, last)
		}
		e, err := decodeEntry(tx.Bucket(entriesBucket).Get(encodeIndex(index)))
		if err != nil {
			return err
		}
		term = e.Term
		return nil
	})
	if err != nil {
		return 0, wrapLogIO("term_at", err)
	}
	return term, nil
}

func (l *BoltLog) LastIndex() Index {
	var last Index
	_ = l.db.View(func(tx *bolt.Tx) error {
		last = Index(l.readMetaUint64(tx, metaLastIndexKey))
		return nil
	})
	return last
}

func (l *BoltLog) LastTerm() Term {
	var term Term
	_ = l.db.View(func(tx *bolt.Tx) error {
		term = Term(l.readMetaUint64(tx, metaLastTermKey))
		return nil
	})
	return term
}

func (l *BoltLog) SetVote(currentTerm Term, votedFor NodeId, votedForSet bool) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		if err := mb.Put(metaCurrentTerm, encodeIndex(Index(currentTerm))); err != nil {
			return err
		}
		if err := mb.Put(metaVotedFor, encodeIndex(Index(votedFor))); err != nil {
			return err
		}
		flag := uint64(0)
		if votedForSet {
			flag = 1
		}
		return mb.Put(metaVotedForSet, encodeIndex(Index(flag)))
	})
	return wrapLogIO("set_vote", err)
}

func (l *BoltLog) LoadVote() (Term, NodeId, bool, error) {
	var term Term
	var votedFor NodeId
	var set bool
	err := l.db.View(func(tx *bolt.Tx) error {
		term = Term(l.readMetaUint64(tx, metaCurrentTerm))
		votedFor = NodeId(l.readMetaUint64(tx, metaVotedFor))
		set = l.readMetaUint64(tx, metaVotedForSet) == 1
		return nil
	})
	if err != nil {
		return 0, 0, false, wrapLogIO("load_vote", err)
	}
	return term, votedFor, set, nil
}

func (l *BoltLog) Close() error {
	return l.db.Close()
}
