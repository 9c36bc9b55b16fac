package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quorumkit/raft/raft"
	rlog "github.com/quorumkit/raft/pkg/log"
	"github.com/quorumkit/raft/pkg/metrics"
)

// demoNode bundles one Engine with the log store backing it, so the demo
// can close the store cleanly on shutdown.
type demoNode struct {
	id     raft.NodeId
	engine *raft.Engine
	log    raft.LogStore
}

// cluster runs a set of Engines in a single process, shuttling messages
// between them directly (no real network) and driving every engine's clock
// off the same wall-clock tick. This is a demonstration harness, not a
// deployment topology: a real deployment gives each node its own process
// and a transport that serializes messages over the wire.
type cluster struct {
	cfg   clusterConfig
	nodes map[raft.NodeId]*demoNode
	log   zerolog.Logger
}

func newCluster(cfg clusterConfig) (*cluster, error) {
	logger := rlog.WithComponent("raftdemo")
	c := &cluster{cfg: cfg, nodes: make(map[raft.NodeId]*demoNode, len(cfg.NodeIDs)), log: logger}

	for _, rawID := range cfg.NodeIDs {
		id := raft.NodeId(rawID)
		var buddies []raft.NodeId
		for _, other := range cfg.NodeIDs {
			if other != rawID {
				buddies = append(buddies, raft.NodeId(other))
			}
		}

		store, err := c.openStore(id)
		if err != nil {
			return nil, err
		}

		nodeLogger := rlog.WithComponent("raft").With().Uint64("node_id", rawID).Logger()
		engine, err := raft.NewEngine(raft.Config{
			SelfID:             id,
			BuddyIDs:           buddies,
			MinElectionTimeout: cfg.minElection(),
			MaxElectionTimeout: cfg.maxElection(),
			HeartbeatTimeout:   cfg.heartbeat(),
			MaxWaitEntries:     64,
			MaxPacketEntries:   16,
			MaxPacketBytes:     1 << 20,
			RandomSeed:         rawID,
			Log:                store,
			Logger:             &nodeLogger,
			Apply: func(index raft.Index, payload []byte) {
				logger.Info().Uint64("node_id", rawID).Uint64("index", uint64(index)).Str("payload", string(payload)).Msg("applied committed entry")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("new engine for node %d: %w", rawID, err)
		}
		c.nodes[id] = &demoNode{id: id, engine: engine, log: store}
	}
	return c, nil
}

func (c *cluster) openStore(id raft.NodeId) (raft.LogStore, error) {
	if c.cfg.DataDir == "" {
		return raft.NewMemoryLog(), nil
	}
	dir := filepath.Join(c.cfg.DataDir, fmt.Sprintf("node-%d", id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir for node %d: %w", id, err)
	}
	return raft.OpenBoltLog(dir)
}

func (c *cluster) initialize(now time.Time) error {
	for id, n := range c.nodes {
		if err := n.engine.Initialize(now); err != nil {
			return fmt.Errorf("initialize node %d: %w", id, err)
		}
	}
	return nil
}

// step drives every node once at now, delivering outbound messages to their
// destinations in the same step. It returns the earliest time any node next
// needs attention.
func (c *cluster) step(now time.Time) time.Time {
	var all []raft.Message
	earliest := time.Time{}
	for _, n := range c.nodes {
		var out []raft.Message
		next, err := n.engine.Update(now, &out)
		if err != nil {
			c.log.Error().Err(err).Uint64("node_id", uint64(n.id)).Msg("update failed")
			continue
		}
		all = append(all, out...)
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
		c.reportMetrics(n)
	}
	for _, m := range all {
		dest, ok := c.nodes[m.To()]
		if !ok {
			continue
		}
		if err := dest.engine.Receive(m); err != nil {
			c.log.Error().Err(err).Uint64("node_id", uint64(m.To())).Msg("receive failed")
		}
	}
	if earliest.IsZero() {
		return now
	}
	return earliest
}

func (c *cluster) reportMetrics(n *demoNode) {
	label := fmt.Sprintf("%d", n.id)
	metrics.Term.WithLabelValues(label).Set(float64(n.engine.CurrentTerm()))
	metrics.CommitIndex.WithLabelValues(label).Set(float64(n.engine.CommitIndex()))
	metrics.LastApplied.WithLabelValues(label).Set(float64(n.engine.LastApplied()))
	metrics.LogLength.WithLabelValues(label).Set(float64(n.engine.LastLogIndex()))
	isLeader := 0.0
	if n.engine.Role() == raft.RoleLeader {
		isLeader = 1.0
	}
	metrics.IsLeader.WithLabelValues(label).Set(isLeader)
}

// leader returns a node currently in the Leader role, or nil if the cluster
// has none at the moment (mid-election).
func (c *cluster) leader() *demoNode {
	for _, n := range c.nodes {
		if n.engine.Role() == raft.RoleLeader {
			return n
		}
	}
	return nil
}

// proposeSample submits a small uniquely-identified payload to whichever
// node is currently leader, purely to give the demo something to commit and
// apply.
func (c *cluster) proposeSample() {
	l := c.leader()
	if l == nil {
		return
	}
	payload := []byte("tick-" + uuid.NewString()[:8])
	index, term, err := l.engine.Propose(payload)
	if err != nil {
		c.log.Debug().Err(err).Msg("propose skipped")
		return
	}
	c.log.Info().Uint64("node_id", uint64(l.id)).Uint64("index", uint64(index)).Uint64("term", uint64(term)).Msg("proposed entry")
}

func (c *cluster) close() {
	for _, n := range c.nodes {
		_ = n.log.Close()
	}
}
