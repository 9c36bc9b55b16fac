package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// clusterConfig describes a cluster topology read from a YAML manifest: how
// many nodes to run, their timing knobs, and whether to persist their logs
// to disk (bbolt) or keep them in memory for a throwaway run.
type clusterConfig struct {
	NodeIDs              []uint64 `yaml:"node_ids"`
	MinElectionTimeoutMs int      `yaml:"min_election_timeout_ms"`
	MaxElectionTimeoutMs int      `yaml:"max_election_timeout_ms"`
	HeartbeatTimeoutMs   int      `yaml:"heartbeat_timeout_ms"`
	TickIntervalMs       int      `yaml:"tick_interval_ms"`
	ProposeIntervalMs    int      `yaml:"propose_interval_ms"`
	DataDir              string   `yaml:"data_dir"`
	MetricsAddr          string   `yaml:"metrics_addr"`
}

func defaultClusterConfig() clusterConfig {
	return clusterConfig{
		NodeIDs:              []uint64{1, 2, 3},
		MinElectionTimeoutMs: 300,
		MaxElectionTimeoutMs: 600,
		HeartbeatTimeoutMs:   75,
		TickIntervalMs:       25,
		ProposeIntervalMs:    2000,
		DataDir:              "",
		MetricsAddr:          "127.0.0.1:9090",
	}
}

func loadClusterConfig(path string) (clusterConfig, error) {
	cfg := defaultClusterConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read cluster config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse cluster config: %w", err)
	}
	return cfg, nil
}

func (c clusterConfig) minElection() time.Duration {
	return time.Duration(c.MinElectionTimeoutMs) * time.Millisecond
}

func (c clusterConfig) maxElection() time.Duration {
	return time.Duration(c.MaxElectionTimeoutMs) * time.Millisecond
}

func (c clusterConfig) heartbeat() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

func (c clusterConfig) tickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c clusterConfig) proposeInterval() time.Duration {
	return time.Duration(c.ProposeIntervalMs) * time.Millisecond
}
