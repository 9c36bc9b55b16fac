package raft

import "time"

// randSource is a seedable, deterministic generator of election timeouts.
// It needs only next_u64 (spec §9 "Randomness") so tests can supply a fixed
// or hand-rolled sequence instead of the default xorshift64 generator.
type randSource interface {
	nextU64() uint64
}

// xorshift64 is a small, dependency-free deterministic PRNG: fast, seedable,
// good enough for jittering election timeouts and nothing more security
// sensitive than that.
type xorshift64 struct {
	state uint64
}

func newXorshift64(seed uint64) *xorshift64 {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	return &xorshift64{state: seed}
}

func (x *xorshift64) nextU64() uint64 {
	x.state ^= x.state << 13
	x.state ^= x.state >> 7
	x.state ^= x.state << 17
	return x.state
}

// randElectionTimeout draws a duration uniformly from
// [minElectionTimeout, maxElectionTimeout].
func randElectionTimeout(r randSource, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := uint64(max-min) + 1
	return min + time.Duration(r.nextU64()%span)
}
