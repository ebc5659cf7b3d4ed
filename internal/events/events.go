// Package events defines the Kafka event schemas the vault publishes and
// a bounded asynchronous emitter that keeps slow brokers off the request
// path. Document events feed the corpus bond aggregator; invalidation
// events fan cache drops out to every node.
package events

import "time"

// BondCount is one counted adjacency in wire form.
type BondCount struct {
	A     int64 `json:"a"`
	B     int64 `json:"b"`
	Count int   `json:"count"`
}

// DocumentIngested is published once per stored document. It carries the
// full per-document bond set so the aggregator can fold the corpus graph
// without re-reading the store.
type DocumentIngested struct {
	Address    string      `json:"address"`
	Name       string      `json:"name"`
	Century    string      `json:"century"`
	TokenCount int         `json:"token_count"`
	TotalSlots int         `json:"total_slots"`
	Bonds      []BondCount `json:"bonds"`
	FirstA     int64       `json:"first_a"`
	FirstB     int64       `json:"first_b"`
	IngestedAt time.Time   `json:"ingested_at"`
}

// CacheInvalidate tells every node to drop the named bare cache keys.
// Origin is the emitting node, for tracing; consumers do not filter on
// it since dropping an already-dropped key is harmless.
type CacheInvalidate struct {
	Keys   []string  `json:"keys"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}
