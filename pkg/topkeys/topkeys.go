// Package topkeys implements the per-key counters the sub-document core
// updates as a side effect of executing commands (spec.md §4.5 "Side
// effects"), per spec.md's Non-goals: "statistics surfaces (topkeys,
// connection stats) beyond the counters the core updates" are out of
// scope, so this package stops at the counters themselves — no eviction
// policy, no top-N reporting API.
//
// Grounded on the teacher's pkg/cache.Cache sharded-by-mutex style, here
// sharded across a fixed number of buckets to keep contention low under
// concurrent connections, the same tradeoff the teacher's cache makes
// with its single map but scaled out. A hashicorp/golang-lru-backed
// implementation was considered (it appears as a transitive dependency of
// doda-vex's memberlist import) but rejected: nothing in this corpus
// imports it directly, and an LRU eviction policy is exactly the
// "statistics surface" complexity the spec places out of scope — see
// DESIGN.md.
package topkeys

import (
	"sync"
	"sync/atomic"
)

const numShards = 8

// counters is one key's running totals.
type counters struct {
	get      uint64
	set      uint64
	retry    uint64
	tmpFail  uint64
}

type shard struct {
	mu   sync.Mutex
	keys map[string]*counters
}

// Table accumulates per-key get/set/retry/tmpfail counts, sharded to
// spread lock contention across connections hitting different keys.
type Table struct {
	shards [numShards]*shard
}

// New creates an empty, ready-to-use Table.
func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{keys: make(map[string]*counters)}
	}
	return t
}

func (t *Table) shardFor(key string) *shard {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return t.shards[h%numShards]
}

func (t *Table) get(key string) *counters {
	sh := t.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.keys[key]
	if !ok {
		c = &counters{}
		sh.keys[key] = c
	}
	return c
}

// IncrCmdGet implements subdocexec.Stats.
func (t *Table) IncrCmdGet(key string) { atomic.AddUint64(&t.get(key).get, 1) }

// IncrCmdSet implements subdocexec.Stats.
func (t *Table) IncrCmdSet(key string) { atomic.AddUint64(&t.get(key).set, 1) }

// IncrRetry implements subdocexec.Stats.
func (t *Table) IncrRetry(key string) { atomic.AddUint64(&t.get(key).retry, 1) }

// IncrTmpFail implements subdocexec.Stats.
func (t *Table) IncrTmpFail(key string) { atomic.AddUint64(&t.get(key).tmpFail, 1) }

// Snapshot is a point-in-time copy of one key's counters, exposed for
// callers and tests; not a ranked top-N view.
type Snapshot struct {
	Get, Set, Retry, TmpFail uint64
}

// Lookup returns the current counters for key, or the zero Snapshot if it
// has never been touched.
func (t *Table) Lookup(key string) Snapshot {
	sh := t.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.keys[key]
	if !ok {
		return Snapshot{}
	}
	return Snapshot{
		Get:     atomic.LoadUint64(&c.get),
		Set:     atomic.LoadUint64(&c.set),
		Retry:   atomic.LoadUint64(&c.retry),
		TmpFail: atomic.LoadUint64(&c.tmpFail),
	}
}
