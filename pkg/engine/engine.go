// Package engine defines the storage engine contract the sub-document core
// consumes as an external collaborator (spec.md §1, §3), and provides an
// in-memory reference implementation used by the daemon's default bucket
// and by the package's own tests.
//
// The contract intentionally mirrors the engine operations named in the
// specification: allocate/get/store/release/item_set_cas/get_item_info.
// Everything above this layer — persistence, replication, rebalance — is
// out of scope (spec.md "Non-goals").
package engine

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cachemir/cachemir/pkg/binproto"
)

// Status is the engine-level result of an operation, translated by the
// executor (pkg/subdocexec) into a protocol status per spec.md §7.
type Status int

const (
	StatusSuccess Status = iota
	StatusKeyEnoent
	StatusKeyEExists
	StatusEWouldBlock
	StatusDisconnect
	StatusENoMem
	StatusNotStored
)

// ErrWouldBlock is returned by operations that would otherwise block; the
// caller suspends the in-flight command and retries once re-entered,
// per spec.md §5.
var ErrWouldBlock = errors.New("engine: would block")

// ErrDisconnect signals the connection must be torn down.
var ErrDisconnect = errors.New("engine: disconnect")

// Item is the opaque handle to a stored value. Exactly one Release call is
// required per successful Get/Allocate, on every exit path (spec.md
// GLOSSARY "Item").
type Item struct {
	Key      string
	VBucket  uint16
	CAS      uint64
	Flags    uint32
	Expiry   uint32
	Datatype binproto.Datatype
	Value    []byte
}

// StoreOp selects the write semantics of Store.
type StoreOp int

const (
	StoreSet StoreOp = iota
	StoreAdd
	StoreReplace
)

// Engine is the storage engine interface consumed by the sub-document
// core. Implementations must be safe for concurrent use — the
// specification requires "individual engine handles are themselves
// reentrant per their contract" (spec.md §5).
type Engine interface {
	// Allocate reserves a new item of the given size and datatype, not yet
	// visible to Get until Store succeeds. Returns ErrWouldBlock if the
	// call should be retried after suspension.
	Allocate(vbucket uint16, key string, size int, flags uint32, expiry uint32, datatype binproto.Datatype) (*Item, error)

	// Get fetches the current item for key, or (nil, StatusKeyEnoent).
	// Returns ErrWouldBlock if the call should be retried after
	// suspension, or ErrDisconnect if the connection must close.
	Get(vbucket uint16, key string) (*Item, Status, error)

	// Store writes item under op semantics. For StoreReplace with a
	// non-zero item.CAS, it must match the currently stored CAS, else
	// StatusKeyEExists is returned so the caller can retry (spec.md I-3);
	// a zero item.CAS replaces without a CAS check. Returns
	// ErrWouldBlock if the call should be retried after suspension.
	Store(item *Item, op StoreOp) (Status, error)

	// Release returns an item handle to the engine. Must be called
	// exactly once per item obtained from Allocate or Get.
	Release(item *Item)

	// Delete removes key, reporting whether it existed.
	Delete(vbucket uint16, key string) (Status, error)

	// ItemSetCAS overwrites an item's CAS in place, used by the executor
	// when re-deriving a new item from an input CAS (spec.md §4.5 step 3c).
	ItemSetCAS(item *Item, cas uint64)

	// GetItemInfo reports an item's metadata without transferring
	// ownership, used by stats and ioctl surfaces.
	GetItemInfo(item *Item) (datatype binproto.Datatype, cas uint64, flags uint32)
}

// memEntry is the engine's internal record for one stored key.
type memEntry struct {
	cas      uint64
	flags    uint32
	expiry   uint32
	datatype binproto.Datatype
	value    []byte
	storedAt time.Time
}

// MemEngine is an in-memory reference Engine, adapted from the teacher's
// map+mutex cache design (pkg/cache.Cache) to the item/CAS/datatype model
// this core requires in place of the teacher's Redis-style value types.
// It never returns ErrWouldBlock — real engines built on disk or a
// network-attached store would. pkg/subdocexec and pkg/multipath check
// only for ErrDisconnect after Get; they do not suspend or retry a call
// that returns ErrWouldBlock.
type MemEngine struct {
	mu      sync.RWMutex
	data    map[string]*memEntry
	casSeq  uint64
	closeCh chan struct{}
	once    sync.Once
}

// NewMemEngine creates a ready-to-use in-memory engine and starts its
// background expiry sweep, mirroring cache.New()'s cleanupExpired model.
func NewMemEngine() *MemEngine {
	e := &MemEngine{
		data:    make(map[string]*memEntry),
		closeCh: make(chan struct{}),
	}
	go e.sweepExpired()
	return e
}

func vkey(vbucket uint16, key string) string {
	return strconv.Itoa(int(vbucket)) + ":" + key
}

func (e *MemEngine) sweepExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			now := time.Now()
			for k, entry := range e.data {
				if entry.expiry != 0 && now.Unix() > int64(entry.expiry) {
					delete(e.data, k)
				}
			}
			e.mu.Unlock()
		case <-e.closeCh:
			return
		}
	}
}

// Close stops the background expiry sweep.
func (e *MemEngine) Close() {
	e.once.Do(func() { close(e.closeCh) })
}

func (e *MemEngine) nextCAS() uint64 {
	e.casSeq++
	return e.casSeq
}

// Allocate reserves an owned Item the caller will populate and Store.
func (e *MemEngine) Allocate(vbucket uint16, key string, size int, flags uint32, expiry uint32, datatype binproto.Datatype) (*Item, error) {
	return &Item{
		Key:      key,
		VBucket:  vbucket,
		Flags:    flags,
		Expiry:   expiry,
		Datatype: datatype,
		Value:    make([]byte, size),
	}, nil
}

// Get returns a copy of the currently stored item for key.
func (e *MemEngine) Get(vbucket uint16, key string) (*Item, Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.data[vkey(vbucket, key)]
	if !ok {
		return nil, StatusKeyEnoent, nil
	}
	if entry.expiry != 0 && time.Now().Unix() > int64(entry.expiry) {
		return nil, StatusKeyEnoent, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return &Item{
		Key:      key,
		VBucket:  vbucket,
		CAS:      entry.cas,
		Flags:    entry.flags,
		Expiry:   entry.expiry,
		Datatype: entry.datatype,
		Value:    value,
	}, StatusSuccess, nil
}

// Store writes item per op's semantics.
func (e *MemEngine) Store(item *Item, op StoreOp) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := vkey(item.VBucket, item.Key)
	existing, exists := e.data[k]

	switch op {
	case StoreAdd:
		if exists {
			return StatusNotStored, nil
		}
	case StoreReplace:
		if !exists {
			return StatusKeyEnoent, nil
		}
		if item.CAS != 0 && existing.cas != item.CAS {
			return StatusKeyEExists, nil
		}
	}

	newCAS := e.nextCAS()
	value := make([]byte, len(item.Value))
	copy(value, item.Value)
	e.data[k] = &memEntry{
		cas:      newCAS,
		flags:    item.Flags,
		expiry:   item.Expiry,
		datatype: item.Datatype,
		value:    value,
		storedAt: time.Now(),
	}
	item.CAS = newCAS
	return StatusSuccess, nil
}

// Release is a no-op for the in-memory engine; real engines would return
// reference-counted item slots here.
func (e *MemEngine) Release(item *Item) {}

// Delete removes key from vbucket.
func (e *MemEngine) Delete(vbucket uint16, key string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := vkey(vbucket, key)
	if _, ok := e.data[k]; !ok {
		return StatusKeyEnoent, nil
	}
	delete(e.data, k)
	return StatusSuccess, nil
}

// ItemSetCAS overwrites item.CAS in place.
func (e *MemEngine) ItemSetCAS(item *Item, cas uint64) {
	item.CAS = cas
}

// GetItemInfo reports item metadata.
func (e *MemEngine) GetItemInfo(item *Item) (binproto.Datatype, uint64, uint32) {
	return item.Datatype, item.CAS, item.Flags
}
