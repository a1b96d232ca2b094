package engine

import "github.com/cespare/xxhash/v2"

// NumVBuckets is the fixed vbucket space size the core routes into, a
// conventional power of two matching the original protocol's vbucket map
// sizing.
const NumVBuckets = 1024

// VBucketOf hashes key into the vbucket space using xxhash, the same
// hashing library doda-vex uses for its document id assignment
// (internal/indexer/l0_builder.go) — adopted here in place of a
// hand-rolled FNV/CRC loop.
func VBucketOf(key string) uint16 {
	return uint16(xxhash.Sum64String(key) % NumVBuckets)
}
