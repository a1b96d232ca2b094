// Package cachemir documents the pkg/ tree of the subdocd sub-document
// daemon: a memcached-compatible binary-protocol key/value server with a
// JSON sub-document operation extension.
//
// This file carries no code; it is a landing page for godoc readers of the
// module root. The individual packages below are what get imported.
//
// # Overview
//
// subdocd stores arbitrary byte blobs under a key, same as memcached, but
// additionally lets a client address one path inside a document stored as
// JSON — reading or mutating just that path, or a bounded batch of paths in
// one round trip — without transferring the whole document.
//
// # Architecture Components
//
// Wire protocol (pkg/binproto):
//   - 24-byte header, network byte order
//   - Request/response framing, opcodes, status codes
//
// Validation (pkg/validator):
//   - Structural checks (path length, value presence, flag legality, multi
//     spec count/purity) applied before any engine call
//
// Document materialization (pkg/docbuf):
//   - Per-connection scratch buffer turning a stored item's bytes into a
//     flat, uncompressed JSON buffer, transparently decompressing when needed
//
// Path-operation engine (pkg/subdoc):
//   - get/exists/dict-add/dict-upsert/delete/replace/array-push/
//     array-insert/array-add-unique/counter, dispatched by a switch on the
//     sub-document opcode that pkg/subdocexec's traits table maps to
//
// Execution (pkg/subdocexec, pkg/multipath):
//   - Single-path execution with bounded CAS auto-retry
//   - Multi-path lookup (independent attempts, partial-failure status) and
//     multi-path mutation (sequential, first-failure-aborts, single write)
//
// Storage (pkg/engine):
//   - The Engine contract the execution layer consumes
//   - An in-memory reference implementation with background expiry sweep
//
// Bucket registry (pkg/bucket):
//   - Named namespace create/select/delete, with delete draining in-flight
//     commands rather than severing them
//
// Sideband control (pkg/ioctl):
//   - A narrow key/value surface for operational knobs
//     (release_free_memory, decommit, per-connection tracing)
//
// Observability (pkg/topkeys, pkg/metrics, pkg/logging):
//   - Sharded per-key command counters
//   - Prometheus counters/histograms/gauges
//   - Redacting log helpers
//
// Configuration (pkg/config):
//   - Flags and SUBDOCD_*-prefixed environment variables, with validation
//
// Client SDK (pkg/client):
//   - Pooled connections to a single daemon endpoint, bounded retry on
//     network error, typed methods over the wire protocol
//
// Server (internal/server):
//   - One goroutine per TCP (or TLS) connection, owning that connection's
//     framing/dispatch/response loop strictly in receive order
//
// # Usage Example
//
//	import "github.com/cachemir/cachemir/pkg/client"
//	import "github.com/cachemir/cachemir/pkg/binproto"
//
//	c := client.New("localhost:11211")
//	defer c.Close()
//
//	c.Set("doc:1", []byte(`{"count":0}`), binproto.DatatypeJSON)
//	cas, err := c.SubdocCounter("doc:1", "count", []byte("1"), client.SubdocOpts{})
//
// # Concurrency Model
//
// Every connection is served by its own goroutine making blocking calls
// directly against the bound engine; there is no explicit continuation or
// suspend/resume state machine (see DESIGN.md for why that departs from the
// original cooperative-scheduling design this daemon is modeled on).
//
// For detailed documentation of specific components, refer to their
// individual package documentation.
package cachemir
