// Command subdocd (see cmd/subdocd) is a memcached-compatible binary-protocol
// key/value daemon with a JSON sub-document operation extension: clients can
// read or mutate a single path inside a stored JSON document, or a bounded
// batch of paths, without transferring the whole document across the wire.
//
// # Architecture Overview
//
// subdocd consists of several key components:
//
//   - pkg/binproto: the 24-byte-header binary wire protocol (request/response
//     framing, opcodes, statuses)
//   - pkg/validator: structural validation of sub-document requests before
//     any engine call (path/value bounds, opcode/flag legality)
//   - pkg/docbuf: per-connection scratch buffer that materializes a stored
//     item's bytes into a JSON document, decompressing when needed
//   - pkg/subdoc: the JSON path-operation engine (get/exists/dict-upsert/
//     array-push/counter/...), dispatched by a switch on its own opcode;
//     pkg/subdocexec's traits table maps each wire opcode to it
//   - pkg/subdocexec: single-path execution with CAS auto-retry
//   - pkg/multipath: multi-path lookup/mutation coordination
//   - pkg/bucket: the bucket registry (create/select/delete namespaces)
//   - pkg/ioctl: the narrow sideband control-value surface
//   - pkg/engine: the storage engine contract and an in-memory reference
//     implementation
//   - pkg/client: a pooled client SDK for the binary protocol
//   - internal/server: the TCP front-end tying the above together
//
// # Quick Start
//
// Server:
//
//	import "github.com/cachemir/cachemir/internal/server"
//	import "github.com/cachemir/cachemir/pkg/config"
//
//	cfg := config.Load()
//	srv := server.New(cfg)
//	log.Fatal(srv.Start())
//
// Client:
//
//	import "github.com/cachemir/cachemir/pkg/client"
//
//	c := client.New("localhost:11211")
//	defer c.Close()
//
//	c.Set("doc:1", []byte(`{"a":1}`), binproto.DatatypeJSON)
//	value, cas, err := c.SubdocGet("doc:1", "a")
//
// # Supported Operations
//
// Basic document operations:
//   - GET, SET, DEL
//
// Single-path sub-document operations:
//   - SUBDOC_GET, SUBDOC_EXISTS: read without mutating
//   - SUBDOC_DICT_ADD, SUBDOC_DICT_UPSERT, SUBDOC_DELETE, SUBDOC_REPLACE
//   - SUBDOC_ARRAY_PUSH_LAST, SUBDOC_ARRAY_PUSH_FIRST, SUBDOC_ARRAY_INSERT,
//     SUBDOC_ARRAY_ADD_UNIQUE
//   - SUBDOC_COUNTER: atomic delta against an integer leaf
//
// Multi-path operations:
//   - SUBDOC_MULTI_LOOKUP: every spec is attempted regardless of individual
//     failure; the response concatenates per-spec status/length/value
//   - SUBDOC_MULTI_MUTATION: specs apply sequentially against an evolving
//     document; the first failure aborts with no write
//
// Bucket administration:
//   - SELECT_BUCKET, CREATE_BUCKET, DELETE_BUCKET
//
// Sideband control:
//   - IOCTL_GET, IOCTL_SET
//
// # Concurrency Model
//
// Every connection is handled by its own goroutine making blocking engine
// calls directly; this takes the place of the original design's explicit
// EWOULDBLOCK continuation machinery (see DESIGN.md).
//
// # Configuration
//
// Server configuration via flags or environment variables:
//
//	./subdocd -port 11211 -max-conns 1000
//	# or
//	SUBDOCD_PORT=11211 SUBDOCD_MAX_CONNS=1000 ./subdocd
//
// # Package Structure
//
//   - pkg/binproto: wire protocol
//   - pkg/validator: request validation
//   - pkg/docbuf: document materialization
//   - pkg/subdoc: JSON path-operation engine
//   - pkg/subdocexec: single-path executor with CAS retry
//   - pkg/multipath: multi-path coordinator
//   - pkg/bucket: bucket registry
//   - pkg/ioctl: sideband control surface
//   - pkg/engine: storage engine contract + in-memory reference engine
//   - pkg/topkeys: per-key command counters
//   - pkg/metrics: Prometheus instrumentation
//   - pkg/logging: redacting log helpers
//   - pkg/config: configuration management
//   - pkg/client: client SDK
//   - internal/server: server implementation
//   - cmd/subdocd: server executable
//   - cmd/client-example: example client usage
//
// For detailed documentation of individual packages, see their respective godoc pages.
package cachemir
