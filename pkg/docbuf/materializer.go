// Package docbuf implements the document materializer (spec.md §4.4,
// SPEC_FULL.md C3): turning a fetched storage item into a flat,
// uncompressed JSON buffer a sub-document command can operate on.
package docbuf

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/engine"
	"github.com/cachemir/cachemir/pkg/logging"
)

// Status is the materializer's outcome taxonomy, mapped 1:1 to protocol
// statuses by the executor.
type Status int

const (
	StatusOK Status = iota
	StatusNotJSON
	StatusInternal
	StatusTooBig
	StatusCASMismatch
)

// Result carries the materialized buffer plus the CAS observed at fetch
// time, which the executor must thread through to the eventual write-back
// (spec.md I-3).
type Result struct {
	Status Status
	Doc    []byte
	CAS    uint64
}

// Connection is the per-connection scratch state the materializer grows
// to hold a decompressed document, mirroring the "connection's
// DynamicBuffer" the specification describes (spec.md §4.4, §5).
type Connection struct {
	mu        sync.Mutex
	buf       []byte
	maxGrow   int
	decoder   *zstd.Decoder
	encoder   *zstd.Encoder
}

// NewConnection creates per-connection decompression scratch state bounded
// by maxGrow bytes (spec.md §4.4 "if the connection cannot grow its buffer,
// fail E2BIG").
func NewConnection(maxGrow int) (*Connection, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("docbuf: creating zstd decoder: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("docbuf: creating zstd encoder: %w", err)
	}
	return &Connection{maxGrow: maxGrow, decoder: dec, encoder: enc}, nil
}

// Close releases the connection's zstd codec resources.
func (c *Connection) Close() {
	c.decoder.Close()
	c.encoder.Close()
}

// Compress encodes a plain JSON buffer for storage as COMPRESSED_JSON.
func (c *Connection) Compress(doc []byte) []byte {
	return c.encoder.EncodeAll(doc, nil)
}

// Materialize implements spec.md §4.4: obtains a contiguous JSON buffer
// from item, honoring its datatype and the client-supplied expected CAS
// (0 meaning "don't care").
func (c *Connection) Materialize(item *engine.Item, expectedCAS uint64) Result {
	if expectedCAS != 0 && item.CAS != expectedCAS {
		return Result{Status: StatusCASMismatch, CAS: item.CAS}
	}

	switch {
	case item.Datatype == binproto.DatatypeJSON:
		return Result{Status: StatusOK, Doc: item.Value, CAS: item.CAS}

	case item.Datatype == binproto.DatatypeCompressedJSON:
		doc, err := c.decompress(item.Value)
		if err != nil {
			if err == errGrowLimit {
				return Result{Status: StatusTooBig, CAS: item.CAS}
			}
			return Result{Status: StatusInternal, CAS: item.CAS}
		}
		return Result{Status: StatusOK, Doc: doc, CAS: item.CAS}

	case item.Datatype == binproto.DatatypeRaw, item.Datatype == binproto.DatatypeCompressed:
		return Result{Status: StatusNotJSON, CAS: item.CAS}

	default:
		logging.Errorf("docbuf: unknown datatype 0x%02x for key=%s", byte(item.Datatype), logging.RedactKey(item.Key))
		return Result{Status: StatusInternal, CAS: item.CAS}
	}
}

var errGrowLimit = fmt.Errorf("docbuf: dynamic buffer exceeds configured maximum")

func (c *Connection) decompress(compressed []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.decoder.DecodeAll(compressed, c.buf[:0])
	if err != nil {
		return nil, fmt.Errorf("docbuf: decompress: %w", err)
	}
	if c.maxGrow > 0 && len(out) > c.maxGrow {
		return nil, errGrowLimit
	}
	c.buf = out
	return out, nil
}
