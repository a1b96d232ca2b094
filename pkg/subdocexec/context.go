package subdocexec

import (
	"github.com/cachemir/cachemir/pkg/engine"
)

// OpResult records the outcome of one path operation performed against a
// document. Mirrors the per-index status/value pairs SubdocCmdContext
// keeps in original_source/daemon/subdocument_context.h; multipath
// accumulates its own binproto.LookupResult values instead.
type OpResult struct {
	Index  int
	Status uint8 // a binproto.Status value narrowed to uint8
	Value  []byte
}

// CommandContext is the per-command state threaded through one sub-document
// command's lifetime: created on the first fetch attempt, destroyed once
// the response has been written or the connection is abandoned, grounded on
// SubdocCmdContext (original_source/daemon/subdocument_context.h).
//
// Where the original owns its input/output Item pointers through explicit
// reservation and release calls across EWOULDBLOCK suspensions, this
// context plays the same role across Executor's retry loop: InItem is
// always released exactly once, and OutItem — if allocated — is always
// either stored or released, even on an error exit, per spec.md's item
// lifetime invariant (I-2).
type CommandContext struct {
	eng engine.Engine

	// InItem is the fetched item backing InDoc; owned until Release.
	InItem *engine.Item
	// InDoc is the materialized, uncompressed JSON buffer operations read
	// and the base mutators apply their fragments against.
	InDoc []byte
	// InCAS is the CAS observed at fetch time; write-back must match it
	// unless the client supplied its own explicit CAS.
	InCAS uint64

	// OutItem is the freshly allocated item a mutator writes its result
	// into, nil until the UPDATING transition begins.
	OutItem *engine.Item

	done bool
}

// newCommandContext begins the FETCHING transition: binds the context to
// the item just retrieved from the engine.
func newCommandContext(eng engine.Engine, item *engine.Item, doc []byte, cas uint64) *CommandContext {
	return &CommandContext{eng: eng, InItem: item, InDoc: doc, InCAS: cas}
}

// release returns both the input and (if allocated) output items to the
// engine exactly once, regardless of which exit path the command took.
// Safe to call more than once; only the first call has effect.
func (c *CommandContext) release() {
	if c.done {
		return
	}
	c.done = true
	if c.InItem != nil {
		c.eng.Release(c.InItem)
	}
	if c.OutItem != nil {
		c.eng.Release(c.OutItem)
	}
}
