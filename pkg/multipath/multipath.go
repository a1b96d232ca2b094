// Package multipath implements the multi-path coordinator (spec.md §4.6,
// SPEC_FULL.md C6): executing a vector of lookup or mutation specs against
// one document, aggregating per-spec outcomes into a single response.
//
// There is no direct analogue in original_source/ for this file — the
// original's multi-path dispatch lives inlined in the command executor —
// so this package is grounded on the same subdocument_context.h lifecycle
// discipline as pkg/subdocexec, generalized from one spec to many.
package multipath

import (
	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/engine"
	"github.com/cachemir/cachemir/pkg/subdoc"
	"github.com/cachemir/cachemir/pkg/subdocexec"
)

// LookupSpec is one decoded entry of a multi-lookup request, narrowed from
// binproto.MultiLookupSpec to the fields the coordinator needs.
type LookupSpec struct {
	Opcode binproto.Opcode
	Flags  binproto.SubdocFlag
	Path   string
}

// MutationSpec is one decoded entry of a multi-mutation request.
type MutationSpec struct {
	Opcode binproto.Opcode
	Flags  binproto.SubdocFlag
	Path   string
	Value  []byte
}

// LookupResponse is the coordinator's verdict for a multi-lookup: an
// overall status plus the ordered per-spec results.
type LookupResponse struct {
	Status  binproto.Status
	CAS     uint64
	Results []binproto.LookupResult
}

// MutationResponse is the coordinator's verdict for a multi-mutation.
// On success Status is binproto.StatusSuccess and CAS is the new CAS; on
// failure Status/FailIndex identify the offending spec and no write
// occurred.
type MutationResponse struct {
	Status     binproto.Status
	CAS        uint64
	FailIndex  int
	FailStatus binproto.Status
}

// Coordinator runs multi-path commands against one Engine, reusing the
// Executor's retry bound and stats hooks rather than duplicating them.
type Coordinator struct {
	Engine           engine.Engine
	Docbuf           *docbuf.Connection
	MaxRetryAttempts int
	Stats            subdocexec.Stats
}

// NewCoordinator constructs a Coordinator with the executor's default
// retry bound.
func NewCoordinator(eng engine.Engine, conn *docbuf.Connection, stats subdocexec.Stats) *Coordinator {
	return &Coordinator{
		Engine:           eng,
		Docbuf:           conn,
		MaxRetryAttempts: subdocexec.DefaultMaxRetryAttempts,
		Stats:            stats,
	}
}

// Lookup implements spec.md §4.6 "Multi-lookup": every spec is attempted
// against the same materialized document regardless of earlier failures,
// and the overall status is SUBDOC_MULTI_PATH_FAILURE iff any spec failed.
func (c *Coordinator) Lookup(vbucket uint16, key string, specs []LookupSpec) LookupResponse {
	item, estatus, err := c.Engine.Get(vbucket, key)
	if err == engine.ErrDisconnect {
		return LookupResponse{Status: binproto.StatusEInternal}
	}
	if estatus == engine.StatusKeyEnoent {
		return LookupResponse{Status: binproto.StatusKeyNotFound}
	}
	defer c.Engine.Release(item)

	mat := c.Docbuf.Materialize(item, 0)
	if mat.Status != docbuf.StatusOK {
		return LookupResponse{Status: subdocexec.MapDocbufStatus(mat.Status, key)}
	}

	results := make([]binproto.LookupResult, len(specs))
	anyFailed := false
	for i, spec := range specs {
		traits := subdocexec.TraitsTable[spec.Opcode]
		res := subdoc.Execute(traits.SubdocOp, false, mat.Doc, spec.Path, nil)
		if res.Status != subdoc.StatusSuccess {
			anyFailed = true
			results[i] = binproto.LookupResult{Status: subdocexec.MapSubdocStatus(res.Status, key)}
			if c.Stats != nil {
				c.Stats.IncrCmdGet(key)
			}
			continue
		}
		if c.Stats != nil {
			c.Stats.IncrCmdGet(key)
		}
		results[i] = binproto.LookupResult{Status: binproto.StatusSuccess, Value: res.Value}
	}

	overall := binproto.Status(binproto.StatusSuccess)
	if anyFailed {
		overall = binproto.StatusSubdocMultiPathFailure
	}
	return LookupResponse{Status: overall, CAS: mat.CAS, Results: results}
}

// Mutate implements spec.md §4.6 "Multi-mutation": specs are applied
// sequentially against an evolving in-memory document; the first failing
// spec aborts the whole request with no write performed; on success the
// final document is written back as one REPLACE under the input CAS, with
// the same bounded auto-retry as the single-path executor.
func (c *Coordinator) Mutate(vbucket uint16, key string, clientCAS uint64, specs []MutationSpec) MutationResponse {
	attempts := 0
	for {
		resp, retry := c.attemptMutate(vbucket, key, clientCAS, specs)
		if !retry {
			return resp
		}
		attempts++
		if c.Stats != nil {
			c.Stats.IncrRetry(key)
		}
		if attempts >= c.MaxRetryAttempts {
			if c.Stats != nil {
				c.Stats.IncrTmpFail(key)
			}
			return MutationResponse{Status: binproto.StatusTmpFail}
		}
	}
}

func (c *Coordinator) attemptMutate(vbucket uint16, key string, clientCAS uint64, specs []MutationSpec) (MutationResponse, bool) {
	item, estatus, err := c.Engine.Get(vbucket, key)
	if err == engine.ErrDisconnect {
		return MutationResponse{Status: binproto.StatusEInternal}, false
	}
	if estatus == engine.StatusKeyEnoent {
		return MutationResponse{Status: binproto.StatusKeyNotFound}, false
	}
	defer c.Engine.Release(item)

	mat := c.Docbuf.Materialize(item, clientCAS)
	if mat.Status != docbuf.StatusOK {
		return MutationResponse{Status: subdocexec.MapDocbufStatus(mat.Status, key)}, false
	}

	doc := mat.Doc
	for i, spec := range specs {
		traits := subdocexec.TraitsTable[spec.Opcode]
		res := subdoc.Execute(traits.SubdocOp, spec.Flags&binproto.MkdirP != 0, doc, spec.Path, spec.Value)
		if res.Status != subdoc.StatusSuccess {
			return MutationResponse{
				Status:     binproto.StatusSubdocMultiPathFailure,
				FailIndex:  i,
				FailStatus: subdocexec.MapSubdocStatus(res.Status, key),
			}, false
		}
		newDoc := make([]byte, 0, res.FragmentLen())
		for _, frag := range res.Fragments {
			newDoc = append(newDoc, frag...)
		}
		doc = newDoc
	}

	out, err := c.Engine.Allocate(vbucket, key, len(doc), 0, 0, binproto.DatatypeJSON)
	if err != nil {
		return MutationResponse{Status: binproto.StatusENoMem}, false
	}
	defer c.Engine.Release(out)
	copy(out.Value, doc)
	c.Engine.ItemSetCAS(out, mat.CAS)

	status, err := c.Engine.Store(out, engine.StoreReplace)
	if err != nil {
		return MutationResponse{Status: binproto.StatusEInternal}, false
	}

	switch status {
	case engine.StatusSuccess:
		if c.Stats != nil {
			c.Stats.IncrCmdSet(key)
		}
		return MutationResponse{Status: binproto.StatusSuccess, CAS: out.CAS}, false
	case engine.StatusKeyEExists:
		if clientCAS == 0 {
			return MutationResponse{}, true
		}
		return MutationResponse{Status: binproto.StatusKeyExists}, false
	default:
		return MutationResponse{Status: binproto.StatusEInternal}, false
	}
}
