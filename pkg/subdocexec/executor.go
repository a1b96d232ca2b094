package subdocexec

import (
	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/engine"
	"github.com/cachemir/cachemir/pkg/subdoc"
)

// DefaultMaxRetryAttempts bounds the CAS auto-retry loop (spec.md §4.5,
// §9: "a safety rail against livelock ... must default to a finite
// value"). Exposed as a struct field on Executor so callers can override
// it, per the design notes.
const DefaultMaxRetryAttempts = 100

// Request is the decoded single-path sub-document command the executor
// acts on; built by the caller (internal/server) after validation.
type Request struct {
	Opcode      binproto.Opcode
	Key         string
	VBucket     uint16
	Path        string
	Value       []byte
	Flags       binproto.SubdocFlag
	ClientCAS   uint64 // 0 means auto-retry is enabled
	Expiry      uint32
	HasExpiry   bool
}

// Response is what the executor hands back to the wire layer to frame as
// a packet.
type Response struct {
	Status binproto.Status
	CAS    uint64
	Value  []byte
}

// Stats receives the side-effect counters the executor updates as it
// runs, per spec.md §4.5 "Side effects" — an interface so callers can
// wire pkg/metrics and pkg/topkeys without this package depending on
// either.
type Stats interface {
	IncrCmdGet(key string)
	IncrCmdSet(key string)
	IncrRetry(key string)
	IncrTmpFail(key string)
}

// Executor runs the C5 fetch → operate → update → respond state machine
// for a single-path sub-document command against one Engine.
type Executor struct {
	Engine          engine.Engine
	Docbuf          *docbuf.Connection
	MaxRetryAttempts int
	Stats           Stats
}

// NewExecutor constructs an Executor with the default retry bound.
func NewExecutor(eng engine.Engine, conn *docbuf.Connection, stats Stats) *Executor {
	return &Executor{
		Engine:           eng,
		Docbuf:           conn,
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		Stats:            stats,
	}
}

// Unlike the original's EWOULDBLOCK continuation machinery
// (original_source/daemon/subdocument_context.h), Go's goroutine-per-
// connection model lets each engine call simply block the command's own
// goroutine; the retry loop below is the state machine's
// INIT/FETCHING/OPERATING/UPDATING/RESPONDING transitions collapsed onto
// straight-line control flow around a CommandContext instead of an
// explicit continuation object, per the design notes' "explicit
// state-machine continuations or language-level tasks" choice (spec.md §9).

// Execute runs req to completion, including CAS auto-retry, and returns
// the protocol-level response.
func (ex *Executor) Execute(req Request) Response {
	traits, ok := TraitsTable[req.Opcode]
	if !ok {
		return Response{Status: binproto.StatusUnknownCommand}
	}

	attempts := 0
	for {
		resp, retry := ex.attempt(req, traits)
		if !retry {
			return resp
		}
		attempts++
		if ex.Stats != nil {
			ex.Stats.IncrRetry(req.Key)
		}
		if attempts >= ex.MaxRetryAttempts {
			if ex.Stats != nil {
				ex.Stats.IncrTmpFail(req.Key)
			}
			return Response{Status: binproto.StatusTmpFail}
		}
	}
}

// attempt runs one FETCHING → OPERATING → UPDATING → RESPONDING pass. The
// bool return signals "KEY_EEXISTS under auto-retry: loop again".
func (ex *Executor) attempt(req Request, traits Traits) (Response, bool) {
	item, estatus, err := ex.Engine.Get(req.VBucket, req.Key)
	if err == engine.ErrDisconnect {
		return Response{Status: binproto.StatusEInternal}, false
	}
	if estatus == engine.StatusKeyEnoent {
		return Response{Status: binproto.StatusKeyNotFound}, false
	}

	mat := ex.Docbuf.Materialize(item, req.ClientCAS)
	if mat.Status != docbuf.StatusOK {
		ex.Engine.Release(item)
		return Response{Status: MapDocbufStatus(mat.Status, req.Key)}, false
	}
	cmd := newCommandContext(ex.Engine, item, mat.Doc, mat.CAS)
	defer cmd.release()

	result := subdoc.Execute(traits.SubdocOp, req.Flags&binproto.MkdirP != 0, cmd.InDoc, req.Path, req.Value)
	if result.Status != subdoc.StatusSuccess {
		return Response{Status: MapSubdocStatus(result.Status, req.Key)}, false
	}

	if !traits.IsMutator {
		if ex.Stats != nil {
			ex.Stats.IncrCmdGet(req.Key)
		}
		resp := Response{Status: binproto.StatusSuccess, CAS: cmd.InCAS}
		if traits.ResponseHasValue {
			resp.Value = result.Value
		}
		return resp, false
	}

	return ex.writeBack(req, cmd, result)
}

// writeBack performs the UPDATING transition: allocate the new item,
// stamp it with the input CAS, copy fragments in, and REPLACE it. The
// allocated item is bound to cmd.OutItem so CommandContext.release always
// returns it to the engine, on both the success and retry exit paths.
func (ex *Executor) writeBack(req Request, cmd *CommandContext, result subdoc.Result) (Response, bool) {
	newLen := result.FragmentLen()
	out, err := ex.Engine.Allocate(req.VBucket, req.Key, newLen, 0, 0, binproto.DatatypeJSON)
	if err != nil {
		return Response{Status: binproto.StatusENoMem}, false
	}
	cmd.OutItem = out

	offset := 0
	for _, frag := range result.Fragments {
		copy(out.Value[offset:], frag)
		offset += len(frag)
	}
	ex.Engine.ItemSetCAS(out, cmd.InCAS)

	status, err := ex.Engine.Store(out, engine.StoreReplace)
	if err != nil {
		return Response{Status: binproto.StatusEInternal}, false
	}

	switch status {
	case engine.StatusSuccess:
		if ex.Stats != nil {
			ex.Stats.IncrCmdSet(req.Key)
		}
		resp := Response{Status: binproto.StatusSuccess, CAS: out.CAS}
		if TraitsTable[req.Opcode].ResponseHasValue {
			resp.Value = result.Value
		}
		return resp, false

	case engine.StatusKeyEExists:
		if req.ClientCAS == 0 {
			return Response{}, true
		}
		return Response{Status: binproto.StatusKeyExists}, false

	default:
		return Response{Status: binproto.StatusEInternal}, false
	}
}
