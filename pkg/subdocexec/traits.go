// Package subdocexec implements the sub-document executor (spec.md §4.5,
// SPEC_FULL.md C5): the fetch → operate → update → respond state machine
// for single-path sub-document commands, including CAS-based auto-retry.
package subdocexec

import (
	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/subdoc"
)

// Traits is the per-opcode behavior record the executor looks up instead
// of branching on opcode directly, grounded on
// original_source/daemon/subdocument_traits.h's cmd_traits table.
type Traits struct {
	SubdocOp        subdoc.Opcode
	IsMutator       bool
	RequestHasValue bool
	ResponseHasValue bool
	AllowEmptyPath  bool
	ValidFlags      binproto.SubdocFlag
}

// TraitsTable maps each single-path sub-document wire opcode to its
// Traits record. This is the sole source of per-opcode behavior for both
// the validator and the executor — no opcode switches beyond this table
// and opcode decoding itself (spec.md §9).
var TraitsTable = map[binproto.Opcode]Traits{
	binproto.OpSubdocGet: {
		SubdocOp: subdoc.OpGet, IsMutator: false,
		RequestHasValue: false, ResponseHasValue: true, AllowEmptyPath: false,
		ValidFlags: 0,
	},
	binproto.OpSubdocExists: {
		SubdocOp: subdoc.OpExists, IsMutator: false,
		RequestHasValue: false, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: 0,
	},
	binproto.OpSubdocDictAdd: {
		SubdocOp: subdoc.OpDictAdd, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: binproto.MkdirP,
	},
	binproto.OpSubdocDictUpsert: {
		SubdocOp: subdoc.OpDictUpsert, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: binproto.MkdirP,
	},
	binproto.OpSubdocDelete: {
		SubdocOp: subdoc.OpDelete, IsMutator: true,
		RequestHasValue: false, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: 0,
	},
	binproto.OpSubdocReplace: {
		SubdocOp: subdoc.OpReplace, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: 0,
	},
	binproto.OpSubdocArrayPushLast: {
		SubdocOp: subdoc.OpArrayPushLast, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: true,
		ValidFlags: binproto.MkdirP,
	},
	binproto.OpSubdocArrayPushFirst: {
		SubdocOp: subdoc.OpArrayPushFirst, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: true,
		ValidFlags: binproto.MkdirP,
	},
	binproto.OpSubdocArrayInsert: {
		SubdocOp: subdoc.OpArrayInsert, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: false,
		ValidFlags: 0,
	},
	binproto.OpSubdocArrayAddUnique: {
		SubdocOp: subdoc.OpArrayAddUnique, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: false, AllowEmptyPath: true,
		ValidFlags: binproto.MkdirP,
	},
	binproto.OpSubdocCounter: {
		SubdocOp: subdoc.OpCounter, IsMutator: true,
		RequestHasValue: true, ResponseHasValue: true, AllowEmptyPath: true,
		ValidFlags: binproto.MkdirP,
	},
}

// MultiLookupAllowedOpcodes is the set of opcodes permitted as specs in a
// multi-lookup request (spec.md §4.2: "Each spec opcode must be GET or
// EXISTS"). Kept separate from TraitsTable because multi-lookup purity is
// a constraint on which traits entries are reachable from that path, not
// a trait itself.
var MultiLookupAllowedOpcodes = map[binproto.Opcode]bool{
	binproto.OpSubdocGet:    true,
	binproto.OpSubdocExists: true,
}

// MultiMutationAllowedOpcodes is the set of opcodes permitted as specs in
// a multi-mutation request: any single-path mutator, DELETE included;
// per-spec constraints are identical to the single-path validator's.
var MultiMutationAllowedOpcodes = map[binproto.Opcode]bool{
	binproto.OpSubdocDictAdd:        true,
	binproto.OpSubdocDictUpsert:     true,
	binproto.OpSubdocDelete:         true,
	binproto.OpSubdocReplace:        true,
	binproto.OpSubdocArrayPushLast:  true,
	binproto.OpSubdocArrayPushFirst: true,
	binproto.OpSubdocArrayInsert:    true,
	binproto.OpSubdocArrayAddUnique: true,
	binproto.OpSubdocCounter:        true,
}
