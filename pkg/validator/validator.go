// Package validator implements the sub-document request validator (spec.md
// §4.2, SPEC_FULL.md C2): structural checks applied to a decoded request
// before it ever reaches the executor or multipath coordinator, grounded on
// original_source/daemon/subdocument_validators.cc's per-opcode validate_*
// functions and the generic checks that precede them.
package validator

import (
	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/subdocexec"
)

// Result is the validator's verdict: either Status is binproto.StatusSuccess
// and the request may proceed, or it names the protocol status the caller
// must respond with and processing stops immediately (no engine call is
// ever made for a request that fails here, per spec.md §9 "the validator
// is pure and total").
type Result struct {
	Status binproto.Status
	Index  int // for multi-mutation, the offending spec's index
}

// ok is the zero Result, returned by every passing check.
var ok = Result{Status: binproto.StatusSuccess}

// Limits bounds the structural checks the validator enforces; these are
// daemon-wide configuration rather than per-request, so they're threaded
// in rather than hardcoded (cf. config.go's MaxSubdocPaths/MaxSubdocPathLen).
type Limits struct {
	MaxPathLen    int
	MaxValueLen   int
	MaxMultiSpecs int
}

// DefaultLimits mirrors the constants the original enforces
// (subdocument_validators.cc's SUBDOC_MAX_PATH_LEN / SUBDOC_MAX_VALUE_LEN /
// BINPROTO_MAX_MULTI_PATHS).
var DefaultLimits = Limits{
	MaxPathLen:    1024,
	MaxValueLen:   16 * 1024 * 1024,
	MaxMultiSpecs: 16,
}

// GenericChecks implements spec.md §4.2's "Generic checks (per-opcode):
// magic is REQ, key length > 0 ... datatype is RAW" — run by the caller
// before any opcode-specific decode, so a response-magic packet, an
// empty key, or a non-RAW datatype never reaches Single/MultiLookup/
// MultiMutation or the engine. No sub-document opcode allows an empty
// key, so the key-length check is unconditional here.
func GenericChecks(req *binproto.Packet) Result {
	if req.Header.Magic != binproto.MagicRequest {
		return Result{Status: binproto.StatusEInval}
	}
	if len(req.Key) == 0 {
		return Result{Status: binproto.StatusEInval}
	}
	if req.Header.Datatype != binproto.DatatypeRaw {
		return Result{Status: binproto.StatusEInval}
	}
	return ok
}

// Single validates one single-path request's structural shape: known
// opcode, path length, value presence matching the opcode's traits, and
// flag legality. It does not look at the document at all — that's the
// executor's job once the item is fetched.
func Single(limits Limits, opcode binproto.Opcode, path string, value []byte, flags binproto.SubdocFlag) Result {
	traits, known := subdocexec.TraitsTable[opcode]
	if !known {
		return Result{Status: binproto.StatusUnknownCommand}
	}

	if len(path) > limits.MaxPathLen {
		return Result{Status: binproto.StatusSubdocPathE2Big}
	}
	if len(path) == 0 && !traits.AllowEmptyPath {
		return Result{Status: binproto.StatusSubdocPathEinval}
	}

	if traits.RequestHasValue && len(value) == 0 {
		return Result{Status: binproto.StatusEInval}
	}
	if !traits.RequestHasValue && len(value) != 0 {
		return Result{Status: binproto.StatusEInval}
	}
	if len(value) > limits.MaxValueLen {
		return Result{Status: binproto.StatusE2BIG}
	}

	if flags&^traits.ValidFlags != 0 {
		return Result{Status: binproto.StatusSubdocInvalidCombo}
	}

	return ok
}

// MultiLookupSpec mirrors binproto.MultiLookupSpec, named locally to avoid
// importing binproto's wire decode types into call sites that only need
// the fields the validator inspects.
type MultiLookupSpec = binproto.MultiLookupSpec

// MultiMutationSpec mirrors binproto.MultiMutationSpec for the same reason.
type MultiMutationSpec = binproto.MultiMutationSpec

// MultiLookup validates a decoded multi-lookup request: spec count bounds
// and per-spec opcode purity (GET/EXISTS only), per spec.md §4.2 "Each spec
// opcode must be GET or EXISTS; mixing in a mutator is a validation
// failure for the whole request" — grounded on
// subdocument_validators.cc's is_valid_multi_lookup_path.
func MultiLookup(limits Limits, specs []MultiLookupSpec) Result {
	if len(specs) == 0 {
		return Result{Status: binproto.StatusEInval}
	}
	if len(specs) > limits.MaxMultiSpecs {
		return Result{Status: binproto.StatusSubdocInvalidCombo}
	}
	for i, spec := range specs {
		if !subdocexec.MultiLookupAllowedOpcodes[spec.Opcode] {
			return Result{Status: binproto.StatusSubdocInvalidCombo, Index: i}
		}
		if len(spec.Path) > limits.MaxPathLen {
			return Result{Status: binproto.StatusSubdocPathE2Big, Index: i}
		}
		traits, known := subdocexec.TraitsTable[spec.Opcode]
		if !known || (len(spec.Path) == 0 && !traits.AllowEmptyPath) {
			return Result{Status: binproto.StatusSubdocPathEinval, Index: i}
		}
		if spec.Flags != 0 {
			return Result{Status: binproto.StatusSubdocInvalidCombo, Index: i}
		}
	}
	return ok
}

// MultiMutation validates a decoded multi-mutation request analogously to
// MultiLookup, additionally checking each spec's value presence against
// its opcode's traits.
func MultiMutation(limits Limits, specs []MultiMutationSpec) Result {
	if len(specs) == 0 {
		return Result{Status: binproto.StatusEInval}
	}
	if len(specs) > limits.MaxMultiSpecs {
		return Result{Status: binproto.StatusSubdocInvalidCombo}
	}
	for i, spec := range specs {
		if !subdocexec.MultiMutationAllowedOpcodes[spec.Opcode] {
			return Result{Status: binproto.StatusSubdocInvalidCombo, Index: i}
		}
		traits, known := subdocexec.TraitsTable[spec.Opcode]
		if !known {
			return Result{Status: binproto.StatusSubdocInvalidCombo, Index: i}
		}
		if len(spec.Path) > limits.MaxPathLen {
			return Result{Status: binproto.StatusSubdocPathE2Big, Index: i}
		}
		if len(spec.Path) == 0 && !traits.AllowEmptyPath {
			return Result{Status: binproto.StatusSubdocPathEinval, Index: i}
		}
		if traits.RequestHasValue && len(spec.Value) == 0 {
			return Result{Status: binproto.StatusEInval, Index: i}
		}
		if !traits.RequestHasValue && len(spec.Value) != 0 {
			return Result{Status: binproto.StatusEInval, Index: i}
		}
		if len(spec.Value) > limits.MaxValueLen {
			return Result{Status: binproto.StatusE2BIG, Index: i}
		}
		if spec.Flags&^traits.ValidFlags != 0 {
			return Result{Status: binproto.StatusSubdocInvalidCombo, Index: i}
		}
	}
	return ok
}
