package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cachemir/cachemir/pkg/binproto"
)

func TestSingleRejectsUnknownOpcode(t *testing.T) {
	res := Single(DefaultLimits, binproto.Opcode(0xff), "a", nil, 0)
	assert.Equal(t, binproto.StatusUnknownCommand, res.Status)
}

func wellFormedPacket() *binproto.Packet {
	return &binproto.Packet{
		Header: binproto.Header{Magic: binproto.MagicRequest, Opcode: binproto.OpSubdocGet, Datatype: binproto.DatatypeRaw},
		Key:    []byte("doc1"),
	}
}

func TestGenericChecksAcceptsWellFormedPacket(t *testing.T) {
	res := GenericChecks(wellFormedPacket())
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}

func TestGenericChecksRejectsResponseMagic(t *testing.T) {
	pkt := wellFormedPacket()
	pkt.Header.Magic = binproto.MagicResponse
	res := GenericChecks(pkt)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestGenericChecksRejectsEmptyKey(t *testing.T) {
	pkt := wellFormedPacket()
	pkt.Key = nil
	res := GenericChecks(pkt)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestGenericChecksRejectsNonRawDatatype(t *testing.T) {
	pkt := wellFormedPacket()
	pkt.Header.Datatype = binproto.DatatypeJSON
	res := GenericChecks(pkt)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestSingleAcceptsWellFormedGet(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocGet, "a.b", nil, 0)
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}

func TestSingleRejectsOversizedPath(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocGet, strings.Repeat("a", DefaultLimits.MaxPathLen+1), nil, 0)
	assert.Equal(t, binproto.StatusSubdocPathE2Big, res.Status)
}

func TestSingleRejectsEmptyPathWhenNotAllowed(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocGet, "", nil, 0)
	assert.Equal(t, binproto.StatusSubdocPathEinval, res.Status)
}

func TestSingleAllowsEmptyPathForCounter(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocCounter, "", []byte("1"), 0)
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}

func TestSingleRejectsMissingValueForMutator(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocDictUpsert, "a", nil, 0)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestSingleRejectsUnexpectedValueForReadOnly(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocGet, "a", []byte("x"), 0)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestSingleRejectsOversizedValue(t *testing.T) {
	limits := Limits{MaxPathLen: 1024, MaxValueLen: 4, MaxMultiSpecs: 16}
	res := Single(limits, binproto.OpSubdocDictUpsert, "a", []byte("12345"), 0)
	assert.Equal(t, binproto.StatusE2BIG, res.Status)
}

func TestSingleRejectsInvalidFlagCombo(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocGet, "a", nil, binproto.MkdirP)
	assert.Equal(t, binproto.StatusSubdocInvalidCombo, res.Status)
}

func TestSingleAllowsMkdirPWhereSupported(t *testing.T) {
	res := Single(DefaultLimits, binproto.OpSubdocDictUpsert, "a", []byte("1"), binproto.MkdirP)
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}

func TestMultiLookupRejectsEmpty(t *testing.T) {
	res := MultiLookup(DefaultLimits, nil)
	assert.Equal(t, binproto.StatusEInval, res.Status)
}

func TestMultiLookupRejectsTooMany(t *testing.T) {
	specs := make([]MultiLookupSpec, DefaultLimits.MaxMultiSpecs+1)
	for i := range specs {
		specs[i] = MultiLookupSpec{Opcode: binproto.OpSubdocGet, Path: "a"}
	}
	res := MultiLookup(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusSubdocInvalidCombo, res.Status)
}

func TestMultiLookupRejectsMutatorOpcode(t *testing.T) {
	specs := []MultiLookupSpec{
		{Opcode: binproto.OpSubdocGet, Path: "a"},
		{Opcode: binproto.OpSubdocDictUpsert, Path: "b"},
	}
	res := MultiLookup(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusSubdocInvalidCombo, res.Status)
	assert.Equal(t, 1, res.Index)
}

func TestMultiLookupAcceptsGetAndExists(t *testing.T) {
	specs := []MultiLookupSpec{
		{Opcode: binproto.OpSubdocGet, Path: "a"},
		{Opcode: binproto.OpSubdocExists, Path: "b"},
	}
	res := MultiLookup(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}

func TestMultiMutationRejectsNonMutatorOpcode(t *testing.T) {
	specs := []MultiMutationSpec{
		{Opcode: binproto.OpSubdocGet, Path: "a"},
	}
	res := MultiMutation(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusSubdocInvalidCombo, res.Status)
}

func TestMultiMutationValidatesValuePresencePerSpec(t *testing.T) {
	specs := []MultiMutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "a", Value: []byte("1")},
		{Opcode: binproto.OpSubdocDictUpsert, Path: "b", Value: nil},
	}
	res := MultiMutation(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusEInval, res.Status)
	assert.Equal(t, 1, res.Index)
}

func TestMultiMutationAcceptsWellFormedSpecs(t *testing.T) {
	specs := []MultiMutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "a", Value: []byte("1")},
		{Opcode: binproto.OpSubdocDelete, Path: "b"},
	}
	res := MultiMutation(DefaultLimits, specs)
	assert.Equal(t, binproto.StatusSuccess, res.Status)
}
