package multipath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/engine"
)

func setupCoordinator(t *testing.T, eng engine.Engine) *Coordinator {
	t.Helper()
	conn, err := docbuf.NewConnection(1024 * 1024)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return NewCoordinator(eng, conn, nil)
}

func seed(t *testing.T, eng engine.Engine, key string, doc []byte) {
	t.Helper()
	item, err := eng.Allocate(0, key, len(doc), 0, 0, binproto.DatatypeJSON)
	require.NoError(t, err)
	copy(item.Value, doc)
	status, err := eng.Store(item, engine.StoreSet)
	require.NoError(t, err)
	require.Equal(t, engine.StatusSuccess, status)
}

func TestLookupAllSucceed(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	seed(t, eng, "doc1", []byte(`{"a":1,"b":2}`))
	c := setupCoordinator(t, eng)

	resp := c.Lookup(0, "doc1", []LookupSpec{
		{Opcode: binproto.OpSubdocGet, Path: "a"},
		{Opcode: binproto.OpSubdocGet, Path: "b"},
	})
	assert.Equal(t, binproto.StatusSuccess, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "1", string(resp.Results[0].Value))
	assert.Equal(t, "2", string(resp.Results[1].Value))
}

func TestLookupPartialFailureAggregates(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	seed(t, eng, "doc1", []byte(`{"a":1}`))
	c := setupCoordinator(t, eng)

	resp := c.Lookup(0, "doc1", []LookupSpec{
		{Opcode: binproto.OpSubdocGet, Path: "a"},
		{Opcode: binproto.OpSubdocGet, Path: "missing"},
	})
	assert.Equal(t, binproto.StatusSubdocMultiPathFailure, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, binproto.StatusSuccess, resp.Results[0].Status)
	assert.Equal(t, binproto.StatusSubdocPathEnoent, resp.Results[1].Status)
}

func TestLookupMissingKey(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	c := setupCoordinator(t, eng)

	resp := c.Lookup(0, "missing", []LookupSpec{{Opcode: binproto.OpSubdocGet, Path: "a"}})
	assert.Equal(t, binproto.StatusKeyNotFound, resp.Status)
}

func TestMutateSequentialApplication(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	seed(t, eng, "doc1", []byte(`{"a":1}`))
	c := setupCoordinator(t, eng)

	resp := c.Mutate(0, "doc1", 0, []MutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "b", Value: []byte("2")},
		{Opcode: binproto.OpSubdocDelete, Path: "a"},
	})
	require.Equal(t, binproto.StatusSuccess, resp.Status)

	lookup := c.Lookup(0, "doc1", []LookupSpec{{Opcode: binproto.OpSubdocGet, Path: "b"}})
	require.Equal(t, binproto.StatusSuccess, lookup.Status)
	assert.Equal(t, "2", string(lookup.Results[0].Value))
}

func TestMutateAbortsOnFirstFailureWithNoWrite(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	seed(t, eng, "doc1", []byte(`{"a":1}`))
	c := setupCoordinator(t, eng)

	resp := c.Mutate(0, "doc1", 0, []MutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "b", Value: []byte("2")},
		{Opcode: binproto.OpSubdocReplace, Path: "missing", Value: []byte("3")},
	})
	assert.Equal(t, binproto.StatusSubdocMultiPathFailure, resp.Status)
	assert.Equal(t, 1, resp.FailIndex)
	assert.Equal(t, binproto.StatusSubdocPathEnoent, resp.FailStatus)

	lookup := c.Lookup(0, "doc1", []LookupSpec{{Opcode: binproto.OpSubdocExists, Path: "b"}})
	assert.Equal(t, binproto.StatusSubdocMultiPathFailure, lookup.Status)
}

func TestMutateExplicitCASConflict(t *testing.T) {
	eng := engine.NewMemEngine()
	defer eng.Close()
	seed(t, eng, "doc1", []byte(`{"a":1}`))
	c := setupCoordinator(t, eng)

	resp := c.Mutate(0, "doc1", 424242, []MutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "a", Value: []byte("2")},
	})
	assert.Equal(t, binproto.StatusKeyExists, resp.Status)
}
