package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachemir/cachemir/pkg/binproto"
)

func TestMemEngineSetGetDelete(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	item, err := e.Allocate(0, "k", 3, 0, 0, binproto.DatatypeJSON)
	require.NoError(t, err)
	copy(item.Value, "abc")

	status, err := e.Store(item, StoreSet)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.NotZero(t, item.CAS)

	got, status, err := e.Get(0, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, []byte("abc"), got.Value)
	assert.Equal(t, item.CAS, got.CAS)

	status, err = e.Delete(0, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	_, status, err = e.Get(0, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEnoent, status)
}

func TestMemEngineGetMissingKey(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	_, status, err := e.Get(0, "missing")
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEnoent, status)
}

func TestMemEngineDeleteMissingKey(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	status, err := e.Delete(0, "missing")
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEnoent, status)
}

func TestMemEngineStoreAddFailsIfExists(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	item, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	item.Value[0] = 'x'
	_, err := e.Store(item, StoreAdd)
	require.NoError(t, err)

	item2, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	item2.Value[0] = 'y'
	status, err := e.Store(item2, StoreAdd)
	require.NoError(t, err)
	assert.Equal(t, StatusNotStored, status)
}

func TestMemEngineStoreReplaceRequiresExisting(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	item, _ := e.Allocate(0, "missing", 1, 0, 0, binproto.DatatypeRaw)
	status, err := e.Store(item, StoreReplace)
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEnoent, status)
}

func TestMemEngineStoreReplaceCASConflict(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	first, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	first.Value[0] = 'a'
	_, err := e.Store(first, StoreSet)
	require.NoError(t, err)

	stale, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	stale.Value[0] = 'b'
	e.ItemSetCAS(stale, first.CAS+1000)
	status, err := e.Store(stale, StoreReplace)
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEExists, status)
}

func TestMemEngineStoreReplaceSucceedsWithMatchingCAS(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	first, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	first.Value[0] = 'a'
	_, err := e.Store(first, StoreSet)
	require.NoError(t, err)

	update, _ := e.Allocate(0, "k", 1, 0, 0, binproto.DatatypeRaw)
	update.Value[0] = 'b'
	e.ItemSetCAS(update, first.CAS)
	status, err := e.Store(update, StoreReplace)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
}

func TestMemEngineVbucketIsolation(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	item, _ := e.Allocate(1, "k", 1, 0, 0, binproto.DatatypeRaw)
	item.Value[0] = 'a'
	_, err := e.Store(item, StoreSet)
	require.NoError(t, err)

	_, status, err := e.Get(2, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusKeyEnoent, status)
}

func TestMemEngineGetItemInfo(t *testing.T) {
	e := NewMemEngine()
	defer e.Close()

	item, _ := e.Allocate(0, "k", 1, 7, 0, binproto.DatatypeJSON)
	item.Value[0] = '1'
	_, err := e.Store(item, StoreSet)
	require.NoError(t, err)

	datatype, cas, flags := e.GetItemInfo(item)
	assert.Equal(t, binproto.DatatypeJSON, datatype)
	assert.Equal(t, item.CAS, cas)
	assert.Equal(t, uint32(7), flags)
}

func TestVBucketOfIsDeterministicAndBounded(t *testing.T) {
	v1 := VBucketOf("doc:1")
	v2 := VBucketOf("doc:1")
	assert.Equal(t, v1, v2)
	assert.Less(t, v1, uint16(NumVBuckets))
}

func TestVBucketOfDistributesDifferentKeys(t *testing.T) {
	seen := map[uint16]bool{}
	for i := 0; i < 50; i++ {
		seen[VBucketOf(string(rune('a'+i%26))+string(rune(i)))] = true
	}
	assert.Greater(t, len(seen), 1)
}
