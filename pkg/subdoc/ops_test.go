package subdoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApply(t *testing.T, res Result) []byte {
	t.Helper()
	require.Equal(t, StatusSuccess, res.Status)
	out := make([]byte, 0, res.FragmentLen())
	for _, f := range res.Fragments {
		out = append(out, f...)
	}
	return out
}

func TestExecuteGet(t *testing.T) {
	doc := []byte(`{"name":"Ada","tags":["x","y"]}`)

	res := Execute(OpGet, false, doc, "name", nil)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, `"Ada"`, string(res.Value))

	res = Execute(OpGet, false, doc, "tags[1]", nil)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, `"y"`, string(res.Value))

	res = Execute(OpGet, false, doc, "missing", nil)
	assert.Equal(t, StatusPathEnoent, res.Status)
}

func TestExecuteExists(t *testing.T) {
	doc := []byte(`{"a":1}`)
	assert.Equal(t, StatusSuccess, Execute(OpExists, false, doc, "a", nil).Status)
	assert.Equal(t, StatusPathEnoent, Execute(OpExists, false, doc, "b", nil).Status)
}

func TestExecuteDictAddVsUpsert(t *testing.T) {
	doc := []byte(`{"a":1}`)

	// DICT_ADD fails when the key already exists.
	res := Execute(OpDictAdd, false, doc, "a", []byte("2"))
	assert.Equal(t, StatusDocEExists, res.Status)

	// DICT_UPSERT overwrites.
	res = Execute(OpDictUpsert, false, doc, "a", []byte("2"))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, float64(2), m["a"])

	// DICT_ADD succeeds on a new key.
	res = Execute(OpDictAdd, false, doc, "b", []byte(`"new"`))
	out = mustApply(t, res)
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "new", m["b"])
}

func TestExecuteDictInsertMissingParentRequiresMkdirP(t *testing.T) {
	doc := []byte(`{}`)

	res := Execute(OpDictUpsert, false, doc, "a.b", []byte("1"))
	assert.Equal(t, StatusPathEnoent, res.Status)

	res = Execute(OpDictUpsert, true, doc, "a.b", []byte("1"))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	inner, ok := m["a"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), inner["b"])
}

func TestExecuteDeleteDictKey(t *testing.T) {
	doc := []byte(`{"a":1,"b":2}`)
	res := Execute(OpDelete, false, doc, "a", nil)
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	_, exists := m["a"]
	assert.False(t, exists)
	assert.Equal(t, float64(2), m["b"])
}

func TestExecuteDeleteArrayIndex(t *testing.T) {
	doc := []byte(`{"tags":["x","y","z"]}`)
	res := Execute(OpDelete, false, doc, "tags[1]", nil)
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	tags, ok := m["tags"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"x", "z"}, tags)
}

func TestExecuteDeleteMissingPath(t *testing.T) {
	doc := []byte(`{"a":1}`)
	res := Execute(OpDelete, false, doc, "b", nil)
	assert.Equal(t, StatusPathEnoent, res.Status)
}

func TestExecuteReplace(t *testing.T) {
	doc := []byte(`{"a":1}`)
	res := Execute(OpReplace, false, doc, "a", []byte("99"))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, float64(99), m["a"])

	res = Execute(OpReplace, false, doc, "missing", []byte("1"))
	assert.Equal(t, StatusPathEnoent, res.Status)
}

func TestExecuteArrayPushLastAndFirst(t *testing.T) {
	doc := []byte(`{"tags":["a"]}`)

	res := Execute(OpArrayPushLast, false, doc, "tags", []byte(`"b"`))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, []interface{}{"a", "b"}, m["tags"])

	res = Execute(OpArrayPushFirst, false, doc, "tags", []byte(`"z"`))
	out = mustApply(t, res)
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, []interface{}{"z", "a"}, m["tags"])
}

func TestExecuteArrayPushRootLevel(t *testing.T) {
	doc := []byte(`["a","b"]`)
	res := Execute(OpArrayPushLast, false, doc, "", []byte(`"c"`))
	out := mustApply(t, res)
	var arr []interface{}
	require.NoError(t, json.Unmarshal(out, &arr))
	assert.Equal(t, []interface{}{"a", "b", "c"}, arr)
}

func TestExecuteArrayInsert(t *testing.T) {
	doc := []byte(`{"tags":["a","c"]}`)
	res := Execute(OpArrayInsert, false, doc, "tags[1]", []byte(`"b"`))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, []interface{}{"a", "b", "c"}, m["tags"])
}

func TestExecuteArrayAddUnique(t *testing.T) {
	doc := []byte(`{"tags":["a","b"]}`)

	res := Execute(OpArrayAddUnique, false, doc, "tags", []byte(`"c"`))
	out := mustApply(t, res)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, []interface{}{"a", "b", "c"}, m["tags"])

	res = Execute(OpArrayAddUnique, false, doc, "tags", []byte(`"a"`))
	assert.Equal(t, StatusDocEExists, res.Status)
}

func TestExecuteArrayAddUniqueRejectsContainers(t *testing.T) {
	doc := []byte(`{"tags":[]}`)
	res := Execute(OpArrayAddUnique, false, doc, "tags", []byte(`{"x":1}`))
	assert.Equal(t, StatusValueCantInsert, res.Status)
}

func TestExecuteCounter(t *testing.T) {
	doc := []byte(`{"count":5}`)

	res := Execute(OpCounter, false, doc, "count", []byte("3"))
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "8", string(res.Value))

	res = Execute(OpCounter, false, doc, "count", []byte("-10"))
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "-5", string(res.Value))
}

func TestExecuteCounterCreatesWithMkdirP(t *testing.T) {
	doc := []byte(`{}`)
	res := Execute(OpCounter, true, doc, "hits", []byte("1"))
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "1", string(res.Value))
}

func TestExecuteCounterRejectsBadDelta(t *testing.T) {
	doc := []byte(`{"count":1}`)
	res := Execute(OpCounter, false, doc, "count", []byte("not-a-number"))
	assert.Equal(t, StatusDeltaE2Big, res.Status)
}

func TestExecuteCounterRejectsNonNumericTarget(t *testing.T) {
	doc := []byte(`{"count":"nope"}`)
	res := Execute(OpCounter, false, doc, "count", []byte("1"))
	assert.Equal(t, StatusPathMismatch, res.Status)
}

func TestExecutePathMismatchOnMalformedDocument(t *testing.T) {
	res := Execute(OpGet, false, []byte("not json"), "a", nil)
	assert.Equal(t, StatusPathMismatch, res.Status)
}

func TestExecuteGetThroughArrayOfObjects(t *testing.T) {
	doc := []byte(`{"items":[{"id":1},{"id":2}]}`)
	res := Execute(OpGet, false, doc, "items[1].id", nil)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "2", string(res.Value))
}
