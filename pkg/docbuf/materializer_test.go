package docbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/engine"
)

func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	conn, err := NewConnection(1024 * 1024)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func TestMaterializePassesThroughPlainJSON(t *testing.T) {
	conn := newTestConnection(t)
	item := &engine.Item{Datatype: binproto.DatatypeJSON, Value: []byte(`{"a":1}`), CAS: 10}

	res := conn.Materialize(item, 0)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []byte(`{"a":1}`), res.Doc)
	assert.Equal(t, uint64(10), res.CAS)
}

func TestMaterializeDecompressesCompressedJSON(t *testing.T) {
	conn := newTestConnection(t)
	plain := []byte(`{"a":1,"b":[1,2,3]}`)
	compressed := conn.Compress(plain)

	item := &engine.Item{Datatype: binproto.DatatypeCompressedJSON, Value: compressed, CAS: 3}
	res := conn.Materialize(item, 0)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, plain, res.Doc)
}

func TestMaterializeRejectsNonJSONDatatypes(t *testing.T) {
	conn := newTestConnection(t)

	res := conn.Materialize(&engine.Item{Datatype: binproto.DatatypeRaw, Value: []byte("x")}, 0)
	assert.Equal(t, StatusNotJSON, res.Status)

	res = conn.Materialize(&engine.Item{Datatype: binproto.DatatypeCompressed, Value: []byte("x")}, 0)
	assert.Equal(t, StatusNotJSON, res.Status)
}

func TestMaterializeDetectsCASMismatch(t *testing.T) {
	conn := newTestConnection(t)
	item := &engine.Item{Datatype: binproto.DatatypeJSON, Value: []byte(`{}`), CAS: 5}

	res := conn.Materialize(item, 99)
	assert.Equal(t, StatusCASMismatch, res.Status)
	assert.Equal(t, uint64(5), res.CAS)
}

func TestMaterializeAllowsZeroExpectedCAS(t *testing.T) {
	conn := newTestConnection(t)
	item := &engine.Item{Datatype: binproto.DatatypeJSON, Value: []byte(`{}`), CAS: 5}

	res := conn.Materialize(item, 0)
	assert.Equal(t, StatusOK, res.Status)
}

func TestMaterializeEnforcesGrowLimit(t *testing.T) {
	conn, err := NewConnection(4)
	require.NoError(t, err)
	defer conn.Close()

	plain := []byte(`{"a":"much longer than four bytes"}`)
	compressed := conn.Compress(plain)

	item := &engine.Item{Datatype: binproto.DatatypeCompressedJSON, Value: compressed}
	res := conn.Materialize(item, 0)
	assert.Equal(t, StatusTooBig, res.Status)
}
