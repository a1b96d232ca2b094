package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachemir/cachemir/pkg/engine"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("default"))
	assert.True(t, ValidName("my-bucket.01_v2%"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("has space"))
	assert.False(t, ValidName(string(make([]byte, 101))))
}

func TestCreateAndSelect(t *testing.T) {
	r := NewRegistry(0)
	err := r.Create("default", engine.NewMemEngine())
	require.NoError(t, err)

	b, err := r.Select("default")
	require.NoError(t, err)
	eng, ok := b.Engine()
	assert.True(t, ok)
	assert.NotNil(t, eng)
	b.Done()
}

func TestCreateRejectsInvalidName(t *testing.T) {
	r := NewRegistry(0)
	err := r.Create("bad name!", engine.NewMemEngine())
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Create("b1", engine.NewMemEngine()))
	err := r.Create("b1", engine.NewMemEngine())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateRejectsOverCapacity(t *testing.T) {
	r := NewRegistry(1)
	require.NoError(t, r.Create("b1", engine.NewMemEngine()))
	err := r.Create("b2", engine.NewMemEngine())
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestSelectUnknownBucket(t *testing.T) {
	r := NewRegistry(0)
	_, err := r.Select("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUnknownBucket(t *testing.T) {
	r := NewRegistry(0)
	err := r.Delete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWithNoInFlightCommandsCompletesImmediately(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Create("b1", engine.NewMemEngine()))

	done := make(chan struct{})
	go func() {
		assert.NoError(t, r.Delete("b1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Delete did not complete for a quiescent bucket")
	}

	_, err := r.Select("b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWaitsForInFlightCommandsWithoutHoldingRegistryLock(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Create("b1", engine.NewMemEngine()))

	b, err := r.Select("b1")
	require.NoError(t, err)
	_, ok := b.Engine()
	require.True(t, ok)

	deleteDone := make(chan struct{})
	go func() {
		assert.NoError(t, r.Delete("b1"))
		close(deleteDone)
	}()

	// Give Delete a moment to mark draining; it must not block on the
	// registry lock, so a concurrent Create on a different name should
	// still succeed while the in-flight command is outstanding.
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, r.Create("b2", engine.NewMemEngine()))

	select {
	case <-deleteDone:
		t.Fatal("Delete returned before the in-flight command finished")
	default:
	}

	b.Done()

	select {
	case <-deleteDone:
	case <-time.After(time.Second):
		t.Fatal("Delete did not complete after Done()")
	}
}

func TestEngineFailsFastAfterDrainingBegins(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Create("b1", engine.NewMemEngine()))

	b, err := r.Select("b1")
	require.NoError(t, err)

	deleteDone := make(chan struct{})
	go func() {
		r.Delete("b1")
		close(deleteDone)
	}()

	<-deleteDone

	_, ok := b.Engine()
	assert.False(t, ok)
}

func TestNewConnectionIDUsesUUIDGen(t *testing.T) {
	old := uuidGen
	defer func() { uuidGen = old }()
	uuidGen = func() string { return "fixed-id" }

	assert.Equal(t, "fixed-id", NewConnectionID())
}
