package ioctl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cachemir/cachemir/pkg/binproto"
)

func TestGetReleaseFreeMemory(t *testing.T) {
	s := NewSurface(func() error { return nil }, func(bool) error { return nil })
	v, status := s.Get("release_free_memory")
	assert.Equal(t, binproto.StatusSuccess, status)
	assert.Equal(t, []byte("ok"), v)
}

func TestSetReleaseFreeMemoryInvokesHandler(t *testing.T) {
	called := false
	s := NewSurface(func() error { called = true; return nil }, func(bool) error { return nil })
	status := s.Set("release_free_memory", nil)
	assert.Equal(t, binproto.StatusSuccess, status)
	assert.True(t, called)
}

func TestSetReleaseFreeMemoryPropagatesError(t *testing.T) {
	s := NewSurface(func() error { return errors.New("boom") }, func(bool) error { return nil })
	status := s.Set("release_free_memory", nil)
	assert.Equal(t, binproto.StatusEInternal, status)
}

func TestDecommitKnobSetAndGet(t *testing.T) {
	var gotAggressive bool
	s := NewSurface(func() error { return nil }, func(aggressive bool) error {
		gotAggressive = aggressive
		return nil
	})

	status := s.Set("tcmalloc.aggressive_memory_decommit", []byte("1"))
	assert.Equal(t, binproto.StatusSuccess, status)
	assert.True(t, gotAggressive)

	v, status := s.Get("tcmalloc.aggressive_memory_decommit")
	assert.Equal(t, binproto.StatusSuccess, status)
	assert.Equal(t, []byte("0"), v)
}

func TestUnknownKeyIsEinval(t *testing.T) {
	s := NewSurface(func() error { return nil }, func(bool) error { return nil })

	_, status := s.Get("nonsense")
	assert.Equal(t, binproto.StatusEInval, status)

	status = s.Set("nonsense", []byte("x"))
	assert.Equal(t, binproto.StatusEInval, status)
}

func TestTraceConnectionFamilySetThenGet(t *testing.T) {
	s := NewSurface(func() error { return nil }, func(bool) error { return nil })

	status := s.Set("trace.connection.abc123", []byte{0x01, 0x02})
	assert.Equal(t, binproto.StatusSuccess, status)

	v, status := s.Get("trace.connection.abc123")
	assert.Equal(t, binproto.StatusSuccess, status)
	assert.Equal(t, []byte{0x01, 0x02}, v)
}

func TestTraceConnectionUnsetKeyIsEinval(t *testing.T) {
	s := NewSurface(func() error { return nil }, func(bool) error { return nil })

	_, status := s.Get("trace.connection.never-set")
	assert.Equal(t, binproto.StatusEInval, status)
}
