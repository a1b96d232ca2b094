// Package ioctl implements the IOCTL sideband (spec.md §4.8,
// SPEC_FULL.md C8): a narrow key/value control surface distinct from the
// document data path, grounded on the teacher's pkg/config.go env/flag
// key-lookup style (a small registry of named knobs with typed handlers)
// generalized from startup configuration to a runtime control channel.
package ioctl

import (
	"strings"
	"sync"

	"github.com/cachemir/cachemir/pkg/binproto"
)

// Handler answers ioctl_get/ioctl_set for one recognized key.
type Handler struct {
	Get func() ([]byte, error)
	Set func(value []byte) error
}

// Surface is the daemon's ioctl dispatch table. Unknown keys are EINVAL
// regardless of whether they're being got or set (spec.md §4.8).
type Surface struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	tracePrefix string
	traceMasks  map[string][]byte
}

// NewSurface builds a Surface with the fixed recognized keys
// (release_free_memory, a decommit knob) registered, plus support for
// the trace.connection.<id> family.
func NewSurface(releaseFreeMemory func() error, setDecommit func(aggressive bool) error) *Surface {
	s := &Surface{
		handlers:    make(map[string]Handler),
		tracePrefix: "trace.connection.",
		traceMasks:  make(map[string][]byte),
	}
	s.handlers["release_free_memory"] = Handler{
		Get: func() ([]byte, error) { return []byte("ok"), nil },
		Set: func(value []byte) error { return releaseFreeMemory() },
	}
	s.handlers["tcmalloc.aggressive_memory_decommit"] = Handler{
		Get: func() ([]byte, error) { return []byte("0"), nil },
		Set: func(value []byte) error {
			return setDecommit(len(value) == 1 && value[0] != '0')
		},
	}
	return s
}

// Get implements ioctl_get(name) → value.
func (s *Surface) Get(name string) ([]byte, binproto.Status) {
	if strings.HasPrefix(name, s.tracePrefix) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		v, ok := s.traceMasks[name]
		if !ok {
			return nil, binproto.StatusEInval
		}
		return v, binproto.StatusSuccess
	}

	s.mu.RLock()
	h, ok := s.handlers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, binproto.StatusEInval
	}
	v, err := h.Get()
	if err != nil {
		return nil, binproto.StatusEInternal
	}
	return v, binproto.StatusSuccess
}

// Set implements ioctl_set(name, value) → status.
func (s *Surface) Set(name string, value []byte) binproto.Status {
	if strings.HasPrefix(name, s.tracePrefix) {
		s.mu.Lock()
		s.traceMasks[name] = append([]byte(nil), value...)
		s.mu.Unlock()
		return binproto.StatusSuccess
	}

	s.mu.RLock()
	h, ok := s.handlers[name]
	s.mu.RUnlock()
	if !ok {
		return binproto.StatusEInval
	}
	if err := h.Set(value); err != nil {
		return binproto.StatusEInternal
	}
	return binproto.StatusSuccess
}
