package process

import (
	"errors"
	"fmt"
	"os"
)

// handle is one OS file owned by the runner for the length of an invocation.
type handle struct {
	name     string
	f        *os.File
	released bool
}

// release closes the file once. Later calls, and calls on a handle that
// was never created, are no-ops.
func (h *handle) release() error {
	if h == nil || h.f == nil || h.released {
		return nil
	}
	h.released = true
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", h.name, err)
	}
	return nil
}

// pipePair is one unidirectional pipe: the parent keeps one end and the
// child inherits the other.
type pipePair struct {
	parent *handle
	child  *handle
}

// handleSet owns every handle created during an invocation. releaseAll is
// deferred right after the set is created, so partially built sets (for
// example pipes created but spawn failed) are cleaned up on every path.
type handleSet struct {
	handles []*handle
	pipe    func() (r, w *os.File, err error)
}

func newHandleSet(pipe func() (r, w *os.File, err error)) *handleSet {
	if pipe == nil {
		pipe = os.Pipe
	}
	return &handleSet{pipe: pipe}
}

func (s *handleSet) add(name string, f *os.File) *handle {
	h := &handle{name: name, f: f}
	s.handles = append(s.handles, h)
	return h
}

// newPipe creates a pipe. childReads selects the direction: true for stdin
// (child reads, parent writes), false for stdout/stderr.
func (s *handleSet) newPipe(name string, childReads bool) (pipePair, error) {
	r, w, err := s.pipe()
	if err != nil {
		return pipePair{}, fmt.Errorf("create %s pipe: %w", name, err)
	}
	if childReads {
		return pipePair{
			child:  s.add(name+"_child", r),
			parent: s.add(name+"_parent", w),
		}, nil
	}
	return pipePair{
		parent: s.add(name+"_parent", r),
		child:  s.add(name+"_child", w),
	}, nil
}

// releaseAll closes every handle not yet released and reports how many it
// closed along with any close errors.
func (s *handleSet) releaseAll() (int, error) {
	var errs []error
	closed := 0
	for _, h := range s.handles {
		if h.released {
			continue
		}
		if err := h.release(); err != nil {
			errs = append(errs, err)
		}
		closed++
	}
	return closed, errors.Join(errs...)
}
