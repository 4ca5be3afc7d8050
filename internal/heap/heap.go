// Package heap hands out byte buffers to callers that need explicit
// allocate/reallocate/free semantics, such as fixed-size ioctl buffers.
//
// A Heap is an explicit context object: there is no process-wide
// initialization flag. Diagnostics are delivered through an optional Hook.
package heap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

var (
	// ErrOutOfMemory is returned when an allocation would exceed the heap limit.
	ErrOutOfMemory = errors.New("heap: out of memory")

	// ErrInvalidSize is returned for negative sizes.
	ErrInvalidSize = errors.New("heap: invalid size")

	// ErrForeignBuffer is returned when a buffer was not allocated by this heap
	// or has already been freed.
	ErrForeignBuffer = errors.New("heap: buffer not owned by heap")
)

const (
	minClassShift = 6  // 64 bytes
	maxClassShift = 20 // 1 MiB; larger buffers bypass the pools
	numClasses    = maxClassShift - minClassShift + 1
)

// Op identifies a heap operation reported to a Hook.
type Op int

const (
	OpAlloc Op = iota
	OpRealloc
	OpFree
)

// String returns a human-readable name for the operation.
func (o Op) String() string {
	switch o {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	case OpFree:
		return "free"
	default:
		return "unknown"
	}
}

// Event describes a completed heap operation.
type Event struct {
	Op        Op
	Size      int   // requested size (0 for free)
	LiveBytes int64 // bytes outstanding after the operation
	Err       error
}

// Config holds configuration for creating a Heap.
type Config struct {
	// Limit caps the bytes outstanding at any time. 0 = unlimited.
	Limit int64

	// Hook is called after every operation, including failed ones.
	Hook func(Event)
}

type block struct {
	size  int // requested size
	class int // pool class, -1 if unpooled
}

// Heap is a size-classed buffer allocator. It is safe for concurrent use.
type Heap struct {
	limit int64
	hook  func(Event)
	pools [numClasses]sync.Pool

	mu        sync.Mutex
	live      map[*byte]block
	liveBytes int64
}

// New creates a Heap with the given configuration.
func New(cfg Config) *Heap {
	return &Heap{
		limit: cfg.Limit,
		hook:  cfg.Hook,
		live:  make(map[*byte]block),
	}
}

// Alloc returns a buffer of length size. When zero is true the buffer is
// cleared; otherwise it may contain bytes from a previous allocation.
func (h *Heap) Alloc(size int, zero bool) ([]byte, error) {
	b, err := h.alloc(size, zero)
	h.notify(OpAlloc, size, err)
	return b, err
}

func (h *Heap) alloc(size int, zero bool) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, ErrInvalidSize)
	}

	class := classFor(size)
	capacity := classCap(class, size)

	h.mu.Lock()
	if h.limit > 0 && h.liveBytes+int64(capacity) > h.limit {
		h.mu.Unlock()
		return nil, fmt.Errorf("alloc %d bytes (%d live, limit %d): %w",
			size, h.liveBytes, h.limit, ErrOutOfMemory)
	}
	h.liveBytes += int64(capacity)
	h.mu.Unlock()

	var buf []byte
	if class >= 0 {
		if p, ok := h.pools[class].Get().(*[]byte); ok {
			buf = (*p)[:size]
		}
	}
	if buf == nil {
		// Fresh memory from make is already zeroed.
		buf = make([]byte, size, capacity)
	} else if zero {
		clear(buf)
	}

	h.mu.Lock()
	h.live[key(buf)] = block{size: size, class: class}
	h.mu.Unlock()

	return buf, nil
}

// Realloc resizes b, preserving its contents up to the smaller of the old
// and new sizes. A nil b behaves like Alloc. When zero is true, bytes
// beyond the old size are cleared.
func (h *Heap) Realloc(b []byte, size int, zero bool) ([]byte, error) {
	nb, err := h.realloc(b, size, zero)
	h.notify(OpRealloc, size, err)
	return nb, err
}

func (h *Heap) realloc(b []byte, size int, zero bool) ([]byte, error) {
	if b == nil {
		return h.alloc(size, zero)
	}
	if size < 0 {
		return nil, fmt.Errorf("realloc %d bytes: %w", size, ErrInvalidSize)
	}

	h.mu.Lock()
	blk, ok := h.live[key(b)]
	if !ok {
		h.mu.Unlock()
		return nil, ErrForeignBuffer
	}
	if size <= cap(b) {
		blk.size = size
		h.live[key(b)] = blk
		h.mu.Unlock()

		old := len(b)
		b = b[:size]
		if zero && size > old {
			clear(b[old:])
		}
		return b, nil
	}
	h.mu.Unlock()

	nb, err := h.alloc(size, zero)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	if err := h.free(b); err != nil {
		return nil, err
	}
	return nb, nil
}

// Free returns b to the heap. The caller must not use b afterwards.
func (h *Heap) Free(b []byte) error {
	err := h.free(b)
	h.notify(OpFree, 0, err)
	return err
}

func (h *Heap) free(b []byte) error {
	if cap(b) == 0 {
		return ErrForeignBuffer
	}

	h.mu.Lock()
	k := key(b)
	blk, ok := h.live[k]
	if !ok {
		h.mu.Unlock()
		return ErrForeignBuffer
	}
	delete(h.live, k)
	h.liveBytes -= int64(cap(b))
	h.mu.Unlock()

	if blk.class >= 0 {
		full := b[:cap(b)]
		h.pools[blk.class].Put(&full)
	}
	return nil
}

// Size returns the requested size of a buffer owned by the heap.
func (h *Heap) Size(b []byte) (int, error) {
	if cap(b) == 0 {
		return 0, ErrForeignBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	blk, ok := h.live[key(b)]
	if !ok {
		return 0, ErrForeignBuffer
	}
	return blk.size, nil
}

// LiveBytes returns the bytes currently outstanding.
func (h *Heap) LiveBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveBytes
}

func (h *Heap) notify(op Op, size int, err error) {
	if h.hook == nil {
		return
	}
	h.hook(Event{Op: op, Size: size, LiveBytes: h.LiveBytes(), Err: err})
}

// key identifies an allocation by the address of its first backing byte.
func key(b []byte) *byte {
	return &b[:1][0]
}

// classFor returns the pool class for size, or -1 if size is too large to pool.
func classFor(size int) int {
	if size <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(size - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

func classCap(class, size int) int {
	if class < 0 {
		return size
	}
	return 1 << (class + minClassShift)
}
