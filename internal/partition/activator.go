package partition

import (
	"fmt"
	"log/slog"

	"github.com/randomizedcoder/usbprep/internal/heap"
	"github.com/randomizedcoder/usbprep/internal/logging"
)

// Table is an open partition table: one read and at most one write of the
// whole layout buffer.
type Table interface {
	// ReadLayout fills buf and returns the number of bytes the device
	// returned.
	ReadLayout(buf []byte) (int, error)
	WriteLayout(buf []byte) error
	Close() error
}

// Config holds configuration for creating an Activator.
type Config struct {
	Logger *slog.Logger

	// Heap supplies the layout buffer. Nil uses a private unlimited heap.
	Heap *heap.Heap

	// Layout defaults to the host's native layout.
	Layout *Layout

	// Open opens the partition table of a drive. Defaults to the host
	// backend.
	Open func(drive string) (Table, error)
}

// Result describes the outcome of an activation.
type Result struct {
	Drive string

	// Changed is false when the partition was already active and nothing
	// was written.
	Changed bool
}

// Activator sets the boot flag on a drive's first partition.
type Activator struct {
	logger *slog.Logger
	heap   *heap.Heap
	layout Layout
	open   func(drive string) (Table, error)
}

// NewActivator creates an Activator.
func NewActivator(cfg Config) *Activator {
	a := &Activator{
		logger: cfg.Logger,
		heap:   cfg.Heap,
		layout: DefaultLayout,
		open:   cfg.Open,
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	if a.heap == nil {
		a.heap = heap.New(heap.Config{})
	}
	if cfg.Layout != nil {
		a.layout = *cfg.Layout
	}
	if a.open == nil {
		a.open = OpenTable
	}
	return a
}

// Activate marks the first partition of drive bootable. It reads the whole
// layout, and writes it back only if the boot indicator was clear.
func (a *Activator) Activate(drive string) (res Result, err error) {
	res.Drive = drive

	table, err := a.open(drive)
	if err != nil {
		return res, fmt.Errorf("unable to get handle to disk %s: %w", drive, err)
	}
	defer func() {
		if cerr := table.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close disk %s: %w", drive, cerr)
		}
	}()

	buf, err := a.heap.Alloc(a.layout.Size, true)
	if err != nil {
		return res, fmt.Errorf("allocate %s buffer: %w", a.layout.Name, err)
	}
	defer a.heap.Free(buf)

	n, err := table.ReadLayout(buf)
	if err != nil {
		return res, fmt.Errorf("unable to read partition information from %s: %w", drive, err)
	}
	if n != a.layout.Size {
		return res, fmt.Errorf("unable to read partition information from %s: %w (got %d bytes, want %d)",
			drive, ErrLayoutSize, n, a.layout.Size)
	}
	if a.layout.Check != nil {
		if err := a.layout.Check(buf); err != nil {
			return res, fmt.Errorf("%s: %w", drive, err)
		}
	}

	if a.layout.bootable(buf) {
		a.logger.Info("partition_already_active", "drive", drive, "layout", a.layout.Name)
		return res, nil
	}

	a.layout.markBootable(buf)
	if err := table.WriteLayout(buf); err != nil {
		return res, fmt.Errorf("unable to write partition information to %s: %w", drive, err)
	}
	res.Changed = true

	a.logger.Info("partition_activated", "drive", drive, "layout", a.layout.Name)
	return res, nil
}
