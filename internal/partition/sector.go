package partition

import (
	"errors"
	"fmt"
	"io"
)

// Disk is a raw device or disk image addressed by byte offset.
type Disk interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// sectorTable reads and writes the layout at the start of a raw disk.
type sectorTable struct {
	disk Disk
}

// NewSectorTable returns a Table over sector 0 of disk. Closing the table
// closes disk.
func NewSectorTable(disk Disk) Table {
	return &sectorTable{disk: disk}
}

func (t *sectorTable) ReadLayout(buf []byte) (int, error) {
	n, err := t.disk.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	// A short device is reported through the byte count.
	return n, nil
}

func (t *sectorTable) WriteLayout(buf []byte) error {
	n, err := t.disk.WriteAt(buf, 0)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(buf), io.ErrShortWrite)
	}
	return nil
}

func (t *sectorTable) Close() error {
	return t.disk.Close()
}
