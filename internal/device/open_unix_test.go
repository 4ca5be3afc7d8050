//go:build !windows

package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPath_Unix(t *testing.T) {
	if got, err := Path(" /dev/sdb "); err != nil || got != "/dev/sdb" {
		t.Errorf("Path() = %q, %v", got, err)
	}
	if _, err := Path("E:"); !errors.Is(err, ErrInvalidDrive) {
		t.Errorf("Path(E:) error = %v, want ErrInvalidDrive", err)
	}
}

func TestOpen_ImageFile(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(img, make([]byte, 1024), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := Open(img)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	if _, err := f.WriteAt([]byte{0x80}, 446); err != nil {
		t.Errorf("WriteAt() error = %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		f.Close()
		t.Fatal("Open() error = nil")
	}
	if f != nil {
		t.Error("Open() returned a non-nil file on failure")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want ErrNotExist", err)
	}
}
