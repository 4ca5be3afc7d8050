package partition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func openImage(t *testing.T, path string) Table {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	return NewSectorTable(f)
}

func TestSectorTable_ActivateImage(t *testing.T) {
	img := append(newMBR(false), make([]byte, 4096)...)
	path := writeImage(t, img)

	a := NewActivator(Config{
		Layout: &MBRLayout,
		Open:   func(string) (Table, error) { return openImage(t, path), nil },
	})
	res, err := a.Activate(path)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if !res.Changed {
		t.Error("Changed = false")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got[0x1BE] != 0x80 {
		t.Errorf("boot indicator = %#x, want 0x80", got[0x1BE])
	}
	if len(got) != len(img) {
		t.Errorf("image size = %d, want %d", len(got), len(img))
	}
}

func TestSectorTable_ShortImage(t *testing.T) {
	path := writeImage(t, make([]byte, 100))

	a := NewActivator(Config{
		Layout: &MBRLayout,
		Open:   func(string) (Table, error) { return openImage(t, path), nil },
	})
	if _, err := a.Activate(path); !errors.Is(err, ErrLayoutSize) {
		t.Errorf("Activate() error = %v, want ErrLayoutSize", err)
	}

	got, _ := os.ReadFile(path)
	if len(got) != 100 {
		t.Errorf("image size = %d, short image was written to", len(got))
	}
}
