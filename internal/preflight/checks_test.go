package preflight

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_check", func(t *testing.T) {
		c := Check{Name: "test_check", Passed: true, Message: "all good"}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "all good") {
			t.Error("Should contain message")
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{Name: "test_check", Passed: false}
		if !strings.Contains(c.String(), "✗") {
			t.Error("Failed check should have ✗")
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{Name: "test_check", Passed: true, Warning: true, Message: "warning message"}
		s := c.String()
		if !strings.Contains(s, "⚠") {
			t.Error("Warning check should have ⚠")
		}
		if !strings.Contains(s, "warning message") {
			t.Error("Should contain message")
		}
	})
}

// fakeProbes returns probes with a fixed elevation and per-drive removable answers.
func fakeProbes(elevated bool, removable map[string]bool) probes {
	return probes{
		elevated: func() (bool, error) { return elevated, nil },
		removable: func(drive string) (bool, error) {
			ok, found := removable[drive]
			if !found {
				return false, errors.New("no such drive")
			}
			return ok, nil
		},
	}
}

func writeTool(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("tool"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func findCheck(t *testing.T, r *Result, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %q check in results", name)
	return Check{}
}

// =============================================================================
// RunAll
// =============================================================================

func TestRunAll_AllPass(t *testing.T) {
	opts := Options{
		Shell:    writeTool(t, "cmd.exe"),
		Bootsect: writeTool(t, "bootsect.exe"),
		Drives:   []string{"E:", "F:"},
	}
	r := runAll(opts, fakeProbes(true, map[string]bool{"E:": true, "F:": true}))

	if !r.Passed {
		for _, c := range r.Checks {
			t.Log(c.String())
		}
		t.Fatal("expected all checks to pass")
	}
	if len(r.Checks) != 5 {
		t.Errorf("got %d checks, want 5", len(r.Checks))
	}
	for _, c := range r.Checks {
		if c.Warning {
			t.Errorf("%s: unexpected warning: %s", c.Name, c.Message)
		}
	}
}

func TestRunAll_SkipsEmptyTools(t *testing.T) {
	r := runAll(Options{Drives: []string{"E:"}}, fakeProbes(true, map[string]bool{"E:": true}))
	if len(r.Checks) != 2 {
		t.Errorf("got %d checks, want privileges and one drive", len(r.Checks))
	}
}

func TestRunAll_NotElevated(t *testing.T) {
	r := runAll(Options{}, fakeProbes(false, nil))
	if r.Passed {
		t.Error("result should fail when not elevated")
	}
	c := findCheck(t, r, "privileges")
	if c.Passed {
		t.Error("privileges check should fail")
	}
}

func TestRunAll_ElevationUnknown(t *testing.T) {
	p := fakeProbes(true, nil)
	p.elevated = func() (bool, error) { return false, errors.New("token query failed") }

	r := runAll(Options{}, p)
	if !r.Passed {
		t.Error("an unknown elevation state should only warn")
	}
	c := findCheck(t, r, "privileges")
	if !c.Warning {
		t.Error("privileges check should be a warning")
	}
}

func TestRunAll_MissingShell(t *testing.T) {
	r := runAll(Options{Shell: "/nonexistent/cmd.exe"}, fakeProbes(true, nil))
	if r.Passed {
		t.Error("result should fail when the shell is missing")
	}
	c := findCheck(t, r, "shell")
	if !strings.Contains(c.Message, "not found") {
		t.Errorf("message should mention 'not found': %s", c.Message)
	}
}

func TestRunAll_MissingBootsectWarns(t *testing.T) {
	r := runAll(Options{Bootsect: "/nonexistent/bootsect.exe"}, fakeProbes(true, nil))
	if !r.Passed {
		t.Error("a missing bootsect should not fail the run")
	}
	c := findCheck(t, r, "bootsect")
	if !c.Warning {
		t.Error("bootsect check should be a warning")
	}
	if !strings.Contains(c.Message, "skipped") {
		t.Errorf("message should mention the skipped step: %s", c.Message)
	}
}

func TestRunAll_Removable(t *testing.T) {
	drives := map[string]bool{"E:": true, "C:": false}

	tests := []struct {
		name        string
		drive       string
		force       bool
		wantPassed  bool
		wantWarning bool
	}{
		{"removable", "E:", false, true, false},
		{"fixed", "C:", false, false, false},
		{"fixed_forced", "C:", true, true, true},
		{"unknown", "Z:", false, false, false},
		{"unknown_forced", "Z:", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runAll(Options{Drives: []string{tt.drive}, Force: tt.force}, fakeProbes(true, drives))
			c := findCheck(t, r, "removable "+tt.drive)
			if c.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (%s)", c.Passed, tt.wantPassed, c.Message)
			}
			if c.Warning != tt.wantWarning {
				t.Errorf("Warning = %v, want %v", c.Warning, tt.wantWarning)
			}
			if r.Passed != tt.wantPassed {
				t.Errorf("Result.Passed = %v, want %v", r.Passed, tt.wantPassed)
			}
		})
	}
}

// =============================================================================
// Individual checks
// =============================================================================

func TestCheckExecutable_EdgeCases(t *testing.T) {
	t.Run("empty_path", func(t *testing.T) {
		if checkExecutable("shell", "", false).Passed {
			t.Error("empty path should fail")
		}
	})

	t.Run("directory_as_path", func(t *testing.T) {
		c := checkExecutable("shell", t.TempDir(), false)
		if c.Passed {
			t.Error("directory as path should fail")
		}
		if !strings.Contains(c.Message, "regular file") {
			t.Errorf("message should mention a regular file: %s", c.Message)
		}
	})
}

func TestSuggestFix(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"privileges", "elevated"},
		{"shell", "--shell"},
		{"removable E:", "--force"},
		{"removable", "documentation"},
		{"unknown", "documentation"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := suggestFix(tc.name)
			if !strings.Contains(fix, tc.expected) {
				t.Errorf("suggestFix(%q) = %q, should contain %q", tc.name, fix, tc.expected)
			}
		})
	}
}

func TestPrintResults(t *testing.T) {
	r := &Result{
		Checks: []Check{
			{Name: "privileges", Passed: false, Message: "not running elevated"},
			{Name: "shell", Passed: true, Message: "found at cmd.exe"},
		},
	}

	var buf bytes.Buffer
	PrintResults(&buf, r)
	out := buf.String()

	if !strings.HasPrefix(out, "Preflight checks:") {
		t.Errorf("missing header: %q", out)
	}
	if strings.Count(out, "Fix:") != 1 {
		t.Errorf("expected one fix line for the one failure:\n%s", out)
	}
	if !strings.Contains(out, "found at cmd.exe") {
		t.Errorf("missing passed check:\n%s", out)
	}
}
