package accesslog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLogWritesCommonLogFormatLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	a := New(path, 0)
	a.now = func() time.Time { return time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC) }

	a.Log("10.0.0.1", "GET", "/", 200, 2)
	a.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := `10.0.0.1 - - [29/Jul/2026:10:00:00 +0000] "GET /" 200 2` + "\n"
	if string(data) != want {
		t.Fatalf("line = %q, want %q", data, want)
	}
}

// TestRotation is §8 invariant 7.
func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	a := New(path, 2)
	stamp := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return stamp }

	a.Log("10.0.0.1", "GET", "/", 200, 1)
	a.Log("10.0.0.1", "GET", "/", 200, 1)
	a.Log("10.0.0.1", "GET", "/", 200, 1) // triggers rotation before this write
	a.Close()

	rotated := path + "." + stamp.Format("20060102150405")
	if _, err := os.Stat(rotated); err != nil {
		t.Fatalf("expected rotated file %s: %v", rotated, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected fresh file at %s: %v", path, err)
	}
}

func TestFailureDisablesLoggingPermanently(t *testing.T) {
	a := New("/nonexistent/dir/access.log", 0)
	var messages int
	a.Logger = func(format string, args ...any) { messages++ }

	a.Log("10.0.0.1", "GET", "/", 200, 1)
	if messages == 0 {
		t.Fatalf("expected failure to be reported")
	}
	if !a.disabled {
		t.Fatalf("expected logging to be disabled after failure")
	}

	messages = 0
	a.Log("10.0.0.1", "GET", "/", 200, 1)
	if messages != 0 {
		t.Fatalf("expected no further attempts once disabled")
	}
}
