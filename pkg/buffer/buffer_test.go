package buffer

import (
	"io"
	"testing"
)

func TestWriteStaysInMemoryUnderLimit(t *testing.T) {
	b := New(1024)
	defer b.Close()

	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.IsSpilled() {
		t.Fatalf("expected buffer to stay in memory under the limit")
	}
	if got := string(b.Bytes()); got != "hello" {
		t.Fatalf("Bytes = %q, want %q", got, "hello")
	}
}

func TestWriteSpillsAboveLimit(t *testing.T) {
	b := New(4)
	defer b.Close()

	if _, err := b.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !b.IsSpilled() {
		t.Fatalf("expected buffer to spill to disk above the limit")
	}

	r, err := b.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("spilled content = %q, want %q", got, "hello world")
	}
}

func TestZeroValueStaysInMemoryUnderDefaultLimit(t *testing.T) {
	var b Buffer
	defer b.Close()

	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.IsSpilled() {
		t.Fatalf("a bare Buffer{} should behave like New(0) and stay in memory for small writes")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(4)
	if _, err := b.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}
