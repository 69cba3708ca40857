// Package buffer provides memory-efficient data storage with disk spilling,
// used by the response's in-memory body variant (C6).
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
)

const (
	// DefaultMemoryLimit is the default memory threshold before spilling to disk.
	DefaultMemoryLimit = 4 * 1024 * 1024 // 4MB
)

// Buffer stores a response body either in memory or spooled to a temporary
// file once it grows past memLimit. The zero value is a ready-to-use
// Buffer that spills at DefaultMemoryLimit — response.Response embeds one
// by value rather than going through New, since most bodies are small and
// never need a constructor call at all.
type Buffer struct {
	mem      bytes.Buffer
	spill    *os.File
	spillPath string
	written  int64
	memLimit int64
	mu       sync.Mutex
	closed   bool
}

// New creates a Buffer that spills to disk once it holds more than limit
// bytes (DefaultMemoryLimit when limit<=0).
func New(limit int64) *Buffer {
	return &Buffer{memLimit: normalizeLimit(limit)}
}

// NewWithData seeds a Buffer with data already in hand, under the default
// memory limit.
func NewWithData(data []byte) *Buffer {
	b := &Buffer{memLimit: DefaultMemoryLimit, written: int64(len(data))}
	b.mem.Write(data)
	return b
}

func normalizeLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultMemoryLimit
	}
	return limit
}

// Write stores p, spilling to a temp file the first time the accumulated
// size would exceed the memory limit.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewOSError("buffer is closed", nil)
	}
	if b.memLimit == 0 {
		// Zero value in use (no New call): adopt the default lazily so a
		// bare `var b Buffer` behaves the same as New(0).
		b.memLimit = DefaultMemoryLimit
	}

	b.written += int64(len(p))

	if b.spill == nil && int64(b.mem.Len()+len(p)) <= b.memLimit {
		return b.mem.Write(p)
	}

	if b.spill == nil {
		if err := b.beginSpill(); err != nil {
			return 0, err
		}
	}

	n, err := b.spill.Write(p)
	if err != nil {
		return n, errors.NewOSError("writing to temp file", err)
	}
	return n, nil
}

// beginSpill creates the backing temp file and migrates any in-memory
// bytes written so far into it. Caller holds b.mu.
func (b *Buffer) beginSpill() error {
	tmp, err := os.CreateTemp("", "rawhttpd-buffer-*.tmp")
	if err != nil {
		return errors.NewOSError("creating temp file", err)
	}
	b.spill = tmp
	b.spillPath = tmp.Name()

	if b.mem.Len() > 0 {
		if _, err := tmp.Write(b.mem.Bytes()); err != nil {
			b.closeLocked()
			return errors.NewOSError("writing to temp file", err)
		}
	}
	b.mem.Reset()
	return nil
}

// Bytes returns the in-memory data. If the payload spilled to disk this
// returns nil — call Reader instead for a uniform view of either variant.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.spill != nil {
		return nil
	}
	return b.mem.Bytes()
}

// Path returns the filesystem path backing the spilled payload, or "" if
// the buffer never spilled.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spillPath
}

// Size returns the total number of bytes written so far.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// IsSpilled reports whether the buffer has migrated to a temp file.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spill != nil
}

// Reader returns a fresh, independent reader over everything written so
// far, transparently backed by memory or the spill file.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewOSError("buffer is closed", nil)
	}

	if b.spill != nil {
		if err := b.spill.Sync(); err != nil {
			return nil, errors.NewOSError("syncing temp file", err)
		}
		f, err := os.Open(b.spillPath)
		if err != nil {
			return nil, errors.NewOSError("opening temp file for reading", err)
		}
		return f, nil
	}

	return io.NopCloser(bytes.NewReader(b.mem.Bytes())), nil
}

// closeLocked is Close's body, callable from beginSpill which already
// holds b.mu; Close itself takes the lock before delegating here.
func (b *Buffer) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.spill == nil {
		return nil
	}
	err := b.spill.Close()
	if removeErr := os.Remove(b.spillPath); removeErr != nil && err == nil {
		err = removeErr
	}
	b.spill = nil
	b.spillPath = ""
	if err != nil {
		return errors.NewOSError("closing temp file", err)
	}
	return nil
}

// Close releases the spill file, if any, removing it from disk. Safe for
// concurrent and repeated calls.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

// Reset clears the buffer, removing any spill file, so it can be reused
// for the next response body.
func (b *Buffer) Reset() error {
	if err := b.Close(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.mem.Reset()
	b.written = 0
	b.closed = false
	return nil
}
