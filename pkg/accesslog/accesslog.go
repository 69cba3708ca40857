// Package accesslog implements the common-logfile-format access log (C10):
// lazy file open, count-based rotation with a timestamp suffix, and a
// mutex-guarded write path. Any failure permanently disables logging for
// the remainder of the process, per spec §4.10.
package accesslog

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// AccessLog is the C10 component: the logfile handle, current-entry count,
// and a mutex, held together exactly as spec §3 "Server" describes them.
type AccessLog struct {
	mu sync.Mutex

	path             string
	rotateThreshold  int
	count            int
	file             *os.File
	disabled         bool

	// Logger reports unexpected I/O failures; defaults to the standard
	// library logger, matching the ambient-stack convention the rest of
	// this repository uses (no third-party logger is wired — see
	// SPEC_FULL.md's Logging section).
	Logger func(format string, args ...any)

	now func() time.Time
}

// New creates an AccessLog writing to path, rotating after rotateThreshold
// entries (0 disables rotation).
func New(path string, rotateThreshold int) *AccessLog {
	return &AccessLog{
		path:            path,
		rotateThreshold: rotateThreshold,
		Logger:          log.New(os.Stderr, "rawhttpd: ", log.LstdFlags).Printf,
		now:             time.Now,
	}
}

// Log writes one common-logfile-format entry:
// IP - - [dd/Mon/yyyy:HH:MM:SS ±zzzz] "METHOD URI" STATUS BYTES
func (a *AccessLog) Log(ip, method, uri string, status int, bytes int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disabled {
		return
	}

	if a.file == nil {
		f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			a.fail("open", err)
			return
		}
		a.file = f
	}

	if a.rotateThreshold > 0 && a.count >= a.rotateThreshold {
		if err := a.rotate(); err != nil {
			a.fail("rotate", err)
			return
		}
	}

	line := fmt.Sprintf("%s - - [%s] %q %d %d\n",
		ip, a.now().Format("02/Jan/2006:15:04:05 -0700"), method+" "+uri, status, bytes)

	if _, err := a.file.WriteString(line); err != nil {
		a.fail("write", err)
		return
	}
	if err := a.file.Sync(); err != nil {
		a.fail("sync", err)
		return
	}
	a.count++
}

// rotate closes the current file, renames it with a .YYYYMMDDhhmmss
// suffix, and reopens the original path fresh.
func (a *AccessLog) rotate() error {
	if err := a.file.Close(); err != nil {
		return err
	}
	suffix := a.now().Format("20060102150405")
	if err := os.Rename(a.path, a.path+"."+suffix); err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	a.file = f
	a.count = 0
	return nil
}

// fail disables logging for the remainder of the process lifetime, per
// §4.10's "Any failure disables logging for the remainder of the process
// lifetime."
func (a *AccessLog) fail(op string, err error) {
	a.disabled = true
	if a.Logger != nil {
		a.Logger("accesslog: %s failed, disabling access log: %v", op, err)
	}
}

// Close closes the underlying file, if open.
func (a *AccessLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
