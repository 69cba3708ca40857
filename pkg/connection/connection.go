// Package connection implements the Connection object (C1): a socket (plain
// or TLS) plus borrowed read/write buffers, offering line/byte reads and
// buffered writes with timeout and retry, a persistence flag, and peer
// metadata.
//
// Grounded on MiraiMindz/shockwave's http11.Connection (atomic state,
// pooled reader/writer, per-connection Serve loop shape) and the teacher's
// pkg/buffer.go borrowed-not-owned buffer discipline; the large-write retry
// path follows spec §4.1's "retries = size/1024, one-second unit" rule.
package connection

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
)

// State mirrors shockwave's ConnectionState, tracked for diagnostics and
// the graceful-shutdown drain.
type State int32

const (
	StateNew State = iota
	StateActive
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LargeWriteThreshold is the §4.1 "big write" boundary; writes above this
// size take the chunked retry path instead of the buffered-writer path.
const LargeWriteThreshold = constants.LargeWriteThreshold

// largeWriteChunk is the chunk size used by the big-write retry path.
const largeWriteChunk = 32 * 1024

// Connection is the C1 data model: a socket handle, peer address, timeouts,
// retry counts, a persistence flag, and buffers borrowed from pools for the
// duration of one request.
type Connection struct {
	conn net.Conn
	addr net.Addr

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RetriesRead  int
	RetriesWrite int

	state      atomic.Int32
	persistent atomic.Bool

	br *bufio.Reader
	bw *bufio.Writer

	pollIntr  atomic.Uint64
	pollAgain atomic.Uint64

	userData any
}

// New wraps an accepted net.Conn with the configured timeouts/retries. The
// connection is parameterized per-accept and recycled after the service
// loop exits, per §3 "Connection" lifecycle.
func New(conn net.Conn, readTimeout, writeTimeout time.Duration, retriesRead, retriesWrite int) *Connection {
	c := &Connection{
		conn:         conn,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		RetriesRead:  retriesRead,
		RetriesWrite: retriesWrite,
	}
	c.state.Store(int32(StateNew))
	if conn != nil {
		c.addr = conn.RemoteAddr()
	}
	return c
}

// Reset detaches a pooled Connection from its socket, clearing everything
// that must not leak across borrows (§3's pool-conservation invariant: every
// queued connection is returned exactly once, with no carried-over state).
// Bind attaches the next accepted socket.
func (c *Connection) Reset() {
	c.conn = nil
	c.addr = nil
	c.state.Store(int32(StateNew))
	c.persistent.Store(false)
	c.br = nil
	c.bw = nil
	c.pollIntr.Store(0)
	c.pollAgain.Store(0)
	c.userData = nil
}

// Bind attaches the accepted socket to a (possibly pooled) Connection.
func (c *Connection) Bind(conn net.Conn) {
	c.conn = conn
	c.addr = conn.RemoteAddr()
	c.state.Store(int32(StateNew))
}

// AssignBuffers gives the connection borrowed read/write bufio objects
// (from the server's buffer pools), rebinding them onto the live socket.
// This is the C8 "pre" callback's job in the dispatch pipeline.
func (c *Connection) AssignBuffers(br *bufio.Reader, bw *bufio.Writer) {
	br.Reset(c.conn)
	bw.Reset(c.conn)
	c.br = br
	c.bw = bw
}

// ReclaimReadBuffer surrenders the borrowed read buffer back to the caller
// for return to its pool, clearing it from the connection first.
func (c *Connection) ReclaimReadBuffer() *bufio.Reader {
	br := c.br
	c.br = nil
	return br
}

// ReclaimWriteBuffer surrenders the borrowed write buffer back to the
// caller for return to its pool.
func (c *Connection) ReclaimWriteBuffer() *bufio.Writer {
	bw := c.bw
	c.bw = nil
	return bw
}

// Reader exposes the borrowed *bufio.Reader for request parsing.
func (c *Connection) Reader() *bufio.Reader { return c.br }

// Writer exposes the borrowed *bufio.Writer for response emission.
func (c *Connection) Writer() *bufio.Writer { return c.bw }

// RemoteAddr returns the peer address, or nil before Bind.
func (c *Connection) RemoteAddr() net.Addr { return c.addr }

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// SetState transitions the connection's tracked state.
func (c *Connection) SetState(s State) { c.state.Store(int32(s)) }

// Persistent reports whether this connection should be kept open across
// requests (§3: "default false; set true on HTTP/1.1 or explicit
// Keep-Alive").
func (c *Connection) Persistent() bool { return c.persistent.Load() }

// SetPersistent sets the persistence flag.
func (c *Connection) SetPersistent(v bool) { c.persistent.Store(v) }

// UserData returns the per-connection user-data slot used by the service
// function (§3).
func (c *Connection) UserData() any { return c.userData }

// SetUserData sets the per-connection user-data slot.
func (c *Connection) SetUserData(v any) { c.userData = v }

// PollIntr/PollAgain expose the per-connection interrupt/retry counters so
// the server can fold them into its global counters (§4.8).
func (c *Connection) PollIntr() uint64  { return c.pollIntr.Load() }
func (c *Connection) PollAgain() uint64 { return c.pollAgain.Load() }

// applyReadDeadline extends the read deadline by the configured timeout,
// called before every read attempt per §4.1's per-operation timeout rule.
func (c *Connection) applyReadDeadline() {
	if c.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	}
}

func (c *Connection) applyWriteDeadline(d time.Duration) {
	if d > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(d))
	}
}

// ReadByte reads a single byte, retrying transient timeouts
// (EAGAIN-equivalent) up to RetriesRead times.
func (c *Connection) ReadByte() (byte, error) {
	for attempt := 0; ; attempt++ {
		c.applyReadDeadline()
		b, err := c.br.ReadByte()
		if err == nil {
			return b, nil
		}
		if isRetryable(err) && attempt < c.RetriesRead {
			c.pollAgain.Add(1)
			continue
		}
		return 0, errors.NewNetworkError("read_byte", err)
	}
}

// ReadLine reads until CRLF (tolerating a bare LF), stripping the
// terminator. Fails with a TCP/IP error on socket error, and an
// application error (ENOSPC-equivalent) on overflow past maxLen (§4.1).
func (c *Connection) ReadLine(maxLen int) (string, error) {
	var line []byte
	for {
		c.applyReadDeadline()
		chunk, err := c.br.ReadBytes('\n')
		line = append(line, chunk...)
		if err != nil {
			if isRetryable(err) {
				c.pollAgain.Add(1)
				continue
			}
			return "", errors.NewNetworkError("read_line", err)
		}
		break
	}
	if len(line) > maxLen {
		return "", errors.NewApplicationError("read_line", "line exceeds maximum length", nil)
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if bytes.IndexByte(line, '\r') >= 0 {
		return "", errors.NewProtocolError("read_line", 400, "missing LF after CR")
	}
	return string(line), nil
}

// Read reads exactly n bytes, treating a short read as a semantic
// violation (§4.5's "short reads fail with TCP/IP EINVAL").
func (c *Connection) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		c.applyReadDeadline()
		m, err := c.br.Read(buf[read:])
		read += m
		if err != nil {
			if err == io.EOF && read == n {
				break
			}
			if isRetryable(err) {
				c.pollAgain.Add(1)
				continue
			}
			return buf[:read], errors.NewNetworkError("read", err)
		}
	}
	return buf, nil
}

// Gets is an alias for ReadLine with the same maxLen, matching the
// teacher-style short accessor name used for line-oriented protocol reads.
func (c *Connection) Gets(maxLen int) (string, error) { return c.ReadLine(maxLen) }

// Write appends bytes to the write buffer. Writes above LargeWriteThreshold
// take the chunked retry path (§4.1 "Big writes"); everything else goes
// through the ordinary bufio.Writer, which flushes transparently on
// overflow.
func (c *Connection) Write(p []byte) (int, error) {
	if len(p) > LargeWriteThreshold {
		return c.writeLarge(p)
	}
	c.applyWriteDeadline(c.WriteTimeout)
	n, err := c.bw.Write(p)
	if err != nil {
		return n, errors.NewNetworkError("write", err)
	}
	return n, nil
}

// writeLarge chunks a big write and flushes each chunk individually, with
// per-chunk retry count derived from size/1024 (one-second unit), per
// §4.1.
func (c *Connection) writeLarge(p []byte) (int, error) {
	retries := len(p) / 1024
	if retries < c.RetriesWrite {
		retries = c.RetriesWrite
	}
	written := 0
	for written < len(p) {
		end := written + largeWriteChunk
		if end > len(p) {
			end = len(p)
		}
		chunk := p[written:end]
		if err := c.writeChunkWithRetry(chunk, retries); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

func (c *Connection) writeChunkWithRetry(chunk []byte, retries int) error {
	for attempt := 0; ; attempt++ {
		c.applyWriteDeadline(time.Second)
		if _, err := c.bw.Write(chunk); err != nil {
			if isRetryable(err) && attempt < retries {
				c.pollAgain.Add(1)
				continue
			}
			return errors.NewNetworkError("write_large", err)
		}
		if err := c.bw.Flush(); err != nil {
			if isRetryable(err) && attempt < retries {
				c.pollAgain.Add(1)
				continue
			}
			return errors.NewNetworkError("write_large_flush", err)
		}
		return nil
	}
}

// Flush flushes the write buffer to the socket.
func (c *Connection) Flush() error {
	c.applyWriteDeadline(c.WriteTimeout)
	if err := c.bw.Flush(); err != nil {
		return errors.NewNetworkError("flush", err)
	}
	return nil
}

// Close flushes then closes the socket (§4.1).
func (c *Connection) Close() error {
	var flushErr error
	if c.bw != nil {
		flushErr = c.Flush()
	}
	c.SetState(StateClosed)
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && flushErr == nil {
			return errors.NewNetworkError("close", err)
		}
	}
	return flushErr
}

// Discard closes the socket without flushing, used when a client-caused
// TCP error forbids further writes (§4.1).
func (c *Connection) Discard() error {
	c.SetState(StateClosed)
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return errors.NewNetworkError("discard", err)
	}
	return nil
}

// isRetryable reports whether err is a transient network condition worth
// retrying — the Go-idiomatic stand-in for the C original's EINTR/EAGAIN
// distinction, since the runtime's netpoller already folds both into a
// single retryable timeout error.
func isRetryable(err error) bool {
	var ne net.Error
	if ok := asNetError(err, &ne); ok {
		return ne.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
