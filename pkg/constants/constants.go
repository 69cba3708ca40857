// Package constants defines the magic numbers and default values used
// throughout go-rawhttpd, mirroring the teacher's approach of centralizing
// tunables rather than scattering literals through the server.
package constants

import "time"

// Connection timeouts and retries (§4.1, §4.8). There is no separate idle
// timeout: applyReadDeadline re-arms ReadTimeout before every read,
// including the first read of the next keep-alive request, so one
// timeout value covers both in-request and between-request waits.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultAcceptPoll   = 1 * time.Second
)

// Accept-loop backoff: after this many consecutive unknown accept errors
// the loop sleeps between retries instead of spinning (§4.8).
const (
	UnknownAcceptErrorThreshold = 8
	UnknownAcceptErrorBackoff   = 100 * time.Millisecond
)

// Buffer sizing (§3 "Buffers").
const (
	DefaultReadBufferSize  = 4 * 1024  // ~4 KiB
	DefaultWriteBufferSize = 64 * 1024 // ~64 KiB
	LargeWriteThreshold    = 64 * 1024 // writes above this use the chunked retry path
	FileStreamChunkSize    = 8 * 1024  // §4.6 file body streaming chunk size
)

// Request limits (§4.5).
const (
	MaxRequestLineLen = 10 * 1024 // 10 KiB
	MaxURILen         = 10 * 1024 // 10 KiB
	DefaultPostLimit  = 1024 * 1024
)

// Pool sizing (§4.8 "pre-allocates").
const (
	DefaultWorkers   = 8
	DefaultQueueSize = 64
)

// cbuf (C2 / §4.2).
const (
	BeepProtocolVersion = 0x01
)
