// Package server implements the TCP server core (C8): listener lifecycle,
// an admission filter, a bounded work queue backed by a fixed worker pool,
// connection/buffer pools, graceful shutdown, and performance counters.
//
// Grounded on MiraiMindz/shockwave's server.go (BaseServer, Stats via
// atomic counters, context-based Shutdown) and on nabbar-golib's
// socket-server-tcp-doc.go prose choosing a bounded worker pool over
// goroutine-per-connection, since spec §4.8 is explicit about a fixed
// worker count and a bounded queue.
package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/WhileEndless/go-rawhttpd/pkg/connection"
	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
	"github.com/WhileEndless/go-rawhttpd/pkg/pool"
	rherrors "github.com/WhileEndless/go-rawhttpd/pkg/errors"
)

// Counters are the atomic performance counters §4.8 and §5 require:
// "Counters: atomic unsigned long for poll/accept/denied sums."
type Counters struct {
	SumPollIntr      atomic.Uint64
	SumPollAgain     atomic.Uint64
	SumAcceptFailed  atomic.Uint64
	SumDeniedClients atomic.Uint64
}

// Config collects the §3 "Server" tunables this package owns directly (the
// HTTP-specific pools live in the façade, pkg/server/http.go).
type Config struct {
	Workers       int
	QueueSize     int
	BlockWhenFull bool

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RetriesRead       int
	RetriesWrite      int
	AcceptPollTimeout time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	// AllowListPattern, if non-empty, is compiled into the admission
	// filter regex matched against the peer's dotted-quad IP (§4.8).
	AllowListPattern string

	// TLSConfig, if set, wraps the raw listener in a TLS session at
	// accept time (§4.8).
	TLSConfig *tls.Config

	Logger func(format string, args ...any)
}

// DefaultConfig fills in the §4.8/§3 defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           constants.DefaultWorkers,
		QueueSize:         constants.DefaultQueueSize,
		ReadTimeout:       constants.DefaultReadTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		RetriesRead:       2,
		RetriesWrite:      2,
		AcceptPollTimeout: constants.DefaultAcceptPoll,
		ReadBufferSize:    constants.DefaultReadBufferSize,
		WriteBufferSize:   constants.DefaultWriteBufferSize,
	}
}

// ServeFunc is the per-connection service function run by a worker; the
// HTTP façade's request/response loop is one implementation of it.
type ServeFunc func(c *connection.Connection)

// Server is the C8 TCP server core.
type Server struct {
	cfg Config
	ln  net.Listener

	addrVal atomic.Value // net.Addr, set once Start has bound the listener

	connPool  *pool.Pool[connection.Connection]
	readPool  *pool.Pool[bufio.Reader]
	writePool *pool.Pool[bufio.Writer]

	queue chan *connection.Connection
	wg    sync.WaitGroup

	shuttingDown atomic.Bool
	allowList    *regexp.Regexp

	Counters Counters

	// Serve is invoked by a worker for every accepted connection, with
	// read/write buffers already assigned.
	Serve ServeFunc

	logger func(format string, args ...any)
}

// New creates the connection pool (sized queue+workers+1) and the two
// buffer pools (sized workers), per §4.8 "Initialization"; the pooled
// objects themselves are constructed lazily on first Get.
func New(cfg Config, serve ServeFunc) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = constants.DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = constants.DefaultQueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = constants.DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = constants.DefaultWriteBufferSize
	}

	s := &Server{
		cfg:    cfg,
		queue:  make(chan *connection.Connection, cfg.QueueSize),
		Serve:  serve,
		logger: cfg.Logger,
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "rawhttpd: ", log.LstdFlags).Printf
	}

	if cfg.AllowListPattern != "" {
		re, err := regexp.Compile(cfg.AllowListPattern)
		if err != nil {
			return nil, rherrors.NewApplicationError("compile_allow_list", "invalid allow-list pattern", err)
		}
		s.allowList = re
	}

	connCapacity := cfg.QueueSize + cfg.Workers + 1
	s.connPool = pool.New(connCapacity, func() *connection.Connection {
		return connection.New(nil, cfg.ReadTimeout, cfg.WriteTimeout, cfg.RetriesRead, cfg.RetriesWrite)
	}, func(c *connection.Connection) { c.Reset() })

	s.readPool = pool.New(cfg.Workers, func() *bufio.Reader {
		return bufio.NewReaderSize(nil, cfg.ReadBufferSize)
	}, nil)

	s.writePool = pool.New(cfg.Workers, func() *bufio.Writer {
		return bufio.NewWriterSize(nil, cfg.WriteBufferSize)
	}, nil)

	return s, nil
}

// Start binds addr, launches the worker pool, and runs the accept loop
// until Shutdown is called. It blocks until every worker has drained.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return rherrors.NewNetworkError("listen", err)
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}
	s.ln = ln
	s.addrVal.Store(ln.Addr())

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.acceptLoop()

	close(s.queue)
	s.wg.Wait()
	return nil
}

// Addr returns the bound listener address once Start has begun accepting,
// or nil before that point; useful for tests that bind an ephemeral port.
func (s *Server) Addr() net.Addr {
	v := s.addrVal.Load()
	if v == nil {
		return nil
	}
	return v.(net.Addr)
}

// Shutdown sets the cooperative shutdown flag polled by the accept loop
// (§5 "Cancellation") and closes the listener so a blocked Accept wakes up.
func (s *Server) Shutdown() {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	if s.ln != nil {
		s.ln.Close()
	}
}

// acceptLoop implements §4.8's "Accept loop": a deadline-bounded Accept
// acting as the non-blocking-listener-plus-poll the C original used, with
// the documented errno categories folded into the counters.
func (s *Server) acceptLoop() {
	consecUnknown := 0
	for !s.shuttingDown.Load() {
		if dl, ok := s.ln.(interface{ SetDeadline(time.Time) error }); ok {
			dl.SetDeadline(time.Now().Add(s.cfg.AcceptPollTimeout))
		}

		conn, err := s.ln.Accept()
		if err != nil {
			if s.shuttingDown.Load() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.Counters.SumPollAgain.Add(1)
				consecUnknown = 0
				continue
			}
			if isRecoverableAcceptErrno(err) {
				s.Counters.SumAcceptFailed.Add(1)
				consecUnknown = 0
				continue
			}
			// Unknown errors: continue, robustness over correctness,
			// but a run of them means the listener is wedged in a
			// failure mode the recoverable list doesn't know, so back
			// off between retries instead of spinning.
			s.Counters.SumAcceptFailed.Add(1)
			consecUnknown++
			if consecUnknown >= constants.UnknownAcceptErrorThreshold {
				s.logger("accept: %d consecutive unknown errors, backing off: %v", consecUnknown, err)
				time.Sleep(constants.UnknownAcceptErrorBackoff)
			}
			continue
		}

		consecUnknown = 0
		s.handleAccepted(conn)
	}
}

func (s *Server) handleAccepted(conn net.Conn) {
	if s.allowList != nil && !s.admits(conn) {
		conn.Close()
		s.Counters.SumDeniedClients.Add(1)
		return
	}

	c := s.connPool.Get()
	c.Bind(conn)
	c.ReadTimeout = s.cfg.ReadTimeout
	c.WriteTimeout = s.cfg.WriteTimeout
	c.RetriesRead = s.cfg.RetriesRead
	c.RetriesWrite = s.cfg.RetriesWrite

	select {
	case s.queue <- c:
		return
	default:
	}

	if s.cfg.BlockWhenFull {
		s.queue <- c
		return
	}

	// Queue full and non-blocking: close and recycle, per §4.8
	// "Dispatch": "If enqueue fails (queue full, non-blocking),
	// connection_close then recycle."
	c.Discard()
	s.connPool.Put(c)
}

// admits implements the §4.8 admission filter: convert peer IP to
// dotted-quad and match against the compiled allow-list regex.
func (s *Server) admits(conn net.Conn) bool {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}
	return s.allowList.MatchString(host)
}

func (s *Server) worker() {
	defer s.wg.Done()
	for c := range s.queue {
		s.runOne(c)
	}
}

// runOne borrows read/write buffers (the "pre" callback), runs the service
// function (the "work" callback), then recycles buffers and the connection
// (the "post" callback) exactly once regardless of outcome, per §3's
// pool-conservation invariant.
func (s *Server) runOne(c *connection.Connection) {
	br := s.readPool.Get()
	bw := s.writePool.Get()
	c.AssignBuffers(br, bw)

	defer func() {
		s.readPool.Put(c.ReclaimReadBuffer())
		s.writePool.Put(c.ReclaimWriteBuffer())
		s.connPool.Put(c)
	}()

	if s.Serve != nil {
		s.Serve(c)
	}
}

// isRecoverableAcceptErrno reports whether err is one of the §4.8
// "increment sum_accept_failed, continue" accept-failure categories:
// EPROTO, ENONET, ENOTCONN, EAGAIN, ENETDOWN, ENOPROTOOPT, EHOSTDOWN,
// EHOSTUNREACH, EOPNOTSUPP, ENETUNREACH.
func isRecoverableAcceptErrno(err error) bool {
	recoverable := []error{
		syscall.EPROTO, syscall.ENONET, syscall.ENOTCONN, syscall.EAGAIN,
		syscall.ENETDOWN, syscall.ENOPROTOOPT, syscall.EHOSTDOWN,
		syscall.EHOSTUNREACH, syscall.EOPNOTSUPP, syscall.ENETUNREACH,
	}
	for _, target := range recoverable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
