// http.go implements the HTTP façade (C9): it composes the C8 TCP core with
// the request/response object pools and runs the §4.7 service-loop
// pseudocode — wait for data, parse, dispatch, handle protocol errors, emit,
// log, recycle, loop while persistent.
package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/WhileEndless/go-rawhttpd/pkg/accesslog"
	"github.com/WhileEndless/go-rawhttpd/pkg/connection"
	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
	"github.com/WhileEndless/go-rawhttpd/pkg/dispatch"
	rherrors "github.com/WhileEndless/go-rawhttpd/pkg/errors"
	"github.com/WhileEndless/go-rawhttpd/pkg/pool"
	"github.com/WhileEndless/go-rawhttpd/pkg/request"
	"github.com/WhileEndless/go-rawhttpd/pkg/response"
	"github.com/WhileEndless/go-rawhttpd/pkg/timing"
)

// HTTPConfig collects the façade-specific tunables layered on top of the
// bare TCP Config.
type HTTPConfig struct {
	Server     Config
	PostLimit  int64
	AccessLog  *accesslog.AccessLog
	Dispatcher *dispatch.Dispatcher

	// EnableTiming turns on per-request phase instrumentation (§ ambient
	// enrichment beyond the bare spec, see pkg/timing's doc comment).
	EnableTiming bool
	OnTiming     func(m timing.Metrics)
}

// HTTPServer is the C9 façade: a C8 Server whose ServeFunc runs the HTTP
// service loop, with its own request/response pools.
type HTTPServer struct {
	cfg HTTPConfig
	srv *Server

	reqPool  *pool.Pool[request.Request]
	respPool *pool.Pool[response.Response]
}

// NewHTTP builds the façade and wires its service loop into the C8 core.
func NewHTTP(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.PostLimit <= 0 {
		cfg.PostLimit = constants.DefaultPostLimit
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = dispatch.New(0)
	}

	h := &HTTPServer{cfg: cfg}

	capacity := cfg.Server.QueueSize + cfg.Server.Workers + 1
	if capacity <= 0 {
		capacity = 16
	}
	h.reqPool = pool.New(capacity, func() *request.Request { return &request.Request{} }, func(r *request.Request) { r.Reset() })
	h.respPool = pool.New(capacity, func() *response.Response { return &response.Response{} }, func(r *response.Response) { r.Reset() })

	srv, err := New(cfg.Server, h.serveOne)
	if err != nil {
		return nil, err
	}
	h.srv = srv
	return h, nil
}

// Start delegates to the underlying C8 Server.
func (h *HTTPServer) Start(addr string) error { return h.srv.Start(addr) }

// Shutdown delegates to the underlying C8 Server.
func (h *HTTPServer) Shutdown() { h.srv.Shutdown() }

// Counters exposes the underlying C8 Server's atomic counters.
func (h *HTTPServer) Counters() *Counters { return &h.srv.Counters }

// Addr returns the bound listener address once Start has begun accepting.
func (h *HTTPServer) Addr() net.Addr { return h.srv.Addr() }

// serveOne is the C8 ServeFunc: it runs the §4.7 keep-alive loop over one
// connection, parsing and dispatching requests until the connection is no
// longer persistent or a fatal error occurs.
func (h *HTTPServer) serveOne(c *connection.Connection) {
	defer c.Close()

	for {
		if !h.serveRequest(c) {
			return
		}
		if !c.Persistent() {
			return
		}
	}
}

// serveRequest runs one request/response cycle and reports whether the
// connection should be kept open for another.
func (h *HTTPServer) serveRequest(c *connection.Connection) bool {
	req := h.reqPool.Get()
	resp := h.respPool.Get()
	defer func() {
		h.reqPool.Put(req)
		h.respPool.Put(resp)
	}()

	var timer *timing.Timer
	if h.cfg.EnableTiming {
		timer = timing.NewTimer()
		timer.StartWait()
	}

	resp.Version = response.Version11

	if timer != nil {
		timer.EndWait()
		timer.StartParse()
	}

	err := request.Parse(c.Reader(), req, h.cfg.PostLimit)

	if timer != nil {
		timer.EndParse()
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			// Client closed the connection before sending a new
			// request; not an error, just the end of a keep-alive
			// session (§4.7).
			return false
		}
		h.emitError(c, resp, err)
		return false
	}

	c.SetState(connection.StateActive)
	c.SetPersistent(req.Persistent)

	if req.Version == request.Version10 || req.Version == request.Version09 {
		resp.Version = response.Version10
	}
	resp.SetPersistent(c.Persistent())

	if timer != nil {
		timer.StartHandle()
	}

	status := h.cfg.Dispatcher.Dispatch(req, resp)

	if req.Version != request.Version11 && !c.Persistent() {
		if _, ok := resp.General.GetConnection(); !ok {
			resp.General.SetConnection("close")
		}
	}

	if timer != nil {
		timer.EndHandle()
		timer.StartEmit()
	}

	isHead := req.Method == request.HEAD
	n, emitErr := response.Emit(c.Writer(), resp, isHead)

	if timer != nil {
		timer.EndEmit()
	}

	if flushErr := c.Flush(); flushErr != nil {
		emitErr = flushErr
	}

	if h.cfg.AccessLog != nil {
		ip := ""
		if addr := c.RemoteAddr(); addr != nil {
			ip = addr.String()
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
		}
		h.cfg.AccessLog.Log(ip, string(req.Method), req.URI, status, n)
	}

	if h.cfg.EnableTiming && h.cfg.OnTiming != nil {
		h.cfg.OnTiming(timer.GetMetrics())
	}

	if emitErr != nil {
		return false
	}

	if v, ok := resp.General.GetConnection(); ok && strings.EqualFold(v, "close") {
		return false
	}

	c.SetState(connection.StateIdle)
	return c.Persistent()
}

// emitError implements §7's error-handling contract: a ProtocolError gets
// a best-effort status-line reply before the connection is closed; every
// other category just closes.
func (h *HTTPServer) emitError(c *connection.Connection, resp *response.Response, err error) {
	status := rherrors.StatusOf(err)
	if status == 0 {
		return
	}
	resp.Reset()
	resp.Status = status
	resp.Version = response.Version11
	resp.General.SetConnection("close")
	resp.Add([]byte(response.StatusText(status)))
	response.Emit(c.Writer(), resp, false)
	c.Flush()
}
