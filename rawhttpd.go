// Package rawhttpd is the top-level façade composing the server packages
// under pkg/ into the one object an embedder constructs: a validated
// Config in, a running HTTP/1.x (optionally TLS) server out.
//
// It occupies the same position in the tree that the teacher's rawhttp.go
// occupied for the client side — a thin composition root re-exporting the
// package types an embedder needs without forcing an import of every
// pkg/* subpackage — pointed the other direction: accept instead of dial.
package rawhttpd

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/WhileEndless/go-rawhttpd/pkg/accesslog"
	"github.com/WhileEndless/go-rawhttpd/pkg/config"
	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
	"github.com/WhileEndless/go-rawhttpd/pkg/dispatch"
	"github.com/WhileEndless/go-rawhttpd/pkg/server"
	"github.com/WhileEndless/go-rawhttpd/pkg/timing"
	"github.com/WhileEndless/go-rawhttpd/pkg/tlsconfig"
)

// Version is the current version of this server library.
const Version = "1.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string { return Version }

// Re-export the package types an embedder assembles a server from, so the
// common case only needs this one import.
type (
	// Config is the validated, parsed form of the spec §6 key=value file.
	Config = config.Config

	// Handler produces a response for a parsed request.
	Handler = dispatch.Handler

	// Page registers one exact-URI dynamic page.
	Page = dispatch.Page

	// Attributes gates a Page on the request's negotiated media type.
	Attributes = dispatch.Attributes

	// Counters are the server core's atomic performance counters.
	Counters = server.Counters

	// Metrics captures one request's WaitForData/Parse/Handle/Emit phase timings.
	Metrics = timing.Metrics

	// TLSVersionProfile names a min/max TLS version range for WithTLSVersionRange.
	TLSVersionProfile = tlsconfig.VersionProfile
)

// Server is the assembled C8+C9 server: TCP core, HTTP façade, dispatcher,
// and access log, built from a validated Config.
type Server struct {
	cfg      Config
	http     *server.HTTPServer
	dispatch *dispatch.Dispatcher
	log      *accesslog.AccessLog

	tlsEnabled   bool
	tlsProfile   tlsconfig.ServerProfile
	allowList    string
	enableTiming bool
	onTiming     func(Metrics)
	logger       func(format string, args ...any)
}

// Option customizes a Server at construction time, applied after the
// Config-derived defaults and before the server starts accepting.
type Option func(*Server)

// WithTLS configures the listener to wrap accepted connections in a TLS
// session, defaulting to the TLS 1.3-only server profile; combine with
// WithTLSVersionRange to admit older peers.
func WithTLS(certFile, keyFile, clientCADir string) Option {
	return func(s *Server) {
		s.tlsEnabled = true
		s.tlsProfile.CertFile = certFile
		s.tlsProfile.KeyFile = keyFile
		s.tlsProfile.ClientCADir = clientCADir
	}
}

// WithTLSVersionRange overrides the version profile WithTLS uses, e.g.
// tlsconfig.ProfileSecure to also admit TLS 1.2 peers.
func WithTLSVersionRange(p TLSVersionProfile) Option {
	return func(s *Server) { s.tlsProfile.VersionRange = p }
}

// WithAllowList restricts admission to peers whose dotted-quad IP matches
// pattern (§4.8 "Admission").
func WithAllowList(pattern string) Option {
	return func(s *Server) { s.allowList = pattern }
}

// WithTiming enables per-request phase instrumentation, delivered to fn.
func WithTiming(fn func(Metrics)) Option {
	return func(s *Server) {
		s.enableTiming = true
		s.onTiming = fn
	}
}

// WithLogger overrides the default stderr logger used by the server core
// and the access log.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *Server) { s.logger = logf }
}

// New builds a Server from cfg, registering no dynamic pages yet (use
// AddPage) and no default handler (falls back to static files under
// cfg.DocumentRoot, then 404, per §4.7).
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rawhttpd: invalid config: %w", err)
	}

	d := dispatch.New(0)
	d.DocumentRoot = cfg.DocumentRoot
	d.AllowStaticFiles = cfg.DocumentRoot != ""

	s := &Server{cfg: cfg, dispatch: d}
	for _, opt := range opts {
		opt(s)
	}

	var tlsCfg *tls.Config
	if s.tlsEnabled {
		built, err := tlsconfig.NewServerConfig(s.tlsProfile)
		if err != nil {
			return nil, fmt.Errorf("rawhttpd: tls setup: %w", err)
		}
		tlsCfg = built
	}

	var al *accesslog.AccessLog
	if cfg.LogFile != "" {
		al = accesslog.New(cfg.LogFile, cfg.LogRotate)
		if s.logger != nil {
			al.Logger = s.logger
		}
	}
	s.log = al

	srvCfg := server.DefaultConfig()
	srvCfg.Workers = cfg.Workers
	srvCfg.QueueSize = cfg.QueueSize
	srvCfg.BlockWhenFull = cfg.BlockWhenFull
	srvCfg.ReadTimeout = time.Duration(cfg.TimeoutRead) * time.Millisecond
	srvCfg.WriteTimeout = time.Duration(cfg.TimeoutWrite) * time.Millisecond
	srvCfg.RetriesRead = cfg.RetriesRead
	srvCfg.RetriesWrite = cfg.RetriesWrite
	srvCfg.AllowListPattern = s.allowList
	srvCfg.TLSConfig = tlsCfg
	if s.logger != nil {
		srvCfg.Logger = s.logger
	}

	h, err := server.NewHTTP(server.HTTPConfig{
		Server:       srvCfg,
		PostLimit:    constants.DefaultPostLimit,
		AccessLog:    al,
		Dispatcher:   d,
		EnableTiming: s.enableTiming,
		OnTiming:     s.onTiming,
	})
	if err != nil {
		return nil, err
	}
	s.http = h

	return s, nil
}

// AddPage registers a dynamic page at an exact URI (§4.7 dispatch order:
// dynamic pages take priority over static files and the default handler).
func (s *Server) AddPage(uri string, h Handler, attrs *Attributes) error {
	return s.dispatch.AddPage(Page{URI: uri, Handler: h, Attributes: attrs})
}

// SetDefaultHandler installs the handler run when no dynamic page matches
// and static file serving (if enabled) also misses.
func (s *Server) SetDefaultHandler(h Handler) { s.dispatch.DefaultHandler = h }

// ListenAndServe binds addr (falling back to cfg.Hostname:cfg.Port when
// addr is empty) and runs the accept loop until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", s.cfg.Hostname, s.cfg.Port)
	}
	return s.http.Start(addr)
}

// Shutdown signals the cooperative shutdown flag and closes the listener.
func (s *Server) Shutdown() {
	s.http.Shutdown()
	if s.log != nil {
		s.log.Close()
	}
}

// Counters exposes the server core's atomic performance counters.
func (s *Server) Counters() *Counters { return s.http.Counters() }

// Addr returns the bound listener address once ListenAndServe has begun
// accepting, or nil before that point.
func (s *Server) Addr() net.Addr { return s.http.Addr() }

// LoadConfig reads and validates the spec §6 flat key=value file.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyPrivilegedConfig applies the rootdir effect of cfg, gated on the
// process running as root, per spec §6: it changes the working directory to
// cfg.RootDir. cfg.Username is not applied; the process keeps its user id.
func ApplyPrivilegedConfig(cfg Config) error {
	if !config.PrivilegedFieldsApply(os.Getuid) {
		return nil
	}
	if cfg.RootDir != "" {
		if err := os.Chdir(cfg.RootDir); err != nil {
			return fmt.Errorf("rawhttpd: chdir to rootdir: %w", err)
		}
	}
	return nil
}
