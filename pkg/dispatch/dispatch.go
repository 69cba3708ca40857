// Package dispatch implements the request-to-handler dispatcher (C7): exact
// URI lookup over the dynamic-page vector, an attribute gate, static file
// fallback under a document root, and a default handler, per spec §4.7.
//
// Grounded on spec §4.7's pseudocode directly, on shockwave server.go's
// Handler shape (concrete request/response types rather than an io.Writer
// interface, to avoid a layer of indirection per request), and on
// original_source/http/src/http_server.c for the exact static-file safety
// checks (".." rejection, docroot sentinel values).
package dispatch

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
	"github.com/WhileEndless/go-rawhttpd/pkg/request"
	"github.com/WhileEndless/go-rawhttpd/pkg/response"
)

// Handler produces a response for a parsed request.
type Handler func(req *request.Request, resp *response.Response)

// Attributes describes a page's media type, language, charset and encoding
// (§3 "Dynamic page"). Dispatch gates only on MediaType, answering 406 when
// the request's Accept does not match it; Language, Charset and Encoding
// are carried but not checked.
type Attributes struct {
	MediaType string
	Language  string
	Charset   string
	Encoding  string
}

// Page is one entry in the dynamic-page vector (§3).
type Page struct {
	URI        string
	Handler    Handler
	Attributes *Attributes
}

// Dispatcher holds the configuration the §4.7 service loop consults: the
// page vector (written only during configuration, read-only while serving,
// per §5), the default handler, and the static-file policy.
type Dispatcher struct {
	mu       sync.RWMutex
	pages    map[string]Page
	maxPages int

	DefaultHandler    Handler
	DefaultAttributes *Attributes

	DocumentRoot     string
	AllowStaticFiles bool

	Logger func(format string, args ...any)
}

// New creates a Dispatcher whose page vector is capped at maxPages, per §3
// "list of dynamic pages (≤ configured max)".
func New(maxPages int) *Dispatcher {
	if maxPages <= 0 {
		maxPages = 256
	}
	return &Dispatcher{pages: make(map[string]Page), maxPages: maxPages}
}

// AddPage registers a dynamic page at an exact URI. Configuration-time
// only; never called while the dispatcher is serving requests (§5).
func (d *Dispatcher) AddPage(p Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pages[p.URI]; !exists && len(d.pages) >= d.maxPages {
		return errors.NewApplicationError("add_page", "page vector is full", nil)
	}
	d.pages[p.URI] = p
	return nil
}

func (d *Dispatcher) lookup(uri string) (Page, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.pages[uri]
	return p, ok
}

// Dispatch runs the §4.7 resolution: exact-URI lookup over the dynamic-page
// vector, then static-file fallback, then the default handler, then 404.
// It returns the HTTP status actually produced, for the caller's access-log
// entry.
func (d *Dispatcher) Dispatch(req *request.Request, resp *response.Response) int {
	if page, ok := d.lookup(req.URI); ok {
		if page.Attributes != nil && page.Attributes.MediaType != "" && !req.Headers.AcceptsMediaType(page.Attributes.MediaType) {
			return d.notAcceptable(resp)
		}
		page.Handler(req, resp)
		return resp.Status
	}

	if d.AllowStaticFiles {
		if status, handled := d.serveStaticFile(req, resp); handled {
			return status
		}
	}

	if d.DefaultHandler != nil {
		d.DefaultHandler(req, resp)
		return resp.Status
	}

	return d.notFound(resp)
}

func (d *Dispatcher) notFound(resp *response.Response) int {
	resp.Status = 404
	resp.Version = response.Version11
	resp.General.SetConnection("close")
	resp.Add([]byte("Not Found"))
	return 404
}

func (d *Dispatcher) notAcceptable(resp *response.Response) int {
	resp.Status = 406
	resp.Add([]byte("Not Acceptable"))
	return 406
}

// serveStaticFile implements §4.7's "Static file policy": reject URIs
// containing "..", require a usable document root, append "/index.html" to
// directory hits, and refuse anything that isn't a regular file with 400.
// The bool return reports whether the static-file path actually produced a
// response (true) or should fall through to the default handler (false,
// only when static serving is structurally impossible — an empty/invalid
// docroot).
func (d *Dispatcher) serveStaticFile(req *request.Request, resp *response.Response) (int, bool) {
	if strings.Contains(req.URI, "..") {
		resp.Status = 400
		resp.Add([]byte("Bad Request"))
		return 400, true
	}

	root := d.DocumentRoot
	if root == "" || root == "." || root == ".." || strings.Contains(root, "..") {
		return 0, false
	}

	full := filepath.Join(root, filepath.FromSlash(req.URI))
	info, err := os.Stat(full)
	if err != nil {
		return d.notFound(resp), true
	}
	if info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
		if err != nil {
			return d.notFound(resp), true
		}
	}
	if !info.Mode().IsRegular() {
		resp.Status = 400
		resp.Add([]byte("Bad Request"))
		return 400, true
	}

	resp.Status = 200
	resp.Entity.SetContentType(mimeTypeFor(full))
	resp.Entity.SetContentLength(info.Size())
	resp.SetFileBody(full)
	return 200, true
}

// mimeTypeFor looks up a file's media type by extension. §1 names mime-type
// lookup an out-of-scope collaborator; the standard library's mime package
// is the idiomatic Go stand-in (it is literally the same concern the spec
// externalizes, not a hand-rolled table).
func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
