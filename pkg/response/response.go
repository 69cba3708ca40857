// Package response implements the HTTP response model (C6): status line
// and header emission, cookie emission, the body variants, and
// chunked/length-delimited response ingest for test and client-like
// usage.
//
// Grounded on original_source/http/src/response.c for the emission order
// and the 8 KiB file-streaming chunk size, and on badu-http's
// chunk_writer.go for the ingest decision tree (Content-Length vs.
// Transfer-Encoding: chunked vs. read-until-close).
package response

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WhileEndless/go-rawhttpd/pkg/buffer"
	"github.com/WhileEndless/go-rawhttpd/pkg/constants"
	"github.com/WhileEndless/go-rawhttpd/pkg/cookie"
	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
	"github.com/WhileEndless/go-rawhttpd/pkg/header"
)

// FileStreamChunkSize is the chunk size response.c uses when streaming a
// file body from disk, each chunk flushed explicitly to avoid retry
// exhaustion on large files (§4.6).
const FileStreamChunkSize = constants.FileStreamChunkSize

// bodyKind distinguishes the body variants (§4.6): no body, a body held in
// memory, and a file streamed from disk. There is no variant that emits a
// caller-owned byte buffer without copying it.
type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyMemory
	bodyFile
)

// Response is the C6 data model.
type Response struct {
	Version Version
	Status  int

	General  header.General
	Entity   header.Entity
	Headers  header.Response
	Cookies  []cookie.Cookie

	kind       bodyKind
	mem        buffer.Buffer
	filePath   string
	persistent bool
}

// Version mirrors request.Version for the response side.
type Version string

const (
	Version10 Version = "1.0"
	Version11 Version = "1.1"
)

// Reset clears a Response for reuse from a pool.
func (r *Response) Reset() {
	r.Version = Version11
	r.Status = 0
	r.General = header.General{}
	r.Entity = header.Entity{}
	r.Headers = header.Response{}
	r.Cookies = nil
	r.kind = bodyNone
	r.mem.Reset()
	r.filePath = ""
	r.persistent = false
}

// Add appends raw bytes to the in-memory body, switching the response
// into the memory-body variant if it is not already.
func (r *Response) Add(p []byte) {
	r.kind = bodyMemory
	r.mem.Write(p)
}

// Printf is an HTML-helper convenience matching the teacher's add/printf
// body-building pair.
func (r *Response) Printf(format string, args ...any) {
	r.Add([]byte(fmt.Sprintf(format, args...)))
}

// SetFileBody switches the response to the file-body variant (§4.6):
// streamed from disk in FileStreamChunkSize chunks at emission time.
func (r *Response) SetFileBody(path string) {
	r.kind = bodyFile
	r.filePath = path
}

// AddCookie appends an outgoing cookie.
func (r *Response) AddCookie(c cookie.Cookie) { r.Cookies = append(r.Cookies, c) }

// suppressesBody reports whether status forbids a body per the §9-fixed
// rule: only 1xx, 204, 304, and HEAD responses suppress the body; every
// other entity-bearing status emits it (the original's "only 200 and
// 404 get a body" behavior was a documented bug, not intentional).
func suppressesBody(status int, isHead bool) bool {
	if isHead {
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}

// Emit writes the status line, header blocks, cookies, blank line, and
// (when permitted) the body to w, in the §4.6 emission order. isHead
// suppresses body emission for HEAD requests regardless of body variant.
func Emit(w *bufio.Writer, r *Response, isHead bool) (int64, error) {
	if _, ok := r.Entity.GetContentLength(); !ok && r.kind == bodyMemory {
		r.Entity.SetContentLength(r.mem.Size())
	}
	if _, ok := r.General.GetDate(); !ok {
		r.General.SetDate(time.Now())
	}
	if _, ok := r.General.GetConnection(); !ok && r.Persistent() && r.Version == Version10 {
		r.General.SetConnection("Keep-Alive")
	}

	statusLine := fmt.Sprintf("HTTP/%s %d %s\r\n", r.Version, r.Status, StatusText(r.Status))
	if _, err := w.WriteString(statusLine); err != nil {
		return 0, errors.NewNetworkError("emit_response", err)
	}

	writeGeneralHeaders(w, &r.General)
	writeEntityHeaders(w, &r.Entity)
	writeResponseHeaders(w, &r.Headers)
	for _, c := range r.Cookies {
		fmt.Fprintf(w, "Set-Cookie: %s\r\n", cookie.SetCookieHeader(c))
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return 0, errors.NewNetworkError("emit_response", err)
	}

	if suppressesBody(r.Status, isHead) {
		if err := w.Flush(); err != nil {
			return 0, errors.NewNetworkError("emit_response", err)
		}
		return int64(len(statusLine)), nil
	}

	written, err := writeBody(w, r)
	if err != nil {
		return written, err
	}
	if err := w.Flush(); err != nil {
		return written, errors.NewNetworkError("emit_response", err)
	}
	return written, nil
}

func writeBody(w *bufio.Writer, r *Response) (int64, error) {
	switch r.kind {
	case bodyMemory:
		rc, err := r.mem.Reader()
		if err != nil {
			return 0, errors.NewOSError("emit_body_open", err)
		}
		defer rc.Close()
		n, err := io.Copy(w, rc)
		if err != nil {
			return n, errors.NewNetworkError("emit_body", err)
		}
		return n, nil
	case bodyFile:
		f, err := os.Open(r.filePath)
		if err != nil {
			return 0, errors.NewOSError("emit_body_open", err)
		}
		defer f.Close()

		var total int64
		buf := make([]byte, FileStreamChunkSize)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return total, errors.NewNetworkError("emit_body", werr)
				}
				if err := w.Flush(); err != nil {
					return total, errors.NewNetworkError("emit_body", err)
				}
				total += int64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return total, errors.NewOSError("emit_body_read", rerr)
			}
		}
		return total, nil
	default:
		return 0, nil
	}
}

func writeGeneralHeaders(w *bufio.Writer, g *header.General) {
	if v, ok := g.GetConnection(); ok {
		fmt.Fprintf(w, "Connection: %s\r\n", v)
	}
	if t, ok := g.GetDate(); ok {
		fmt.Fprintf(w, "Date: %s\r\n", header.FormatDate(t))
	}
	if g.CacheControl.IsSet() {
		fmt.Fprintf(w, "Cache-Control: %s\r\n", g.CacheControl.String())
	}
	if g.Pragma != "" {
		fmt.Fprintf(w, "Pragma: %s\r\n", g.Pragma)
	}
	if g.Trailer != "" {
		fmt.Fprintf(w, "Trailer: %s\r\n", g.Trailer)
	}
	if v, ok := g.GetTransferEncoding(); ok {
		fmt.Fprintf(w, "Transfer-Encoding: %s\r\n", v)
	}
	if g.Upgrade != "" {
		fmt.Fprintf(w, "Upgrade: %s\r\n", g.Upgrade)
	}
	if g.Via != "" {
		fmt.Fprintf(w, "Via: %s\r\n", g.Via)
	}
	if g.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\r\n", g.Warning)
	}
}

func writeEntityHeaders(w *bufio.Writer, e *header.Entity) {
	if ct, ok := e.GetContentType(); ok {
		fmt.Fprintf(w, "Content-Type: %s\r\n", ct)
	} else {
		fmt.Fprintf(w, "Content-Type: text/html\r\n")
	}
	if cl, ok := e.GetContentLength(); ok {
		fmt.Fprintf(w, "Content-Length: %d\r\n", cl)
	}
	if e.Allow != "" {
		fmt.Fprintf(w, "Allow: %s\r\n", e.Allow)
	}
	if e.ContentEncoding != "" {
		fmt.Fprintf(w, "Content-Encoding: %s\r\n", e.ContentEncoding)
	}
	if e.ContentLanguage != "" {
		fmt.Fprintf(w, "Content-Language: %s\r\n", e.ContentLanguage)
	}
	if e.ContentLocation != "" {
		fmt.Fprintf(w, "Content-Location: %s\r\n", e.ContentLocation)
	}
	if e.ContentMD5 != "" {
		fmt.Fprintf(w, "Content-MD5: %s\r\n", e.ContentMD5)
	}
	if e.ContentRange != "" {
		fmt.Fprintf(w, "Content-Range: %s\r\n", e.ContentRange)
	}
	if !e.Expires.IsZero() {
		fmt.Fprintf(w, "Expires: %s\r\n", header.FormatDate(e.Expires))
	}
	if !e.LastModified.IsZero() {
		fmt.Fprintf(w, "Last-Modified: %s\r\n", header.FormatDate(e.LastModified))
	}
}

func writeResponseHeaders(w *bufio.Writer, h *header.Response) {
	if h.AcceptRanges != "" {
		fmt.Fprintf(w, "Accept-Ranges: %s\r\n", h.AcceptRanges)
	}
	if h.Age != 0 {
		fmt.Fprintf(w, "Age: %d\r\n", h.Age)
	}
	if etag, ok := h.GetETag(); ok {
		fmt.Fprintf(w, "ETag: %s\r\n", etag)
	}
	if loc, ok := h.GetLocation(); ok {
		fmt.Fprintf(w, "Location: %s\r\n", loc)
	}
	if h.ProxyAuthenticate != "" {
		fmt.Fprintf(w, "Proxy-Authenticate: %s\r\n", h.ProxyAuthenticate)
	}
	if h.RetryAfter != "" {
		fmt.Fprintf(w, "Retry-After: %s\r\n", h.RetryAfter)
	}
	if h.Server != "" {
		fmt.Fprintf(w, "Server: %s\r\n", h.Server)
	}
	if h.Vary != "" {
		fmt.Fprintf(w, "Vary: %s\r\n", h.Vary)
	}
	if h.WWWAuthenticate != "" {
		fmt.Fprintf(w, "WWW-Authenticate: %s\r\n", h.WWWAuthenticate)
	}
}

// Persistent reports whether the underlying connection is persistent, set
// by the HTTP service loop since Response itself has no connection reference.
func (r *Response) Persistent() bool { return r.persistent }

// SetPersistent records whether the underlying connection is persistent,
// used only to decide the HTTP/1.0 implicit Connection: Keep-Alive rule.
func (r *Response) SetPersistent(v bool) { r.persistent = v }

// StatusText returns the reason phrase for status, falling back to a
// generic phrase for codes not in the table.
func StatusText(status int) string {
	if text, ok := statusText[status]; ok {
		return text
	}
	return "Status"
}

var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	406: "Not Acceptable",
	411: "Length Required",
	414: "Request-URI Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}

// ---- Ingest (client-like usage, §4.6 "Response ingest") ----

// Ingest reads a status line, headers, and body from br per the response
// ingest rules: literal "HTTP/1.0 "/"HTTP/1.1 " prefix, three-digit code;
// 204/301/302/304 are body-less; Content-Length is honored up to maxBody;
// Transfer-Encoding: chunked is decoded; otherwise read-until-close up to
// maxBody.
func Ingest(br *bufio.Reader, maxBody int64) (*Response, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	r := &Response{}
	if err := parseStatusLine(line, r); err != nil {
		return nil, err
	}

	for {
		hline, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if hline == "" {
			break
		}
		name, value, ok := strings.Cut(hline, ":")
		if !ok {
			continue
		}
		applyIngestHeader(r, strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value))
	}

	switch r.Status {
	case 204, 301, 302, 304:
		return r, nil
	}

	if cl, ok := r.Entity.GetContentLength(); ok {
		if cl > maxBody {
			return nil, errors.NewProtocolError("ingest_response", 400, "Content-Length exceeds maximum")
		}
		body := make([]byte, cl)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, errors.NewNetworkError("ingest_response", err)
		}
		r.Add(body)
		return r, nil
	}

	if te, ok := r.General.GetTransferEncoding(); ok && strings.EqualFold(te, "chunked") {
		body, err := readChunked(br, maxBody)
		if err != nil {
			return nil, err
		}
		r.Add(body)
		return r, nil
	}

	body, err := readUntilClose(br, maxBody)
	if err != nil {
		return nil, err
	}
	r.Add(body)
	return r, nil
}

func parseStatusLine(line string, r *Response) error {
	var version Version
	switch {
	case strings.HasPrefix(line, "HTTP/1.0 "):
		version = Version10
		line = line[len("HTTP/1.0 "):]
	case strings.HasPrefix(line, "HTTP/1.1 "):
		version = Version11
		line = line[len("HTTP/1.1 "):]
	default:
		return errors.NewProtocolError("status_line", 400, "missing HTTP version prefix")
	}
	if len(line) < 3 {
		return errors.NewProtocolError("status_line", 400, "malformed status code")
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return errors.NewProtocolError("status_line", 400, "malformed status code")
	}
	r.Version = version
	r.Status = code
	return nil
}

func applyIngestHeader(r *Response, name, value string) {
	switch name {
	case "content-length":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			r.Entity.SetContentLength(n)
		}
	case "content-type":
		r.Entity.SetContentType(value)
	case "transfer-encoding":
		r.General.SetTransferEncoding(value)
	case "connection":
		r.General.SetConnection(value)
	case "date":
		if t, err := header.ParseDate(value); err == nil {
			r.General.SetDate(t)
		}
	}
}

// readChunked implements §8 invariant 5: hex(len)\r\n<bytes>\r\n…0\r\n\r\n,
// tolerating one blank pre-chunk line adjacent to an empty chunk.
func readChunked(br *bufio.Reader, maxBody int64) ([]byte, error) {
	var out []byte
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if line == "" {
			// a stray pre-chunk blank line is skipped once
			line, err = readLine(br)
			if err != nil {
				return nil, err
			}
		}
		size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		if err != nil {
			return nil, errors.NewProtocolError("chunked_ingest", 400, "malformed chunk length")
		}
		if size == 0 {
			if _, err := readLine(br); err != nil {
				return nil, err
			}
			break
		}
		if int64(len(out))+size > maxBody {
			return nil, errors.NewApplicationError("chunked_ingest", "chunked body exceeds maximum", nil)
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, errors.NewNetworkError("chunked_ingest", err)
		}
		out = append(out, chunk...)
		if _, err := readLine(br); err != nil { // trailing CRLF after chunk data
			return nil, err
		}
	}
	return out, nil
}

func readUntilClose(br *bufio.Reader, maxBody int64) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for int64(len(out)) < maxBody {
		n, err := br.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewNetworkError("read_until_close", err)
		}
	}
	return out, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", errors.NewNetworkError("read_line", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
