package response

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/WhileEndless/go-rawhttpd/pkg/cookie"
)

func emit(t *testing.T, r *Response, isHead bool) string {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if _, err := Emit(w, r, isHead); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return buf.String()
}

func TestEmitMinimalResponse(t *testing.T) {
	r := &Response{Version: Version11, Status: 200}
	r.Add([]byte("hello"))

	out := emit(t, r, false)
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("missing status line: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Fatalf("expected auto-filled Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Fatalf("expected body after blank line: %q", out)
	}
}

func TestEmitSuppressesBodyOn204(t *testing.T) {
	r := &Response{Version: Version11, Status: 204}
	r.Add([]byte("should not appear"))

	out := emit(t, r, false)
	if strings.Contains(out, "should not appear") {
		t.Fatalf("204 must not emit a body: %q", out)
	}
}

func TestEmitSuppressesBodyOnHead(t *testing.T) {
	r := &Response{Version: Version11, Status: 200}
	r.Add([]byte("should not appear"))

	out := emit(t, r, true)
	if strings.Contains(out, "should not appear") {
		t.Fatalf("HEAD response must not emit a body: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 17\r\n") {
		t.Fatalf("HEAD response should still report Content-Length: %q", out)
	}
}

func TestEmitKeepsBodyOn404(t *testing.T) {
	// §9-fixed decision: every status other than 1xx/204/304/HEAD emits
	// its body, not just 200/404 as the original buggy behavior did.
	r := &Response{Version: Version11, Status: 404}
	r.Add([]byte("Not Found"))

	out := emit(t, r, false)
	if !strings.HasSuffix(out, "Not Found") {
		t.Fatalf("expected 404 body to be emitted: %q", out)
	}
}

func TestEmitHTTP10AddsImplicitKeepAlive(t *testing.T) {
	r := &Response{Version: Version10, Status: 200}
	r.SetPersistent(true)
	r.Add([]byte("ok"))

	out := emit(t, r, false)
	if !strings.Contains(out, "Connection: Keep-Alive\r\n") {
		t.Fatalf("expected implicit Keep-Alive header for persistent HTTP/1.0: %q", out)
	}
}

func TestEmitCookie(t *testing.T) {
	r := &Response{Version: Version11, Status: 200}
	r.AddCookie(cookie.Cookie{Name: "session", Value: "abc123"})

	out := emit(t, r, false)
	if !strings.Contains(out, "Set-Cookie: session=abc123;") {
		t.Fatalf("expected Set-Cookie header: %q", out)
	}
}

func TestResetClearsPersistentFlag(t *testing.T) {
	r := &Response{}
	r.SetPersistent(true)
	r.Reset()
	if r.Persistent() {
		t.Fatalf("Reset must clear the persistent flag")
	}
}

func TestIngestContentLengthRoundTrip(t *testing.T) {
	r := &Response{Version: Version11, Status: 200}
	r.Add([]byte("round trip"))
	wire := emit(t, r, false)

	got, err := Ingest(bufio.NewReader(strings.NewReader(wire)), 1<<20)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got.Status != 200 {
		t.Fatalf("Status = %d, want 200", got.Status)
	}
	rc, err := got.mem.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "round trip" {
		t.Fatalf("body = %q, want %q", body, "round trip")
	}
}

func TestIngestChunked(t *testing.T) {
	wire := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"

	got, err := Ingest(bufio.NewReader(strings.NewReader(wire)), 1<<20)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rc, err := got.mem.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "hello world" {
		t.Fatalf("body = %q, want %q", body, "hello world")
	}
}

func TestIngestBodylessStatus(t *testing.T) {
	wire := "HTTP/1.1 304 Not Modified\r\n\r\n"
	got, err := Ingest(bufio.NewReader(strings.NewReader(wire)), 1<<20)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got.kind != bodyNone {
		t.Fatalf("304 must not read a body")
	}
}
