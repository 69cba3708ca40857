package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WhileEndless/go-rawhttpd/pkg/request"
	"github.com/WhileEndless/go-rawhttpd/pkg/response"
)

func TestDispatchExactMatch(t *testing.T) {
	d := New(8)
	d.AddPage(Page{URI: "/", Handler: func(req *request.Request, resp *response.Response) {
		resp.Status = 200
		resp.Add([]byte("ok"))
	}})

	var req request.Request
	req.URI = "/"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
}

func TestDispatchAttributeGate(t *testing.T) {
	d := New(8)
	d.AddPage(Page{
		URI:        "/json",
		Handler:    func(req *request.Request, resp *response.Response) { resp.Status = 200 },
		Attributes: &Attributes{MediaType: "application/json"},
	})

	var req request.Request
	req.URI = "/json"
	req.Headers.SetAccept("text/html")
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 406 {
		t.Fatalf("status = %d, want 406", status)
	}
}

func TestDispatchDefaultHandler(t *testing.T) {
	d := New(8)
	d.DefaultHandler = func(req *request.Request, resp *response.Response) {
		resp.Status = 200
		resp.Add([]byte("default"))
	}

	var req request.Request
	req.URI = "/missing"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
}

func TestDispatch404WhenNothingMatches(t *testing.T) {
	d := New(8)
	var req request.Request
	req.URI = "/nope"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 404 {
		t.Fatalf("status = %d, want 404", status)
	}
	if v, ok := resp.General.GetConnection(); !ok || v != "close" {
		t.Fatalf("expected Connection: close on 404")
	}
}

// TestStaticFileServing is scenario S7.
func TestStaticFileServing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := New(8)
	d.AllowStaticFiles = true
	d.DocumentRoot = dir

	var req request.Request
	req.URI = "/a.txt"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if cl, ok := resp.Entity.GetContentLength(); !ok || cl != 2 {
		t.Fatalf("Content-Length = %v, want 2", cl)
	}
}

// TestStaticDirectoryIndex is scenario S8.
func TestStaticDirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("root"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := New(8)
	d.AllowStaticFiles = true
	d.DocumentRoot = dir

	var req request.Request
	req.URI = "/"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
}

func TestStaticFileRejectsDotDot(t *testing.T) {
	dir := t.TempDir()
	d := New(8)
	d.AllowStaticFiles = true
	d.DocumentRoot = dir

	var req request.Request
	req.URI = "/../etc/passwd"
	var resp response.Response
	status := d.Dispatch(&req, &resp)
	if status != 400 {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestAddPageEnforcesMaxPages(t *testing.T) {
	d := New(1)
	if err := d.AddPage(Page{URI: "/a"}); err != nil {
		t.Fatalf("first AddPage: %v", err)
	}
	if err := d.AddPage(Page{URI: "/b"}); err == nil {
		t.Fatalf("expected second AddPage to fail once at capacity")
	}
}
