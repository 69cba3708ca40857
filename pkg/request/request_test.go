package request

import (
	"bufio"
	"strconv"
	"strings"
	"testing"

	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
)

func TestParseMinimalRequest(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.0\r\n\r\n"))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Method != GET || r.URI != "/" || r.Version != Version10 {
		t.Fatalf("unexpected request: %+v", r)
	}
}

// TestQueryParameters is scenario S3.
func TestQueryParameters(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("GET /page?name=Jo%20e&age=30 HTTP/1.1\r\nHost: x\r\n\r\n"))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.URI != "/page" {
		t.Fatalf("URI = %q, want /page", r.URI)
	}
	if r.Params["name"] != "Jo e" || r.Params["age"] != "30" {
		t.Fatalf("Params = %+v", r.Params)
	}
	if !r.Persistent {
		t.Fatalf("expected HTTP/1.1 to be persistent")
	}
}

func TestExplicitCloseOverridesHTTP11Default(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Persistent {
		t.Fatalf("Connection: close must override the HTTP/1.1 persistent default")
	}
}

func TestKeepAliveGrantsHTTP10Persistence(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n"))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !r.Persistent {
		t.Fatalf("HTTP/1.0 with Connection: Keep-Alive must be persistent")
	}
}

// TestPostForm is scenario S4.
func TestPostForm(t *testing.T) {
	body := "a=1&name=A%2BB%20C"
	raw := "POST /f HTTP/1.1\r\nHost: x\r\nContent-Length: " + strconv.Itoa(len(body)) +
		"\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\n" + body
	var r Request
	br := bufio.NewReader(strings.NewReader(raw))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fields, err := r.ParseForm()
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("field count = %d, want 2", len(fields))
	}
	if fields["a"] != "1" || fields["name"] != "A+B C" {
		t.Fatalf("fields = %+v", fields)
	}
}

// TestOversizeURIRejected is scenario S5.
func TestOversizeURIRejected(t *testing.T) {
	longPath := "/" + strings.Repeat("a", MaxURILen+1)
	var r Request
	br := bufio.NewReader(strings.NewReader("GET " + longPath + " HTTP/1.1\r\nHost: x\r\n\r\n"))
	err := Parse(br, &r, 1024)
	if err == nil {
		t.Fatalf("expected 414 error")
	}
	if errors.StatusOf(err) != 414 {
		t.Fatalf("status = %d, want 414", errors.StatusOf(err))
	}
}

// TestMissingContentLengthRejected is scenario S6.
func TestMissingContentLengthRejected(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("POST /f HTTP/1.1\r\nHost: x\r\n\r\n"))
	err := Parse(br, &r, 1024)
	if err == nil {
		t.Fatalf("expected 411 error")
	}
	if errors.StatusOf(err) != 411 {
		t.Fatalf("status = %d, want 411", errors.StatusOf(err))
	}
}

func TestContentLengthOverPostLimitRejected(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("POST /f HTTP/1.1\r\nHost: x\r\nContent-Length: 2000\r\n\r\n"))
	err := Parse(br, &r, 100)
	if err == nil {
		t.Fatalf("expected 400 error")
	}
	if errors.StatusOf(err) != 400 {
		t.Fatalf("status = %d, want 400", errors.StatusOf(err))
	}
}

// TestURIParamDecodeProperty is §8 invariant 4: RFC1738-safe values survive
// encode/decode through the query string, and '+' decodes to space in form
// fields but not in query params.
func TestURIParamDecodeProperty(t *testing.T) {
	var r Request
	br := bufio.NewReader(strings.NewReader("GET /x?k=a%2Bb HTTP/1.1\r\nHost: x\r\n\r\n"))
	if err := Parse(br, &r, 1024); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Params["k"] != "a+b" {
		t.Fatalf("query param '+' should not decode to space, got %q", r.Params["k"])
	}

	decoded, err := DecodeFormValue("a%2Bb")
	if err != nil {
		t.Fatalf("DecodeFormValue: %v", err)
	}
	if decoded != "a+b" {
		t.Fatalf("DecodeFormValue(a%%2Bb) = %q, want a+b", decoded)
	}
	decoded2, err := DecodeFormValue("a+b")
	if err != nil {
		t.Fatalf("DecodeFormValue: %v", err)
	}
	if decoded2 != "a b" {
		t.Fatalf("DecodeFormValue(a+b) = %q, want \"a b\"", decoded2)
	}
}
