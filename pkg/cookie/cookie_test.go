package cookie

import "testing"

func TestParseLegacyCookie(t *testing.T) {
	got, err := ParseHeader("session=abc123; theme=dark")
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if len(got) != 2 || got[0].Name != "session" || got[0].Value != "abc123" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
	if got[1].Name != "theme" || got[1].Value != "dark" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestParseLegacyCookieMissingEquals(t *testing.T) {
	if _, err := ParseHeader("sessionabc123"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestParseRFC2109Cookie(t *testing.T) {
	got, err := ParseHeader(`$Version="1"; session="abc123"; $Path="/app"; $Secure="1"`)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(got))
	}
	c := got[0]
	if c.Name != "session" || c.Value != "abc123" || c.Path != "/app" || !c.Secure || c.Version != 1 {
		t.Fatalf("unexpected cookie: %+v", c)
	}
}

func TestParseRFC2109RequiresVersionFirst(t *testing.T) {
	if _, err := ParseHeader(`session="abc"; $Version="1"`); err == nil {
		t.Fatalf("expected error when $Version is not first")
	}
}

func TestEmptyCookieHeaderIsTolerated(t *testing.T) {
	got, err := ParseHeader("")
	if err != nil {
		t.Fatalf("ParseHeader on empty: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for empty header, got %+v", got)
	}
}

// TestCookieIdempotence is the round-trip property: parsing a cookie
// emitted by the response serializer yields a cookie equal to the
// original, and re-rendering it reproduces the same wire form.
func TestCookieIdempotence(t *testing.T) {
	cases := []Cookie{
		{Name: "session", Value: "abc123xyz", Version: 1, MaxAge: 3600, Secure: true, Path: "/app"},
		{Name: "greeting", Value: "hello; o'clock", Version: 0, MaxAge: NoMaxAge, Domain: "example.com", Comment: "plain text"},
	}
	for _, c := range cases {
		rendered := SetCookieHeader(c)
		parsed, err := ParseSetCookie(rendered)
		if err != nil {
			t.Fatalf("ParseSetCookie(%q): %v", rendered, err)
		}
		if parsed != c {
			t.Fatalf("round trip mismatch: got %+v, want %+v (wire %q)", parsed, c, rendered)
		}
		if again := SetCookieHeader(parsed); again != rendered {
			t.Fatalf("re-rendering mismatch: %q != %q", again, rendered)
		}
	}
}

func TestParseSetCookieRejectsUnterminatedQuote(t *testing.T) {
	if _, err := ParseSetCookie("n='open;Version=0;Secure=0"); err == nil {
		t.Fatalf("expected error for unterminated quoted value")
	}
}

func TestSetCookieQuotesNonTokenValues(t *testing.T) {
	c := Cookie{Name: "greeting", Value: "hello, world", Version: 0, MaxAge: NoMaxAge}
	got := SetCookieHeader(c)
	want := "greeting='hello, world';Version=0;Secure=0"
	if got != want {
		t.Fatalf("SetCookieHeader = %q, want %q", got, want)
	}
}

func TestSetCookieEscapesEmbeddedQuote(t *testing.T) {
	c := Cookie{Name: "n", Value: "o'clock", MaxAge: NoMaxAge}
	got := SetCookieHeader(c)
	want := `n='o\'clock';Version=0;Secure=0`
	if got != want {
		t.Fatalf("SetCookieHeader = %q, want %q", got, want)
	}
}
