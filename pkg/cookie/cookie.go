// Package cookie implements the Cookie field (C4): the legacy
// "name=value" grammar and the RFC 2109 "$Version"-prefixed grammar, plus
// Set-Cookie serialization for responses.
//
// Grounded on original_source/http/src/cookies.c: attribute extraction
// strips leading whitespace, the '=' separator, and the first '"', then
// copies through to the closing '"' — carried here as the literal
// algorithm for parseAttribute, not just the summarized grammar in spec
// §4.4.
package cookie

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-rawhttpd/pkg/errors"
)

// NoMaxAge is the "unset" sentinel for Cookie.MaxAge (§3).
const NoMaxAge = -1

// Cookie is the C4 data model.
type Cookie struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Comment string
	MaxAge  int // NoMaxAge when unset
	Secure  bool
	Version int // 0 legacy, 1 RFC2109
}

// ParseHeader parses a Cookie: request header value, tolerating an empty
// string (§4.4). Grammar is selected by the presence of "$Version".
func ParseHeader(value string) ([]Cookie, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.Contains(value, "$Version") {
		return parseRFC2109(value)
	}
	return parseLegacy(value)
}

func parseLegacy(value string) ([]Cookie, error) {
	var out []Cookie
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, errors.NewProtocolError("parse_cookie", 400, "missing '=' in legacy cookie")
		}
		out = append(out, Cookie{Name: strings.TrimSpace(name), Value: val, MaxAge: NoMaxAge})
	}
	return out, nil
}

func parseRFC2109(value string) ([]Cookie, error) {
	parts := strings.Split(value, ";")

	versionAttr, _, found := strings.Cut(parts[0], "=")
	if !found || strings.TrimSpace(versionAttr) != "$Version" {
		return nil, errors.NewProtocolError("parse_cookie", 400, "expected $Version first")
	}
	version, err := parseAttribute(parts[0])
	if err != nil {
		return nil, err
	}
	if version != "1" {
		return nil, errors.NewProtocolError("parse_cookie", 400, "RFC2109 $Version must be 1")
	}

	var out []Cookie
	var current *Cookie
	for _, part := range parts[1:] {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		key, _, _ := strings.Cut(trimmed, "=")
		key = strings.TrimSpace(key)

		switch {
		case strings.EqualFold(key, "$Path"):
			v, err := parseAttribute(trimmed)
			if err != nil {
				return nil, err
			}
			if current != nil {
				current.Path = v
			}
		case strings.EqualFold(key, "$Domain"):
			v, err := parseAttribute(trimmed)
			if err != nil {
				return nil, err
			}
			if current != nil {
				current.Domain = v
			}
		case strings.EqualFold(key, "$Secure"):
			v, err := parseAttribute(trimmed)
			if err != nil {
				return nil, err
			}
			if current != nil {
				current.Secure = v == "1"
			}
		default:
			name, val, ok := strings.Cut(trimmed, "=")
			if !ok {
				return nil, errors.NewProtocolError("parse_cookie", 400, "missing '=' in RFC2109 cookie pair")
			}
			val = strings.Trim(val, `"`)
			out = append(out, Cookie{Name: strings.TrimSpace(name), Value: val, Version: 1, MaxAge: NoMaxAge})
			current = &out[len(out)-1]
		}
	}
	return out, nil
}

// parseAttribute implements cookies.c's attribute-value extraction: strip
// whitespace, '=', and the first '"', then copy until the closing '"'.
// Unquoted values are accepted too (trimmed, nothing further to strip).
func parseAttribute(pair string) (string, error) {
	_, v, ok := strings.Cut(pair, "=")
	if !ok {
		return "", errors.NewProtocolError("parse_cookie", 400, "missing '=' in cookie attribute")
	}
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, `"`) {
		v = v[1:]
		end := strings.IndexByte(v, '"')
		if end < 0 {
			return "", errors.NewProtocolError("parse_cookie", 400, "unterminated quoted cookie attribute")
		}
		return v[:end], nil
	}
	return v, nil
}

// ParseSetCookie parses a Set-Cookie value of the shape SetCookieHeader
// produces — NAME=VALUE;Version=N[;Max-Age=N];Secure=N[;Domain=…]
// [;Comment=…][;Path=…] — the inverse the round-trip property needs:
// parsing a cookie emitted by the response serializer yields an equal
// cookie.
func ParseSetCookie(value string) (Cookie, error) {
	parts := splitOutsideQuotes(value)

	name, val, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok {
		return Cookie{}, errors.NewProtocolError("parse_set_cookie", 400, "missing '=' in Set-Cookie pair")
	}
	unquoted, err := unquote(val)
	if err != nil {
		return Cookie{}, err
	}
	c := Cookie{Name: strings.TrimSpace(name), Value: unquoted, MaxAge: NoMaxAge}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, av, _ := strings.Cut(part, "=")
		switch {
		case strings.EqualFold(key, "Version"):
			n, err := strconv.Atoi(av)
			if err != nil {
				return Cookie{}, errors.NewProtocolError("parse_set_cookie", 400, "malformed Version attribute")
			}
			c.Version = n
		case strings.EqualFold(key, "Max-Age"):
			n, err := strconv.Atoi(av)
			if err != nil {
				return Cookie{}, errors.NewProtocolError("parse_set_cookie", 400, "malformed Max-Age attribute")
			}
			c.MaxAge = n
		case strings.EqualFold(key, "Secure"):
			c.Secure = av == "1"
		case strings.EqualFold(key, "Domain"):
			c.Domain = av
		case strings.EqualFold(key, "Comment"):
			cv, err := unquote(av)
			if err != nil {
				return Cookie{}, err
			}
			c.Comment = cv
		case strings.EqualFold(key, "Path"):
			c.Path = av
		}
	}
	return c, nil
}

// splitOutsideQuotes splits on ';' except inside a single-quoted value,
// honoring \' escapes, so a quoted VALUE containing ';' survives intact.
func splitOutsideQuotes(s string) []string {
	var parts []string
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inQuote && ch == '\\' && i+1 < len(s):
			b.WriteByte(ch)
			i++
			b.WriteByte(s[i])
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == ';' && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	parts = append(parts, b.String())
	return parts
}

// unquote reverses quoteIfNeeded: strips the enclosing single quotes and
// unescapes \'. Unquoted input passes through untouched.
func unquote(s string) (string, error) {
	if !strings.HasPrefix(s, "'") {
		return s, nil
	}
	if len(s) < 2 || !strings.HasSuffix(s, "'") {
		return "", errors.NewProtocolError("parse_set_cookie", 400, "unterminated quoted cookie value")
	}
	return strings.ReplaceAll(s[1:len(s)-1], `\'`, `'`), nil
}

// SetCookieHeader renders a Set-Cookie value per §4.6: values containing
// non-alphanumeric non-underscore characters are single-quoted with
// embedded ' backslash-escaped.
func SetCookieHeader(c Cookie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, quoteIfNeeded(c.Value))
	fmt.Fprintf(&b, ";Version=%d", c.Version)
	if c.MaxAge != NoMaxAge {
		fmt.Fprintf(&b, ";Max-Age=%d", c.MaxAge)
	}
	secure := 0
	if c.Secure {
		secure = 1
	}
	fmt.Fprintf(&b, ";Secure=%d", secure)
	if c.Domain != "" {
		fmt.Fprintf(&b, ";Domain=%s", c.Domain)
	}
	if c.Comment != "" {
		fmt.Fprintf(&b, ";Comment=%s", quoteIfNeeded(c.Comment))
	}
	if c.Path != "" {
		fmt.Fprintf(&b, ";Path=%s", c.Path)
	}
	return b.String()
}

func isPlainToken(s string) bool {
	for _, r := range s {
		if !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func quoteIfNeeded(s string) string {
	if isPlainToken(s) {
		return s
	}
	escaped := strings.ReplaceAll(s, `'`, `\'`)
	return "'" + escaped + "'"
}
