// Package header implements the four header field sets (C3): a
// general-header shared by requests and responses, an entity-header
// describing the body, a request-header, and a response-header. Each is a
// struct of typed values guarded by a presence bitmap, exactly as spec §3
// describes, rather than a generic map[string][]string — callers ask "is
// Content-Length set?" the same way the C original's field-presence bitmap
// did, and every getter returns (value, ok) per the §9 "lenient API" design
// decision, never asserting presence.
package header

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// presence bits, one per optional field, shared across the three
// non-general sets via per-struct bitmaps (a Go word easily covers each
// set's field count, same as the C original's single machine word).
type bits uint64

func (b *bits) set(flag bits)      { *b |= flag }
func (b bits) has(flag bits) bool  { return b&flag != 0 }

// ValidFieldName/ValidFieldValue expose RFC 7230 token/value validation,
// the same family of helper badu-http used (via the older
// golang.org/x/net/lex/httplex) to reject malformed header lines before
// they reach the presence-bitmap setters.
func ValidFieldName(name string) bool   { return httpguts.ValidHeaderFieldName(name) }
func ValidFieldValue(value string) bool { return httpguts.ValidHeaderFieldValue(value) }

// ---- Cache-Control ----

const (
	ccNoCache bits = 1 << iota
	ccNoStore
	ccMaxAge
	ccMaxStale
	ccMinFresh
	ccNoTransform
	ccOnlyIfCached
	ccPublic
	ccPrivate
	ccMustRevalidate
	ccProxyRevalidate
	ccSMaxAge
)

// CacheControl composes the Cache-Control sub-directives into one bitmap,
// per §3's "General-header" Cache-Control sub-flags.
type CacheControl struct {
	present  bits
	MaxAge   int
	MaxStale int // -1 means "no value given" (bare max-stale)
	MinFresh int
	SMaxAge  int
}

func (c *CacheControl) SetNoCache()                { c.present.set(ccNoCache) }
func (c *CacheControl) SetNoStore()                { c.present.set(ccNoStore) }
func (c *CacheControl) SetNoTransform()             { c.present.set(ccNoTransform) }
func (c *CacheControl) SetOnlyIfCached()            { c.present.set(ccOnlyIfCached) }
func (c *CacheControl) SetPublic()                  { c.present.set(ccPublic) }
func (c *CacheControl) SetPrivate()                 { c.present.set(ccPrivate) }
func (c *CacheControl) SetMustRevalidate()          { c.present.set(ccMustRevalidate) }
func (c *CacheControl) SetProxyRevalidate()         { c.present.set(ccProxyRevalidate) }
func (c *CacheControl) SetMaxAge(seconds int)       { c.present.set(ccMaxAge); c.MaxAge = seconds }
func (c *CacheControl) SetMaxStale(seconds int)     { c.present.set(ccMaxStale); c.MaxStale = seconds }
func (c *CacheControl) SetMinFresh(seconds int)     { c.present.set(ccMinFresh); c.MinFresh = seconds }
func (c *CacheControl) SetSMaxAge(seconds int)      { c.present.set(ccSMaxAge); c.SMaxAge = seconds }

func (c *CacheControl) IsSet() bool { return c.present != 0 }

// String renders the directives in a fixed order with ", " separators and
// no trailing comma, per §4.3.
func (c *CacheControl) String() string {
	var parts []string
	if c.present.has(ccNoCache) {
		parts = append(parts, "no-cache")
	}
	if c.present.has(ccNoStore) {
		parts = append(parts, "no-store")
	}
	if c.present.has(ccMaxAge) {
		parts = append(parts, fmt.Sprintf("max-age=%d", c.MaxAge))
	}
	if c.present.has(ccMaxStale) {
		if c.MaxStale < 0 {
			parts = append(parts, "max-stale")
		} else {
			parts = append(parts, fmt.Sprintf("max-stale=%d", c.MaxStale))
		}
	}
	if c.present.has(ccMinFresh) {
		parts = append(parts, fmt.Sprintf("min-fresh=%d", c.MinFresh))
	}
	if c.present.has(ccNoTransform) {
		parts = append(parts, "no-transform")
	}
	if c.present.has(ccOnlyIfCached) {
		parts = append(parts, "only-if-cached")
	}
	if c.present.has(ccPublic) {
		parts = append(parts, "public")
	}
	if c.present.has(ccPrivate) {
		parts = append(parts, "private")
	}
	if c.present.has(ccMustRevalidate) {
		parts = append(parts, "must-revalidate")
	}
	if c.present.has(ccProxyRevalidate) {
		parts = append(parts, "proxy-revalidate")
	}
	if c.present.has(ccSMaxAge) {
		parts = append(parts, fmt.Sprintf("s-maxage=%d", c.SMaxAge))
	}
	return strings.Join(parts, ", ")
}

// ParseCacheControl tokenizes a Cache-Control value on ',' and fills in a
// CacheControl, silently ignoring unrecognized directives (§4.3's
// "unknown fields are silently ignored" applies equally to directives).
func ParseCacheControl(value string) CacheControl {
	var cc CacheControl
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, arg, hasArg := strings.Cut(tok, "=")
		name = strings.TrimSpace(strings.ToLower(name))
		arg = strings.TrimSpace(arg)
		switch name {
		case "no-cache":
			cc.SetNoCache()
		case "no-store":
			cc.SetNoStore()
		case "no-transform":
			cc.SetNoTransform()
		case "only-if-cached":
			cc.SetOnlyIfCached()
		case "public":
			cc.SetPublic()
		case "private":
			cc.SetPrivate()
		case "must-revalidate":
			cc.SetMustRevalidate()
		case "proxy-revalidate":
			cc.SetProxyRevalidate()
		case "max-age":
			if n, err := strconv.Atoi(arg); err == nil {
				cc.SetMaxAge(n)
			}
		case "max-stale":
			if !hasArg {
				cc.SetMaxStale(-1)
			} else if n, err := strconv.Atoi(arg); err == nil {
				cc.SetMaxStale(n)
			}
		case "min-fresh":
			if n, err := strconv.Atoi(arg); err == nil {
				cc.SetMinFresh(n)
			}
		case "s-maxage":
			if n, err := strconv.Atoi(arg); err == nil {
				cc.SetSMaxAge(n)
			}
		}
	}
	return cc
}

// ---- Date (RFC 1123 / RFC 822 GMT, exactly 29 characters) ----

// DateLayout is the exact 29-character "Sun, 06 Nov 1994 08:49:37 GMT" form
// spec §4.3 mandates; deviations are rejected on parse.
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate renders t as the exact 29-character GMT date string.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate rejects any deviation from the 29-character layout.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("header: date %q is not exactly %d characters", s, len(DateLayout))
	}
	return time.Parse(DateLayout, s)
}

// ---- General-header (shared request/response) ----

const (
	gConnection bits = 1 << iota
	gDate
	gPragma
	gTrailer
	gTransferEncoding
	gUpgrade
	gVia
	gWarning
)

type General struct {
	present          bits
	CacheControl     CacheControl
	Connection       string
	Date             time.Time
	Pragma           string
	Trailer          string
	TransferEncoding string
	Upgrade          string
	Via              string
	Warning          string
}

func (g *General) SetConnection(v string)       { g.present.set(gConnection); g.Connection = v }
func (g *General) SetDate(t time.Time)          { g.present.set(gDate); g.Date = t }
func (g *General) SetPragma(v string)           { g.present.set(gPragma); g.Pragma = v }
func (g *General) SetTrailer(v string)          { g.present.set(gTrailer); g.Trailer = v }
func (g *General) SetTransferEncoding(v string) { g.present.set(gTransferEncoding); g.TransferEncoding = v }
func (g *General) SetUpgrade(v string)          { g.present.set(gUpgrade); g.Upgrade = v }
func (g *General) SetVia(v string)              { g.present.set(gVia); g.Via = v }
func (g *General) SetWarning(v string)          { g.present.set(gWarning); g.Warning = v }

func (g *General) GetConnection() (string, bool)       { return g.Connection, g.present.has(gConnection) }
func (g *General) GetDate() (time.Time, bool)          { return g.Date, g.present.has(gDate) }
func (g *General) GetTransferEncoding() (string, bool) { return g.TransferEncoding, g.present.has(gTransferEncoding) }

// ---- Entity-header ----

const (
	eAllow bits = 1 << iota
	eContentEncoding
	eContentLanguage
	eContentLength
	eContentLocation
	eContentMD5
	eContentRange
	eContentType
	eExpires
	eLastModified
)

type Entity struct {
	present         bits
	Allow           string
	ContentEncoding string
	ContentLanguage string
	ContentLength   int64
	ContentLocation string
	ContentMD5      string
	ContentRange    string
	ContentType     string
	Expires         time.Time
	LastModified    time.Time
}

func (e *Entity) SetAllow(v string)           { e.present.set(eAllow); e.Allow = v }
func (e *Entity) SetContentEncoding(v string) { e.present.set(eContentEncoding); e.ContentEncoding = v }
func (e *Entity) SetContentLanguage(v string) { e.present.set(eContentLanguage); e.ContentLanguage = v }
func (e *Entity) SetContentLength(v int64)    { e.present.set(eContentLength); e.ContentLength = v }
func (e *Entity) SetContentLocation(v string) { e.present.set(eContentLocation); e.ContentLocation = v }
func (e *Entity) SetContentMD5(v string)      { e.present.set(eContentMD5); e.ContentMD5 = v }
func (e *Entity) SetContentRange(v string)    { e.present.set(eContentRange); e.ContentRange = v }
func (e *Entity) SetContentType(v string)     { e.present.set(eContentType); e.ContentType = v }
func (e *Entity) SetExpires(t time.Time)      { e.present.set(eExpires); e.Expires = t }
func (e *Entity) SetLastModified(t time.Time) { e.present.set(eLastModified); e.LastModified = t }

func (e *Entity) GetContentLength() (int64, bool) { return e.ContentLength, e.present.has(eContentLength) }
func (e *Entity) GetContentType() (string, bool)  { return e.ContentType, e.present.has(eContentType) }

// ---- Request-header ----

const (
	rAccept bits = 1 << iota
	rAcceptCharset
	rAcceptEncoding
	rAcceptLanguage
	rAuthorization
	rExpect
	rFrom
	rHost
	rIfMatch
	rIfNoneMatch
	rIfRange
	rIfModifiedSince
	rIfUnmodifiedSince
	rMaxForwards
	rProxyAuthorization
	rRange
	rReferer
	rTE
	rUserAgent
	rMIMEVersion
)

type Request struct {
	present            bits
	Accept             string
	AcceptCharset      string
	AcceptEncoding     string
	AcceptLanguage     string
	Authorization      string
	Expect             string
	From               string
	Host               string
	IfMatch            string
	IfNoneMatch        string
	IfRange            string
	IfModifiedSince    time.Time
	IfUnmodifiedSince  time.Time
	MaxForwards        int
	ProxyAuthorization string
	Range              string
	Referer             string
	TE                  string
	UserAgent           string
	MIMEVersion         string
}

func (r *Request) SetAccept(v string)         { r.present.set(rAccept); r.Accept = v }
func (r *Request) SetAcceptCharset(v string)  { r.present.set(rAcceptCharset); r.AcceptCharset = v }
func (r *Request) SetAcceptEncoding(v string) { r.present.set(rAcceptEncoding); r.AcceptEncoding = v }
func (r *Request) SetAcceptLanguage(v string) { r.present.set(rAcceptLanguage); r.AcceptLanguage = v }
func (r *Request) SetAuthorization(v string)  { r.present.set(rAuthorization); r.Authorization = v }
func (r *Request) SetExpect(v string)         { r.present.set(rExpect); r.Expect = v }
func (r *Request) SetFrom(v string)           { r.present.set(rFrom); r.From = v }
func (r *Request) SetHost(v string)           { r.present.set(rHost); r.Host = v }
func (r *Request) SetIfMatch(v string)        { r.present.set(rIfMatch); r.IfMatch = v }
func (r *Request) SetIfNoneMatch(v string)    { r.present.set(rIfNoneMatch); r.IfNoneMatch = v }
func (r *Request) SetIfRange(v string)        { r.present.set(rIfRange); r.IfRange = v }
func (r *Request) SetIfModifiedSince(t time.Time)   { r.present.set(rIfModifiedSince); r.IfModifiedSince = t }
func (r *Request) SetIfUnmodifiedSince(t time.Time) { r.present.set(rIfUnmodifiedSince); r.IfUnmodifiedSince = t }
func (r *Request) SetMaxForwards(n int)             { r.present.set(rMaxForwards); r.MaxForwards = n }
func (r *Request) SetProxyAuthorization(v string)   { r.present.set(rProxyAuthorization); r.ProxyAuthorization = v }
func (r *Request) SetRange(v string)                { r.present.set(rRange); r.Range = v }
func (r *Request) SetReferer(v string)              { r.present.set(rReferer); r.Referer = v }
func (r *Request) SetTE(v string)                   { r.present.set(rTE); r.TE = v }
func (r *Request) SetUserAgent(v string)            { r.present.set(rUserAgent); r.UserAgent = v }
func (r *Request) SetMIMEVersion(v string)          { r.present.set(rMIMEVersion); r.MIMEVersion = v }

func (r *Request) GetAccept() (string, bool)        { return r.Accept, r.present.has(rAccept) }
func (r *Request) GetAcceptLanguage() (string, bool) { return r.AcceptLanguage, r.present.has(rAcceptLanguage) }
func (r *Request) GetHost() (string, bool)          { return r.Host, r.present.has(rHost) }

// AcceptsMediaType implements §4.5: true when Accept is unset, otherwise
// true iff v is a substring of Accept.
func (r *Request) AcceptsMediaType(v string) bool {
	accept, ok := r.GetAccept()
	if !ok {
		return true
	}
	return strings.Contains(accept, v)
}

// AcceptsLanguage implements §4.5: tokenize Accept-Language on whitespace
// and match word-equal.
func (r *Request) AcceptsLanguage(v string) bool {
	lang, ok := r.GetAcceptLanguage()
	if !ok {
		return true
	}
	for _, tok := range strings.Fields(lang) {
		if strings.EqualFold(strings.TrimRight(tok, ","), v) {
			return true
		}
	}
	return false
}

// ---- Response-header ----

const (
	spAcceptRanges bits = 1 << iota
	spAge
	spETag
	spLocation
	spProxyAuthenticate
	spRetryAfter
	spServer
	spVary
	spWWWAuthenticate
)

type Response struct {
	present           bits
	AcceptRanges      string
	Age               int
	ETag              string
	Location          string
	ProxyAuthenticate string
	RetryAfter        string
	Server            string
	Vary              string
	WWWAuthenticate   string
}

func (s *Response) SetAcceptRanges(v string)      { s.present.set(spAcceptRanges); s.AcceptRanges = v }
func (s *Response) SetAge(n int)                  { s.present.set(spAge); s.Age = n }
func (s *Response) SetETag(v string)              { s.present.set(spETag); s.ETag = v }
func (s *Response) SetLocation(v string)          { s.present.set(spLocation); s.Location = v }
func (s *Response) SetProxyAuthenticate(v string) { s.present.set(spProxyAuthenticate); s.ProxyAuthenticate = v }
func (s *Response) SetRetryAfter(v string)        { s.present.set(spRetryAfter); s.RetryAfter = v }
func (s *Response) SetServer(v string)            { s.present.set(spServer); s.Server = v }
func (s *Response) SetVary(v string)              { s.present.set(spVary); s.Vary = v }
func (s *Response) SetWWWAuthenticate(v string)   { s.present.set(spWWWAuthenticate); s.WWWAuthenticate = v }

func (s *Response) GetLocation() (string, bool) { return s.Location, s.present.has(spLocation) }
func (s *Response) GetETag() (string, bool)     { return s.ETag, s.present.has(spETag) }
