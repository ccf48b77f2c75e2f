// Package template turns a raw HTTP transcript and a payload string into a
// concrete request descriptor.
//
// A transcript is a start line, header lines terminated by a blank line and
// an optional body, exactly as captured by the intercepting proxy:
//
//	POST /login HTTP/1.1\r\n
//	Host: example.com\r\n
//	Content-Type: application/x-www-form-urlencoded\r\n
//	\r\n
//	user=admin&pass=$[PAYLOAD]$
//
// Every occurrence of Placeholder is replaced by the payload before parsing.
// Templating never fails: a malformed transcript degrades into a descriptor
// with empty fields, and invalid header bytes surface later as a transport
// failure when the request is dispatched.
package template

import (
	"fmt"
	"strings"
)

// Placeholder is the token replaced by each payload string.
const Placeholder = "$[PAYLOAD]$"

const (
	lineSep   = "\r\n"
	headerSep = ": "
	blankLine = "\r\n\r\n"
)

// Header is a single request header line.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered multimap of header lines.
type Headers []Header

// Add appends a header, keeping any existing values for the same name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Get returns the first value for name (case-insensitive), or "".
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns every value for name (case-insensitive) in order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Target identifies the host a transcript is replayed against.
type Target struct {
	// Host is host[:port], as found in the captured Host header.
	Host string

	// SSL selects https over http.
	SSL bool
}

// Scheme returns "https" or "http".
func (t Target) Scheme() string {
	if t.SSL {
		return "https"
	}
	return "http"
}

// URL builds scheme://host+uri.
func (t Target) URL(uri string) string {
	return fmt.Sprintf("%s://%s%s", t.Scheme(), t.Host, uri)
}

// Transcript is the parsed form of a raw request.
type Transcript struct {
	Method  string
	URI     string
	Headers Headers
	Body    []byte
}

// RequestDescriptor is one concrete request of a run. It is immutable once
// handed to a worker.
type RequestDescriptor struct {
	// Index is unique within one run, 0-based and stable.
	Index   int
	Method  string
	URL     string
	Body    []byte
	Headers Headers
}

// Substitute replaces every occurrence of Placeholder with payload.
func Substitute(raw, payload string) string {
	return strings.ReplaceAll(raw, Placeholder, payload)
}

// Parse splits a raw transcript into method, URI, headers and body.
//
// The method and URI are the first two whitespace-delimited tokens of the
// start line. Header lines without ": " are skipped.
func Parse(raw string) Transcript {
	var t Transcript

	head, body, found := strings.Cut(raw, blankLine)
	if found {
		t.Body = []byte(body)
	}

	lines := strings.Split(head, lineSep)
	fields := strings.Fields(lines[0])
	if len(fields) > 0 {
		t.Method = fields[0]
	}
	if len(fields) > 1 {
		t.URI = fields[1]
	}

	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, headerSep)
		if !ok {
			continue
		}
		t.Headers.Add(name, value)
	}

	return t
}

// Build produces the descriptor for one payload.
func Build(raw, payload string, index int, target Target) RequestDescriptor {
	return Describe(Substitute(raw, payload), index, target)
}

// Describe produces the descriptor of raw as is, without substitution.
func Describe(raw string, index int, target Target) RequestDescriptor {
	t := Parse(raw)
	return RequestDescriptor{
		Index:   index,
		Method:  t.Method,
		URL:     target.URL(t.URI),
		Body:    t.Body,
		Headers: t.Headers,
	}
}

// Prepare builds one descriptor per payload, indexed in payload order.
func Prepare(raw string, payloads []string, target Target) []RequestDescriptor {
	out := make([]RequestDescriptor, 0, len(payloads))
	for idx, p := range payloads {
		out = append(out, Build(raw, p, idx, target))
	}
	return out
}
