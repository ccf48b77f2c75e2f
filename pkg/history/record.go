// Package history keeps an ever-growing, duplicate-free collection of
// intercepted transactions in sync with the proxy that records them.
//
// New records are pulled from a Source by cursor: every fetch asks for the
// records whose id is greater than the highest id already merged. Sources
// exist for the proxy's local project database, for its remote HTTPS API
// and for a Redis sorted set.
package history

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/proxy-inspector/pkg/template"
)

// Record is one intercepted transaction. Records are immutable once
// created.
type Record struct {
	// ID is assigned monotonically by the source.
	ID           uint64 `json:"id"`
	RemoteAddr   string `json:"remote_addr"`
	URI          string `json:"uri"`
	Method       string `json:"method"`
	HasParams    bool   `json:"params"`
	StatusCode   int    `json:"status"`
	Size         int    `json:"size"`
	Raw          string `json:"raw"`
	SSL          bool   `json:"ssl"`
	Response     string `json:"response"`
	ResponseTime string `json:"response_time"`
	Host         string `json:"host"`
}

// Target returns where the record's request can be replayed.
func (r Record) Target() template.Target {
	return template.Target{Host: r.Host, SSL: r.SSL}
}

// HostFromRaw extracts the Host header value of a raw request.
func HostFromRaw(raw string) string {
	return template.Parse(raw).Headers.Get("Host")
}

// FilterCategory selects the record field a filter applies to.
type FilterCategory string

const (
	FilterHost   FilterCategory = "host"
	FilterCode   FilterCategory = "code"
	FilterSource FilterCategory = "source"
	FilterPath   FilterCategory = "path"
)

// Filter returns a predicate matching records whose category field contains
// needle, case-insensitively. Status codes match by prefix, so "4" selects
// every 4xx. An empty needle matches everything.
func Filter(category FilterCategory, needle string) func(Record) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return func(Record) bool { return true }
	}

	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}

	switch category {
	case FilterCode:
		return func(r Record) bool {
			return strings.HasPrefix(strconv.Itoa(r.StatusCode), needle)
		}
	case FilterSource:
		return func(r Record) bool { return contains(r.RemoteAddr) }
	case FilterPath:
		return func(r Record) bool { return contains(r.URI) }
	default:
		return func(r Record) bool { return contains(r.Host) }
	}
}
