// Package testutil provides test servers standing in for replay targets and
// for a proxy's history API.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTarget is a configurable replay target.
type MockTarget struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	lastRequest  *http.Request
	lastBody     []byte
}

// NewMockTarget starts a plain HTTP target.
func NewMockTarget() *MockTarget {
	m := newMockTarget()
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// NewTLSMockTarget starts an HTTPS target with a self-signed certificate.
func NewTLSMockTarget() *MockTarget {
	m := newMockTarget()
	m.server = httptest.NewTLSServer(http.HandlerFunc(m.serve))
	return m
}

func newMockTarget() *MockTarget {
	return &MockTarget{handlers: make(map[string]http.HandlerFunc)}
}

func (m *MockTarget) serve(w http.ResponseWriter, r *http.Request) {
	body := readAll(r)

	m.mu.Lock()
	m.requestCount++
	m.lastRequest = r.Clone(r.Context())
	m.lastBody = body
	handler, ok := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if ok {
		handler(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// URL returns the base URL, e.g. "http://127.0.0.1:port".
func (m *MockTarget) URL() string {
	return m.server.URL
}

// Host returns host:port of the server.
func (m *MockTarget) Host() string {
	return m.server.Listener.Addr().String()
}

// Close shuts down the server.
func (m *MockTarget) Close() {
	m.server.Close()
}

// SetHandler installs a handler for path.
func (m *MockTarget) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a fixed response for path.
func (m *MockTarget) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests served.
func (m *MockTarget) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequest returns the most recent request and its body.
func (m *MockTarget) LastRequest() (*http.Request, []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest, m.lastBody
}

// NewRedirectResponse creates a 302 pointing at location.
func NewRedirectResponse(location string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": location},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal error",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
