package testutil

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const requestsPath = "/api/requests/"

type historyEntry struct {
	id   uint64
	json string
}

// MockHistoryAPI serves GET /api/requests/{lastId} over TLS the way the
// proxy does: a JSON array of the records with a greater id, ascending.
type MockHistoryAPI struct {
	server *httptest.Server
	secret string

	mu       sync.Mutex
	entries  []historyEntry
	failNext int
	fetches  int
}

// NewMockHistoryAPI starts the API. Requests must carry
// "Authentication: Bearer <secret>".
func NewMockHistoryAPI(secret string) *MockHistoryAPI {
	m := &MockHistoryAPI{secret: secret}
	m.server = httptest.NewTLSServer(http.HandlerFunc(m.serve))
	return m
}

// AddRecord publishes one record given as a JSON object.
func (m *MockHistoryAPI) AddRecord(id uint64, recordJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, historyEntry{id: id, json: recordJSON})
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].id < m.entries[j].id })
}

// FailNext makes the next n fetches answer 500.
func (m *MockHistoryAPI) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Fetches returns the number of authorized fetches served.
func (m *MockHistoryAPI) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Addr returns the API host.
func (m *MockHistoryAPI) Addr() string {
	host, _, _ := net.SplitHostPort(m.server.Listener.Addr().String())
	return host
}

// Port returns the API port.
func (m *MockHistoryAPI) Port() int {
	_, port, _ := net.SplitHostPort(m.server.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Close shuts down the API.
func (m *MockHistoryAPI) Close() {
	m.server.Close()
}

func (m *MockHistoryAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, requestsPath) {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authentication") != "Bearer "+m.secret {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	lastID, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, requestsPath), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.fetches++
	if m.failNext > 0 {
		m.failNext--
		m.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var parts []string
	for _, e := range m.entries {
		if e.id > lastID {
			parts = append(parts, e.json)
		}
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("[" + strings.Join(parts, ",") + "]"))
}

func readAll(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	b, _ := io.ReadAll(r.Body)
	return b
}
