package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Sternrassler/proxy-inspector/internal/testutil"
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
)

func TestDecodeRecords(t *testing.T) {
	text := `[
		{"id": 3, "remote_addr": "10.0.0.1:5000", "uri": "/a?x=1", "method": "GET", "params": true,
		 "status": 200, "size": 12, "raw": "GET /a?x=1 HTTP/1.1\r\nHost: a.local\r\n\r\n", "ssl": true,
		 "response": "HTTP/1.1 200 OK\r\n\r\nhello", "response_time": "12ms"},
		{"id": 4, "uri": "/b", "method": "POST", "host": "explicit.local", "params": 0, "ssl": 1}
	]`

	got, err := DecodeRecords(text)
	if err != nil {
		t.Fatalf("DecodeRecords() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	first := got[0]
	if first.ID != 3 || first.Method != "GET" || first.StatusCode != 200 || first.Size != 12 {
		t.Errorf("first record = %+v", first)
	}
	if !first.HasParams || !first.SSL {
		t.Errorf("first record flags: params=%v ssl=%v, want true/true", first.HasParams, first.SSL)
	}
	if first.Host != "a.local" {
		t.Errorf("Host derived from raw = %q, want a.local", first.Host)
	}

	second := got[1]
	if second.Host != "explicit.local" {
		t.Errorf("explicit Host = %q", second.Host)
	}
	if second.HasParams || !second.SSL {
		t.Errorf("numeric booleans: params=%v ssl=%v, want false/true", second.HasParams, second.SSL)
	}
}

func TestDecodeRecords_Errors(t *testing.T) {
	for _, text := range []string{`not json`, `{"id": 1}`, `[{"id": 1}`} {
		if _, err := DecodeRecords(text); err == nil {
			t.Errorf("DecodeRecords(%q) expected error", text)
		}
	}

	got, err := DecodeRecords(`[]`)
	if err != nil || len(got) != 0 {
		t.Errorf("DecodeRecords([]) = %v, %v", got, err)
	}
}

// seedProject creates a project directory with a history database.
func seedProject(t *testing.T, rows ...historyRow) string {
	t.Helper()

	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, DatabaseFile)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer closeDatabase(db)

	if err := db.AutoMigrate(&historyRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(rows) > 0 {
		if err := db.Create(&rows).Error; err != nil {
			t.Fatalf("seed rows: %v", err)
		}
	}
	return dir
}

func TestLocalSource_FetchSince(t *testing.T) {
	dir := seedProject(t,
		historyRow{ID: 1, URI: "/one", Method: "GET", Status: 200, Raw: "GET /one HTTP/1.1\r\nHost: one.local\r\n\r\n"},
		historyRow{ID: 2, URI: "/two", Method: "POST", Status: 302, SSL: true, Raw: "POST /two HTTP/1.1\r\nHost: two.local\r\n\r\n"},
		historyRow{ID: 3, URI: "/three", Method: "GET", Status: 404},
	)
	src := NewLocalSource(dir, zerolog.Nop())

	got, err := src.FetchSince(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchSince() error = %v", err)
	}
	if want := []uint64{2, 3}; !equalIDs(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Host != "two.local" || !got[0].SSL || got[0].StatusCode != 302 {
		t.Errorf("record 2 = %+v", got[0])
	}

	none, err := src.FetchSince(context.Background(), 3)
	if err != nil || len(none) != 0 {
		t.Errorf("FetchSince(3) = %v, %v; want empty", none, err)
	}
}

func TestLocalSource_Unavailable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	src := NewLocalSource(missing, zerolog.Nop())

	_, err := src.FetchSince(context.Background(), 0)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}

	// A directory without a history table is unavailable too.
	empty := t.TempDir()
	_, err = NewLocalSource(empty, zerolog.Nop()).FetchSince(context.Background(), 0)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing table error = %v, want ErrSourceUnavailable", err)
	}
}

func TestIsValidProjectPath(t *testing.T) {
	dir := seedProject(t)
	if !IsValidProjectPath(dir) {
		t.Errorf("IsValidProjectPath(%q) = false", dir)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if IsValidProjectPath(file) {
		t.Error("a regular file is not a project path")
	}
	if IsValidProjectPath(filepath.Join(dir, "missing")) {
		t.Error("a missing path is not a project path")
	}

	empty := t.TempDir()
	if IsValidProjectPath(empty) {
		t.Error("a directory without a history database is not a project path")
	}
	if _, err := os.Stat(filepath.Join(empty, DatabaseFile)); !os.IsNotExist(err) {
		t.Errorf("validation created %s", DatabaseFile)
	}
}

func newRemote(t *testing.T, api *testutil.MockHistoryAPI, secret string) *RemoteSource {
	t.Helper()
	client, err := transport.New(transport.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	src, err := NewRemoteSource(RemoteConfig{Addr: api.Addr(), Port: api.Port(), Secret: secret}, client, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func TestRemoteSource_FetchSince(t *testing.T) {
	api := testutil.NewMockHistoryAPI("s3cret")
	defer api.Close()

	api.AddRecord(1, `{"id":1,"uri":"/a","method":"GET","status":200,"raw":"GET /a HTTP/1.1\r\nHost: a.local\r\n\r\n"}`)
	api.AddRecord(2, `{"id":2,"uri":"/b","method":"GET","status":500}`)

	src := newRemote(t, api, "s3cret")

	got, err := src.FetchSince(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchSince() error = %v", err)
	}
	if want := []uint64{1, 2}; !equalIDs(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Host != "a.local" {
		t.Errorf("Host = %q, want a.local", got[0].Host)
	}

	got, err = src.FetchSince(context.Background(), 1)
	if err != nil || !equalIDs(ids(got), []uint64{2}) {
		t.Errorf("FetchSince(1) = %v, %v", ids(got), err)
	}
}

func TestRemoteSource_Unavailable(t *testing.T) {
	api := testutil.NewMockHistoryAPI("s3cret")
	defer api.Close()

	wrongSecret := newRemote(t, api, "wrong")
	if _, err := wrongSecret.FetchSince(context.Background(), 0); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("unauthorized error = %v, want ErrSourceUnavailable", err)
	}

	api.FailNext(1)
	src := newRemote(t, api, "s3cret")
	if _, err := src.FetchSince(context.Background(), 0); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("server error = %v, want ErrSourceUnavailable", err)
	}

	addr, port := api.Addr(), api.Port()
	api.Close()
	client, _ := transport.New(transport.DefaultConfig())
	gone, _ := NewRemoteSource(RemoteConfig{Addr: addr, Port: port, Secret: "s3cret"}, client, zerolog.Nop())
	if _, err := gone.FetchSince(context.Background(), 0); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("closed server error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRemoteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RemoteConfig
		wantErr bool
	}{
		{"complete", RemoteConfig{Addr: "10.0.0.5", Port: 8443, Secret: "x"}, false},
		{"default port", RemoteConfig{Addr: "10.0.0.5", Secret: "x"}, false},
		{"missing addr", RemoteConfig{Port: 8443, Secret: "x"}, true},
		{"missing secret", RemoteConfig{Addr: "10.0.0.5", Port: 8443}, true},
		{"bad port", RemoteConfig{Addr: "10.0.0.5", Port: 70000, Secret: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if got := (RemoteConfig{Addr: "h"}).endpoint(42); got != "https://h:8443/api/requests/42" {
		t.Errorf("endpoint = %q", got)
	}
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisSource_AppendAndFetch(t *testing.T) {
	client := setupTestRedis(t)
	src := NewRedisSource(client, "", zerolog.Nop())
	ctx := context.Background()

	err := src.Append(ctx,
		Record{ID: 2, URI: "/b", Raw: "GET /b HTTP/1.1\r\nHost: b.local\r\n\r\n"},
		Record{ID: 1, URI: "/a"},
		Record{ID: 3, URI: "/c", SSL: true},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := src.FetchSince(ctx, 1)
	if err != nil {
		t.Fatalf("FetchSince() error = %v", err)
	}
	if want := []uint64{2, 3}; !equalIDs(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Host != "b.local" {
		t.Errorf("Host = %q, want b.local", got[0].Host)
	}
	if !got[1].SSL {
		t.Error("SSL flag lost in round trip")
	}
}
