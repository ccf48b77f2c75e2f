package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 or skips the test.
// tests/integration runs the same scenarios against a container.
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

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SaveAndLoad(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	runID := uuid.New()
	entry := NewEntry(runID, sampleResults(runID), []string{"admin", "guest"}, 5*time.Minute)

	if err := manager.Save(ctx, entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := manager.Load(ctx, runID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.RunID != runID || len(got.Results) != 3 {
		t.Fatalf("loaded %+v", got)
	}
	if got.Results[0].Payload != "admin" || got.Results[1].Error != "connection refused" {
		t.Errorf("results = %+v", got.Results)
	}
}

func TestManager_Load_NotFound(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Load(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManager_Save_Expired(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{RunID: uuid.New(), Expires: time.Now().Add(-time.Minute)}
	if err := manager.Save(ctx, entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := manager.Load(ctx, entry.RunID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for expired entry, got %v", err)
	}

	if err := manager.Save(ctx, nil); err == nil {
		t.Error("Save with nil entry should return error")
	}
}

func TestManager_DeleteAndList(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		e := NewEntry(uuid.New(), nil, nil, time.Hour)
		e.ArchivedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := manager.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.RunID)
	}

	list, err := manager.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0] != ids[2] || list[2] != ids[0] {
		t.Errorf("List() = %v, want newest first %v", list, ids)
	}

	if err := manager.Delete(ctx, ids[1]); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Load(ctx, ids[1]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v", err)
	}

	// A document that expired in Redis disappears from the index on List.
	client.Del(ctx, Key(ids[0]))
	list, err = manager.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0] != ids[2] {
		t.Errorf("List() after expiry = %v", list)
	}
	if n := client.ZCard(ctx, IndexKey).Val(); n != 1 {
		t.Errorf("index size = %d, want 1", n)
	}
}
