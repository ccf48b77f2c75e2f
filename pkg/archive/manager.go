package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates the run was never archived or has expired.
	ErrNotFound = errors.New("run not archived")

	// ErrInvalidEntry indicates the stored document is corrupted.
	ErrInvalidEntry = errors.New("invalid archive entry")
)

// Manager archives runs in Redis.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new archive manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Save stores entry until its Expires time and adds it to the index.
// Entries that are already expired are not stored.
func (m *Manager) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("archive entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		Operations.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("marshal archive entry: %w", err)
	}

	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, Key(entry.RunID), data, ttl)
	pipe.ZAdd(ctx, IndexKey, redis.Z{Score: float64(entry.ArchivedAt.UnixMilli()), Member: entry.RunID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		Operations.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("redis save: %w", err)
	}

	Operations.WithLabelValues("save", "ok").Inc()
	BytesWritten.Add(float64(len(data)))
	return nil
}

// Load retrieves an archived run.
// Returns ErrNotFound if the run is unknown or expired.
func (m *Manager) Load(ctx context.Context, runID uuid.UUID) (*Entry, error) {
	data, err := m.redis.Get(ctx, Key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			Operations.WithLabelValues("load", "miss").Inc()
			return nil, ErrNotFound
		}
		Operations.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		Operations.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, runID)
		Operations.WithLabelValues("load", "miss").Inc()
		return nil, ErrNotFound
	}

	Operations.WithLabelValues("load", "ok").Inc()
	return &entry, nil
}

// Delete removes an archived run and its index member.
func (m *Manager) Delete(ctx context.Context, runID uuid.UUID) error {
	pipe := m.redis.TxPipeline()
	pipe.Del(ctx, Key(runID))
	pipe.ZRem(ctx, IndexKey, runID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		Operations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	Operations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// List returns up to limit archived run IDs, newest first. A limit <= 0
// returns all. Index members whose document has expired are removed.
func (m *Manager) List(ctx context.Context, limit int) ([]uuid.UUID, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	members, err := m.redis.ZRevRange(ctx, IndexKey, 0, stop).Result()
	if err != nil {
		Operations.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(members) == 0 {
		Operations.WithLabelValues("list", "ok").Inc()
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, mem := range members {
		keys[i] = keyPrefix + mem
	}
	exists, err := m.existing(ctx, keys)
	if err != nil {
		Operations.WithLabelValues("list", "error").Inc()
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(members))
	var stale []any
	for i, mem := range members {
		id, err := uuid.Parse(mem)
		if err != nil || !exists[i] {
			stale = append(stale, mem)
			continue
		}
		out = append(out, id)
	}
	if len(stale) > 0 {
		if err := m.redis.ZRem(ctx, IndexKey, stale...).Err(); err != nil {
			Operations.WithLabelValues("list", "error").Inc()
			return nil, fmt.Errorf("redis zrem: %w", err)
		}
	}

	Operations.WithLabelValues("list", "ok").Inc()
	return out, nil
}

func (m *Manager) existing(ctx context.Context, keys []string) ([]bool, error) {
	pipe := m.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis exists: %w", err)
	}

	out := make([]bool, len(keys))
	for i, c := range cmds {
		out[i] = c.Val() > 0
	}
	return out, nil
}

// Summary describes an archived run without its response bodies.
type Summary struct {
	RunID    uuid.UUID
	Requests int
	Failures int
	ByStatus map[string]int
}

// Summarize counts the results of an entry per status code.
func Summarize(e *Entry) Summary {
	s := Summary{RunID: e.RunID, Requests: len(e.Results), ByStatus: make(map[string]int)}
	for _, r := range e.Results {
		if r.Error != "" {
			s.Failures++
			s.ByStatus[r.Status]++
			continue
		}
		s.ByStatus[strconv.Itoa(r.StatusCode)]++
	}
	return s
}
