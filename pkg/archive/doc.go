// Package archive stores completed replay runs in Redis so they outlive the
// inspection session that produced them.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := archive.NewManager(redisClient)
//
//	entry := archive.NewEntry(runID, results, payloads, 24*time.Hour)
//	if err := manager.Save(ctx, entry); err != nil {
//		return err
//	}
//
//	entry, err := manager.Load(ctx, runID)
//	if errors.Is(err, archive.ErrNotFound) {
//		// never archived, or expired
//	}
//
// Every run is stored as one JSON document under "pi:run:<uuid>" with a
// Redis TTL. The set "pi:runs" indexes archived runs by archive time; List
// returns them newest first and prunes members whose document expired.
//
// # Metrics
//
//   - proxy_inspector_archive_operations_total{operation,outcome}
//   - proxy_inspector_archive_bytes_written_total
package archive
