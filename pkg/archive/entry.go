package archive

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sternrassler/proxy-inspector/pkg/batch"
)

// Result is one archived request outcome.
type Result struct {
	Index      int    `json:"index"`
	Payload    string `json:"payload"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Response   string `json:"response,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Entry is an archived run.
type Entry struct {
	RunID      uuid.UUID `json:"run_id"`
	Results    []Result  `json:"results"`
	ArchivedAt time.Time `json:"archived_at"`
	Expires    time.Time `json:"expires"`
}

// NewEntry builds an entry from drained results. payloads is indexed by
// RunResult.Index; results without a matching payload keep an empty one.
func NewEntry(runID uuid.UUID, results []batch.RunResult, payloads []string, ttl time.Duration) *Entry {
	now := time.Now()
	entry := &Entry{
		RunID:      runID,
		Results:    make([]Result, 0, len(results)),
		ArchivedAt: now,
		Expires:    now.Add(ttl),
	}

	for _, r := range results {
		res := Result{Index: r.Index, Status: r.StatusLabel()}
		if r.Index >= 0 && r.Index < len(payloads) {
			res.Payload = payloads[r.Index]
		}
		if r.Response != nil {
			res.StatusCode = r.Response.StatusCode
			res.Response = r.Response.Raw()
			res.DurationMS = r.Response.Duration.Milliseconds()
		}
		if r.Failure != nil {
			res.ErrorClass = string(r.Failure.Class)
			res.Error = r.Failure.Description
		}
		entry.Results = append(entry.Results, res)
	}
	return entry
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
