package run

import (
	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/google/uuid"
)

type resultKey struct {
	run   uuid.UUID
	index int
}

// ResultStore is the append-only sequence of results of an inspection
// session, in drain order.
//
// It is owned by the control loop that polls the Coordinator and is not safe
// for concurrent use.
type ResultStore struct {
	results []batch.RunResult
	byKey   map[resultKey]int
	runs    []uuid.UUID
	runSeen map[uuid.UUID]struct{}
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		byKey:   make(map[resultKey]int),
		runSeen: make(map[uuid.UUID]struct{}),
	}
}

// Append adds results in order.
func (s *ResultStore) Append(results ...batch.RunResult) {
	for _, r := range results {
		if _, seen := s.runSeen[r.RunID]; !seen {
			s.runSeen[r.RunID] = struct{}{}
			s.runs = append(s.runs, r.RunID)
		}
		s.byKey[resultKey{run: r.RunID, index: r.Index}] = len(s.results)
		s.results = append(s.results, r)
	}
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	return len(s.results)
}

// At returns the i-th result in drain order.
func (s *ResultStore) At(i int) batch.RunResult {
	return s.results[i]
}

// All returns the stored results in drain order. The slice must not be
// modified.
func (s *ResultStore) All() []batch.RunResult {
	return s.results
}

// Lookup returns the result of request index in run.
func (s *ResultStore) Lookup(run uuid.UUID, index int) (batch.RunResult, bool) {
	pos, ok := s.byKey[resultKey{run: run, index: index}]
	if !ok {
		return batch.RunResult{}, false
	}
	return s.results[pos], true
}

// Runs returns the run IDs present in the store, in order of first result.
func (s *ResultStore) Runs() []uuid.UUID {
	return s.runs
}

// ForRun returns the results of one run, in drain order.
func (s *ResultStore) ForRun(run uuid.UUID) []batch.RunResult {
	var out []batch.RunResult
	for _, r := range s.results {
		if r.RunID == run {
			out = append(out, r)
		}
	}
	return out
}
