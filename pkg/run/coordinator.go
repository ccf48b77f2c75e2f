// Package run dispatches replay runs as parallel batches and drains their
// results into a ResultStore without ever blocking the caller.
//
// A run moves through Dispatched -> (per batch) Pending -> Completed. The
// control loop calls Poll once per tick; every batch that finished since the
// previous tick is drained exactly once and removed from the pending set.
//
// There is no cancellation: a dispatched batch always runs to completion,
// even if the owning view is discarded in the meantime. Batches complete in
// any order; within a batch results keep submission order. Consumers join
// results to payloads through RunResult.Index, never through arrival order.
package run

import (
	"context"
	"time"

	"github.com/Sternrassler/proxy-inspector/pkg/async"
	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/Sternrassler/proxy-inspector/pkg/template"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for run coordination.
var (
	runsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_inspector_runs_dispatched_total",
		Help: "Total replay runs dispatched",
	})

	resultsDrainedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_inspector_results_drained_total",
		Help: "Total results drained into result stores by outcome",
	}, []string{"outcome"})

	pendingBatchesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_inspector_pending_batches",
		Help: "Batches dispatched but not yet drained",
	})
)

// Runner executes one chunk of a run. *batch.Worker implements it.
type Runner interface {
	Run(ctx context.Context, runID uuid.UUID, chunk []template.RequestDescriptor) []batch.RunResult
}

type pendingBatch struct {
	run    uuid.UUID
	future *async.Future[[]batch.RunResult]
}

type runProgress struct {
	total   int
	drained int
	started time.Time
}

// Coordinator owns the in-flight batches of every run it dispatched.
//
// Dispatch and Poll must be called from a single goroutine.
type Coordinator struct {
	runner   Runner
	pending  []*pendingBatch
	store    *ResultStore
	progress map[uuid.UUID]*runProgress
	logger   zerolog.Logger
}

// New creates a coordinator with an empty result store.
func New(runner Runner, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		runner:   runner,
		store:    NewResultStore(),
		progress: make(map[uuid.UUID]*runProgress),
		logger:   logger.With().Str("component", "run-coordinator").Logger(),
	}
}

// Dispatch partitions descs, starts one batch per chunk and returns the ID
// tagging every result of the run. It does not wait for any request.
//
// The batches keep the values of ctx but not its cancellation.
func (c *Coordinator) Dispatch(ctx context.Context, descs []template.RequestDescriptor) uuid.UUID {
	runID := uuid.New()
	detached := context.WithoutCancel(ctx)

	chunks := batch.Partition(descs)
	for _, chunk := range chunks {
		f := async.Spawn(func() []batch.RunResult {
			return c.runner.Run(detached, runID, chunk)
		})
		c.pending = append(c.pending, &pendingBatch{run: runID, future: f})
	}

	c.progress[runID] = &runProgress{total: len(descs), started: time.Now()}
	runsDispatchedTotal.Inc()
	pendingBatchesGauge.Add(float64(len(chunks)))

	c.logger.Info().
		Str("run_id", runID.String()).
		Int("requests", len(descs)).
		Int("batches", len(chunks)).
		Int("batch_size", batch.BatchSize(len(descs))).
		Msg("Run dispatched")

	return runID
}

// Poll drains every completed batch into the store and returns the number
// of results appended. It never blocks.
func (c *Coordinator) Poll() int {
	drained := 0
	kept := c.pending[:0]
	for _, p := range c.pending {
		results, ok := p.future.Drain()
		if !ok {
			if !p.future.Drained() {
				kept = append(kept, p)
			}
			continue
		}

		c.store.Append(results...)
		drained += len(results)
		pendingBatchesGauge.Dec()
		for _, r := range results {
			if r.OK() {
				resultsDrainedTotal.WithLabelValues("response").Inc()
			} else {
				resultsDrainedTotal.WithLabelValues("failure").Inc()
			}
		}

		if prog, found := c.progress[p.run]; found {
			prog.drained += len(results)
			if prog.drained >= prog.total {
				c.logger.Info().
					Str("run_id", p.run.String()).
					Int("requests", prog.total).
					Dur("duration", time.Since(prog.started)).
					Msg("Run completed")
			}
		}
	}
	for i := len(kept); i < len(c.pending); i++ {
		c.pending[i] = nil
	}
	c.pending = kept

	return drained
}

// Pending returns the number of batches not yet drained.
func (c *Coordinator) Pending() int {
	return len(c.pending)
}

// Idle reports whether every dispatched batch has been drained.
func (c *Coordinator) Idle() bool {
	return len(c.pending) == 0
}

// Progress returns how many results of run have been drained and how many
// requests the run holds.
func (c *Coordinator) Progress(runID uuid.UUID) (drained, total int) {
	prog, ok := c.progress[runID]
	if !ok {
		return 0, 0
	}
	return prog.drained, prog.total
}

// Store returns the result store fed by Poll.
func (c *Coordinator) Store() *ResultStore {
	return c.store
}
