package batch

import (
	"context"
	"time"

	"github.com/Sternrassler/proxy-inspector/pkg/template"
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for batch execution.
var (
	batchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_inspector_batches_in_flight",
		Help: "Number of batches currently executing",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxy_inspector_batch_duration_seconds",
		Help:    "Wall time to execute one batch",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	batchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_inspector_batch_request_failures_total",
		Help: "Total requests recorded as failures by batch workers",
	})
)

// Sender sends a single request descriptor.
// *transport.Client implements it.
type Sender interface {
	Send(ctx context.Context, d template.RequestDescriptor) (*transport.Response, error)
}

// Worker executes chunks sequentially.
type Worker struct {
	sender Sender
	logger zerolog.Logger
}

// NewWorker creates a worker that sends through sender.
func NewWorker(sender Sender, logger zerolog.Logger) *Worker {
	return &Worker{
		sender: sender,
		logger: logger.With().Str("component", "batch-worker").Logger(),
	}
}

// Run sends every descriptor of chunk in order and returns one result per
// descriptor, in the same order. It returns only once every request has
// completed or failed.
func (w *Worker) Run(ctx context.Context, runID uuid.UUID, chunk []template.RequestDescriptor) []RunResult {
	start := time.Now()
	batchesInFlight.Inc()
	defer func() {
		batchesInFlight.Dec()
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	out := make([]RunResult, 0, len(chunk))
	failures := 0
	for _, d := range chunk {
		res := RunResult{RunID: runID, Index: d.Index}

		resp, err := w.sender.Send(ctx, d)
		if err != nil {
			failures++
			batchFailuresTotal.Inc()
			res.Failure = &Failure{
				Class:       transport.ClassOf(err),
				Description: err.Error(),
			}
		} else {
			res.Response = resp
		}

		out = append(out, res)
	}

	if len(chunk) > 0 {
		w.logger.Debug().
			Str("run_id", runID.String()).
			Int("first_index", chunk[0].Index).
			Int("requests", len(chunk)).
			Int("failures", failures).
			Dur("duration", time.Since(start)).
			Msg("Batch completed")
	}

	return out
}
