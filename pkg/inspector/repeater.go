package inspector

import (
	"context"

	"github.com/google/uuid"

	"github.com/Sternrassler/proxy-inspector/pkg/async"
	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/Sternrassler/proxy-inspector/pkg/template"
)

// Repeater edits and re-sends a single request. At most one send is
// pending.
type Repeater struct {
	request string
	target  template.Target
	worker  *batch.Worker

	pending *async.Future[[]batch.RunResult]
	last    *batch.RunResult
}

func newRepeater(request string, target template.Target, worker *batch.Worker) *Repeater {
	return &Repeater{request: request, target: target, worker: worker}
}

// Request returns the request as edited.
func (r *Repeater) Request() string {
	return r.request
}

// SetRequest replaces the edited request.
func (r *Repeater) SetRequest(raw string) {
	r.request = raw
}

// Send starts sending the edited request. It returns false, doing nothing,
// while a previous send is pending.
func (r *Repeater) Send(ctx context.Context) bool {
	if r.pending != nil {
		return false
	}

	d := template.Describe(r.request, 0, r.target)
	detached := context.WithoutCancel(ctx)
	r.pending = async.Spawn(func() []batch.RunResult {
		return r.worker.Run(detached, uuid.New(), []template.RequestDescriptor{d})
	})
	return true
}

// Poll collects a finished send and reports whether one was collected.
func (r *Repeater) Poll() bool {
	if r.pending == nil {
		return false
	}
	results, ok := r.pending.Drain()
	if !ok {
		return false
	}
	r.pending = nil
	if len(results) > 0 {
		r.last = &results[0]
	}
	return true
}

// Pending reports whether a send is in flight.
func (r *Repeater) Pending() bool {
	return r.pending != nil
}

// Last returns the result of the most recent completed send.
func (r *Repeater) Last() (batch.RunResult, bool) {
	if r.last == nil {
		return batch.RunResult{}, false
	}
	return *r.last, true
}
