package inspector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/Sternrassler/proxy-inspector/pkg/fileio"
	"github.com/Sternrassler/proxy-inspector/pkg/pagination"
	"github.com/Sternrassler/proxy-inspector/pkg/run"
	"github.com/Sternrassler/proxy-inspector/pkg/template"
)

// ErrNoPayloads is returned by Send when the payload list is empty.
var ErrNoPayloads = errors.New("no payloads loaded")

// Row is one result joined with the payload that produced it.
type Row struct {
	Result  batch.RunResult
	Payload string
}

// runInput is what a run was dispatched with.
type runInput struct {
	template string
	payloads []string
}

// Intruder fuzzes a request template with a payload list.
type Intruder struct {
	owner    *Inspector
	template string
	payloads []string

	coordinator *run.Coordinator
	runs        map[uuid.UUID]runInput
	page        *pagination.State[Row]
	logger      zerolog.Logger
}

func newIntruder(owner *Inspector, logger zerolog.Logger) *Intruder {
	return &Intruder{
		owner:       owner,
		template:    owner.request,
		coordinator: run.New(owner.worker, owner.deps.Logger),
		runs:        make(map[uuid.UUID]runInput),
		page:        pagination.NewState[Row](),
		logger:      logger.With().Str("mode", ModeIntruder.String()).Logger(),
	}
}

// Template returns the request template.
func (in *Intruder) Template() string {
	return in.template
}

// SetTemplate replaces the request template. Placeholder marks where each
// payload goes.
func (in *Intruder) SetTemplate(raw string) {
	in.template = raw
}

// ResetTemplate restores the captured request as template.
func (in *Intruder) ResetTemplate() {
	in.template = in.owner.request
}

// SaveTemplate writes the template to path.
func (in *Intruder) SaveTemplate(path string) error {
	return fileio.WriteText(path, in.template)
}

// Payloads returns the payload list.
func (in *Intruder) Payloads() []string {
	return in.payloads
}

// SetPayloads replaces the payload list.
func (in *Intruder) SetPayloads(payloads []string) {
	in.payloads = payloads
}

// LoadPayloads replaces the payload list with the lines of path.
func (in *Intruder) LoadPayloads(path string) error {
	lines, err := fileio.ReadLines(path)
	if err != nil {
		return fmt.Errorf("load payloads: %w", err)
	}
	in.payloads = lines
	in.logger.Info().Str("path", path).Int("payloads", len(lines)).Msg("Payloads loaded")
	return nil
}

// Send prepares one request per payload and dispatches them as a run. It
// returns without waiting for any response.
func (in *Intruder) Send(ctx context.Context) (uuid.UUID, error) {
	if len(in.payloads) == 0 {
		return uuid.Nil, ErrNoPayloads
	}

	payloads := append([]string(nil), in.payloads...)
	descs := template.Prepare(in.template, payloads, in.owner.target)
	runID := in.coordinator.Dispatch(ctx, descs)
	in.runs[runID] = runInput{template: in.template, payloads: payloads}
	return runID, nil
}

// Poll drains finished batches and returns the number of new results.
func (in *Intruder) Poll() int {
	n := in.coordinator.Poll()
	if n > 0 {
		in.page.Clamp(in.page.Count(in.AllRows()))
	}
	return n
}

// Pending reports whether any batch is still running.
func (in *Intruder) Pending() bool {
	return !in.coordinator.Idle()
}

// Progress returns the drained and total request counts of a run.
func (in *Intruder) Progress(runID uuid.UUID) (drained, total int) {
	return in.coordinator.Progress(runID)
}

// AllRows returns every drained result joined with its payload, in drain
// order.
func (in *Intruder) AllRows() []Row {
	results := in.coordinator.Store().All()
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{Result: r, Payload: in.payloadFor(r.RunID, r.Index)})
	}
	return rows
}

// Rows returns the visible page of rows.
func (in *Intruder) Rows() []Row {
	return pagination.VisibleSlice(in.AllRows(), in.page)
}

// Page returns the page state of Rows. Setting its Filter narrows the
// rows that are paged.
func (in *Intruder) Page() *pagination.State[Row] {
	return in.page
}

// Lookup returns the row of one request of a run.
func (in *Intruder) Lookup(runID uuid.UUID, index int) (Row, bool) {
	r, ok := in.coordinator.Store().Lookup(runID, index)
	if !ok {
		return Row{}, false
	}
	return Row{Result: r, Payload: in.payloadFor(runID, index)}, true
}

// Open creates a Default inspector for a single row: the template of its
// run with the row's payload substituted, and the captured response or
// failure.
func (in *Intruder) Open(row Row) *Inspector {
	request := template.Substitute(in.runs[row.Result.RunID].template, row.Payload)

	var response string
	switch {
	case row.Result.Response != nil:
		response = row.Result.Response.Raw()
	case row.Result.Failure != nil:
		response = row.Result.Failure.Description
	}

	return New(request, response, in.owner.target, in.owner.deps)
}

func (in *Intruder) payloadFor(runID uuid.UUID, index int) string {
	payloads := in.runs[runID].payloads
	if index < 0 || index >= len(payloads) {
		return ""
	}
	return payloads[index]
}
