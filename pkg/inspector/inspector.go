// Package inspector holds the state of one inspected transaction.
//
// An Inspector is in exactly one of three modes. Default shows the captured
// request and response, Repeater edits and re-sends a single request, and
// Intruder fuzzes the request with a payload list. Switch is the only
// transition. Each mode owns its own state, created on first entry and kept
// while the inspector lives, so leaving a mode does not lose a pending send.
package inspector

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/Sternrassler/proxy-inspector/pkg/fileio"
	"github.com/Sternrassler/proxy-inspector/pkg/history"
	"github.com/Sternrassler/proxy-inspector/pkg/template"
)

// Mode selects what the inspector does with its transaction.
type Mode int

const (
	ModeDefault Mode = iota
	ModeRepeater
	ModeIntruder
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeRepeater:
		return "repeater"
	case ModeIntruder:
		return "intruder"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Deps are the collaborators shared by every inspector.
type Deps struct {
	// Sender performs requests, usually a *transport.Client.
	Sender batch.Sender

	Logger zerolog.Logger
}

// Inspector is one transaction under inspection.
//
// It belongs to a single control loop and is not safe for concurrent use.
type Inspector struct {
	request  string
	response string
	target   template.Target
	mode     Mode

	repeater *Repeater
	intruder *Intruder

	deps   Deps
	worker *batch.Worker
	logger zerolog.Logger
}

// New creates an inspector in Default mode.
func New(request, response string, target template.Target, deps Deps) *Inspector {
	logger := deps.Logger.With().Str("component", "inspector").Str("host", target.Host).Logger()
	return &Inspector{
		request:  request,
		response: response,
		target:   target,
		deps:     deps,
		worker:   batch.NewWorker(deps.Sender, deps.Logger),
		logger:   logger,
	}
}

// FromRecord creates an inspector for a history record.
func FromRecord(rec history.Record, deps Deps) *Inspector {
	return New(rec.Raw, rec.Response, rec.Target(), deps)
}

// Request returns the captured raw request.
func (i *Inspector) Request() string {
	return i.request
}

// Response returns the captured raw response.
func (i *Inspector) Response() string {
	return i.response
}

// Target returns where requests are replayed.
func (i *Inspector) Target() template.Target {
	return i.target
}

// Mode returns the current mode.
func (i *Inspector) Mode() Mode {
	return i.mode
}

// Switch changes the mode. Entering Repeater or Intruder for the first time
// seeds its state from the captured request.
func (i *Inspector) Switch(m Mode) {
	switch m {
	case ModeRepeater:
		if i.repeater == nil {
			i.repeater = newRepeater(i.request, i.target, i.worker)
		}
	case ModeIntruder:
		if i.intruder == nil {
			i.intruder = newIntruder(i, i.logger)
		}
	case ModeDefault:
	default:
		return
	}

	if m != i.mode {
		i.logger.Debug().Str("from", i.mode.String()).Str("to", m.String()).Msg("Mode switched")
	}
	i.mode = m
}

// Repeater returns the Repeater state, or nil if the mode was never
// entered.
func (i *Inspector) Repeater() *Repeater {
	return i.repeater
}

// Intruder returns the Intruder state, or nil if the mode was never
// entered.
func (i *Inspector) Intruder() *Intruder {
	return i.intruder
}

// Poll drains finished work of every mode and reports whether anything
// changed.
func (i *Inspector) Poll() bool {
	changed := false
	if i.repeater != nil && i.repeater.Poll() {
		changed = true
	}
	if i.intruder != nil && i.intruder.Poll() > 0 {
		changed = true
	}
	return changed
}

// SaveRequest writes the captured request to path.
func (i *Inspector) SaveRequest(path string) error {
	return fileio.WriteText(path, i.request)
}

// Curl renders the captured request as a curl command.
func (i *Inspector) Curl() string {
	return template.Curl(i.request, i.target)
}
