package inspector

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/Sternrassler/proxy-inspector/pkg/fileio"
)

// Session renders the inspector as a JSON document: the captured
// transaction, the repeater's edited request and last result, and the
// intruder's template, payloads and drained results.
func (i *Inspector) Session() (string, error) {
	doc := `{}`
	set := func(path string, value any) error {
		var err error
		doc, err = sjson.Set(doc, path, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
		return nil
	}

	fields := []struct {
		path  string
		value any
	}{
		{"mode", i.mode.String()},
		{"target.host", i.target.Host},
		{"target.ssl", i.target.SSL},
		{"request", i.request},
		{"response", i.response},
	}
	for _, f := range fields {
		if err := set(f.path, f.value); err != nil {
			return "", err
		}
	}

	if r := i.repeater; r != nil {
		if err := set("repeater.request", r.Request()); err != nil {
			return "", err
		}
		if last, ok := r.Last(); ok {
			if err := set("repeater.status", last.StatusLabel()); err != nil {
				return "", err
			}
			if last.Response != nil {
				if err := set("repeater.response", last.Response.Raw()); err != nil {
					return "", err
				}
			}
		}
	}

	if in := i.intruder; in != nil {
		if err := set("intruder.template", in.Template()); err != nil {
			return "", err
		}
		if err := set("intruder.payloads", in.Payloads()); err != nil {
			return "", err
		}
		for _, row := range in.AllRows() {
			entry := map[string]any{
				"run":     row.Result.RunID.String(),
				"index":   row.Result.Index,
				"payload": row.Payload,
				"status":  row.Result.StatusLabel(),
				"length":  row.Result.BodyLen(),
			}
			if row.Result.Failure != nil {
				entry["error"] = row.Result.Failure.Description
			}
			if err := set("intruder.results.-1", entry); err != nil {
				return "", err
			}
		}
	}

	return doc, nil
}

// ExportSession writes Session to path.
func (i *Inspector) ExportSession(path string) error {
	doc, err := i.Session()
	if err != nil {
		return fmt.Errorf("export session: %w", err)
	}
	return fileio.WriteText(path, doc)
}
