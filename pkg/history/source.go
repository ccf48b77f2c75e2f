package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
)

// Prometheus metrics for history synchronization.
var (
	historyFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_inspector_history_fetches_total",
		Help: "Total history fetches by source and outcome",
	}, []string{"source", "outcome"})

	recordsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_inspector_history_records_merged_total",
		Help: "Total history records merged into collections",
	})
)

// ErrSourceUnavailable wraps every failure to obtain records from a source.
var ErrSourceUnavailable = errors.New("history source unavailable")

// Source returns the records with an id greater than lastID, in ascending id
// order.
type Source interface {
	FetchSince(ctx context.Context, lastID uint64) ([]Record, error)

	// Name identifies the source in logs and metrics.
	Name() string
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSourceUnavailable, fmt.Sprintf(format, args...))
}

// DecodeRecords parses a JSON array of record objects. Missing fields keep
// their zero value; numeric booleans are accepted.
func DecodeRecords(text string) ([]Record, error) {
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("decode records: invalid JSON")
	}
	doc := gjson.Parse(text)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode records: expected array, got %s", doc.Type)
	}

	var out []Record
	doc.ForEach(func(_, v gjson.Result) bool {
		out = append(out, decodeRecord(v))
		return true
	})
	return out, nil
}

func decodeRecord(v gjson.Result) Record {
	r := Record{
		ID:           v.Get("id").Uint(),
		RemoteAddr:   v.Get("remote_addr").String(),
		URI:          v.Get("uri").String(),
		Method:       v.Get("method").String(),
		HasParams:    v.Get("params").Bool(),
		StatusCode:   int(v.Get("status").Int()),
		Size:         int(v.Get("size").Int()),
		Raw:          v.Get("raw").String(),
		SSL:          v.Get("ssl").Bool(),
		Response:     v.Get("response").String(),
		ResponseTime: v.Get("response_time").String(),
		Host:         v.Get("host").String(),
	}
	if r.Host == "" {
		r.Host = HostFromRaw(r.Raw)
	}
	return r
}
