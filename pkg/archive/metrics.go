package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations tracks archive operations by operation and outcome.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_inspector_archive_operations_total",
			Help: "Total archive operations",
		},
		[]string{"operation", "outcome"}, // save|load|delete|list, ok|miss|error
	)

	// BytesWritten tracks the size of archived documents.
	BytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxy_inspector_archive_bytes_written_total",
			Help: "Total bytes of run documents written to the archive",
		},
	)
)
