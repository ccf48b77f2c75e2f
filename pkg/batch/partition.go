package batch

import "github.com/Sternrassler/proxy-inspector/pkg/template"

const (
	// DefaultBatchSize is the chunk size for runs below LargeRunThreshold.
	DefaultBatchSize = 250

	// LargeRunThreshold is the run size from which the chunk size grows
	// with the run so that the chunk count stays near this value.
	LargeRunThreshold = 1000
)

// BatchSize returns the chunk size for a run of n requests.
func BatchSize(n int) int {
	if n < LargeRunThreshold {
		return DefaultBatchSize
	}
	return (n + LargeRunThreshold - 1) / LargeRunThreshold
}

// Partition splits descs into contiguous chunks of BatchSize(len(descs)).
// The last chunk may be shorter. Chunk order follows input order.
func Partition(descs []template.RequestDescriptor) [][]template.RequestDescriptor {
	if len(descs) == 0 {
		return nil
	}

	size := BatchSize(len(descs))
	chunks := make([][]template.RequestDescriptor, 0, (len(descs)+size-1)/size)
	for start := 0; start < len(descs); start += size {
		end := min(start+size, len(descs))
		chunks = append(chunks, descs[start:end:end])
	}
	return chunks
}
