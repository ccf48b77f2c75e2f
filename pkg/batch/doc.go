// Package batch splits a run into bounded chunks and executes one chunk per
// worker.
//
// A run of n requests is cut into contiguous chunks of BatchSize(n)
// descriptors: 250 for runs under 1000 requests, ceil(n/1000) above that.
// The number of chunks, and therefore of parallel workers and open
// connections, stays around 1000 or less whatever the size of the payload
// list.
//
// Example usage:
//
//	client, _ := transport.New(transport.DefaultConfig())
//	worker := batch.NewWorker(client, logger)
//	for _, chunk := range batch.Partition(descriptors) {
//		go func(chunk []template.RequestDescriptor) {
//			results := worker.Run(ctx, runID, chunk)
//			...
//		}(chunk)
//	}
//
// A worker is a blocking unit of work. It sends its chunk sequentially in
// index order and records a Failure for any request that cannot be
// completed without aborting the rest of the chunk.
package batch
