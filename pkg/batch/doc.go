// Package batch runs independent jobs, such as scans of separate systems,
// on a bounded worker pool.
//
// Each job owns everything it touches; a single scan is never split across
// workers.
//
//	pool := batch.NewPool(4)
//	results := batch.Run(ctx, pool, paths, func(ctx context.Context, path string) (*Report, error) {
//		return scan(ctx, path)
//	})
//	if err := batch.FirstError(results); err != nil {
//		...
//	}
package batch
