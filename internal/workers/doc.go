/*
Package workers sizes and runs small worker pools.

Go 1.19+ sets GOMAXPROCS from container CPU limits, while runtime.NumCPU
still reports the host. Worker counts here are derived from GOMAXPROCS so a
thumbnail warm-up inside a 2-CPU container does not start 64 ffmpeg
processes at once.

	n := workers.ForIO(8)
	workers.Run(ctx, n, paths, func(ctx context.Context, p string) {
		thumbs.GetOrCreate(ctx, p)
	})

Set PREVIEW_WORKERS to override the computed count.
*/
package workers
