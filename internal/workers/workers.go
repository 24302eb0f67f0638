package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// Count returns a worker count of multiplier x GOMAXPROCS, capped at limit
// (0 for no cap). GOMAXPROCS follows container CPU limits.
//
// PREVIEW_WORKERS overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("PREVIEW_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForIO returns worker count for tasks that mostly wait on subprocesses or
// disk (2 per CPU). Thumbnail extraction is dominated by ffmpeg start-up
// and seek latency, so it sizes its pool with this.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Run calls fn for every item using n goroutines and returns once all
// calls have finished. Items not yet started when ctx is cancelled are
// skipped.
func Run[T any](ctx context.Context, n int, items []T, fn func(context.Context, T)) {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	jobs := make(chan T)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				fn(ctx, item)
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}
