package decoding

import (
	"log/slog"

	"github.com/cockroachdb/errors"
)

// runPaths evaluates every task on at most nJobs goroutines and returns the
// results in task order. Tasks never talk to each other; results travel
// back over a channel and are stored by index once all tasks are done.
// When cache is non-nil it is consulted before and filled after each task.
func runPaths(tasks []PathTask, nJobs int, cache *PathCache, logger *slog.Logger) ([]PathResult, error) {
	if nJobs < 1 {
		nJobs = 1
	}
	results := make([]PathResult, len(tasks))

	type pathOutcome struct {
		idx    int
		result PathResult
		cached bool
		err    error
	}
	resultChan := make(chan pathOutcome)
	slots := make(chan struct{}, nJobs)

	for i := range tasks {
		go func(idx int, task PathTask) {
			slots <- struct{}{}
			defer func() { <-slots }()

			var key string
			if cache != nil {
				key = task.Key()
				if r, ok := cache.Get(key); ok {
					resultChan <- pathOutcome{idx: idx, result: r, cached: true}
					return
				}
			}
			r, err := PathScores(task)
			if err == nil && cache != nil {
				cache.Put(key, r)
			}
			resultChan <- pathOutcome{idx: idx, result: r, err: err}
		}(i, tasks[i])
	}

	var firstErr error
	for completed := 1; completed <= len(tasks); completed++ {
		res := <-resultChan
		if res.err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(res.err, "path task %d", res.idx)
			}
			continue
		}
		results[res.idx] = res.result
		logger.Info("path tasks",
			"completed", completed,
			"total", len(tasks),
			"class", res.result.Class,
			"cached", res.cached)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
