package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/rohankatakam/paperwalk/internal/models"
)

// runState is the mutable state of one expansion, shared by the level
// workers.
type runState struct {
	mu      sync.Mutex
	result  Result
	visited map[string]struct{}
}

func (r *runState) add(update func(*Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.result)
}

func (r *runState) visit() {
	r.add(func(res *Result) { res.PapersVisited++ })
}

// unvisited filters ids down to ones not seen before and marks them seen.
func (r *runState) unvisited(ids []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.visited[id]; ok {
			continue
		}
		r.visited[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// finish stamps the status and duration and returns a copy.
func (r *runState) finish(ctx context.Context) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.result
	res.Duration = time.Since(res.StartedAt)
	switch {
	case ctx.Err() != nil:
		res.Status = models.RunStatusCancelled
		res.Error = ctx.Err().Error()
	case res.Failed():
		res.Status = models.RunStatusPartial
	default:
		res.Status = models.RunStatusSuccess
	}
	return &res
}
