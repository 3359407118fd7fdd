// ABOUTME: Batch mutation handlers looping single-item handlers over specs
// ABOUTME: A failed item aborts the batch and reports the failing index
package dispatch

import (
	"context"

	"github.com/florinutz/narra/internal/narraerr"
)

// batchResult summarizes one completed batch
type batchResult struct {
	Created int   `json:"created"`
	Items   []any `json:"items"`
}

// batch wraps a single-item handler into one that consumes an "items"
// list. Items run in order; the first error aborts the batch.
func (d *Dispatcher) batch(item handler) handler {
	return func(ctx context.Context, c *call) (any, []string, []string, error) {
		items := c.params.subs("items")
		if len(items) == 0 {
			return nil, nil, nil, narraerr.Validation("missing required parameter \"items\"")
		}

		result := &batchResult{Items: make([]any, 0, len(items))}
		var accessed, hints []string
		for i, p := range items {
			sub := &call{params: p, detail: c.detail, budget: c.budget}
			out, ids, h, err := item(ctx, sub)
			if err != nil {
				return nil, nil, nil, narraerr.Wrap(narraerr.KindOf(err), err, "batch item %d failed", i)
			}
			result.Items = append(result.Items, out)
			result.Created++
			accessed = append(accessed, ids...)
			hints = append(hints, h...)
		}
		return result, accessed, hints, nil
	}
}
