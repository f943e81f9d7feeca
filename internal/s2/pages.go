package s2

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
)

// Citations lists papers citing paperID, one page per step.
func (c *Client) Citations(ctx context.Context, paperID string, mode PageMode) iter.Seq2[*Page, error] {
	return c.pages(ctx, paperID, citationsKind, mode)
}

// References lists papers cited by paperID, one page per step.
func (c *Client) References(ctx context.Context, paperID string, mode PageMode) iter.Seq2[*Page, error] {
	return c.pages(ctx, paperID, referencesKind, mode)
}

// pages returns a single-use sequence over a paginated listing.
//
// Pages with records are yielded as (page, nil). A failed page is yielded as
// (nil, err) and the walk moves on to the next offset; it ends after
// MaxConsecutivePageFailures failures in a row. The walk also ends on the
// first empty page, at MaxOffset, when the consumer stops, or when ctx is
// done. Empty pages are never yielded.
func (c *Client) pages(ctx context.Context, paperID string, kind edgeKind, mode PageMode) iter.Seq2[*Page, error] {
	var used atomic.Bool

	return func(yield func(*Page, error) bool) {
		if used.Swap(true) {
			return
		}

		offset, failures := 0, 0
		for offset < MaxOffset {
			if ctx.Err() != nil {
				return
			}

			limit := min(c.pageSize, MaxOffset-offset)
			page, err := c.fetchEdgePage(ctx, paperID, kind, offset, limit)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				c.logger.Warn("page fetch failed, skipping",
					"paper_id", paperID, "kind", string(kind), "offset", offset,
					"consecutive_failures", failures, "error", err)

				if !yield(nil, fmt.Errorf("%s of %s at offset %d: %w", kind, paperID, offset, err)) {
					return
				}
				if mode == FirstPageOnly || failures >= MaxConsecutivePageFailures {
					return
				}
				offset += limit
				continue
			}

			failures = 0
			if len(page.Data) == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			if mode == FirstPageOnly {
				return
			}
			offset += limit
		}
	}
}
