// Package chunk splits a range of subject indices into contiguous pieces, one
// per parallel worker.
package chunk

import (
	"fmt"

	"groupcoh/domain/core"
)

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Plan splits [start, end) into at most workers contiguous, non-empty,
// ascending ranges whose sizes differ by at most one. The leading ranges take
// the extra element when the split is uneven. Fewer ranges than workers are
// returned when there are fewer indices than workers.
func Plan(start, end, workers int) ([]Range, error) {
	n := end - start
	if n < 1 || workers < 1 {
		return nil, fmt.Errorf("%w: %d indices, %d workers", core.ErrInvalidChunking, n, workers)
	}
	if workers > n {
		workers = n
	}

	size, extra := n/workers, n%workers
	ranges := make([]Range, 0, workers)
	for i, lo := 0, start; i < workers; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		ranges = append(ranges, Range{Start: lo, End: hi})
		lo = hi
	}
	return ranges, nil
}
