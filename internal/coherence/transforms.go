package coherence

import (
	"context"
	"fmt"

	"groupcoh/domain/core"
	"groupcoh/domain/signal"
	"groupcoh/internal/cache"
	"groupcoh/internal/chunk"
	"groupcoh/internal/errors"
	"groupcoh/internal/pool"
	"groupcoh/ports"
)

// Transforms holds the wavelet transforms of both channel groups of a run.
type Transforms struct {
	A, B        *cache.Array
	Frequencies []float64
}

// Release frees both cache arrays.
func (t *Transforms) Release() error {
	errA := t.A.Release()
	errB := t.B.Release()
	if errA != nil {
		return errA
	}
	return errB
}

// ComputeTransforms transforms every subject of a and b into cache arrays
// allocated from reg. Subject 0 of each group is transformed first on the
// calling goroutine to learn the output shape; the remaining subjects are
// split into chunks and transformed on p, each task writing its own rows of
// both arrays. On error nothing is returned and the arrays are released.
func ComputeTransforms(ctx context.Context, p *pool.Pool, reg *cache.Registry, tr ports.WaveletTransformerPort,
	a, b signal.Group, fs float64, opts ports.WaveletOptions) (*Transforms, error) {

	n := a.Subjects()
	if b.Subjects() != n || b.Samples() != a.Samples() {
		return nil, errors.ShapeError(core.NewShapeMismatchError("channel groups", b.Shape(), a.Shape()))
	}
	if n < 1 {
		return nil, errors.ShapeError(core.ErrInsufficientSubjects)
	}

	first, freq, err := tr.Transform(a.Row(0), fs, opts)
	if err != nil {
		return nil, errors.Wrapc(codeFor(err), err, "transform of subject 0 (channel A) failed")
	}
	firstB, _, err := tr.Transform(b.Row(0), fs, opts)
	if err != nil {
		return nil, errors.Wrapc(codeFor(err), err, "transform of subject 0 (channel B) failed")
	}
	if !firstB.SameShape(first) {
		return nil, errors.ShapeError(core.NewShapeMismatchError("channel B transform",
			[2]int{firstB.Scales, firstB.Samples}, [2]int{first.Scales, first.Samples}))
	}

	cacheA, err := reg.Allocate(n, first.Scales, first.Samples)
	if err != nil {
		return nil, err
	}
	cacheB, err := reg.Allocate(n, first.Scales, first.Samples)
	if err != nil {
		_ = cacheA.Release()
		return nil, err
	}
	out := &Transforms{A: cacheA, B: cacheB, Frequencies: freq}

	if err := cacheA.Set(0, first); err != nil {
		_ = out.Release()
		return nil, errors.CacheError("failed to store subject 0", err)
	}
	if err := cacheB.Set(0, firstB); err != nil {
		_ = out.Release()
		return nil, errors.CacheError("failed to store subject 0", err)
	}

	if n > 1 {
		ranges, err := chunk.Plan(1, n, p.Size())
		if err != nil {
			_ = out.Release()
			return nil, err
		}

		tasks := make([]pool.Task, len(ranges))
		for c, r := range ranges {
			tasks[c] = func(ctx context.Context) error {
				for i := r.Start; i < r.End; i++ {
					if err := ctx.Err(); err != nil {
						return err
					}
					if err := transformInto(tr, cacheA, i, a.Row(i), fs, opts); err != nil {
						return fmt.Errorf("chunk %s subject %d channel A: %w", r, i, err)
					}
					if err := transformInto(tr, cacheB, i, b.Row(i), fs, opts); err != nil {
						return fmt.Errorf("chunk %s subject %d channel B: %w", r, i, err)
					}
				}
				return nil
			}
		}

		if err := p.Run(ctx, tasks); err != nil {
			_ = out.Release()
			return nil, errors.WorkerFailure("transform", err)
		}
	}
	return out, nil
}

func transformInto(tr ports.WaveletTransformerPort, dst *cache.Array, i int, sig []float64, fs float64, opts ports.WaveletOptions) error {
	t, _, err := tr.Transform(sig, fs, opts)
	if err != nil {
		return err
	}
	return dst.Set(i, t)
}
