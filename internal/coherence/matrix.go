package coherence

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
	"groupcoh/internal/cache"
	"groupcoh/internal/chunk"
	"groupcoh/internal/errors"
	"groupcoh/internal/pool"
	"groupcoh/ports"
)

// AllTrueMask includes every (i, j) pair.
func AllTrueMask(rows, cols int) spectral.Mask {
	return spectral.NewMask(rows, cols, true)
}

// BuildMatrix fills the rows(a) x rows(b) x scales coherence tensor. Rows of
// a are split into chunks, one task per chunk; every task reads all of b.
// Cell (i, j) holds the time-averaged phase coherence between subject i of a
// and subject j of b when mask includes it and NaN otherwise.
func BuildMatrix(ctx context.Context, p *pool.Pool, coherer ports.PhaseCoherencePort,
	a, b *cache.Array, freq []float64, fs float64, mask spectral.Mask) (*spectral.Tensor, error) {

	na, scales, samples := a.Shape()
	nb, scalesB, samplesB := b.Shape()
	if scalesB != scales || samplesB != samples {
		return nil, errors.ShapeError(core.NewShapeMismatchError("transforms of B",
			[2]int{scalesB, samplesB}, [2]int{scales, samples}))
	}
	if mask.Rows != na || mask.Cols != nb {
		return nil, errors.ShapeError(core.NewShapeMismatchError("inclusion mask",
			[2]int{mask.Rows, mask.Cols}, [2]int{na, nb}))
	}
	if len(freq) != scales {
		return nil, errors.ShapeError(fmt.Errorf("%w: %d frequencies for %d scales", core.ErrShapeMismatch, len(freq), scales))
	}

	series := coherenceSeries(coherer)
	tensor := spectral.NewTensor(na, nb, scales)
	ranges, err := chunk.Plan(0, na, p.Size())
	if err != nil {
		return nil, err
	}

	tasks := make([]pool.Task, len(ranges))
	for c, r := range ranges {
		tasks[c] = func(ctx context.Context) error {
			for i := r.Start; i < r.End; i++ {
				ti, err := a.Subject(i)
				if err != nil {
					return err
				}
				for j := 0; j < nb; j++ {
					cell := tensor.Cell(i, j)
					if !mask.At(i, j) {
						for s := range cell {
							cell[s] = math.NaN()
						}
						continue
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					tj, err := b.Subject(j)
					if err != nil {
						return err
					}
					coh, err := series(ti, tj, freq, fs)
					if err != nil {
						return fmt.Errorf("chunk %s cell (%d,%d): %w", r, i, j, err)
					}
					if len(coh) != scales {
						return fmt.Errorf("chunk %s cell (%d,%d): %w: %d coherence rows for %d scales",
							r, i, j, core.ErrShapeMismatch, len(coh), scales)
					}
					for s := range cell {
						cell[s] = timeAverage(coh[s])
					}
				}
			}
			return nil
		}
	}

	if err := p.Run(ctx, tasks); err != nil {
		return nil, errors.WorkerFailure("coherence", err)
	}
	return tensor, nil
}

// coherenceSeries picks the cheapest way coherer offers to compute the
// coherence series alone.
func coherenceSeries(coherer ports.PhaseCoherencePort) func(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, error) {
	if c, ok := coherer.(ports.CoherenceSeriesPort); ok {
		return c.Coherence
	}
	return func(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, error) {
		coh, _, err := coherer.PhaseCoherence(a, b, freq, fs)
		return coh, err
	}
}

// timeAverage is the mean of the defined samples of a coherence series.
func timeAverage(series []float64) float64 {
	defined := series
	for _, v := range series {
		if math.IsNaN(v) {
			defined = make([]float64, 0, len(series))
			for _, w := range series {
				if !math.IsNaN(w) {
					defined = append(defined, w)
				}
			}
			break
		}
	}
	if len(defined) == 0 {
		return math.NaN()
	}
	return stat.Mean(defined, nil)
}
