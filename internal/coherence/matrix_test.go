package coherence

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcoh/domain/core"
	"groupcoh/internal/cache"
	"groupcoh/internal/errors"
	"groupcoh/internal/pool"
)

func computeLabelTransforms(t *testing.T, p *pool.Pool, reg *cache.Registry, subjects int) *Transforms {
	t.Helper()
	a := labelGroup(t, subjects, 16)
	b := labelGroup(t, subjects, 16)
	tr, err := ComputeTransforms(context.Background(), p, reg, newLabelTransformer(), a, b, 10, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Release() })
	return tr
}

func TestComputeTransformsFillsEverySubject(t *testing.T) {
	for _, workers := range []int{1, 2, 7} {
		p := pool.New(workers)
		reg := cache.NewRegistry(t.TempDir(), quietLogger())
		fake := newLabelTransformer()

		a := labelGroup(t, 5, 8)
		b := labelGroup(t, 5, 8)
		tr, err := ComputeTransforms(context.Background(), p, reg, fake, a, b, 10, nil)
		require.NoError(t, err)

		assert.Equal(t, []float64{0.5, 1}, tr.Frequencies)
		assert.Equal(t, int64(10), fake.calls.Load(), "each channel of each subject is transformed once")
		for k := 0; k < 5; k++ {
			for _, arr := range []*cache.Array{tr.A, tr.B} {
				sub, err := arr.Subject(k)
				require.NoError(t, err)
				for _, v := range sub.Data {
					require.Equal(t, complex64(complex(float32(k), 0)), v, "workers=%d subject=%d", workers, k)
				}
			}
		}

		require.NoError(t, tr.Release())
		assert.Equal(t, 0, reg.Live())
		p.Close()
	}
}

func TestComputeTransformsFailureReleasesCaches(t *testing.T) {
	p := pool.New(3)
	defer p.Close()
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	fake := newLabelTransformer()
	fake.failAt = 3

	a := labelGroup(t, 5, 8)
	_, err := ComputeTransforms(context.Background(), p, reg, fake, a, labelGroup(t, 5, 8), 10, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeWorkerFailure, errors.GetCode(err))
	assert.Contains(t, err.Error(), "subject 3")
	assert.Equal(t, 0, reg.Live())
}

func TestComputeTransformsFirstSubjectFailure(t *testing.T) {
	p := pool.New(2)
	defer p.Close()
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	fake := newLabelTransformer()
	fake.failAt = 0

	_, err := ComputeTransforms(context.Background(), p, reg, fake, labelGroup(t, 3, 8), labelGroup(t, 3, 8), 10, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), fake.calls.Load(), "nothing runs after subject 0 fails")
	assert.Equal(t, 0, reg.Live())
}

func TestBuildMatrixAllTrue(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		p := pool.New(workers)
		reg := cache.NewRegistry(t.TempDir(), quietLogger())
		tr := computeLabelTransforms(t, p, reg, 4)

		tensor, err := BuildMatrix(context.Background(), p, newLabelCoherer(), tr.A, tr.B, tr.Frequencies, 10, AllTrueMask(4, 4))
		require.NoError(t, err)

		require.Equal(t, 4, tensor.Rows)
		require.Equal(t, 4, tensor.Cols)
		require.Equal(t, 2, tensor.Scales)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				for s := 0; s < 2; s++ {
					assert.InDelta(t, labelValue(i, j, s), tensor.At(i, j, s), 1e-12, "workers=%d cell (%d,%d,%d)", workers, i, j, s)
				}
			}
		}
		p.Close()
	}
}

func TestBuildMatrixPrefersCoherenceSeries(t *testing.T) {
	p := newTestPool(t, 2)
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	tr := computeLabelTransforms(t, p, reg, 3)

	coherer := &seriesCoherer{labelCoherer: labelCoherer{failAt: [2]int{-1, -1}}}
	tensor, err := BuildMatrix(context.Background(), p, coherer, tr.A, tr.B, tr.Frequencies, 10, AllTrueMask(3, 3))
	require.NoError(t, err)
	assert.Zero(t, coherer.full.Load())
	assert.InDelta(t, labelValue(2, 1, 1), tensor.At(2, 1, 1), 1e-12)
}

func TestBuildMatrixMaskedCellsAreNaN(t *testing.T) {
	p := pool.New(2)
	defer p.Close()
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	tr := computeLabelTransforms(t, p, reg, 3)

	mask := AllTrueMask(3, 3)
	mask.Set(0, 2, false)
	mask.Set(2, 1, false)

	tensor, err := BuildMatrix(context.Background(), p, newLabelCoherer(), tr.A, tr.B, tr.Frequencies, 10, mask)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for s := 0; s < 2; s++ {
				v := tensor.At(i, j, s)
				if mask.At(i, j) {
					assert.False(t, math.IsNaN(v), "cell (%d,%d) should be computed", i, j)
				} else {
					assert.True(t, math.IsNaN(v), "cell (%d,%d) should be NaN", i, j)
				}
			}
		}
	}
}

func TestBuildMatrixFailurePropagates(t *testing.T) {
	p := pool.New(2)
	defer p.Close()
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	tr := computeLabelTransforms(t, p, reg, 3)

	coherer := newLabelCoherer()
	coherer.failAt = [2]int{2, 0}

	_, err := BuildMatrix(context.Background(), p, coherer, tr.A, tr.B, tr.Frequencies, 10, AllTrueMask(3, 3))
	require.Error(t, err)
	assert.Equal(t, errors.CodeWorkerFailure, errors.GetCode(err))
	assert.Contains(t, err.Error(), "cell (2,0)")
}

func TestBuildMatrixRejectsMismatchedMask(t *testing.T) {
	p := pool.New(2)
	defer p.Close()
	reg := cache.NewRegistry(t.TempDir(), quietLogger())
	tr := computeLabelTransforms(t, p, reg, 3)

	_, err := BuildMatrix(context.Background(), p, newLabelCoherer(), tr.A, tr.B, tr.Frequencies, 10, AllTrueMask(3, 2))
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	_, err = BuildMatrix(context.Background(), p, newLabelCoherer(), tr.A, tr.B, []float64{1}, 10, AllTrueMask(3, 3))
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestTimeAverageSkipsNaN(t *testing.T) {
	assert.InDelta(t, 0.5, timeAverage([]float64{0.25, 0.75}), 1e-12)
	assert.InDelta(t, 0.5, timeAverage([]float64{math.NaN(), 0.25, 0.75}), 1e-12)
	assert.True(t, math.IsNaN(timeAverage([]float64{math.NaN()})))
}
