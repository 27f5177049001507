package coherence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
)

// tensorOf builds a one-scale tensor from a square matrix.
func tensorOf(m [][]float64) *spectral.Tensor {
	t := spectral.NewTensor(len(m), len(m), 1)
	for i := range m {
		for j := range m[i] {
			t.Cell(i, j)[0] = m[i][j]
		}
	}
	return t
}

var handMatrix = [][]float64{
	{0.9, 0.1, 0.2},
	{0.3, 0.8, 0.4},
	{0.5, 0.6, 0.7},
}

func TestResidualCoherenceByHand(t *testing.T) {
	tests := []struct {
		name       string
		percentile float64
		want       []float64
	}{
		// subject 0 sees {0.1, 0.2, 0.3, 0.5}, 1 sees {0.3, 0.4, 0.1, 0.6}, 2 sees {0.5, 0.6, 0.2, 0.4}
		{"median", 50, []float64{0.65, 0.45, 0.25}},
		{"maximum", 100, []float64{0.4, 0.2, 0.1}},
		{"minimum", 0, []float64{0.8, 0.7, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResidualCoherence(tensorOf(handMatrix), tt.percentile)
			require.NoError(t, err)
			require.Equal(t, 3, res.Subjects)
			require.Equal(t, 1, res.Scales)
			assert.InDeltaSlice(t, tt.want, res.Column(0), 1e-12)
		})
	}
}

func TestResidualCoherenceSkipsUndefinedSurrogates(t *testing.T) {
	nan := math.NaN()
	m := [][]float64{
		{0.9, nan, 0.2},
		{0.3, 0.8, 0.4},
		{0.5, 0.6, 0.7},
	}
	res, err := ResidualCoherence(tensorOf(m), 100)
	require.NoError(t, err)

	// subject 0 sees {0.2, 0.3, 0.5}, subject 1 sees {0.3, 0.4, 0.6}
	assert.InDelta(t, 0.4, res.Subject(0)[0], 1e-12)
	assert.InDelta(t, 0.2, res.Subject(1)[0], 1e-12)
}

func TestResidualCoherenceClipsAtZero(t *testing.T) {
	m := [][]float64{
		{0.05, 0.1, 0.2},
		{0.3, 0.8, 0.4},
		{0.5, 0.6, 0.7},
	}
	res, err := ResidualCoherence(tensorOf(m), 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Subject(0)[0])
}

func TestResidualCoherenceWithoutSurrogates(t *testing.T) {
	tensor := spectral.NewTensor(2, 2, 3)
	copy(tensor.Cell(0, 0), []float64{0.4, 0.5, 0.6})
	copy(tensor.Cell(1, 1), []float64{0.7, 0.8, 0.9})

	res, err := ResidualCoherence(tensor, 95)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.5, 0.6}, res.Subject(0))
	assert.Equal(t, []float64{0.7, 0.8, 0.9}, res.Subject(1))
}

func TestResidualCoherenceConsumesDiagonal(t *testing.T) {
	tensor := tensorOf(handMatrix)
	_, err := ResidualCoherence(tensor, 95)
	require.NoError(t, err)

	for k := 0; k < 3; k++ {
		assert.True(t, math.IsNaN(tensor.At(k, k, 0)), "diagonal %d not cleared", k)
	}
	assert.Equal(t, 0.1, tensor.At(0, 1, 0))
}

func TestResidualCoherenceBoundedByRealCoherence(t *testing.T) {
	for _, p := range []float64{0, 25, 50, 95, 100} {
		res, err := ResidualCoherence(tensorOf(handMatrix), p)
		require.NoError(t, err)
		for k := 0; k < 3; k++ {
			v := res.Subject(k)[0]
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, handMatrix[k][k])
		}
	}
}

func TestResidualCoherenceRejectsBadInput(t *testing.T) {
	_, err := ResidualCoherence(tensorOf(handMatrix), 101)
	assert.ErrorIs(t, err, core.ErrInvalidPercentile)

	_, err = ResidualCoherence(tensorOf(handMatrix), math.NaN())
	assert.ErrorIs(t, err, core.ErrInvalidPercentile)

	_, err = ResidualCoherence(spectral.NewTensor(2, 3, 1), 95)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}
