package wavelet

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
	"groupcoh/ports"
)

func meanFinite(row []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range row {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	return sum / float64(n)
}

func TestPhaseCoherenceOfIdenticalTransforms(t *testing.T) {
	a := NewAdapter()
	tr, freq, err := a.Transform(sinusoid(600, 10, 1, 0), 10, Options{OptVoices: 4})
	require.NoError(t, err)

	coh, diff, err := a.PhaseCoherence(tr, tr, freq, 10)
	require.NoError(t, err)
	require.Len(t, coh, tr.Scales)

	for s := range coh {
		require.Len(t, coh[s], tr.Samples)
		for i, v := range coh[s] {
			if math.IsNaN(v) {
				continue
			}
			assert.InDelta(t, 1.0, v, 1e-6, "scale %d sample %d", s, i)
			assert.InDelta(t, 0.0, diff[s][i], 1e-6)
		}
	}
}

func TestCoherenceMatchesPhaseCoherence(t *testing.T) {
	var _ ports.CoherenceSeriesPort = (*Adapter)(nil)

	a := NewAdapter()
	x, freq, err := a.Transform(sinusoid(500, 10, 1, 0), 10, Options{OptVoices: 2})
	require.NoError(t, err)
	y, _, err := a.Transform(sinusoid(500, 10, 1.1, 0.4), 10, Options{OptVoices: 2})
	require.NoError(t, err)

	full, _, err := a.PhaseCoherence(x, y, freq, 10)
	require.NoError(t, err)
	series, err := a.Coherence(x, y, freq, 10)
	require.NoError(t, err)
	require.Len(t, series, len(full))
	for s := range full {
		require.Len(t, series[s], len(full[s]))
		for i, v := range full[s] {
			if math.IsNaN(v) {
				assert.True(t, math.IsNaN(series[s][i]))
				continue
			}
			assert.Equal(t, v, series[s][i], "scale %d sample %d", s, i)
		}
	}

	_, err = a.Coherence(x, spectral.NewTransform(1, 3), freq, 10)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestPhaseCoherenceRecoversConstantLag(t *testing.T) {
	a := NewAdapter()
	fs := 20.0
	x, freq, err := a.Transform(sinusoid(1000, fs, 1, 0), fs, Options{OptVoices: 8, OptFmin: 0.25})
	require.NoError(t, err)
	y, _, err := a.Transform(sinusoid(1000, fs, 1, -math.Pi/3), fs, Options{OptVoices: 8, OptFmin: 0.25})
	require.NoError(t, err)

	coh, diff, err := a.PhaseCoherence(x, y, freq, fs)
	require.NoError(t, err)

	s := nearest(freq, 1)
	assert.Greater(t, meanFinite(coh[s]), 0.99)
	assert.InDelta(t, math.Pi/3, diff[s][500], 0.05)
}

func TestPhaseCoherenceOfIndependentNoiseIsLow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	noise := func() []float64 {
		out := make([]float64, 2000)
		for i := range out {
			out[i] = rng.NormFloat64()
		}
		return out
	}

	a := NewAdapter()
	fs := 10.0
	x, freq, err := a.Transform(noise(), fs, Options{OptVoices: 4, OptFmin: 0.5})
	require.NoError(t, err)
	y, _, err := a.Transform(noise(), fs, Options{OptVoices: 4, OptFmin: 0.5})
	require.NoError(t, err)

	coh, _, err := a.PhaseCoherence(x, y, freq, fs)
	require.NoError(t, err)

	// Windows of ten cycles of noise leave a phasor mean well below one.
	assert.Less(t, meanFinite(coh[len(coh)-1]), 0.6)
}

func TestPhaseCoherenceWholeRecordWindow(t *testing.T) {
	a := NewAdapter(WithCoherenceCycles(0))

	x := spectral.NewTransform(1, 4)
	y := spectral.NewTransform(1, 4)
	copy(x.Data, []complex64{1, 1, 1, 1})
	copy(y.Data, []complex64{1, 1i, 1, 0})

	coh, _, err := a.PhaseCoherence(x, y, []float64{1}, 1)
	require.NoError(t, err)

	// Usable phasors: 1, -i, 1; the zero coefficient is skipped.
	want := math.Hypot(2, -1) / 3
	for _, v := range coh[0] {
		assert.InDelta(t, want, v, 1e-6)
	}
}

func TestPhaseCoherenceAllZeroIsNaN(t *testing.T) {
	a := NewAdapter()
	z := spectral.NewTransform(1, 3)
	coh, diff, err := a.PhaseCoherence(z, z, []float64{1}, 1)
	require.NoError(t, err)
	for i := range coh[0] {
		assert.True(t, math.IsNaN(coh[0][i]))
		assert.True(t, math.IsNaN(diff[0][i]))
	}
}

func TestPhaseCoherenceRejectsMismatchedShapes(t *testing.T) {
	a := NewAdapter()
	_, _, err := a.PhaseCoherence(spectral.NewTransform(2, 4), spectral.NewTransform(2, 5), []float64{1, 2}, 1)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	_, _, err = a.PhaseCoherence(spectral.NewTransform(2, 4), spectral.NewTransform(2, 4), []float64{1}, 1)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}
