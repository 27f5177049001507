package coherence

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"groupcoh/domain/signal"
	"groupcoh/domain/spectral"
	"groupcoh/internal"
	"groupcoh/internal/config"
	"groupcoh/internal/pool"
	"groupcoh/ports"
)

// labelTransformer encodes the first sample of a signal (the subject label in
// these tests) into every coefficient of a two-scale transform.
type labelTransformer struct {
	failAt float64 // subject label that fails, negative for none
	calls  atomic.Int64
}

func newLabelTransformer() *labelTransformer {
	return &labelTransformer{failAt: -1}
}

func (f *labelTransformer) Transform(sig []float64, fs float64, opts ports.WaveletOptions) (spectral.Transform, []float64, error) {
	f.calls.Add(1)
	if sig[0] == f.failAt {
		return spectral.Transform{}, nil, fmt.Errorf("synthetic failure for subject %g", sig[0])
	}
	t := spectral.NewTransform(2, len(sig))
	for i := range t.Data {
		t.Data[i] = complex(float32(sig[0]), 0)
	}
	return t, []float64{0.5, 1}, nil
}

// lengthAxisTransformer behaves like labelTransformer but its frequency axis
// depends on the signal length whatever the options say.
type lengthAxisTransformer struct {
	labelTransformer
}

func (f *lengthAxisTransformer) Transform(sig []float64, fs float64, opts ports.WaveletOptions) (spectral.Transform, []float64, error) {
	t, _, err := f.labelTransformer.Transform(sig, fs, opts)
	return t, []float64{1 / float64(len(sig)), 1}, err
}

// labelCoherer returns (10i + j)/100 + s for the labels i and j carried by
// the two transforms.
type labelCoherer struct {
	failAt [2]int // (i, j) pair that fails, {-1, -1} for none
}

func newLabelCoherer() *labelCoherer {
	return &labelCoherer{failAt: [2]int{-1, -1}}
}

func (f *labelCoherer) PhaseCoherence(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, [][]float64, error) {
	i, j := int(real(a.Data[0])), int(real(b.Data[0]))
	if i == f.failAt[0] && j == f.failAt[1] {
		return nil, nil, fmt.Errorf("synthetic failure for cell (%d,%d)", i, j)
	}
	coh := make([][]float64, a.Scales)
	for s := range coh {
		coh[s] = make([]float64, a.Samples)
		for t := range coh[s] {
			coh[s][t] = labelValue(i, j, s)
		}
	}
	return coh, nil, nil
}

// seriesCoherer offers the coherence-only method and fails if the full
// PhaseCoherence is used.
type seriesCoherer struct {
	labelCoherer
	full atomic.Int64
}

func (f *seriesCoherer) PhaseCoherence(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, [][]float64, error) {
	f.full.Add(1)
	return nil, nil, fmt.Errorf("phase difference not wanted")
}

func (f *seriesCoherer) Coherence(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, error) {
	coh, _, err := f.labelCoherer.PhaseCoherence(a, b, freq, fs)
	return coh, err
}

func labelValue(i, j, s int) float64 {
	return float64(10*i+j)/100 + float64(s)
}

// labelGroup returns a subjects x samples group whose row k is all k.
func labelGroup(t *testing.T, subjects, samples int) signal.Group {
	t.Helper()
	rows := make([][]float64, subjects)
	for k := range rows {
		rows[k] = make([]float64, samples)
		for i := range rows[k] {
			rows[k][i] = float64(k)
		}
	}
	g, err := signal.NewGroup(rows)
	require.NoError(t, err)
	return g
}

func quietLogger() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

func testEngineConfig(t *testing.T, workers int) config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.Workers = workers
	cfg.CacheDir = t.TempDir()
	return cfg
}

func newTestPool(t *testing.T, size int) *pool.Pool {
	p := pool.New(size)
	t.Cleanup(p.Close)
	return p
}

func groupFromRows(rows [][]float64) (signal.Group, error) {
	return signal.NewGroup(rows)
}
