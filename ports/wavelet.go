package ports

import (
	"groupcoh/domain/spectral"
)

// WaveletOptions is an opaque configuration bag forwarded verbatim from the
// caller to the transform implementation.
type WaveletOptions map[string]interface{}

// WaveletOptionFmin is the key of the lowest analysed frequency. A dual run
// sets it to give groups of different lengths one frequency axis.
const WaveletOptionFmin = "fmin"

// WaveletTransformerPort turns one signal into a scales x samples complex
// transform and its frequency axis.
type WaveletTransformerPort interface {
	Transform(signal []float64, fs float64, opts WaveletOptions) (spectral.Transform, []float64, error)
}

// PhaseCoherencePort measures phase locking between two transforms of equal
// shape. It returns a scales x samples coherence series and the matching
// phase difference; freq and fs describe the transforms' scale axis.
type PhaseCoherencePort interface {
	PhaseCoherence(a, b spectral.Transform, freq []float64, fs float64) (coherence [][]float64, phaseDiff [][]float64, err error)
}

// CoherenceSeriesPort is the coherence half of PhaseCoherencePort for callers
// that discard the phase difference. BuildMatrix uses it when the coherer
// implements it.
type CoherenceSeriesPort interface {
	Coherence(a, b spectral.Transform, freq []float64, fs float64) ([][]float64, error)
}
