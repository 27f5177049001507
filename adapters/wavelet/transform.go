// Package wavelet implements the continuous wavelet transform and wavelet
// phase coherence used by the group coherence engine.
//
// The transform uses an analytic Morlet wavelet evaluated directly in the
// frequency domain: one forward FFT of the (optionally zero padded) signal,
// then one inverse FFT per analysed frequency. Frequencies are log spaced
// with a fixed number of voices per octave, lowest first.
package wavelet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
	"groupcoh/ports"
)

// Options is the pass-through configuration bag accepted by Transform.
type Options = ports.WaveletOptions

// DefaultCoherenceCycles is the width, in cycles of the analysed frequency, of
// the sliding window used for time-localized phase coherence.
const DefaultCoherenceCycles = 10

// Adapter implements ports.WaveletTransformerPort and both coherence ports.
// It holds no mutable state and is safe for concurrent use.
type Adapter struct {
	cycles float64
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithCoherenceCycles sets the phase coherence window in cycles. Zero or a
// negative value averages over the whole record instead.
func WithCoherenceCycles(cycles float64) AdapterOption {
	return func(a *Adapter) { a.cycles = cycles }
}

// NewAdapter creates a wavelet adapter.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{cycles: DefaultCoherenceCycles}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Transform computes the wavelet transform of signal sampled at fs.
func (a *Adapter) Transform(signal []float64, fs float64, opts Options) (spectral.Transform, []float64, error) {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return spectral.Transform{}, nil, core.ErrInvalidSampleRate
	}
	n := len(signal)
	if n < 2 {
		return spectral.Transform{}, nil, core.ErrEmptySignal
	}
	if floats.HasNaN(signal) || math.IsInf(floats.Max(signal), 1) || math.IsInf(floats.Min(signal), -1) {
		return spectral.Transform{}, nil, core.ErrNonFiniteSample
	}

	p, err := parseOptions(opts, fs, n)
	if err != nil {
		return spectral.Transform{}, nil, err
	}
	freq := frequencies(p)

	length := n
	if p.padding == "zero" {
		length = nextPow2(2 * n)
	}

	padded := make([]float64, length)
	mean := stat.Mean(signal, nil)
	for i, v := range signal {
		padded[i] = v - mean
	}

	coeffs := fourier.NewFFT(length).Coefficients(nil, padded)
	inverse := fourier.NewCmplxFFT(length)

	out := spectral.NewTransform(len(freq), n)
	spectrum := make([]complex128, length)
	series := make([]complex128, length)
	omega0 := 2 * math.Pi * p.f0
	scale := 2 / float64(length)

	for s, f := range freq {
		for k := range spectrum {
			spectrum[k] = 0
		}
		// Positive frequencies only; the DC bin is dropped with the mean.
		for k := 1; k < len(coeffs); k++ {
			r := float64(k)*fs/float64(length)/f - 1
			psi := math.Exp(-omega0 * omega0 * r * r / 2)
			if psi < 1e-12 {
				continue
			}
			spectrum[k] = coeffs[k] * complex(scale*psi, 0)
		}
		inverse.Sequence(series, spectrum)

		row := out.Row(s)
		for t := range row {
			row[t] = complex64(series[t])
		}
	}
	return out, freq, nil
}

// frequencies returns the analysed frequency axis, ascending, nv per octave.
func frequencies(p params) []float64 {
	octaves := math.Log2(p.fmax / p.fmin)
	count := int(math.Floor(float64(p.voices)*octaves)) + 1
	if count == 1 {
		return []float64{p.fmin}
	}
	top := p.fmin * math.Pow(2, float64(count-1)/float64(p.voices))
	return floats.LogSpan(make([]float64, count), p.fmin, top)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (a *Adapter) String() string {
	return fmt.Sprintf("morlet(cycles=%g)", a.cycles)
}
