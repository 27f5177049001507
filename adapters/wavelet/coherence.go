package wavelet

import (
	"fmt"
	"math"
	"math/cmplx"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
)

// PhaseCoherence computes time-localized wavelet phase coherence between two
// transforms: at every scale and sample, the length of the mean unit phasor
// exp(i(phi_a - phi_b)) over a window of a.cycles periods centred on that
// sample. Samples where either coefficient is zero carry no phase and are
// skipped; a window with no usable samples yields NaN.
func (a *Adapter) PhaseCoherence(x, y spectral.Transform, freq []float64, fs float64) ([][]float64, [][]float64, error) {
	return a.coherence(x, y, freq, fs, true)
}

// Coherence is PhaseCoherence without the phase difference.
func (a *Adapter) Coherence(x, y spectral.Transform, freq []float64, fs float64) ([][]float64, error) {
	coh, _, err := a.coherence(x, y, freq, fs, false)
	return coh, err
}

func (a *Adapter) coherence(x, y spectral.Transform, freq []float64, fs float64, withDiff bool) ([][]float64, [][]float64, error) {
	if !x.SameShape(y) {
		return nil, nil, fmt.Errorf("%w: transforms are %dx%d and %dx%d", core.ErrShapeMismatch,
			x.Scales, x.Samples, y.Scales, y.Samples)
	}
	if len(freq) != x.Scales {
		return nil, nil, fmt.Errorf("%w: %d frequencies for %d scales", core.ErrShapeMismatch, len(freq), x.Scales)
	}

	n := x.Samples
	coh := make([][]float64, x.Scales)
	var diff [][]float64
	if withDiff {
		diff = make([][]float64, x.Scales)
	}

	// Prefix sums of the unit phasor and of the usable-sample count.
	re := make([]float64, n+1)
	im := make([]float64, n+1)
	cnt := make([]float64, n+1)

	for s := 0; s < x.Scales; s++ {
		xs, ys := x.Row(s), y.Row(s)
		for t := 0; t < n; t++ {
			re[t+1], im[t+1], cnt[t+1] = re[t], im[t], cnt[t]
			p := complex128(xs[t]) * cmplx.Conj(complex128(ys[t]))
			m := cmplx.Abs(p)
			if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
				continue
			}
			re[t+1] += real(p) / m
			im[t+1] += imag(p) / m
			cnt[t+1]++
		}

		half := n
		if a.cycles > 0 && freq[s] > 0 && fs > 0 {
			half = int(math.Round(a.cycles * fs / freq[s] / 2))
		}

		coh[s] = make([]float64, n)
		if withDiff {
			diff[s] = make([]float64, n)
		}
		for t := 0; t < n; t++ {
			lo, hi := t-half, t+half+1
			if lo < 0 {
				lo = 0
			}
			if hi > n {
				hi = n
			}
			c := cnt[hi] - cnt[lo]
			if c == 0 {
				coh[s][t] = math.NaN()
				if withDiff {
					diff[s][t] = math.NaN()
				}
				continue
			}
			sr, si := re[hi]-re[lo], im[hi]-im[lo]
			coh[s][t] = math.Hypot(sr, si) / c
			if withDiff {
				diff[s][t] = math.Atan2(si, sr)
			}
		}
	}
	return coh, diff, nil
}
