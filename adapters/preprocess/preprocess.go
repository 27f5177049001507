// Package preprocess conditions raw recordings before coherence analysis:
// a cubic trend is removed by least squares and the result is band-passed in
// the frequency domain.
package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"groupcoh/domain/core"
	"groupcoh/domain/signal"
)

const trendOrder = 3

// Signal detrends sig and keeps only the frequencies strictly between
// max(fmin, fs/len(sig)) and fmax. A non-positive fmin means 0 and a
// non-positive fmax means fs/2.
func Signal(sig []float64, fs, fmin, fmax float64) ([]float64, error) {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return nil, core.ErrInvalidSampleRate
	}
	if len(sig) <= trendOrder {
		return nil, fmt.Errorf("%w: detrending needs more than %d samples, got %d", core.ErrShape, trendOrder, len(sig))
	}
	if fmin < 0 {
		fmin = 0
	}
	if fmax <= 0 {
		fmax = fs / 2
	}
	if fmax > fs/2 {
		return nil, core.NewOptionError("fmax", fmax)
	}
	if fmin >= fmax {
		return nil, core.NewOptionError("fmin", fmin)
	}

	detrended, err := detrend(sig, fs)
	if err != nil {
		return nil, err
	}
	return bandPass(detrended, fs, fmin, fmax), nil
}

// Group preprocesses every subject of g.
func Group(g signal.Group, fs, fmin, fmax float64) (signal.Group, error) {
	return g.Map(func(row []float64) ([]float64, error) {
		return Signal(row, fs, fmin, fmax)
	})
}

// detrend subtracts the least-squares fit of a cubic in time. The powers of
// time are standardized so the design matrix stays well conditioned.
func detrend(sig []float64, fs float64) ([]float64, error) {
	n := len(sig)
	design := mat.NewDense(n, trendOrder+1, nil)

	t := make([]float64, n)
	power := make([]float64, n)
	for i := range t {
		t[i] = float64(i+1) / fs
		design.Set(i, 0, 1)
	}
	for p := 1; p <= trendOrder; p++ {
		for i := range power {
			power[i] = math.Pow(t[i], float64(p))
		}
		mean, std := stat.PopMeanStdDev(power, nil)
		for i, v := range power {
			design.Set(i, p, (v-mean)/std)
		}
	}

	y := mat.NewVecDense(n, append([]float64(nil), sig...))
	var beta mat.VecDense
	if err := beta.SolveVec(design, y); err != nil {
		return nil, fmt.Errorf("trend fit failed: %w", err)
	}

	var trend mat.VecDense
	trend.MulVec(design, &beta)

	out := make([]float64, n)
	for i := range out {
		out[i] = sig[i] - trend.AtVec(i)
	}
	return out, nil
}

// bandPass zeroes every Fourier bin at or below max(fmin, fs/n) and at or
// above fmax.
func bandPass(sig []float64, fs, fmin, fmax float64) []float64 {
	n := len(sig)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, sig)

	low := math.Max(fmin, fs/float64(n))
	for k := range coeffs {
		f := float64(k) * fs / float64(n)
		if f <= low || f >= fmax {
			coeffs[k] = 0
		}
	}

	out := fft.Sequence(nil, coeffs)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}
