package coherence

import (
	"fmt"
	"math"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
)

// ResidualCoherence turns a square coherence tensor into one corrected
// spectrum per subject. The diagonal holds each subject's real coherence;
// every off-diagonal cell in row k or column k is a surrogate for subject k.
// The residual is real coherence minus the per-scale percentile of those
// surrogates, clipped at zero. A scale with no surrogates subtracts nothing.
//
// The tensor is consumed: its diagonal is overwritten with NaN.
func ResidualCoherence(tensor *spectral.Tensor, percentile float64) (*spectral.Residual, error) {
	if math.IsNaN(percentile) || percentile < 0 || percentile > 100 {
		return nil, fmt.Errorf("%w: got %g", core.ErrInvalidPercentile, percentile)
	}
	if tensor.Rows != tensor.Cols {
		return nil, core.NewShapeMismatchError("coherence tensor", [2]int{tensor.Rows, tensor.Cols}, [2]int{tensor.Rows, tensor.Rows})
	}

	n, scales := tensor.Rows, tensor.Scales
	residual := spectral.NewResidual(n, scales)
	for k := 0; k < n; k++ {
		copy(residual.Subject(k), tensor.Cell(k, k))
		diag := tensor.Cell(k, k)
		for s := range diag {
			diag[s] = math.NaN()
		}
	}

	buf := make([]float64, 0, 2*n)
	for k := 0; k < n; k++ {
		res := residual.Subject(k)
		for s := 0; s < scales; s++ {
			buf = buf[:0]
			for j := 0; j < n; j++ {
				if v := tensor.At(k, j, s); !math.IsNaN(v) {
					buf = append(buf, v)
				}
			}
			for i := 0; i < n; i++ {
				if v := tensor.At(i, k, s); !math.IsNaN(v) {
					buf = append(buf, v)
				}
			}

			threshold := percentileInPlace(buf, percentile)
			if math.IsNaN(threshold) {
				threshold = 0
			}
			res[s] -= threshold
			if res[s] < 0 {
				res[s] = 0
			}
		}
	}
	return residual, nil
}
