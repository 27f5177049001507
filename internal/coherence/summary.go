package coherence

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"groupcoh/domain/spectral"
)

// Summary aggregates a group's residual coherence across subjects, one value
// per frequency.
type Summary struct {
	Mean   []float64 `json:"mean"`
	Median []float64 `json:"median"`
	Std    []float64 `json:"std"`
}

// Summarize computes the per-frequency mean, median and (population) standard
// deviation of residual over its subjects.
func Summarize(residual *spectral.Residual) (Summary, error) {
	sum := Summary{
		Mean:   make([]float64, residual.Scales),
		Median: make([]float64, residual.Scales),
		Std:    make([]float64, residual.Scales),
	}
	for s := 0; s < residual.Scales; s++ {
		data := stats.Float64Data(residual.Column(s))

		mean, err := stats.Mean(data)
		if err != nil {
			return Summary{}, fmt.Errorf("scale %d mean: %w", s, err)
		}
		median, err := stats.Median(data)
		if err != nil {
			return Summary{}, fmt.Errorf("scale %d median: %w", s, err)
		}
		std, err := stats.StandardDeviation(data)
		if err != nil {
			return Summary{}, fmt.Errorf("scale %d std: %w", s, err)
		}
		sum.Mean[s], sum.Median[s], sum.Std[s] = mean, median, std
	}
	return sum, nil
}
