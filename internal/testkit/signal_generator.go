package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"groupcoh/domain/signal"
)

// SignalGeneratorConfig configures the synthetic two-channel group generator
type SignalGeneratorConfig struct {
	Subjects   int     `json:"subjects"`
	Samples    int     `json:"samples"`
	Fs         float64 `json:"fs"`
	Frequency  float64 `json:"frequency"`   // shared oscillation, Hz
	PhaseDrift float64 `json:"phase_drift"` // random-walk step of the phase, radians per sample
	Noise      float64 `json:"noise"`       // additive white noise standard deviation
	Coupled    []bool  `json:"coupled"`     // per subject; nil means every subject is coupled
	Seed       int64   `json:"seed"`
}

// DefaultSignalConfig returns a small group that runs quickly in tests
func DefaultSignalConfig() SignalGeneratorConfig {
	return SignalGeneratorConfig{
		Subjects:   3,
		Samples:    1200,
		Fs:         10,
		Frequency:  1,
		PhaseDrift: 0.5,
		Noise:      0.3,
		Seed:       42,
	}
}

// SignalGenerator produces pairs of channel groups. Every channel carries the
// same oscillation, but its phase wanders as an independent random walk per
// subject. A coupled subject's second channel follows the first channel's walk
// (plus a fixed offset), so only the subject's own pair stays phase locked;
// an uncoupled subject's second channel gets a walk of its own.
type SignalGenerator struct {
	config SignalGeneratorConfig
	rng    *rand.Rand
}

// NewSignalGenerator creates a generator
func NewSignalGenerator(config SignalGeneratorConfig) *SignalGenerator {
	return &SignalGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns the first and second channel groups
func (g *SignalGenerator) Generate() (signal.Group, signal.Group, error) {
	c := g.config
	if c.Coupled != nil && len(c.Coupled) != c.Subjects {
		return signal.Group{}, signal.Group{}, fmt.Errorf("coupled has %d entries for %d subjects", len(c.Coupled), c.Subjects)
	}

	rowsA := make([][]float64, c.Subjects)
	rowsB := make([][]float64, c.Subjects)
	for k := 0; k < c.Subjects; k++ {
		coupled := c.Coupled == nil || c.Coupled[k]

		walkA := g.phaseWalk()
		walkB := walkA
		if !coupled {
			walkB = g.phaseWalk()
		}
		offset := g.rng.Float64() * 2 * math.Pi

		rowsA[k] = g.channel(walkA, 0)
		rowsB[k] = g.channel(walkB, offset)
	}

	a, err := signal.NewGroup(rowsA)
	if err != nil {
		return signal.Group{}, signal.Group{}, err
	}
	b, err := signal.NewGroup(rowsB)
	if err != nil {
		return signal.Group{}, signal.Group{}, err
	}
	return a, b, nil
}

func (g *SignalGenerator) phaseWalk() []float64 {
	walk := make([]float64, g.config.Samples)
	phase := g.rng.Float64() * 2 * math.Pi
	for i := range walk {
		phase += g.rng.NormFloat64() * g.config.PhaseDrift
		walk[i] = phase
	}
	return walk
}

func (g *SignalGenerator) channel(walk []float64, offset float64) []float64 {
	out := make([]float64, len(walk))
	w := 2 * math.Pi * g.config.Frequency / g.config.Fs
	for i := range out {
		out[i] = math.Cos(w*float64(i)+walk[i]+offset) + g.rng.NormFloat64()*g.config.Noise
	}
	return out
}
