// Package coherence computes surrogate-corrected wavelet phase coherence for
// groups of subjects. A run transforms every subject's two channels, builds
// the subjects x subjects x scales coherence tensor between the channel
// groups, and corrects each subject's real coherence by the percentile of
// its surrogates (pairings of its channels with other subjects' channels).
package coherence

import (
	"context"
	"fmt"
	"math"
	"time"

	"groupcoh/domain/core"
	"groupcoh/domain/signal"
	"groupcoh/domain/spectral"
	"groupcoh/internal"
	"groupcoh/internal/cache"
	"groupcoh/internal/config"
	"groupcoh/internal/errors"
	"groupcoh/internal/pool"
	"groupcoh/ports"
)

// Engine drives group coherence runs. Every run owns its worker pool and,
// unless the caller supplies one, its cache registry.
type Engine struct {
	transformer ports.WaveletTransformerPort
	coherer     ports.PhaseCoherencePort
	config      config.EngineConfig
	logger      *internal.Logger
}

// GroupRequest defines the inputs of a single group run
type GroupRequest struct {
	A, B       signal.Group         // channel groups, subjects x samples, equal shapes
	Fs         float64              // sampling rate shared by every signal
	Percentile float64              // surrogate percentile in [0, 100]
	Cleanup    bool                 // release the caller's Cache when the run ends
	Wavelet    ports.WaveletOptions // forwarded verbatim to the transformer
	Cache      *cache.Registry      // optional, caller-owned
	RunID      core.RunID           // optional, generated if empty
}

// GroupResult is the output of a single group run
type GroupResult struct {
	RunID       core.RunID         `json:"run_id"`
	Frequencies []float64          `json:"frequencies"`
	Residual    *spectral.Residual `json:"-"`
	Warnings    []string           `json:"warnings,omitempty"`
	RuntimeMs   int64              `json:"runtime_ms"`
}

// NewGroupRequest returns a request with the default percentile (95) and
// cleanup enabled.
func NewGroupRequest(a, b signal.Group, fs float64) GroupRequest {
	return GroupRequest{A: a, B: b, Fs: fs, Percentile: 95, Cleanup: true}
}

// NewEngine creates an engine. A nil logger falls back to the default logger.
func NewEngine(transformer ports.WaveletTransformerPort, coherer ports.PhaseCoherencePort, cfg config.EngineConfig, logger *internal.Logger) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{
		transformer: transformer,
		coherer:     coherer,
		config:      cfg,
		logger:      logger.With("coherence"),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() config.EngineConfig { return e.config }

// GroupCoherence returns the frequency axis and the residual coherence of
// every subject. Invalid input is rejected before any worker or cache is
// created; the pool and the run's caches are released on every path.
func (e *Engine) GroupCoherence(ctx context.Context, req GroupRequest) (*GroupResult, error) {
	start := time.Now()
	if err := validateRun(req.Fs, req.Percentile); err != nil {
		return nil, err
	}
	if err := validatePair(req.A, req.B); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = core.NewRunID()
	}
	logger := e.logger.With(req.RunID.Short())
	warnings := orientationWarnings(logger, req.A, req.B)

	p := pool.New(e.config.Workers)
	defer p.Close()

	reg := req.Cache
	cleanup := req.Cleanup
	if reg == nil {
		reg = cache.NewRegistry(e.config.CacheDir, logger)
		cleanup = true
	}
	if cleanup {
		defer func() {
			if err := reg.Cleanup(); err != nil {
				logger.Warn("cache cleanup failed: %v", err)
			}
		}()
	}

	freq, residual, err := e.run(ctx, p, reg, logger, req)
	if err != nil {
		return nil, err
	}
	return &GroupResult{
		RunID:       req.RunID,
		Frequencies: freq,
		Residual:    residual,
		Warnings:    warnings,
		RuntimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

// run executes the three stages on an already validated request.
func (e *Engine) run(ctx context.Context, p *pool.Pool, reg *cache.Registry, logger *internal.Logger, req GroupRequest) ([]float64, *spectral.Residual, error) {
	transforms, err := ComputeTransforms(ctx, p, reg, e.transformer, req.A, req.B, req.Fs, req.Wavelet)
	if err != nil {
		return nil, nil, err
	}
	n, scales, samples := transforms.A.Shape()
	logger.Info("finished transforms: %d subjects, %d scales, %d samples", n, scales, samples)

	tensor, err := BuildMatrix(ctx, p, e.coherer, transforms.A, transforms.B,
		transforms.Frequencies, req.Fs, AllTrueMask(n, n))
	if relErr := transforms.Release(); relErr != nil && err == nil {
		err = relErr
	}
	if err != nil {
		return nil, nil, err
	}
	logger.Info("finished coherence")

	residual, err := ResidualCoherence(tensor, req.Percentile)
	if err != nil {
		return nil, nil, errors.Wrapc(codeFor(err), err, "surrogate correction failed")
	}
	return transforms.Frequencies, residual, nil
}

func validateRun(fs, percentile float64) error {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return errors.Wrapc(errors.CodeConfigInvalid, core.ErrInvalidSampleRate, "fs=%g", fs)
	}
	if math.IsNaN(percentile) || percentile < 0 || percentile > 100 {
		return errors.Wrapc(errors.CodeConfigInvalid, core.ErrInvalidPercentile, "percentile=%g", percentile)
	}
	return nil
}

// validatePair checks that both channel groups are usable and of equal shape.
func validatePair(a, b signal.Group) error {
	if err := a.Validate(); err != nil {
		return errors.ShapeError(fmt.Errorf("channel A: %w", err))
	}
	if err := b.Validate(); err != nil {
		return errors.ShapeError(fmt.Errorf("channel B: %w", err))
	}
	if a.Shape() != b.Shape() {
		return errors.ShapeError(core.NewShapeMismatchError("channel B", b.Shape(), a.Shape()))
	}
	return nil
}

func orientationWarnings(logger *internal.Logger, groups ...signal.Group) []string {
	var warnings []string
	for _, g := range groups {
		if !g.LooksTransposed() {
			continue
		}
		w := g.OrientationWarning()
		logger.Warn("%s", w)
		warnings = append(warnings, w)
	}
	return warnings
}

// codeFor maps a domain error onto an application error code.
func codeFor(err error) string {
	switch {
	case errors.IsAppError(err):
		return errors.GetCode(err)
	case core.IsShapeError(err):
		return errors.CodeShapeError
	case core.IsConfigError(err):
		return errors.CodeConfigInvalid
	default:
		return errors.CodeInvalidInput
	}
}
