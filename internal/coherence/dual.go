package coherence

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"groupcoh/domain/core"
	"groupcoh/domain/signal"
	"groupcoh/domain/spectral"
	"groupcoh/internal"
	"groupcoh/internal/cache"
	"groupcoh/internal/errors"
	"groupcoh/internal/pool"
	"groupcoh/ports"
)

// ChannelPair is one group's two channel groups.
type ChannelPair struct {
	A, B signal.Group
}

// DualRequest defines the inputs of a two-group run
type DualRequest struct {
	First, Second ChannelPair
	Fs            float64
	Percentile    float64
	Wavelet       ports.WaveletOptions
	RunID         core.RunID // optional, generated if empty
}

// DualResult holds both groups' residual coherence on a shared frequency axis
type DualResult struct {
	RunID       core.RunID         `json:"run_id"`
	Frequencies []float64          `json:"frequencies"`
	First       *spectral.Residual `json:"-"`
	Second      *spectral.Residual `json:"-"`
	Warnings    []string           `json:"warnings,omitempty"`
	RuntimeMs   int64              `json:"runtime_ms"`
}

// NewDualRequest returns a request with the default percentile (95).
func NewDualRequest(first, second ChannelPair, fs float64) DualRequest {
	return DualRequest{First: first, Second: second, Fs: fs, Percentile: 95}
}

// DualGroupCoherence runs the group computation once per group with one
// pool and one cache registry, cleaning the caches up only after both runs.
// Both groups are analysed on one frequency axis; see sharedAxisOptions for
// groups of different lengths.
func (e *Engine) DualGroupCoherence(ctx context.Context, req DualRequest) (*DualResult, error) {
	start := time.Now()
	if err := validateRun(req.Fs, req.Percentile); err != nil {
		return nil, err
	}
	if err := validatePair(req.First.A, req.First.B); err != nil {
		return nil, errors.Wrap(err, "first group")
	}
	if err := validatePair(req.Second.A, req.Second.B); err != nil {
		return nil, errors.Wrap(err, "second group")
	}
	if req.RunID == "" {
		req.RunID = core.NewRunID()
	}
	logger := e.logger.With(req.RunID.Short())
	warnings := orientationWarnings(logger, req.First.A, req.First.B, req.Second.A, req.Second.B)

	opts, err := e.sharedAxisOptions(logger, req)
	if err != nil {
		return nil, err
	}
	req.Wavelet = opts

	p := pool.New(e.config.Workers)
	defer p.Close()

	reg := cache.NewRegistry(e.config.CacheDir, logger)
	defer func() {
		if err := reg.Cleanup(); err != nil {
			logger.Warn("cache cleanup failed: %v", err)
		}
	}()

	group := func(pair ChannelPair) GroupRequest {
		return GroupRequest{A: pair.A, B: pair.B, Fs: req.Fs, Percentile: req.Percentile,
			Wavelet: req.Wavelet, Cache: reg, RunID: req.RunID}
	}

	freq, first, err := e.run(ctx, p, reg, logger.With("first"), group(req.First))
	if err != nil {
		return nil, errors.Wrap(err, "first group")
	}
	freqSecond, second, err := e.run(ctx, p, reg, logger.With("second"), group(req.Second))
	if err != nil {
		return nil, errors.Wrap(err, "second group")
	}
	if !floats.Equal(freq, freqSecond) {
		return nil, axisMismatch(freq, freqSecond)
	}

	return &DualResult{
		RunID:       req.RunID,
		Frequencies: freq,
		First:       first,
		Second:      second,
		Warnings:    warnings,
		RuntimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

// sharedAxisOptions returns the wavelet options both runs of a dual request
// use. Groups of equal length already share an axis. Otherwise subject 0 of
// each group is transformed on the calling goroutine; when the axes differ
// and the caller left fmin unset, the lowest frequency of the shorter group
// is pinned for both. Axes that still differ are a shape error, raised before
// any parallel work.
func (e *Engine) sharedAxisOptions(logger *internal.Logger, req DualRequest) (ports.WaveletOptions, error) {
	opts := req.Wavelet
	if req.First.A.Samples() == req.Second.A.Samples() {
		return opts, nil
	}

	first, second, err := e.probeAxes(req, opts)
	if err != nil {
		return nil, err
	}
	if floats.Equal(first, second) {
		return opts, nil
	}

	if _, pinned := opts[ports.WaveletOptionFmin]; !pinned && len(first) > 0 && len(second) > 0 {
		shared := make(ports.WaveletOptions, len(opts)+1)
		for k, v := range opts {
			shared[k] = v
		}
		fmin := math.Max(first[0], second[0])
		shared[ports.WaveletOptionFmin] = fmin
		logger.Info("groups have %d and %d samples, sharing fmin=%g", req.First.A.Samples(), req.Second.A.Samples(), fmin)

		if first, second, err = e.probeAxes(req, shared); err != nil {
			return nil, err
		}
		opts = shared
	}

	if !floats.Equal(first, second) {
		return nil, axisMismatch(first, second)
	}
	return opts, nil
}

// probeAxes returns the frequency axis each group's first subject yields.
func (e *Engine) probeAxes(req DualRequest, opts ports.WaveletOptions) ([]float64, []float64, error) {
	_, first, err := e.transformer.Transform(req.First.A.Row(0), req.Fs, opts)
	if err != nil {
		return nil, nil, errors.Wrapc(codeFor(err), err, "first group: transform of subject 0 failed")
	}
	_, second, err := e.transformer.Transform(req.Second.A.Row(0), req.Fs, opts)
	if err != nil {
		return nil, nil, errors.Wrapc(codeFor(err), err, "second group: transform of subject 0 failed")
	}
	return first, second, nil
}

func axisMismatch(first, second []float64) error {
	return errors.ShapeError(fmt.Errorf("%w: groups produce different frequency axes (%d and %d scales)",
		core.ErrShapeMismatch, len(first), len(second)))
}
