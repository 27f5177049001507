package api

import (
	"encoding/json"
	"math"

	"groupcoh/adapters/wavelet"
	"groupcoh/domain/spectral"
	"groupcoh/internal/coherence"
)

// Number is a float that encodes NaN and infinities as null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// PreprocessOptions asks for detrending and band-passing before the run
type PreprocessOptions struct {
	Fmin float64 `json:"fmin"`
	Fmax float64 `json:"fmax"`
}

// ChannelPairRequest carries one group's two channels, subjects x samples
type ChannelPairRequest struct {
	SignalsA [][]float64 `json:"signals_a"`
	SignalsB [][]float64 `json:"signals_b"`
}

// GroupRequest is the body of POST /api/coherence/group
type GroupRequest struct {
	ChannelPairRequest
	Fs         float64            `json:"fs"`
	Percentile *float64           `json:"percentile,omitempty"`
	Wavelet    wavelet.Options    `json:"wavelet,omitempty"`
	Preprocess *PreprocessOptions `json:"preprocess,omitempty"`
}

// DualRequest is the body of POST /api/coherence/dual
type DualRequest struct {
	Group1     ChannelPairRequest `json:"group1"`
	Group2     ChannelPairRequest `json:"group2"`
	Fs         float64            `json:"fs"`
	Percentile *float64           `json:"percentile,omitempty"`
	Wavelet    wavelet.Options    `json:"wavelet,omitempty"`
	Preprocess *PreprocessOptions `json:"preprocess,omitempty"`
}

// GroupCoherence is one group's corrected spectra and their summary
type GroupCoherence struct {
	Residual [][]Number `json:"residual"`
	Mean     []Number   `json:"mean"`
	Median   []Number   `json:"median"`
	Std      []Number   `json:"std"`
}

// GroupResponse is returned by POST /api/coherence/group
type GroupResponse struct {
	RunID       string   `json:"run_id"`
	Frequencies []Number `json:"frequencies"`
	GroupCoherence
	Warnings  []string `json:"warnings,omitempty"`
	RuntimeMs int64    `json:"runtime_ms"`
}

// DualResponse is returned by POST /api/coherence/dual
type DualResponse struct {
	RunID       string         `json:"run_id"`
	Frequencies []Number       `json:"frequencies"`
	Group1      GroupCoherence `json:"group1"`
	Group2      GroupCoherence `json:"group2"`
	Warnings    []string       `json:"warnings,omitempty"`
	RuntimeMs   int64          `json:"runtime_ms"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func numbers(values []float64) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}
	return out
}

func newGroupCoherence(residual *spectral.Residual) (GroupCoherence, error) {
	summary, err := coherence.Summarize(residual)
	if err != nil {
		return GroupCoherence{}, err
	}
	rows := make([][]Number, residual.Subjects)
	for k := range rows {
		rows[k] = numbers(residual.Subject(k))
	}
	return GroupCoherence{
		Residual: rows,
		Mean:     numbers(summary.Mean),
		Median:   numbers(summary.Median),
		Std:      numbers(summary.Std),
	}, nil
}

// NewGroupResponse renders a group run, including its summary.
func NewGroupResponse(res *coherence.GroupResult) (GroupResponse, error) {
	group, err := newGroupCoherence(res.Residual)
	if err != nil {
		return GroupResponse{}, err
	}
	return GroupResponse{
		RunID:          res.RunID.String(),
		Frequencies:    numbers(res.Frequencies),
		GroupCoherence: group,
		Warnings:       res.Warnings,
		RuntimeMs:      res.RuntimeMs,
	}, nil
}

// NewDualResponse renders a two-group run, including both summaries.
func NewDualResponse(res *coherence.DualResult) (DualResponse, error) {
	group1, err := newGroupCoherence(res.First)
	if err != nil {
		return DualResponse{}, err
	}
	group2, err := newGroupCoherence(res.Second)
	if err != nil {
		return DualResponse{}, err
	}
	return DualResponse{
		RunID:       res.RunID.String(),
		Frequencies: numbers(res.Frequencies),
		Group1:      group1,
		Group2:      group2,
		Warnings:    res.Warnings,
		RuntimeMs:   res.RuntimeMs,
	}, nil
}
