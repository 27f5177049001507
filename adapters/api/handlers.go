package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"groupcoh/adapters/preprocess"
	"groupcoh/domain/signal"
	"groupcoh/internal/coherence"
	"groupcoh/internal/errors"
)

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"workers": a.engine.Config().Workers,
	})
}

func (a *App) handleGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !a.decode(w, r, &req) {
		return
	}

	pair, err := a.channelPair(req.ChannelPairRequest, req.Fs, req.Preprocess)
	if err != nil {
		a.writeError(w, err)
		return
	}

	run := coherence.NewGroupRequest(pair.A, pair.B, req.Fs)
	run.Percentile = a.percentile(req.Percentile)
	run.Wavelet = req.Wavelet

	res, err := a.engine.GroupCoherence(r.Context(), run)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out, err := NewGroupResponse(res)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *App) handleDual(w http.ResponseWriter, r *http.Request) {
	var req DualRequest
	if !a.decode(w, r, &req) {
		return
	}

	first, err := a.channelPair(req.Group1, req.Fs, req.Preprocess)
	if err != nil {
		a.writeError(w, errors.Wrap(err, "group1"))
		return
	}
	second, err := a.channelPair(req.Group2, req.Fs, req.Preprocess)
	if err != nil {
		a.writeError(w, errors.Wrap(err, "group2"))
		return
	}

	run := coherence.NewDualRequest(first, second, req.Fs)
	run.Percentile = a.percentile(req.Percentile)
	run.Wavelet = req.Wavelet

	res, err := a.engine.DualGroupCoherence(r.Context(), run)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out, err := NewDualResponse(res)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, out)
}

// decode reads the JSON body into dst, answering the request itself on failure.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		a.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("request body exceeds %d MB", a.config.MaxBodyMB),
			Code:  errors.CodeInvalidInput,
		})
		return false
	}
	a.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: fmt.Sprintf("invalid request body: %v", err),
		Code:  errors.CodeInvalidInput,
	})
	return false
}

// channelPair builds both channel groups, preprocessing them when asked.
func (a *App) channelPair(req ChannelPairRequest, fs float64, pre *PreprocessOptions) (coherence.ChannelPair, error) {
	ga, err := signal.NewGroup(req.SignalsA)
	if err != nil {
		return coherence.ChannelPair{}, errors.ShapeError(fmt.Errorf("signals_a: %w", err))
	}
	gb, err := signal.NewGroup(req.SignalsB)
	if err != nil {
		return coherence.ChannelPair{}, errors.ShapeError(fmt.Errorf("signals_b: %w", err))
	}
	if pre != nil {
		if ga, err = preprocess.Group(ga, fs, pre.Fmin, pre.Fmax); err != nil {
			return coherence.ChannelPair{}, errors.Wrapc(errors.CodeInvalidInput, err, "preprocessing signals_a failed")
		}
		if gb, err = preprocess.Group(gb, fs, pre.Fmin, pre.Fmax); err != nil {
			return coherence.ChannelPair{}, errors.Wrapc(errors.CodeInvalidInput, err, "preprocessing signals_b failed")
		}
	}
	return coherence.ChannelPair{A: ga, B: gb}, nil
}

func (a *App) percentile(p *float64) float64 {
	if p == nil {
		return a.engine.Config().Percentile
	}
	return *p
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeShapeError, errors.CodeConfigInvalid, errors.CodeInvalidInput:
		status = http.StatusBadRequest
	default:
		a.logger.Error("request failed: %v", err)
	}
	a.writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
