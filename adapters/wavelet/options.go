package wavelet

import (
	"encoding/json"
	"math"
	"strconv"

	"groupcoh/domain/core"
	"groupcoh/ports"
)

// Recognized option keys. Anything else in the bag is ignored.
const (
	OptF0      = "f0"                    // wavelet central frequency parameter (resolution trade-off)
	OptFmin    = ports.WaveletOptionFmin // lowest analysed frequency, Hz
	OptFmax    = "fmax"                  // highest analysed frequency, Hz
	OptVoices  = "nv"                    // voices per octave
	OptPadding = "padding"               // "zero" or "none"
	OptDisplay = "display"               // accepted for compatibility, always treated as "off"
)

const (
	defaultF0     = 1.0
	defaultVoices = 16
)

type params struct {
	f0      float64
	fmin    float64
	fmax    float64
	voices  int
	padding string
}

func parseOptions(opts ports.WaveletOptions, fs float64, samples int) (params, error) {
	p := params{
		f0:      defaultF0,
		fmax:    fs / 2,
		voices:  defaultVoices,
		padding: "zero",
	}

	var err error
	if v, ok := opts[OptF0]; ok {
		if p.f0, err = toFloat(OptF0, v); err != nil {
			return p, err
		}
		if p.f0 <= 0 {
			return p, core.NewOptionError(OptF0, v)
		}
	}

	// fmin defaults to the lowest frequency whose wavelet still fits the
	// record four times over.
	p.fmin = 4 * p.f0 * fs / float64(samples)
	if v, ok := opts[OptFmin]; ok {
		if p.fmin, err = toFloat(OptFmin, v); err != nil {
			return p, err
		}
	}
	if v, ok := opts[OptFmax]; ok {
		if p.fmax, err = toFloat(OptFmax, v); err != nil {
			return p, err
		}
		if p.fmax > fs/2 {
			return p, core.NewOptionError(OptFmax, v)
		}
	}
	if v, ok := opts[OptVoices]; ok {
		f, err := toFloat(OptVoices, v)
		if err != nil {
			return p, err
		}
		if f < 1 || f != math.Trunc(f) {
			return p, core.NewOptionError(OptVoices, v)
		}
		p.voices = int(f)
	}
	if v, ok := opts[OptPadding]; ok {
		s, isString := v.(string)
		if !isString || (s != "zero" && s != "none") {
			return p, core.NewOptionError(OptPadding, v)
		}
		p.padding = s
	}

	if !(p.fmin > 0) || !(p.fmax > p.fmin) {
		return p, core.NewOptionError(OptFmin+"/"+OptFmax, [2]float64{p.fmin, p.fmax})
	}
	return p, nil
}

func toFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, core.NewOptionError(key, v)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, core.NewOptionError(key, v)
		}
		return f, nil
	default:
		return 0, core.NewOptionError(key, v)
	}
}
