package excel

import (
	"math"
	"time"
)

// ReaderConfig controls how a channel group is laid out in a file. Each
// column is one subject and each row one sample.
type ReaderConfig struct {
	Sheet      string `json:"sheet"`       // xlsx sheet; empty selects the first sheet
	Header     bool   `json:"header"`      // first row holds subject names
	MaxSamples int    `json:"max_samples"` // truncate every subject; 0 keeps all
}

// DefaultReaderConfig expects a header row and keeps every sample.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Header: true}
}

// SamplesFor converts a recording duration into a sample count at fs.
func SamplesFor(d time.Duration, fs float64) int {
	return int(math.Floor(d.Seconds() * fs))
}
