package spectral

import (
	"fmt"
	"math"
)

// Transform is one subject's wavelet transform: Scales rows of Samples
// complex coefficients, stored row-major.
type Transform struct {
	Scales  int
	Samples int
	Data    []complex64
}

// NewTransform allocates a zeroed transform.
func NewTransform(scales, samples int) Transform {
	return Transform{Scales: scales, Samples: samples, Data: make([]complex64, scales*samples)}
}

// Row returns the coefficients at scale s.
func (t Transform) Row(s int) []complex64 {
	return t.Data[s*t.Samples : (s+1)*t.Samples]
}

// SameShape reports whether two transforms can be compared cell by cell.
func (t Transform) SameShape(o Transform) bool {
	return t.Scales == o.Scales && t.Samples == o.Samples
}

// Bytes is the storage footprint of the coefficients.
func (t Transform) Bytes() int64 {
	return int64(t.Scales) * int64(t.Samples) * 8
}

// Mask marks which (row, column) cells of a coherence tensor get computed.
type Mask struct {
	Rows, Cols int
	cells      []bool
}

// NewMask returns a mask with every cell set to value.
func NewMask(rows, cols int, value bool) Mask {
	m := Mask{Rows: rows, Cols: cols, cells: make([]bool, rows*cols)}
	if value {
		for i := range m.cells {
			m.cells[i] = true
		}
	}
	return m
}

func (m Mask) At(i, j int) bool     { return m.cells[i*m.Cols+j] }
func (m Mask) Set(i, j int, v bool) { m.cells[i*m.Cols+j] = v }

// Tensor is the subjects_A x subjects_B x scales coherence array.
type Tensor struct {
	Rows, Cols, Scales int
	Data               []float64
}

// NewTensor allocates a tensor pre-filled with NaN.
func NewTensor(rows, cols, scales int) *Tensor {
	t := &Tensor{Rows: rows, Cols: cols, Scales: scales, Data: make([]float64, rows*cols*scales)}
	for i := range t.Data {
		t.Data[i] = math.NaN()
	}
	return t
}

// Cell returns the per-scale values of cell (i, j). The slice aliases the tensor.
func (t *Tensor) Cell(i, j int) []float64 {
	off := (i*t.Cols + j) * t.Scales
	return t.Data[off : off+t.Scales]
}

// At returns a single value.
func (t *Tensor) At(i, j, s int) float64 {
	return t.Data[(i*t.Cols+j)*t.Scales+s]
}

// Bytes is the storage footprint of the tensor.
func (t *Tensor) Bytes() int64 {
	return int64(len(t.Data)) * 8
}

// Residual holds one corrected coherence spectrum per subject.
type Residual struct {
	Subjects int
	Scales   int
	Data     []float64
}

// NewResidual allocates a zeroed residual array.
func NewResidual(subjects, scales int) *Residual {
	return &Residual{Subjects: subjects, Scales: scales, Data: make([]float64, subjects*scales)}
}

// Subject returns subject k's spectrum. The slice aliases the residual.
func (r *Residual) Subject(k int) []float64 {
	return r.Data[k*r.Scales : (k+1)*r.Scales]
}

// Rows copies the residual into one slice per subject.
func (r *Residual) Rows() [][]float64 {
	out := make([][]float64, r.Subjects)
	for k := range out {
		out[k] = append([]float64(nil), r.Subject(k)...)
	}
	return out
}

// Column returns every subject's value at scale s.
func (r *Residual) Column(s int) []float64 {
	out := make([]float64, r.Subjects)
	for k := range out {
		out[k] = r.Data[k*r.Scales+s]
	}
	return out
}

func (r *Residual) String() string {
	return fmt.Sprintf("Residual(%d subjects x %d scales)", r.Subjects, r.Scales)
}
