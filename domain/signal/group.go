package signal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"groupcoh/domain/core"
)

// Group is a set of equally long recordings, one row per subject, all sampled
// at a common rate.
type Group struct {
	data *mat.Dense
}

// NewGroup copies rows into a Group. Every row must have the same length.
func NewGroup(rows [][]float64) (Group, error) {
	if len(rows) == 0 {
		return Group{}, fmt.Errorf("%w: group has no subjects", core.ErrInsufficientSubjects)
	}
	samples := len(rows[0])
	if samples == 0 {
		return Group{}, core.ErrEmptySignal
	}

	flat := make([]float64, 0, len(rows)*samples)
	for i, row := range rows {
		if len(row) != samples {
			return Group{}, fmt.Errorf("%w: subject %d has %d samples, subject 0 has %d",
				core.ErrShapeMismatch, i, len(row), samples)
		}
		flat = append(flat, row...)
	}
	return Group{data: mat.NewDense(len(rows), samples, flat)}, nil
}

// Subjects returns the number of rows.
func (g Group) Subjects() int {
	if g.data == nil {
		return 0
	}
	r, _ := g.data.Dims()
	return r
}

// Samples returns the number of samples per subject.
func (g Group) Samples() int {
	if g.data == nil {
		return 0
	}
	_, c := g.data.Dims()
	return c
}

// Shape returns (subjects, samples).
func (g Group) Shape() [2]int {
	return [2]int{g.Subjects(), g.Samples()}
}

// Row returns subject i's samples. The slice aliases the group's storage.
func (g Group) Row(i int) []float64 {
	return g.data.RawRowView(i)
}

// Rows copies the group back into a slice of rows.
func (g Group) Rows() [][]float64 {
	out := make([][]float64, g.Subjects())
	for i := range out {
		out[i] = append([]float64(nil), g.Row(i)...)
	}
	return out
}

// Validate checks that the group has enough subjects to form surrogates.
func (g Group) Validate() error {
	if g.Subjects() < 2 {
		return fmt.Errorf("%w: got %d", core.ErrInsufficientSubjects, g.Subjects())
	}
	if g.Samples() == 0 {
		return core.ErrEmptySignal
	}
	return nil
}

// LooksTransposed reports whether there are more subjects than samples, which
// usually means rows and columns were swapped by the caller.
func (g Group) LooksTransposed() bool {
	return g.Subjects() > g.Samples()
}

// OrientationWarning returns the warning text for a group that LooksTransposed.
func (g Group) OrientationWarning() string {
	return fmt.Sprintf("array dimensions %d, %d imply that the signals may be orientated incorrectly; "+
		"if this is not the case, please ignore the warning", g.Subjects(), g.Samples())
}

// Map returns a new group where each row has been replaced by fn(row).
// fn must return rows of a common length.
func (g Group) Map(fn func(row []float64) ([]float64, error)) (Group, error) {
	rows := make([][]float64, g.Subjects())
	for i := range rows {
		out, err := fn(g.Row(i))
		if err != nil {
			return Group{}, fmt.Errorf("subject %d: %w", i, err)
		}
		rows[i] = out
	}
	return NewGroup(rows)
}
