package models

import (
	"fmt"
	"time"
)

// AlignedMatrix is the inner join of several prediction frames on id.
// Columns[j][i] is the prediction of Models[j] for IDs[i]. Row order is
// fixed at construction and shared by every derived matrix.
type AlignedMatrix struct {
	IDs     []string
	Models  []string
	Columns [][]float64
	Targets []float64
	Folds   []int
	Times   []time.Time
}

// Rows returns the number of aligned samples.
func (m *AlignedMatrix) Rows() int {
	return len(m.IDs)
}

// NumModels returns the number of model columns.
func (m *AlignedMatrix) NumModels() int {
	return len(m.Models)
}

// HasTargets reports whether targets are available for every row.
func (m *AlignedMatrix) HasTargets() bool {
	return m.Targets != nil
}

// Column returns the predictions of the named model.
func (m *AlignedMatrix) Column(model string) ([]float64, bool) {
	for j, name := range m.Models {
		if name == model {
			return m.Columns[j], true
		}
	}
	return nil, false
}

// Select returns a new matrix restricted to the given models, in the
// order given. Row data is shared, never copied or modified.
func (m *AlignedMatrix) Select(models []string) (*AlignedMatrix, error) {
	cols := make([][]float64, 0, len(models))
	for _, name := range models {
		col, ok := m.Column(name)
		if !ok {
			return nil, fmt.Errorf("model %q is not part of the aligned matrix", name)
		}
		cols = append(cols, col)
	}
	return &AlignedMatrix{
		IDs:     m.IDs,
		Models:  append([]string(nil), models...),
		Columns: cols,
		Targets: m.Targets,
		Folds:   m.Folds,
		Times:   m.Times,
	}, nil
}

// Row copies the predictions of row i into dst (allocating when dst is
// too small) and returns it.
func (m *AlignedMatrix) Row(i int, dst []float64) []float64 {
	if cap(dst) < len(m.Columns) {
		dst = make([]float64, len(m.Columns))
	}
	dst = dst[:len(m.Columns)]
	for j, col := range m.Columns {
		dst[j] = col[i]
	}
	return dst
}
