package models

import (
	"fmt"
	"math"
	"time"
)

// PredictionFrame holds one model's predictions, one row per sample.
// Optional columns are nil when the source did not carry them.
type PredictionFrame struct {
	Name    string      `json:"name"`
	IDs     []string    `json:"ids"`
	Preds   []float64   `json:"preds"`
	Targets []float64   `json:"targets,omitempty"`
	Folds   []int       `json:"folds,omitempty"`
	Times   []time.Time `json:"times,omitempty"`
}

// Len returns the number of rows in the frame.
func (f *PredictionFrame) Len() int {
	return len(f.IDs)
}

// HasTargets reports whether the frame carries a target column.
func (f *PredictionFrame) HasTargets() bool {
	return f.Targets != nil
}

// HasFolds reports whether the frame carries a fold column.
func (f *PredictionFrame) HasFolds() bool {
	return f.Folds != nil
}

// HasTimes reports whether the frame carries a time column.
func (f *PredictionFrame) HasTimes() bool {
	return f.Times != nil
}

// Validate checks the frame invariants: unique ids, finite predictions and
// optional columns matching the id column length.
func (f *PredictionFrame) Validate() error {
	n := len(f.IDs)
	if len(f.Preds) != n {
		return &SchemaError{Frame: f.Name, Column: "pred", Message: fmt.Sprintf("has %d values for %d ids", len(f.Preds), n)}
	}
	if f.Targets != nil && len(f.Targets) != n {
		return &SchemaError{Frame: f.Name, Column: "target", Message: fmt.Sprintf("has %d values for %d ids", len(f.Targets), n)}
	}
	if f.Folds != nil && len(f.Folds) != n {
		return &SchemaError{Frame: f.Name, Column: "fold", Message: fmt.Sprintf("has %d values for %d ids", len(f.Folds), n)}
	}
	if f.Times != nil && len(f.Times) != n {
		return &SchemaError{Frame: f.Name, Column: "time", Message: fmt.Sprintf("has %d values for %d ids", len(f.Times), n)}
	}

	seen := make(map[string]struct{}, n)
	for i, id := range f.IDs {
		if _, dup := seen[id]; dup {
			return &SchemaError{Frame: f.Name, Column: "id", Row: i + 1, Message: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}

		if p := f.Preds[i]; math.IsNaN(p) || math.IsInf(p, 0) {
			return &SchemaError{Frame: f.Name, Column: "pred", Row: i + 1, Message: "prediction is not finite"}
		}
		if f.Targets != nil {
			if t := f.Targets[i]; math.IsNaN(t) || math.IsInf(t, 0) {
				return &SchemaError{Frame: f.Name, Column: "target", Row: i + 1, Message: "target is not finite"}
			}
		}
	}
	return nil
}
