package models

import (
	"errors"
	"fmt"
)

// AlignmentError is returned when prediction frames cannot be joined into
// a usable matrix: too few frames, or no id common to all of them.
type AlignmentError struct {
	Frames  int
	Message string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment failed (%d frames): %s", e.Frames, e.Message)
}

// SchemaError reports a missing, non-numeric or otherwise invalid column.
// Row is 1-based and zero when the error is not tied to a single row.
type SchemaError struct {
	Frame   string
	Column  string
	Row     int
	Message string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Frame == "":
		return fmt.Sprintf("schema: column %q: %s", e.Column, e.Message)
	case e.Row > 0:
		return fmt.Sprintf("schema: %s: row %d column %q: %s", e.Frame, e.Row, e.Column, e.Message)
	default:
		return fmt.Sprintf("schema: %s: column %q: %s", e.Frame, e.Column, e.Message)
	}
}

// InsufficientModelsError is returned by components that need at least
// Need models but were given Have.
type InsufficientModelsError struct {
	Component string
	Have      int
	Need      int
}

func (e *InsufficientModelsError) Error() string {
	return fmt.Sprintf("%s needs at least %d models, got %d", e.Component, e.Need, e.Have)
}

// StackingFailure is returned when the stacking meta-learner cannot be fit.
type StackingFailure struct {
	Reason string
	Err    error
}

func (e *StackingFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stacking failed: %s: %v", e.Reason, e.Err)
	}
	return "stacking failed: " + e.Reason
}

func (e *StackingFailure) Unwrap() error {
	return e.Err
}

// DegenerateClusteringWarning reports that decorrelation merged every
// model into a single cluster, so only one model survives.
type DegenerateClusteringWarning struct {
	Models         int
	Representative string
	Threshold      float64
}

func (e *DegenerateClusteringWarning) Error() string {
	return fmt.Sprintf("all %d models fall into one cluster at correlation threshold %.2f; keeping only %s",
		e.Models, e.Threshold, e.Representative)
}

// IsFatal reports whether err is a contract violation that must abort the
// run with an invalid_input outcome.
func IsFatal(err error) bool {
	var alignErr *AlignmentError
	var schemaErr *SchemaError
	return errors.As(err, &alignErr) || errors.As(err, &schemaErr)
}
