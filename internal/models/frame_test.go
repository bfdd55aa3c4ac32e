package models

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionFrame_Validate(t *testing.T) {
	tests := []struct {
		name    string
		frame   PredictionFrame
		wantErr string
	}{
		{
			name:  "valid",
			frame: PredictionFrame{Name: "a", IDs: []string{"1", "2"}, Preds: []float64{0.1, 0.9}, Targets: []float64{0, 1}},
		},
		{
			name:    "duplicate id",
			frame:   PredictionFrame{Name: "a", IDs: []string{"1", "1"}, Preds: []float64{0.1, 0.9}},
			wantErr: `duplicate id "1"`,
		},
		{
			name:    "nan prediction",
			frame:   PredictionFrame{Name: "a", IDs: []string{"1", "2"}, Preds: []float64{0.1, math.NaN()}},
			wantErr: "prediction is not finite",
		},
		{
			name:    "short target column",
			frame:   PredictionFrame{Name: "a", IDs: []string{"1", "2"}, Preds: []float64{0.1, 0.2}, Targets: []float64{1}},
			wantErr: "has 1 values for 2 ids",
		},
		{
			name:    "infinite target",
			frame:   PredictionFrame{Name: "a", IDs: []string{"1"}, Preds: []float64{0.1}, Targets: []float64{math.Inf(1)}},
			wantErr: "target is not finite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var schemaErr *SchemaError
			assert.True(t, errors.As(err, &schemaErr))
		})
	}
}

func TestAlignedMatrix_Select(t *testing.T) {
	m := &AlignedMatrix{
		IDs:     []string{"1", "2"},
		Models:  []string{"a", "b", "c"},
		Columns: [][]float64{{1, 2}, {3, 4}, {5, 6}},
		Targets: []float64{0, 1},
	}

	sub, err := m.Select([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sub.Models)
	assert.Equal(t, [][]float64{{5, 6}, {1, 2}}, sub.Columns)
	assert.Equal(t, m.Targets, sub.Targets)
	assert.Equal(t, []string{"a", "b", "c"}, m.Models, "source matrix must not change")

	_, err = m.Select([]string{"missing"})
	require.Error(t, err)

	row := m.Row(1, nil)
	assert.Equal(t, []float64{2, 4, 6}, row)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"alignment", &AlignmentError{Frames: 1, Message: "too few"}, true},
		{"wrapped schema", fmt.Errorf("loading: %w", &SchemaError{Column: "pred", Message: "missing"}), true},
		{"insufficient models", &InsufficientModelsError{Component: "weight search", Have: 1, Need: 2}, false},
		{"stacking", &StackingFailure{Reason: "singular"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestOutcomeError_Message(t *testing.T) {
	err := &OutcomeError{Outcome: OutcomeNoImprovement}
	assert.Equal(t, "run finished with outcome no_improvement", err.Error())

	err = &OutcomeError{Outcome: OutcomeWarned, Message: "2 warnings"}
	assert.Equal(t, "warned: 2 warnings", err.Error())
}
