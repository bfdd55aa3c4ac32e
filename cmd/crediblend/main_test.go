package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crediblend/crediblend/internal/models"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitImproved},
		{name: "no improvement", err: &models.OutcomeError{Outcome: models.OutcomeNoImprovement}, want: ExitNoImprovement},
		{name: "warned", err: &models.OutcomeError{Outcome: models.OutcomeWarned}, want: ExitWarned},
		{name: "invalid input", err: &models.OutcomeError{Outcome: models.OutcomeInvalidInput}, want: ExitError},
		{name: "wrapped warned", err: fmt.Errorf("run: %w", &models.OutcomeError{Outcome: models.OutcomeWarned}), want: ExitWarned},
		{name: "joined no improvement", err: errors.Join(&models.OutcomeError{Outcome: models.OutcomeNoImprovement}, errors.New("extra")), want: ExitNoImprovement},
		{name: "plain error", err: errors.New("config error"), want: ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestInvalidInput(t *testing.T) {
	err := invalidInput(&models.AlignmentError{Message: "no common ids"})
	var outcomeErr *models.OutcomeError
	assert.True(t, errors.As(err, &outcomeErr))
	assert.Equal(t, models.OutcomeInvalidInput, outcomeErr.Outcome)
	assert.Equal(t, ExitError, exitCode(err))

	plain := errors.New("disk full")
	assert.Same(t, plain, invalidInput(plain))
}
