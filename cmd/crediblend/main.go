package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/crediblend/crediblend/internal/models"
)

// Exit codes, one per run outcome.
const (
	ExitImproved      = 0 // Best blend beats the best single model
	ExitNoImprovement = 1 // Run completed but no blend helped
	ExitError         = 2 // Invalid input, configuration or runtime error
	ExitWarned        = 3 // Run completed with recoverable warnings
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitImproved
	}
	var outcomeErr *models.OutcomeError
	if errors.As(err, &outcomeErr) {
		switch outcomeErr.Outcome {
		case models.OutcomeImproved:
			return ExitImproved
		case models.OutcomeNoImprovement:
			return ExitNoImprovement
		case models.OutcomeWarned:
			return ExitWarned
		}
	}
	// invalid_input and every other error
	return ExitError
}
