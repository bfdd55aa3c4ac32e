package models

import "fmt"

// Outcome is the run decision signal consumed by the CLI to pick an exit
// code.
type Outcome string

const (
	OutcomeImproved      Outcome = "improved"
	OutcomeWarned        Outcome = "warned"
	OutcomeNoImprovement Outcome = "no_improvement"
	OutcomeInvalidInput  Outcome = "invalid_input"
)

// OutcomeError carries a non-success outcome out of a command so main can
// translate it into an exit code.
type OutcomeError struct {
	Outcome Outcome
	Message string
}

func (e *OutcomeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("run finished with outcome %s", e.Outcome)
	}
	return fmt.Sprintf("%s: %s", e.Outcome, e.Message)
}

// WarningCode identifies a recoverable condition recorded during a run.
type WarningCode string

const (
	WarnInsufficientModels   WarningCode = "insufficient_models"
	WarnDegenerateClustering WarningCode = "degenerate_clustering"
	WarnStackingFailure      WarningCode = "stacking_failure"
	WarnStackingInSample     WarningCode = "stacking_in_sample"
	WarnModelDropped         WarningCode = "model_dropped"
	WarnIDMismatch           WarningCode = "id_mismatch"
	WarnUnevaluableWindow    WarningCode = "unevaluable_window"
)

// Warning is a recoverable condition. Fallback names the method that was
// substituted, when one was.
type Warning struct {
	Code     WarningCode `json:"code"`
	Method   string      `json:"method,omitempty"`
	Fallback string      `json:"fallback,omitempty"`
	Message  string      `json:"message"`
}

// BlendParams records how a blend was produced.
type BlendParams struct {
	Model        string    `json:"model,omitempty"`
	Weights      []float64 `json:"weights,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    *float64  `json:"intercept,omitempty"`
	Epsilon      float64   `json:"epsilon,omitempty"`
}

// BlendResult is one combined prediction column.
type BlendResult struct {
	Method      string      `json:"method"`
	Models      []string    `json:"models"`
	Predictions []float64   `json:"-"`
	Params      BlendParams `json:"params"`
	Fallback    string      `json:"fallback,omitempty"`
}

// MethodScore is one row of the ranked method table.
type MethodScore struct {
	Method       string    `json:"method"`
	Score        float64   `json:"score"`
	Rank         int       `json:"rank"`
	Models       []string  `json:"models"`
	Model        string    `json:"model,omitempty"`
	Weights      []float64 `json:"weights,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Fallback     string    `json:"fallback,omitempty"`
}

// ModelScore is the standalone score of one base model.
type ModelScore struct {
	Model      string    `json:"model"`
	Score      float64   `json:"score"`
	FoldScores []float64 `json:"fold_scores,omitempty"`
	FoldMean   float64   `json:"fold_mean,omitempty"`
	FoldStdDev float64   `json:"fold_std_dev,omitempty"`
	Kept       bool      `json:"kept"`
	Cluster    int       `json:"cluster"`
}
