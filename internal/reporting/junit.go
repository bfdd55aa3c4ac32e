package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/engine"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one blending run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one blend method.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a method that did not beat the best single model.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a test as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit turns a run report into JUnit XML. Every method is a test
// case that fails unless it beats the best single model. best_single is
// the baseline itself and is reported as skipped.
func ConvertToJUnit(r *engine.Report) *JUnitTestSuites {
	durationSec := r.Duration.Seconds()
	classname := "crediblend." + string(r.Metric)

	suite := JUnitTestSuite{
		Name:      "crediblend",
		Time:      durationSec,
		Timestamp: r.StartedAt.UTC().Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: r.RunID},
			{Name: "metric", Value: string(r.Metric)},
			{Name: "outcome", Value: string(r.Outcome)},
			{Name: "baseline", Value: r.Improvement.Baseline},
			{Name: "baseline_score", Value: fmt.Sprintf("%.6f", r.Improvement.BaselineScore)},
		},
	}
	for _, w := range r.Warnings {
		suite.Properties = append(suite.Properties, JUnitProperty{
			Name:  "warning." + string(w.Code),
			Value: w.Message,
		})
	}

	for _, m := range r.Methods {
		tc := JUnitTestCase{Name: m.Method, Classname: classname}
		switch {
		case m.Method == string(blend.KindBestSingle):
			tc.Skipped = &JUnitSkipped{Message: "baseline method"}
			suite.Skipped++
		case !r.Metric.Better(m.Score, r.Improvement.BaselineScore):
			tc.Failure = buildFailure(r, m.Method, m.Score, m.Fallback)
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	suite.Tests = len(suite.TestCases)

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func buildFailure(r *engine.Report, method string, score float64, fallback string) *JUnitFailure {
	body := fmt.Sprintf("%s=%.6f, best single model %s=%.6f\n",
		method, score, r.Improvement.Baseline, r.Improvement.BaselineScore)
	if fallback != "" {
		body += fmt.Sprintf("fell back to %s\n", fallback)
	}
	return &JUnitFailure{
		Message: fmt.Sprintf("%s: score=%.4f", method, score),
		Type:    "NoImprovement",
		Body:    body,
	}
}

// WriteJUnit writes JUnit XML to the specified file path.
func WriteJUnit(path string, r *engine.Report) error {
	suites := ConvertToJUnit(r)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
