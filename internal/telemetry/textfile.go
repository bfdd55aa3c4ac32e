// Package telemetry exports run results as Prometheus metrics in the
// node_exporter textfile format.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crediblend/crediblend/internal/engine"
)

const namespace = "crediblend"

// RunMetrics holds the collectors describing one run.
type RunMetrics struct {
	Duration    prometheus.Gauge
	Outcome     *prometheus.GaugeVec
	AlignedIDs  prometheus.Gauge
	DroppedIDs  prometheus.Gauge
	ModelScore  *prometheus.GaugeVec
	ModelKept   *prometheus.GaugeVec
	MethodScore *prometheus.GaugeVec
	Weight      *prometheus.GaugeVec
	Improvement prometheus.Gauge
	Warnings    *prometheus.CounterVec
	Leakage     *prometheus.GaugeVec
}

// NewRunMetrics creates unregistered collectors.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the last blend run.",
		}),
		Outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_outcome",
			Help: "Outcome of the last blend run; the active outcome is 1.",
		}, []string{"outcome"}),
		AlignedIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "aligned_ids",
			Help: "Number of OOF ids common to every model.",
		}),
		DroppedIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dropped_ids",
			Help: "Number of OOF ids missing from at least one model.",
		}),
		ModelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "model_score",
			Help: "Standalone OOF score of each base model.",
		}, []string{"model", "metric"}),
		ModelKept: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "model_kept",
			Help: "1 when the model survived decorrelation.",
		}, []string{"model"}),
		MethodScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "method_score",
			Help: "OOF score of each blend method.",
		}, []string{"method", "metric", "fallback"}),
		Weight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "blend_weight",
			Help: "Weight found by the weight search for each model.",
		}, []string{"model"}),
		Improvement: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "improvement_delta",
			Help: "Gain of the best blend over the best single model.",
		}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "warnings_total",
			Help: "Recoverable conditions recorded during the run.",
		}, []string{"code"}),
		Leakage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "leakage_suspected",
			Help: "1 when time-sliced diagnostics flag the model as leaky.",
		}, []string{"model"}),
	}
}

// Register adds every collector to reg.
func (m *RunMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Duration, m.Outcome, m.AlignedIDs, m.DroppedIDs, m.ModelScore, m.ModelKept,
		m.MethodScore, m.Weight, m.Improvement, m.Warnings, m.Leakage,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering collector: %w", err)
		}
	}
	return nil
}

// Observe records r.
func (m *RunMetrics) Observe(r *engine.Report) {
	metric := string(r.Metric)

	m.Duration.Set(r.Duration.Seconds())
	m.Outcome.WithLabelValues(string(r.Outcome)).Set(1)
	m.AlignedIDs.Set(float64(r.Alignment.OOF.CommonIDs))
	m.DroppedIDs.Set(float64(r.Alignment.OOF.Dropped))

	for _, s := range r.Models {
		m.ModelScore.WithLabelValues(s.Model, metric).Set(s.Score)
		m.ModelKept.WithLabelValues(s.Model).Set(boolValue(s.Kept))
	}
	for _, s := range r.Methods {
		m.MethodScore.WithLabelValues(s.Method, metric, s.Fallback).Set(s.Score)
	}
	if ws := r.WeightSearch; ws != nil {
		for i, name := range ws.Models {
			m.Weight.WithLabelValues(name).Set(ws.Weights[i])
		}
	}
	m.Improvement.Set(r.Improvement.Delta)
	for _, w := range r.Warnings {
		m.Warnings.WithLabelValues(string(w.Code)).Inc()
	}
	if ts := r.TimeSlice; ts != nil {
		for _, s := range ts.Stability {
			m.Leakage.WithLabelValues(s.Model).Set(boolValue(s.Leakage))
		}
	}
}

// WriteTextfile writes the metrics of r to path.
func WriteTextfile(path string, r *engine.Report) error {
	reg := prometheus.NewRegistry()
	m := NewRunMetrics()
	if err := m.Register(reg); err != nil {
		return err
	}
	m.Observe(r)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
