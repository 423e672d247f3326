// Package observability assembles the concrete telemetry adapters into the
// Observability bundle injected into application services.
package observability

import (
	obs "github.com/zenshop/orderengine/internal/observability"
)

type provider struct {
	tracer  obs.Tracer
	logger  obs.Logger
	metrics obs.Metrics
}

type registeredMetrics struct {
	counters   map[obs.MetricKey]obs.Counter
	histograms map[obs.MetricKey]obs.Histogram
}

func (m *registeredMetrics) Counter(name obs.MetricKey) obs.Counter {
	if c, ok := m.counters[name]; ok && c != nil {
		return c
	}
	return obs.NopCounter()
}

func (m *registeredMetrics) Histogram(name obs.MetricKey) obs.Histogram {
	if h, ok := m.histograms[name]; ok && h != nil {
		return h
	}
	return obs.NopHistogram()
}

// New bundles the supplied tracer, logger, and pre-registered instruments.
// Nil components fall back to no-ops.
func New(
	tracer obs.Tracer,
	logger obs.Logger,
	counters map[obs.MetricKey]obs.Counter,
	histograms map[obs.MetricKey]obs.Histogram,
) obs.Observability {
	if tracer == nil {
		tracer = obs.NopTracer()
	}
	if logger == nil {
		logger = obs.NopLogger()
	}

	metrics := &registeredMetrics{
		counters:   make(map[obs.MetricKey]obs.Counter, len(counters)),
		histograms: make(map[obs.MetricKey]obs.Histogram, len(histograms)),
	}
	for k, v := range counters {
		if v != nil {
			metrics.counters[k] = v
		}
	}
	for k, v := range histograms {
		if v != nil {
			metrics.histograms[k] = v
		}
	}

	return &provider{tracer: tracer, logger: logger, metrics: metrics}
}

func (p *provider) Tracer() obs.Tracer   { return p.tracer }
func (p *provider) Logger() obs.Logger   { return p.logger }
func (p *provider) Metrics() obs.Metrics { return p.metrics }
