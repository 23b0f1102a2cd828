// Package metrics exposes Prometheus counters and gauges for the engine:
// decisions by tool and outcome, blocks by rule, evaluation latency, audit
// write failures, and the guardrail coverage gauge a `test` run publishes.
// Grounded on the teacher's egress/metrics.go (promauto-registered
// CounterVec/HistogramVec under a namespace/subsystem pair), generalized
// from egress-call accounting to tool-call evaluation accounting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/terry-li-hm/frenum/internal/evaluator"
)

var (
	// decisionsTotal counts evaluations by tool name and decision.
	// Labels: tool, decision (allow, block)
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frenum",
		Subsystem: "evaluator",
		Name:      "decisions_total",
		Help:      "Total tool-call evaluations by tool name and decision",
	}, []string{"tool", "decision"})

	// blocksTotal counts blocks by the rule that fired.
	// Labels: tool, rule
	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frenum",
		Subsystem: "evaluator",
		Name:      "blocks_total",
		Help:      "Total blocked tool calls by tool name and blocking rule",
	}, []string{"tool", "rule"})

	// evaluationLatencySeconds measures per-call evaluation latency.
	// Labels: tool
	evaluationLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "frenum",
		Subsystem: "evaluator",
		Name:      "evaluation_latency_seconds",
		Help:      "Evaluate() latency by tool name",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"tool"})

	// auditWriteErrorsTotal counts audit log append failures.
	auditWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "frenum",
		Subsystem: "audit",
		Name:      "write_errors_total",
		Help:      "Total audit log append failures",
	})

	// guardrailCoverageRatio is the most recent guardrail coverage
	// percentage published by a `frenum test` run.
	guardrailCoverageRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "frenum",
		Subsystem: "testrunner",
		Name:      "guardrail_coverage_pct",
		Help:      "Most recent guardrail coverage percentage (0-100)",
	})
)

// RecordDecision records one evaluation outcome for tool.
func RecordDecision(tool string, decision evaluator.Decision) {
	decisionsTotal.WithLabelValues(tool, string(decision)).Inc()
}

// RecordBlock records one block attributable to rule for tool. Call only
// when decision is block; a no-op blocking rule name is never recorded.
func RecordBlock(tool, rule string) {
	if rule == "" {
		return
	}
	blocksTotal.WithLabelValues(tool, rule).Inc()
}

// ObserveEvaluationLatency records how long one Evaluate call for tool
// took, in seconds.
func ObserveEvaluationLatency(tool string, seconds float64) {
	evaluationLatencySeconds.WithLabelValues(tool).Observe(seconds)
}

// RecordAuditWriteError increments the audit write failure counter.
func RecordAuditWriteError() {
	auditWriteErrorsTotal.Inc()
}

// SetGuardrailCoverage publishes the latest guardrail coverage percentage
// (spec.md §4.7) as a gauge, so dashboards reflect the most recent test run.
func SetGuardrailCoverage(pct float64) {
	guardrailCoverageRatio.Set(pct)
}
