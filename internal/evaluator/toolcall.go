// Package evaluator implements the short-circuit rule evaluator (C5):
// given a compiled policy and a tool call, it orders applicable rules,
// applies them, and derives a Decision with a human-readable rationale.
// The evaluator is total — for any ToolCall it returns an EvaluationResult,
// never an error; unexpected conditions inside rule evaluation fold into
// a block decision (spec.md §7).
package evaluator

import "github.com/terry-li-hm/frenum/internal/value"

// ToolCall is one structured invocation an agent wants to execute.
// Immutable once constructed.
type ToolCall struct {
	Name string
	Args value.Value
}

// Decision is the terminal verdict of an evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// EvaluationResult is the outcome of evaluating one ToolCall against a
// CompiledPolicy.
type EvaluationResult struct {
	Decision       Decision
	Reason         string
	BlockingRule   string
	RulesEvaluated []string
	MatchedPaths   []string

	// BlockingRuleDescription and BlockingRuleSeverity echo the blocking
	// rule's free-text operator metadata, if any was set (spec.md
	// supplement on structural conditions); empty when Decision is allow.
	BlockingRuleDescription string
	BlockingRuleSeverity    string

	// Redactions names every argument leaf that triggered a regex_block
	// pattern or a pii_detect detector during this evaluation, together
	// with the detector/rule name responsible. The audit logger (C6)
	// uses this to redact only matched scalars, never the whole payload.
	Redactions []RedactionTarget
}

// RedactionTarget is one argument leaf the audit logger must redact.
type RedactionTarget struct {
	Path  string
	Label string
}
