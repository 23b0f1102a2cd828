// Package testrunner implements the declarative regression test runner
// and guardrail coverage metric (C7): it drives the evaluator against
// TestCase scenarios and reports which deterministic rules were actually
// exercised.
package testrunner

import (
	"fmt"
	"sort"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/policy"
)

// TestCase is one declarative scenario, per spec.md §4.7.
type TestCase struct {
	Description    string
	ToolCall       evaluator.ToolCall
	Expected       evaluator.Decision
	ExpectedRule   string // only meaningful when Expected == DecisionBlock
	constructError error  // set if the case itself could not be built (spec.md §7)
}

// NewTestCase validates a TestCase at construction time the way the
// corpus validates decoded config (see policy.Compile); a case that
// fails this validation is retained and surfaces as a single failed
// outcome rather than aborting the whole run (spec.md §7).
func NewTestCase(description string, call evaluator.ToolCall, expected evaluator.Decision, expectedRule string) TestCase {
	tc := TestCase{Description: description, ToolCall: call, Expected: expected, ExpectedRule: expectedRule}
	if call.Name == "" {
		tc.constructError = fmt.Errorf("test case %q: tool_call.name must not be empty", description)
	}
	if expected != evaluator.DecisionAllow && expected != evaluator.DecisionBlock {
		tc.constructError = fmt.Errorf("test case %q: expected must be allow or block, got %q", description, expected)
	}
	return tc
}

// TestOutcome is the result of running one TestCase against an Evaluator.
type TestOutcome struct {
	Case               TestCase
	ActualDecision     evaluator.Decision
	ActualBlockingRule string
	RulesEvaluated     []string
	Passed             bool
	Diagnostic         string // set only when the case itself could not be constructed
}

// Run drives every case against eval, in order, and never aborts: a case
// that failed construction becomes a failed outcome with a diagnostic
// message (spec.md §7, "Test runner errors").
func Run(eval *evaluator.Evaluator, cases []TestCase) []TestOutcome {
	outcomes := make([]TestOutcome, len(cases))
	for i, tc := range cases {
		if tc.constructError != nil {
			outcomes[i] = TestOutcome{Case: tc, Passed: false, Diagnostic: tc.constructError.Error()}
			continue
		}
		result := eval.Evaluate(tc.ToolCall)
		passed := result.Decision == tc.Expected
		if passed && tc.Expected == evaluator.DecisionBlock && tc.ExpectedRule != "" {
			passed = result.BlockingRule == tc.ExpectedRule
		}
		outcomes[i] = TestOutcome{
			Case:               tc,
			ActualDecision:     result.Decision,
			ActualBlockingRule: result.BlockingRule,
			RulesEvaluated:     result.RulesEvaluated,
			Passed:             passed,
		}
	}
	return outcomes
}

// CoverageReport is the guardrail coverage computed over deterministic
// rules only, per spec.md §4.7. JSON tags mirror the wire field names
// spec.md §3 gives CoverageReport.
type CoverageReport struct {
	TotalDeterministic int      `json:"total_deterministic"`
	Exercised          int      `json:"exercised"`
	CoveragePct        float64  `json:"coverage_pct"`
	RulesNotExercised  []string `json:"rules_not_exercised"`
	SemanticRules      []string `json:"semantic_rules"`
}

// Coverage computes guardrail coverage for compiled against the rules
// actually exercised by outcomes (appearing in rules_evaluated or as a
// blocking_rule for any case). Semantic rules are reported separately and
// never counted in either numerator or denominator.
func Coverage(compiled *policy.CompiledPolicy, outcomes []TestOutcome) CoverageReport {
	deterministic := compiled.DeterministicRuleNames()
	deterministicSet := make(map[string]bool, len(deterministic))
	for _, n := range deterministic {
		deterministicSet[n] = true
	}

	exercisedSet := map[string]bool{}
	for _, o := range outcomes {
		if o.Diagnostic != "" {
			continue
		}
		for _, name := range o.RulesEvaluated {
			if deterministicSet[name] {
				exercisedSet[name] = true
			}
		}
		if o.ActualBlockingRule != "" && deterministicSet[o.ActualBlockingRule] {
			exercisedSet[o.ActualBlockingRule] = true
		}
	}

	var notExercised []string
	for _, n := range deterministic {
		if !exercisedSet[n] {
			notExercised = append(notExercised, n)
		}
	}
	sort.Strings(notExercised)

	pct := 0.0
	if len(deterministic) > 0 {
		pct = roundTo1dp(100 * float64(len(exercisedSet)) / float64(len(deterministic)))
	}

	semantic := append([]string(nil), compiled.SemanticRuleNames()...)
	sort.Strings(semantic)

	return CoverageReport{
		TotalDeterministic: len(deterministic),
		Exercised:          len(exercisedSet),
		CoveragePct:        pct,
		RulesNotExercised:  notExercised,
		SemanticRules:      semantic,
	}
}

func roundTo1dp(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
