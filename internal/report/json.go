package report

import (
	"encoding/json"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/testrunner"
)

// structuredOutcome is the JSON-facing shape of one TestOutcome.
type structuredOutcome struct {
	Description        string             `json:"description"`
	Expected           evaluator.Decision `json:"expected"`
	ExpectedRule       string             `json:"expected_rule,omitempty"`
	ActualDecision     evaluator.Decision `json:"actual_decision"`
	ActualBlockingRule string             `json:"actual_blocking_rule,omitempty"`
	Passed             bool               `json:"passed"`
	Diagnostic         string             `json:"diagnostic,omitempty"`
}

// structuredReport is the full JSON rendering of a TestRunReport.
type structuredReport struct {
	Outcomes []structuredOutcome       `json:"outcomes"`
	Coverage testrunner.CoverageReport `json:"coverage"`
	Evidence string                    `json:"evidence_hash"`
}

// RenderJSON renders the full outcome and coverage objects as indented
// JSON, per spec.md §4.8.
func RenderJSON(r TestRunReport) ([]byte, error) {
	out := structuredReport{
		Coverage: r.Coverage,
		Evidence: r.Hash(),
	}
	for _, o := range r.Outcomes {
		out.Outcomes = append(out.Outcomes, structuredOutcome{
			Description:        o.Case.Description,
			Expected:           o.Case.Expected,
			ExpectedRule:       o.Case.ExpectedRule,
			ActualDecision:     o.ActualDecision,
			ActualBlockingRule: o.ActualBlockingRule,
			Passed:             o.Passed,
			Diagnostic:         o.Diagnostic,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}
