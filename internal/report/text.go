// Package report implements the report synthesizer (C8): text, JSON, and
// HTML renderings of a test run or an audit record stream, plus the
// evidence hash that makes a run's output tamper-evident.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/terry-li-hm/frenum/internal/testrunner"
)

var (
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	coverageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// TestRunReport bundles everything a rendering needs for a test run.
type TestRunReport struct {
	Outcomes []testrunner.TestOutcome
	Coverage testrunner.CoverageReport
}

// Hash returns the evidence hash for this report's outcomes/coverage.
func (r TestRunReport) Hash() string { return EvidenceHash(r.Outcomes, r.Coverage) }

// RenderText renders a fixed-width, colorized pass/fail summary with
// coverage to one decimal place and the evidence hash, matching the
// teacher's colorized CLI output style (lipgloss is a direct teacher
// dependency, used here instead of plain fmt.Println for pass/fail/
// coverage lines).
func RenderText(r TestRunReport) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Frenum Test Report"))
	b.WriteString("\n\n")

	passed, failed := 0, 0
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%-60s", o.Case.Description)
		if o.Diagnostic != "" {
			b.WriteString(failStyle.Render(fmt.Sprintf("%s ERROR  %s", line, o.Diagnostic)))
			b.WriteString("\n")
			failed++
			continue
		}
		if o.Passed {
			b.WriteString(passStyle.Render(fmt.Sprintf("%s PASS", line)))
			passed++
		} else {
			b.WriteString(failStyle.Render(fmt.Sprintf("%s FAIL  (decision=%s blocking_rule=%s)", line, o.ActualDecision, o.ActualBlockingRule)))
			failed++
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Passed: %d  Failed: %d\n", passed, failed)
	b.WriteString(coverageStyle.Render(fmt.Sprintf("Guardrail coverage: %.1f%% (%d/%d deterministic rules)", r.Coverage.CoveragePct, r.Coverage.Exercised, r.Coverage.TotalDeterministic)))
	b.WriteString("\n")
	if len(r.Coverage.RulesNotExercised) > 0 {
		fmt.Fprintf(&b, "Not exercised: %s\n", strings.Join(r.Coverage.RulesNotExercised, ", "))
	}
	if len(r.Coverage.SemanticRules) > 0 {
		fmt.Fprintf(&b, "Semantic rules (not counted): %s\n", strings.Join(r.Coverage.SemanticRules, ", "))
	}
	fmt.Fprintf(&b, "Evidence hash: %s\n", r.Hash())

	return b.String()
}
