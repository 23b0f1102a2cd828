package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/terry-li-hm/frenum/internal/audit"
	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/testrunner"
)

func sampleReport() TestRunReport {
	return TestRunReport{
		Outcomes: []testrunner.TestOutcome{
			{
				Case:           testrunner.NewTestCase("sql injection blocked", evaluator.ToolCall{Name: "execute_sql"}, evaluator.DecisionBlock, "block_sql_injection"),
				ActualDecision: evaluator.DecisionBlock, ActualBlockingRule: "block_sql_injection",
				RulesEvaluated: []string{"block_sql_injection"}, Passed: true,
			},
			{
				Case:           testrunner.NewTestCase("safe query allowed", evaluator.ToolCall{Name: "execute_sql"}, evaluator.DecisionAllow, ""),
				ActualDecision: evaluator.DecisionBlock, ActualBlockingRule: "block_sql_injection",
				RulesEvaluated: []string{"block_sql_injection"}, Passed: false,
			},
			{
				Case:       testrunner.NewTestCase("", evaluator.ToolCall{}, evaluator.DecisionAllow, ""),
				Diagnostic: `test case "": tool_call.name must not be empty`,
			},
		},
		Coverage: testrunner.CoverageReport{
			TotalDeterministic: 2,
			Exercised:          1,
			CoveragePct:        50.0,
			RulesNotExercised:  []string{"require_confirmation"},
			SemanticRules:      []string{"summarize_intent"},
		},
	}
}

func TestRenderTextIncludesPassFailAndCoverage(t *testing.T) {
	out := RenderText(sampleReport())
	for _, want := range []string{
		"sql injection blocked",
		"PASS",
		"FAIL",
		"ERROR",
		"Passed: 1  Failed: 2",
		"Guardrail coverage: 50.0%",
		"require_confirmation",
		"summarize_intent",
		"Evidence hash:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTextIsDeterministic(t *testing.T) {
	r := sampleReport()
	if RenderText(r) != RenderText(r) {
		t.Fatal("RenderText must be byte-identical across calls for the same report")
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	raw, err := RenderJSON(sampleReport())
	if err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("RenderJSON produced invalid JSON: %v", err)
	}
	outcomes, ok := decoded["outcomes"].([]interface{})
	if !ok || len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes in JSON, got %v", decoded["outcomes"])
	}
	coverage, ok := decoded["coverage"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected coverage object, got %v", decoded["coverage"])
	}
	if coverage["coverage_pct"] != 50.0 {
		t.Fatalf("expected coverage pct 50.0, got %v", coverage["coverage_pct"])
	}
	if decoded["evidence_hash"] == "" {
		t.Fatal("expected a non-empty evidence_hash")
	}
}

func TestRenderHTMLEscapesAndIsDeterministic(t *testing.T) {
	r := sampleReport()
	r.Outcomes[0].Case.Description = "<script>alert(1)</script>"
	out := RenderHTML(r)
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("RenderHTML must escape user-controlled description text")
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatal("expected escaped description in HTML output")
	}
	if RenderHTML(r) != RenderHTML(r) {
		t.Fatal("RenderHTML must be byte-identical across calls for the same report")
	}
	if !strings.Contains(out, "Guardrail coverage: 50.0%") {
		t.Fatal("expected coverage line in HTML output")
	}
}

func TestEvidenceHashStableForSameInputsDiffersOnChange(t *testing.T) {
	r1 := sampleReport()
	r2 := sampleReport()
	if r1.Hash() != r2.Hash() {
		t.Fatal("identical reports must produce identical evidence hashes")
	}
	r2.Outcomes[0].Passed = false
	if r1.Hash() == r2.Hash() {
		t.Fatal("changing an outcome must change the evidence hash")
	}
}

func TestSummarizeComputesRatesAndTopN(t *testing.T) {
	records := []audit.Record{
		{ToolName: "execute_sql", Decision: evaluator.DecisionBlock, RulesEvaluated: []string{"block_sql_injection"}, BlockingRule: "block_sql_injection"},
		{ToolName: "execute_sql", Decision: evaluator.DecisionBlock, RulesEvaluated: []string{"block_sql_injection"}, BlockingRule: "block_sql_injection",
			HumanOverride: &audit.HumanOverride{Actor: "ops", Reason: "false positive", NewDecision: "allow"}},
		{ToolName: "send_email", Decision: evaluator.DecisionAllow, RulesEvaluated: []string{"require_confirmation"}},
		{ToolName: "read_file", Decision: evaluator.DecisionAllow},
	}

	s := Summarize(records)
	if s.TotalEvaluations != 4 {
		t.Fatalf("expected 4 total evaluations, got %d", s.TotalEvaluations)
	}
	if s.BlockCount != 2 || s.AllowCount != 2 {
		t.Fatalf("expected 2 allow / 2 block, got allow=%d block=%d", s.AllowCount, s.BlockCount)
	}
	if s.BlockPct != 50.0 || s.AllowPct != 50.0 {
		t.Fatalf("expected 50.0%% each way, got allow=%v block=%v", s.AllowPct, s.BlockPct)
	}
	if len(s.TopBlockedTools) != 1 || s.TopBlockedTools[0].Name != "execute_sql" || s.TopBlockedTools[0].Count != 2 {
		t.Fatalf("expected execute_sql x2 as top blocked tool, got %v", s.TopBlockedTools)
	}
	if len(s.TopTriggeredRules) != 1 || s.TopTriggeredRules[0].Name != "block_sql_injection" || s.TopTriggeredRules[0].Count != 2 {
		t.Fatalf("expected block_sql_injection x2 as top triggered rule, got %v", s.TopTriggeredRules)
	}
	if s.OverriddenBlocks != 1 {
		t.Fatalf("expected 1 overridden block, got %d", s.OverriddenBlocks)
	}
	if s.HumanOverrideRate != 50.0 {
		t.Fatalf("expected 50.0%% human override rate, got %v", s.HumanOverrideRate)
	}
}

func TestSummarizeTopNTiesBrokenByName(t *testing.T) {
	records := make([]audit.Record, 0, 7)
	for _, name := range []string{"zeta", "alpha", "mike", "delta", "echo", "bravo"} {
		records = append(records, audit.Record{ToolName: name, Decision: evaluator.DecisionBlock})
	}
	s := Summarize(records)
	if len(s.TopBlockedTools) != topN {
		t.Fatalf("expected top-%d tools, got %d", topN, len(s.TopBlockedTools))
	}
	want := []string{"alpha", "bravo", "delta", "echo", "mike"}
	for i, name := range want {
		if s.TopBlockedTools[i].Name != name {
			t.Fatalf("expected tie-broken alphabetical order %v, got %v", want, s.TopBlockedTools)
		}
	}
}

func TestSummarizeZeroRecordsIsZero(t *testing.T) {
	s := Summarize(nil)
	if s.TotalEvaluations != 0 || s.AllowPct != 0 || s.BlockPct != 0 || s.HumanOverrideRate != 0 {
		t.Fatalf("expected all-zero summary for no records, got %+v", s)
	}
}
