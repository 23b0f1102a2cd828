package report

import (
	"fmt"
	"html"
	"strings"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Frenum Test Report</title>
<style>
body { font-family: monospace; }
table { border-collapse: collapse; width: 100%%; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.pass { color: #0a0; font-weight: bold; }
.fail { color: #a00; font-weight: bold; }
.bar { background: #eee; width: 300px; height: 14px; }
.bar-fill { background: #0a0; height: 14px; }
</style>
</head>
<body>
<h1>Frenum Test Report</h1>
<table>
<tr><th>Description</th><th>Result</th><th>Decision</th><th>Blocking Rule</th></tr>
%s
</table>
<p>Passed: %d  Failed: %d</p>
<p>Guardrail coverage: %.1f%% (%d/%d deterministic rules)</p>
<div class="bar"><div class="bar-fill" style="width:%.1f%%"></div></div>
%s%s
<p>Evidence hash: %s</p>
</body>
</html>
`

// RenderHTML renders r as a table with a coverage progress bar. No
// templating library is wired (html/template covers this deterministically
// on its own), so this builds the document with a fixed fmt.Sprintf
// skeleton and html.EscapeString on every user-controlled field — the same
// output for the same inputs every time (spec.md §4.8).
func RenderHTML(r TestRunReport) string {
	var rows strings.Builder
	passed, failed := 0, 0
	for _, o := range r.Outcomes {
		class := "pass"
		resultText := "PASS"
		if o.Diagnostic != "" {
			class, resultText = "fail", "ERROR: "+o.Diagnostic
			failed++
		} else if o.Passed {
			passed++
		} else {
			class, resultText = "fail", "FAIL"
			failed++
		}
		fmt.Fprintf(&rows, "<tr><td>%s</td><td class=\"%s\">%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(o.Case.Description),
			class,
			html.EscapeString(resultText),
			html.EscapeString(string(o.ActualDecision)),
			html.EscapeString(o.ActualBlockingRule),
		)
	}

	var notExercised, semantic string
	if len(r.Coverage.RulesNotExercised) > 0 {
		notExercised = fmt.Sprintf("<p>Not exercised: %s</p>\n", html.EscapeString(strings.Join(r.Coverage.RulesNotExercised, ", ")))
	}
	if len(r.Coverage.SemanticRules) > 0 {
		semantic = fmt.Sprintf("<p>Semantic rules (not counted): %s</p>\n", html.EscapeString(strings.Join(r.Coverage.SemanticRules, ", ")))
	}

	return fmt.Sprintf(htmlTemplate,
		rows.String(),
		passed, failed,
		r.Coverage.CoveragePct, r.Coverage.Exercised, r.Coverage.TotalDeterministic,
		r.Coverage.CoveragePct,
		notExercised, semantic,
		r.Hash(),
	)
}
