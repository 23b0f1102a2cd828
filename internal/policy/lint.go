package policy

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/terry-li-hm/frenum/internal/pii"
)

// Severity classifies a LintFinding as blocking (error) or advisory
// (warning). Only errors gate deployment per spec.md §6 CLI surface.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding codes, per spec.md §3.
const (
	CodeDuplicateRuleName  = "E003"
	CodeInvalidRegex       = "E001"
	CodeUnknownPIIDetector = "E002"
	CodeEmptyAppliesTo     = "W001"
	CodeMissingParams      = "W002"
	CodeUnknownRuleType    = "W003"
)

// LintFinding is one diagnostic emitted by Lint.
type LintFinding struct {
	Code     string
	Severity Severity
	RuleName string
	Message  string

	// RuleDescription and RuleSeverity echo the rule's own free-text
	// operator metadata (spec.md supplement on structural conditions), if
	// any was set; they are not evaluated and do not affect Severity above.
	RuleDescription string
	RuleSeverity    string
}

// Lint runs every static check in spec.md §3/§4.4 over a raw, undecompiled
// policy document and returns findings ordered by rule declaration order,
// then code ascending, then message — Lint itself never aborts; exit
// semantics belong to the caller (the `lint` CLI command).
func Lint(raw RawPolicy) []LintFinding {
	var findings []LintFinding

	seen := make(map[string]bool, len(raw.Rules))
	for _, rr := range raw.Rules {
		var ruleFindings []LintFinding

		if seen[rr.Name] {
			ruleFindings = append(ruleFindings, LintFinding{
				Code: CodeDuplicateRuleName, Severity: SeverityError, RuleName: rr.Name,
				Message: fmt.Sprintf("duplicate rule name %q", rr.Name),
			})
		}
		seen[rr.Name] = true

		if len(rr.AppliesTo) == 0 {
			ruleFindings = append(ruleFindings, LintFinding{
				Code: CodeEmptyAppliesTo, Severity: SeverityWarning, RuleName: rr.Name,
				Message: fmt.Sprintf("rule %q has an empty applies_to list", rr.Name),
			})
		}

		if !knownKind(rr.Type) {
			ruleFindings = append(ruleFindings, LintFinding{
				Code: CodeUnknownRuleType, Severity: SeverityWarning, RuleName: rr.Name,
				Message: fmt.Sprintf("rule %q has unknown type %q; it will unconditionally block", rr.Name, rr.Type),
			})
		} else {
			ruleFindings = append(ruleFindings, lintKindParams(rr)...)
		}

		for i := range ruleFindings {
			ruleFindings[i].RuleDescription = rr.Description
			ruleFindings[i].RuleSeverity = rr.Severity
		}
		sortFindings(ruleFindings)
		findings = append(findings, ruleFindings...)
	}

	return findings
}

// lintKindParams checks kind-specific invariants: invalid regex sources
// (E001), unknown PII detector names (E002), and missing mandatory
// params (W002). Unlike Compile, a failure here never aborts — it only
// appends a finding; the rule is still retained (and, per spec.md §3
// invariant 6, fails closed at evaluation time).
func lintKindParams(rr RawRule) []LintFinding {
	var findings []LintFinding

	switch RuleKind(rr.Type) {
	case KindRegexBlock:
		fields := stringListAt(rr.Params, "fields")
		patterns := stringListAt(rr.Params, "patterns")
		if len(fields) == 0 || len(patterns) == 0 {
			findings = append(findings, missingParamsFinding(rr.Name, "regex_block requires non-empty fields and patterns"))
		}
		for _, src := range patterns {
			if _, err := regexp.Compile(src); err != nil {
				findings = append(findings, invalidRegexFinding(rr.Name, src, err))
			}
		}
	case KindRegexRequire:
		fields := stringListAt(rr.Params, "fields")
		pattern := stringAt(rr.Params, "pattern")
		if len(fields) == 0 || pattern == "" {
			findings = append(findings, missingParamsFinding(rr.Name, "regex_require requires non-empty fields and a pattern"))
		}
		if pattern != "" {
			if _, err := regexp.Compile(pattern); err != nil {
				findings = append(findings, invalidRegexFinding(rr.Name, pattern, err))
			}
		}
	case KindPIIDetect:
		detectors := stringListAt(rr.Params, "detectors")
		if len(detectors) == 0 {
			findings = append(findings, missingParamsFinding(rr.Name, "pii_detect requires a non-empty detectors list"))
		}
		for _, name := range detectors {
			if !pii.Known(name) {
				findings = append(findings, LintFinding{
					Code: CodeUnknownPIIDetector, Severity: SeverityError, RuleName: rr.Name,
					Message: fmt.Sprintf("rule %q references unknown PII detector %q", rr.Name, name),
				})
			}
		}
	case KindEntitlement:
		rolesVal, ok := rr.Params.Get("roles")
		if !ok || len(rolesVal.Entries()) == 0 {
			findings = append(findings, missingParamsFinding(rr.Name, "entitlement requires a non-empty roles mapping"))
		}
	case KindBudget:
		// max_cost defaults sensibly to 0 (fail closed on any positive
		// cost) and cost_field defaults to "estimated_cost"; budget has
		// no mandatory param, so nothing to flag here.
	case KindToolAllowlist:
		if len(stringListAt(rr.Params, "allowed_tools")) == 0 {
			findings = append(findings, missingParamsFinding(rr.Name, "tool_allowlist requires a non-empty allowed_tools list"))
		}
	}

	return findings
}

func missingParamsFinding(ruleName, message string) LintFinding {
	return LintFinding{Code: CodeMissingParams, Severity: SeverityWarning, RuleName: ruleName, Message: fmt.Sprintf("rule %q: %s", ruleName, message)}
}

func invalidRegexFinding(ruleName, source string, err error) LintFinding {
	return LintFinding{
		Code: CodeInvalidRegex, Severity: SeverityError, RuleName: ruleName,
		Message: fmt.Sprintf("rule %q: pattern %q does not compile: %v", ruleName, source, err),
	}
}

func sortFindings(findings []LintFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Code != findings[j].Code {
			return findings[i].Code < findings[j].Code
		}
		return findings[i].Message < findings[j].Message
	})
}

// HasErrors reports whether any finding in the list is an error —
// warnings never change the lint command's exit code (spec.md §6).
func HasErrors(findings []LintFinding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
