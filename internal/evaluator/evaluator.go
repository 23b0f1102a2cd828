package evaluator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/terry-li-hm/frenum/internal/pii"
	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/value"
)

// outcomeKind is the per-rule result of applying one rule to one tool
// call, per spec.md §4.5 step 2.
type outcomeKind int

const (
	outcomePass outcomeKind = iota
	outcomeBlock
)

type outcome struct {
	kind         outcomeKind
	reason       string
	matchedPaths []string
	redactions   []RedactionTarget
}

// Evaluator applies a CompiledPolicy to tool calls. It is safe for
// concurrent read-only Evaluate calls once constructed: rules are
// immutable post-construction and the applicability cache is guarded by
// a RWMutex, mirroring the singleton-cache idiom the rest of this corpus
// uses for immutable, lazily-memoized config (prefilterConfigMu).
type Evaluator struct {
	policy *policy.CompiledPolicy
	logger *slog.Logger

	cacheMu sync.RWMutex
	cache   map[string][]int // tool name -> applicable rule indices, in declaration order
}

// New constructs an Evaluator over an already-compiled policy. Compile
// itself is where invalid regex sources raise a construction error
// (spec.md §3 invariant 3); by the time a *policy.CompiledPolicy reaches
// here every retained rule is either fully valid or deliberately
// Misconfigured-and-fail-closed.
func New(compiled *policy.CompiledPolicy, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		policy: compiled,
		logger: logger,
		cache:  make(map[string][]int),
	}
}

// Evaluate runs the first-block-wins algorithm in spec.md §4.5 and
// returns a total EvaluationResult — it never panics or returns an
// error; any internal anomaly folds into a block outcome.
func (e *Evaluator) Evaluate(call ToolCall) (result EvaluationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluator recovered from panic; failing closed", slog.Any("panic", r), slog.String("tool", call.Name))
			result = EvaluationResult{
				Decision: DecisionBlock,
				Reason:   fmt.Sprintf("evaluator errored: %v", r),
			}
		}
	}()

	indices := e.applicableIndices(call.Name)
	var evaluated []string
	var matched []string
	var redactions []RedactionTarget

	for _, idx := range indices {
		rule := e.policy.Rules[idx]
		evaluated = append(evaluated, rule.Name)

		out := e.applyRule(rule, call)
		if out.matchedPaths != nil {
			matched = append(matched, out.matchedPaths...)
		}
		redactions = append(redactions, out.redactions...)
		if out.kind == outcomeBlock {
			return EvaluationResult{
				Decision:                DecisionBlock,
				Reason:                  out.reason,
				BlockingRule:            rule.Name,
				RulesEvaluated:          evaluated,
				MatchedPaths:            matched,
				Redactions:              redactions,
				BlockingRuleDescription: rule.Description,
				BlockingRuleSeverity:    rule.Severity,
			}
		}
	}

	return EvaluationResult{
		Decision:       DecisionAllow,
		Reason:         "No rule blocked",
		RulesEvaluated: evaluated,
		MatchedPaths:   matched,
		Redactions:     redactions,
	}
}

// applicableIndices returns the ordered rule indices applicable to
// toolName, memoized per tool name. The cache is invalidated wholesale
// whenever the rule set changes (Reload constructs a fresh Evaluator
// rather than mutating this one — spec.md §5, "reload is a swap").
func (e *Evaluator) applicableIndices(toolName string) []int {
	e.cacheMu.RLock()
	if idx, ok := e.cache[toolName]; ok {
		e.cacheMu.RUnlock()
		return idx
	}
	e.cacheMu.RUnlock()

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if idx, ok := e.cache[toolName]; ok {
		return idx
	}

	var indices []int
	for i, r := range e.policy.Rules {
		if r.AppliesTo(toolName) {
			indices = append(indices, i)
		}
	}
	e.cache[toolName] = indices
	return indices
}

// applyRule computes the per-rule outcome for one rule against one tool
// call, dispatching on the rule's closed kind, per spec.md §4.5 step 2.
func (e *Evaluator) applyRule(rule *policy.Rule, call ToolCall) outcome {
	if rule.Misconfigured {
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Rule misconfigured: %s", rule.MisconfigReason)}
	}

	switch rule.Kind {
	case policy.KindRegexBlock:
		return evalRegexBlock(rule, call)
	case policy.KindRegexRequire:
		return evalRegexRequire(rule, call)
	case policy.KindPIIDetect:
		return evalPIIDetect(rule, call)
	case policy.KindEntitlement:
		return evalEntitlement(rule, call)
	case policy.KindBudget:
		return evalBudget(rule, call)
	case policy.KindToolAllowlist:
		return evalToolAllowlist(rule, call)
	default:
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Rule '%s' errored: unhandled kind %q", rule.Name, rule.Kind)}
	}
}

func evalRegexBlock(rule *policy.Rule, call ToolCall) outcome {
	p := rule.RegexBlock
	for _, field := range p.Fields {
		for _, leaf := range value.Collect(call.Args, field) {
			scalar := leaf.Value.CanonicalString()
			for _, re := range p.Patterns {
				if m := re.FindString(scalar); m != "" {
					return outcome{
						kind:       outcomeBlock,
						reason:     fmt.Sprintf("Pattern matched in '%s': %s", leaf.Path, m),
						redactions: []RedactionTarget{{Path: leaf.Path, Label: rule.Name}},
					}
				}
			}
		}
	}
	return outcome{kind: outcomePass}
}

func evalRegexRequire(rule *policy.Rule, call ToolCall) outcome {
	p := rule.RegexRequire
	for _, field := range p.Fields {
		leaf, ok := value.First(call.Args, field)
		scalar := ""
		if ok {
			scalar = leaf.Value.CanonicalString()
		}
		if scalar == "" || !p.Pattern.MatchString(scalar) {
			return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Required field '%s' missing or invalid", field)}
		}
	}
	return outcome{kind: outcomePass}
}

func evalPIIDetect(rule *policy.Rule, call ToolCall) outcome {
	p := rule.PIIDetect
	var matched []string
	var redactions []RedactionTarget
	for _, leaf := range value.Collect(call.Args, "") {
		scalar := leaf.Value.CanonicalString()
		if scalar == "" {
			continue
		}
		spans := pii.Scan(scalar, p.Detectors)
		if len(spans) == 0 {
			continue
		}
		if p.Action == "flag" {
			matched = append(matched, leaf.Path)
			redactions = append(redactions, RedactionTarget{Path: leaf.Path, Label: spans[0].Detector})
			continue
		}
		return outcome{
			kind:       outcomeBlock,
			reason:     fmt.Sprintf("PII detected (%s) in '%s'", spans[0].Detector, leaf.Path),
			redactions: []RedactionTarget{{Path: leaf.Path, Label: spans[0].Detector}},
		}
	}
	return outcome{kind: outcomePass, matchedPaths: matched, redactions: redactions}
}

func evalEntitlement(rule *policy.Rule, call ToolCall) outcome {
	p := rule.Entitlement
	role := ""
	if leaf, ok := value.First(call.Args, "role"); ok {
		role = leaf.Value.CanonicalString()
	}

	entry, known := p.Roles[role]
	if !known {
		if p.Default == "allow" {
			return outcome{kind: outcomePass}
		}
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Role '%s' not entitled to '%s'", role, call.Name)}
	}

	if policy.MatchesToolSet(entry.Literal, entry.Globs, call.Name) {
		return outcome{kind: outcomePass}
	}
	return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Role '%s' not entitled to '%s'", role, call.Name)}
}

func evalBudget(rule *policy.Rule, call ToolCall) outcome {
	p := rule.Budget
	leaf, ok := value.First(call.Args, p.CostField)
	if !ok {
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Estimated cost missing at '%s' exceeds max_cost %g", p.CostField, p.MaxCost)}
	}
	cost, ok := leaf.Value.AsNumber()
	if !ok {
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Estimated cost at '%s' is not numeric, exceeds max_cost %g", p.CostField, p.MaxCost)}
	}
	if cost > p.MaxCost {
		return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Estimated cost %g exceeds max_cost %g", cost, p.MaxCost)}
	}
	return outcome{kind: outcomePass}
}

func evalToolAllowlist(rule *policy.Rule, call ToolCall) outcome {
	p := rule.ToolAllowlist
	if policy.MatchesToolSet(p.Literal, p.Globs, call.Name) {
		return outcome{kind: outcomePass}
	}
	return outcome{kind: outcomeBlock, reason: fmt.Sprintf("Tool '%s' not in allowlist", call.Name)}
}
