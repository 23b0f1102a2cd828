package policy

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/terry-li-hm/frenum/internal/pii"
	"github.com/terry-li-hm/frenum/internal/value"
)

// paramValidator validates the scalar shape of kind-specific params once
// they have been pulled out of the generic value.Value tree — struct-tag
// validation the way the rest of the corpus validates decoded config
// structs, not bespoke field-by-field checks.
var paramValidator = validator.New()

// regexBlockParams and friends are the intermediate, struct-tagged shape
// decoded from a rule's params subtree before compilation. These mirror
// the kind-specific schemas in spec.md §3 one field at a time so
// validator can enforce "non-empty", "required", etc.
type regexBlockParams struct {
	Fields   []string `validate:"required,min=1,dive,required"`
	Patterns []string `validate:"required,min=1,dive,required"`
}

type regexRequireParams struct {
	Fields  []string `validate:"required,min=1,dive,required"`
	Pattern string   `validate:"required"`
}

type piiDetectParams struct {
	Detectors []string `validate:"required,min=1,dive,required"`
	Action    string   `validate:"omitempty,oneof=block flag"`
}

type entitlementParams struct {
	Roles   map[string][]string `validate:"required,min=1"`
	Default string              `validate:"omitempty,oneof=block allow"`
}

type budgetParams struct {
	MaxCost   float64 `validate:"gte=0"`
	CostField string
}

type toolAllowlistParams struct {
	AllowedTools []string `validate:"required,min=1,dive,required"`
}

// Compile turns a RawPolicy into a CompiledPolicy. Any regex that fails
// to compile raises an error here (fail closed at construction time, per
// spec.md §3 invariant 3) rather than producing a recoverable finding —
// that recoverable path belongs to the linter (Lint), not Compile.
func Compile(raw RawPolicy) (*CompiledPolicy, error) {
	compiled := &CompiledPolicy{PolicyVersion: raw.PolicyVersion}
	seen := make(map[string]bool, len(raw.Rules))
	for _, rr := range raw.Rules {
		if seen[rr.Name] {
			return nil, fmt.Errorf("policy: duplicate rule name %q", rr.Name)
		}
		seen[rr.Name] = true

		rule, err := compileRule(rr)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q: %w", rr.Name, err)
		}
		compiled.Rules = append(compiled.Rules, rule)
	}
	return compiled, nil
}

func compileRule(rr RawRule) (*Rule, error) {
	classification := rr.Classification
	if classification == "" {
		classification = ClassificationDeterministic
	}

	rule := &Rule{
		Name:           rr.Name,
		Kind:           RuleKind(rr.Type),
		Classification: classification,
		AppliesToRaw:   rr.AppliesTo,
		Description:    rr.Description,
		Severity:       rr.Severity,
	}
	rule.appliesAll, rule.appliesLiteral, rule.appliesGlobs = splitAppliesTo(rr.AppliesTo)

	if !knownKind(rr.Type) {
		rule.Misconfigured = true
		rule.MisconfigReason = fmt.Sprintf("unknown rule type %q", rr.Type)
		return rule, nil
	}

	switch RuleKind(rr.Type) {
	case KindRegexBlock:
		if err := compileRegexBlock(rule, rr.Params); err != nil {
			return nil, err
		}
	case KindRegexRequire:
		if err := compileRegexRequire(rule, rr.Params); err != nil {
			return nil, err
		}
	case KindPIIDetect:
		if err := compilePIIDetect(rule, rr.Params); err != nil {
			return nil, err
		}
	case KindEntitlement:
		if err := compileEntitlement(rule, rr.Params); err != nil {
			return nil, err
		}
	case KindBudget:
		compileBudget(rule, rr.Params)
	case KindToolAllowlist:
		if err := compileToolAllowlist(rule, rr.Params); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func compileRegexBlock(rule *Rule, params value.Value) error {
	p := regexBlockParams{
		Fields:   stringListAt(params, "fields"),
		Patterns: stringListAt(params, "patterns"),
	}
	if err := paramValidator.Struct(p); err != nil {
		rule.Misconfigured = true
		rule.MisconfigReason = err.Error()
		return nil
	}
	compiledPatterns := make([]*regexp.Regexp, len(p.Patterns))
	for i, src := range p.Patterns {
		re, err := regexp.Compile(src)
		if err != nil {
			return fmt.Errorf("regex_block pattern %q: %w", src, err)
		}
		compiledPatterns[i] = re
	}
	rule.RegexBlock = &RegexBlockParams{Fields: p.Fields, PatternSources: p.Patterns, Patterns: compiledPatterns}
	return nil
}

func compileRegexRequire(rule *Rule, params value.Value) error {
	p := regexRequireParams{
		Fields:  stringListAt(params, "fields"),
		Pattern: stringAt(params, "pattern"),
	}
	if err := paramValidator.Struct(p); err != nil {
		rule.Misconfigured = true
		rule.MisconfigReason = err.Error()
		return nil
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return fmt.Errorf("regex_require pattern %q: %w", p.Pattern, err)
	}
	rule.RegexRequire = &RegexRequireParams{Fields: p.Fields, PatternSrc: p.Pattern, Pattern: re}
	return nil
}

func compilePIIDetect(rule *Rule, params value.Value) error {
	action := stringAt(params, "action")
	p := piiDetectParams{
		Detectors: stringListAt(params, "detectors"),
		Action:    action,
	}
	if err := paramValidator.Struct(p); err != nil {
		rule.Misconfigured = true
		rule.MisconfigReason = err.Error()
		return nil
	}
	for _, name := range p.Detectors {
		if !pii.Known(name) {
			rule.Misconfigured = true
			rule.MisconfigReason = fmt.Sprintf("unknown PII detector %q", name)
			return nil
		}
	}
	if action == "" {
		action = "block"
	}
	rule.PIIDetect = &PIIDetectParams{Detectors: p.Detectors, Action: action}
	return nil
}

func compileEntitlement(rule *Rule, params value.Value) error {
	rolesVal, _ := params.Get("roles")
	roles := map[string][]string{}
	for _, e := range rolesVal.Entries() {
		roles[e.Key] = stringListOf(e.Value)
	}
	def := stringAt(params, "default")
	p := entitlementParams{Roles: roles, Default: def}
	if err := paramValidator.Struct(p); err != nil {
		rule.Misconfigured = true
		rule.MisconfigReason = err.Error()
		return nil
	}
	if def == "" {
		def = "block"
	}
	compiledRoles := make(map[string]RoleEntry, len(roles))
	for name, tools := range roles {
		literal, globs := splitToolSet(tools)
		compiledRoles[name] = RoleEntry{Literal: literal, Globs: globs}
	}
	rule.Entitlement = &EntitlementParams{Roles: compiledRoles, Default: def}
	return nil
}

func compileBudget(rule *Rule, params value.Value) {
	costField := stringAt(params, "cost_field")
	if costField == "" {
		costField = "estimated_cost"
	}
	maxCost, _ := numberAt(params, "max_cost")
	rule.Budget = &BudgetParams{MaxCost: maxCost, CostField: costField}
}

func compileToolAllowlist(rule *Rule, params value.Value) error {
	p := toolAllowlistParams{AllowedTools: stringListAt(params, "allowed_tools")}
	if err := paramValidator.Struct(p); err != nil {
		rule.Misconfigured = true
		rule.MisconfigReason = err.Error()
		return nil
	}
	literal, globs := splitToolSet(p.AllowedTools)
	rule.ToolAllowlist = &ToolAllowlistParams{Literal: literal, Globs: globs}
	return nil
}

// --- generic param-tree helpers -------------------------------------------

func stringAt(v value.Value, key string) string {
	child, ok := v.Get(key)
	if !ok {
		return ""
	}
	s, _ := child.AsString()
	return s
}

func numberAt(v value.Value, key string) (float64, bool) {
	child, ok := v.Get(key)
	if !ok {
		return 0, false
	}
	return child.AsNumber()
}

func stringListAt(v value.Value, key string) []string {
	child, ok := v.Get(key)
	if !ok {
		return nil
	}
	return stringListOf(child)
}

func stringListOf(v value.Value) []string {
	items := v.Items()
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i], _ = it.AsString()
	}
	return out
}
