package policy

import (
	"testing"

	"github.com/terry-li-hm/frenum/internal/value"
)

func sqlInjectionPolicy() RawPolicy {
	return RawPolicy{
		PolicyVersion: "v1",
		Rules: []RawRule{
			{
				Name:      "block_sql_injection",
				Type:      string(KindRegexBlock),
				AppliesTo: []string{"execute_sql"},
				Params: value.Map(
					value.Entry{Key: "fields", Value: value.Seq(value.String("query"))},
					value.Entry{Key: "patterns", Value: value.Seq(value.String(`(?i)(DROP|DELETE|TRUNCATE)\s+TABLE`))},
				),
			},
		},
	}
}

func TestCompileRegexBlock(t *testing.T) {
	compiled, err := Compile(sqlInjectionPolicy())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(compiled.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(compiled.Rules))
	}
	rule := compiled.Rules[0]
	if rule.Misconfigured {
		t.Fatalf("rule should not be misconfigured: %s", rule.MisconfigReason)
	}
	if rule.RegexBlock == nil || len(rule.RegexBlock.Patterns) != 1 {
		t.Fatalf("expected one compiled pattern, got %+v", rule.RegexBlock)
	}
	if !rule.AppliesTo("execute_sql") {
		t.Fatal("expected rule to apply to execute_sql")
	}
	if rule.AppliesTo("send_email") {
		t.Fatal("rule must not apply to unrelated tool")
	}
}

func TestCompileDuplicateRuleNameErrors(t *testing.T) {
	raw := sqlInjectionPolicy()
	raw.Rules = append(raw.Rules, raw.Rules[0])
	if _, err := Compile(raw); err == nil {
		t.Fatal("expected an error for duplicate rule names")
	}
}

func TestCompileInvalidRegexErrors(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{{
		Name:      "bad",
		Type:      string(KindRegexBlock),
		AppliesTo: []string{"*"},
		Params: value.Map(
			value.Entry{Key: "fields", Value: value.Seq(value.String("query"))},
			value.Entry{Key: "patterns", Value: value.Seq(value.String("(unterminated"))},
		),
	}}}
	if _, err := Compile(raw); err == nil {
		t.Fatal("expected an error for an unparseable regex at construction time")
	}
}

func TestCompileUnknownRuleTypeFailsClosed(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{{
		Name:      "mystery",
		Type:      "frobnicate",
		AppliesTo: []string{"*"},
		Params:    value.Map(),
	}}}
	compiled, err := Compile(raw)
	if err != nil {
		t.Fatalf("unknown kind must compile, not error: %v", err)
	}
	if !compiled.Rules[0].Misconfigured {
		t.Fatal("rule with unknown type must be marked misconfigured (fail closed)")
	}
}

func TestCompileMissingMandatoryParamsFailsClosed(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{{
		Name:      "incomplete",
		Type:      string(KindRegexBlock),
		AppliesTo: []string{"*"},
		Params:    value.Map(),
	}}}
	compiled, err := Compile(raw)
	if err != nil {
		t.Fatalf("missing params must compile, not error: %v", err)
	}
	if !compiled.Rules[0].Misconfigured {
		t.Fatal("rule missing mandatory params must be marked misconfigured (fail closed)")
	}
}

func TestCompileEntitlementRoles(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{{
		Name:      "entitlement",
		Type:      string(KindEntitlement),
		AppliesTo: []string{"*"},
		Params: value.Map(
			value.Entry{Key: "roles", Value: value.Map(
				value.Entry{Key: "analyst", Value: value.Seq(value.String("search"), value.String("get_data"))},
				value.Entry{Key: "admin", Value: value.Seq(value.String("*"))},
			)},
			value.Entry{Key: "default", Value: value.String("block")},
		),
	}}}
	compiled, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ent := compiled.Rules[0].Entitlement
	if ent == nil {
		t.Fatal("expected entitlement params")
	}
	if !ent.Roles["admin"].Globs[0].MatchString("execute_sql") {
		t.Fatal("admin role's \"*\" glob should match any tool")
	}
	if ent.Roles["analyst"].Literal["search"] != true {
		t.Fatal("analyst role should literally allow search")
	}
}

func TestCompileBudgetDefaultsCostField(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{{
		Name:      "budget",
		Type:      string(KindBudget),
		AppliesTo: []string{"*"},
		Params: value.Map(
			value.Entry{Key: "max_cost", Value: value.Number(5)},
		),
	}}}
	compiled, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if compiled.Rules[0].Budget.CostField != "estimated_cost" {
		t.Fatalf("expected default cost_field, got %q", compiled.Rules[0].Budget.CostField)
	}
}

func TestDeterministicAndSemanticRuleNames(t *testing.T) {
	raw := RawPolicy{Rules: []RawRule{
		{Name: "r1", Type: string(KindToolAllowlist), AppliesTo: []string{"*"}, Params: value.Map(
			value.Entry{Key: "allowed_tools", Value: value.Seq(value.String("search"))},
		)},
		{Name: "r2", Type: string(KindToolAllowlist), Classification: ClassificationSemantic, AppliesTo: []string{"*"}, Params: value.Map(
			value.Entry{Key: "allowed_tools", Value: value.Seq(value.String("search"))},
		)},
	}}
	compiled, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := compiled.DeterministicRuleNames(); len(got) != 1 || got[0] != "r1" {
		t.Fatalf("expected [r1], got %v", got)
	}
	if got := compiled.SemanticRuleNames(); len(got) != 1 || got[0] != "r2" {
		t.Fatalf("expected [r2], got %v", got)
	}
}
