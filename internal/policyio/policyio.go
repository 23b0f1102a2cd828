// Package policyio decodes policy and test documents from YAML into the
// engine's generic value.Value tree and the policy/testrunner raw types.
// This is the external-decoder boundary spec.md §6 describes: the one
// place allowed to construct a value.Value from raw bytes, mirroring the
// load-validate pattern in services/trace/config/prefilter_config.go —
// except that pattern decodes into a typed struct via yaml.Unmarshal,
// which loses key order. The Value Probe (C1) requires document order, so
// this package walks *yaml.Node directly instead.
package policyio

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/testrunner"
	"github.com/terry-li-hm/frenum/internal/value"
)

// MaxDocumentSize bounds how much YAML this package will parse, matching
// the teacher's SEC2 file-size guard in prefilter_config.go.
const MaxDocumentSize = 10 << 20 // 10 MiB

// LoadPolicy decodes a policy document (spec.md §6) from YAML bytes into
// a policy.RawPolicy ready for policy.Compile or policy.Lint.
func LoadPolicy(data []byte) (policy.RawPolicy, error) {
	root, err := parseDocument(data)
	if err != nil {
		return policy.RawPolicy{}, err
	}

	var raw policy.RawPolicy
	raw.PolicyVersion = stringField(root, "policy_version")

	rulesNode := fieldNode(root, "rules")
	if rulesNode == nil {
		return raw, nil
	}
	if rulesNode.Kind != yaml.SequenceNode {
		return policy.RawPolicy{}, fmt.Errorf("policyio: LoadPolicy: %q must be a sequence", "rules")
	}

	for i, ruleNode := range rulesNode.Content {
		rr, err := decodeRawRule(ruleNode)
		if err != nil {
			return policy.RawPolicy{}, fmt.Errorf("policyio: LoadPolicy: rule[%d]: %w", i, err)
		}
		raw.Rules = append(raw.Rules, rr)
	}
	return raw, nil
}

func decodeRawRule(n *yaml.Node) (policy.RawRule, error) {
	if n.Kind != yaml.MappingNode {
		return policy.RawRule{}, fmt.Errorf("rule must be a mapping")
	}

	rr := policy.RawRule{
		Name:           stringField(n, "name"),
		Type:           firstNonEmptyStringField(n, "type", "kind"),
		Classification: stringField(n, "classification"),
		Description:    stringField(n, "description"),
		Severity:       stringField(n, "severity"),
	}

	if appliesNode := fieldNode(n, "applies_to"); appliesNode != nil {
		v, err := nodeToValue(appliesNode)
		if err != nil {
			return policy.RawRule{}, fmt.Errorf("applies_to: %w", err)
		}
		for _, item := range v.Items() {
			s, _ := item.AsString()
			rr.AppliesTo = append(rr.AppliesTo, s)
		}
	}

	if paramsNode := fieldNode(n, "params"); paramsNode != nil {
		v, err := nodeToValue(paramsNode)
		if err != nil {
			return policy.RawRule{}, fmt.Errorf("params: %w", err)
		}
		rr.Params = v
	} else {
		rr.Params = value.Map()
	}

	return rr, nil
}

// LoadTests decodes a test document (spec.md §6, "Top-level tests:
// ordered sequence of TestCase objects") into testrunner.TestCase values.
func LoadTests(data []byte) ([]testrunner.TestCase, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	testsNode := fieldNode(root, "tests")
	if testsNode == nil {
		return nil, nil
	}
	if testsNode.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("policyio: LoadTests: %q must be a sequence", "tests")
	}

	cases := make([]testrunner.TestCase, 0, len(testsNode.Content))
	for i, caseNode := range testsNode.Content {
		tc, err := decodeTestCase(caseNode)
		if err != nil {
			return nil, fmt.Errorf("policyio: LoadTests: tests[%d]: %w", i, err)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func decodeTestCase(n *yaml.Node) (testrunner.TestCase, error) {
	if n.Kind != yaml.MappingNode {
		return testrunner.TestCase{}, fmt.Errorf("test case must be a mapping")
	}

	description := stringField(n, "description")
	expected := evaluator.Decision(stringField(n, "expected"))
	expectedRule := stringField(n, "expected_rule")

	callNode := fieldNode(n, "tool_call")
	var call evaluator.ToolCall
	if callNode != nil {
		name := stringField(callNode, "name")
		args := value.Map()
		if argsNode := fieldNode(callNode, "args"); argsNode != nil {
			v, err := nodeToValue(argsNode)
			if err != nil {
				return testrunner.TestCase{}, fmt.Errorf("tool_call.args: %w", err)
			}
			args = v
		}
		call = evaluator.ToolCall{Name: name, Args: args}
	}

	return testrunner.NewTestCase(description, call, expected, expectedRule), nil
}

// parseDocument unmarshals data into a *yaml.Node and returns the
// top-level mapping node (the first document's root content).
func parseDocument(data []byte) (*yaml.Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("policyio: empty document")
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("policyio: document exceeds maximum size (%d > %d)", len(data), MaxDocumentSize)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policyio: parsing YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("policyio: empty or malformed document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("policyio: top-level document must be a mapping")
	}
	return root, nil
}

// fieldNode returns the value node for key in mapping node m, or nil.
func fieldNode(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func stringField(m *yaml.Node, key string) string {
	n := fieldNode(m, key)
	if n == nil {
		return ""
	}
	return n.Value
}

func firstNonEmptyStringField(m *yaml.Node, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

// nodeToValue converts a decoded *yaml.Node subtree into a value.Value,
// preserving mapping key order and sequence element order exactly as
// written in the source document.
func nodeToValue(n *yaml.Node) (value.Value, error) {
	switch n.Kind {
	case yaml.MappingNode:
		entries := make([]value.Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			child, err := nodeToValue(n.Content[i+1])
			if err != nil {
				return value.Value{}, err
			}
			entries = append(entries, value.Entry{Key: n.Content[i].Value, Value: child})
		}
		return value.Map(entries...), nil
	case yaml.SequenceNode:
		items := make([]value.Value, len(n.Content))
		for i, c := range n.Content {
			child, err := nodeToValue(c)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = child
		}
		return value.Seq(items...), nil
	case yaml.ScalarNode:
		return scalarToValue(n)
	case yaml.AliasNode:
		return nodeToValue(n.Alias)
	default:
		return value.Value{}, fmt.Errorf("policyio: unsupported node kind %v", n.Kind)
	}
}

func scalarToValue(n *yaml.Node) (value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return value.Value{}, err
		}
		return value.Number(f), nil
	default:
		return value.String(n.Value), nil
	}
}
