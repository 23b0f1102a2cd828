// Package audit implements the append-only audit log (C6): a fixed-order
// JSON-lines record schema, argument redaction over a deep copy, and the
// clock/ID-generator injection points that make records reproducible in
// tests — the same seam the teacher uses for EgressAuditor, generalized
// from structured slog output to a persisted record stream.
package audit

import (
	"encoding/json"
	"time"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/value"
)

// HumanOverride is an operator's post-hoc annotation on a decision. It is
// purely annotative per spec.md §9: the Decision field of the record it
// is attached to remains the engine's original verdict.
type HumanOverride struct {
	Actor       string `json:"actor"`
	Reason      string `json:"reason"`
	NewDecision string `json:"new_decision"`
}

// Record is one audit log line. Field order is fixed (spec.md §3/§6) and
// mirrored exactly by struct field order, since encoding/json serializes
// struct fields in declaration order.
type Record struct {
	DecisionID     string                `json:"decision_id"`
	Timestamp      string                `json:"timestamp"`
	PolicyVersion  string                `json:"policy_version"`
	ToolName       string                `json:"tool_name"`
	ToolArgs       *redactedValue        `json:"tool_args"`
	Decision       evaluator.Decision    `json:"decision"`
	RulesEvaluated []string              `json:"rules_evaluated"`
	BlockingRule   string                `json:"blocking_rule,omitempty"`

	// BlockingRuleDescription/Severity echo the blocking rule's free-text
	// operator metadata, for readability only (spec.md supplement on
	// structural conditions); absent when Decision is allow.
	BlockingRuleDescription string         `json:"blocking_rule_description,omitempty"`
	BlockingRuleSeverity    string         `json:"blocking_rule_severity,omitempty"`
	HumanOverride           *HumanOverride `json:"human_override,omitempty"`
	TraceID                 string         `json:"trace_id,omitempty"`
}

// redactedValue wraps a value.Value so it marshals to/from JSON using the
// same shape the probe walks (ordered map / sequence / scalar), without
// exposing value.Value's unexported fields to the json package directly.
type redactedValue struct {
	v value.Value
}

func (r *redactedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONAny(r.v))
}

func (r *redactedValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.v = fromJSONAny(raw)
	return nil
}

func toJSONAny(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindMap:
		m := make(map[string]interface{}, len(v.Entries()))
		keys := make([]string, 0, len(v.Entries()))
		for _, e := range v.Entries() {
			m[e.Key] = toJSONAny(e.Value)
			keys = append(keys, e.Key)
		}
		return orderedMap{keys: keys, values: m}
	case value.KindSeq:
		items := make([]interface{}, len(v.Items()))
		for i, it := range v.Items() {
			items[i] = toJSONAny(it)
		}
		return items
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindNumber:
		n, _ := v.AsNumber()
		return n
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	default:
		return nil
	}
}

// orderedMap implements json.Marshaler so map keys serialize in document
// order, matching the probe's insertion-order guarantee, instead of
// Go's alphabetical map-key sort.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func fromJSONAny(raw interface{}) value.Value {
	switch t := raw.(type) {
	case map[string]interface{}:
		entries := make([]value.Entry, 0, len(t))
		for k, v := range t {
			entries = append(entries, value.Entry{Key: k, Value: fromJSONAny(v)})
		}
		return value.Map(entries...)
	case []interface{}:
		items := make([]value.Value, len(t))
		for i, it := range t {
			items[i] = fromJSONAny(it)
		}
		return value.Seq(items...)
	case string:
		return value.String(t)
	case float64:
		return value.Number(t)
	case bool:
		return value.Bool(t)
	default:
		return value.Null()
	}
}

// FormatTimestamp renders t as RFC3339 UTC with millisecond precision,
// the wire format spec.md §3 mandates for AuditRecord.Timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
