package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/value"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type sequentialIDs struct {
	next int
}

func (s *sequentialIDs) NewID() string {
	s.next++
	return strings.Repeat("0", 8) + "-seq-" + itoa(s.next)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestLogRedactsMatchedScalarsOnly(t *testing.T) {
	var buf bytes.Buffer
	clock := fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 600_000_000, time.UTC)}
	logger := NewLogger(&buf, clock, &sequentialIDs{}, true, nil)

	args := value.Map(
		value.Entry{Key: "body", Value: value.String("Customer HKID is A123456(3)")},
		value.Entry{Key: "subject", Value: value.String("hello")},
	)
	result := evaluator.EvaluationResult{
		Decision:       evaluator.DecisionBlock,
		BlockingRule:   "detect_pii",
		RulesEvaluated: []string{"detect_pii"},
		Redactions:     []evaluator.RedactionTarget{{Path: "body", Label: "hk_id"}},
	}

	rec, err := logger.Log("v1", "send_email", args, result, "trace-123", nil)
	require.NoError(t, err)
	require.Equal(t, "2026-01-02T03:04:05.600Z", rec.Timestamp)

	line := readOneLine(t, &buf)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &decoded), "record did not round-trip as JSON")
	toolArgs, ok := decoded["tool_args"].(map[string]interface{})
	require.True(t, ok, "expected tool_args object, got %v", decoded["tool_args"])
	require.Equal(t, "<redacted:hk_id>", toolArgs["body"])
	require.Equal(t, "hello", toolArgs["subject"], "non-matched scalar must be preserved")

	// Original args must be untouched.
	original, _ := args.Get("body")
	require.Equal(t, "Customer HKID is A123456(3)", original.CanonicalString(), "Log must not mutate the input args")
}

func TestLogWithoutRedactionPreservesArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, fixedClock{t: time.Unix(0, 0)}, &sequentialIDs{}, false, nil)
	args := value.Map(value.Entry{Key: "body", Value: value.String("A123456(3)")})
	result := evaluator.EvaluationResult{Decision: evaluator.DecisionAllow}

	if _, err := logger.Log("v1", "send_email", args, result, "", nil); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	line := readOneLine(t, &buf)
	var decoded map[string]interface{}
	json.Unmarshal(line, &decoded)
	toolArgs := decoded["tool_args"].(map[string]interface{})
	if toolArgs["body"] != "A123456(3)" {
		t.Fatalf("expected args untouched when redaction disabled, got %v", toolArgs["body"])
	}
}

func TestLogLineIsNewlineTerminatedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, fixedClock{t: time.Unix(0, 0)}, &sequentialIDs{}, false, nil)
	logger.Log("v1", "tool", value.Map(), evaluator.EvaluationResult{Decision: evaluator.DecisionAllow}, "", nil)
	logger.Log("v1", "tool", value.Map(), evaluator.EvaluationResult{Decision: evaluator.DecisionAllow}, "", nil)

	scanner := bufio.NewScanner(&buf)
	count := 0
	for scanner.Scan() {
		var rec map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", count, err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", count)
	}
}

func readOneLine(t *testing.T, buf *bytes.Buffer) []byte {
	t.Helper()
	scanner := bufio.NewScanner(buf)
	if !scanner.Scan() {
		t.Fatal("expected at least one line")
	}
	return scanner.Bytes()
}
