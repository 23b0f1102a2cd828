package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/value"
)

// Clock supplies the timestamp recorded on each audit entry. Production
// uses SystemClock; tests inject a fixed clock for reproducible records,
// mirroring the clock/ID-generator seams spec.md §4.6 calls for.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock: wall-clock UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator supplies decision IDs. Production uses UUIDGenerator;
// tests inject a deterministic sequence.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator is the production IDGenerator: a random UUIDv4 per
// decision, matching the teacher's `uuid.New().String()` call in
// egress/guard.go.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.New().String() }

// Logger is an append-only JSON-lines sink over decisions. Writes are
// serialized with a single mutex so line boundaries are never torn when
// called from concurrent evaluators, matching RateLimiter's mutex-guarded
// state in the teacher's rate_limiter.go.
type Logger struct {
	mu       sync.Mutex
	w        io.Writer
	clock    Clock
	ids      IDGenerator
	redact   bool
	logger   *slog.Logger
}

// NewLogger constructs a Logger writing JSON lines to w. clock and ids may
// be nil, in which case SystemClock/UUIDGenerator are used.
func NewLogger(w io.Writer, clock Clock, ids IDGenerator, redact bool, logger *slog.Logger) *Logger {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{w: w, clock: clock, ids: ids, redact: redact, logger: logger}
}

// Log appends one Record derived from an evaluation, redacting matched
// argument scalars first when redaction is enabled. I/O errors are
// returned to the caller (spec.md §7) — they never change the decision
// already made by the evaluator. override is optional and purely
// annotative: it never changes the Decision field already set from
// result (spec.md §9, Open Questions).
func (l *Logger) Log(policyVersion string, toolName string, args value.Value, result evaluator.EvaluationResult, traceID string, override *HumanOverride) (Record, error) {
	toolArgs := args
	if l.redact {
		toolArgs = redactArgs(args, result.Redactions)
	}

	rec := Record{
		DecisionID:              l.ids.NewID(),
		Timestamp:               FormatTimestamp(l.clock.Now()),
		PolicyVersion:           policyVersion,
		ToolName:                toolName,
		ToolArgs:                &redactedValue{v: toolArgs},
		Decision:                result.Decision,
		RulesEvaluated:          result.RulesEvaluated,
		BlockingRule:            result.BlockingRule,
		BlockingRuleDescription: result.BlockingRuleDescription,
		BlockingRuleSeverity:    result.BlockingRuleSeverity,
		HumanOverride:           override,
		TraceID:                 traceID,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("audit: marshal record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		l.logger.Error("audit log append failed", slog.String("decision_id", rec.DecisionID), slog.Any("error", err))
		return rec, fmt.Errorf("audit: append: %w", err)
	}
	return rec, nil
}

// redactArgs returns a deep copy of args with every leaf named in
// targets replaced by "<redacted:<label>>", never mutating args itself
// (spec.md §4.6: "Redaction runs over a deep copy, never the input").
func redactArgs(args value.Value, targets []evaluator.RedactionTarget) value.Value {
	out := value.Clone(args)
	for _, t := range targets {
		out = value.WithScalarAt(out, t.Path, fmt.Sprintf("<redacted:%s>", t.Label))
	}
	return out
}
