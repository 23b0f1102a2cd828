// Package server exposes the evaluator over HTTP: POST /v1/evaluate and
// GET /v1/healthz, an optional embedding surface alongside the `frenum`
// CLI's direct library use. Grounded on the route-registration style of
// services/trace/routes.go (RegisterRoutes over a *gin.RouterGroup with a
// *Handlers receiver) and instrumented with otelgin the way
// services/trace wires tracing into its router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/terry-li-hm/frenum/internal/audit"
	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/metrics"
	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/value"
)

const tracerName = "frenum"

// ErrorResponse is the JSON body returned on a handler error, matching
// the {error, code} shape the teacher's debug handlers use.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// evaluateRequest is the JSON body POST /v1/evaluate accepts: a ToolCall
// plus an optional trace id the caller wants carried into the audit
// record (spec.md §6, "Embedding contract").
type evaluateRequest struct {
	Name    string      `json:"name" binding:"required"`
	Args    interface{} `json:"args"`
	TraceID string      `json:"trace_id"`
}

// Handlers bundles the engine state an HTTP request needs. PolicyVersion
// is carried so audit records include it without a second lookup.
type Handlers struct {
	Eval          *evaluator.Evaluator
	Audit         *audit.Logger
	PolicyVersion string
	Logger        *slog.Logger
}

// NewHandlers constructs Handlers over an already-compiled policy.
func NewHandlers(compiled *policy.CompiledPolicy, eval *evaluator.Evaluator, auditLogger *audit.Logger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{Eval: eval, Audit: auditLogger, PolicyVersion: compiled.PolicyVersion, Logger: logger}
}

// RegisterRoutes registers the evaluate/health routes on rg, mirroring
// RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) in
// services/trace/routes.go.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/evaluate", handlers.HandleEvaluate)
	rg.GET("/healthz", handlers.HandleHealthz)
}

// NewRouter builds a gin.Engine with otelgin tracing middleware and the
// /v1 route group registered, ready to serve. Any extra middleware (e.g.
// gin.Logger() for debug mode) must be passed in here rather than added
// via router.Use afterward, since gin binds a route's middleware chain at
// registration time.
func NewRouter(handlers *Handlers, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(tracerName))
	for _, mw := range extra {
		router.Use(mw)
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

// HandleEvaluate evaluates one tool call and appends an audit record.
// I/O errors from the audit log are logged but never change the HTTP
// response: the evaluator's decision already happened and is total
// (spec.md §7).
func (h *Handlers) HandleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	args := jsonToValue(req.Args)
	call := evaluator.ToolCall{Name: req.Name, Args: args}

	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "evaluator.Evaluate",
		oteltrace.WithAttributes(attribute.String("tool", req.Name)))
	result := h.Eval.Evaluate(call)
	span.SetAttributes(attribute.String("decision", string(result.Decision)))
	if result.Decision == evaluator.DecisionBlock {
		span.SetStatus(codes.Error, result.Reason)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	metrics.RecordDecision(req.Name, result.Decision)
	metrics.RecordBlock(req.Name, result.BlockingRule)

	if h.Audit != nil {
		_, auditSpan := otel.Tracer(tracerName).Start(ctx, "audit.Logger.Log")
		if _, err := h.Audit.Log(h.PolicyVersion, req.Name, args, result, req.TraceID, nil); err != nil {
			h.Logger.Error("audit write failed", slog.String("tool", req.Name), slog.Any("error", err))
			metrics.RecordAuditWriteError()
			auditSpan.SetStatus(codes.Error, err.Error())
		} else {
			auditSpan.SetStatus(codes.Ok, "")
		}
		auditSpan.End()
	}

	c.JSON(http.StatusOK, result)
}

// HandleHealthz reports liveness.
func (h *Handlers) HandleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// jsonToValue converts a generically-decoded JSON body (map/slice/scalar
// from encoding/json, via gin's ShouldBindJSON into interface{}) into a
// value.Value tree. JSON object key order is not preserved by
// encoding/json's map decoding — callers that need order-sensitive probing
// of HTTP-submitted args should use the YAML-based internal/policyio path
// instead; this HTTP surface is a convenience transport, not the primary
// ordered-decode boundary (spec.md §6 delegates only one such boundary).
func jsonToValue(raw interface{}) value.Value {
	switch t := raw.(type) {
	case map[string]interface{}:
		entries := make([]value.Entry, 0, len(t))
		for k, v := range t {
			entries = append(entries, value.Entry{Key: k, Value: jsonToValue(v)})
		}
		return value.Map(entries...)
	case []interface{}:
		items := make([]value.Value, len(t))
		for i, it := range t {
			items[i] = jsonToValue(it)
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
