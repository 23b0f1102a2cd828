package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/terry-li-hm/frenum/internal/audit"
	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/policyio"
	"github.com/terry-li-hm/frenum/internal/server"
)

var (
	serveConfigPath string
	serveAuditPath  string
	servePort       int
	serveDebug      bool
)

// serveCmd is the additive HTTP embedding surface from the domain-stack
// expansion (spec.md §6 "Embedding contract" is abstract; this is one
// concrete transport), grounded on cmd/trace/main.go's router setup.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the compiled policy over HTTP (POST /v1/evaluate, GET /v1/healthz)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to the policy YAML document")
	serveCmd.Flags().StringVar(&serveAuditPath, "audit-log", "", "path to append JSON-lines audit records (disabled if empty)")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable gin debug mode and request logging")
	serveCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(serveConfigPath)
	if err != nil {
		return fmt.Errorf("serve: reading %s: %w", serveConfigPath, err)
	}
	raw, err := policyio.LoadPolicy(data)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	compiled, err := policy.Compile(raw)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger := slog.Default()
	eval := evaluator.New(compiled, logger)

	var auditLogger *audit.Logger
	if serveAuditPath != "" {
		f, err := os.OpenFile(serveAuditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("serve: opening audit log %s: %w", serveAuditPath, err)
		}
		defer f.Close()
		auditLogger = audit.NewLogger(f, nil, nil, true, logger)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers := server.NewHandlers(compiled, eval, auditLogger, logger)
	var extra []gin.HandlerFunc
	if serveDebug {
		extra = append(extra, gin.Logger())
	}
	router := server.NewRouter(handlers, extra...)

	addr := fmt.Sprintf(":%d", servePort)
	logger.Info("frenum serve listening", slog.String("addr", addr), slog.String("policy_version", compiled.PolicyVersion))
	return router.Run(addr)
}
