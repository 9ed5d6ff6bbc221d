package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/davidahmann/cbaac/core/api"
)

func runServe(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Serve compliance evaluations over HTTP: POST /v1/evaluate, /v1/chain and /v1/classify, GET /healthz and /metrics. Verdicts are returned with status 200 whether the agent passes or not.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"listen": true, "audit-log": true, "max-request-bytes": true})

	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var listen string
	var auditLogPath string
	var maxRequestBytes int64

	flagSet.StringVar(&listen, "listen", "", "listen address")
	flagSet.StringVar(&auditLogPath, "audit-log", "", "append evaluation records to this JSONL file")
	flagSet.Int64Var(&maxRequestBytes, "max-request-bytes", 0, "maximum request body size")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(false, "serve", usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) != 0 || maxRequestBytes < 0 {
		return writeCommandError(false, "serve", usageError("serve takes no positional arguments and --max-request-bytes must be >= 0"), exitInvalidInput)
	}
	configuration, err := loadProjectConfig()
	if err != nil {
		return writeCommandError(false, "serve", err, exitInvalidInput)
	}
	if maxRequestBytes == 0 {
		maxRequestBytes = configuration.Serve.RequestLimit()
	}

	serveConfig := api.Config{
		Listen:          firstNonEmpty(listen, configuration.Serve.ListenAddress()),
		MaxRequestBytes: maxRequestBytes,
		AuditLog:        firstNonEmpty(auditLogPath, configuration.Serve.AuditLog),
		ProducerVersion: version,
		Logger:          slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Printf("cbaac serve: listening=%s\n", serveConfig.Listen)
	if err := api.ListenAndServe(ctx, serveConfig); err != nil {
		return writeCommandError(false, "serve", err, exitInternalFailure)
	}
	return exitOK
}
