package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davidahmann/cbaac/core/auditlog"
	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/schema/validate"
)

type auditSummaryOutput struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
	auditlog.Summary
}

type auditValidateOutput struct {
	OK      bool   `json:"ok"`
	Path    string `json:"path"`
	Records int    `json:"records"`
}

func runAudit(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Inspect evaluation audit logs written by --audit-log: summarise outcomes per trust tier or validate every record against the audit schema.")
	}
	if len(arguments) == 0 {
		printAuditUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "summary":
		return runAuditSummary(arguments[1:])
	case "validate":
		return runAuditValidate(arguments[1:])
	default:
		printAuditUsage()
		return exitInvalidInput
	}
}

func parseAuditArguments(command string, arguments []string) (string, bool, error) {
	arguments = reorderInterspersedFlags(arguments, nil)
	flagSet := flag.NewFlagSet(command, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var jsonOutput bool
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	if err := flagSet.Parse(arguments); err != nil {
		return "", jsonOutput, usageError("%v", err)
	}
	if len(flagSet.Args()) != 1 {
		return "", jsonOutput, usageError("expected <audit.jsonl>")
	}
	return flagSet.Args()[0], jsonOutput, nil
}

func runAuditSummary(arguments []string) int {
	path, jsonOutput, err := parseAuditArguments("audit summary", arguments)
	if err != nil {
		return writeCommandError(jsonOutput, "audit summary", err, exitInvalidInput)
	}
	records, err := auditlog.ReadRecords(path)
	if err != nil {
		return writeCommandError(jsonOutput, "audit summary", err, exitInvalidInput)
	}
	summary := auditlog.Summarize(records)
	if jsonOutput {
		return writeJSONOutput(auditSummaryOutput{OK: true, Path: path, Summary: summary}, exitOK)
	}

	fmt.Printf("audit summary: %s\n", path)
	fmt.Printf("evaluations: %d passed=%d blocked=%d warned=%d chains=%d\n", summary.Total, summary.Passed, summary.Blocked, summary.Warned, summary.Chains)
	for _, tier := range summary.Tiers {
		fmt.Printf("  %-20s total=%d passed=%d blocked=%d warned=%d\n", tier.Tier, tier.Total, tier.Passed, tier.Blocked, tier.Warned)
	}
	if summary.FirstAt != nil && summary.LastAt != nil {
		fmt.Printf("window: %s .. %s\n", summary.FirstAt.Format(time.RFC3339), summary.LastAt.Format(time.RFC3339))
	}
	return exitOK
}

func runAuditValidate(arguments []string) int {
	path, jsonOutput, err := parseAuditArguments("audit validate", arguments)
	if err != nil {
		return writeCommandError(jsonOutput, "audit validate", err, exitInvalidInput)
	}
	// #nosec G304 -- audit log path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return writeCommandError(jsonOutput, "audit validate", coreerrors.Wrap(fmt.Errorf("read audit log: %w", err), coreerrors.CategoryIOFailure, "audit_read_failed", "check the audit log path", false), exitInternalFailure)
	}
	if err := validate.ValidateAuditLog(content); err != nil {
		return writeCommandError(jsonOutput, "audit validate", err, exitInvalidInput)
	}
	records, err := auditlog.ParseRecords(content)
	if err != nil {
		return writeCommandError(jsonOutput, "audit validate", err, exitInvalidInput)
	}
	if jsonOutput {
		return writeJSONOutput(auditValidateOutput{OK: true, Path: path, Records: len(records)}, exitOK)
	}
	fmt.Printf("audit log valid: %s (%d records)\n", path, len(records))
	return exitOK
}

func printAuditUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cbaac audit summary <audit.jsonl> [--json] [--explain]")
	fmt.Println("  cbaac audit validate <audit.jsonl> [--json] [--explain]")
}
