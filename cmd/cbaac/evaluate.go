package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/davidahmann/cbaac/core/auditlog"
	"github.com/davidahmann/cbaac/core/compliance"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

type evaluateOutput struct {
	OK             bool                   `json:"ok"`
	AgentName      string                 `json:"agent_name,omitempty"`
	EvaluatedAt    string                 `json:"evaluated_at"`
	Verdict        *schemaverdict.Verdict `json:"verdict"`
	TierLabel      string                 `json:"tier_label"`
	EvaluationID   string                 `json:"evaluation_id,omitempty"`
	ManifestDigest string                 `json:"manifest_digest"`
	PolicyDigest   string                 `json:"policy_digest"`
}

func runEvaluate(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Evaluate one agent manifest against one policy. Exit 0 when the agent passes, 3 when any blocking reason is found. Warnings never block.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"policy": true, "agent": true, "now": true, "audit-log": true})

	flagSet := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var policyPath string
	var agentName string
	var nowRaw string
	var auditLogPath string
	var jsonOutput bool

	flagSet.StringVar(&policyPath, "policy", "", "policy file (YAML or JSON)")
	flagSet.StringVar(&agentName, "agent", "", "agent name for output and audit records")
	flagSet.StringVar(&nowRaw, "now", "", "evaluation instant (RFC 3339)")
	flagSet.StringVar(&auditLogPath, "audit-log", "", "append an evaluation record to this JSONL file")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "evaluate", usageError("%v", err), exitInvalidInput)
	}
	configuration, err := loadProjectConfig()
	if err != nil {
		return writeCommandError(jsonOutput, "evaluate", err, exitInvalidInput)
	}

	positionals := flagSet.Args()
	var manifestPath string
	switch len(positionals) {
	case 2:
		if policyPath != "" {
			return writeCommandError(jsonOutput, "evaluate", usageError("--policy conflicts with positional policy %q", positionals[0]), exitInvalidInput)
		}
		policyPath, manifestPath = positionals[0], positionals[1]
	case 1:
		policyPath = firstNonEmpty(policyPath, configuration.Evaluate.Policy)
		manifestPath = positionals[0]
	}
	if policyPath == "" || manifestPath == "" {
		return writeCommandError(jsonOutput, "evaluate", usageError("expected <policy.yaml> <manifest.json>"), exitInvalidInput)
	}
	auditLogPath = firstNonEmpty(auditLogPath, configuration.Evaluate.AuditLog)

	now, err := parseNow(nowRaw)
	if err != nil {
		return writeCommandError(jsonOutput, "evaluate", err, exitInvalidInput)
	}
	policy, policyDigest, err := loadPolicyWithDigest(policyPath)
	if err != nil {
		return writeCommandError(jsonOutput, "evaluate", err, exitInvalidInput)
	}
	manifest, err := compliance.LoadManifestFile(manifestPath)
	if err != nil {
		return writeCommandError(jsonOutput, "evaluate", err, exitInvalidInput)
	}
	manifestDigest, err := compliance.ManifestDigest(manifest)
	if err != nil {
		return writeCommandError(jsonOutput, "evaluate", err, exitInternalFailure)
	}

	verdict := compliance.Evaluate(manifest, policy, compliance.EvalOptions{
		Now:             func() time.Time { return now },
		ProducerVersion: version,
	})
	name := firstNonEmpty(agentName, manifest.Label, manifest.ID)

	output := evaluateOutput{
		OK:             true,
		AgentName:      name,
		EvaluatedAt:    now.Format(time.RFC3339Nano),
		Verdict:        &verdict,
		TierLabel:      compliance.TierLabel(verdict.Tier),
		ManifestDigest: manifestDigest,
		PolicyDigest:   policyDigest,
	}
	if auditLogPath != "" {
		record := auditlog.NewRecord(auditlog.Entry{
			AgentName:      name,
			Verdict:        verdict,
			ManifestDigest: manifestDigest,
			PolicyDigest:   policyDigest,
		}, auditlog.RecordOptions{Source: auditlog.SourceCLI, ProducerVersion: version, Now: now})
		if err := auditlog.Append(auditLogPath, record); err != nil {
			return writeCommandError(jsonOutput, "evaluate", err, exitInternalFailure)
		}
		output.EvaluationID = record.EvaluationID
	}

	exitCode := exitOK
	if !verdict.Pass {
		exitCode = exitPolicyBlocked
	}
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	fmt.Print(renderVerdict(name, verdict))
	return exitCode
}
