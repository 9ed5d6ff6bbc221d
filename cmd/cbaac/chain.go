package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/cbaac/core/auditlog"
	"github.com/davidahmann/cbaac/core/compliance"
	schemaaudit "github.com/davidahmann/cbaac/core/schema/v1/audit"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

const maxConcurrentManifestLoads = 8

type chainOutput struct {
	OK           bool                        `json:"ok"`
	ChainID      string                      `json:"chain_id,omitempty"`
	PolicyDigest string                      `json:"policy_digest"`
	Chain        *schemaverdict.ChainVerdict `json:"chain"`
}

type chainAgentSpec struct {
	name string
	path string
}

func runChain(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Evaluate an ordered delegation chain of agents against one policy. Every agent is evaluated independently; the edge into an agent is red when the agent before it was blocked. Exit 3 when any agent is blocked.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"policy": true, "now": true, "audit-log": true})

	flagSet := flag.NewFlagSet("chain", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var policyPath string
	var nowRaw string
	var auditLogPath string
	var jsonOutput bool

	flagSet.StringVar(&policyPath, "policy", "", "policy file (YAML or JSON)")
	flagSet.StringVar(&nowRaw, "now", "", "evaluation instant (RFC 3339)")
	flagSet.StringVar(&auditLogPath, "audit-log", "", "append evaluation records to this JSONL file")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "chain", usageError("%v", err), exitInvalidInput)
	}
	configuration, err := loadProjectConfig()
	if err != nil {
		return writeCommandError(jsonOutput, "chain", err, exitInvalidInput)
	}

	specs := make([]chainAgentSpec, 0, len(flagSet.Args()))
	for _, argument := range flagSet.Args() {
		name, path, ok := strings.Cut(argument, "=")
		if !ok {
			if policyPath != "" || len(specs) > 0 {
				return writeCommandError(jsonOutput, "chain", usageError("expected <name=manifest.json>, got %q", argument), exitInvalidInput)
			}
			policyPath = argument
			continue
		}
		specs = append(specs, chainAgentSpec{name: strings.TrimSpace(name), path: strings.TrimSpace(path)})
	}
	policyPath = firstNonEmpty(policyPath, configuration.Evaluate.Policy)
	if policyPath == "" {
		return writeCommandError(jsonOutput, "chain", usageError("expected <policy.yaml> <name=manifest.json>..."), exitInvalidInput)
	}
	auditLogPath = firstNonEmpty(auditLogPath, configuration.Evaluate.AuditLog)

	now, err := parseNow(nowRaw)
	if err != nil {
		return writeCommandError(jsonOutput, "chain", err, exitInvalidInput)
	}
	policy, policyDigest, err := loadPolicyWithDigest(policyPath)
	if err != nil {
		return writeCommandError(jsonOutput, "chain", err, exitInvalidInput)
	}
	agents, digests, err := loadChainAgents(context.Background(), specs)
	if err != nil {
		return writeCommandError(jsonOutput, "chain", err, exitInvalidInput)
	}

	chain, err := compliance.EvaluateChain(agents, policy, compliance.EvalOptions{
		Now:             func() time.Time { return now },
		ProducerVersion: version,
	})
	if err != nil {
		return writeCommandError(jsonOutput, "chain", err, exitInvalidInput)
	}

	output := chainOutput{OK: true, PolicyDigest: policyDigest, Chain: &chain}
	if auditLogPath != "" {
		output.ChainID = auditlog.NewChainID()
		records := make([]schemaaudit.EvaluationRecord, 0, len(chain.Agents))
		for index, agent := range chain.Agents {
			records = append(records, auditlog.NewRecord(auditlog.Entry{
				AgentName:      agent.Name,
				ChainID:        output.ChainID,
				Verdict:        agent.Verdict,
				ManifestDigest: digests[index],
				PolicyDigest:   policyDigest,
			}, auditlog.RecordOptions{Source: auditlog.SourceCLI, ProducerVersion: version, Now: now}))
		}
		if err := auditlog.Append(auditLogPath, records...); err != nil {
			return writeCommandError(jsonOutput, "chain", err, exitInternalFailure)
		}
	}

	exitCode := exitOK
	if !chain.OverallPass {
		exitCode = exitPolicyBlocked
	}
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	fmt.Print(renderChain(chain))
	return exitCode
}

// loadChainAgents reads every manifest concurrently and returns the agents in
// argument order with their digests.
func loadChainAgents(ctx context.Context, specs []chainAgentSpec) ([]compliance.ChainAgent, []string, error) {
	agents := make([]compliance.ChainAgent, len(specs))
	digests := make([]string, len(specs))

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentManifestLoads)
	for index, spec := range specs {
		group.Go(func() error {
			if spec.path == "" {
				return usageError("agent %q has no manifest path", spec.name)
			}
			manifest, err := compliance.LoadManifestFile(spec.path)
			if err != nil {
				return fmt.Errorf("agent %q: %w", spec.name, err)
			}
			digest, err := compliance.ManifestDigest(manifest)
			if err != nil {
				return fmt.Errorf("agent %q: %w", spec.name, err)
			}
			agents[index] = compliance.ChainAgent{Name: spec.name, Manifest: manifest}
			digests[index] = digest
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return agents, digests, nil
}
