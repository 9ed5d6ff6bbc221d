package e2e

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/cbaac/internal/testutil"
)

const partnerPolicy = `name: EU partners
regulatory_requirements:
  required_jurisdictions: [EU]
  max_attestation_age_days: 365
model_provider_requirements:
  require_gpai_compliance: true
cultural_requirements:
  require_cultural_certification: false
`

func TestCLIManifestToAuditRoundTrip(t *testing.T) {
	root := testutil.RepoRoot(t)
	binPath := testutil.BuildBinary(t, root)
	workDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(workDir, "policy.yaml"), []byte(partnerPolicy))

	initCmd := exec.Command(binPath, "manifest", "init",
		"--jurisdictions", "eu",
		"--certification", "auto_verified",
		"--name", "TravelBot",
		"--model-provider", "Mistral",
		"--gpai",
		"--out", "travel.json",
	)
	initCmd.Dir = workDir
	if out, err := initCmd.CombinedOutput(); err != nil {
		t.Fatalf("cbaac manifest init failed: %v\n%s", err, string(out))
	}

	validateCmd := exec.Command(binPath, "manifest", "validate", "travel.json")
	validateCmd.Dir = workDir
	validateOut, err := validateCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("cbaac manifest validate failed: %v\n%s", err, string(validateOut))
	}
	if !strings.Contains(string(validateOut), "[yellow Auto-verified]") {
		t.Fatalf("unexpected validate output: %s", string(validateOut))
	}

	evaluateCmd := exec.Command(binPath, "evaluate", "policy.yaml", "travel.json", "--audit-log", "audit.jsonl", "--json")
	evaluateCmd.Dir = workDir
	evaluateOut, err := evaluateCmd.Output()
	if err != nil {
		t.Fatalf("cbaac evaluate failed: %v\n%s", err, string(evaluateOut))
	}
	var evaluateResult struct {
		OK           bool   `json:"ok"`
		EvaluationID string `json:"evaluation_id"`
		Verdict      struct {
			Pass bool   `json:"pass"`
			Tier string `json:"tier"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal(evaluateOut, &evaluateResult); err != nil {
		t.Fatalf("parse evaluate json output: %v\n%s", err, string(evaluateOut))
	}
	if !evaluateResult.OK || !evaluateResult.Verdict.Pass || evaluateResult.Verdict.Tier != "auto_verified" || evaluateResult.EvaluationID == "" {
		t.Fatalf("unexpected evaluate result: %s", string(evaluateOut))
	}

	auditCmd := exec.Command(binPath, "audit", "validate", "audit.jsonl")
	auditCmd.Dir = workDir
	auditOut, err := auditCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("cbaac audit validate failed: %v\n%s", err, string(auditOut))
	}
	if !strings.Contains(string(auditOut), "(1 records)") {
		t.Fatalf("unexpected audit validate output: %s", string(auditOut))
	}
}

func TestCLIBlockedChainExitCode(t *testing.T) {
	root := testutil.RepoRoot(t)
	binPath := testutil.BuildBinary(t, root)
	workDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(workDir, "policy.yaml"), []byte(partnerPolicy))
	testutil.WriteFile(t, filepath.Join(workDir, "good.json"), []byte(`{"compliance_attestations": {"jurisdictions": [{"jurisdiction": "EU", "compliant": true}]}, "model_provider_compliance": {"provider_name": "Mistral", "gpai_compliant": true}}`))
	testutil.WriteFile(t, filepath.Join(workDir, "bad.json"), []byte(`{"compliance_attestations": {"jurisdictions": [{"jurisdiction": "Japan", "compliant": true}]}, "model_provider_compliance": {"provider_name": "Mistral", "gpai_compliant": true}}`))

	chainCmd := exec.Command(binPath, "chain", "policy.yaml", "first=good.json", "second=bad.json", "third=good.json")
	chainCmd.Dir = workDir
	chainOut, err := chainCmd.Output()
	if code := testutil.CommandExitCode(t, err); code != 3 {
		t.Fatalf("expected exit 3 for blocked chain, got %d\n%s", code, string(chainOut))
	}
	if !strings.Contains(string(chainOut), "Missing required jurisdictions: EU") {
		t.Fatalf("expected missing jurisdiction reason: %s", string(chainOut))
	}
	if !strings.Contains(string(chainOut), "--(red)--x->\nthird") {
		t.Fatalf("expected red edge into third agent: %s", string(chainOut))
	}
	if !strings.Contains(string(chainOut), "summary: 2/3 passed, 1 blocked, 0 warned, chain blocked") {
		t.Fatalf("unexpected chain summary: %s", string(chainOut))
	}

	missingCmd := exec.Command(binPath, "evaluate", "policy.yaml", "absent.json", "--json")
	missingCmd.Dir = workDir
	missingOut, err := missingCmd.Output()
	if code := testutil.CommandExitCode(t, err); code != 1 {
		t.Fatalf("expected exit 1 for unreadable manifest, got %d\n%s", code, string(missingOut))
	}
	var envelope struct {
		ErrorCode     string `json:"error_code"`
		ErrorCategory string `json:"error_category"`
	}
	if err := json.Unmarshal(missingOut, &envelope); err != nil {
		t.Fatalf("parse error envelope: %v\n%s", err, string(missingOut))
	}
	if envelope.ErrorCode != "manifest_read_failed" || envelope.ErrorCategory != "io_failure" {
		t.Fatalf("unexpected error envelope: %s", string(missingOut))
	}
	if _, err := os.Stat(filepath.Join(workDir, "audit.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("no audit log expected without --audit-log: %v", err)
	}
}
