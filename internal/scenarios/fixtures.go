package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
)

const scenarioRootRelativePath = "scenarios/cbaac"

var requiredScenarioMinimumFiles = map[string][]string{
	"golden-chain-middle-blocked":    {"README.md", "policy.yaml", "chain.yaml", "expected.yaml", "travel.json", "airline.json", "hotel.json"},
	"stale-attestation":              {"README.md", "policy.yaml", "chain.yaml", "expected.yaml", "concierge.json"},
	"codebase-and-provider-controls": {"README.md", "policy.yaml", "chain.yaml", "expected.yaml", "broker.json", "ledger.json"},
	"undeclared-sub-agents":          {"README.md", "policy.yaml", "chain.yaml", "expected.yaml", "planner.json"},
	"empty-manifest-unverified":      {"README.md", "policy.yaml", "chain.yaml", "expected.yaml", "ghost.json", "echo.json"},
}

func findRepoRoot(startDir string) (string, error) {
	current := startDir
	for {
		candidate := filepath.Join(current, "go.mod")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("unable to locate repository root from %s", startDir)
		}
		current = parent
	}
}
