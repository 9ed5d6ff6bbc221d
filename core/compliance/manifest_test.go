package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
)

const travelManifestJSON = `{
  "@context": ["https://spec.projectnanda.org/agentfacts/v1"],
  "id": "nanda:travelbot-001",
  "label": "TravelBot",
  "provider": {"name": "Travel Co", "url": "https://travel.example"},
  "endpoints": {"static": ["https://travel.example/agent"]},
  "compliance_attestations": {
    "jurisdictions": [
      {"jurisdiction": "EU", "compliant": true, "regulations": ["GDPR"], "third_party_audit": false, "automated_verification": true, "attestation_date": "2026-01-10T00:00:00Z"}
    ],
    "cultural_benchmarks": {"certified": false}
  },
  "model_provider_compliance": {"provider_name": "Mistral", "model_name": "mistral-large", "gpai_compliant": true},
  "sub_agent_compliance": {"uses_sub_agents": true, "declared_sub_agents": [{"agent_id": "airline-bot", "compliance_verified": false}]},
  "codebase_verification": {"current_hash": "sha256:abc", "hash_at_attestation": "sha256:abc"}
}`

func TestParseManifestIgnoresUnknownFields(t *testing.T) {
	manifest, err := ParseManifest([]byte(travelManifestJSON))
	require.NoError(t, err)
	require.Equal(t, "TravelBot", manifest.Label)
	require.Len(t, manifest.ComplianceAttestations.Jurisdictions, 1)

	attestation := manifest.ComplianceAttestations.Jurisdictions[0]
	require.Equal(t, "EU", attestation.Jurisdiction)
	require.True(t, attestation.Compliant)
	require.True(t, attestation.AutomatedVerification)
	require.Equal(t, "2026-01-10T00:00:00Z", attestation.AttestationDate)
	require.NotNil(t, manifest.ComplianceAttestations.CulturalBenchmarks)
	require.True(t, manifest.SubAgentCompliance.UsesSubAgents)
	require.Equal(t, "airline-bot", manifest.SubAgentCompliance.DeclaredSubAgents[0].AgentID)
	require.Equal(t, "sha256:abc", manifest.CodebaseVerification.CurrentHash)
}

func TestParseManifestErrors(t *testing.T) {
	_, err := ParseManifest([]byte("  "))
	require.Equal(t, "manifest_empty", coreerrors.CodeOf(err))

	_, err = ParseManifest([]byte(`{"compliance_attestations": {"jurisdictions": "EU"}}`))
	require.Equal(t, "manifest_parse_failed", coreerrors.CodeOf(err))
	require.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))
}

func TestParseManifestNullIsUnverified(t *testing.T) {
	manifest, err := ParseManifest([]byte("null"))
	require.NoError(t, err)
	verdict := Evaluate(manifest, Policy{}, fixedClock())
	require.False(t, verdict.Pass)
	require.Equal(t, []string{ReasonNoJurisdictions}, verdict.Reasons)
}

func TestLoadManifestFileAndDigest(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "travel.json")
	require.NoError(t, os.WriteFile(path, []byte(travelManifestJSON), 0o600))

	manifest, err := LoadManifestFile(path)
	require.NoError(t, err)
	digest, err := ManifestDigest(manifest)
	require.NoError(t, err)
	require.Len(t, digest, 64)

	again, err := ManifestDigest(manifest)
	require.NoError(t, err)
	require.Equal(t, digest, again)

	manifest.ModelProviderCompliance.GPAICompliant = false
	changed, err := ManifestDigest(manifest)
	require.NoError(t, err)
	require.NotEqual(t, digest, changed)

	_, err = LoadManifestFile(filepath.Join(workDir, "missing.json"))
	require.Equal(t, coreerrors.CategoryIOFailure, coreerrors.CategoryOf(err))
}

func TestParseManifestKeepsNonStringAttestationDate(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		want    string
		reasons []string
	}{
		{name: "number", date: `20250101`, want: "20250101", reasons: []string{"Invalid attestation date for jurisdiction EU"}},
		{name: "object", date: `{"year": 2025}`, want: `{"year": 2025}`, reasons: []string{"Invalid attestation date for jurisdiction EU"}},
		{name: "null", date: `null`, want: "", reasons: []string{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			raw := `{"compliance_attestations": {"jurisdictions": [{"jurisdiction": "EU", "compliant": true, "automated_verification": true, "attestation_date": ` + test.date + `}]}}`
			manifest, err := ParseManifest([]byte(raw))
			require.NoError(t, err)
			require.Equal(t, test.want, manifest.ComplianceAttestations.Jurisdictions[0].AttestationDate)
			require.True(t, manifest.ComplianceAttestations.Jurisdictions[0].Compliant)

			verdict := Evaluate(manifest, Policy{}, fixedClock())
			require.Equal(t, test.reasons, verdict.Reasons)
		})
	}
}
