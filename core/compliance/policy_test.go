package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
)

const companyPolicyYAML = `
name: ACME Corp
regulatory_requirements:
  required_jurisdictions: [" EU ", "Japan", "EU"]
  accepted_jurisdictions: [Korea, EU]
  blocked_jurisdictions: [Offshore]
  max_attestation_age_days: 180
  require_codebase_hash: true
  require_hash_match: true
model_provider_requirements:
  require_provider_disclosed: true
  require_gpai_compliance: true
  blocked_providers: [ShadyAI, ""]
cultural_requirements:
  require_cultural_certification: false
sub_agent_requirements:
  require_sub_agent_disclosure: true
unknown_section:
  ignored: true
`

func TestParsePolicyYAMLDefaultsAndNormalization(t *testing.T) {
	policy, err := ParsePolicy([]byte(companyPolicyYAML))
	require.NoError(t, err)

	require.Equal(t, policySchemaID, policy.SchemaID)
	require.Equal(t, policySchemaV1, policy.SchemaVersion)
	require.Equal(t, "ACME Corp", policy.Name)
	require.Equal(t, []string{"EU", "Japan"}, policy.RegulatoryRequirements.RequiredJurisdictions)
	require.Equal(t, []string{"EU", "Korea"}, policy.RegulatoryRequirements.AcceptedJurisdictions)
	require.Equal(t, []string{"Offshore"}, policy.RegulatoryRequirements.BlockedJurisdictions)
	require.Equal(t, 180, policy.RegulatoryRequirements.MaxAttestationAge())
	require.True(t, policy.RegulatoryRequirements.RequireCodebaseHash)
	require.True(t, policy.RegulatoryRequirements.RequireHashMatch)
	require.True(t, policy.ModelProviderRequirements.RequireProviderDisclosed)
	require.True(t, policy.ModelProviderRequirements.RequireGPAICompliance)
	require.Equal(t, []string{"ShadyAI"}, policy.ModelProviderRequirements.BlockedProviders)
	require.False(t, policy.CulturalRequirements.RequireCulturalCertification)
	require.True(t, policy.SubAgentRequirements.RequireSubAgentDisclosure)
}

func TestParsePolicyJSON(t *testing.T) {
	policy, err := ParsePolicy([]byte(`{
  "regulatory_requirements": {"required_jurisdictions": ["EU"]},
  "model_provider_requirements": {"require_gpai_compliance": true},
  "extra": 1
}`))
	require.NoError(t, err)
	require.Equal(t, []string{"EU"}, policy.RegulatoryRequirements.RequiredJurisdictions)
	require.True(t, policy.ModelProviderRequirements.RequireGPAICompliance)
	require.Nil(t, policy.RegulatoryRequirements.MaxAttestationAgeDays)
	require.Equal(t, DefaultMaxAttestationAge, policy.RegulatoryRequirements.MaxAttestationAge())
}

func TestParsePolicyValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{name: "malformed", yaml: "regulatory_requirements: [", code: "policy_parse_failed"},
		{name: "negative_max_age", yaml: "regulatory_requirements:\n  max_attestation_age_days: -1\n", code: "policy_invalid_max_age"},
		{name: "unknown_schema_id", yaml: "schema_id: other.policy\n", code: "policy_schema_unsupported"},
		{name: "unknown_schema_version", yaml: "schema_version: 2.0.0\n", code: "policy_schema_unsupported"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(test.yaml))
			require.Error(t, err)
			require.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))
			require.Equal(t, test.code, coreerrors.CodeOf(err))
		})
	}
}

func TestMaxAttestationAgeZeroIsExplicit(t *testing.T) {
	policy, err := ParsePolicy([]byte("regulatory_requirements:\n  max_attestation_age_days: 0\n"))
	require.NoError(t, err)
	require.Equal(t, 0, policy.RegulatoryRequirements.MaxAttestationAge())

	negative := -4
	require.Equal(t, 0, RegulatoryRequirements{MaxAttestationAgeDays: &negative}.MaxAttestationAge())
}

func TestLoadPolicyFile(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(companyPolicyYAML), 0o600))

	policy, err := LoadPolicyFile(path)
	require.NoError(t, err)
	require.Equal(t, "ACME Corp", policy.Name)

	_, err = LoadPolicyFile(filepath.Join(workDir, "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, coreerrors.CategoryIOFailure, coreerrors.CategoryOf(err))
}

func TestPolicyDigestStableAcrossEquivalentPolicies(t *testing.T) {
	fromYAML, err := ParsePolicy([]byte(companyPolicyYAML))
	require.NoError(t, err)
	reordered, err := ParsePolicy([]byte(`{
  "name": "ACME Corp",
  "sub_agent_requirements": {"require_sub_agent_disclosure": true},
  "model_provider_requirements": {"blocked_providers": ["ShadyAI"], "require_gpai_compliance": true, "require_provider_disclosed": true},
  "regulatory_requirements": {
    "required_jurisdictions": ["Japan", "EU"],
    "accepted_jurisdictions": ["Korea", "EU"],
    "blocked_jurisdictions": ["Offshore"],
    "max_attestation_age_days": 180,
    "require_codebase_hash": true,
    "require_hash_match": true
  }
}`))
	require.NoError(t, err)

	first, err := PolicyDigest(fromYAML)
	require.NoError(t, err)
	second, err := PolicyDigest(reordered)
	require.NoError(t, err)
	require.Equal(t, first, second)

	implicit, err := PolicyDigest(Policy{})
	require.NoError(t, err)
	explicit, err := PolicyDigest(Policy{RegulatoryRequirements: RegulatoryRequirements{MaxAttestationAgeDays: intPointer(DefaultMaxAttestationAge)}})
	require.NoError(t, err)
	require.Equal(t, implicit, explicit)

	changed := fromYAML
	changed.ModelProviderRequirements.RequireGPAICompliance = false
	third, err := PolicyDigest(changed)
	require.NoError(t, err)
	require.NotEqual(t, first, third)

	_, err = PolicyDigest(Policy{SchemaID: "other"})
	require.Error(t, err)
}
