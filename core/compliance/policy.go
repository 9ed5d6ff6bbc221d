package compliance

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	cbaacjcs "github.com/davidahmann/cbaac/core/jcs"
)

const (
	policySchemaID           = "cbaac.policy"
	policySchemaV1           = "1.0.0"
	DefaultMaxAttestationAge = 365
)

// Policy is the consuming party's requirements. It decodes from YAML or JSON;
// unknown keys are ignored.
type Policy struct {
	SchemaID                  string                    `yaml:"schema_id" json:"schema_id,omitempty"`
	SchemaVersion             string                    `yaml:"schema_version" json:"schema_version,omitempty"`
	Name                      string                    `yaml:"name" json:"name,omitempty"`
	RegulatoryRequirements    RegulatoryRequirements    `yaml:"regulatory_requirements" json:"regulatory_requirements"`
	ModelProviderRequirements ModelProviderRequirements `yaml:"model_provider_requirements" json:"model_provider_requirements"`
	CulturalRequirements      CulturalRequirements      `yaml:"cultural_requirements" json:"cultural_requirements"`
	SubAgentRequirements      SubAgentRequirements      `yaml:"sub_agent_requirements" json:"sub_agent_requirements"`
}

type RegulatoryRequirements struct {
	RequiredJurisdictions []string `yaml:"required_jurisdictions" json:"required_jurisdictions,omitempty"`
	// AcceptedJurisdictions is parsed and digested but not enforced.
	AcceptedJurisdictions []string `yaml:"accepted_jurisdictions" json:"accepted_jurisdictions,omitempty"`
	BlockedJurisdictions  []string `yaml:"blocked_jurisdictions" json:"blocked_jurisdictions,omitempty"`
	MaxAttestationAgeDays *int     `yaml:"max_attestation_age_days" json:"max_attestation_age_days,omitempty"`
	RequireCodebaseHash   bool     `yaml:"require_codebase_hash" json:"require_codebase_hash,omitempty"`
	RequireHashMatch      bool     `yaml:"require_hash_match" json:"require_hash_match,omitempty"`
}

type ModelProviderRequirements struct {
	RequireProviderDisclosed bool     `yaml:"require_provider_disclosed" json:"require_provider_disclosed,omitempty"`
	RequireGPAICompliance    bool     `yaml:"require_gpai_compliance" json:"require_gpai_compliance,omitempty"`
	BlockedProviders         []string `yaml:"blocked_providers" json:"blocked_providers,omitempty"`
}

type CulturalRequirements struct {
	RequireCulturalCertification bool `yaml:"require_cultural_certification" json:"require_cultural_certification,omitempty"`
}

type SubAgentRequirements struct {
	RequireSubAgentDisclosure bool `yaml:"require_sub_agent_disclosure" json:"require_sub_agent_disclosure,omitempty"`
}

// MaxAttestationAge returns the configured freshness window in days, falling
// back to DefaultMaxAttestationAge when the policy leaves it unset.
func (requirements RegulatoryRequirements) MaxAttestationAge() int {
	if requirements.MaxAttestationAgeDays == nil {
		return DefaultMaxAttestationAge
	}
	if *requirements.MaxAttestationAgeDays < 0 {
		return 0
	}
	return *requirements.MaxAttestationAgeDays
}

func LoadPolicyFile(path string) (Policy, error) {
	// #nosec G304 -- policy path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, coreerrors.Wrap(fmt.Errorf("read policy: %w", err), coreerrors.CategoryIOFailure, "policy_read_failed", "check the policy path", false)
	}
	return ParsePolicy(content)
}

// ParsePolicy decodes a YAML or JSON policy document and normalizes it.
func ParsePolicy(data []byte) (Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, coreerrors.InvalidInput("policy_parse_failed", "parse policy: %v", err)
	}
	return NormalizePolicy(policy)
}

// NormalizePolicy validates schema metadata and canonicalizes every list:
// entries are trimmed, empties dropped, duplicates removed and the rest sorted.
func NormalizePolicy(input Policy) (Policy, error) {
	output := input
	output.SchemaID = strings.TrimSpace(output.SchemaID)
	if output.SchemaID == "" {
		output.SchemaID = policySchemaID
	}
	if output.SchemaID != policySchemaID {
		return Policy{}, coreerrors.InvalidInput("policy_schema_unsupported", "unsupported policy schema_id: %s", output.SchemaID)
	}
	output.SchemaVersion = strings.TrimSpace(output.SchemaVersion)
	if output.SchemaVersion == "" {
		output.SchemaVersion = policySchemaV1
	}
	if output.SchemaVersion != policySchemaV1 {
		return Policy{}, coreerrors.InvalidInput("policy_schema_unsupported", "unsupported policy schema_version: %s", output.SchemaVersion)
	}
	output.Name = strings.TrimSpace(output.Name)

	regulatory := &output.RegulatoryRequirements
	if regulatory.MaxAttestationAgeDays != nil {
		if *regulatory.MaxAttestationAgeDays < 0 {
			return Policy{}, coreerrors.InvalidInput("policy_invalid_max_age", "max_attestation_age_days must be >= 0, got %d", *regulatory.MaxAttestationAgeDays)
		}
		maxAge := *regulatory.MaxAttestationAgeDays
		regulatory.MaxAttestationAgeDays = &maxAge
	}
	regulatory.RequiredJurisdictions = uniqueSorted(regulatory.RequiredJurisdictions)
	regulatory.AcceptedJurisdictions = uniqueSorted(regulatory.AcceptedJurisdictions)
	regulatory.BlockedJurisdictions = uniqueSorted(regulatory.BlockedJurisdictions)
	output.ModelProviderRequirements.BlockedProviders = uniqueSorted(output.ModelProviderRequirements.BlockedProviders)
	return output, nil
}

// PolicyDigest returns the JCS sha256 digest of the normalized policy with the
// freshness default made explicit, so an omitted window and an explicit 365
// digest identically.
func PolicyDigest(policy Policy) (string, error) {
	normalized, err := NormalizePolicy(policy)
	if err != nil {
		return "", err
	}
	maxAge := normalized.RegulatoryRequirements.MaxAttestationAge()
	normalized.RegulatoryRequirements.MaxAttestationAgeDays = &maxAge
	digest, err := cbaacjcs.DigestValue(normalized)
	if err != nil {
		return "", fmt.Errorf("digest policy: %w", err)
	}
	return digest, nil
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
