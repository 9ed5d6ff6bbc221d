package manifest

import (
	"bytes"
	"encoding/json"
)

type Manifest struct {
	ID                      string                  `json:"id,omitempty"`
	AgentName               string                  `json:"agent_name,omitempty"`
	Label                   string                  `json:"label,omitempty"`
	Description             string                  `json:"description,omitempty"`
	Version                 string                  `json:"version,omitempty"`
	Provider                Provider                `json:"provider"`
	CertificationType       string                  `json:"certification_type,omitempty"`
	ComplianceAttestations  ComplianceAttestations  `json:"compliance_attestations"`
	ModelProviderCompliance ModelProviderCompliance `json:"model_provider_compliance"`
	SubAgentCompliance      SubAgentCompliance      `json:"sub_agent_compliance"`
	CodebaseVerification    *CodebaseVerification   `json:"codebase_verification,omitempty"`
}

type Provider struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
	DID  string `json:"did,omitempty"`
}

type ComplianceAttestations struct {
	Jurisdictions      []JurisdictionAttestation `json:"jurisdictions"`
	CulturalBenchmarks *CulturalBenchmarks       `json:"cultural_benchmarks,omitempty"`
}

type JurisdictionAttestation struct {
	Jurisdiction          string   `json:"jurisdiction"`
	Compliant             bool     `json:"compliant"`
	Regulations           []string `json:"regulations,omitempty"`
	ThirdPartyAudit       bool     `json:"third_party_audit"`
	AutomatedVerification bool     `json:"automated_verification"`
	SelfCertified         bool     `json:"self_certified,omitempty"`
	SignToCode            bool     `json:"sign_to_code,omitempty"`
	QuestionnaireURL      string   `json:"questionnaire_url,omitempty"`
	// AttestationDate stays text so a malformed date reaches the evaluator
	// and becomes a blocking reason instead of a decode failure.
	AttestationDate string `json:"attestation_date,omitempty"`
}

// UnmarshalJSON keeps a non-string attestation_date as its raw text so the
// evaluator reports an invalid date instead of the whole manifest failing.
func (attestation *JurisdictionAttestation) UnmarshalJSON(data []byte) error {
	type plain JurisdictionAttestation
	var decoded struct {
		plain
		AttestationDate json.RawMessage `json:"attestation_date"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*attestation = JurisdictionAttestation(decoded.plain)
	attestation.AttestationDate = attestationDateText(decoded.AttestationDate)
	return nil
}

func attestationDateText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			return text
		}
	}
	return string(trimmed)
}

type CulturalBenchmarks struct {
	Certified         bool     `json:"certified"`
	TestedCultures    []string `json:"tested_cultures,omitempty"`
	CertificationType string   `json:"certification_type,omitempty"`
}

type ModelProviderCompliance struct {
	ProviderName  string `json:"provider_name,omitempty"`
	ModelName     string `json:"model_name,omitempty"`
	GPAICompliant bool   `json:"gpai_compliant"`
}

type SubAgentCompliance struct {
	UsesSubAgents     bool               `json:"uses_sub_agents,omitempty"`
	DeclaredSubAgents []DeclaredSubAgent `json:"declared_sub_agents,omitempty"`
}

type DeclaredSubAgent struct {
	AgentID            string `json:"agent_id"`
	ComplianceVerified bool   `json:"compliance_verified"`
}

type CodebaseVerification struct {
	CurrentHash       string `json:"current_hash,omitempty"`
	HashAtAttestation string `json:"hash_at_attestation,omitempty"`
	HashAlgorithm     string `json:"hash_algorithm,omitempty"`
	SignedBy          string `json:"signed_by,omitempty"`
	SignedAt          string `json:"signed_at,omitempty"`
	SignToCodeEnabled bool   `json:"sign_to_code_enabled,omitempty"`
}
