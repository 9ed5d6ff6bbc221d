package compliance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
)

const (
	CertificationThirdParty    = "third_party"
	CertificationAutoVerified  = "auto_verified"
	CertificationSelfCertified = "self_certified"
	CertificationSignToCode    = "sign_to_code"

	culturalSelection    = "cultural"
	questionnaireBaseURL = "https://raw.githubusercontent.com/mattpagett/CBAAC/main/questionnaires/"
)

type jurisdictionEntry struct {
	name          string
	regulations   []string
	questionnaire string
}

var jurisdictionCatalog = map[string]jurisdictionEntry{
	"eu":    {name: "EU", regulations: []string{"GDPR", "EU AI Act"}, questionnaire: "eu-gdpr-aiact.json"},
	"japan": {name: "Japan", regulations: []string{"APPI", "METI AI Guidelines"}, questionnaire: "japan-appi-meti.json"},
	"korea": {name: "Korea", regulations: []string{"AI Basic Act", "PIPA"}, questionnaire: "korea-ai-basic-act.json"},
}

var catalogOrder = []string{"eu", "japan", "korea"}

var certificationTypes = map[string]struct{}{
	CertificationThirdParty:    {},
	CertificationAutoVerified:  {},
	CertificationSelfCertified: {},
	CertificationSignToCode:    {},
}

// ManifestTemplate holds the self-certification answers a manifest is built from.
type ManifestTemplate struct {
	AgentID           string
	AgentName         string
	Description       string
	Version           string
	ProviderName      string
	ProviderURL       string
	Jurisdictions     []string
	CertificationType string
	ModelProvider     string
	ModelName         string
	GPAICompliant     bool
	CodebaseHash      string
	TestedCultures    []string
	Now               time.Time
}

// SupportedJurisdictions lists the selection keys NewManifest accepts.
func SupportedJurisdictions() []string {
	return append(append([]string(nil), catalogOrder...), culturalSelection)
}

// NewManifest builds a self-declared manifest. Every selected jurisdiction is
// declared compliant with evidence flags taken from the certification type.
func NewManifest(template ManifestTemplate) (schemamanifest.Manifest, error) {
	certificationType := strings.ToLower(strings.TrimSpace(template.CertificationType))
	if certificationType == "" {
		certificationType = CertificationSelfCertified
	}
	if _, ok := certificationTypes[certificationType]; !ok {
		return schemamanifest.Manifest{}, coreerrors.InvalidInput("manifest_certification_type_invalid", "unsupported certification type: %s", certificationType)
	}

	selected := map[string]struct{}{}
	for _, raw := range template.Jurisdictions {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		if _, ok := jurisdictionCatalog[key]; !ok && key != culturalSelection {
			return schemamanifest.Manifest{}, coreerrors.InvalidInput("manifest_jurisdiction_unknown", "unsupported jurisdiction: %s (expected one of %s)", raw, strings.Join(SupportedJurisdictions(), ", "))
		}
		selected[key] = struct{}{}
	}
	if len(selected) == 0 {
		return schemamanifest.Manifest{}, coreerrors.InvalidInput("manifest_jurisdiction_missing", "select at least one jurisdiction")
	}

	now := template.Now.UTC()
	if template.Now.IsZero() {
		now = time.Now().UTC()
	}
	attestedAt := now.Format(time.RFC3339)

	agentID := defaultString(template.AgentID, "your-agent-001")
	agentName := defaultString(template.AgentName, "YourAgent")
	providerName := defaultString(template.ProviderName, "Your Company")
	providerURL := defaultString(template.ProviderURL, "https://yourcompany.com")
	providerDID := "did:web:" + strings.TrimPrefix(strings.TrimPrefix(providerURL, "https://"), "http://")

	manifest := schemamanifest.Manifest{
		ID:                "nanda:" + agentID,
		AgentName:         fmt.Sprintf("urn:agent:%s:%s", strings.ToLower(strings.ReplaceAll(providerName, " ", "")), agentName),
		Label:             agentName,
		Description:       defaultString(template.Description, "AI agent description"),
		Version:           defaultString(template.Version, "1.0.0"),
		Provider:          schemamanifest.Provider{Name: providerName, URL: providerURL, DID: providerDID},
		CertificationType: certificationType,
		ComplianceAttestations: schemamanifest.ComplianceAttestations{
			Jurisdictions: []schemamanifest.JurisdictionAttestation{},
		},
		ModelProviderCompliance: schemamanifest.ModelProviderCompliance{
			ProviderName:  strings.TrimSpace(template.ModelProvider),
			ModelName:     strings.TrimSpace(template.ModelName),
			GPAICompliant: template.GPAICompliant,
		},
	}

	for _, key := range catalogOrder {
		if _, ok := selected[key]; !ok {
			continue
		}
		entry := jurisdictionCatalog[key]
		manifest.ComplianceAttestations.Jurisdictions = append(manifest.ComplianceAttestations.Jurisdictions, schemamanifest.JurisdictionAttestation{
			Jurisdiction:          entry.name,
			Compliant:             true,
			Regulations:           append([]string(nil), entry.regulations...),
			ThirdPartyAudit:       certificationType == CertificationThirdParty,
			AutomatedVerification: certificationType == CertificationAutoVerified,
			SelfCertified:         certificationType == CertificationSelfCertified,
			SignToCode:            certificationType == CertificationSignToCode,
			QuestionnaireURL:      questionnaireBaseURL + entry.questionnaire,
			AttestationDate:       attestedAt,
		})
	}

	if _, ok := selected[culturalSelection]; ok {
		cultures := uniqueSorted(template.TestedCultures)
		manifest.ComplianceAttestations.CulturalBenchmarks = &schemamanifest.CulturalBenchmarks{
			Certified:         len(cultures) > 0,
			TestedCultures:    cultures,
			CertificationType: certificationType,
		}
	}

	codebaseHash := strings.TrimSpace(template.CodebaseHash)
	if codebaseHash != "" || certificationType == CertificationSignToCode {
		manifest.CodebaseVerification = &schemamanifest.CodebaseVerification{
			CurrentHash:       codebaseHash,
			HashAtAttestation: codebaseHash,
			HashAlgorithm:     "sha256",
			SignedBy:          providerDID,
			SignedAt:          attestedAt,
			SignToCodeEnabled: certificationType == CertificationSignToCode,
		}
	}
	return manifest, nil
}

// CertificationTypes returns the accepted certification types, sorted.
func CertificationTypes() []string {
	out := make([]string, 0, len(certificationTypes))
	for certificationType := range certificationTypes {
		out = append(out, certificationType)
	}
	sort.Strings(out)
	return out
}

func defaultString(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
