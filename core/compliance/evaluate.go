package compliance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

const (
	ReasonNoJurisdictions     = "No jurisdiction compliance declared"
	ReasonProviderUndisclosed = "Model provider not disclosed"
	ReasonModelNotGPAI        = "Model not GPAI compliant"
	ReasonSubAgentsUndeclared = "Sub-agents used but not declared"
	ReasonHashMissing         = "Codebase hash not provided"
	ReasonHashMismatch        = "Codebase hash mismatch — code changed since attestation"
	WarningNoCultural         = "No cultural certification"

	secondsPerDay = int64(24 * 60 * 60)
)

var attestationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

type EvalOptions struct {
	// Now supplies the evaluation instant. Nil reads the wall clock.
	Now             func() time.Time
	ProducerVersion string
}

func (options EvalOptions) instant() time.Time {
	if options.Now == nil {
		return time.Now().UTC()
	}
	return options.Now().UTC()
}

// Evaluate checks one manifest against one policy. It never fails: missing
// sections count as absent evidence and every blocking finding is reported,
// not only the first.
func Evaluate(manifest schemamanifest.Manifest, policy Policy, options EvalOptions) schemaverdict.Verdict {
	return evaluateAt(manifest, policy, options.instant())
}

func evaluateAt(manifest schemamanifest.Manifest, policy Policy, now time.Time) schemaverdict.Verdict {
	result := &verdictBuilder{
		verdict: schemaverdict.Verdict{
			Pass:     true,
			Reasons:  []string{},
			Warnings: []string{},
			Tier:     Classify(manifest),
		},
	}

	attestations := manifest.ComplianceAttestations.Jurisdictions
	if len(attestations) == 0 {
		result.block(ReasonNoJurisdictions)
		return result.verdict
	}

	checkRequiredJurisdictions(result, attestations, policy.RegulatoryRequirements)
	checkBlockedJurisdictions(result, attestations, policy.RegulatoryRequirements)
	checkAttestationFreshness(result, attestations, policy.RegulatoryRequirements, now)
	checkModelProvider(result, manifest.ModelProviderCompliance, policy.ModelProviderRequirements)
	checkCulturalCertification(result, manifest.ComplianceAttestations.CulturalBenchmarks, policy.CulturalRequirements)
	checkSubAgents(result, manifest.SubAgentCompliance, policy.SubAgentRequirements)
	checkCodebase(result, manifest.CodebaseVerification, policy.RegulatoryRequirements)
	return result.verdict
}

type verdictBuilder struct {
	verdict schemaverdict.Verdict
}

// block records a blocking reason. Pass only ever moves from true to false.
func (builder *verdictBuilder) block(reason string) {
	builder.verdict.Pass = false
	builder.verdict.Reasons = append(builder.verdict.Reasons, reason)
}

func (builder *verdictBuilder) warn(warning string) {
	builder.verdict.Warnings = append(builder.verdict.Warnings, warning)
}

func checkRequiredJurisdictions(result *verdictBuilder, attestations []schemamanifest.JurisdictionAttestation, requirements RegulatoryRequirements) {
	required := stringSet(requirements.RequiredJurisdictions)
	if len(required) == 0 {
		return
	}
	compliant := map[string]struct{}{}
	for _, attestation := range attestations {
		if attestation.Compliant {
			compliant[strings.TrimSpace(attestation.Jurisdiction)] = struct{}{}
		}
	}
	missing := make([]string, 0, len(required))
	for jurisdiction := range required {
		if _, ok := compliant[jurisdiction]; !ok {
			missing = append(missing, jurisdiction)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	result.block("Missing required jurisdictions: " + strings.Join(missing, ", "))
}

func checkBlockedJurisdictions(result *verdictBuilder, attestations []schemamanifest.JurisdictionAttestation, requirements RegulatoryRequirements) {
	blocked := stringSet(requirements.BlockedJurisdictions)
	if len(blocked) == 0 {
		return
	}
	for _, attestation := range attestations {
		jurisdiction := strings.TrimSpace(attestation.Jurisdiction)
		if _, ok := blocked[jurisdiction]; ok {
			result.block("Blocked jurisdiction: " + jurisdiction)
		}
	}
}

func checkAttestationFreshness(result *verdictBuilder, attestations []schemamanifest.JurisdictionAttestation, requirements RegulatoryRequirements, now time.Time) {
	maxAge := requirements.MaxAttestationAge()
	for _, attestation := range attestations {
		rawDate := strings.TrimSpace(attestation.AttestationDate)
		if rawDate == "" {
			continue
		}
		jurisdiction := strings.TrimSpace(attestation.Jurisdiction)
		attestedAt, ok := parseAttestationDate(rawDate)
		if !ok {
			result.block("Invalid attestation date for jurisdiction " + jurisdiction)
			continue
		}
		ageDays := wholeDaysBetween(attestedAt, now)
		if ageDays > maxAge {
			result.block(fmt.Sprintf("Attestation too old for %s: %d days", jurisdiction, ageDays))
		}
	}
}

func checkModelProvider(result *verdictBuilder, model schemamanifest.ModelProviderCompliance, requirements ModelProviderRequirements) {
	providerName := strings.TrimSpace(model.ProviderName)
	if requirements.RequireProviderDisclosed && providerName == "" {
		result.block(ReasonProviderUndisclosed)
	}
	if requirements.RequireGPAICompliance && !model.GPAICompliant {
		result.block(ReasonModelNotGPAI)
	}
	if providerName == "" {
		return
	}
	if _, ok := stringSet(requirements.BlockedProviders)[providerName]; ok {
		result.block("Blocked model provider: " + providerName)
	}
}

func checkCulturalCertification(result *verdictBuilder, cultural *schemamanifest.CulturalBenchmarks, requirements CulturalRequirements) {
	if !requirements.RequireCulturalCertification {
		return
	}
	if cultural == nil || !cultural.Certified {
		result.warn(WarningNoCultural)
	}
}

// checkSubAgents blocks only undeclared sub-agent usage. Unverified declared
// sub-agents are warnings whatever the policy says.
func checkSubAgents(result *verdictBuilder, subAgents schemamanifest.SubAgentCompliance, requirements SubAgentRequirements) {
	if requirements.RequireSubAgentDisclosure && subAgents.UsesSubAgents && len(subAgents.DeclaredSubAgents) == 0 {
		result.block(ReasonSubAgentsUndeclared)
	}
	for _, subAgent := range subAgents.DeclaredSubAgents {
		if subAgent.ComplianceVerified {
			continue
		}
		agentID := strings.TrimSpace(subAgent.AgentID)
		if agentID == "" {
			agentID = "unknown"
		}
		result.warn(fmt.Sprintf("Sub-agent '%s' compliance not verified", agentID))
	}
}

func checkCodebase(result *verdictBuilder, codebase *schemamanifest.CodebaseVerification, requirements RegulatoryRequirements) {
	currentHash := ""
	attestedHash := ""
	if codebase != nil {
		currentHash = strings.TrimSpace(codebase.CurrentHash)
		attestedHash = strings.TrimSpace(codebase.HashAtAttestation)
	}
	if requirements.RequireCodebaseHash && currentHash == "" {
		result.block(ReasonHashMissing)
	}
	if requirements.RequireHashMatch && currentHash != "" && attestedHash != "" && currentHash != attestedHash {
		result.block(ReasonHashMismatch)
	}
}

// wholeDaysBetween floors the elapsed time to whole days. It works in Unix
// seconds because time.Duration saturates after about 292 years.
func wholeDaysBetween(from, to time.Time) int {
	seconds := to.Unix() - from.Unix()
	days := seconds / secondsPerDay
	if seconds%secondsPerDay != 0 && seconds < 0 {
		days--
	}
	return int(days)
}

// parseAttestationDate accepts RFC 3339 timestamps plus zone-less timestamps
// and bare dates, both read as UTC.
func parseAttestationDate(raw string) (time.Time, bool) {
	for _, layout := range attestationDateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
