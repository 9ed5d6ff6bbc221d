package compliance

import (
	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

// Classify returns the strongest evidence tier present anywhere in the
// manifest's jurisdiction attestations. Checks run in priority order and the
// first match wins; a manifest without attestations is unverified.
func Classify(manifest schemamanifest.Manifest) schemaverdict.Tier {
	attestations := manifest.ComplianceAttestations.Jurisdictions
	if anyAttestation(attestations, func(attestation schemamanifest.JurisdictionAttestation) bool {
		return attestation.ThirdPartyAudit
	}) {
		return schemaverdict.TierThirdPartyAudited
	}
	if anyAttestation(attestations, func(attestation schemamanifest.JurisdictionAttestation) bool {
		return attestation.AutomatedVerification
	}) {
		return schemaverdict.TierAutoVerified
	}
	if anyAttestation(attestations, func(attestation schemamanifest.JurisdictionAttestation) bool {
		return attestation.Compliant
	}) {
		return schemaverdict.TierSelfCertified
	}
	return schemaverdict.TierUnverified
}

// TierColor maps a tier to its badge color.
func TierColor(tier schemaverdict.Tier) string {
	switch tier {
	case schemaverdict.TierThirdPartyAudited:
		return "green"
	case schemaverdict.TierAutoVerified:
		return "yellow"
	case schemaverdict.TierSelfCertified:
		return "orange"
	default:
		return "red"
	}
}

func TierLabel(tier schemaverdict.Tier) string {
	switch tier {
	case schemaverdict.TierThirdPartyAudited:
		return "Third-party audited"
	case schemaverdict.TierAutoVerified:
		return "Auto-verified"
	case schemaverdict.TierSelfCertified:
		return "Self-certified"
	default:
		return "Unverified"
	}
}

func anyAttestation(attestations []schemamanifest.JurisdictionAttestation, predicate func(schemamanifest.JurisdictionAttestation) bool) bool {
	for _, attestation := range attestations {
		if predicate(attestation) {
			return true
		}
	}
	return false
}
