package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davidahmann/cbaac/core/compliance"
	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/fsx"
	"github.com/davidahmann/cbaac/core/schema/validate"
	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

type manifestValidateOutput struct {
	OK             bool               `json:"ok"`
	Path           string             `json:"path"`
	Tier           schemaverdict.Tier `json:"tier"`
	Jurisdictions  int                `json:"jurisdictions"`
	ManifestDigest string             `json:"manifest_digest"`
}

type manifestInitOutput struct {
	OK       bool                     `json:"ok"`
	Path     string                   `json:"path,omitempty"`
	Tier     schemaverdict.Tier       `json:"tier"`
	Manifest *schemamanifest.Manifest `json:"manifest,omitempty"`
}

func runManifest(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Validate agent compliance manifests or generate a self-certified manifest from questionnaire answers.")
	}
	if len(arguments) == 0 {
		printManifestUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "validate":
		return runManifestValidate(arguments[1:])
	case "init":
		return runManifestInit(arguments[1:])
	default:
		printManifestUsage()
		return exitInvalidInput
	}
}

func runManifestValidate(arguments []string) int {
	arguments = reorderInterspersedFlags(arguments, nil)
	flagSet := flag.NewFlagSet("manifest-validate", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var jsonOutput bool
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "manifest validate", usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) != 1 {
		return writeCommandError(jsonOutput, "manifest validate", usageError("expected <manifest.json>"), exitInvalidInput)
	}
	path := flagSet.Args()[0]

	// #nosec G304 -- manifest path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return writeCommandError(jsonOutput, "manifest validate", coreerrors.Wrap(fmt.Errorf("read manifest: %w", err), coreerrors.CategoryIOFailure, "manifest_read_failed", "check the manifest path", false), exitInternalFailure)
	}
	if err := validate.ValidateManifest(content); err != nil {
		return writeCommandError(jsonOutput, "manifest validate", err, exitInvalidInput)
	}
	manifest, err := compliance.ParseManifest(content)
	if err != nil {
		return writeCommandError(jsonOutput, "manifest validate", err, exitInvalidInput)
	}
	digest, err := compliance.ManifestDigest(manifest)
	if err != nil {
		return writeCommandError(jsonOutput, "manifest validate", err, exitInternalFailure)
	}

	output := manifestValidateOutput{
		OK:             true,
		Path:           path,
		Tier:           compliance.Classify(manifest),
		Jurisdictions:  len(manifest.ComplianceAttestations.Jurisdictions),
		ManifestDigest: digest,
	}
	if jsonOutput {
		return writeJSONOutput(output, exitOK)
	}
	fmt.Printf("manifest valid: %s %s\n", path, tierBadge(output.Tier))
	if output.Jurisdictions == 0 {
		warnf("%s declares no jurisdictions and will be blocked by every policy", path)
	}
	return exitOK
}

func runManifestInit(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Generate a manifest that declares compliance for the selected jurisdictions (" + strings.Join(compliance.SupportedJurisdictions(), ", ") + ") with evidence flags from the certification type (" + strings.Join(compliance.CertificationTypes(), ", ") + ").")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"agent-id": true, "name": true, "description": true, "agent-version": true,
		"provider": true, "provider-url": true, "jurisdictions": true, "certification": true,
		"model-provider": true, "model": true, "codebase-hash": true, "cultures": true, "out": true,
	})

	flagSet := flag.NewFlagSet("manifest-init", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var template compliance.ManifestTemplate
	var jurisdictionsCSV string
	var culturesCSV string
	var outPath string
	var force bool
	var jsonOutput bool

	flagSet.StringVar(&template.AgentID, "agent-id", "", "agent identifier")
	flagSet.StringVar(&template.AgentName, "name", "", "agent display name")
	flagSet.StringVar(&template.Description, "description", "", "agent description")
	flagSet.StringVar(&template.Version, "agent-version", "", "agent version")
	flagSet.StringVar(&template.ProviderName, "provider", "", "provider organisation name")
	flagSet.StringVar(&template.ProviderURL, "provider-url", "", "provider URL")
	flagSet.StringVar(&jurisdictionsCSV, "jurisdictions", "", "comma-separated jurisdictions")
	flagSet.StringVar(&template.CertificationType, "certification", compliance.CertificationSelfCertified, "certification type")
	flagSet.StringVar(&template.ModelProvider, "model-provider", "", "underlying model provider")
	flagSet.StringVar(&template.ModelName, "model", "", "underlying model name")
	flagSet.BoolVar(&template.GPAICompliant, "gpai", false, "model is GPAI compliant")
	flagSet.StringVar(&template.CodebaseHash, "codebase-hash", "", "codebase hash at attestation")
	flagSet.StringVar(&culturesCSV, "cultures", "", "comma-separated tested cultures")
	flagSet.StringVar(&outPath, "out", "", "write the manifest to this path")
	flagSet.BoolVar(&force, "force", false, "overwrite an existing --out file")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "manifest init", usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) != 0 {
		return writeCommandError(jsonOutput, "manifest init", usageError("unexpected arguments: %s", strings.Join(flagSet.Args(), " ")), exitInvalidInput)
	}
	template.Jurisdictions = splitCSV(jurisdictionsCSV)
	template.TestedCultures = splitCSV(culturesCSV)

	manifest, err := compliance.NewManifest(template)
	if err != nil {
		return writeCommandError(jsonOutput, "manifest init", err, exitInvalidInput)
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return writeCommandError(jsonOutput, "manifest init", err, exitInternalFailure)
	}
	encoded = append(encoded, '\n')
	tier := compliance.Classify(manifest)

	if outPath == "" {
		if jsonOutput {
			return writeJSONOutput(manifestInitOutput{OK: true, Tier: tier, Manifest: &manifest}, exitOK)
		}
		fmt.Print(string(encoded))
		return exitOK
	}
	if _, statErr := os.Stat(outPath); statErr == nil && !force {
		return writeCommandError(jsonOutput, "manifest init", coreerrors.InvalidInput("manifest_exists", "%s already exists (use --force to overwrite)", outPath), exitInvalidInput)
	}
	if err := fsx.WriteFileAtomic(outPath, encoded, 0o600); err != nil {
		return writeCommandError(jsonOutput, "manifest init", coreerrors.Wrap(err, coreerrors.CategoryIOFailure, "manifest_write_failed", "check the --out directory exists and is writable", false), exitInternalFailure)
	}
	if jsonOutput {
		return writeJSONOutput(manifestInitOutput{OK: true, Path: outPath, Tier: tier}, exitOK)
	}
	fmt.Printf("manifest written: %s %s\n", outPath, tierBadge(tier))
	return exitOK
}

func printManifestUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cbaac manifest validate <manifest.json> [--json] [--explain]")
	fmt.Println("  cbaac manifest init --jurisdictions <eu,japan,korea,cultural> [--certification third_party|auto_verified|self_certified|sign_to_code] [--agent-id <id>] [--name <agent>] [--provider <name>] [--provider-url <url>] [--model-provider <name>] [--model <name>] [--gpai] [--codebase-hash <hash>] [--cultures <csv>] [--out <path>] [--force] [--json] [--explain]")
}
