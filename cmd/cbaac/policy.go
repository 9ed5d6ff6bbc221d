package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/schema/validate"
)

type policyOutput struct {
	OK                    bool     `json:"ok"`
	Path                  string   `json:"path"`
	Name                  string   `json:"name,omitempty"`
	PolicyDigest          string   `json:"policy_digest"`
	RequiredJurisdictions []string `json:"required_jurisdictions,omitempty"`
	BlockedJurisdictions  []string `json:"blocked_jurisdictions,omitempty"`
	MaxAttestationAgeDays int      `json:"max_attestation_age_days"`
}

func runPolicy(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Inspect compliance policies: print the canonical digest or validate the document shape and values.")
	}
	if len(arguments) == 0 {
		printPolicyUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "digest":
		return runPolicyCommand("policy digest", arguments[1:], false)
	case "validate":
		return runPolicyCommand("policy validate", arguments[1:], true)
	default:
		printPolicyUsage()
		return exitInvalidInput
	}
}

func runPolicyCommand(command string, arguments []string, checkSchema bool) int {
	arguments = reorderInterspersedFlags(arguments, nil)
	flagSet := flag.NewFlagSet(command, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var jsonOutput bool
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, command, usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) != 1 {
		return writeCommandError(jsonOutput, command, usageError("expected <policy.yaml>"), exitInvalidInput)
	}
	path := flagSet.Args()[0]

	if checkSchema {
		// #nosec G304 -- policy path is explicit local user input.
		content, err := os.ReadFile(path)
		if err != nil {
			return writeCommandError(jsonOutput, command, coreerrors.Wrap(fmt.Errorf("read policy: %w", err), coreerrors.CategoryIOFailure, "policy_read_failed", "check the policy path", false), exitInternalFailure)
		}
		if err := validate.ValidatePolicy(content); err != nil {
			return writeCommandError(jsonOutput, command, err, exitInvalidInput)
		}
	}
	policy, digest, err := loadPolicyWithDigest(path)
	if err != nil {
		return writeCommandError(jsonOutput, command, err, exitInvalidInput)
	}

	output := policyOutput{
		OK:                    true,
		Path:                  path,
		Name:                  policy.Name,
		PolicyDigest:          digest,
		RequiredJurisdictions: policy.RegulatoryRequirements.RequiredJurisdictions,
		BlockedJurisdictions:  policy.RegulatoryRequirements.BlockedJurisdictions,
		MaxAttestationAgeDays: policy.RegulatoryRequirements.MaxAttestationAge(),
	}
	if jsonOutput {
		return writeJSONOutput(output, exitOK)
	}
	if checkSchema {
		fmt.Printf("policy valid: %s (digest %s)\n", path, digest)
		return exitOK
	}
	fmt.Println(digest)
	return exitOK
}

func printPolicyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cbaac policy digest <policy.yaml> [--json] [--explain]")
	fmt.Println("  cbaac policy validate <policy.yaml> [--json] [--explain]")
}
