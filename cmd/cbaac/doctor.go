package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/cbaac/core/doctor"
	"github.com/davidahmann/cbaac/core/projectconfig"
)

type doctorOutput struct {
	OK              bool           `json:"ok"`
	SchemaID        string         `json:"schema_id,omitempty"`
	SchemaVersion   string         `json:"schema_version,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	ProducerVersion string         `json:"producer_version,omitempty"`
	Status          string         `json:"status,omitempty"`
	NonFixable      bool           `json:"non_fixable,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	FixCommands     []string       `json:"fix_commands,omitempty"`
	Checks          []doctor.Check `json:"checks,omitempty"`
}

func runDoctor(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Check that this workspace can evaluate manifests: project config, default policy, audit log destinations, serve address and bundled schemas. Exit 1 when any check fails.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"workdir": true})

	flagSet := flag.NewFlagSet("doctor", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var workDir string
	var jsonOutput bool
	flagSet.StringVar(&workDir, "workdir", ".", "workspace directory to check")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "doctor", usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) > 0 {
		return writeCommandError(jsonOutput, "doctor", usageError("unexpected positional arguments"), exitInvalidInput)
	}

	result := doctor.Run(doctor.Options{
		WorkDir:         workDir,
		ConfigPath:      projectconfig.ResolvePath(),
		ProducerVersion: version,
	})
	exitCode := exitOK
	if result.Status == "fail" {
		exitCode = exitInternalFailure
	}
	output := doctorOutput{
		OK:              result.Status != "fail",
		SchemaID:        result.SchemaID,
		SchemaVersion:   result.SchemaVersion,
		CreatedAt:       result.CreatedAt,
		ProducerVersion: result.ProducerVersion,
		Status:          result.Status,
		NonFixable:      result.NonFixable,
		Summary:         result.Summary,
		FixCommands:     result.FixCommands,
		Checks:          result.Checks,
	}
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	fmt.Println(output.Summary)
	for _, check := range output.Checks {
		fmt.Printf("- %s: %s (%s)\n", check.Name, check.Status, check.Message)
		if check.FixCommand != "" {
			fmt.Printf("  fix: %s\n", check.FixCommand)
		}
	}
	return exitCode
}
