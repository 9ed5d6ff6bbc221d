package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/cbaac/core/compliance"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

type classifyOutput struct {
	OK    bool               `json:"ok"`
	Tier  schemaverdict.Tier `json:"tier"`
	Label string             `json:"label"`
	Color string             `json:"color"`
}

func runClassify(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Report the trust tier of a manifest from the strongest evidence among its jurisdiction attestations. The tier never decides pass or block.")
	}
	arguments = reorderInterspersedFlags(arguments, nil)

	flagSet := flag.NewFlagSet("classify", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var jsonOutput bool
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")

	if err := flagSet.Parse(arguments); err != nil {
		return writeCommandError(jsonOutput, "classify", usageError("%v", err), exitInvalidInput)
	}
	if len(flagSet.Args()) != 1 {
		return writeCommandError(jsonOutput, "classify", usageError("expected <manifest.json>"), exitInvalidInput)
	}
	manifest, err := compliance.LoadManifestFile(flagSet.Args()[0])
	if err != nil {
		return writeCommandError(jsonOutput, "classify", err, exitInvalidInput)
	}

	tier := compliance.Classify(manifest)
	output := classifyOutput{OK: true, Tier: tier, Label: compliance.TierLabel(tier), Color: compliance.TierColor(tier)}
	if jsonOutput {
		return writeJSONOutput(output, exitOK)
	}
	fmt.Printf("%s %s\n", tier, tierBadge(tier))
	return exitOK
}
