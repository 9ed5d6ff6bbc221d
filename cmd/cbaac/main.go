package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK              = 0
	exitInternalFailure = 1
	exitPolicyBlocked   = 3
	exitInvalidInput    = 6
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		printUsage()
		return exitInvalidInput
	}
	if arguments[1] == "--explain" {
		return writeExplain("cbaac evaluates agent compliance manifests against an organisation policy, one agent at a time or along a delegation chain, and reports a pass/block verdict with reasons, warnings and a trust tier.")
	}

	switch arguments[1] {
	case "evaluate":
		return runEvaluate(arguments[2:])
	case "chain":
		return runChain(arguments[2:])
	case "classify":
		return runClassify(arguments[2:])
	case "policy":
		return runPolicy(arguments[2:])
	case "manifest":
		return runManifest(arguments[2:])
	case "audit":
		return runAudit(arguments[2:])
	case "serve":
		return runServe(arguments[2:])
	case "doctor":
		return runDoctor(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("cbaac", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cbaac evaluate [<policy.yaml>] <manifest.json> [--policy <policy.yaml>] [--agent <name>] [--now <rfc3339>] [--audit-log <path>] [--json] [--explain]")
	fmt.Println("  cbaac chain [<policy.yaml>] <name=manifest.json>... [--policy <policy.yaml>] [--now <rfc3339>] [--audit-log <path>] [--json] [--explain]")
	fmt.Println("  cbaac classify <manifest.json> [--json] [--explain]")
	fmt.Println("  cbaac policy digest <policy.yaml> [--json] [--explain]")
	fmt.Println("  cbaac policy validate <policy.yaml> [--json] [--explain]")
	fmt.Println("  cbaac manifest validate <manifest.json> [--json] [--explain]")
	fmt.Println("  cbaac manifest init --jurisdictions <csv> [--certification <type>] [--name <agent>] [--provider <name>] [--out <path>] [--force] [--json] [--explain]")
	fmt.Println("  cbaac audit summary <audit.jsonl> [--json] [--explain]")
	fmt.Println("  cbaac audit validate <audit.jsonl> [--json] [--explain]")
	fmt.Println("  cbaac serve [--listen <addr>] [--audit-log <path>] [--max-request-bytes <n>] [--explain]")
	fmt.Println("  cbaac doctor [--workdir <dir>] [--json] [--explain]")
	fmt.Println("  cbaac version")
}
