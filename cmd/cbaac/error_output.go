package main

import (
	"encoding/json"
	"fmt"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
)

type errorOutput struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error"`
	ErrorCode     string `json:"error_code"`
	ErrorCategory string `json:"error_category"`
	Retryable     bool   `json:"retryable"`
	Hint          string `json:"hint,omitempty"`
}

func writeJSONOutput(output any, exitCode int) int {
	encoded, err := json.Marshal(output)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_code":"encode_failed","error_category":"internal_failure","retryable":false}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

// writeCommandError reports err as a classified envelope (JSON) or a one-line
// message plus hint (text) and returns the exit code for its category.
func writeCommandError(jsonOutput bool, command string, err error, fallbackExit int) int {
	exitCode := exitCodeForError(err, fallbackExit)
	output := errorEnvelope(err, exitCode)
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	fmt.Printf("%s error: %s\n", command, output.Error)
	if output.Hint != "" {
		fmt.Printf("hint: %s\n", output.Hint)
	}
	return exitCode
}

func errorEnvelope(err error, exitCode int) errorOutput {
	output := errorOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     coreerrors.CodeOf(err),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Retryable:     coreerrors.RetryableOf(err),
		Hint:          coreerrors.HintOf(err),
	}
	if output.ErrorCode == "" {
		output.ErrorCode = defaultErrorCode(exitCode)
	}
	if output.ErrorCategory == "" {
		output.ErrorCategory = string(defaultErrorCategory(exitCode))
	}
	if output.Hint == "" {
		output.Hint = defaultHint(exitCode)
	}
	return output
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return exitInvalidInput
	case coreerrors.CategoryPolicyBlocked:
		return exitPolicyBlocked
	case coreerrors.CategoryDependencyMissing, coreerrors.CategoryIOFailure, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	return fallbackExit
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryInvalidInput
	case exitPolicyBlocked:
		return coreerrors.CategoryPolicyBlocked
	default:
		return coreerrors.CategoryInternalFailure
	}
}

func defaultErrorCode(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "invalid_input"
	case exitPolicyBlocked:
		return "policy_blocked"
	default:
		return "internal_failure"
	}
}

func defaultHint(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "check command usage and input documents"
	case exitPolicyBlocked:
		return "inspect the verdict reasons and fix the manifest or policy"
	default:
		return "retry after checking local environment and logs"
	}
}

func usageError(format string, args ...any) error {
	return coreerrors.InvalidInput("usage", format, args...)
}
