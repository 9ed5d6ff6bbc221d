package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	fixedNowFlag = "2026-03-01T12:00:00Z"

	euPolicyYAML = `name: EU partners
regulatory_requirements:
  required_jurisdictions: [EU]
model_provider_requirements:
  require_gpai_compliance: true
`

	travelManifestJSON = `{
  "label": "TravelBot",
  "compliance_attestations": {"jurisdictions": [{"jurisdiction": "EU", "compliant": true, "automated_verification": true, "attestation_date": "2026-01-10"}]},
  "model_provider_compliance": {"provider_name": "Mistral", "gpai_compliant": true}
}`

	airlineManifestJSON = `{
  "label": "AirlineBot",
  "compliance_attestations": {"jurisdictions": [{"jurisdiction": "EU", "compliant": true, "third_party_audit": true}]},
  "model_provider_compliance": {"provider_name": "OpenAI", "gpai_compliant": false}
}`

	hotelManifestJSON = `{
  "label": "HotelBot",
  "compliance_attestations": {"jurisdictions": [{"jurisdiction": "EU", "compliant": true}]},
  "model_provider_compliance": {"provider_name": "Mistral", "gpai_compliant": true},
  "sub_agent_compliance": {"uses_sub_agents": true, "declared_sub_agents": [{"agent_id": "room-bot"}]}
}`
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stdout
	reader, writer, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = writer
	defer func() {
		os.Stdout = original
	}()

	done := make(chan []byte, 1)
	go func() {
		raw, _ := io.ReadAll(reader)
		done <- raw
	}()

	fn()

	require.NoError(t, writer.Close())
	return string(<-done)
}

func runCaptured(t *testing.T, arguments ...string) (int, string) {
	t.Helper()
	var code int
	output := captureStdout(t, func() {
		code = run(append([]string{"cbaac"}, arguments...))
	})
	return code, output
}

func decodeJSONOutput(t *testing.T, raw string) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(raw)), &decoded), raw)
	return decoded
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("CBAAC_CONFIG", "")
	t.Chdir(t.TempDir())
}

func TestRunDispatch(t *testing.T) {
	isolateConfig(t)

	code, output := runCaptured(t)
	require.Equal(t, exitInvalidInput, code)
	require.Contains(t, output, "Usage:")

	code, output = runCaptured(t, "version")
	require.Equal(t, exitOK, code)
	require.Equal(t, "cbaac 0.0.0-dev\n", output)

	code, output = runCaptured(t, "--explain")
	require.Equal(t, exitOK, code)
	require.Contains(t, output, "delegation chain")

	code, _ = runCaptured(t, "bogus")
	require.Equal(t, exitInvalidInput, code)

	code, output = runCaptured(t, "help")
	require.Equal(t, exitOK, code)
	require.Contains(t, output, "cbaac chain")
}

func TestSubcommandsExplain(t *testing.T) {
	isolateConfig(t)
	for _, command := range [][]string{
		{"evaluate", "--explain"},
		{"chain", "--explain"},
		{"classify", "--explain"},
		{"policy", "--explain"},
		{"manifest", "--explain"},
		{"manifest", "init", "--explain"},
		{"audit", "--explain"},
		{"serve", "--explain"},
		{"doctor", "--explain"},
		{"version", "--explain"},
	} {
		code, output := runCaptured(t, command...)
		require.Equal(t, exitOK, code, command)
		require.NotEmpty(t, strings.TrimSpace(output), command)
	}
}

func TestGroupCommandsRequireSubcommand(t *testing.T) {
	isolateConfig(t)
	for _, command := range []string{"policy", "manifest", "audit"} {
		code, output := runCaptured(t, command)
		require.Equal(t, exitInvalidInput, code)
		require.Contains(t, output, "Usage:")

		code, _ = runCaptured(t, command, "unknown")
		require.Equal(t, exitInvalidInput, code)
	}
}

func TestServeRejectsBadArguments(t *testing.T) {
	isolateConfig(t)
	code, output := runCaptured(t, "serve", "extra")
	require.Equal(t, exitInvalidInput, code)
	require.Contains(t, output, "serve error")

	code, _ = runCaptured(t, "serve", "--max-request-bytes", "-5")
	require.Equal(t, exitInvalidInput, code)

	code, _ = runCaptured(t, "serve", "--unknown")
	require.Equal(t, exitInvalidInput, code)
}
