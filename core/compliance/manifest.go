package compliance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	cbaacjcs "github.com/davidahmann/cbaac/core/jcs"
	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
)

func LoadManifestFile(path string) (schemamanifest.Manifest, error) {
	// #nosec G304 -- manifest path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return schemamanifest.Manifest{}, coreerrors.Wrap(fmt.Errorf("read manifest: %w", err), coreerrors.CategoryIOFailure, "manifest_read_failed", "check the manifest path", false)
	}
	return ParseManifest(content)
}

// ParseManifest decodes a JSON manifest. Unknown fields such as the
// AgentFacts envelope (@context, endpoints, skills) are ignored.
func ParseManifest(data []byte) (schemamanifest.Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return schemamanifest.Manifest{}, coreerrors.InvalidInput("manifest_empty", "manifest document is empty")
	}
	var manifest schemamanifest.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return schemamanifest.Manifest{}, coreerrors.InvalidInput("manifest_parse_failed", "parse manifest: %v", err)
	}
	return manifest, nil
}

func ManifestDigest(manifest schemamanifest.Manifest) (string, error) {
	digest, err := cbaacjcs.DigestValue(manifest)
	if err != nil {
		return "", fmt.Errorf("digest manifest: %w", err)
	}
	return digest, nil
}
