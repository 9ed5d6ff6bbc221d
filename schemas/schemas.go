// Package schemas bundles the JSON schemas for cbaac documents.
package schemas

import "embed"

//go:embed v1/*.schema.json
var files embed.FS

const (
	ManifestV1    = "v1/manifest.schema.json"
	PolicyV1      = "v1/policy.schema.json"
	AuditRecordV1 = "v1/audit_record.schema.json"
)

// Bundled lists every schema shipped with the binary.
var Bundled = []string{ManifestV1, PolicyV1, AuditRecordV1}

// Read returns the raw bytes of a bundled schema.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}
