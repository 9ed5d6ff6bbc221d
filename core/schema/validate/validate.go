package validate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kaptinlin/jsonschema"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/schemas"
)

func ValidateJSONFile(schemaPath, jsonPath string) error {
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	// #nosec G304 -- json path is explicit local user input.
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read json: %w", err)
	}
	return validateJSON(schema, data)
}

func ValidateJSONLFile(schemaPath, jsonlPath string) error {
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	// #nosec G304 -- jsonl path is explicit local user input.
	data, err := os.ReadFile(jsonlPath)
	if err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return validateJSONL(schema, data)
}

// ValidateManifest checks a JSON manifest against the bundled manifest schema.
func ValidateManifest(data []byte) error {
	return validateBundled(schemas.ManifestV1, data, "manifest_schema_invalid")
}

// ValidatePolicy checks a YAML or JSON policy against the bundled policy schema.
// An empty document is an empty policy.
func ValidatePolicy(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	converted, err := yaml.YAMLToJSON(data)
	if err != nil {
		return coreerrors.InvalidInput("policy_parse_failed", "parse policy: %v", err)
	}
	return validateBundled(schemas.PolicyV1, converted, "policy_schema_invalid")
}

// ValidateAuditLog checks every non-blank line of a JSONL audit log.
func ValidateAuditLog(data []byte) error {
	schema, err := compileBundled(schemas.AuditRecordV1)
	if err != nil {
		return err
	}
	if err := validateJSONL(schema, data); err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "audit_record_invalid", "inspect the reported line of the audit log", false)
	}
	return nil
}

// CheckBundled compiles every embedded schema and reports the first failure.
func CheckBundled() error {
	for _, name := range schemas.Bundled {
		if _, err := compileBundled(name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func validateBundled(name string, data []byte, code string) error {
	schema, err := compileBundled(name)
	if err != nil {
		return err
	}
	if err := validateJSON(schema, data); err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, code, "fix the document fields reported by the schema check", false)
	}
	return nil
}

func compileBundled(name string) (*jsonschema.Schema, error) {
	data, err := schemas.Read(name)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read bundled schema %s: %w", name, err), coreerrors.CategoryInternalFailure, "schema_missing", "", false)
	}
	return compileSchema(data)
}

func loadSchema(schemaPath string) (*jsonschema.Schema, error) {
	// #nosec G304 -- schema path is explicit local user input.
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compileSchema(data)
}

func compileSchema(data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

func validateJSONL(schema *jsonschema.Schema, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := validateJSON(schema, b); err != nil {
			return fmt.Errorf("jsonl line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return nil
}
