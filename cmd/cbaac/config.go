package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davidahmann/cbaac/core/compliance"
	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/projectconfig"
)

// loadProjectConfig reads .cbaac/config.yaml, or the file named by
// CBAAC_CONFIG. Only the default path may be absent.
func loadProjectConfig() (projectconfig.Config, error) {
	path := projectconfig.ResolvePath()
	allowMissing := strings.TrimSpace(os.Getenv(projectconfig.PathEnv)) == ""
	configuration, err := projectconfig.Load(path, allowMissing)
	if err != nil {
		return projectconfig.Config{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "config_invalid", "fix or remove "+path, false)
	}
	return configuration, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func loadPolicyWithDigest(path string) (compliance.Policy, string, error) {
	policy, err := compliance.LoadPolicyFile(path)
	if err != nil {
		return compliance.Policy{}, "", err
	}
	digest, err := compliance.PolicyDigest(policy)
	if err != nil {
		return compliance.Policy{}, "", err
	}
	return policy, digest, nil
}

// parseNow reads --now as RFC 3339 or a bare date. Empty means the wall clock.
func parseNow(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, usageError("invalid --now value %q (expected RFC 3339 or YYYY-MM-DD)", raw)
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "cbaac warning: "+format+"\n", args...)
}
