package projectconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	DefaultPath = ".cbaac/config.yaml"
	PathEnv     = "CBAAC_CONFIG"

	DefaultListen          = "127.0.0.1:8787"
	DefaultMaxRequestBytes = int64(1 << 20)
)

type Config struct {
	Evaluate EvaluateDefaults `yaml:"evaluate"`
	Serve    ServeDefaults    `yaml:"serve"`
}

type EvaluateDefaults struct {
	Policy   string `yaml:"policy"`
	AuditLog string `yaml:"audit_log"`
}

type ServeDefaults struct {
	Listen          string `yaml:"listen"`
	MaxRequestBytes int64  `yaml:"max_request_bytes"`
	AuditLog        string `yaml:"audit_log"`
}

// ResolvePath returns the config path named by CBAAC_CONFIG, or DefaultPath.
func ResolvePath() string {
	if fromEnv := strings.TrimSpace(os.Getenv(PathEnv)); fromEnv != "" {
		return fromEnv
	}
	return DefaultPath
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	if configuration.Serve.MaxRequestBytes < 0 {
		return Config{}, fmt.Errorf("serve.max_request_bytes must be >= 0")
	}
	configuration.normalize()
	return configuration, nil
}

// ListenAddress falls back to DefaultListen.
func (defaults ServeDefaults) ListenAddress() string {
	if defaults.Listen == "" {
		return DefaultListen
	}
	return defaults.Listen
}

// RequestLimit falls back to DefaultMaxRequestBytes when unset.
func (defaults ServeDefaults) RequestLimit() int64 {
	if defaults.MaxRequestBytes <= 0 {
		return DefaultMaxRequestBytes
	}
	return defaults.MaxRequestBytes
}

func (configuration *Config) normalize() {
	configuration.Evaluate.Policy = strings.TrimSpace(configuration.Evaluate.Policy)
	configuration.Evaluate.AuditLog = strings.TrimSpace(configuration.Evaluate.AuditLog)
	configuration.Serve.Listen = strings.TrimSpace(configuration.Serve.Listen)
	configuration.Serve.AuditLog = strings.TrimSpace(configuration.Serve.AuditLog)
}
