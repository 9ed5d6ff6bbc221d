package doctor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/cbaac/core/compliance"
	"github.com/davidahmann/cbaac/core/projectconfig"
	"github.com/davidahmann/cbaac/core/schema/validate"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

type Options struct {
	WorkDir         string
	ConfigPath      string
	ProducerVersion string
	Now             time.Time
}

type Result struct {
	SchemaID        string   `json:"schema_id"`
	SchemaVersion   string   `json:"schema_version"`
	CreatedAt       string   `json:"created_at"`
	ProducerVersion string   `json:"producer_version"`
	Status          string   `json:"status"`
	NonFixable      bool     `json:"non_fixable"`
	Summary         string   `json:"summary"`
	FixCommands     []string `json:"fix_commands"`
	Checks          []Check  `json:"checks"`
}

type Check struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	FixCommand string `json:"fix_command,omitempty"`
	NonFixable bool   `json:"non_fixable,omitempty"`
}

// Run checks that the workspace can evaluate manifests: the project config
// loads, the default policy parses, audit logs are writable and valid, and
// the bundled schemas compile.
func Run(opts Options) Result {
	workDir := strings.TrimSpace(opts.WorkDir)
	if workDir == "" {
		workDir = "."
	}
	configPath := strings.TrimSpace(opts.ConfigPath)
	if configPath == "" {
		configPath = projectconfig.DefaultPath
	}
	configPath = resolvePath(workDir, configPath)

	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	configuration, configCheck := checkProjectConfig(configPath)
	checks := []Check{
		checkWorkDirWritable(workDir),
		configCheck,
		checkBundledSchemas(),
		checkDefaultPolicy(workDir, configPath, configuration.Evaluate.Policy),
		checkAuditLogs(workDir, configuration),
		checkListenAddress(configuration.Serve.ListenAddress()),
	}

	failed := 0
	warned := 0
	nonFixable := false
	fixCommands := make([]string, 0, len(checks))
	seenFixes := map[string]struct{}{}
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusWarn:
			warned++
		}
		if check.NonFixable {
			nonFixable = true
		}
		if check.FixCommand != "" {
			if _, ok := seenFixes[check.FixCommand]; !ok {
				seenFixes[check.FixCommand] = struct{}{}
				fixCommands = append(fixCommands, check.FixCommand)
			}
		}
	}

	status := statusPass
	if failed > 0 {
		status = statusFail
	} else if warned > 0 {
		status = statusWarn
	}

	sort.Strings(fixCommands)
	summary := fmt.Sprintf("doctor: status=%s failed=%d warned=%d non_fixable=%t", status, failed, warned, nonFixable)

	return Result{
		SchemaID:        "cbaac.doctor.result",
		SchemaVersion:   "1.0.0",
		CreatedAt:       now.UTC().Format(time.RFC3339Nano),
		ProducerVersion: producerVersion,
		Status:          status,
		NonFixable:      nonFixable,
		Summary:         summary,
		FixCommands:     fixCommands,
		Checks:          checks,
	}
}

func checkWorkDirWritable(workDir string) Check {
	info, err := os.Stat(workDir)
	if err != nil {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    fmt.Sprintf("workdir not accessible: %v", err),
			FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(workDir)),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    "workdir is not a directory",
			FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(workDir)),
		}
	}
	if err := ensureWritable(workDir); err != nil {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    fmt.Sprintf("workdir not writable: %v", err),
			FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(workDir)),
		}
	}
	return Check{
		Name:    "workdir",
		Status:  statusPass,
		Message: "workdir is writable",
	}
}

// checkProjectConfig returns the loaded config alongside its check. A broken
// config yields zero defaults so the remaining checks still run.
func checkProjectConfig(configPath string) (projectconfig.Config, Check) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return projectconfig.Config{}, Check{
			Name:    "project_config",
			Status:  statusPass,
			Message: fmt.Sprintf("no project config at %s; flags supply every default", configPath),
		}
	}
	configuration, err := projectconfig.Load(configPath, false)
	if err != nil {
		return projectconfig.Config{}, Check{
			Name:       "project_config",
			Status:     statusFail,
			Message:    err.Error(),
			FixCommand: fmt.Sprintf("fix or remove %s", shellQuote(configPath)),
		}
	}
	return configuration, Check{
		Name:    "project_config",
		Status:  statusPass,
		Message: fmt.Sprintf("project config %s loaded", configPath),
	}
}

func checkBundledSchemas() Check {
	if err := validate.CheckBundled(); err != nil {
		return Check{
			Name:       "schemas",
			Status:     statusFail,
			Message:    fmt.Sprintf("bundled schema does not compile: %v", err),
			NonFixable: true,
		}
	}
	return Check{
		Name:    "schemas",
		Status:  statusPass,
		Message: "bundled schemas compile",
	}
}

func checkDefaultPolicy(workDir, configPath, policyPath string) Check {
	if policyPath == "" {
		return Check{
			Name:       "default_policy",
			Status:     statusWarn,
			Message:    "no evaluate.policy configured; evaluate and chain need a policy argument",
			FixCommand: fmt.Sprintf("set evaluate.policy in %s", shellQuote(configPath)),
		}
	}
	policy, err := compliance.LoadPolicyFile(resolvePath(workDir, policyPath))
	if err != nil {
		return Check{
			Name:       "default_policy",
			Status:     statusFail,
			Message:    fmt.Sprintf("default policy %s: %v", policyPath, err),
			FixCommand: fmt.Sprintf("cbaac policy validate %s", shellQuote(policyPath)),
		}
	}
	digest, err := compliance.PolicyDigest(policy)
	if err != nil {
		return Check{
			Name:    "default_policy",
			Status:  statusFail,
			Message: fmt.Sprintf("digest default policy: %v", err),
		}
	}
	return Check{
		Name:    "default_policy",
		Status:  statusPass,
		Message: fmt.Sprintf("default policy %s loaded (digest %s)", policyPath, digest),
	}
}

// checkAuditLogs covers both configured audit logs. An existing log must pass
// schema validation; a missing one needs a writable parent directory.
func checkAuditLogs(workDir string, configuration projectconfig.Config) Check {
	paths := make([]string, 0, 2)
	for _, path := range []string{configuration.Evaluate.AuditLog, configuration.Serve.AuditLog} {
		if path != "" && (len(paths) == 0 || paths[0] != path) {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return Check{
			Name:    "audit_log",
			Status:  statusPass,
			Message: "audit logging not configured",
		}
	}

	for _, path := range paths {
		fullPath := resolvePath(workDir, path)
		// #nosec G304 -- audit log path comes from the local project config.
		content, err := os.ReadFile(fullPath)
		switch {
		case err == nil:
			if err := validate.ValidateAuditLog(content); err != nil {
				return Check{
					Name:       "audit_log",
					Status:     statusFail,
					Message:    fmt.Sprintf("audit log %s is not valid: %v", path, err),
					FixCommand: fmt.Sprintf("cbaac audit validate %s", shellQuote(path)),
				}
			}
		case os.IsNotExist(err):
			parent := filepath.Dir(fullPath)
			if _, statErr := os.Stat(parent); statErr != nil {
				return Check{
					Name:       "audit_log",
					Status:     statusWarn,
					Message:    fmt.Sprintf("audit log directory %s does not exist yet", parent),
					FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(parent)),
				}
			}
			if err := ensureWritable(parent); err != nil {
				return Check{
					Name:       "audit_log",
					Status:     statusFail,
					Message:    fmt.Sprintf("audit log directory not writable: %v", err),
					FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(parent)),
				}
			}
		default:
			return Check{
				Name:    "audit_log",
				Status:  statusFail,
				Message: fmt.Sprintf("audit log %s check failed: %v", path, err),
			}
		}
	}
	return Check{
		Name:    "audit_log",
		Status:  statusPass,
		Message: fmt.Sprintf("audit log ready: %s", strings.Join(paths, ",")),
	}
}

func checkListenAddress(address string) Check {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return Check{
			Name:       "serve_listen",
			Status:     statusFail,
			Message:    fmt.Sprintf("serve.listen %q is not host:port: %v", address, err),
			FixCommand: fmt.Sprintf("set serve.listen to %s", projectconfig.DefaultListen),
		}
	}
	return Check{
		Name:    "serve_listen",
		Status:  statusPass,
		Message: fmt.Sprintf("serve listens on %s", address),
	}
}

func ensureWritable(dir string) error {
	testPath := filepath.Join(dir, ".cbaac-doctor-writecheck")
	if err := os.WriteFile(testPath, []byte("ok"), 0o600); err != nil {
		return err
	}
	_ = os.Remove(testPath)
	return nil
}

func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
