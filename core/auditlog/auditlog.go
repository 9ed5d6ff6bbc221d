package auditlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/fsx"
	schemaaudit "github.com/davidahmann/cbaac/core/schema/v1/audit"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

const (
	recordSchemaID = "cbaac.audit.evaluation"
	recordSchemaV1 = "1.0.0"

	SourceCLI = "cli"
	SourceAPI = "api"
)

var tierOrder = []schemaverdict.Tier{
	schemaverdict.TierThirdPartyAudited,
	schemaverdict.TierAutoVerified,
	schemaverdict.TierSelfCertified,
	schemaverdict.TierUnverified,
}

type Entry struct {
	AgentName      string
	ChainID        string
	Verdict        schemaverdict.Verdict
	ManifestDigest string
	PolicyDigest   string
}

type RecordOptions struct {
	Source          string
	ProducerVersion string
	Now             time.Time
}

// NewRecord stamps an entry with a fresh evaluation id.
func NewRecord(entry Entry, options RecordOptions) schemaaudit.EvaluationRecord {
	createdAt := options.Now.UTC()
	if options.Now.IsZero() {
		createdAt = time.Now().UTC()
	}
	producerVersion := options.ProducerVersion
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}
	return schemaaudit.EvaluationRecord{
		SchemaID:        recordSchemaID,
		SchemaVersion:   recordSchemaV1,
		CreatedAt:       createdAt,
		ProducerVersion: producerVersion,
		EvaluationID:    uuid.NewString(),
		ChainID:         entry.ChainID,
		Source:          options.Source,
		AgentName:       strings.TrimSpace(entry.AgentName),
		Pass:            entry.Verdict.Pass,
		Tier:            string(entry.Verdict.Tier),
		ReasonCount:     len(entry.Verdict.Reasons),
		WarningCount:    len(entry.Verdict.Warnings),
		ManifestDigest:  entry.ManifestDigest,
		PolicyDigest:    entry.PolicyDigest,
	}
}

// NewChainID returns an id shared by every record of one chain evaluation.
func NewChainID() string {
	return uuid.NewString()
}

// Append writes records as one locked batch so the records of a chain stay
// contiguous in the log.
func Append(path string, records ...schemaaudit.EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}
	lines := make([][]byte, 0, len(records))
	for _, record := range records {
		encoded, err := json.Marshal(record)
		if err != nil {
			return coreerrors.Wrap(fmt.Errorf("encode audit record: %w", err), coreerrors.CategoryInternalFailure, "audit_encode_failed", "", false)
		}
		lines = append(lines, encoded)
	}
	if err := fsx.AppendLineLocked(path, bytes.Join(lines, []byte{'\n'}), 0o600); err != nil {
		return coreerrors.Wrap(fmt.Errorf("append audit record: %w", err), coreerrors.CategoryIOFailure, "audit_append_failed", "check the audit log path and permissions", true)
	}
	return nil
}

func ReadRecords(path string) ([]schemaaudit.EvaluationRecord, error) {
	// #nosec G304 -- audit log path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read audit log: %w", err), coreerrors.CategoryIOFailure, "audit_read_failed", "check the audit log path", false)
	}
	return ParseRecords(content)
}

// ParseRecords decodes a JSONL audit log, skipping blank lines.
func ParseRecords(content []byte) ([]schemaaudit.EvaluationRecord, error) {
	records := []schemaaudit.EvaluationRecord{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var record schemaaudit.EvaluationRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, coreerrors.InvalidInput("audit_record_invalid", "audit log line %d: %v", line, err)
		}
		if record.SchemaID != recordSchemaID {
			return nil, coreerrors.InvalidInput("audit_record_invalid", "audit log line %d: unsupported schema_id %q", line, record.SchemaID)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("scan audit log: %w", err), coreerrors.CategoryIOFailure, "audit_read_failed", "", false)
	}
	return records, nil
}

type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Blocked int `json:"blocked"`
	Warned  int `json:"warned"`
}

type TierCounts struct {
	Tier string `json:"tier"`
	Counts
}

type Summary struct {
	Counts
	Chains  int          `json:"chains"`
	Tiers   []TierCounts `json:"tiers"`
	FirstAt *time.Time   `json:"first_at,omitempty"`
	LastAt  *time.Time   `json:"last_at,omitempty"`
}

func (counts *Counts) add(record schemaaudit.EvaluationRecord) {
	counts.Total++
	if record.Pass {
		counts.Passed++
	} else {
		counts.Blocked++
	}
	if record.WarningCount > 0 {
		counts.Warned++
	}
}

// Summarize totals records overall and per tier. Tiers appear strongest
// first; unknown tier names follow in first-seen order.
func Summarize(records []schemaaudit.EvaluationRecord) Summary {
	summary := Summary{Tiers: []TierCounts{}}
	byTier := map[string]*Counts{}
	order := make([]string, 0, len(tierOrder))
	for _, tier := range tierOrder {
		byTier[string(tier)] = &Counts{}
		order = append(order, string(tier))
	}
	chains := map[string]struct{}{}

	for _, record := range records {
		summary.add(record)
		counts, ok := byTier[record.Tier]
		if !ok {
			counts = &Counts{}
			byTier[record.Tier] = counts
			order = append(order, record.Tier)
		}
		counts.add(record)
		if record.ChainID != "" {
			chains[record.ChainID] = struct{}{}
		}
		createdAt := record.CreatedAt
		if summary.FirstAt == nil || createdAt.Before(*summary.FirstAt) {
			summary.FirstAt = &createdAt
		}
		if summary.LastAt == nil || createdAt.After(*summary.LastAt) {
			lastAt := createdAt
			summary.LastAt = &lastAt
		}
	}

	summary.Chains = len(chains)
	for _, tier := range order {
		if counts := byTier[tier]; counts.Total > 0 {
			summary.Tiers = append(summary.Tiers, TierCounts{Tier: tier, Counts: *counts})
		}
	}
	return summary
}
