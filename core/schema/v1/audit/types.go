package audit

import "time"

type EvaluationRecord struct {
	SchemaID        string    `json:"schema_id"`
	SchemaVersion   string    `json:"schema_version"`
	CreatedAt       time.Time `json:"created_at"`
	ProducerVersion string    `json:"producer_version"`
	EvaluationID    string    `json:"evaluation_id"`
	ChainID         string    `json:"chain_id,omitempty"`
	Source          string    `json:"source"`
	AgentName       string    `json:"agent_name"`
	Pass            bool      `json:"pass"`
	Tier            string    `json:"tier"`
	ReasonCount     int       `json:"reason_count"`
	WarningCount    int       `json:"warning_count"`
	ManifestDigest  string    `json:"manifest_digest,omitempty"`
	PolicyDigest    string    `json:"policy_digest,omitempty"`
}
