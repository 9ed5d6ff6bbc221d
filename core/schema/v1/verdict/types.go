package verdict

import "time"

type Tier string

const (
	TierThirdPartyAudited Tier = "third_party_audited"
	TierAutoVerified      Tier = "auto_verified"
	TierSelfCertified     Tier = "self_certified"
	TierUnverified        Tier = "unverified"
)

type Verdict struct {
	Pass     bool     `json:"pass"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`
	Tier     Tier     `json:"tier"`
}

type EdgeSignal string

const (
	EdgeGreen EdgeSignal = "green"
	EdgeRed   EdgeSignal = "red"
)

type Edge struct {
	From        string     `json:"from"`
	To          string     `json:"to"`
	Traversable bool       `json:"traversable"`
	Signal      EdgeSignal `json:"signal"`
}

type AgentVerdict struct {
	Name        string  `json:"name"`
	Verdict     Verdict `json:"verdict"`
	InboundEdge Edge    `json:"inbound_edge"`
}

type ChainVerdict struct {
	SchemaID        string         `json:"schema_id"`
	SchemaVersion   string         `json:"schema_version"`
	EvaluatedAt     time.Time      `json:"evaluated_at"`
	ProducerVersion string         `json:"producer_version"`
	Agents          []AgentVerdict `json:"agents"`
	OverallPass     bool           `json:"overall_pass"`
	PassedCount     int            `json:"passed_count"`
	BlockedCount    int            `json:"blocked_count"`
	WarnedCount     int            `json:"warned_count"`
}
