package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidahmann/cbaac/core/auditlog"
	"github.com/davidahmann/cbaac/core/compliance"
	coreerrors "github.com/davidahmann/cbaac/core/errors"
	"github.com/davidahmann/cbaac/core/metrics"
	schemaaudit "github.com/davidahmann/cbaac/core/schema/v1/audit"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

type EvaluateRequest struct {
	AgentName string          `json:"agent_name,omitempty"`
	Manifest  json.RawMessage `json:"manifest"`
	Policy    json.RawMessage `json:"policy"`
}

type EvaluateResponse struct {
	OK             bool                  `json:"ok"`
	EvaluationID   string                `json:"evaluation_id"`
	AgentName      string                `json:"agent_name,omitempty"`
	EvaluatedAt    time.Time             `json:"evaluated_at"`
	Verdict        schemaverdict.Verdict `json:"verdict"`
	TierLabel      string                `json:"tier_label"`
	ManifestDigest string                `json:"manifest_digest"`
	PolicyDigest   string                `json:"policy_digest"`
}

type ChainAgentRequest struct {
	Name     string          `json:"name"`
	Manifest json.RawMessage `json:"manifest"`
}

type ChainRequest struct {
	Policy json.RawMessage     `json:"policy"`
	Agents []ChainAgentRequest `json:"agents"`
}

type ChainResponse struct {
	OK           bool                       `json:"ok"`
	ChainID      string                     `json:"chain_id"`
	PolicyDigest string                     `json:"policy_digest"`
	Chain        schemaverdict.ChainVerdict `json:"chain"`
}

type ClassifyRequest struct {
	Manifest json.RawMessage `json:"manifest"`
}

type ClassifyResponse struct {
	OK    bool               `json:"ok"`
	Tier  schemaverdict.Tier `json:"tier"`
	Label string             `json:"label"`
	Color string             `json:"color"`
}

type errorResponse struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

// Handler serves compliance evaluations over HTTP. Verdicts are data: a
// blocked agent is still a 200 response.
type Handler struct {
	logger          *slog.Logger
	metrics         *metrics.Metrics
	auditLog        string
	producerVersion string
	maxRequestBytes int64
	now             func() time.Time
}

func NewHandler(config Config, recorder *metrics.Metrics) *Handler {
	config = config.withDefaults()
	return &Handler{
		logger:          config.Logger,
		metrics:         recorder,
		auditLog:        config.AuditLog,
		producerVersion: config.ProducerVersion,
		maxRequestBytes: config.MaxRequestBytes,
		now:             config.Now,
	}
}

// Register mounts the evaluation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Post("/v1/evaluate", h.HandleEvaluate)
	r.Post("/v1/chain", h.HandleChain)
	r.Post("/v1/classify", h.HandleClassify)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleEvaluate handles POST /v1/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestID(ctx)
	start := time.Now()

	var input EvaluateRequest
	if err := decodeRequest(w, r, h.maxRequestBytes, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	policy, policyDigest, err := parsePolicy(input.Policy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	manifest, err := compliance.ParseManifest(input.Manifest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	manifestDigest, err := compliance.ManifestDigest(manifest)
	if err != nil {
		h.writeError(w, r, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false))
		return
	}

	evaluatedAt := h.now().UTC()
	verdict := compliance.Evaluate(manifest, policy, h.options(evaluatedAt))
	agentName := strings.TrimSpace(input.AgentName)
	if agentName == "" {
		agentName = manifest.Label
	}
	record := auditlog.NewRecord(auditlog.Entry{
		AgentName:      agentName,
		Verdict:        verdict,
		ManifestDigest: manifestDigest,
		PolicyDigest:   policyDigest,
	}, h.recordOptions(evaluatedAt))
	if err := h.appendAudit(record); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.IncrementVerdict(verdict.Pass, string(verdict.Tier), len(verdict.Warnings))
	h.metrics.ObserveEvaluateLatency("evaluate", time.Since(start))

	h.logger.InfoContext(ctx, "agent evaluated",
		"request_id", requestID,
		"evaluation_id", record.EvaluationID,
		"agent_name", agentName,
		"pass", verdict.Pass,
		"tier", verdict.Tier,
		"reasons", len(verdict.Reasons),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, EvaluateResponse{
		OK:             true,
		EvaluationID:   record.EvaluationID,
		AgentName:      agentName,
		EvaluatedAt:    evaluatedAt,
		Verdict:        verdict,
		TierLabel:      compliance.TierLabel(verdict.Tier),
		ManifestDigest: manifestDigest,
		PolicyDigest:   policyDigest,
	})
}

// HandleChain handles POST /v1/chain.
func (h *Handler) HandleChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var input ChainRequest
	if err := decodeRequest(w, r, h.maxRequestBytes, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	policy, policyDigest, err := parsePolicy(input.Policy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	agents := make([]compliance.ChainAgent, 0, len(input.Agents))
	digests := make([]string, 0, len(input.Agents))
	for index, agent := range input.Agents {
		manifest, err := compliance.ParseManifest(agent.Manifest)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("agent %d (%s): %w", index+1, agent.Name, err))
			return
		}
		digest, err := compliance.ManifestDigest(manifest)
		if err != nil {
			h.writeError(w, r, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false))
			return
		}
		agents = append(agents, compliance.ChainAgent{Name: agent.Name, Manifest: manifest})
		digests = append(digests, digest)
	}

	evaluatedAt := h.now().UTC()
	chain, err := compliance.EvaluateChain(agents, policy, h.options(evaluatedAt))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	chainID := auditlog.NewChainID()
	records := make([]schemaaudit.EvaluationRecord, 0, len(chain.Agents))
	for index, agent := range chain.Agents {
		records = append(records, auditlog.NewRecord(auditlog.Entry{
			AgentName:      agent.Name,
			ChainID:        chainID,
			Verdict:        agent.Verdict,
			ManifestDigest: digests[index],
			PolicyDigest:   policyDigest,
		}, h.recordOptions(evaluatedAt)))
	}
	if err := h.appendAudit(records...); err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, agent := range chain.Agents {
		h.metrics.IncrementVerdict(agent.Verdict.Pass, string(agent.Verdict.Tier), len(agent.Verdict.Warnings))
	}
	h.metrics.IncrementChain(chain.OverallPass)
	h.metrics.ObserveEvaluateLatency("chain", time.Since(start))

	h.logger.InfoContext(ctx, "chain evaluated",
		"request_id", RequestID(ctx),
		"chain_id", chainID,
		"agents", len(chain.Agents),
		"overall_pass", chain.OverallPass,
		"blocked", chain.BlockedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, ChainResponse{OK: true, ChainID: chainID, PolicyDigest: policyDigest, Chain: chain})
}

// HandleClassify handles POST /v1/classify.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var input ClassifyRequest
	if err := decodeRequest(w, r, h.maxRequestBytes, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	manifest, err := compliance.ParseManifest(input.Manifest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tier := compliance.Classify(manifest)
	h.metrics.ObserveEvaluateLatency("classify", time.Since(start))
	writeJSON(w, http.StatusOK, ClassifyResponse{
		OK:    true,
		Tier:  tier,
		Label: compliance.TierLabel(tier),
		Color: compliance.TierColor(tier),
	})
}

func (h *Handler) options(evaluatedAt time.Time) compliance.EvalOptions {
	return compliance.EvalOptions{
		Now:             func() time.Time { return evaluatedAt },
		ProducerVersion: h.producerVersion,
	}
}

func (h *Handler) recordOptions(evaluatedAt time.Time) auditlog.RecordOptions {
	return auditlog.RecordOptions{Source: auditlog.SourceAPI, ProducerVersion: h.producerVersion, Now: evaluatedAt}
}

func (h *Handler) appendAudit(records ...schemaaudit.EvaluationRecord) error {
	if h.auditLog == "" {
		return nil
	}
	return auditlog.Append(h.auditLog, records...)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	response := errorResponse{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     coreerrors.CodeOf(err),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Retryable:     coreerrors.RetryableOf(err),
		Hint:          coreerrors.HintOf(err),
	}
	writeJSON(w, status, response)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parsePolicy(raw json.RawMessage) (compliance.Policy, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return compliance.Policy{}, "", coreerrors.InvalidInput("policy_missing", "policy is required")
	}
	policy, err := compliance.ParsePolicy(raw)
	if err != nil {
		return compliance.Policy{}, "", err
	}
	digest, err := compliance.PolicyDigest(policy)
	if err != nil {
		return compliance.Policy{}, "", err
	}
	return policy, digest, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer func() {
		_ = r.Body.Close()
	}()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return coreerrors.Wrap(fmt.Errorf("request body exceeds %d bytes: %w", limit, err), coreerrors.CategoryInvalidInput, "request_too_large", "send a smaller request or raise serve.max_request_bytes", false)
		}
		return coreerrors.InvalidInput("request_decode_failed", "decode request: %v", err)
	}
	var tail struct{}
	if err := decoder.Decode(&tail); err != io.EOF {
		return coreerrors.InvalidInput("request_decode_failed", "request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
