package compliance

import (
	"strings"

	coreerrors "github.com/davidahmann/cbaac/core/errors"
	schemamanifest "github.com/davidahmann/cbaac/core/schema/v1/manifest"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

const (
	chainSchemaID   = "cbaac.compliance.chain_verdict"
	chainSchemaV1   = "1.0.0"
	OriginAgentName = "origin"
)

type ChainAgent struct {
	Name     string
	Manifest schemamanifest.Manifest
}

// EvaluateChain evaluates every agent independently against the same policy
// at one shared instant. A blocked agent never hides the agents after it.
// The inbound edge of each agent is traversable when the agent before it
// passed; the origin always counts as passed. Edges are presentation only and
// never feed back into an agent's own verdict.
func EvaluateChain(agents []ChainAgent, policy Policy, options EvalOptions) (schemaverdict.ChainVerdict, error) {
	if len(agents) == 0 {
		return schemaverdict.ChainVerdict{}, coreerrors.InvalidInput("chain_empty", "chain requires at least one agent")
	}
	seen := make(map[string]struct{}, len(agents))
	for index, agent := range agents {
		name := strings.TrimSpace(agent.Name)
		if name == "" {
			return schemaverdict.ChainVerdict{}, coreerrors.InvalidInput("chain_agent_unnamed", "chain agent %d has no name", index+1)
		}
		if _, ok := seen[name]; ok {
			return schemaverdict.ChainVerdict{}, coreerrors.InvalidInput("chain_agent_duplicate", "duplicate chain agent name: %s", name)
		}
		seen[name] = struct{}{}
	}

	now := options.instant()
	producerVersion := options.ProducerVersion
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}
	chain := schemaverdict.ChainVerdict{
		SchemaID:        chainSchemaID,
		SchemaVersion:   chainSchemaV1,
		EvaluatedAt:     now,
		ProducerVersion: producerVersion,
		Agents:          make([]schemaverdict.AgentVerdict, 0, len(agents)),
		OverallPass:     true,
	}

	previousName := OriginAgentName
	previousPassed := true
	for _, agent := range agents {
		name := strings.TrimSpace(agent.Name)
		verdict := evaluateAt(agent.Manifest, policy, now)
		chain.Agents = append(chain.Agents, schemaverdict.AgentVerdict{
			Name:        name,
			Verdict:     verdict,
			InboundEdge: edgeFrom(previousName, name, previousPassed),
		})

		if verdict.Pass {
			chain.PassedCount++
		} else {
			chain.BlockedCount++
			chain.OverallPass = false
		}
		if len(verdict.Warnings) > 0 {
			chain.WarnedCount++
		}
		previousName = name
		previousPassed = verdict.Pass
	}
	return chain, nil
}

func edgeFrom(from, to string, previousPassed bool) schemaverdict.Edge {
	signal := schemaverdict.EdgeRed
	if previousPassed {
		signal = schemaverdict.EdgeGreen
	}
	return schemaverdict.Edge{
		From:        from,
		To:          to,
		Traversable: previousPassed,
		Signal:      signal,
	}
}
