package main

import (
	"fmt"
	"strings"

	"github.com/davidahmann/cbaac/core/compliance"
	schemaverdict "github.com/davidahmann/cbaac/core/schema/v1/verdict"
)

func tierBadge(tier schemaverdict.Tier) string {
	return fmt.Sprintf("[%s %s]", compliance.TierColor(tier), compliance.TierLabel(tier))
}

func statusWord(pass bool) string {
	if pass {
		return "PASS"
	}
	return "BLOCKED"
}

func renderVerdict(name string, verdict schemaverdict.Verdict) string {
	var builder strings.Builder
	label := name
	if label == "" {
		label = "agent"
	}
	fmt.Fprintf(&builder, "%s %s %s\n", label, tierBadge(verdict.Tier), statusWord(verdict.Pass))
	for _, reason := range verdict.Reasons {
		fmt.Fprintf(&builder, "  x %s\n", reason)
	}
	for _, warning := range verdict.Warnings {
		fmt.Fprintf(&builder, "  ! %s\n", warning)
	}
	return builder.String()
}

func edgeArrow(edge schemaverdict.Edge) string {
	if edge.Traversable {
		return "--(green)-->"
	}
	return "--(red)--x->"
}

// renderChain draws the chain top to bottom, one agent per block, each
// preceded by the arrow of its inbound edge.
func renderChain(chain schemaverdict.ChainVerdict) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s\n", compliance.OriginAgentName)
	for _, agent := range chain.Agents {
		fmt.Fprintf(&builder, "  %s\n", edgeArrow(agent.InboundEdge))
		builder.WriteString(renderVerdict(agent.Name, agent.Verdict))
	}
	total := len(chain.Agents)
	fmt.Fprintf(&builder, "summary: %d/%d passed, %d blocked, %d warned, chain %s\n",
		chain.PassedCount, total, chain.BlockedCount, chain.WarnedCount, strings.ToLower(statusWord(chain.OverallPass)))
	return builder.String()
}
