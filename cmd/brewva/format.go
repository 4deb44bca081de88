package main

import (
	"fmt"
	"strings"

	"github.com/arcthur/brewva/internal/coordinator"
)

// formatFanOut renders a FanOutResult (also used for the single-target
// route-agent path) as the text sent back to the channel.
func formatFanOut(res coordinator.FanOutResult) string {
	if res.Error != "" {
		return res.Error
	}
	var b strings.Builder
	for i, r := range res.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.OK {
			fmt.Fprintf(&b, "@%s: %s", r.AgentID, r.ResponseText)
		} else {
			fmt.Fprintf(&b, "@%s: error: %s", r.AgentID, r.Error)
		}
	}
	return b.String()
}

// formatDiscuss renders a DiscussResult as a round-by-round transcript.
func formatDiscuss(res coordinator.DiscussResult) string {
	if res.Error != "" {
		return res.Error
	}
	var b strings.Builder
	for i, round := range res.Rounds {
		fmt.Fprintf(&b, "--- round %d ---\n", i+1)
		for _, entry := range round {
			fmt.Fprintf(&b, "@%s: %s\n", entry.AgentID, entry.ResponseText)
		}
	}
	if res.StoppedEarly {
		b.WriteString("(discussion concluded early)")
	}
	return strings.TrimRight(b.String(), "\n")
}
