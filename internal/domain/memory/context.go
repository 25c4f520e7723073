package memory

import (
	"fmt"
	"sort"
	"strings"
)

const contextPreamble = "FACTS and ENTITIES represent relevant context to the current conversation."

// FormatContextBlock renders facts and entities into the block injected
// into an LLM prompt. ok is false when there is nothing to render, including
// the case where the rendered block is blank after trimming. Confidence is
// not shown here, unlike the toolkit digest.
func FormatContextBlock(edges []GraphEdge, nodes []GraphNode) (block string, ok bool) {
	if len(edges) == 0 && len(nodes) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(contextPreamble)
	b.WriteString("\n\n")

	b.WriteString("# These are the most relevant facts\n")
	b.WriteString("<FACTS>\n")
	for i := range edges {
		fmt.Fprintf(&b, "- %s\n", edges[i].Fact)
	}
	b.WriteString("</FACTS>\n\n")

	b.WriteString("# These are the most relevant entities\n")
	b.WriteString("<ENTITIES>\n")
	for i := range nodes {
		writeEntity(&b, &nodes[i])
	}
	b.WriteString("</ENTITIES>\n")

	block = strings.TrimSpace(b.String())
	if block == "" {
		return "", false
	}
	return block, true
}

func writeEntity(b *strings.Builder, n *GraphNode) {
	fmt.Fprintf(b, "Entity ID: %s\n", n.UUID)
	fmt.Fprintf(b, "Name: %s\n", n.Name)
	fmt.Fprintf(b, "Labels: %s\n", strings.Join(n.Labels, ", "))
	fmt.Fprintf(b, "Summary: %s\n", n.Summary)
	if len(n.Attributes) > 0 {
		b.WriteString("Attributes:\n")
		keys := make([]string, 0, len(n.Attributes))
		for k := range n.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "  %s: %v\n", k, n.Attributes[k])
		}
	}
	b.WriteString("\n")
}
