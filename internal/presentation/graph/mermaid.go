package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Active names the steps currently in a procedure's active set.
	Active []string
}

// GenerateMermaid produces a Mermaid flowchart of the graph's blocks and links.
// It applies semantic styling:
// - Start/End: ((Circle))
// - Other steps: ([Stadium])
// - Subgraph: [[Subroutine]]
// - External slots (input/output): [/Parallelogram/]
// - Default: [Rectangle]
// DataFlow links are solid and labelled "source → sink"; ControlFlow links
// are dotted and labelled with the fired port. Invalid blocks are always
// styled; active steps only when an overlay is given.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	var invalid []string
	for _, b := range g.Blocks() {
		safeID := sanitizeMermaidID(b.Name)

		opener, closer := "[", "]"
		switch {
		case b.Kind == domain.KindStart || b.Kind == domain.KindEnd:
			opener, closer = "((", "))"
		case b.Kind == blocks.KindSubGraph:
			opener, closer = "[[", "]]"
		case b.Kind == blocks.KindInput || b.Kind == blocks.KindOutput:
			opener, closer = "[/", "/]"
		case b.Is(domain.Steppable):
			opener, closer = "([", "])"
		}

		label := b.Name
		if b.Kind != b.Name {
			label = fmt.Sprintf("%s <br/> <i>%s</i>", b.Name, b.Kind)
		}
		if !b.Valid() {
			invalid = append(invalid, safeID)
			label += " <br/> ⚠️ " + b.Reason()
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)
	}

	for _, l := range g.AllLinks() {
		src, _ := g.Port(l.Source)
		sink, _ := g.Port(l.Sink)
		from, _ := g.Block(src.Block)
		to, _ := g.Block(sink.Block)

		if src.Class == domain.ControlFlow {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", sanitizeMermaidID(from.Name), escape(src.Name), sanitizeMermaidID(to.Name))
			continue
		}
		edge := src.Name
		if src.Name != sink.Name {
			edge = src.Name + " → " + sink.Name
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", sanitizeMermaidID(from.Name), escape(edge), sanitizeMermaidID(to.Name))
	}

	if len(invalid) > 0 || overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
	}
	if len(invalid) > 0 {
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef invalid fill:#ffcdd2,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s invalid;\n", strings.Join(invalid, ","))
	}
	if overlay != nil && len(overlay.Active) > 0 {
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[string]bool)
		for _, name := range overlay.Active {
			safeID := sanitizeMermaidID(name)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s active;\n", safeID)
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
