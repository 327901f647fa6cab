package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

// Describe renders a markdown summary of a graph: its slots, then every block
// with its capabilities, settings and ports.
func Describe(g *domain.Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", g.Name)

	if len(g.Inputs) > 0 || len(g.Outputs) > 0 {
		sb.WriteString("## Slots\n\n| Slot | Direction | Type | Value |\n|---|---|---|---|\n")
		for _, s := range g.Inputs {
			fmt.Fprintf(&sb, "| %s | input | %s | %s |\n", s.Name, typeName(s.Type), s.Value.String())
		}
		for _, s := range g.Outputs {
			fmt.Fprintf(&sb, "| %s | output | %s | %s |\n", s.Name, typeName(s.Type), s.Value.String())
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Blocks\n\n")
	for _, b := range g.Blocks() {
		fmt.Fprintf(&sb, "### %s\n\n", b.Name)
		fmt.Fprintf(&sb, "- kind: `%s`\n- capabilities: %s\n", b.Kind, b.Capabilities())
		if !b.Valid() {
			fmt.Fprintf(&sb, "- **invalid**: %s\n", b.Reason())
		}
		for _, s := range b.Settings {
			fmt.Fprintf(&sb, "- setting `%s` (%s) = %s\n", s.Name, typeName(s.Type), s.Value.String())
		}

		ports := g.Ports(b.ID)
		if len(ports) > 0 {
			sb.WriteString("\n| Port | Class | Direction | Type | Links |\n|---|---|---|---|---|\n")
			for _, p := range ports {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", p.Name, p.Class, p.Direction, typeName(p.Type), peers(g, p))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func typeName(t schema.TypeSpec) string {
	if t.IsNone() {
		return "-"
	}
	return t.Name()
}

func peers(g *domain.Graph, p *domain.Port) string {
	var out []string
	for _, id := range g.Links(p.ID) {
		other, ok := g.Port(id)
		if !ok {
			continue
		}
		if b, ok := g.Block(other.Block); ok {
			out = append(out, b.Name+"."+other.Name)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ", ")
}
