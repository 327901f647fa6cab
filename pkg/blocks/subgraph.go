package blocks

import (
	"context"
	"fmt"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/reconcile"
	"github.com/aretw0/weave/pkg/schema"
)

// UpdateFunc evaluates one round of a graph.
type UpdateFunc func(g *domain.Graph)

// SubGraph embeds child as a Computable block. Its sinks mirror the child's
// input slots and its sources the child's output slots. A nil child yields a
// block that invalidates itself on first evaluation.
func SubGraph(child *domain.Graph, update UpdateFunc) domain.Definition {
	def := domain.Definition{Kind: KindSubGraph}
	if child == nil {
		def.Compute = func(_, _ schema.Values) (schema.Values, error) {
			return nil, ErrMissingChild
		}
		return def
	}
	def.Ports = dataPorts(child.InputFields(), child.OutputFields())
	def.Compute = func(_, in schema.Values) (schema.Values, error) {
		for _, slot := range child.Inputs {
			if v, ok := in[slot.Name]; ok {
				slot.Value = v.Cast(slot.Type)
			}
		}
		update(child)
		return child.OutputValues(), nil
	}
	return def
}

// Resync points an existing subgraph block at a reloaded child, reconciling
// its ports so existing wiring survives, and clears a previous invalidation.
// A nil child leaves the block invalid.
func Resync(ctx context.Context, a *reconcile.Applier, g *domain.Graph, id domain.BlockID, child *domain.Graph, update UpdateFunc) error {
	b, ok := g.Block(id)
	if !ok {
		return &domain.StructuralError{Op: "resync", Block: id, Err: domain.ErrBlockNotFound}
	}
	if b.Kind != KindSubGraph {
		return fmt.Errorf("block %s is a %s, not a %s", b.Name, b.Kind, KindSubGraph)
	}
	if child == nil {
		b.Invalidate(ErrMissingChild.Error())
		return nil
	}
	if err := a.Block(ctx, g, id, SubGraph(child, update)); err != nil {
		return err
	}
	b.Revalidate()
	return nil
}
