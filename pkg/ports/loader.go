package ports

import "github.com/aretw0/weave/pkg/domain"

// GraphLoader builds graphs from a backend, decoupling hosts from the
// storage format.
type GraphLoader interface {
	// LoadGraph builds the graph described at ref, resolving any graphs it
	// embeds.
	LoadGraph(ref string) (*domain.Graph, error)
}
