/*
Package observability turns weave lifecycle hooks into Prometheus metrics.

Metrics owns its collectors and registry; wire it with Hooks and expose it
with Handler:

	m := observability.NewMetrics()
	host := weave.New(graph, weave.WithLifecycleHooks(m.Hooks()))
	http.Handle("/metrics", m.Handler())
*/
package observability
