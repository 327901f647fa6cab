/*
Package dsl provides a fluent Go API for constructing weave graphs.

It builds the same blocks a YAML project would, through the kind registry,
so a graph defined in code and one loaded from a file behave identically.
This is useful for tests, generated graphs and procedures registered from
Go.

Example usage:

	b := dsl.New("blink")
	b.Add("start", "start").Then("wait")
	b.Add("wait", "wait").Set("seconds", 1).Then("end")
	b.Add("end", "end")

	host := weave.New(top)
	host.Register("blink", b.Factory())

Data links name both endpoints as "block.port":

	b := dsl.New("scale")
	b.Input("x", schema.Number())
	b.Output("y", schema.Number())
	b.Add("in", "input").Set("slot", "x").Feed("value", "double.in")
	b.Add("double", "gain").Set("factor", 2).Feed("out", "out.value")
	b.Add("out", "output").Set("slot", "y")
	g, err := b.Build()
*/
package dsl
