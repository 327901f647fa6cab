/*
Package weave is a typed dataflow-and-procedure graph engine for hosts that
drive blocks on a tick, such as lab rigs, light shows or test benches.

A graph is made of blocks connected by typed ports. Computable blocks are
evaluated once per tick in dependency order; Steppable blocks form procedures
that pass an activation token along control links, branching, looping and
waiting without ever blocking. When a block's definition changes at runtime
(a reloaded sub-project, an edited script) its ports and settings are
reconciled against the new schema so existing wiring and values survive.

# Concept

The Host owns the top-level graph, the procedure engine and the reconciler,
and is the single writer between ticks. Everything else drives it:

  - pkg/runner calls Tick on a ticker.
  - pkg/adapters/file loads YAML projects and watches them for edits.
  - internal/adapters/http exposes the host over HTTP.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/weave"
		"github.com/aretw0/weave/pkg/runner"
	)

	func main() {
		host, err := weave.Open("./greenhouse.yaml")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if _, err := host.Start(ctx, "purge"); err != nil {
			log.Fatal(err)
		}
		if err := runner.Run(ctx, host); err != nil {
			log.Fatal(err)
		}
	}
*/
package weave
