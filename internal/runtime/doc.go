/*
Package runtime holds the two engines that drive a graph once per tick.

The Scheduler evaluates every valid Computable block in dependency order so
that each block sees same-round upstream outputs whenever an acyclic path
exists. Blocks caught in a dependency cycle keep their previous outputs.

The Engine runs procedures: token-passing state machines built from Steppable
blocks. Each running instance keeps an active step set; Advance executes the
active steps and moves the tokens along fired ControlFlow links.

Nothing here blocks or sleeps. Waits and loops are polls driven by the host's
tick, and the host is the only writer between ticks.
*/
package runtime
