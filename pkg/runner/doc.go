/*
Package runner drives a weave host from a ticker.

The core never blocks or sleeps: waits and loops are polls advanced by Tick.
Run is the one blocking loop, and it lives here, outside the core. Between
ticks it also applies reloads for files reported by a watcher, so the host
only ever sees them at a tick boundary.

# Usage

	watcher := file.NewWatcher(host.Files())
	changes, _ := watcher.Watch(ctx)

	err := runner.Run(ctx, host,
		runner.WithInterval(50*time.Millisecond),
		runner.WithReload(changes),
	)
*/
package runner
