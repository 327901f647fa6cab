package ports

import (
	"context"

	"github.com/aretw0/weave/pkg/schema"
)

// ScriptRunner evaluates user-defined script bodies. A script is an opaque
// function from settings and inputs to outputs; it must not block.
type ScriptRunner interface {
	Run(name string, settings, inputs schema.Values) (schema.Values, error)
}

// DeviceSink consumes one ordered boolean array per tick, e.g. a relay rig
// behind a serial link.
type DeviceSink interface {
	Write(channels []bool) error
}

// Watchable notifies about backend changes for hot-reload.
type Watchable interface {
	// Watch returns a channel carrying the path of every changed source.
	// The channel closes when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
